package pipeline

import (
	"time"

	"github.com/lexandro/assetpipe/derive"
)

// Stats summarises one run.
type Stats struct {
	RunID      string
	Forced     bool
	SkippedRun bool // the change detector found nothing newer than the marker

	Discovered int
	Processed  int
	UpToDate   int
	Failed     int

	// OriginalBytes counts each processed source once per full-resolution
	// output, so it compares like for like with OutputBytes.
	OriginalBytes int64
	OutputBytes   int64 // full-resolution outputs
	ScaledBytes   int64 // scaled outputs, reported separately

	Duration time.Duration
}

func (s *Stats) addProcessed(sourceSize int64, r derive.Result) {
	s.Processed++
	s.OriginalBytes += sourceSize * int64(r.FullCount())
	s.OutputBytes += r.FullBytes()
	s.ScaledBytes += r.ScaledBytes()
}

// Saved returns OriginalBytes - OutputBytes; negative when outputs grew.
func (s Stats) Saved() int64 {
	return s.OriginalBytes - s.OutputBytes
}

// ReductionPercent returns Saved as a percentage of OriginalBytes.
func (s Stats) ReductionPercent() float64 {
	if s.OriginalBytes == 0 {
		return 0
	}
	return float64(s.Saved()) / float64(s.OriginalBytes) * 100
}
