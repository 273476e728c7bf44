// Package changes implements the coarse "did anything change since the last
// completed run" pre-filter backed by a persisted timestamp marker.
package changes

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lexandro/assetpipe/discovery"
	"github.com/lexandro/assetpipe/fsutil"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonFirstRun  Reason = "first-run"     // no usable marker
	ReasonModified  Reason = "file-modified" // a file is newer than the marker
	ReasonUnchanged Reason = "unchanged"
)

// Decision is the outcome of ShouldProcess.
type Decision struct {
	Process bool
	Reason  Reason
	Path    string // relative path of the first newer file, for ReasonModified
}

// ReadMarker returns the instant stored at path. ok is false when the marker
// is missing or does not hold an epoch-millisecond integer.
func ReadMarker(path string) (marker time.Time, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// WriteMarker persists t as epoch milliseconds.
func WriteMarker(path string, t time.Time) error {
	data := []byte(strconv.FormatInt(t.UnixMilli(), 10))
	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("writing timestamp marker: %w", err)
	}
	return nil
}

// ShouldProcess decides whether a run has work to look at. Without a usable
// marker it always says yes; otherwise it says yes as soon as one file's
// modification time is strictly after the marker.
func ShouldProcess(files []discovery.SourceFile, marker time.Time, ok bool) Decision {
	if !ok {
		return Decision{Process: true, Reason: ReasonFirstRun}
	}
	for _, f := range files {
		if f.ModTime.After(marker) {
			return Decision{Process: true, Reason: ReasonModified, Path: f.RelativePath}
		}
	}
	return Decision{Process: false, Reason: ReasonUnchanged}
}
