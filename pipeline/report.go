package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	summaryTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4"))
	summaryLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	summaryGood  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7"))
	summaryBad   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
)

// WriteSummary prints the end-of-run statistics block.
func WriteSummary(w io.Writer, st Stats) {
	var builder strings.Builder

	builder.WriteString(summaryTitle.Render("[assetpipe] image processing summary"))
	builder.WriteString("\n")
	line := func(label, value string) {
		builder.WriteString(fmt.Sprintf("  %s %s\n", summaryLabel.Render(fmt.Sprintf("%-16s", label)), value))
	}

	line("Processed files:", fmt.Sprintf("%d", st.Processed))
	if st.UpToDate > 0 {
		line("Up to date:", fmt.Sprintf("%d", st.UpToDate))
	}
	if st.Failed > 0 {
		line("Failed:", summaryBad.Render(fmt.Sprintf("%d", st.Failed)))
	}
	line("Original size:", FormatSize(st.OriginalBytes))
	line("Output size:", FormatSize(st.OutputBytes))
	if st.ScaledBytes > 0 {
		line("Scaled variants:", FormatSize(st.ScaledBytes))
	}

	saved := st.Saved()
	savedText := fmt.Sprintf("%s (%.1f%%)", FormatSize(saved), st.ReductionPercent())
	if saved >= 0 {
		savedText = summaryGood.Render(savedText)
	} else {
		savedText = summaryBad.Render(savedText)
	}
	line("Saved:", savedText)
	line("Duration:", st.Duration.Round(time.Millisecond).String())

	io.WriteString(w, builder.String())
}

// FormatSize converts bytes to a human-readable string.
func FormatSize(bytes int64) string {
	sign := ""
	if bytes < 0 {
		sign = "-"
		bytes = -bytes
	}
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%s%.1f MB", sign, float64(bytes)/(1024*1024))
	case bytes >= 1024:
		return fmt.Sprintf("%s%.1f KB", sign, float64(bytes)/1024)
	default:
		return fmt.Sprintf("%s%d B", sign, bytes)
	}
}
