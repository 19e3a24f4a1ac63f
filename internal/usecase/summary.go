package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/semmidev/netvault/internal/domain"
)

// BuildSummary renders a job report as the notification text sent once per
// run. Transient: built, dispatched, discarded.
func BuildSummary(report domain.JobReport) string {
	successes := report.Successes()
	failures := report.Failures()

	var b strings.Builder

	icon := "✅"
	if len(failures) > 0 {
		icon = "⚠️"
	}
	if len(successes) == 0 {
		icon = "❌"
	}

	fmt.Fprintf(&b, "%s Config Backup Report\n\n", icon)
	fmt.Fprintf(&b, "🕐 %s\n", report.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "📊 %d succeeded, %d failed\n", len(successes), len(failures))
	fmt.Fprintf(&b, "⏱ Duration: %s\n", report.Duration().Round(time.Second))
	fmt.Fprintf(&b, "💾 Total: %s\n", formatBytes(report.TotalBytes()))

	if len(successes) > 0 {
		b.WriteString("\nBacked up:\n")
		for _, r := range successes {
			fmt.Fprintf(&b, "  • %s (%s, %s)",
				r.Snapshot.Hostname,
				formatBytes(r.Snapshot.Size),
				r.Snapshot.Duration.Round(time.Second))
			if !r.Snapshot.Committed {
				b.WriteString(" — not committed to history")
			}
			b.WriteString("\n")
		}
	}

	if len(failures) > 0 {
		b.WriteString("\nFailed:\n")
		for _, r := range failures {
			fmt.Fprintf(&b, "  • %s: %v\n", r.Host, r.Err)
		}
	}

	return b.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
