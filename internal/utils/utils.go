package utils

import (
	"fmt"
	"time"
)

// ShortID trims a peer-id to n runes for display, marking the cut with an
// ellipsis.
func ShortID(id string, n int) string {
	r := []rune(id)
	if n <= 0 || len(r) <= n {
		return id
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

// FormatTimeDuration renders d the way the summary table shows it.
func FormatTimeDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
