package ui

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count in binary units, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// FormatQuota renders mailbox usage as "used / quota (pct%)".
func FormatQuota(used, quota int64) string {
	if quota <= 0 {
		return FormatBytes(used)
	}
	pct := float64(used) / float64(quota) * 100
	return fmt.Sprintf("%s / %s (%.0f%%)", FormatBytes(used), FormatBytes(quota), pct)
}
