package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var fileIcons = map[string]string{
	"pdf":  "📄",
	"txt":  "📝",
	"md":   "📝",
	"docx": "📘",
}

// fileIcon maps a document type (extension without dot) to an icon.
func fileIcon(kind string) string {
	if icon, ok := fileIcons[strings.ToLower(strings.TrimPrefix(kind, "."))]; ok {
		return icon
	}
	return "📁"
}

// formatSize renders byte counts the way the sidebar shows them: "0 B",
// "1.5 kB", "20 MB".
func formatSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}

// formatAge renders t relative to now. Zero times render as "unknown".
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// usageBar draws a fixed-width bar for pct (clamped to 0..100).
func usageBar(pct float64, width int, s Styles) string {
	if width <= 0 {
		return ""
	}
	clamped := pct
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 100 {
		clamped = 100
	}
	filled := int(clamped / 100 * float64(width))
	fill := s.BarFill
	switch {
	case pct >= 90:
		fill = s.BarFull
	case pct >= 70:
		fill = s.BarWarn
	}
	return fill.Render(strings.Repeat("█", filled)) +
		s.BarEmpty.Render(strings.Repeat("░", width-filled))
}

func usageLine(total, quota int64, pct float64) string {
	return fmt.Sprintf("%s of %s (%.0f%%)", formatSize(total), formatSize(quota), pct)
}

// truncate shortens s to at most n display cells, marking the cut with "…".
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
