package services

import (
	"math"
	"strconv"
	"time"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize renders a byte count in 1024 steps with at most two decimals,
// e.g. 0 -> "0 B", 1536 -> "1.5 KB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	v, i := float64(bytes), 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatListDate is the documentation list format: "Mar 1, 02:05 PM".
func FormatListDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 03:04 PM")
}

// FormatLongDate is the documentation page format: "Sunday, March 1, 2026".
func FormatLongDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Monday, January 2, 2006")
}

// FormatShortDate is the repository format: "Mar 1, 2026".
func FormatShortDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// textLength counts UTF-16 code units, which is how the backend's clients
// measured documentation size.
func textLength(s string) int64 {
	var n int64
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}
