package compressor

import (
	"math"
	"path"
	"strconv"
	"strings"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count the way the comparison panel shows it:
// powers of 1024, at most two decimals, trailing zeros dropped.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}

	// Ties round away from zero.
	s := strconv.FormatFloat(math.Round(value*100)/100, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s + " " + sizeUnits[unit]
}

// ReductionPercent returns how much smaller derived is than original, in
// percent rounded to one decimal. ok is false when original is zero.
func ReductionPercent(original, derived int64) (pct float64, ok bool) {
	if original <= 0 {
		return 0, false
	}
	raw := float64(original-derived) / float64(original) * 100
	return roundTenth(raw), true
}

// FormatReduction renders ReductionPercent, or "N/A" for a zero-byte original.
func FormatReduction(original, derived int64) string {
	pct, ok := ReductionPercent(original, derived)
	if !ok {
		return "N/A"
	}
	return strconv.FormatFloat(pct, 'f', 1, 64)
}

func roundTenth(v float64) float64 {
	r := math.Round(v*10) / 10
	if r == 0 {
		return 0
	}
	return r
}

// DownloadName derives the export file name from the source display name.
// Only the last extension is removed; a name without one is used whole.
func DownloadName(displayName string) string {
	name := displayName
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	base := strings.TrimSuffix(name, path.Ext(name))
	if base == "" {
		base = "image"
	}
	return "compressed_" + base + ".jpg"
}
