package title

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// sizeUnits rewrites the unit suffixes torrent indexes actually print into
// the binary units humanize understands. Trackers write "GB" but mean
// 1024-based sizes, and Russian indexes print Cyrillic units.
var sizeUnits = strings.NewReplacer(
	"ТБ", "TiB", "Тб", "TiB", "тб", "TiB",
	"ГБ", "GiB", "Гб", "GiB", "гб", "GiB",
	"МБ", "MiB", "Мб", "MiB", "мб", "MiB",
	"КБ", "KiB", "Кб", "KiB", "кб", "KiB",
	"TB", "TiB", "GB", "GiB", "MB", "MiB", "KB", "KiB",
	"Tb", "TiB", "Gb", "GiB", "Mb", "MiB", "Kb", "KiB",
)

// ParseSize converts human-readable size text ("12.3 GB", "700 МБ") into
// bytes. Returns 0 for text it cannot parse; callers treat zero-size
// candidates as invalid.
func ParseSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	// Russian indexes print comma decimals ("1,4 ГБ").
	s = strings.ReplaceAll(s, ",", ".")
	s = sizeUnits.Replace(s)
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return int64(n)
}

// FormatSize renders bytes in binary units for logs.
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
