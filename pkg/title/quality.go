package title

import "strings"

// Quality is the coarse resolution tier inferred from release text.
type Quality string

const (
	Quality4K      Quality = "4K"
	Quality1080p   Quality = "1080p"
	Quality720p    Quality = "720p"
	Quality480p    Quality = "480p"
	QualityUnknown Quality = "unknown"
)

// qualityMarkers maps tier to the keywords that identify it in release
// titles. Checked highest tier first so "2160p BDRip 1080p upscale" lands
// on 4K.
var qualityMarkers = []struct {
	quality Quality
	words   []string
}{
	{Quality4K, []string{"2160p", "4k", "uhd", "ultrahd"}},
	{Quality1080p, []string{"1080p", "1080i", "fullhd", "full hd", "fhd"}},
	{Quality720p, []string{"720p", "hdrip", "hdtvrip"}},
	{Quality480p, []string{"480p", "dvdrip", "dvd5", "dvd9"}},
}

// ParseQuality infers the quality tier from a release title.
func ParseQuality(s string) Quality {
	lower := strings.ToLower(s)
	for _, m := range qualityMarkers {
		for _, w := range m.words {
			if strings.Contains(lower, w) {
				return m.quality
			}
		}
	}
	// Bare "hd" is ambiguous; treat as 720p only when nothing sharper matched.
	if strings.Contains(lower, "hd") {
		return Quality720p
	}
	return QualityUnknown
}

// Score returns the selection score contribution of a tier.
// Strictly monotonic: 4K > 1080p > 720p > 480p > unknown.
func (q Quality) Score() int {
	switch q {
	case Quality4K:
		return 6
	case Quality1080p:
		return 5
	case Quality720p:
		return 3
	case Quality480p:
		return 1
	default:
		return 0
	}
}

const gib = int64(1 << 30)

// ExpectedSizeRange returns the byte range a well-encoded release of this
// tier is expected to fall into. Sizes inside the range earn a fitness
// bonus during selection. The second return is false for unknown quality.
func (q Quality) ExpectedSizeRange() (low, high int64, ok bool) {
	switch q {
	case Quality4K:
		return 4 * gib, 40 * gib, true
	case Quality1080p:
		return 3 * gib / 2, 5 * gib, true
	case Quality720p:
		return gib, 3 * gib, true
	case Quality480p:
		return gib / 2, 3 * gib / 2, true
	default:
		return 0, 0, false
	}
}
