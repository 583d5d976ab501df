// Package title provides the text heuristics shared by the indexer
// adapters, the candidate selector, and the transfer file matcher:
// normalization, transliteration, quality tier parsing, and size parsing.
package title

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Clean normalizes a title for matching purposes.
// Lowercases, removes accents, converts punctuation to spaces, strips a
// leading English article, and collapses whitespace.
func Clean(s string) string {
	s = strings.ToLower(s)
	s = removeAccents(s)

	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "'", "")

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	s = stripLeadingArticle(b.String())

	return strings.Join(strings.Fields(s), " ")
}

func removeAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

func stripLeadingArticle(s string) string {
	s = strings.TrimSpace(s)
	for _, art := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(s, art) {
			return strings.TrimPrefix(s, art)
		}
	}
	return s
}

// ContainsCyrillic reports whether s has at least one Cyrillic rune.
func ContainsCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

// translit maps lowercase Cyrillic runes to their Latin equivalents.
// Uppercase input is lowercased before lookup.
var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

// Transliterate converts Cyrillic script to a Latin approximation.
// Non-Cyrillic runes pass through unchanged. Indexers that only understand
// Latin queries get transliterated query variants built from this.
func Transliterate(s string) string {
	var b strings.Builder
	for _, r := range s {
		lower := unicode.ToLower(r)
		if repl, ok := translit[lower]; ok {
			if r != lower && repl != "" {
				b.WriteString(strings.ToUpper(repl[:1]) + repl[1:])
			} else {
				b.WriteString(repl)
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// WordOverlap returns the fraction of words in a that also occur in b,
// after Clean normalization of both. Returns 0 when a has no words.
func WordOverlap(a, b string) float64 {
	aWords := strings.Fields(Clean(a))
	if len(aWords) == 0 {
		return 0
	}
	bSet := make(map[string]bool)
	for _, w := range strings.Fields(Clean(b)) {
		bSet[w] = true
	}
	matched := 0
	for _, w := range aWords {
		if bSet[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(aWords))
}
