package dupes

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a name for comparison: diacritics removed, lower case,
// punctuation dropped, whitespace collapsed.
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '\'' || r == '’' || r == '.':
			continue
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NameSimilarity scores two names from 0 to 100. It takes the better of a
// whole-string edit distance and a comparison of the sorted name tokens, so
// "Smith, John" matches "John Smith".
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	direct := stringSimilarity(na, nb)
	if direct == 100 {
		return direct
	}
	return max(direct, tokenSimilarity(na, nb))
}

func stringSimilarity(a, b string) float64 {
	if a == b {
		return 100
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

// tokenSimilarity compares sorted tokens position by position and averages
// over the longer token list; unmatched positions score zero.
func tokenSimilarity(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	sort.Strings(ta)
	sort.Strings(tb)
	n := max(len(ta), len(tb))
	if n == 0 {
		return 0
	}
	var total float64
	for i := 0; i < min(len(ta), len(tb)); i++ {
		total += stringSimilarity(ta[i], tb[i])
	}
	return total / float64(n)
}

// DateProximity compares birth and death years. Each comparable pair within
// maxDiff years scores linearly from 100 (same year) down to 0 at maxDiff.
// With no comparable pair the result is a neutral 50.
func DateProximity(birthA, birthB, deathA, deathB int, hasBirth, hasDeath bool, maxDiff int) float64 {
	var total float64
	var compared int
	score := func(a, b int) float64 {
		diff := a - b
		if diff < 0 {
			diff = -diff
		}
		if maxDiff <= 0 {
			if diff == 0 {
				return 100
			}
			return 0
		}
		if diff > maxDiff {
			return 0
		}
		return 100 * (1 - float64(diff)/float64(maxDiff))
	}
	if hasBirth {
		total += score(birthA, birthB)
		compared++
	}
	if hasDeath {
		total += score(deathA, deathB)
		compared++
	}
	if compared == 0 {
		return 50
	}
	return total / float64(compared)
}
