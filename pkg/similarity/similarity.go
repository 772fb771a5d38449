// Package similarity scores string closeness in [0,1] for fuzzy identifier
// matching. The score is the maximum over three complementary measures:
// whole-string edit-distance ratio, best-substring partial ratio, and a
// token-order-insensitive ratio. Taking the maximum favors recall: a strong
// signal from any one measure (say, substring containment of an
// abbreviation inside a full name) is enough, with precision recovered by
// the caller's threshold.
package similarity

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Score returns the similarity between a and b. Symmetric, Score(x,x)==1.
func Score(a, b string) float64 {
	if a == b {
		return 1
	}
	best := Ratio(a, b)
	if p := PartialRatio(a, b); p > best {
		best = p
	}
	if ts := TokenSortRatio(a, b); ts > best {
		best = ts
	}
	return best
}

// Ratio is the normalized edit-distance similarity: 1 - dist/maxRuneLen.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// PartialRatio slides the shorter string over the longer and returns the
// best Ratio against any contiguous substring of the same rune length.
func PartialRatio(a, b string) float64 {
	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		if len(longer) == 0 {
			return 1
		}
		return 0
	}
	if len(shorter) == len(longer) {
		return Ratio(string(shorter), string(longer))
	}

	best := 0.0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		window := string(longer[i : i+len(shorter)])
		if r := Ratio(string(shorter), window); r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares the two strings with their word tokens sorted, so
// reordered multi-word names ("transaminase alanine" vs "alanine
// transaminase") still score high.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '\t'
	})
	sort.Strings(fields)
	return strings.Join(fields, " ")
}
