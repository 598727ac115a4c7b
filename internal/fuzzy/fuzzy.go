// Package fuzzy implements the string similarity scorers used by duplicate
// detection and catalog search. Scores range from 0 to 100.
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scorer compares two strings.
type Scorer func(a, b string) float64

// Ratio is the normalised insertion/deletion similarity of a and b:
// 1 - indel/(len(a)+len(b)), counted in runes.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	indel := total - 2*lcsLength(ra, rb)
	return 100 * (1 - float64(indel)/float64(total))
}

// lcsLength is the length of the longest common subsequence of a and b.
func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// PartialRatio scores the shorter string against its best-aligned window in
// the longer one.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		if len(rb) == 0 {
			return 100
		}
		return 0
	}
	short := string(ra)
	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		score := Ratio(short, string(rb[i:i+len(ra)]))
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSortRatio compares the strings after sorting their whitespace tokens.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared tokens of a and b against each side's
// remainder, so a title that is a token subset of another scores 100.
func TokenSetRatio(a, b string) float64 {
	sect, diffAB, diffBA := splitTokenSets(a, b)
	if sect == "" && diffAB == "" && diffBA == "" {
		return 0
	}
	if sect != "" && (diffAB == "" || diffBA == "") {
		return 100
	}
	return tokenSetScore(sect, diffAB, diffBA, Ratio)
}

func partialTokenSortRatio(a, b string) float64 {
	return PartialRatio(sortedTokens(a), sortedTokens(b))
}

func partialTokenSetRatio(a, b string) float64 {
	sect, diffAB, diffBA := splitTokenSets(a, b)
	if sect != "" {
		return 100
	}
	return PartialRatio(diffAB, diffBA)
}

// WRatio blends the other scorers, weighting partial matches down when the
// lengths differ a lot. Inputs are processed with Process first.
func WRatio(a, b string) float64 {
	a, b = Process(a), Process(b)
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}

	base := Ratio(a, b)
	lenRatio := float64(max(la, lb)) / float64(min(la, lb))
	const unbaseScale = 0.95

	if lenRatio < 1.5 {
		return math.Max(base, math.Max(
			TokenSortRatio(a, b)*unbaseScale,
			TokenSetRatio(a, b)*unbaseScale,
		))
	}

	partialScale := 0.9
	if lenRatio >= 8 {
		partialScale = 0.6
	}
	best := math.Max(base, PartialRatio(a, b)*partialScale)
	best = math.Max(best, partialTokenSortRatio(a, b)*unbaseScale*partialScale)
	return math.Max(best, partialTokenSetRatio(a, b)*unbaseScale*partialScale)
}

// Process lower-cases s, replaces anything that is not a letter or digit with
// a space and collapses whitespace.
func Process(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// Match is one scored choice returned by Extract.
type Match struct {
	Index  int
	Choice string
	Score  float64
}

// Extract scores every choice against query and returns those at or above
// cutoff, best first. Ties keep choice order. limit <= 0 means no limit.
func Extract(query string, choices []string, scorer Scorer, cutoff float64, limit int) []Match {
	var matches []Match
	for i, choice := range choices {
		score := scorer(query, choice)
		if score >= cutoff {
			matches = append(matches, Match{Index: i, Choice: choice, Score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func splitTokenSets(a, b string) (sect, diffAB, diffBA string) {
	setA := tokenSet(a)
	setB := tokenSet(b)

	var common, onlyA, onlyB []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return strings.Join(common, " "), strings.Join(onlyA, " "), strings.Join(onlyB, " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

func tokenSetScore(sect, diffAB, diffBA string, scorer Scorer) float64 {
	combinedAB := strings.TrimSpace(sect + " " + diffAB)
	combinedBA := strings.TrimSpace(sect + " " + diffBA)

	best := scorer(combinedAB, combinedBA)
	if sect != "" {
		best = math.Max(best, scorer(sect, combinedAB))
		best = math.Max(best, scorer(sect, combinedBA))
	}
	return best
}
