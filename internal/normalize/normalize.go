// Package normalize canonicalises song titles for duplicate detection.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	bracketed = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)
	noise     = regexp.MustCompile(`(^|[^\p{L}\p{N}_])(?:m/v|official|video|audio|hd|hq|remastered|version|lyrics)([^\p{L}\p{N}_]|$)`)
	punct     = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

// alternateMarkers are matched as substrings, so "remix" also trips "mix".
var alternateMarkers = []string{
	"remix", "mix", "edit", "vip", "live", "acoustic", "instrumental",
	"slowed", "sped up", "flip", "cover", "intro", "outro",
}

// Normalize lower-cases a title and strips bracketed segments, noise words and
// punctuation. Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(title string) string {
	s := strings.ToLower(norm.NFKC.String(title))
	s = bracketed.ReplaceAllString(s, " ")
	s = stripNoise(s)
	s = punct.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// stripNoise blanks noise words. A match consumes the separator after it, so
// adjacent noise words need another pass.
func stripNoise(s string) string {
	for {
		next := noise.ReplaceAllString(s, "$1 $2")
		if next == s {
			return s
		}
		s = next
	}
}

// IsAlternateVersion reports whether a title names a remix, live take or
// similar variant that should not be folded into the canonical track.
func IsAlternateVersion(title string) bool {
	s := strings.ToLower(title)
	for _, marker := range alternateMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
