package bot

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/himanishpuri/tunebot/pkg/models"
)

// FormatNumberDot groups thousands with dots: 1234567 -> "1.234.567".
func FormatNumberDot(n *int64) string {
	if n == nil {
		return UnknownValue
	}
	return strings.ReplaceAll(humanize.Comma(*n), ",", ".")
}

// InfoMessage renders the stats popup for a cached song.
func InfoMessage(meta models.SessionMeta) string {
	return infoMessage(meta, taglines[rand.IntN(len(taglines))])
}

func infoMessage(meta models.SessionMeta, tagline string) string {
	artist := meta.Artist
	if artist == "" {
		artist = UnknownValue
	}
	year := UnknownValue
	if len(meta.UploadDate) >= 4 {
		year = meta.UploadDate[:4]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👤 Artist: %s\n", artist)
	fmt.Fprintf(&b, "📅 Year: %s\n", year)
	b.WriteString("──────────────────\n")
	fmt.Fprintf(&b, "📈 Views: %s\n", FormatNumberDot(meta.ViewCount))
	b.WriteString(" \n")
	fmt.Fprintf(&b, "👍 %s  👎 %s\n", FormatNumberDot(meta.LikeCount), FormatNumberDot(meta.DislikeCount))
	b.WriteString("──────────────────\n")
	b.WriteString(tagline)
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
