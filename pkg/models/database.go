package models

import "fmt"

// Corpus names one of the two independent song catalogs.
type Corpus string

const (
	CorpusChannel Corpus = "channel"
	CorpusChat    Corpus = "chat"
)

// ParseCorpus validates a corpus name coming from the outside.
func ParseCorpus(s string) (Corpus, error) {
	switch Corpus(s) {
	case CorpusChannel, CorpusChat:
		return Corpus(s), nil
	default:
		return "", fmt.Errorf("unknown corpus %q", s)
	}
}

// Label is the short tag shown in front of inline results.
func (c Corpus) Label() string {
	switch c {
	case CorpusChannel:
		return "CHANNEL"
	case CorpusChat:
		return "CHAT"
	default:
		return string(c)
	}
}

// SongRecord is one indexed song in a corpus.
type SongRecord struct {
	ID              int64
	FileID          string // transport file id
	FileUniqueID    string // transport file-unique id, used for exact dedup
	Title           string
	Performer       string
	NormalizedTitle string
	IsCached        bool
}

// SongMatch is one row of a combined catalog search.
type SongMatch struct {
	Corpus    Corpus `json:"corpus"`
	SongID    int64  `json:"song_id"`
	FileID    string `json:"file_id"`
	Title     string `json:"title"`
	Performer string `json:"performer"`
	IsCached  bool   `json:"is_cached"`
}

// Key identifies a match across both corpora.
func (m SongMatch) Key() string {
	return fmt.Sprintf("%s:%d", m.Corpus, m.SongID)
}

// IndexOutcome is the result of a dedup-checked insert. Not an error.
type IndexOutcome int

const (
	Indexed IndexOutcome = iota
	DuplicateExact
	DuplicateFuzzy
	IndexError
)

func (o IndexOutcome) String() string {
	switch o {
	case Indexed:
		return "indexed"
	case DuplicateExact:
		return "duplicate_exact"
	case DuplicateFuzzy:
		return "duplicate_fuzzy"
	default:
		return "error"
	}
}

// IsDuplicate reports whether the item should be discarded by the caller.
func (o IndexOutcome) IsDuplicate() bool {
	return o == DuplicateExact || o == DuplicateFuzzy
}
