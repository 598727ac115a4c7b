package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/himanishpuri/tunebot/pkg/logger"
	"github.com/himanishpuri/tunebot/pkg/models"
)

func setupTestCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()

	dir := t.TempDir()
	auditPath := filepath.Join(dir, "deleted_songs.log")
	c, err := Open(Options{
		ChannelDBPath: filepath.Join(dir, "channel.db"),
		ChatDBPath:    filepath.Join(dir, "chat.db"),
		AuditLogPath:  auditPath,
		Logger:        logger.Discard(),
	})
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	t.Cleanup(func() {
		c.Close()
	})
	return c, auditPath
}

func mustStore(t *testing.T, c *Catalog, corpus models.Corpus) *Store {
	t.Helper()
	s, err := c.Store(corpus)
	if err != nil {
		t.Fatalf("store %s: %v", corpus, err)
	}
	return s
}

func TestIndexIfNewExactDuplicate(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()

	first := c.IndexIfNew(ctx, models.CorpusChat, "file-1", "uniq-1", "Blinding Lights", "The Weeknd")
	if first != models.Indexed {
		t.Fatalf("Expected Indexed, got %s", first)
	}
	second := c.IndexIfNew(ctx, models.CorpusChat, "file-2", "uniq-1", "Something Else", "Other")
	if second != models.DuplicateExact {
		t.Errorf("Expected DuplicateExact, got %s", second)
	}

	count, err := mustStore(t, c, models.CorpusChat).Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 row, found %d", count)
	}
}

func TestIndexIfNewFuzzyDuplicate(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()

	c.IndexIfNew(ctx, models.CorpusChannel, "file-1", "uniq-1", "Blinding Lights", "The Weeknd")

	got := c.IndexIfNew(ctx, models.CorpusChannel, "file-2", "uniq-2", "Blinding Lights (Official Video)", "The Weeknd")
	if got != models.DuplicateFuzzy {
		t.Errorf("Expected DuplicateFuzzy, got %s", got)
	}

	count, _ := mustStore(t, c, models.CorpusChannel).Count(ctx)
	if count != 1 {
		t.Errorf("Expected fuzzy duplicate not to be inserted, found %d rows", count)
	}
}

func TestIndexIfNewOneLetterVariantIsFuzzyDuplicate(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()

	if got := c.IndexIfNew(ctx, models.CorpusChannel, "file-1", "uniq-1", "Believer", "Imagine Dragons"); got != models.Indexed {
		t.Fatalf("Expected Indexed, got %s", got)
	}
	got := c.IndexIfNew(ctx, models.CorpusChannel, "file-2", "uniq-2", "Believers", "Imagine Dragons")
	if got != models.DuplicateFuzzy {
		t.Errorf("Expected DuplicateFuzzy, got %s", got)
	}
}

func TestIndexIfNewAlternateVersionInserted(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()

	c.IndexIfNew(ctx, models.CorpusChat, "file-1", "uniq-1", "Song", "Artist")

	got := c.IndexIfNew(ctx, models.CorpusChat, "file-2", "uniq-2", "Song (Live)", "Artist")
	if got != models.Indexed {
		t.Errorf("Expected alternate version to be Indexed, got %s", got)
	}

	// the exact check still applies to alternate versions
	again := c.IndexIfNew(ctx, models.CorpusChat, "file-3", "uniq-2", "Song (Live)", "Artist")
	if again != models.DuplicateExact {
		t.Errorf("Expected DuplicateExact for repeated alternate, got %s", again)
	}
}

func TestIndexIfNewOtherPerformerInserted(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()

	c.IndexIfNew(ctx, models.CorpusChat, "file-1", "uniq-1", "Hallelujah", "Leonard Cohen")
	got := c.IndexIfNew(ctx, models.CorpusChat, "file-2", "uniq-2", "Hallelujah", "Jeff Buckley")
	if got != models.Indexed {
		t.Errorf("Expected same title by another performer to be Indexed, got %s", got)
	}
}

func TestIndexIfNewCorporaAreIndependent(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()

	if got := c.IndexIfNew(ctx, models.CorpusChannel, "file-1", "uniq-1", "Song", "Artist"); got != models.Indexed {
		t.Fatalf("channel: expected Indexed, got %s", got)
	}
	if got := c.IndexIfNew(ctx, models.CorpusChat, "file-1", "uniq-1", "Song", "Artist"); got != models.Indexed {
		t.Errorf("chat: expected Indexed, got %s", got)
	}
}

func TestIndexIfNewConcurrentSameItem(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()

	const workers = 8
	outcomes := make([]models.IndexOutcome, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = c.IndexIfNew(ctx, models.CorpusChat, fmt.Sprintf("file-%d", i), "uniq-race", "Race Song", "Racer")
		}()
	}
	wg.Wait()

	indexed := 0
	for _, o := range outcomes {
		switch {
		case o == models.Indexed:
			indexed++
		case o.IsDuplicate():
		default:
			t.Errorf("Unexpected outcome %s", o)
		}
	}
	if indexed != 1 {
		t.Errorf("Expected exactly one Indexed outcome, got %d", indexed)
	}

	count, _ := mustStore(t, c, models.CorpusChat).Count(ctx)
	if count != 1 {
		t.Errorf("Expected exactly one surviving row, found %d", count)
	}
}

func TestIndexIfNewUnknownCorpus(t *testing.T) {
	c, _ := setupTestCatalog(t)
	if got := c.IndexIfNew(context.Background(), models.Corpus("nope"), "f", "u", "t", "p"); got != models.IndexError {
		t.Errorf("Expected IndexError, got %s", got)
	}
}

func TestRemoveRecordChannelAudited(t *testing.T) {
	c, auditPath := setupTestCatalog(t)
	ctx := context.Background()
	store := mustStore(t, c, models.CorpusChannel)

	c.IndexIfNew(ctx, models.CorpusChannel, "file-1", "uniq-1", "Blinding Lights", "The Weeknd")

	if err := c.RemoveRecord(ctx, models.CorpusChannel, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := store.GetByID(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after removal, got %v", err)
	}

	var indexed int64
	store.client.DB.Raw("SELECT count(*) FROM songs_fts").Scan(&indexed)
	if indexed != 0 {
		t.Errorf("Expected index entry removed with the row, found %d", indexed)
	}

	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if !strings.Contains(string(data), "[channel.db] Deleted: The Weeknd - Blinding Lights (ID:1)") {
		t.Errorf("Unexpected audit log contents: %q", data)
	}

	if err := c.RemoveRecord(ctx, models.CorpusChannel, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second removal, got %v", err)
	}
}

func TestRemoveRecordChatNotAudited(t *testing.T) {
	c, auditPath := setupTestCatalog(t)
	ctx := context.Background()

	c.IndexIfNew(ctx, models.CorpusChat, "file-1", "uniq-1", "Song", "Artist")
	if err := c.RemoveRecord(ctx, models.CorpusChat, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(auditPath); !os.IsNotExist(err) {
		t.Errorf("Expected no audit log for chat deletions, stat err = %v", err)
	}
}

func TestPing(t *testing.T) {
	c, _ := setupTestCatalog(t)
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping on open catalog: %v", err)
	}

	chat := mustStore(t, c, models.CorpusChat)
	chat.Close()
	err := c.Ping()
	if err == nil {
		t.Fatal("Expected Ping to fail after the chat database closed")
	}
	if !strings.Contains(err.Error(), "chat corpus") || !strings.Contains(err.Error(), "chat.db") {
		t.Errorf("Expected corpus and path in error, got %v", err)
	}
}

func TestSetCached(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()
	store := mustStore(t, c, models.CorpusChat)

	c.IndexIfNew(ctx, models.CorpusChat, "file-1", "uniq-1", "Song", "Artist")

	rec, err := store.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.IsCached {
		t.Error("Expected new record to be cached")
	}
	if rec.NormalizedTitle != "song" {
		t.Errorf("Expected normalized title 'song', got %q", rec.NormalizedTitle)
	}

	if err := store.SetCached(ctx, 1, false); err != nil {
		t.Fatalf("set cached: %v", err)
	}
	rec, _ = store.GetByID(ctx, 1)
	if rec.IsCached {
		t.Error("Expected cached flag cleared")
	}

	if err := store.SetCached(ctx, 99, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing id, got %v", err)
	}
}

func TestSearchEmptyCatalog(t *testing.T) {
	c, _ := setupTestCatalog(t)

	matches, err := c.Search(context.Background(), "no such song xyz123")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected empty result, got %+v", matches)
	}
}

func TestSearchMergesAndRanksCachedFirst(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()

	c.IndexIfNew(ctx, models.CorpusChannel, "ch-1", "ch-u1", "Blinding Lights", "The Weeknd")
	c.IndexIfNew(ctx, models.CorpusChat, "chat-1", "chat-u1", "Blinding Lights", "The Weeknd")
	c.IndexIfNew(ctx, models.CorpusChat, "chat-2", "chat-u2", "Blinding Lights (Remix)", "The Weeknd")
	c.IndexIfNew(ctx, models.CorpusChat, "chat-3", "chat-u3", "One More Time", "Daft Punk")

	if err := mustStore(t, c, models.CorpusChannel).SetCached(ctx, 1, false); err != nil {
		t.Fatalf("set cached: %v", err)
	}

	matches, err := c.Search(ctx, "blinding lights")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("Expected 3 distinct matches, got %d: %+v", len(matches), matches)
	}

	seen := make(map[string]bool)
	for _, m := range matches {
		if seen[m.Key()] {
			t.Errorf("Duplicate key %s in merged results", m.Key())
		}
		seen[m.Key()] = true
		if m.FileID == "chat-3" {
			t.Errorf("Unrelated song matched: %+v", m)
		}
	}

	last := matches[len(matches)-1]
	if last.IsCached || last.Corpus != models.CorpusChannel {
		t.Errorf("Expected non-cached channel song ranked last, got %+v", last)
	}
	for _, m := range matches[:len(matches)-1] {
		if !m.IsCached {
			t.Errorf("Expected cached songs first, got %+v", matches)
		}
	}
}

func TestSearchTextRebuildsEmptyIndex(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()
	store := mustStore(t, c, models.CorpusChat)

	c.IndexIfNew(ctx, models.CorpusChat, "file-1", "uniq-1", "Blinding Lights", "The Weeknd")
	if err := store.client.DB.Exec("DELETE FROM songs_fts").Error; err != nil {
		t.Fatalf("clear index: %v", err)
	}

	matches, err := store.SearchText(ctx, "blinding", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("Expected index to be rebuilt and match, got %+v", matches)
	}
}

func TestSearchTextRecreatesMissingIndex(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()
	store := mustStore(t, c, models.CorpusChat)

	c.IndexIfNew(ctx, models.CorpusChat, "file-1", "uniq-1", "Blinding Lights", "The Weeknd")
	if err := store.client.DB.Exec("DROP TABLE songs_fts").Error; err != nil {
		t.Fatalf("drop index: %v", err)
	}

	matches, err := store.SearchText(ctx, "weeknd", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("Expected match after index recreation, got %+v", matches)
	}

	// inserts work again once the index exists
	if got := c.IndexIfNew(ctx, models.CorpusChat, "file-2", "uniq-2", "Save Your Tears", "The Weeknd"); got != models.Indexed {
		t.Errorf("Expected Indexed after recreation, got %s", got)
	}
}

func TestSearchTextWordsAcrossColumns(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()
	store := mustStore(t, c, models.CorpusChannel)

	c.IndexIfNew(ctx, models.CorpusChannel, "file-1", "uniq-1", "Bohemian Rhapsody", "Queen")
	c.IndexIfNew(ctx, models.CorpusChannel, "file-2", "uniq-2", "Under Pressure", "Queen")

	for _, q := range []string{"queen bohemian", "bohemian queen", "rhapsody bohemian", "Queen - Bohemian Rhapsody"} {
		matches, err := store.SearchText(ctx, q, 10)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if len(matches) != 1 || matches[0].FileID != "file-1" {
			t.Errorf("search %q: expected only file-1, got %+v", q, matches)
		}
	}

	// every word must appear somewhere
	matches, err := store.SearchText(ctx, "queen innuendo", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no match when a word is missing, got %+v", matches)
	}
}

func TestMatchExpr(t *testing.T) {
	tests := map[string]string{
		"queen bohemian": `"queen" "bohemian"`,
		"rock AND roll":  `"rock" "AND" "roll"`,
		"single":         `"single"`,
	}
	for in, want := range tests {
		if got := matchExpr(in); got != want {
			t.Errorf("matchExpr(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestSearchTextShortQuery(t *testing.T) {
	c, _ := setupTestCatalog(t)
	ctx := context.Background()
	store := mustStore(t, c, models.CorpusChat)

	c.IndexIfNew(ctx, models.CorpusChat, "file-1", "uniq-1", "A", "B")
	for _, q := range []string{"", "a", " !a! "} {
		matches, err := store.SearchText(ctx, q, 10)
		if err != nil {
			t.Fatalf("search %q: %v", q, err)
		}
		if len(matches) != 0 {
			t.Errorf("Expected short query %q to return nothing, got %+v", q, matches)
		}
	}
}

func TestMergeDedupsByKey(t *testing.T) {
	exact := []models.SongMatch{
		{Corpus: models.CorpusChat, SongID: 1, IsCached: false},
		{Corpus: models.CorpusChat, SongID: 2, IsCached: true},
	}
	fuzzyHits := []models.SongMatch{
		{Corpus: models.CorpusChat, SongID: 2, IsCached: true},
		{Corpus: models.CorpusChannel, SongID: 2, IsCached: true},
	}

	merged := merge([][]models.SongMatch{exact, fuzzyHits}, 50)
	if len(merged) != 3 {
		t.Fatalf("Expected 3 merged entries, got %+v", merged)
	}
	want := []string{"chat:2", "channel:2", "chat:1"}
	for i, key := range want {
		if merged[i].Key() != key {
			t.Errorf("position %d: expected %s, got %s", i, key, merged[i].Key())
		}
	}

	if got := merge([][]models.SongMatch{exact, fuzzyHits}, 2); len(got) != 2 {
		t.Errorf("Expected truncation to 2, got %d", len(got))
	}
}

func TestSanitizeQuery(t *testing.T) {
	tests := map[string]string{
		"  Blinding,  Lights! ": "Blinding Lights",
		"a":                     "",
		"!!":                    "",
		"ab":                    "ab",
	}
	for in, want := range tests {
		if got := sanitizeQuery(in); got != want {
			t.Errorf("sanitizeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}
