package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/himanishpuri/tunebot/internal/apperr"
	"github.com/himanishpuri/tunebot/internal/audio"
	"github.com/himanishpuri/tunebot/internal/extractor"
	"github.com/himanishpuri/tunebot/pkg/logger"
	"github.com/himanishpuri/tunebot/pkg/models"
)

type fakeExtractor struct {
	meta      *extractor.Metadata
	metaErr   error
	hits      []models.MediaCandidate
	searchErr error

	title       string
	duration    float64
	audioExt    string
	audioSize   int
	thumbnail   bool
	leftover    bool
	downloadErr error
	delay       time.Duration
	hold        chan struct{}
	entered     chan struct{}

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeExtractor) ResolveMetadata(ctx context.Context, url string) (*extractor.Metadata, error) {
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	if f.meta == nil {
		return &extractor.Metadata{}, nil
	}
	return f.meta, nil
}

func (f *fakeExtractor) Search(ctx context.Context, query string, limit int) ([]models.MediaCandidate, error) {
	return f.hits, f.searchErr
}

func (f *fakeExtractor) Materialize(ctx context.Context, url, base string) (*extractor.Download, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxInFlight.Load()
		if n <= prev || f.maxInFlight.CompareAndSwap(prev, n) {
			break
		}
	}

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.hold != nil {
		<-f.hold
	}
	time.Sleep(f.delay)

	if f.downloadErr != nil {
		os.WriteFile(base+".webm.part", []byte("partial"), 0o644)
		return nil, f.downloadErr
	}

	ext := f.audioExt
	if ext == "" {
		ext = ".webm"
	}
	audioPath := base + ext
	if err := os.WriteFile(audioPath, make([]byte, f.audioSize), 0o644); err != nil {
		return nil, err
	}
	var thumb string
	if f.thumbnail {
		thumb = base + ".webp"
		os.WriteFile(thumb, []byte("img"), 0o644)
	}
	if f.leftover {
		os.WriteFile(base+".info.json", []byte("{}"), 0o644)
	}
	return &extractor.Download{
		ExternalID:    "vid",
		Title:         f.title,
		Uploader:      "Uploader",
		Duration:      f.duration,
		URL:           url,
		AudioPath:     audioPath,
		ThumbnailPath: thumb,
	}, nil
}

type fakeProber struct {
	err error
}

func (p fakeProber) Probe(ctx context.Context, path string) (*audio.StreamInfo, error) {
	return &audio.StreamInfo{}, p.err
}

type fakeTranscoder struct {
	err   error
	calls atomic.Int32
}

func (f *fakeTranscoder) TranscodeMP3(ctx context.Context, inputPath, outputPath string) error {
	f.calls.Add(1)
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("mp3"), 0o644)
}

func setupCoordinator(t *testing.T, ex *fakeExtractor, opts Options) (*Coordinator, string) {
	t.Helper()
	dir := t.TempDir()
	opts.TempDir = dir
	if opts.Limit == 0 {
		opts.Limit = 5
	}
	if opts.MaxDuration == 0 {
		opts.MaxDuration = 900
	}
	if opts.MaxSize == 0 {
		opts.MaxSize = 1024
	}
	opts.Logger = logger.Discard()
	return New(ex, opts), dir
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("Expected no working files, found %v", names)
	}
}

func TestFetchSuccessNormalisesAndReleases(t *testing.T) {
	ex := &fakeExtractor{title: "Song", duration: 200, audioSize: 100, thumbnail: true, leftover: true}
	c, dir := setupCoordinator(t, ex, Options{})

	res, err := c.FetchByURL(context.Background(), "https://www.youtube.com/watch?v=vid")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if filepath.Ext(res.AudioPath) != CanonicalExt {
		t.Errorf("Expected canonical extension, got %s", res.AudioPath)
	}
	if res.AudioPath != res.Base+CanonicalExt {
		t.Errorf("Expected audio under base, got %s (base %s)", res.AudioPath, res.Base)
	}
	if _, err := os.Stat(res.AudioPath); err != nil {
		t.Errorf("Audio file missing: %v", err)
	}
	if _, err := os.Stat(res.ThumbnailPath); err != nil {
		t.Errorf("Thumbnail missing: %v", err)
	}
	if _, err := os.Stat(res.Base + ".info.json"); !os.IsNotExist(err) {
		t.Errorf("Expected leftover to be pruned, stat err = %v", err)
	}
	if _, err := os.Stat(res.Base + ".webm"); !os.IsNotExist(err) {
		t.Errorf("Expected original container to be renamed away, stat err = %v", err)
	}

	matches, _ := filepath.Glob(res.Base + ".*")
	if len(matches) != 2 {
		t.Errorf("Expected audio and thumbnail under base, got %v", matches)
	}

	res.Release()
	res.Release()
	matches, _ = filepath.Glob(res.Base + ".*")
	if len(matches) != 0 {
		t.Errorf("Expected all base files removed after release, got %v", matches)
	}
	assertDirEmpty(t, dir)
}

func TestFetchKeepsCanonicalAudio(t *testing.T) {
	ex := &fakeExtractor{title: "Song", audioExt: ".mp3", audioSize: 10}
	c, _ := setupCoordinator(t, ex, Options{})

	res, err := c.FetchByURL(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer res.Release()
	if res.AudioPath != res.Base+".mp3" {
		t.Errorf("Unexpected audio path %s", res.AudioPath)
	}
	if res.ThumbnailPath != "" {
		t.Errorf("Expected no thumbnail, got %s", res.ThumbnailPath)
	}
}

func TestFetchTranscodesWhenConfigured(t *testing.T) {
	ex := &fakeExtractor{title: "Song", audioSize: 100}
	tc := &fakeTranscoder{}
	c, dir := setupCoordinator(t, ex, Options{Transcoder: tc})

	res, err := c.FetchByURL(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if tc.calls.Load() != 1 {
		t.Errorf("Expected one transcode, got %d", tc.calls.Load())
	}
	data, err := os.ReadFile(res.AudioPath)
	if err != nil || string(data) != "mp3" {
		t.Errorf("Expected transcoded audio, got %q (%v)", data, err)
	}
	if _, err := os.Stat(res.Base + ".webm"); !os.IsNotExist(err) {
		t.Errorf("Expected source container removed, stat err = %v", err)
	}
	res.Release()
	assertDirEmpty(t, dir)
}

func TestFetchTranscodeFailureRenames(t *testing.T) {
	ex := &fakeExtractor{title: "Song", audioSize: 100}
	c, _ := setupCoordinator(t, ex, Options{Transcoder: &fakeTranscoder{err: errors.New("no ffmpeg")}})

	res, err := c.FetchByURL(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer res.Release()
	info, err := os.Stat(res.AudioPath)
	if err != nil || info.Size() != 100 {
		t.Errorf("Expected renamed original, got %v (%v)", info, err)
	}
}

func TestFetchDefaultsTitleAndUploader(t *testing.T) {
	ex := &fakeExtractor{audioSize: 10}
	c, _ := setupCoordinator(t, ex, Options{})

	res, err := c.FetchByURL(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer res.Release()
	if res.Title != DefaultTitle {
		t.Errorf("Expected default title, got %q", res.Title)
	}
}

func TestDurationExceededSkipsDownload(t *testing.T) {
	ex := &fakeExtractor{meta: &extractor.Metadata{Duration: 1200}}
	c, dir := setupCoordinator(t, ex, Options{MaxDuration: 900})

	_, err := c.FetchByURL(context.Background(), "https://example.com/long")
	if apperr.KindOf(err) != apperr.DurationExceeded {
		t.Fatalf("Expected DurationExceeded, got %v", err)
	}
	if !apperr.IsValidation(err) {
		t.Error("Expected duration failure to be a validation outcome")
	}
	if ex.calls.Load() != 0 {
		t.Errorf("Expected no download, got %d", ex.calls.Load())
	}
	assertDirEmpty(t, dir)
}

func TestDurationCheckedAfterDownloadWhenUnknown(t *testing.T) {
	ex := &fakeExtractor{duration: 1200, audioSize: 10}
	c, dir := setupCoordinator(t, ex, Options{MaxDuration: 900})

	_, err := c.FetchByURL(context.Background(), "https://example.com/long")
	if apperr.KindOf(err) != apperr.DurationExceeded {
		t.Fatalf("Expected DurationExceeded, got %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestSizeExceededPrecheck(t *testing.T) {
	ex := &fakeExtractor{meta: &extractor.Metadata{Duration: 100, EstimatedSize: 4096}}
	c, dir := setupCoordinator(t, ex, Options{MaxSize: 1024})

	_, err := c.FetchByURL(context.Background(), "https://example.com/big")
	if apperr.KindOf(err) != apperr.SizeExceeded || apperr.PhaseOf(err) != apperr.PhasePre {
		t.Fatalf("Expected SizeExceeded(pre), got %v", err)
	}
	if ex.calls.Load() != 0 {
		t.Errorf("Expected no download, got %d", ex.calls.Load())
	}
	assertDirEmpty(t, dir)
}

func TestSizeExceededPostCleansUp(t *testing.T) {
	ex := &fakeExtractor{audioSize: 2048, thumbnail: true}
	c, dir := setupCoordinator(t, ex, Options{MaxSize: 1024})

	_, err := c.FetchByURL(context.Background(), "https://example.com/big")
	if apperr.KindOf(err) != apperr.SizeExceeded || apperr.PhaseOf(err) != apperr.PhasePost {
		t.Fatalf("Expected SizeExceeded(post), got %v", err)
	}
	if !errors.Is(err, apperr.SizeExceededAt(apperr.PhasePost, 0, 0)) {
		t.Error("Expected errors.Is to match on kind and phase")
	}
	assertDirEmpty(t, dir)
}

func TestExtractionFailedCleansPartial(t *testing.T) {
	ex := &fakeExtractor{downloadErr: errors.New("HTTP Error 403")}
	c, dir := setupCoordinator(t, ex, Options{})

	_, err := c.FetchByURL(context.Background(), "https://example.com/x")
	if apperr.KindOf(err) != apperr.ExtractionFailed {
		t.Fatalf("Expected ExtractionFailed, got %v", err)
	}
	if apperr.IsValidation(err) {
		t.Error("Extraction failure must not be a validation outcome")
	}
	assertDirEmpty(t, dir)
}

func TestPrecheckFailureIsSkipped(t *testing.T) {
	ex := &fakeExtractor{metaErr: errors.New("unavailable"), audioSize: 10}
	c, _ := setupCoordinator(t, ex, Options{})

	res, err := c.FetchByURL(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("Expected fetch to proceed without precheck, got %v", err)
	}
	res.Release()
}

func TestProbeRejectsFileWithoutAudio(t *testing.T) {
	ex := &fakeExtractor{audioSize: 10}
	prober := fakeProber{err: apperr.Newf(apperr.NoAudioStream, "no audio stream found")}
	c, dir := setupCoordinator(t, ex, Options{Prober: prober})

	_, err := c.FetchByURL(context.Background(), "https://example.com/x")
	if apperr.KindOf(err) != apperr.NoAudioStream {
		t.Fatalf("Expected NoAudioStream, got %v", err)
	}
	assertDirEmpty(t, dir)
}

func TestProbeToolFailureIgnored(t *testing.T) {
	ex := &fakeExtractor{audioSize: 10}
	c, _ := setupCoordinator(t, ex, Options{Prober: fakeProber{err: errors.New("ffprobe: not found")}})

	res, err := c.FetchByURL(context.Background(), "https://example.com/x")
	if err != nil {
		t.Fatalf("Expected probe failure to be ignored, got %v", err)
	}
	res.Release()
}

func TestFetchByQuery(t *testing.T) {
	ex := &fakeExtractor{
		hits:      []models.MediaCandidate{{ExternalID: "a", Title: "A", URL: "https://www.youtube.com/watch?v=a"}},
		audioSize: 10,
	}
	c, _ := setupCoordinator(t, ex, Options{})

	res, err := c.FetchByQuery(context.Background(), "some song")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	defer res.Release()
	if res.URL != "https://www.youtube.com/watch?v=a" {
		t.Errorf("Expected top hit URL, got %s", res.URL)
	}
}

func TestFetchByQueryNoResults(t *testing.T) {
	ex := &fakeExtractor{}
	c, _ := setupCoordinator(t, ex, Options{})

	_, err := c.FetchByQuery(context.Background(), "no such song xyz123")
	if apperr.KindOf(err) != apperr.NoResults {
		t.Fatalf("Expected NoResults, got %v", err)
	}
	if ex.calls.Load() != 0 {
		t.Error("Expected no download without results")
	}
}

func TestSearchIsAdvisory(t *testing.T) {
	ex := &fakeExtractor{searchErr: errors.New("boom")}
	c, _ := setupCoordinator(t, ex, Options{})
	if got := c.Search(context.Background(), "x"); len(got) != 0 {
		t.Errorf("Expected empty result on failure, got %+v", got)
	}

	hits := make([]models.MediaCandidate, 15)
	ex = &fakeExtractor{hits: hits}
	c, _ = setupCoordinator(t, ex, Options{})
	if got := c.Search(context.Background(), "x"); len(got) != DefaultSearchLimit {
		t.Errorf("Expected %d results, got %d", DefaultSearchLimit, len(got))
	}
}

func TestGateBoundsConcurrentFetches(t *testing.T) {
	const limit = 2
	ex := &fakeExtractor{audioSize: 10, delay: 20 * time.Millisecond}
	c, dir := setupCoordinator(t, ex, Options{Limit: limit})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.FetchByURL(context.Background(), "https://example.com/x")
			if err != nil {
				t.Errorf("fetch: %v", err)
				return
			}
			res.Release()
		}()
	}
	wg.Wait()

	if got := ex.maxInFlight.Load(); got > limit {
		t.Errorf("Expected at most %d concurrent downloads, observed %d", limit, got)
	}
	if ex.calls.Load() != 10 {
		t.Errorf("Expected 10 downloads, got %d", ex.calls.Load())
	}
	assertDirEmpty(t, dir)
}

func TestCancelledWaiterHoldsNoSlot(t *testing.T) {
	ex := &fakeExtractor{
		audioSize: 10,
		hold:      make(chan struct{}),
		entered:   make(chan struct{}, 4),
	}
	c, _ := setupCoordinator(t, ex, Options{Limit: 1})

	first := make(chan error, 1)
	go func() {
		res, err := c.FetchByURL(context.Background(), "https://example.com/1")
		if err == nil {
			res.Release()
		}
		first <- err
	}()
	<-ex.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.FetchByURL(ctx, "https://example.com/2")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected waiter to give up, got %v", err)
	}

	ex.hold <- struct{}{}
	if err := <-first; err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	third := make(chan error, 1)
	go func() {
		res, err := c.FetchByURL(context.Background(), "https://example.com/3")
		if err == nil {
			res.Release()
		}
		third <- err
	}()
	select {
	case <-ex.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the slot to be free after the waiter was cancelled")
	}
	ex.hold <- struct{}{}
	if err := <-third; err != nil {
		t.Fatalf("third fetch: %v", err)
	}
	if ex.calls.Load() != 2 {
		t.Errorf("Expected the cancelled waiter never to download, got %d calls", ex.calls.Load())
	}
}

func TestAdmittedFetchIgnoresCancellation(t *testing.T) {
	ex := &fakeExtractor{audioSize: 10, hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	c, _ := setupCoordinator(t, ex, Options{Limit: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		res, err := c.FetchByURL(ctx, "https://example.com/1")
		if err == nil {
			res.Release()
		}
		done <- err
	}()
	<-ex.entered
	cancel()
	ex.hold <- struct{}{}

	if err := <-done; err != nil {
		t.Errorf("Expected admitted fetch to complete, got %v", err)
	}
}
