// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/services"
	"github.com/desertthunder/aidj/internal/shared"
)

// StubCatalog is a test double for [services.CatalogClient] backed by a
// fixed track table keyed by "title|artist".
type StubCatalog struct {
	Tracks   map[string]*models.ResolvedTrack
	Features map[string]models.AudioFeatures
	Err      error
}

func (s *StubCatalog) SearchTrack(ctx context.Context, title, artist string) (*models.ResolvedTrack, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if t, ok := s.Tracks[title+"|"+artist]; ok {
		copied := *t
		return &copied, nil
	}
	if t, ok := s.Tracks[title+"|"]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, shared.ErrTrackNotFound
}

func (s *StubCatalog) AudioFeaturesBatch(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := map[string]models.AudioFeatures{}
	for _, id := range trackIDs {
		if f, ok := s.Features[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

// StubRecommender is a test double for [services.Recommender] returning a
// canned raw response.
type StubRecommender struct {
	Response string
	Err      error
	LastReq  services.RecommendRequest
}

func (s *StubRecommender) Recommend(ctx context.Context, req services.RecommendRequest) (string, error) {
	s.LastReq = req
	return s.Response, s.Err
}

// StubLyrics is a test double for [services.LyricsProvider] keyed by title.
type StubLyrics struct {
	Lyrics map[string]string
	Err    error
}

func (s *StubLyrics) SearchLyrics(ctx context.Context, title, artist string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if text, ok := s.Lyrics[title]; ok {
		return text, nil
	}
	return "", shared.ErrLyricsNotFound
}

// StubTranslator is a test double for [services.Translator].
type StubTranslator struct {
	Results []services.TranslationResult
	Err     error
	Called  int
}

func (s *StubTranslator) TranslateBatch(ctx context.Context, items []services.TranslationItem) ([]services.TranslationResult, error) {
	s.Called++
	return s.Results, s.Err
}

// StubScorer is a test double for [services.RelevanceScorer].
type StubScorer struct {
	Scores map[string]int
	Err    error
	Called int
}

func (s *StubScorer) ScoreBatch(ctx context.Context, request string, scale int, items []services.RelevanceItem) (map[string]int, error) {
	s.Called++
	return s.Scores, s.Err
}

// StubExplainer is a test double for [services.ExplanationGenerator].
type StubExplainer struct {
	Result *services.Explanation
	Err    error
	Called int
}

func (s *StubExplainer) Explain(ctx context.Context, req services.ExplainRequest) (*services.Explanation, error) {
	s.Called++
	if s.Result == nil && s.Err == nil {
		return &services.Explanation{Text: "fits the request"}, nil
	}
	return s.Result, s.Err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
