// lrclib.net implementation of [LyricsProvider].
//
// API reference: https://lrclib.net/docs
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/aidj/internal/shared"
)

const lyricsUserAgent = "aidj/1.0 (https://github.com/desertthunder/aidj)"

// lrclibResult is one lyrics record from the lrclib API.
type lrclibResult struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// LyricsService implements [LyricsProvider] against lrclib.net.
type LyricsService struct {
	baseURL    string
	httpClient *http.Client
}

// NewLyricsService creates an lrclib client from configured settings.
func NewLyricsService(cfg shared.LyricsConfig) *LyricsService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://lrclib.net/api"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LyricsService{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (l *LyricsService) Name() string {
	return "lrclib"
}

func (l *LyricsService) get(ctx context.Context, reqURL string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", lyricsUserAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return shared.ErrLyricsNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: lrclib status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// SearchLyrics resolves a (title, artist) pair to plain lyric text. An exact
// lookup runs first; when it misses, a fuzzy search takes the first hit with
// plain lyrics. Instrumental matches count as not found.
func (l *LyricsService) SearchLyrics(ctx context.Context, title, artist string) (string, error) {
	params := url.Values{}
	params.Set("artist_name", artist)
	params.Set("track_name", title)

	var exact lrclibResult
	err := l.get(ctx, fmt.Sprintf("%s/get?%s", l.baseURL, params.Encode()), &exact)
	if err == nil {
		if exact.Instrumental || exact.PlainLyrics == "" {
			return "", fmt.Errorf("%q by %q: %w", title, artist, shared.ErrLyricsNotFound)
		}
		return exact.PlainLyrics, nil
	}
	if !errors.Is(err, shared.ErrLyricsNotFound) {
		return "", err
	}

	search := url.Values{}
	search.Set("q", fmt.Sprintf("%s %s", title, artist))

	var results []lrclibResult
	if err := l.get(ctx, fmt.Sprintf("%s/search?%s", l.baseURL, search.Encode()), &results); err != nil {
		return "", err
	}
	for _, r := range results {
		if !r.Instrumental && r.PlainLyrics != "" {
			return r.PlainLyrics, nil
		}
	}
	return "", fmt.Errorf("%q by %q: %w", title, artist, shared.ErrLyricsNotFound)
}
