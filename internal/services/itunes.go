// iTunes Search API implementation of [PreviewProvider].
//
// The catalog stopped returning preview URLs for many tracks, so the player
// falls back to iTunes 30-second previews. The endpoint needs no
// authentication: https://performance-partners.apple.com/search-api
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/aidj/internal/shared"
)

const itunesSearchURL = "https://itunes.apple.com/search"

// ITunesService implements [PreviewProvider] against the iTunes Search API.
type ITunesService struct {
	baseURL    string
	httpClient *http.Client
}

// NewITunesService creates an iTunes preview client. The short timeout keeps
// a slow fallback from stalling track resolution.
func NewITunesService() *ITunesService {
	return &ITunesService{
		baseURL:    itunesSearchURL,
		httpClient: &http.Client{Timeout: 3 * time.Second},
	}
}

func (i *ITunesService) Name() string {
	return "iTunes"
}

// PreviewURL looks up a 30-second preview for the track. Only the primary
// artist goes into the query; comma-joined artist lists hurt match rates.
// Returns [shared.ErrTrackNotFound] when iTunes has no preview.
func (i *ITunesService) PreviewURL(ctx context.Context, title, artist string) (string, error) {
	primary := artist
	if idx := strings.Index(artist, ","); idx != -1 {
		primary = strings.TrimSpace(artist[:idx])
	}

	params := url.Values{}
	params.Set("term", fmt.Sprintf("%s %s", primary, title))
	params.Set("media", "music")
	params.Set("entity", "song")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: itunes status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var result struct {
		ResultCount int `json:"resultCount"`
		Results     []struct {
			PreviewURL string `json:"previewUrl"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if result.ResultCount == 0 || len(result.Results) == 0 || result.Results[0].PreviewURL == "" {
		return "", fmt.Errorf("%q by %q: %w", title, artist, shared.ErrTrackNotFound)
	}
	return result.Results[0].PreviewURL, nil
}
