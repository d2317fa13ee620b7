// Spotify implementation of [CatalogClient] plus listener-profile building.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// profileTimeRange is the window for top-artist and top-track queries.
const profileTimeRange = "medium_term"

// maxProfileGenres caps the genre union; past that point extra genres add
// prompt length without adding taste signal.
const maxProfileGenres = 20

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	Popularity   int             `json:"popularity"`
	PreviewURL   string          `json:"preview_url"`
	ExternalURLs externalURLs    `json:"external_urls"`
	URI          string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Popularity int            `json:"popularity"`
	Images     []SpotifyImage `json:"images"`
	URI        string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyAudioFeatures represents the analysis vector of one track.
type SpotifyAudioFeatures struct {
	ID           string  `json:"id"`
	Energy       float64 `json:"energy"`
	Danceability float64 `json:"danceability"`
	Valence      float64 `json:"valence"`
	Tempo        float64 `json:"tempo"`
}

type spotifyPaging[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

type searchResponse struct {
	Tracks spotifyPaging[SpotifyTrack] `json:"tracks"`
}

// SpotifyService implements [CatalogClient] and builds live listener profiles.
// Uses [oauth2] for authentication with automatic token refresh.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	country    string
}

// NewSpotifyService creates a Spotify service from configured credentials.
func NewSpotifyService(cfg shared.SpotifyConfig) (*SpotifyService, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("spotify client id and secret: %w", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://localhost:8080/auth/callback"
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"user-top-read",
			"user-read-recently-played",
			"user-library-read",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token without mutating the
// service. The server flow stores the token per session and builds a
// session-scoped client with [SpotifyService.WithToken].
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// WithToken returns a copy of the service authenticated with the given token.
// The underlying [oauth2.Client] refreshes expired tokens transparently.
func (s *SpotifyService) WithToken(ctx context.Context, token *oauth2.Token) *SpotifyService {
	return &SpotifyService{
		config:     s.config,
		token:      token,
		httpClient: s.config.Client(ctx, token),
	}
}

// Authenticate exchanges an authorization code and binds the resulting token
// to this service instance. Used by the CLI flow where one user owns the
// process.
func (s *SpotifyService) Authenticate(ctx context.Context, code string) error {
	token, err := s.Exchange(ctx, code)
	if err != nil {
		return err
	}
	s.token = token
	s.httpClient = s.config.Client(ctx, token)
	return nil
}

// Token returns the current OAuth token for persistence, or nil.
func (s *SpotifyService) Token() *oauth2.Token {
	return s.token
}

// OAuthConfig exposes the underlying [oauth2.Config] for callback handlers.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// doRequest performs an authenticated GET against the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result interface{}) error {
	if s.token == nil {
		return fmt.Errorf("call Authenticate or WithToken first: %w", shared.ErrNotAuthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotifyBaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile. The user's
// country is remembered and applied as the market on later searches.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", &user); err != nil {
		return nil, err
	}
	s.country = user.Country
	return &user, nil
}

// Track retrieves a single track by ID.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*SpotifyTrack, error) {
	var track SpotifyTrack
	if err := s.doRequest(ctx, fmt.Sprintf("/tracks/%s", trackID), &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// SeveralTracks retrieves multiple tracks by their IDs (up to 50).
func (s *SpotifyService) SeveralTracks(ctx context.Context, trackIDs []string) ([]SpotifyTrack, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("no track IDs provided: %w", shared.ErrMissingArgument)
	}
	if len(trackIDs) > 50 {
		return nil, fmt.Errorf("maximum 50 track IDs allowed: %w", shared.ErrInvalidArgument)
	}

	endpoint := fmt.Sprintf("/tracks?ids=%s", url.QueryEscape(strings.Join(trackIDs, ",")))

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// searchOnce runs one search query and returns the first track hit, or nil.
func (s *SpotifyService) searchOnce(ctx context.Context, query string) (*SpotifyTrack, error) {
	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=1", url.QueryEscape(query))
	if s.country != "" {
		endpoint += "&market=" + url.QueryEscape(s.country)
	}

	var response searchResponse
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	if len(response.Tracks.Items) == 0 {
		return nil, nil
	}
	return &response.Tracks.Items[0], nil
}

// SearchTrack resolves a (title, artist) pair against the catalog. The first
// query filters on both fields; if that returns nothing, a title-only query
// runs, since model suggestions often carry slightly wrong artist names.
// Returns [shared.ErrTrackNotFound] when both queries come back empty.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (*models.ResolvedTrack, error) {
	hit, err := s.searchOnce(ctx, fmt.Sprintf("track:%s artist:%s", title, artist))
	if err != nil {
		return nil, err
	}
	if hit == nil {
		hit, err = s.searchOnce(ctx, fmt.Sprintf("track:%s", title))
		if err != nil {
			return nil, err
		}
	}
	if hit == nil {
		return nil, fmt.Errorf("%q by %q: %w", title, artist, shared.ErrTrackNotFound)
	}
	return resolvedFromSpotify(hit), nil
}

func resolvedFromSpotify(t *SpotifyTrack) *models.ResolvedTrack {
	resolved := &models.ResolvedTrack{
		CatalogID:   t.ID,
		Title:       t.Name,
		Album:       t.Album.Name,
		DurationMS:  t.DurationMS,
		Popularity:  t.Popularity,
		PreviewURL:  t.PreviewURL,
		ExternalURL: t.ExternalURLs.Spotify,
	}
	names := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		names[i] = a.Name
	}
	resolved.Artist = strings.Join(names, ", ")
	if len(t.Album.Images) > 0 {
		resolved.AlbumImageURL = t.Album.Images[0].URL
	}
	return resolved
}

// AudioFeaturesBatch fetches feature vectors for up to 100 tracks in one
// call. Tracks the API returns null for are absent from the map.
func (s *SpotifyService) AudioFeaturesBatch(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error) {
	if len(trackIDs) == 0 {
		return map[string]models.AudioFeatures{}, nil
	}
	if len(trackIDs) > 100 {
		return nil, fmt.Errorf("maximum 100 track IDs allowed: %w", shared.ErrInvalidArgument)
	}

	endpoint := fmt.Sprintf("/audio-features?ids=%s", url.QueryEscape(strings.Join(trackIDs, ",")))

	var response struct {
		AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
	}
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	features := make(map[string]models.AudioFeatures, len(response.AudioFeatures))
	for _, f := range response.AudioFeatures {
		if f == nil {
			continue
		}
		features[f.ID] = models.AudioFeatures{
			Energy:       f.Energy,
			Danceability: f.Danceability,
			Valence:      f.Valence,
		}
	}
	return features, nil
}

// TopArtists retrieves the user's top artists over the profile window.
func (s *SpotifyService) TopArtists(ctx context.Context, limit int) ([]SpotifyArtist, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	endpoint := fmt.Sprintf("/me/top/artists?limit=%d&time_range=%s", limit, profileTimeRange)

	var response spotifyPaging[SpotifyArtist]
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// TopTracks retrieves the user's top tracks over the profile window.
func (s *SpotifyService) TopTracks(ctx context.Context, limit int) ([]SpotifyTrack, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	endpoint := fmt.Sprintf("/me/top/tracks?limit=%d&time_range=%s", limit, profileTimeRange)

	var response spotifyPaging[SpotifyTrack]
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// BuildProfile assembles a live listener profile: top tracks, top artists,
// the genre union across top artists, and the mean audio-feature vector over
// top tracks that have one. A user with listening history but no feature
// vectors still gets a profile; AudioFeatureAvg stays nil.
func (s *SpotifyService) BuildProfile(ctx context.Context) (*models.ListenerProfile, error) {
	artists, err := s.TopArtists(ctx, 20)
	if err != nil {
		return nil, err
	}
	tracks, err := s.TopTracks(ctx, 20)
	if err != nil {
		return nil, err
	}

	profile := &models.ListenerProfile{Source: models.ProfileSourceLive}

	seen := map[string]bool{}
	for _, a := range artists {
		profile.TopArtists = append(profile.TopArtists, models.ProfileArtist{Name: a.Name, Popularity: a.Popularity})
		for _, g := range a.Genres {
			if len(profile.Genres) >= maxProfileGenres {
				break
			}
			if !seen[g] {
				seen[g] = true
				profile.Genres = append(profile.Genres, g)
			}
		}
	}

	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		pt := models.ProfileTrack{Name: t.Name}
		if len(t.Artists) > 0 {
			pt.Artist = t.Artists[0].Name
		}
		profile.TopTracks = append(profile.TopTracks, pt)
		ids = append(ids, t.ID)
	}

	if len(ids) > 0 {
		// Feature vectors are a nice-to-have; deprecated upstream for
		// newer apps, so a failure here degrades instead of aborting.
		features, err := s.AudioFeaturesBatch(ctx, ids)
		if err == nil && len(features) > 0 {
			var sum models.AudioFeatures
			n := 0
			for _, f := range features {
				sum.Energy += f.Energy
				sum.Danceability += f.Danceability
				sum.Valence += f.Valence
				n++
			}
			profile.AudioFeatureAvg = &models.AudioFeatures{
				Energy:       sum.Energy / float64(n),
				Danceability: sum.Danceability / float64(n),
				Valence:      sum.Valence / float64(n),
			}
		}
	}

	return profile, nil
}
