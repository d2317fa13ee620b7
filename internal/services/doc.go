// Package services implements clients for the external collaborators of the
// recommendation pipeline behind narrow capability interfaces.
//
// # Capability Interfaces
//
// The pipeline depends only on the interfaces in services.go, never on a
// provider's wire format. One concrete client may satisfy several
// capabilities: [GroqService] implements [Recommender], [Translator],
// [RelevanceScorer], [ExplanationGenerator], and [ProfileAnalyzer] on top of
// a single chat-completions endpoint.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] automatically refreshes expired tokens using the refresh token.
// Beyond catalog search it builds the listener profile: top tracks, top
// artists, genre union, and the average audio-feature vector over tracks
// that have one.
//
// # Groq Implementation
//
// [GroqService] talks to an OpenAI-compatible chat-completions endpoint.
// Every call funnels through a shared [ratelimit.Budget] so concurrent
// pipeline runs respect the provider's per-minute request and token quotas.
// Batch methods (translation, relevance scoring) cover all items in one
// call; that batching boundary is an architectural seam, not an
// optimization.
//
// # Lyrics, Preview, Weather
//
// [LyricsService] queries the lrclib.net JSON API. [ITunesService] fetches
// 30-second preview URLs when the catalog has none. [WeatherService] reads
// current conditions from OpenWeather. All three are optional side-signals:
// their failures degrade to defaults and never abort a pipeline run.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : OAuth token expired, reauthorization needed
//   - [shared.ErrAPIRequest] : HTTP request failed
//   - [shared.ErrTrackNotFound] : catalog search produced no match
//   - [shared.ErrLyricsNotFound] : lyrics provider produced no match
package services
