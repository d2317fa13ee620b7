package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/pipeline"
	"github.com/desertthunder/aidj/internal/ratelimit"
	"github.com/desertthunder/aidj/internal/repositories"
	"github.com/desertthunder/aidj/internal/services"
	"github.com/desertthunder/aidj/internal/shared"
	"golang.org/x/oauth2"
)

// sessionTTL bounds how long a browser session stays valid. The stored
// refresh token keeps the catalog token itself fresh within that window.
const sessionTTL = 24 * time.Hour

// stateTTL bounds how long an issued OAuth state parameter stays redeemable.
const stateTTL = 10 * time.Minute

const historyWindow = 10

const dedupWindowRuns = 5

// CatalogSession is a per-listener catalog client. Satisfied by
// services.SpotifyService after WithToken.
type CatalogSession interface {
	services.CatalogClient
	UserProfile(ctx context.Context) (*services.SpotifyUser, error)
	BuildProfile(ctx context.Context) (*models.ListenerProfile, error)
}

// SpotifyGateway is the catalog-side auth surface the API needs: issue an
// authorization URL, redeem a code, and open a token-scoped session.
type SpotifyGateway interface {
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Session(ctx context.Context, token *oauth2.Token) CatalogSession
}

// NewSpotifyGateway wraps a SpotifyService as a [SpotifyGateway].
func NewSpotifyGateway(svc *services.SpotifyService) SpotifyGateway {
	return spotifyGateway{svc: svc}
}

type spotifyGateway struct {
	svc *services.SpotifyService
}

func (g spotifyGateway) GetAuthURL(state string) string {
	return g.svc.GetAuthURL(state)
}

func (g spotifyGateway) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return g.svc.Exchange(ctx, code)
}

func (g spotifyGateway) Session(ctx context.Context, token *oauth2.Token) CatalogSession {
	return g.svc.WithToken(ctx, token)
}

// Runner executes one recommendation pipeline pass.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*models.RecommendationBatch, error)
}

// RunnerFactory builds a Runner around a session-scoped catalog client. The
// rest of the pipeline's collaborators are closed over by the factory.
type RunnerFactory func(catalog services.CatalogClient) Runner

// APIDeps are the collaborators of the JSON API.
type APIDeps struct {
	Gateway         SpotifyGateway
	Runner          RunnerFactory
	Analyzer        services.ProfileAnalyzer
	Weather         services.WeatherProvider
	Budget          *ratelimit.Budget
	Sessions        *repositories.SessionRepository
	Conversations   *repositories.ConversationRepository
	Recommendations *repositories.RecommendationRepository
	Tracks          *repositories.TrackCacheRepository
	FrontendURL     string
	Logger          *log.Logger
}

// API holds the handlers for the recommendation web service.
type API struct {
	gateway         SpotifyGateway
	runner          RunnerFactory
	analyzer        services.ProfileAnalyzer
	weather         services.WeatherProvider
	budget          *ratelimit.Budget
	sessions        *repositories.SessionRepository
	conversations   *repositories.ConversationRepository
	recommendations *repositories.RecommendationRepository
	tracks          *repositories.TrackCacheRepository
	frontendURL     string
	logger          *log.Logger

	mu     sync.Mutex
	states map[string]time.Time
}

// NewAPI creates the API handler set.
func NewAPI(deps APIDeps) *API {
	return &API{
		gateway:         deps.Gateway,
		runner:          deps.Runner,
		analyzer:        deps.Analyzer,
		weather:         deps.Weather,
		budget:          deps.Budget,
		sessions:        deps.Sessions,
		conversations:   deps.Conversations,
		recommendations: deps.Recommendations,
		tracks:          deps.Tracks,
		frontendURL:     deps.FrontendURL,
		logger:          deps.Logger,
		states:          map[string]time.Time{},
	}
}

// Register attaches every API route to the router.
func (a *API) Register(r Router) {
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(a.handleHealth))
	r.Handle(http.MethodGet, "/auth/login", http.HandlerFunc(a.handleAuthLogin))
	r.Handle(http.MethodGet, "/auth/callback", http.HandlerFunc(a.handleAuthCallback))
	r.Handle(http.MethodGet, "/me", http.HandlerFunc(a.handleMe))
	r.Handle(http.MethodGet, "/me/profile", http.HandlerFunc(a.handleProfile))
	r.Handle(http.MethodGet, "/me/profile/analysis", http.HandlerFunc(a.handleAnalysis))
	r.Handle(http.MethodPost, "/dj/recommend", http.HandlerFunc(a.handleRecommend))
	r.Handle(http.MethodPost, "/chat/clear", http.HandlerFunc(a.handleChatClear))
	r.Handle(http.MethodGet, "/ratelimit", http.HandlerFunc(a.handleRateLimit))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAuthLogin issues a one-shot state token and redirects to the
// catalog's consent page.
func (a *API) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()

	a.mu.Lock()
	for s, issued := range a.states {
		if time.Since(issued) > stateTTL {
			delete(a.states, s)
		}
	}
	a.states[state] = time.Now()
	a.mu.Unlock()

	http.Redirect(w, r, a.gateway.GetAuthURL(state), http.StatusFound)
}

func (a *API) redeemState(state string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	issued, ok := a.states[state]
	if !ok {
		return false
	}
	delete(a.states, state)
	return time.Since(issued) <= stateTTL
}

// handleAuthCallback redeems the authorization code, persists the token
// under a fresh session id, and hands the browser back to the frontend.
func (a *API) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("authorization failed: %s", errParam))
		return
	}
	if !a.redeemState(query.Get("state")) {
		writeError(w, http.StatusBadRequest, "invalid state parameter")
		return
	}
	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := a.gateway.Exchange(r.Context(), code)
	if err != nil {
		a.logger.Error("token exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	if purged, err := a.sessions.PurgeExpired(); err == nil && purged > 0 {
		a.logger.Debug("purged expired sessions", "count", purged)
	}

	payload, err := json.Marshal(token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to serialize token")
		return
	}

	sessionID := shared.GenerateID()
	session := models.NewSession(sessionID, string(payload), time.Now().Add(sessionTTL))
	if err := a.sessions.Save(session); err != nil {
		a.logger.Error("session save failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to persist session")
		return
	}

	if a.frontendURL == "" {
		writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
		return
	}

	redirect, err := url.Parse(a.frontendURL)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID})
		return
	}
	values := redirect.Query()
	values.Set("session_id", sessionID)
	redirect.RawQuery = values.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

// session resolves the request's session id (header first, query fallback)
// to its stored token.
func (a *API) session(r *http.Request) (string, *oauth2.Token, error) {
	id := r.Header.Get("X-Session-ID")
	if id == "" {
		id = r.URL.Query().Get("session_id")
	}
	if id == "" {
		return "", nil, shared.ErrNotAuthenticated
	}

	stored, err := a.sessions.Get(id)
	if err != nil {
		return "", nil, err
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(stored.TokenInfo()), &token); err != nil {
		return "", nil, fmt.Errorf("corrupt session token: %w", err)
	}
	return id, &token, nil
}

// authed wraps a handler with session resolution and opens a token-scoped
// catalog session for it.
func (a *API) authed(next func(w http.ResponseWriter, r *http.Request, sessionID string, catalog CatalogSession)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, token, err := a.session(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "valid session required")
			return
		}
		next(w, r, id, a.gateway.Session(r.Context(), token))
	}
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	a.authed(func(w http.ResponseWriter, r *http.Request, _ string, catalog CatalogSession) {
		user, err := catalog.UserProfile(r.Context())
		if err != nil {
			a.serviceError(w, "user lookup failed", err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	})(w, r)
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	a.authed(func(w http.ResponseWriter, r *http.Request, _ string, catalog CatalogSession) {
		profile, err := catalog.BuildProfile(r.Context())
		if err != nil {
			a.serviceError(w, "profile build failed", err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	})(w, r)
}

func (a *API) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	a.authed(func(w http.ResponseWriter, r *http.Request, _ string, catalog CatalogSession) {
		profile, err := catalog.BuildProfile(r.Context())
		if err != nil {
			a.serviceError(w, "profile build failed", err)
			return
		}
		analysis, err := a.analyzer.AnalyzeProfile(r.Context(), profile)
		if err != nil {
			a.serviceError(w, "profile analysis failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
	})(w, r)
}

type recommendPayload struct {
	Message string `json:"message"`
	City    string `json:"city,omitempty"`
}

// handleRecommend runs the full pipeline for one chat message and persists
// the exchange. Persistence failures are logged, never surfaced: the listener
// already has their tracks.
func (a *API) handleRecommend(w http.ResponseWriter, r *http.Request) {
	a.authed(func(w http.ResponseWriter, r *http.Request, sessionID string, catalog CatalogSession) {
		var payload recommendPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if payload.Message == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}
		ctx := r.Context()

		profile, err := catalog.BuildProfile(ctx)
		if err != nil {
			a.logger.Warn("live profile unavailable, trying cached history", "error", err)
			profile = a.historicalProfile()
		}

		history, err := a.conversations.History(sessionID, historyWindow)
		if err != nil {
			a.logger.Warn("conversation history unavailable", "error", err)
		}
		past, err := a.recommendations.PastRequests(sessionID, dedupWindowRuns)
		if err != nil {
			a.logger.Warn("recommendation history unavailable", "error", err)
		}

		var weather *models.WeatherContext
		if payload.City != "" && a.weather != nil {
			if current, err := a.weather.Current(ctx, payload.City); err == nil {
				weather = current
			} else {
				a.logger.Debug("weather lookup failed", "city", payload.City, "error", err)
			}
		}

		batch, err := a.runner(catalog).Run(ctx, pipeline.Request{
			Message: payload.Message,
			Profile: profile,
			History: history,
			Weather: weather,
			Past:    past,
		})
		if err != nil {
			a.pipelineError(w, err)
			return
		}

		a.persistRun(sessionID, payload.Message, batch)
		writeJSON(w, http.StatusOK, batch)
	})(w, r)
}

// historicalProfile rebuilds a taste signal from cached resolutions; an
// empty cache degrades to an absent profile.
func (a *API) historicalProfile() *models.ListenerProfile {
	if a.tracks != nil {
		if profile, err := a.tracks.HistoricalProfile("spotify"); err == nil {
			return profile
		}
	}
	return &models.ListenerProfile{Source: models.ProfileSourceAbsent}
}

func (a *API) persistRun(sessionID, message string, batch *models.RecommendationBatch) {
	if err := a.conversations.Append(models.NewConversation(0, sessionID, "user", message)); err != nil {
		a.logger.Warn("failed to persist user turn", "error", err)
	}
	if err := a.conversations.Append(models.NewConversation(0, sessionID, "assistant", batch.IntroText)); err != nil {
		a.logger.Warn("failed to persist assistant turn", "error", err)
	}
	if err := a.recommendations.Create(models.NewRecommendation(0, sessionID, batch)); err != nil {
		a.logger.Warn("failed to persist recommendation", "error", err)
	}
}

func (a *API) handleChatClear(w http.ResponseWriter, r *http.Request) {
	a.authed(func(w http.ResponseWriter, r *http.Request, sessionID string, _ CatalogSession) {
		if err := a.conversations.Clear(sessionID); err != nil {
			a.serviceError(w, "failed to clear conversation", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	})(w, r)
}

func (a *API) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	if a.budget == nil {
		writeError(w, http.StatusNotFound, "no budget configured")
		return
	}
	writeJSON(w, http.StatusOK, a.budget.Status())
}

func (a *API) serviceError(w http.ResponseWriter, message string, err error) {
	a.logger.Error(message, "error", err)
	switch {
	case errors.Is(err, shared.ErrTokenExpired), errors.Is(err, shared.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, message)
	case errors.Is(err, shared.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, message)
	default:
		writeError(w, http.StatusBadGateway, message)
	}
}

// pipelineError maps the pipeline's two abort classes, everything else is an
// upstream failure.
func (a *API) pipelineError(w http.ResponseWriter, err error) {
	a.logger.Error("pipeline run failed", "error", err)
	switch {
	case errors.Is(err, shared.ErrNoResolvedTracks):
		writeError(w, http.StatusBadGateway, "no suggestions could be verified against the catalog")
	case errors.Is(err, shared.ErrModelResponse):
		writeError(w, http.StatusBadGateway, "the model returned an unusable response")
	case errors.Is(err, shared.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "model API rate limit exceeded")
	case errors.Is(err, shared.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "catalog token expired")
	default:
		writeError(w, http.StatusInternalServerError, "recommendation failed")
	}
}
