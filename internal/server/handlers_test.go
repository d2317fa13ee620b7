package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/pipeline"
	"github.com/desertthunder/aidj/internal/ratelimit"
	"github.com/desertthunder/aidj/internal/repositories"
	"github.com/desertthunder/aidj/internal/services"
	"github.com/desertthunder/aidj/internal/shared"
	"golang.org/x/oauth2"
)

type stubSession struct {
	user       *services.SpotifyUser
	profile    *models.ListenerProfile
	profileErr error
}

func (s *stubSession) SearchTrack(ctx context.Context, title, artist string) (*models.ResolvedTrack, error) {
	return nil, shared.ErrTrackNotFound
}

func (s *stubSession) AudioFeaturesBatch(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error) {
	return map[string]models.AudioFeatures{}, nil
}

func (s *stubSession) UserProfile(ctx context.Context) (*services.SpotifyUser, error) {
	return s.user, nil
}

func (s *stubSession) BuildProfile(ctx context.Context) (*models.ListenerProfile, error) {
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	return s.profile, nil
}

type stubGateway struct {
	token       *oauth2.Token
	exchangeErr error
	session     *stubSession
	lastCode    string
}

func (g *stubGateway) GetAuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

func (g *stubGateway) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	g.lastCode = code
	return g.token, g.exchangeErr
}

func (g *stubGateway) Session(ctx context.Context, token *oauth2.Token) CatalogSession {
	return g.session
}

type stubRunner struct {
	batch   *models.RecommendationBatch
	err     error
	lastReq pipeline.Request
}

func (r *stubRunner) Run(ctx context.Context, req pipeline.Request) (*models.RecommendationBatch, error) {
	r.lastReq = req
	return r.batch, r.err
}

type stubAnalyzer struct {
	summary string
}

func (s *stubAnalyzer) AnalyzeProfile(ctx context.Context, profile *models.ListenerProfile) (string, error) {
	return s.summary, nil
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

type apiFixture struct {
	api             *API
	router          *BasicRouter
	gateway         *stubGateway
	runner          *stubRunner
	sessions        *repositories.SessionRepository
	conversations   *repositories.ConversationRepository
	recommendations *repositories.RecommendationRepository
	tracks          *repositories.TrackCacheRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := testDB(t)

	gateway := &stubGateway{
		token: &oauth2.Token{AccessToken: "access", RefreshToken: "refresh"},
		session: &stubSession{
			user:    &services.SpotifyUser{ID: "user1", DisplayName: "Test Listener"},
			profile: &models.ListenerProfile{Source: models.ProfileSourceLive, Genres: []string{"synthwave"}},
		},
	}
	runner := &stubRunner{
		batch: &models.RecommendationBatch{
			IntroText:     "Here you go",
			SourceRequest: "rainy night drive",
			Tracks: []models.ScoredTrack{
				{ResolvedTrack: models.ResolvedTrack{CatalogID: "sp1", Title: "Rain", Artist: "A"}, Position: 1, CombinedScore: 9},
			},
			Timestamp: time.Now(),
		},
	}

	fx := &apiFixture{
		gateway:         gateway,
		runner:          runner,
		sessions:        repositories.NewSessionRepository(db),
		conversations:   repositories.NewConversationRepository(db),
		recommendations: repositories.NewRecommendationRepository(db),
		tracks:          repositories.NewTrackCacheRepository(db),
	}
	fx.api = NewAPI(APIDeps{
		Gateway:         gateway,
		Runner:          func(catalog services.CatalogClient) Runner { return runner },
		Analyzer:        &stubAnalyzer{summary: "eclectic with a synthwave core"},
		Budget:          ratelimit.NewBudget(30, 6000),
		Sessions:        fx.sessions,
		Conversations:   fx.conversations,
		Recommendations: fx.recommendations,
		Tracks:          fx.tracks,
		FrontendURL:     "https://app.example.com",
		Logger:          shared.NewLogger(io.Discard),
	})
	fx.router = NewBasicRouter()
	fx.api.Register(fx.router)
	return fx
}

// authedSession seeds a live session row and returns its id.
func (fx *apiFixture) authedSession(t *testing.T) string {
	t.Helper()
	payload, err := json.Marshal(fx.gateway.token)
	if err != nil {
		t.Fatalf("failed to marshal token: %v", err)
	}
	id := shared.GenerateID()
	session := models.NewSession(id, string(payload), time.Now().Add(time.Hour))
	if err := fx.sessions.Save(session); err != nil {
		t.Fatalf("failed to save session: %v", err)
	}
	return id
}

func (fx *apiFixture) do(method, path, sessionID string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	fx := newAPIFixture(t)

	rec := fx.do(http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestAuthFlow(t *testing.T) {
	t.Run("Login Redirects With State", func(t *testing.T) {
		fx := newAPIFixture(t)

		rec := fx.do(http.MethodGet, "/auth/login", "", "")
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		location, err := url.Parse(rec.Header().Get("Location"))
		if err != nil || location.Query().Get("state") == "" {
			t.Errorf("expected a state parameter in %q", rec.Header().Get("Location"))
		}
	})

	t.Run("Callback Creates Session And Redirects", func(t *testing.T) {
		fx := newAPIFixture(t)

		login := fx.do(http.MethodGet, "/auth/login", "", "")
		location, _ := url.Parse(login.Header().Get("Location"))
		state := location.Query().Get("state")

		rec := fx.do(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), "", "")
		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
		}
		if fx.gateway.lastCode != "abc" {
			t.Errorf("expected code exchanged, got %q", fx.gateway.lastCode)
		}

		redirect, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("bad redirect url: %v", err)
		}
		sessionID := redirect.Query().Get("session_id")
		if redirect.Host != "app.example.com" || sessionID == "" {
			t.Fatalf("expected frontend redirect with session_id, got %q", rec.Header().Get("Location"))
		}

		stored, err := fx.sessions.Get(sessionID)
		if err != nil {
			t.Fatalf("expected persisted session, got %v", err)
		}
		var token oauth2.Token
		if err := json.Unmarshal([]byte(stored.TokenInfo()), &token); err != nil || token.AccessToken != "access" {
			t.Errorf("stored token does not round-trip: %v", err)
		}
	})

	t.Run("Callback Rejects Unknown State", func(t *testing.T) {
		fx := newAPIFixture(t)

		rec := fx.do(http.MethodGet, "/auth/callback?code=abc&state=forged", "", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for forged state, got %d", rec.Code)
		}
	})

	t.Run("State Is One Shot", func(t *testing.T) {
		fx := newAPIFixture(t)

		login := fx.do(http.MethodGet, "/auth/login", "", "")
		location, _ := url.Parse(login.Header().Get("Location"))
		state := location.Query().Get("state")

		first := fx.do(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), "", "")
		if first.Code != http.StatusFound {
			t.Fatalf("expected first redemption to pass, got %d", first.Code)
		}
		second := fx.do(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), "", "")
		if second.Code != http.StatusBadRequest {
			t.Errorf("expected replay rejected, got %d", second.Code)
		}
	})

	t.Run("Callback Surfaces Provider Error", func(t *testing.T) {
		fx := newAPIFixture(t)

		rec := fx.do(http.MethodGet, "/auth/callback?error=access_denied", "", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestMe(t *testing.T) {
	t.Run("Requires Session", func(t *testing.T) {
		fx := newAPIFixture(t)

		rec := fx.do(http.MethodGet, "/me", "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 without a session, got %d", rec.Code)
		}
	})

	t.Run("Returns User", func(t *testing.T) {
		fx := newAPIFixture(t)
		sessionID := fx.authedSession(t)

		rec := fx.do(http.MethodGet, "/me", sessionID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var user services.SpotifyUser
		if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil || user.ID != "user1" {
			t.Errorf("unexpected user payload %s", rec.Body.String())
		}
	})

	t.Run("Session Id Via Query Param", func(t *testing.T) {
		fx := newAPIFixture(t)
		sessionID := fx.authedSession(t)

		rec := fx.do(http.MethodGet, "/me?session_id="+sessionID, "", "")
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 via query param, got %d", rec.Code)
		}
	})
}

func TestProfileEndpoints(t *testing.T) {
	fx := newAPIFixture(t)
	sessionID := fx.authedSession(t)

	t.Run("Profile", func(t *testing.T) {
		rec := fx.do(http.MethodGet, "/me/profile", sessionID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var profile models.ListenerProfile
		if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil || len(profile.Genres) != 1 {
			t.Errorf("unexpected profile payload %s", rec.Body.String())
		}
	})

	t.Run("Analysis", func(t *testing.T) {
		rec := fx.do(http.MethodGet, "/me/profile/analysis", sessionID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "synthwave core") {
			t.Errorf("unexpected analysis payload %s", rec.Body.String())
		}
	})
}

func TestRecommend(t *testing.T) {
	t.Run("Happy Path Persists The Exchange", func(t *testing.T) {
		fx := newAPIFixture(t)
		sessionID := fx.authedSession(t)

		rec := fx.do(http.MethodPost, "/dj/recommend", sessionID, `{"message":"rainy night drive"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var batch models.RecommendationBatch
		if err := json.Unmarshal(rec.Body.Bytes(), &batch); err != nil {
			t.Fatalf("failed to decode batch: %v", err)
		}
		if batch.IntroText != "Here you go" || batch.Count() != 1 {
			t.Errorf("unexpected batch %s", rec.Body.String())
		}

		if fx.runner.lastReq.Message != "rainy night drive" {
			t.Errorf("runner got message %q", fx.runner.lastReq.Message)
		}
		if fx.runner.lastReq.Profile == nil || fx.runner.lastReq.Profile.Source != models.ProfileSourceLive {
			t.Error("runner should receive the built profile")
		}

		history, err := fx.conversations.History(sessionID, 10)
		if err != nil || len(history) != 2 {
			t.Fatalf("expected user and assistant turns persisted, got %d (%v)", len(history), err)
		}
		if history[0].Role != "user" || history[1].Role != "assistant" {
			t.Errorf("unexpected turn order %+v", history)
		}

		past, err := fx.recommendations.PastRequests(sessionID, 5)
		if err != nil || len(past) != 1 || past[0].TrackIDs[0] != "sp1" {
			t.Errorf("expected persisted recommendation, got %+v (%v)", past, err)
		}
	})

	t.Run("Replays History And Past Runs", func(t *testing.T) {
		fx := newAPIFixture(t)
		sessionID := fx.authedSession(t)

		first := fx.do(http.MethodPost, "/dj/recommend", sessionID, `{"message":"rainy night drive"}`)
		if first.Code != http.StatusOK {
			t.Fatalf("first run failed: %d", first.Code)
		}
		second := fx.do(http.MethodPost, "/dj/recommend", sessionID, `{"message":"more of the same"}`)
		if second.Code != http.StatusOK {
			t.Fatalf("second run failed: %d", second.Code)
		}

		if len(fx.runner.lastReq.History) != 2 {
			t.Errorf("expected 2 replayed turns, got %d", len(fx.runner.lastReq.History))
		}
		if len(fx.runner.lastReq.Past) != 1 {
			t.Errorf("expected 1 past run in the dedup window, got %d", len(fx.runner.lastReq.Past))
		}
	})

	t.Run("Profile Failure Falls Back To Cached History", func(t *testing.T) {
		fx := newAPIFixture(t)
		fx.gateway.session.profileErr = shared.ErrAPIRequest
		sessionID := fx.authedSession(t)

		cached := models.NewCachedTrack(0, "spotify", models.ResolvedTrack{
			CatalogID: "sp1", Title: "Rain", Artist: "A", Popularity: 40,
		})
		if err := fx.tracks.Upsert(cached); err != nil {
			t.Fatalf("failed to seed track cache: %v", err)
		}

		rec := fx.do(http.MethodPost, "/dj/recommend", sessionID, `{"message":"rainy night drive"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("profile failure must not block recommendations, got %d", rec.Code)
		}
		if fx.runner.lastReq.Profile.Source != models.ProfileSourceHistorical {
			t.Errorf("expected historical profile, got %q", fx.runner.lastReq.Profile.Source)
		}
		if len(fx.runner.lastReq.Profile.TopTracks) != 1 || fx.runner.lastReq.Profile.TopTracks[0].Name != "Rain" {
			t.Errorf("expected the cached track in the rebuilt profile, got %+v", fx.runner.lastReq.Profile.TopTracks)
		}
	})

	t.Run("Profile Failure With Empty Cache Degrades To Absent", func(t *testing.T) {
		fx := newAPIFixture(t)
		fx.gateway.session.profileErr = shared.ErrAPIRequest
		sessionID := fx.authedSession(t)

		rec := fx.do(http.MethodPost, "/dj/recommend", sessionID, `{"message":"rainy night drive"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("profile failure must not block recommendations, got %d", rec.Code)
		}
		if fx.runner.lastReq.Profile.Source != models.ProfileSourceAbsent {
			t.Errorf("expected absent profile, got %q", fx.runner.lastReq.Profile.Source)
		}
	})

	t.Run("Requires Message", func(t *testing.T) {
		fx := newAPIFixture(t)
		sessionID := fx.authedSession(t)

		rec := fx.do(http.MethodPost, "/dj/recommend", sessionID, `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for empty message, got %d", rec.Code)
		}
	})

	t.Run("Maps Pipeline Aborts", func(t *testing.T) {
		fx := newAPIFixture(t)
		sessionID := fx.authedSession(t)

		fx.runner.err = shared.ErrNoResolvedTracks
		if rec := fx.do(http.MethodPost, "/dj/recommend", sessionID, `{"message":"x"}`); rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502 for zero resolved, got %d", rec.Code)
		}

		fx.runner.err = shared.ErrModelResponse
		if rec := fx.do(http.MethodPost, "/dj/recommend", sessionID, `{"message":"x"}`); rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502 for unusable model output, got %d", rec.Code)
		}

		fx.runner.err = shared.ErrRateLimited
		if rec := fx.do(http.MethodPost, "/dj/recommend", sessionID, `{"message":"x"}`); rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429 for rate limit, got %d", rec.Code)
		}
	})

	t.Run("Rejects GET", func(t *testing.T) {
		fx := newAPIFixture(t)

		rec := fx.do(http.MethodGet, "/dj/recommend", "", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestChatClear(t *testing.T) {
	fx := newAPIFixture(t)
	sessionID := fx.authedSession(t)

	if rec := fx.do(http.MethodPost, "/dj/recommend", sessionID, `{"message":"rainy night drive"}`); rec.Code != http.StatusOK {
		t.Fatalf("seed run failed: %d", rec.Code)
	}

	rec := fx.do(http.MethodPost, "/chat/clear", sessionID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	history, err := fx.conversations.History(sessionID, 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected cleared history, got %d turns", len(history))
	}
}

func TestRateLimitStatus(t *testing.T) {
	fx := newAPIFixture(t)

	rec := fx.do(http.MethodGet, "/ratelimit", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var usage ratelimit.Usage
	if err := json.Unmarshal(rec.Body.Bytes(), &usage); err != nil {
		t.Fatalf("failed to decode usage: %v", err)
	}
	if usage.MaxRequests != 30 || usage.MaxTokens != 6000 {
		t.Errorf("unexpected usage %+v", usage)
	}
}
