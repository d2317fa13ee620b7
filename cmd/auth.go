package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/repositories"
	"github.com/desertthunder/aidj/internal/server"
	"github.com/desertthunder/aidj/internal/services"
	"github.com/desertthunder/aidj/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// cliSessionTTL keeps the terminal login alive well past the access token's
// own expiry; the stored refresh token covers the gap.
const cliSessionTTL = 30 * 24 * time.Hour

// Auth performs the OAuth2 authorization flow for terminal use.
//
// Starts a local HTTP server, opens the browser for consent, exchanges the
// code, and stores the token under the CLI session id.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	spotify, err := services.NewSpotifyService(config.Credentials.Spotify)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(config, spotify)
	if err != nil {
		return err
	}

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	payload, err := tokenJSON(token)
	if err != nil {
		return err
	}

	sessions := repositories.NewSessionRepository(db)
	session := models.NewSession(cliSession, payload, time.Now().Add(cliSessionTTL))
	if err := sessions.Save(session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("You can now use: aidj recommend \"songs for a rainy drive\"\n")

	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server.
func (r *Runner) doOAuth(config *shared.Config, spotify *services.SpotifyService) (*oauth2.Token, error) {
	state := shared.GenerateID()
	authURL := spotify.GetAuthURL(state)

	oauthHandler := server.NewOAuthHandler(spotify.OAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	host := config.Server.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Server.Port
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}
