package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/aidj/internal/formatter"
	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/pipeline"
	"github.com/desertthunder/aidj/internal/repositories"
	"github.com/desertthunder/aidj/internal/services"
	"github.com/desertthunder/aidj/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// cliToken loads the stored OAuth token for the CLI session.
func cliToken(db *sql.DB) (*oauth2.Token, error) {
	session, err := repositories.NewSessionRepository(db).Get(cliSession)
	if err != nil {
		if errors.Is(err, shared.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: run 'aidj auth' first", shared.ErrNotAuthenticated)
		}
		return nil, err
	}
	return tokenFromJSON(session.TokenInfo())
}

// Recommend runs one full pipeline pass from the terminal.
func (r *Runner) Recommend(ctx context.Context, cmd *cli.Command) error {
	message := cmd.StringArg("message")
	if message == "" {
		return fmt.Errorf("%w: a request message is required", shared.ErrMissingArgument)
	}

	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	token, err := cliToken(db)
	if err != nil {
		return err
	}

	spotify, err := services.NewSpotifyService(config.Credentials.Spotify)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}
	groq, err := r.buildGroq(config)
	if err != nil {
		return fmt.Errorf("failed to create Groq service: %w", err)
	}

	catalog := spotify.WithToken(ctx, token)
	cache := repositories.NewTrackCacheRepository(db)

	profile, err := catalog.BuildProfile(ctx)
	if err != nil {
		r.logger.Warn("live profile unavailable, trying cached history", "error", err)
		if historical, herr := cache.HistoricalProfile("spotify"); herr == nil {
			profile = historical
		} else {
			profile = &models.ListenerProfile{Source: models.ProfileSourceAbsent}
		}
	}

	conversations := repositories.NewConversationRepository(db)
	recommendations := repositories.NewRecommendationRepository(db)

	history, err := conversations.History(cliSession, 10)
	if err != nil {
		r.logger.Warn("conversation history unavailable", "error", err)
	}
	past, err := recommendations.PastRequests(cliSession, 5)
	if err != nil {
		r.logger.Warn("recommendation history unavailable", "error", err)
	}

	var weather *models.WeatherContext
	if city := cmd.String("city"); city != "" && config.Credentials.Weather.APIKey != "" {
		if current, err := services.NewWeatherService(config.Credentials.Weather).Current(ctx, city); err == nil {
			weather = current
		} else {
			r.logger.Debug("weather lookup failed", "city", city, "error", err)
		}
	}

	engine := pipeline.NewEngine(pipeline.Deps{
		Catalog:     catalog,
		Recommender: groq,
		Lyrics:      services.NewLyricsService(config.Lyrics),
		Translator:  groq,
		Scorer:      groq,
		Explainer:   groq,
		Preview:     services.NewITunesService(),
		Cache:       cache,
	}, config.Pipeline, r.logger)

	batch, err := engine.Run(ctx, pipeline.Request{
		Message: message,
		Profile: profile,
		History: history,
		Weather: weather,
		Past:    past,
	})
	if err != nil {
		return fmt.Errorf("recommendation failed: %w", err)
	}

	if err := conversations.Append(models.NewConversation(0, cliSession, "user", message)); err != nil {
		r.logger.Warn("failed to persist user turn", "error", err)
	}
	if err := conversations.Append(models.NewConversation(0, cliSession, "assistant", batch.IntroText)); err != nil {
		r.logger.Warn("failed to persist assistant turn", "error", err)
	}
	if err := recommendations.Create(models.NewRecommendation(0, cliSession, batch)); err != nil {
		r.logger.Warn("failed to persist recommendation", "error", err)
	}

	format := cmd.String("format")
	if format == "pretty" || format == "" {
		return r.writePlain("%s", formatter.DefaultPalette().Render(batch))
	}

	written, err := formatter.WriteExport(batch, format, cmd.String("output"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Recommendations written to %s\n", written)
}
