package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/aidj/internal/pipeline"
	"github.com/desertthunder/aidj/internal/repositories"
	"github.com/desertthunder/aidj/internal/server"
	"github.com/desertthunder/aidj/internal/services"
	"github.com/desertthunder/aidj/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the recommendation HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	spotify, err := services.NewSpotifyService(config.Credentials.Spotify)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}
	groq, err := r.buildGroq(config)
	if err != nil {
		return fmt.Errorf("failed to create Groq service: %w", err)
	}

	lyrics := services.NewLyricsService(config.Lyrics)
	itunes := services.NewITunesService()

	var weather services.WeatherProvider
	if config.Credentials.Weather.APIKey != "" {
		weather = services.NewWeatherService(config.Credentials.Weather)
	} else {
		r.logger.Info("no weather API key configured, weather context disabled")
	}

	cache := repositories.NewTrackCacheRepository(db)
	runnerFor := func(catalog services.CatalogClient) server.Runner {
		return pipeline.NewEngine(pipeline.Deps{
			Catalog:     catalog,
			Recommender: groq,
			Lyrics:      lyrics,
			Translator:  groq,
			Scorer:      groq,
			Explainer:   groq,
			Preview:     itunes,
			Cache:       cache,
		}, config.Pipeline, r.logger)
	}

	api := server.NewAPI(server.APIDeps{
		Gateway:         server.NewSpotifyGateway(spotify),
		Runner:          runnerFor,
		Analyzer:        groq,
		Weather:         weather,
		Budget:          groq.Budget(),
		Sessions:        repositories.NewSessionRepository(db),
		Conversations:   repositories.NewConversationRepository(db),
		Recommendations: repositories.NewRecommendationRepository(db),
		Tracks:          cache,
		FrontendURL:     config.Server.FrontendURL,
		Logger:          r.logger,
	})

	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))
	api.Register(router)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx, config.Server, router, r.logger)
}
