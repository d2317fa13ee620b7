package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/aidj/internal/services"
	"github.com/urfave/cli/v3"
)

// Profile prints the listener's taste profile, optionally with a model
// summary.
func (r *Runner) Profile(ctx context.Context, cmd *cli.Command) error {
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

	profile, err := spotify.WithToken(ctx, token).BuildProfile(ctx)
	if err != nil {
		return fmt.Errorf("failed to build profile: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(profile, true)
	}

	r.writePlain("Source: %s\n", profile.Source)

	if len(profile.Genres) > 0 {
		r.writePlain("\nGenres:\n")
		for _, genre := range profile.Genres {
			r.writePlain("  - %s\n", genre)
		}
	}

	if len(profile.TopArtists) > 0 {
		r.writePlain("\nTop artists:\n")
		for i, artist := range profile.TopArtists {
			r.writePlain("  %d. %s\n", i+1, artist.Name)
		}
	}

	if len(profile.TopTracks) > 0 {
		r.writePlain("\nTop tracks:\n")
		for i, track := range profile.TopTracks {
			r.writePlain("  %d. %s - %s\n", i+1, track.Artist, track.Name)
		}
	}

	if profile.HasAudioFeatures() {
		avg := profile.AudioFeatureAvg
		r.writePlain("\nAudio profile: energy %.2f, danceability %.2f, valence %.2f\n",
			avg.Energy, avg.Danceability, avg.Valence)
	} else {
		r.writePlain("\nAudio profile: not available\n")
	}

	if cmd.Bool("analyze") {
		groq, err := r.buildGroq(config)
		if err != nil {
			return fmt.Errorf("failed to create Groq service: %w", err)
		}
		summary, err := groq.AnalyzeProfile(ctx, profile)
		if err != nil {
			return fmt.Errorf("failed to analyze profile: %w", err)
		}
		r.writePlainln("%s", summary)
	}

	return nil
}
