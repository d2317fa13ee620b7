package pipeline

import (
	"math"
	"testing"

	"github.com/desertthunder/aidj/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAudioScore(t *testing.T) {
	profile := &models.AudioFeatures{Energy: 0.8, Danceability: 0.6, Valence: 0.4}

	t.Run("Perfect Match", func(t *testing.T) {
		track := &models.AudioFeatures{Energy: 0.8, Danceability: 0.6, Valence: 0.4}
		if got := audioScore(track, profile); !almostEqual(got, 10) {
			t.Errorf("expected 10, got %f", got)
		}
	})

	t.Run("Weighted Distance", func(t *testing.T) {
		// distance = 0.4*0.5 + 0.4*0.0 + 0.2*0.0 = 0.2 -> score 8
		track := &models.AudioFeatures{Energy: 0.3, Danceability: 0.6, Valence: 0.4}
		if got := audioScore(track, profile); !almostEqual(got, 8) {
			t.Errorf("expected 8, got %f", got)
		}
	})

	t.Run("Valence Weighs Less", func(t *testing.T) {
		energyOff := &models.AudioFeatures{Energy: 0.3, Danceability: 0.6, Valence: 0.4}
		valenceOff := &models.AudioFeatures{Energy: 0.8, Danceability: 0.6, Valence: 0.9}
		if audioScore(valenceOff, profile) <= audioScore(energyOff, profile) {
			t.Error("same offset on valence should cost less than on energy")
		}
	})

	t.Run("Missing Track Features", func(t *testing.T) {
		if got := audioScore(nil, profile); got != 0 {
			t.Errorf("expected worst-case 0, got %f", got)
		}
	})

	t.Run("Missing Profile Vector", func(t *testing.T) {
		track := &models.AudioFeatures{Energy: 0.1, Danceability: 0.1, Valence: 0.1}
		if got := audioScore(track, nil); got != neutralAudioScore {
			t.Errorf("expected neutral %f, got %f", neutralAudioScore, got)
		}
		// Neutral regardless of the track, so nothing ranks on missing data.
		if audioScore(nil, nil) != neutralAudioScore {
			t.Error("expected neutral for nil track too")
		}
	})
}

func TestNormalizeRelevance(t *testing.T) {
	cases := []struct {
		relevance int
		scale     int
		want      float64
	}{
		{1, 5, 0},
		{3, 5, 5},
		{5, 5, 10},
		{0, 5, 0},  // Clamped up to 1
		{9, 5, 10}, // Clamped down to scale
	}

	for _, tc := range cases {
		if got := normalizeRelevance(tc.relevance, tc.scale); !almostEqual(got, tc.want) {
			t.Errorf("normalizeRelevance(%d, %d) = %f, want %f", tc.relevance, tc.scale, got, tc.want)
		}
	}
}

func TestCombinedScore(t *testing.T) {
	t.Run("Weighting", func(t *testing.T) {
		// 0.4*8 + 0.6*5 = 6.2
		if got := combinedScore(8, 3, 5); !almostEqual(got, 6.2) {
			t.Errorf("expected 6.2, got %f", got)
		}
	})

	t.Run("Lyrics Dominate", func(t *testing.T) {
		strongLyrics := combinedScore(0, 5, 5)
		strongAudio := combinedScore(10, 1, 5)
		if strongLyrics <= strongAudio {
			t.Errorf("lyrics signal should outweigh audio: %f vs %f", strongLyrics, strongAudio)
		}
	})
}

func TestRelevanceMidpoint(t *testing.T) {
	if got := relevanceMidpoint(5); got != 3 {
		t.Errorf("expected 3 on a 1..5 scale, got %d", got)
	}
	if got := relevanceMidpoint(10); got != 5 {
		t.Errorf("expected 5 on a 1..10 scale, got %d", got)
	}
	if got := relevanceMidpoint(1); got != 1 {
		t.Errorf("expected 1 on a degenerate scale, got %d", got)
	}
}

func TestRank(t *testing.T) {
	t.Run("Orders Best First", func(t *testing.T) {
		tracks := []models.ScoredTrack{
			{ResolvedTrack: models.ResolvedTrack{CatalogID: "low"}, CombinedScore: 2},
			{ResolvedTrack: models.ResolvedTrack{CatalogID: "high"}, CombinedScore: 9},
			{ResolvedTrack: models.ResolvedTrack{CatalogID: "mid"}, CombinedScore: 5},
		}
		rank(tracks)

		if tracks[0].CatalogID != "high" || tracks[2].CatalogID != "low" {
			t.Errorf("unexpected order %v", []string{tracks[0].CatalogID, tracks[1].CatalogID, tracks[2].CatalogID})
		}
		for i, track := range tracks {
			if track.Position != i+1 {
				t.Errorf("position %d not rewritten, got %d", i+1, track.Position)
			}
		}
	})

	t.Run("Ties Keep Resolution Order", func(t *testing.T) {
		tracks := []models.ScoredTrack{
			{ResolvedTrack: models.ResolvedTrack{CatalogID: "first"}, CombinedScore: 5},
			{ResolvedTrack: models.ResolvedTrack{CatalogID: "second"}, CombinedScore: 5},
			{ResolvedTrack: models.ResolvedTrack{CatalogID: "third"}, CombinedScore: 5},
		}
		rank(tracks)

		if tracks[0].CatalogID != "first" || tracks[1].CatalogID != "second" || tracks[2].CatalogID != "third" {
			t.Errorf("stable sort should keep resolution order, got %v",
				[]string{tracks[0].CatalogID, tracks[1].CatalogID, tracks[2].CatalogID})
		}
	})
}
