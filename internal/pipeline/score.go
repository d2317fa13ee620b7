package pipeline

import (
	"math"
	"sort"

	"github.com/desertthunder/aidj/internal/models"
)

// Weights of the two ranking signals in the combined score.
const (
	audioWeight  = 0.4
	lyricsWeight = 0.6
)

// Audio distance weights: energy and danceability dominate, valence refines.
const (
	energyWeight       = 0.4
	danceabilityWeight = 0.4
	valenceWeight      = 0.2
)

// neutralAudioScore is used when either side of the comparison has no
// feature vector to compare against.
const neutralAudioScore = 5.0

// audioScore rates how close a track's feature vector sits to the
// listener's average, 0 to 10 with 10 a perfect match. A listener without a
// profile vector scores every track neutral rather than ranking on missing
// data; a track without its own vector scores 0, the worst-distance case,
// so verified-taste tracks outrank unknowns.
func audioScore(track *models.AudioFeatures, profile *models.AudioFeatures) float64 {
	if profile == nil {
		return neutralAudioScore
	}
	if track == nil {
		return 0
	}

	distance := energyWeight*math.Abs(track.Energy-profile.Energy) +
		danceabilityWeight*math.Abs(track.Danceability-profile.Danceability) +
		valenceWeight*math.Abs(track.Valence-profile.Valence)

	return (1 - distance) * 10
}

// normalizeRelevance maps a 1..scale relevance rating onto 0-10 so both
// ranking signals share a range before weighting.
func normalizeRelevance(relevance, scale int) float64 {
	if scale <= 1 {
		return neutralAudioScore
	}
	if relevance < 1 {
		relevance = 1
	}
	if relevance > scale {
		relevance = scale
	}
	return float64(relevance-1) / float64(scale-1) * 10
}

// combinedScore is the ranking key: a pure function of the two signals.
func combinedScore(audio float64, relevance, scale int) float64 {
	return audioWeight*audio + lyricsWeight*normalizeRelevance(relevance, scale)
}

// relevanceMidpoint is the default rating for tracks whose lyrics could not
// be fetched or scored: the middle of the scale, 3 on the default 1..5.
func relevanceMidpoint(scale int) int {
	if scale <= 1 {
		return 1
	}
	return (scale + 1) / 2
}

// rank orders tracks by combined score, best first. The sort is stable, so
// equal scores keep resolution order, which preserves the recommender's own
// preference as the tiebreaker. Positions are rewritten to match the final
// order.
func rank(tracks []models.ScoredTrack) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].CombinedScore > tracks[j].CombinedScore
	})
	for i := range tracks {
		tracks[i].Position = i + 1
	}
}
