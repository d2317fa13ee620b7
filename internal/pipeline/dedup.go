package pipeline

import (
	"time"

	"github.com/desertthunder/aidj/internal/models"
)

// dedupWindow bounds how far back past runs count as "recent".
const dedupWindow = 24 * time.Hour

// requestSimilarity measures word overlap between two request texts as
// intersection over union of their word sets. 1.0 means identical wording,
// 0 means disjoint.
func requestSimilarity(a, b string) float64 {
	wordsA := tokenize(a)
	wordsB := tokenize(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(wordsA))
	for _, w := range wordsA {
		setA[w] = true
	}
	setB := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		setB[w] = true
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// recentTrackIDs collects catalog ids from past runs whose request text is
// similar to the current one. Only similar requests count: asking for gym
// music after asking for sleep music should not penalize overlap.
func recentTrackIDs(request string, past []models.PastRequest, threshold float64, now time.Time) map[string]bool {
	ids := map[string]bool{}
	for _, p := range past {
		if now.Sub(p.CreatedAt) > dedupWindow {
			continue
		}
		if requestSimilarity(request, p.RequestText) < threshold {
			continue
		}
		for _, id := range p.TrackIDs {
			ids[id] = true
		}
	}
	return ids
}

// applyDuplicatePenalty subtracts the configured penalty from recently
// recommended tracks and marks them, flooring the combined score at 0.
// A soft penalty instead of removal: when everything else misses the
// request, a repeat beats a bad pick. Repeats within the same run pass
// through untouched; truncation drops the weaker copy.
func applyDuplicatePenalty(tracks []models.ScoredTrack, recent map[string]bool, penalty float64) {
	if len(recent) == 0 || penalty <= 0 {
		return
	}
	for i := range tracks {
		if recent[tracks[i].CatalogID] {
			tracks[i].CombinedScore -= penalty
			if tracks[i].CombinedScore < 0 {
				tracks[i].CombinedScore = 0
			}
			tracks[i].Duplicate = true
		}
	}
}
