package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/services"
)

// maxTermLength drops highlighted terms too long to render as a chip in the
// player UI. Long "terms" are usually the model paraphrasing instead of
// quoting.
const maxTermLength = 50

// metaPhrases mark terms where the model slipped into describing the lyrics
// instead of quoting them.
var metaPhrases = []string{"refers to", "such as"}

// filterTerms keeps only terms that literally appear in the lyrics. The
// check is case-insensitive; the returned term keeps the model's casing.
func filterTerms(terms []string, lyrics string) []string {
	haystack := strings.ToLower(lyrics)

	var kept []string
	for _, term := range terms {
		trimmed := strings.TrimSpace(term)
		if trimmed == "" || len(trimmed) > maxTermLength {
			continue
		}
		lower := strings.ToLower(trimmed)
		meta := false
		for _, phrase := range metaPhrases {
			if strings.Contains(lower, phrase) {
				meta = true
				break
			}
		}
		if meta || !strings.Contains(haystack, lower) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return kept
}

// explainTracks generates per-track explanations for the final selection
// only, never for the full candidate set. Failures leave the explanation
// empty; the track keeps its ranked position.
func (e *Engine) explainTracks(ctx context.Context, tracks []models.ScoredTrack, request string) {
	jobs := make(chan int, len(tracks))

	var wg sync.WaitGroup
	for w := 0; w < e.cfg.ExplainWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				e.explainTrack(ctx, &tracks[i], request)
			}
		}()
	}

	for i := range tracks {
		if tracks[i].Lyrics != "" {
			jobs <- i
		}
	}
	close(jobs)
	wg.Wait()
}

func (e *Engine) explainTrack(ctx context.Context, track *models.ScoredTrack, request string) {
	if err := e.limiter.Wait(ctx); err != nil {
		return
	}

	explanation, err := e.explainer.Explain(ctx, services.ExplainRequest{
		Title:   track.Title,
		Artist:  track.Artist,
		Request: request,
		Lyrics:  track.Lyrics,
	})
	if err != nil {
		e.logger.Debug("explanation failed", "track", track.Title, "error", err)
		return
	}

	track.Explanation = explanation.Text
	track.HighlightedTerms = filterTerms(explanation.Terms, track.Lyrics)

	// Translated tracks get a second pass against the source text so the
	// UI can highlight in whichever version the listener is reading.
	if track.LyricsOriginal == "" {
		return
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return
	}
	original, err := e.explainer.Explain(ctx, services.ExplainRequest{
		Title:   track.Title,
		Artist:  track.Artist,
		Request: request,
		Lyrics:  track.LyricsOriginal,
	})
	if err != nil {
		e.logger.Debug("original-language terms failed", "track", track.Title, "error", err)
		return
	}
	track.OriginalTerms = filterTerms(original.Terms, track.LyricsOriginal)
}
