package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/services"
	"github.com/desertthunder/aidj/internal/shared"
)

// minTranslationChars separates a real translation from a refusal or an
// apology. Anything shorter than this is treated as a failed translation
// and the original text keeps ranking duty.
const minTranslationChars = 100

// truncateAtWord cuts text to at most max bytes, backing up to the last
// word boundary so the translator never sees a split word.
func truncateAtWord(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	cut := text[:max]
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

// fetchLyrics fills in lyric text for every track concurrently. Worker count
// and request pacing come from configuration; a missing lyric is a normal
// outcome and leaves the track in the run.
func (e *Engine) fetchLyrics(ctx context.Context, tracks []models.ScoredTrack) {
	jobs := make(chan int, len(tracks))

	var wg sync.WaitGroup
	for w := 0; w < e.cfg.LyricWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := e.limiter.Wait(ctx); err != nil {
					return
				}
				text, err := e.lyrics.SearchLyrics(ctx, tracks[i].Title, tracks[i].Artist)
				if err != nil {
					if !errors.Is(err, shared.ErrLyricsNotFound) {
						e.logger.Debug("lyrics fetch failed", "track", tracks[i].Title, "error", err)
					}
					continue
				}
				tracks[i].Lyrics = text
			}
		}()
	}

	for i := range tracks {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// translateLyrics routes non-English lyrics through one batched translation
// call and swaps the English text into ranking position. The original text
// is kept alongside for display and term highlighting.
func (e *Engine) translateLyrics(ctx context.Context, tracks []models.ScoredTrack) {
	byID := map[string]int{}
	var items []services.TranslationItem

	for i := range tracks {
		if tracks[i].Lyrics == "" || looksEnglish(tracks[i].Lyrics) {
			continue
		}
		byID[tracks[i].CatalogID] = i
		items = append(items, services.TranslationItem{
			TrackID: tracks[i].CatalogID,
			Text:    truncateAtWord(tracks[i].Lyrics, e.cfg.TranslationMaxChars),
			Hint:    guessLanguage(tracks[i].Lyrics),
		})
	}
	if len(items) == 0 {
		return
	}

	results, err := e.translator.TranslateBatch(ctx, items)
	if err != nil {
		// Translation is an enrichment signal. Scoring falls back to the
		// original text, which the relevance model often handles anyway,
		// and the heuristic guess stands in for the translator's verdict.
		e.logger.Warn("batch translation failed", "tracks", len(items), "error", err)
		for _, item := range items {
			if item.Hint != "" && item.Hint != "en" {
				tracks[byID[item.TrackID]].Language = item.Hint
			}
		}
		return
	}

	for _, r := range results {
		i, ok := byID[r.TrackID]
		if !ok {
			continue
		}
		if r.Language != "" && r.Language != "en" {
			tracks[i].Language = r.Language
		}
		if r.Language == "en" || len(r.Text) < minTranslationChars {
			continue
		}
		tracks[i].LyricsOriginal = tracks[i].Lyrics
		tracks[i].Lyrics = r.Text
	}
}
