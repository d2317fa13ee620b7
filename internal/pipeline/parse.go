package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/shared"
)

// shortlist is the parsed form of the recommender's response.
type shortlist struct {
	Intro string                       `json:"intro"`
	Songs []models.CandidateSuggestion `json:"songs"`
}

// Field-level patterns for the last-resort strategy: pull the intro string
// and each flat song object straight out of a payload whose outer structure
// is broken.
var (
	introPattern = regexp.MustCompile(`"intro"\s*:\s*("(?:[^"\\]|\\.)*")`)
	songPattern  = regexp.MustCompile(`\{[^{}]*"title"\s*:\s*"(?:[^"\\]|\\.)*"[^{}]*\}`)
)

// parseShortlist recovers the intro and song list from raw model output.
// Three attempts, most to least strict: the whole payload as JSON, the
// substring between the outermost braces, then field-level regex extraction
// that salvages intact intro/song fields from a corrupt wrapper. All
// failures collapse into [shared.ErrModelResponse]; callers cannot retry
// their way out of a malformed response, so the detail only goes into the
// error text.
func parseShortlist(raw string) (*shortlist, error) {
	var parsed shortlist
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return &parsed, nil
	}

	if start, end := strings.IndexByte(raw, '{'), strings.LastIndexByte(raw, '}'); start != -1 && end > start {
		if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err == nil {
			return &parsed, nil
		}
	}

	if salvaged := extractFields(raw); salvaged != nil {
		return salvaged, nil
	}

	return nil, fmt.Errorf("no JSON shortlist in %d bytes of output: %w", len(raw), shared.ErrModelResponse)
}

// extractFields recovers individual fields when the wrapper object cannot be
// parsed as a whole. Song objects that fail to unmarshal on their own are
// skipped; nil means nothing usable survived.
func extractFields(raw string) *shortlist {
	var salvaged shortlist

	if m := introPattern.FindStringSubmatch(raw); m != nil {
		var intro string
		if err := json.Unmarshal([]byte(m[1]), &intro); err == nil {
			salvaged.Intro = intro
		}
	}

	for _, match := range songPattern.FindAllString(raw, -1) {
		var song models.CandidateSuggestion
		if err := json.Unmarshal([]byte(match), &song); err != nil {
			continue
		}
		if song.Title == "" || song.Artist == "" {
			continue
		}
		salvaged.Songs = append(salvaged.Songs, song)
	}

	if len(salvaged.Songs) == 0 {
		return nil
	}
	return &salvaged
}
