// Groq implementation of the model-backed capabilities: [Recommender],
// [Translator], [RelevanceScorer], [ExplanationGenerator], [ProfileAnalyzer].
//
// The API is OpenAI-compatible: https://console.groq.com/docs/api-reference
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/aidj/internal/models"
	"github.com/desertthunder/aidj/internal/ratelimit"
	"github.com/desertthunder/aidj/internal/shared"
)

const defaultGroqModel = "llama-3.3-70b-versatile"

// chatMessage is one entry of the messages array.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// GroqService calls the Groq chat-completions API. Every request passes
// through the shared [ratelimit.Budget] before going on the wire, and the
// budget is corrected with the provider-reported token usage afterwards.
type GroqService struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	budget     *ratelimit.Budget
}

// NewGroqService creates a Groq client from configured credentials. A nil
// budget disables local quota tracking.
func NewGroqService(cfg shared.GroqConfig, budget *ratelimit.Budget) (*GroqService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq api key: %w", shared.ErrMissingCredentials)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGroqModel
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}

	return &GroqService{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		budget:     budget,
	}, nil
}

func (g *GroqService) Name() string {
	return "Groq"
}

// estimateTokens approximates prompt cost for budget reservation. Roughly
// four characters per token for English text.
func estimateTokens(messages []chatMessage, maxTokens int) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content)
	}
	return chars/4 + maxTokens
}

// chatCompletion runs one model call. A 429 waits out the provider's
// Retry-After once before failing with [shared.ErrRateLimited].
func (g *GroqService) chatCompletion(ctx context.Context, messages []chatMessage, temperature float64, maxTokens int) (string, error) {
	if g.budget != nil {
		if _, err := g.budget.Acquire(ctx, estimateTokens(messages, maxTokens)); err != nil {
			return "", err
		}
	}

	content, retryAfter, err := g.doChat(ctx, messages, temperature, maxTokens)
	if retryAfter > 0 {
		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		content, retryAfter, err = g.doChat(ctx, messages, temperature, maxTokens)
		if retryAfter > 0 {
			return "", shared.ErrRateLimited
		}
	}
	return content, err
}

// doChat performs a single HTTP round trip. A positive retryAfter means the
// provider returned 429 and the caller may retry after that duration.
func (g *GroqService) doChat(ctx context.Context, messages []chatMessage, temperature float64, maxTokens int) (content string, retryAfter time.Duration, err error) {
	payload, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := 5 * time.Second
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, perr := strconv.Atoi(s); perr == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		return "", wait, shared.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", 0, fmt.Errorf("%w: groq status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if g.budget != nil && result.Usage.TotalTokens > 0 {
		g.budget.UpdateTokens(result.Usage.TotalTokens)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", 0, fmt.Errorf("empty completion from model %s: %w", g.model, shared.ErrModelResponse)
	}
	return result.Choices[0].Message.Content, 0, nil
}

// Budget exposes the shared quota tracker for status reporting.
func (g *GroqService) Budget() *ratelimit.Budget {
	return g.budget
}

// recommendSystemPrompt instructs the model to act as a DJ and emit a strict
// JSON shortlist. The candidate count is deliberately larger than the final
// playlist; downstream ranking filters to the best matches.
func recommendSystemPrompt(count int) string {
	return fmt.Sprintf(`You are an AI DJ specializing in music recommendations. Your job is to:
1. Analyze the user's music taste from their listening data (genres, artists, audio features)
2. Match their taste with their specific request
3. Recommend exactly %d songs that exist on Spotify (we'll filter to best matches based on audio features)
4. Provide a brief DJ-style introduction (2-3 sentences)

Return your response as a JSON object with this exact structure:
{
  "intro": "Your DJ-style introduction here (2-3 sentences)",
  "songs": [
    {"title": "Song Title", "artist": "Artist Name"},
    {"title": "Song Title", "artist": "Artist Name"},
    ... (exactly %d songs)
  ]
}

IMPORTANT:
- Only recommend songs that actually exist on Spotify (popular, well-known songs)
- Match the user's request AND their music taste
- Ensure songs are relevant to what they asked for
- Provide variety in your recommendations (we'll filter to best matches)
- Return ONLY valid JSON, no other text`, count, count)
}

func joinOr(values []string, limit int, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	if len(values) > limit {
		values = values[:limit]
	}
	return strings.Join(values, ", ")
}

// profileContext renders the listener profile the way the model prompt
// expects it. Missing audio features are stated rather than zero-filled so
// the model does not anchor on fake neutral values.
func profileContext(profile *models.ListenerProfile) string {
	var artists, tracks []string
	if profile != nil {
		for _, a := range profile.TopArtists {
			artists = append(artists, a.Name)
		}
		for _, t := range profile.TopTracks {
			tracks = append(tracks, t.Name)
		}
	}

	energy := "Not available (audio features API access restricted)"
	danceability := energy
	valence := energy
	if profile.HasAudioFeatures() {
		f := profile.AudioFeatureAvg
		energy = fmt.Sprintf("%.2f (0=calm, 1=energetic)", f.Energy)
		danceability = fmt.Sprintf("%.2f (0=not danceable, 1=danceable)", f.Danceability)
		valence = fmt.Sprintf("%.2f (0=sad, 1=happy)", f.Valence)
	}

	var genres []string
	if profile != nil {
		genres = profile.Genres
	}

	return fmt.Sprintf(`User's Music Profile:
- Genres: %s
- Top Artists: %s
- Top Tracks: %s
- Energy Level: %s
- Danceability: %s
- Mood (Valence): %s`,
		joinOr(genres, 10, "Various"),
		joinOr(artists, 10, "Various"),
		joinOr(tracks, 10, "None"),
		energy, danceability, valence)
}

// Recommend asks the model for a candidate shortlist and returns its raw
// text. The caller owns parsing so that recovery strategies stay in one
// place.
func (g *GroqService) Recommend(ctx context.Context, req RecommendRequest) (string, error) {
	count := req.CandidateCount
	if count <= 0 {
		count = 20
	}

	messages := []chatMessage{{Role: "system", Content: recommendSystemPrompt(count)}}
	for _, turn := range req.History {
		messages = append(messages, chatMessage{Role: turn.Role, Content: turn.Content})
	}

	var b strings.Builder
	b.WriteString(profileContext(req.Profile))
	if req.Weather != nil {
		fmt.Fprintf(&b, "\n\nCurrent Weather: %s, %.0f°C", req.Weather.Description, req.Weather.Temperature)
	}
	fmt.Fprintf(&b, "\n\nUser's Request: %s\n\n", req.Message)
	fmt.Fprintf(&b, "Based on this profile and request, recommend exactly %d songs that match their taste and request. We'll filter these to find the best matches based on audio features. Return as JSON.", count)

	messages = append(messages, chatMessage{Role: "user", Content: b.String()})

	return g.chatCompletion(ctx, messages, 0.8, 1500)
}

// AnalyzeProfile summarizes the listener's taste in two or three sentences.
func (g *GroqService) AnalyzeProfile(ctx context.Context, profile *models.ListenerProfile) (string, error) {
	prompt := fmt.Sprintf(`Analyze this user's music taste based on their listening data:

%s

Provide a brief analysis of their music taste in 2-3 sentences.`, profileContext(profile))

	return g.chatCompletion(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0.7, 200)
}

// TranslateBatch detects language and translates all items in one call.
// Items the model skips simply stay absent from the result; the caller
// treats them as untranslated.
func (g *GroqService) TranslateBatch(ctx context.Context, items []TranslationItem) ([]TranslationResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode translation items: %w", err)
	}

	prompt := fmt.Sprintf(`You are a translator. For each item in the JSON array below, detect the language of "text" and translate it to English. A "hint" field, when present, is a heuristic guess you may override.

Return ONLY a JSON array with this exact structure, one entry per input item, same "id" values:
[
  {"id": "input id", "language": "ISO 639-1 code of the source language", "text": "full English translation"}
]

If an item is already English, set "language" to "en" and "text" to an empty string.
Translate the complete text of every non-English item. Return ONLY valid JSON, no other text.

Items:
%s`, payload)

	raw, err := g.chatCompletion(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0.3, 4000)
	if err != nil {
		return nil, err
	}

	var results []TranslationResult
	if err := json.Unmarshal([]byte(extractJSON(raw, '[', ']')), &results); err != nil {
		return nil, fmt.Errorf("translation response: %w", shared.ErrModelResponse)
	}
	return results, nil
}

// ScoreBatch rates how relevant each lyric text is to the request on a
// 1..scale integer range, all items in one call.
func (g *GroqService) ScoreBatch(ctx context.Context, request string, scale int, items []RelevanceItem) (map[string]int, error) {
	if len(items) == 0 {
		return map[string]int{}, nil
	}
	if scale <= 1 {
		scale = 5
	}

	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "---\nid: %s\nsong: %s by %s\nlyrics:\n%s\n", item.TrackID, item.Title, item.Artist, item.Lyrics)
	}

	prompt := fmt.Sprintf(`Rate how relevant each song's lyrics are to this listener request: %q

Use an integer scale from 1 to %d where 1 means the lyrics have nothing to do with the request and %d means the lyrics directly express what was asked for.

Return ONLY a JSON object with this exact structure:
{"scores": [{"id": "song id", "score": 1-%d}]}

Include every song. Return ONLY valid JSON, no other text.

Songs:
%s`, request, scale, scale, scale, b.String())

	raw, err := g.chatCompletion(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0.2, 1000)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Scores []struct {
			ID    string `json:"id"`
			Score int    `json:"score"`
		} `json:"scores"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw, '{', '}')), &parsed); err != nil {
		return nil, fmt.Errorf("relevance response: %w", shared.ErrModelResponse)
	}

	scores := make(map[string]int, len(parsed.Scores))
	for _, s := range parsed.Scores {
		scores[s.ID] = s.Score
	}
	return scores, nil
}

// Explain justifies one selected track against the request, quoting exact
// lyric phrases as highlighted terms.
func (g *GroqService) Explain(ctx context.Context, req ExplainRequest) (*Explanation, error) {
	prompt := fmt.Sprintf(`The song %q by %s was recommended for this listener request: %q

Lyrics:
%s

Explain in 1-2 sentences why this song fits the request, then list 2-4 short phrases quoted EXACTLY from the lyrics above that support the match.

Return ONLY a JSON object with this exact structure:
{"explanation": "why the song fits", "highlighted_terms": ["exact phrase from lyrics", ...]}

Each highlighted term must appear verbatim in the lyrics. Return ONLY valid JSON, no other text.`,
		req.Title, req.Artist, req.Request, req.Lyrics)

	raw, err := g.chatCompletion(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0.5, 300)
	if err != nil {
		return nil, err
	}

	var explanation Explanation
	if err := json.Unmarshal([]byte(extractJSON(raw, '{', '}')), &explanation); err != nil {
		return nil, fmt.Errorf("explanation response: %w", shared.ErrModelResponse)
	}
	return &explanation, nil
}

// extractJSON returns the widest substring bracketed by the given pair,
// which survives models wrapping JSON in prose or markdown fences. Returns
// the input unchanged when no bracket pair exists so json.Unmarshal reports
// the real error.
func extractJSON(s string, open, shut byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, shut)
	if start == -1 || end == -1 || end <= start {
		return s
	}
	return s[start : end+1]
}
