package models

import (
	"fmt"
	"time"
)

// Conversation is one persisted prompt/response turn for a session.
type Conversation struct {
	id        string
	sequence  int
	sessionID string
	role      string
	content   string
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewConversation creates a conversation turn for the given session.
func NewConversation(sequence int, sessionID, role, content string) *Conversation {
	now := time.Now()
	return &Conversation{
		sequence:  sequence,
		sessionID: sessionID,
		role:      role,
		content:   content,
		createdAt: now,
		updatedAt: now,
	}
}

func (c *Conversation) ID() string           { return c.id }
func (c *Conversation) Sequence() int        { return c.sequence }
func (c *Conversation) SessionID() string    { return c.sessionID }
func (c *Conversation) Role() string         { return c.role }
func (c *Conversation) Content() string      { return c.content }
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }
func (c *Conversation) UpdatedAt() time.Time { return c.updatedAt }

func (c *Conversation) SetID(id string)             { c.id = id }
func (c *Conversation) SetUpdatedAt(t time.Time)    { c.updatedAt = t }
func (c *Conversation) SetDeletedAt(t *time.Time)   { c.deletedAt = t }
func (c *Conversation) SetCreatedAt(t time.Time)    { c.createdAt = t }
func (c *Conversation) Turn() ConversationTurn      { return ConversationTurn{Role: c.role, Content: c.content} }

func (c *Conversation) Validate() error {
	if c.sessionID == "" {
		return fmt.Errorf("conversation session id is required")
	}
	if c.role != "user" && c.role != "assistant" {
		return fmt.Errorf("conversation role must be user or assistant, got %q", c.role)
	}
	if c.content == "" {
		return fmt.Errorf("conversation content is required")
	}
	return nil
}

// Recommendation is a persisted record of one pipeline run: the request, the
// intro text, and the ranked track ids. It backs the duplicate window.
type Recommendation struct {
	id          string
	sequence    int
	sessionID   string
	requestText string
	introText   string
	tracks      []RecommendedTrack
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// RecommendedTrack is one ranked row of a persisted recommendation.
type RecommendedTrack struct {
	TrackID       string
	Position      int
	Title         string
	Artist        string
	CombinedScore float64
}

// NewRecommendation creates a recommendation record from a finished batch.
func NewRecommendation(sequence int, sessionID string, batch *RecommendationBatch) *Recommendation {
	tracks := make([]RecommendedTrack, len(batch.Tracks))
	for i, t := range batch.Tracks {
		tracks[i] = RecommendedTrack{
			TrackID:       t.CatalogID,
			Position:      t.Position,
			Title:         t.Title,
			Artist:        t.Artist,
			CombinedScore: t.CombinedScore,
		}
	}
	now := time.Now()
	return &Recommendation{
		sequence:    sequence,
		sessionID:   sessionID,
		requestText: batch.SourceRequest,
		introText:   batch.IntroText,
		tracks:      tracks,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (r *Recommendation) ID() string                 { return r.id }
func (r *Recommendation) Sequence() int              { return r.sequence }
func (r *Recommendation) SessionID() string          { return r.sessionID }
func (r *Recommendation) RequestText() string        { return r.requestText }
func (r *Recommendation) IntroText() string          { return r.introText }
func (r *Recommendation) Tracks() []RecommendedTrack { return r.tracks }
func (r *Recommendation) CreatedAt() time.Time       { return r.createdAt }
func (r *Recommendation) UpdatedAt() time.Time       { return r.updatedAt }

func (r *Recommendation) SetID(id string)                  { r.id = id }
func (r *Recommendation) SetUpdatedAt(t time.Time)         { r.updatedAt = t }
func (r *Recommendation) SetDeletedAt(t *time.Time)        { r.deletedAt = t }
func (r *Recommendation) SetCreatedAt(t time.Time)         { r.createdAt = t }
func (r *Recommendation) SetTracks(ts []RecommendedTrack)  { r.tracks = ts }

func (r *Recommendation) Validate() error {
	if r.sessionID == "" {
		return fmt.Errorf("recommendation session id is required")
	}
	if r.requestText == "" {
		return fmt.Errorf("recommendation request text is required")
	}
	return nil
}

// PastRequest converts the record into the pipeline's dedup-window shape.
func (r *Recommendation) PastRequest() PastRequest {
	ids := make([]string, len(r.tracks))
	for i, t := range r.tracks {
		ids[i] = t.TrackID
	}
	return PastRequest{RequestText: r.requestText, TrackIDs: ids, CreatedAt: r.createdAt}
}

// CachedTrack is a resolved catalog track persisted for cross-run reuse and
// historical profile building.
type CachedTrack struct {
	id           string
	sequence     int
	service      string
	serviceID    string
	title        string
	artist       string
	album        string
	popularity   int
	previewURL   string
	features     *AudioFeatures
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewCachedTrack creates a cache row from a resolved track.
func NewCachedTrack(sequence int, service string, track ResolvedTrack) *CachedTrack {
	now := time.Now()
	return &CachedTrack{
		sequence:   sequence,
		service:    service,
		serviceID:  track.CatalogID,
		title:      track.Title,
		artist:     track.Artist,
		album:      track.Album,
		popularity: track.Popularity,
		previewURL: track.PreviewURL,
		features:   track.AudioFeatures,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (t *CachedTrack) ID() string               { return t.id }
func (t *CachedTrack) Sequence() int            { return t.sequence }
func (t *CachedTrack) Service() string          { return t.service }
func (t *CachedTrack) ServiceID() string        { return t.serviceID }
func (t *CachedTrack) Title() string            { return t.title }
func (t *CachedTrack) Artist() string           { return t.artist }
func (t *CachedTrack) Album() string            { return t.album }
func (t *CachedTrack) Popularity() int          { return t.popularity }
func (t *CachedTrack) PreviewURL() string       { return t.previewURL }
func (t *CachedTrack) Features() *AudioFeatures { return t.features }
func (t *CachedTrack) CreatedAt() time.Time     { return t.createdAt }
func (t *CachedTrack) UpdatedAt() time.Time     { return t.updatedAt }

func (t *CachedTrack) SetID(id string)              { t.id = id }
func (t *CachedTrack) SetUpdatedAt(ts time.Time)    { t.updatedAt = ts }
func (t *CachedTrack) SetDeletedAt(ts *time.Time)   { t.deletedAt = ts }
func (t *CachedTrack) SetCreatedAt(ts time.Time)    { t.createdAt = ts }
func (t *CachedTrack) SetFeatures(f *AudioFeatures) { t.features = f }

func (t *CachedTrack) Validate() error {
	if t.service == "" {
		return fmt.Errorf("cached track service is required")
	}
	if t.serviceID == "" {
		return fmt.Errorf("cached track service id is required")
	}
	if t.title == "" {
		return fmt.Errorf("cached track title is required")
	}
	return nil
}
