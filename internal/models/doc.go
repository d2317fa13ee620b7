// Package models defines domain entities and persistence interfaces for the AI DJ recommendation service.
//
// The package contains two categories of types:
//
// 1. Pipeline objects: run-scoped values constructed and discarded per recommendation request
//   - [CandidateSuggestion] : Raw (title, artist) pair from the recommender model
//   - [ResolvedTrack] : Candidate matched to a verifiable catalog entry
//   - [ScoredTrack] : Resolved track with audio-match, lyric-relevance, and explanation signals
//   - [RecommendationBatch] : Final ranked output of one pipeline run
//   - [ListenerProfile] : Aggregate taste signal (genres, top artists/tracks, audio-feature average)
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Session] : OAuth token storage keyed by opaque session id with TTL
//   - [Conversation] : Prompt/response turns replayed into the model context
//   - [Recommendation] : Past pipeline runs backing the duplicate window
//   - [CachedTrack] : Resolved catalog tracks cached for reuse and historical profiles
//
// Persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
