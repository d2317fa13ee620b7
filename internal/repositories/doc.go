// Package repositories provides the SQLite persistence layer.
//
// Four repositories back the recommendation service:
//
//   - [SessionRepository] : OAuth tokens keyed by opaque session id with a TTL.
//     Expired rows are treated as absent and purged lazily.
//   - [ConversationRepository] : prompt/response turns per session. Reads
//     return only the most recent turns so the model context stays bounded.
//   - [RecommendationRepository] : finished pipeline runs with their ranked
//     tracks. The recent window feeds duplicate detection.
//   - [TrackCacheRepository] : resolved catalog tracks, upserted on every
//     resolution so feature vectors survive across runs.
//
// Entities carry both a UUID primary key and a monotonic sequence number from
// a per-table sequence table (see NextSequence). Deletes are soft except for
// sessions, which hold credentials and are removed outright.
package repositories
