// Package pipeline implements the multi-source ranking pipeline behind one
// recommendation request.
//
// A run moves through fixed stages:
//
//  1. Shortlist: the recommender model proposes candidate (title, artist)
//     pairs plus a DJ intro. Parsing tolerates prose and markdown fences
//     around the JSON payload.
//  2. Resolution: every candidate is verified against the music catalog.
//     Unresolvable candidates are dropped; a run with zero resolved tracks
//     fails with [shared.ErrNoResolvedTracks].
//  3. Enrichment: audio-feature vectors are fetched in one batch, lyrics are
//     fetched concurrently, and non-English lyrics go through one batched
//     translation call.
//  4. Scoring: an audio-match score against the listener's taste vector and
//     a lyric-relevance score against the request text combine into the
//     ranking key. Recently recommended tracks take a score penalty instead
//     of being removed.
//  5. Selection: stable sort, truncate to the configured playlist size, then
//     generate per-track explanations concurrently for the final picks only.
//
// Every enrichment signal is optional: a track with no lyrics, no feature
// vector, or a failed translation stays in the run with neutral defaults.
// Only an unusable model response or an empty resolution set abort a run.
package pipeline
