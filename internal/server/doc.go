// Package server provides HTTP routing, middleware, OAuth handling, and the
// JSON API for the recommendation service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Flows
//
// Two flows share the same Spotify client. The CLI flow uses [OAuthHandler]:
// a temporary local server receives the callback, exchanges the code, and
// delivers the token over a channel so the command can persist it and shut
// the server down. The web flow lives on [API]: /auth/login issues a state
// token and redirects to the consent page, /auth/callback redeems the code,
// stores the token under a fresh session id with a TTL, and redirects to the
// frontend with that session id.
//
// Both flows validate the state parameter and process each callback once.
//
// # JSON API
//
// [API] carries the web surface: /dj/recommend runs the ranking pipeline for
// one chat message, /me and /me/profile expose the listener's identity and
// taste profile, /me/profile/analysis asks the model for a short taste
// summary, /chat/clear resets conversation history, /ratelimit reports the
// model-API budget, and /healthz answers liveness probes.
//
// Authenticated endpoints take the session id from the X-Session-ID header
// or a session_id query parameter.
package server
