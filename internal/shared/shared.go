// package shared holds the cross-cutting helpers every other package leans
// on: logging, id generation, and track-identity normalization.
package shared

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger builds the application [log.Logger] writing to w, with
// timestamps and caller reporting enabled. A nil writer means [os.Stderr].
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{ReportTimestamp: true, ReportCaller: true})
}

// WithLogger derives a child [log.Logger] carrying the given key-value pairs
// on every entry.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID returns a new v4 [uuid.UUID] string. Used for session ids,
// OAuth state parameters, and repository row ids.
func GenerateID() string {
	return uuid.New().String()
}

// NormalizeTrackKey collapses a title/artist pair into a case- and
// whitespace-insensitive identity key. The catalog returns the same song
// with varying casing and padding across searches; rebuilding a listener
// profile from cached resolutions must not count those as distinct tracks.
func NormalizeTrackKey(title, artist string) string {
	return normalizeTrackPart(title) + "|" + normalizeTrackPart(artist)
}

func normalizeTrackPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
