package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/aidj/internal/shared"
)

func testLyrics(responses ...*http.Response) (*LyricsService, *queueTripper) {
	srv := NewLyricsService(shared.LyricsConfig{})
	tripper := &queueTripper{responses: responses}
	srv.httpClient = &http.Client{Transport: tripper}
	return srv, tripper
}

func TestLyricsService(t *testing.T) {
	t.Run("Exact Match", func(t *testing.T) {
		srv, tripper := testLyrics(jsonResponse(200, `{
			"id": 1, "trackName": "Rain", "artistName": "A",
			"instrumental": false, "plainLyrics": "rain falls on me"
		}`))

		lyrics, err := srv.SearchLyrics(context.Background(), "Rain", "A")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if lyrics != "rain falls on me" {
			t.Errorf("unexpected lyrics %q", lyrics)
		}

		q := tripper.requests[0].URL.Query()
		if q.Get("track_name") != "Rain" || q.Get("artist_name") != "A" {
			t.Errorf("exact lookup should pass both fields, got %v", q)
		}
	})

	t.Run("Falls Back To Search", func(t *testing.T) {
		srv, tripper := testLyrics(
			jsonResponse(404, `{}`),
			jsonResponse(200, `[
				{"id": 1, "instrumental": true, "plainLyrics": ""},
				{"id": 2, "instrumental": false, "plainLyrics": "found via search"}
			]`),
		)

		lyrics, err := srv.SearchLyrics(context.Background(), "Rain", "A")
		if err != nil {
			t.Fatalf("expected fallback hit, got %v", err)
		}
		if lyrics != "found via search" {
			t.Errorf("expected first non-instrumental hit, got %q", lyrics)
		}

		if len(tripper.requests) != 2 {
			t.Fatalf("expected 2 requests, got %d", len(tripper.requests))
		}
		if !strings.Contains(tripper.requests[1].URL.Path, "/search") {
			t.Error("second request should hit the search endpoint")
		}
	})

	t.Run("Instrumental Counts As Not Found", func(t *testing.T) {
		srv, _ := testLyrics(jsonResponse(200, `{
			"id": 1, "instrumental": true, "plainLyrics": ""
		}`))

		_, err := srv.SearchLyrics(context.Background(), "Interlude", "A")
		if !errors.Is(err, shared.ErrLyricsNotFound) {
			t.Errorf("expected ErrLyricsNotFound, got %v", err)
		}
	})

	t.Run("Nothing Anywhere", func(t *testing.T) {
		srv, _ := testLyrics(
			jsonResponse(404, `{}`),
			jsonResponse(200, `[]`),
		)

		_, err := srv.SearchLyrics(context.Background(), "Unknown", "Nobody")
		if !errors.Is(err, shared.ErrLyricsNotFound) {
			t.Errorf("expected ErrLyricsNotFound, got %v", err)
		}
	})

	t.Run("Sets User Agent", func(t *testing.T) {
		srv, tripper := testLyrics(jsonResponse(200, `{"plainLyrics":"x"}`))

		_, _ = srv.SearchLyrics(context.Background(), "Rain", "A")
		if ua := tripper.requests[0].Header.Get("User-Agent"); !strings.HasPrefix(ua, "aidj/") {
			t.Errorf("expected identifying user agent, got %q", ua)
		}
	})
}
