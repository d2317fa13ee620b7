package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/desertthunder/aidj/internal/shared"
)

func testITunes(responses ...*http.Response) (*ITunesService, *queueTripper) {
	srv := NewITunesService()
	tripper := &queueTripper{responses: responses}
	srv.httpClient = &http.Client{Transport: tripper}
	return srv, tripper
}

func TestITunesService(t *testing.T) {
	t.Run("Preview Found", func(t *testing.T) {
		srv, tripper := testITunes(jsonResponse(200, `{
			"resultCount": 1,
			"results": [{"previewUrl": "https://audio.example/preview.m4a"}]
		}`))

		preview, err := srv.PreviewURL(context.Background(), "Midnight City", "M83")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if preview != "https://audio.example/preview.m4a" {
			t.Errorf("unexpected preview url %q", preview)
		}

		q := tripper.requests[0].URL.Query()
		if q.Get("term") != "M83 Midnight City" {
			t.Errorf("expected 'artist track' term, got %q", q.Get("term"))
		}
		if q.Get("entity") != "song" {
			t.Errorf("expected song entity, got %q", q.Get("entity"))
		}
	})

	t.Run("Primary Artist Only", func(t *testing.T) {
		srv, tripper := testITunes(jsonResponse(200, `{
			"resultCount": 1,
			"results": [{"previewUrl": "https://audio.example/preview.m4a"}]
		}`))

		_, err := srv.PreviewURL(context.Background(), "Midnight City", "M83, Someone Else")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if term := tripper.requests[0].URL.Query().Get("term"); term != "M83 Midnight City" {
			t.Errorf("expected primary artist only, got %q", term)
		}
	})

	t.Run("No Results", func(t *testing.T) {
		srv, _ := testITunes(jsonResponse(200, `{"resultCount": 0, "results": []}`))

		_, err := srv.PreviewURL(context.Background(), "Unknown", "Nobody")
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("Result Without Preview", func(t *testing.T) {
		srv, _ := testITunes(jsonResponse(200, `{"resultCount": 1, "results": [{}]}`))

		_, err := srv.PreviewURL(context.Background(), "Track", "Artist")
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})
}
