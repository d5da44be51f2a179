package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSearch_BraveResults(t *testing.T) {
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("missing brave token header")
		}
		if q := r.URL.Query().Get("q"); q != "black holes" {
			t.Errorf("expected raw query, got %q", q)
		}
		w.Write([]byte(`{"web":{"results":[
			{"title":"Black hole","url":"https://en.wikipedia.org/wiki/Black_hole","description":"A <strong>region</strong> of spacetime &amp; gravity"},
			{"title":"Black hole (dup)","url":"https://en.wikipedia.org/wiki/Black_hole/","description":"again"}
		]}}`))
	}))
	defer brave.Close()

	p := NewWebSearchProvider("", "", "brave-key")
	p.brave.endpoint = brave.URL

	results, err := p.Search(context.Background(), "  black holes ", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected duplicate URL to be dropped, got %+v", results)
	}
	if results[0].Source != "en.wikipedia.org" {
		t.Errorf("source = %q", results[0].Source)
	}
	if results[0].Description != "A region of spacetime & gravity" {
		t.Errorf("description = %q", results[0].Description)
	}
}

func TestSearch_FallsBackToGoogleWhenBraveExhausted(t *testing.T) {
	var braveCalls atomic.Int32
	brave := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		braveCalls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer brave.Close()
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"title":"Result","link":"https://example.com/a","snippet":"text"}]}`))
	}))
	defer google.Close()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	p := NewWebSearchProvider("g-key", "cx", "brave-key")
	p.brave.endpoint = brave.URL
	p.google.endpoint = google.URL
	p.now = func() time.Time { return now }

	results, err := p.Search(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Title != "Result" {
		t.Errorf("unexpected results: %+v", results)
	}
	if !p.brave.paused(now) {
		t.Fatal("expected brave to be paused")
	}

	// Brave stays skipped inside the pause window.
	if _, err := p.Search(context.Background(), "anything", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := braveCalls.Load(); got != 1 {
		t.Errorf("brave calls = %d, want 1", got)
	}

	// And is retried once it elapses.
	now = now.Add(braveQuotaPause + time.Second)
	if _, err := p.Search(context.Background(), "anything", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := braveCalls.Load(); got != 2 {
		t.Errorf("brave calls after pause = %d, want 2", got)
	}
}

func TestSearch_GoogleErrorBody(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded"}}`))
	}))
	defer google.Close()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	p := NewWebSearchProvider("g-key", "cx", "")
	p.google.endpoint = google.URL
	p.now = func() time.Time { return now }

	if _, err := p.Search(context.Background(), "anything", 3); err == nil {
		t.Fatal("expected error")
	}
	if !p.google.paused(now.Add(time.Hour)) {
		t.Error("expected google to be paused until its quota resets")
	}
}

func TestSearch_NoProviders(t *testing.T) {
	p := NewWebSearchProvider("", "", "")
	if _, err := p.Search(context.Background(), "q", 1); err == nil {
		t.Error("expected error with no providers")
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	p := NewWebSearchProvider("", "", "brave-key")
	if _, err := p.Search(context.Background(), "   ", 1); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestNextPacificMidnight(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	next := nextPacificMidnight(now)
	if !next.After(now) || next.Sub(now) > 24*time.Hour {
		t.Errorf("next reset = %v for now %v", next, now)
	}
}
