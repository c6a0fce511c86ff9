package knowledge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deskhand/deskhand/internal/state"
)

func testStates(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open state store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

const faqDoc = `{"faqs":[{"keywords":["shipping"],"response":"Ships in 3 days.","category":"shipping"}]}`

func TestResolveColdFailureReturnsDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(testStates(t), srv.URL, srv.URL)

	base := s.Resolve(context.Background(), KindFAQ)
	if base == nil {
		t.Fatal("Resolve returned nil")
	}
	if len(base.FAQs) != 3 {
		t.Fatalf("default FAQ count = %d, want 3", len(base.FAQs))
	}
	categories := []string{"product_info", "payment", "greeting"}
	for i, want := range categories {
		if base.FAQs[i].Category != want {
			t.Errorf("default FAQ %d category = %q, want %q", i, base.FAQs[i].Category, want)
		}
	}
}

func TestResolveTrainingDefaultIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(testStates(t), srv.URL, srv.URL)

	base := s.Resolve(context.Background(), KindTraining)
	if base == nil {
		t.Fatal("Resolve returned nil")
	}
	if len(base.Intents) != 0 {
		t.Errorf("default training intents = %d, want 0", len(base.Intents))
	}
}

func TestResolveSingleFetchWithinTTL(t *testing.T) {
	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		w.Write([]byte(faqDoc))
	}))
	defer srv.Close()

	s := New(testStates(t), srv.URL, srv.URL)

	for i := 0; i < 5; i++ {
		base := s.Resolve(context.Background(), KindFAQ)
		if len(base.FAQs) != 1 || base.FAQs[0].Response != "Ships in 3 days." {
			t.Fatalf("unexpected base on call %d: %+v", i, base)
		}
	}

	if got := atomic.LoadInt64(&fetches); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestResolveRefetchesAfterTTL(t *testing.T) {
	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		w.Write([]byte(faqDoc))
	}))
	defer srv.Close()

	now := time.Now()
	s := New(testStates(t), srv.URL, srv.URL, WithClock(func() time.Time { return now }))

	s.Resolve(context.Background(), KindFAQ)
	now = now.Add(6 * time.Minute)
	s.Resolve(context.Background(), KindFAQ)

	if got := atomic.LoadInt64(&fetches); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}

func TestResolveFallsBackToPersistedCache(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(faqDoc))
	}))
	defer srv.Close()

	now := time.Now()
	s := New(testStates(t), srv.URL, srv.URL, WithClock(func() time.Time { return now }))

	first := s.Resolve(context.Background(), KindFAQ)
	if len(first.FAQs) != 1 {
		t.Fatalf("seed fetch failed: %+v", first)
	}

	// Expire the memory tier, then break the network: the stale persisted
	// entry must still serve.
	failing.Store(true)
	now = now.Add(time.Hour)

	base := s.Resolve(context.Background(), KindFAQ)
	if len(base.FAQs) != 1 || base.FAQs[0].Response != "Ships in 3 days." {
		t.Errorf("stale cache not served, got %+v", base)
	}
}

func TestResolveParseFailureFallsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"faqs": [broken`))
	}))
	defer srv.Close()

	s := New(testStates(t), srv.URL, srv.URL)

	base := s.Resolve(context.Background(), KindFAQ)
	if len(base.FAQs) != 3 {
		t.Errorf("parse failure did not degrade to defaults, got %d FAQs", len(base.FAQs))
	}
}

func TestFetchCarriesCacheBuster(t *testing.T) {
	var sawParam atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") != "" {
			sawParam.Store(true)
		}
		w.Write([]byte(faqDoc))
	}))
	defer srv.Close()

	s := New(testStates(t), srv.URL, srv.URL)
	s.Resolve(context.Background(), KindFAQ)

	if !sawParam.Load() {
		t.Error("fetch did not carry the cache-busting t parameter")
	}
}

func TestRefreshBypassesFreshCache(t *testing.T) {
	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		w.Write([]byte(faqDoc))
	}))
	defer srv.Close()

	s := New(testStates(t), srv.URL, srv.URL)
	s.Resolve(context.Background(), KindFAQ)
	s.Refresh(context.Background(), KindFAQ)

	if got := atomic.LoadInt64(&fetches); got != 2 {
		t.Errorf("fetches = %d, want 2", got)
	}
}
