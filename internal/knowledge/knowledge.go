// Package knowledge resolves the FAQ and trained-intent knowledge bases
// through a tiered strategy: fresh in-memory cache, remote fetch, persisted
// cache regardless of staleness, built-in defaults. Resolve never fails past
// its own boundary: callers always get some knowledge base.
package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/deskhand/deskhand/internal/defaults"
	"github.com/deskhand/deskhand/internal/logging"
	"github.com/deskhand/deskhand/internal/state"
)

// Kind selects which knowledge document to resolve.
type Kind string

const (
	KindFAQ      Kind = "faq"
	KindTraining Kind = "training"
)

// FAQ is one keyword-matched entry.
type FAQ struct {
	Keywords   []string `json:"keywords"`
	Response   string   `json:"response"`
	ResponseSW string   `json:"response_sw,omitempty"`
	Category   string   `json:"category"`
}

// Intent is one trained pattern group with candidate responses.
type Intent struct {
	Patterns    []string `json:"patterns"`
	Responses   []string `json:"responses"`
	ResponsesSW []string `json:"responses_sw,omitempty"`
}

// Base is a resolved knowledge base. A FAQ document carries FAQs, a training
// document carries Intents; both fields exist so a combined document also
// parses.
type Base struct {
	FAQs    []FAQ    `json:"faqs,omitempty"`
	Intents []Intent `json:"intents,omitempty"`
}

// CacheEntry is the persisted form of a fetched knowledge base. Timestamp is
// unix milliseconds; the entry is fresh while now-timestamp < CacheTTL.
type CacheEntry struct {
	Data      *Base `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

// Store resolves knowledge bases. Safe for concurrent use; at most one
// network fetch is in flight per kind.
type Store struct {
	client *http.Client
	states *state.Store
	urls   map[Kind]string
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[Kind]*memEntry
}

type memEntry struct {
	base      *Base
	fetchedAt time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

// WithTTL overrides the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a knowledge store persisting cache entries into states.
func New(states *state.Store, faqURL, trainingURL string, opts ...Option) *Store {
	s := &Store{
		client: &http.Client{Timeout: 15 * time.Second},
		states: states,
		urls: map[Kind]string{
			KindFAQ:      faqURL,
			KindTraining: trainingURL,
		},
		ttl:   defaults.CacheTTL,
		now:   time.Now,
		cache: make(map[Kind]*memEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns the knowledge base for kind. It is idempotent and never
// fails: network, HTTP and parse errors all degrade to the persisted cache,
// and a missing persisted cache degrades to the built-in defaults.
func (s *Store) Resolve(ctx context.Context, kind Kind) *Base {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Tier 1: fresh in-memory cache, no I/O.
	if entry, ok := s.cache[kind]; ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		return entry.base
	}

	// Tier 2: remote fetch.
	base, err := s.fetch(ctx, kind)
	if err == nil {
		s.cache[kind] = &memEntry{base: base, fetchedAt: s.now()}
		s.persist(kind, base)
		return base
	}
	logging.Warnf("knowledge fetch failed for %s: %v", kind, err)

	// Tier 3: persisted cache, staleness irrelevant after a failed fetch.
	if cached := s.persisted(kind); cached != nil {
		return cached
	}

	// Tier 4: built-in defaults.
	return Default(kind)
}

// Refresh drops the in-memory freshness for kind and re-resolves, so the next
// readers get current data without waiting out the TTL.
func (s *Store) Refresh(ctx context.Context, kind Kind) *Base {
	s.mu.Lock()
	delete(s.cache, kind)
	s.mu.Unlock()
	return s.Resolve(ctx, kind)
}

// fetch loads and parses the remote document. Network failure, non-2xx
// status and malformed JSON are all the same error to the caller.
func (s *Store) fetch(ctx context.Context, kind Kind) (*Base, error) {
	docURL, ok := s.urls[kind]
	if !ok || docURL == "" {
		return nil, fmt.Errorf("no document URL for kind %s", kind)
	}

	// Cache-busting timestamp parameter, the documents sit behind CDN caches.
	u, err := url.Parse(docURL)
	if err != nil {
		return nil, fmt.Errorf("bad document URL: %w", err)
	}
	q := u.Query()
	q.Set("t", fmt.Sprintf("%d", s.now().UnixMilli()))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var base Base
	if err := json.Unmarshal(body, &base); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &base, nil
}

// persist stores a CacheEntry; a storage failure only costs us the fallback
// tier, so it is logged and swallowed.
func (s *Store) persist(kind Kind, base *Base) {
	entry := CacheEntry{Data: base, Timestamp: s.now().UnixMilli()}
	if err := s.states.SetJSON(cacheKey(kind), entry); err != nil {
		logging.Warnf("knowledge cache persist failed for %s: %v", kind, err)
	}
}

func (s *Store) persisted(kind Kind) *Base {
	var entry CacheEntry
	ok, err := s.states.GetJSON(cacheKey(kind), &entry)
	if err != nil {
		logging.Warnf("knowledge cache read failed for %s: %v", kind, err)
	}
	if !ok || entry.Data == nil {
		return nil
	}
	return entry.Data
}

func cacheKey(kind Kind) string {
	if kind == KindTraining {
		return state.KeyTrainingCache
	}
	return state.KeyFAQCache
}
