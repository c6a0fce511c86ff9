// Package coordinator is the long-lived owner of the authoritative extension
// state. Every reader and writer funnels through it: page contexts report
// detected messages, the popup toggles flags, and the coordinator persists
// and fans out the result. Racing tabs resolve last-write-wins, there are no
// sequence numbers.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/deskhand/deskhand/internal/defaults"
	"github.com/deskhand/deskhand/internal/events"
	"github.com/deskhand/deskhand/internal/knowledge"
	"github.com/deskhand/deskhand/internal/logging"
	"github.com/deskhand/deskhand/internal/platform"
	"github.com/deskhand/deskhand/internal/state"
	"github.com/deskhand/deskhand/internal/types"
)

// ErrUnsupportedPlatform is returned when a tab cannot be observed because
// its URL matches no known platform or no extractor is registered for it.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Coordinator holds the single in-memory copy of ExtensionState and the
// per-tab monitors.
type Coordinator struct {
	states    *state.Store
	bus       *events.Bus
	knowledge *knowledge.Store
	registry  *platform.Registry
	clock     Clock
	interval  time.Duration

	mu       sync.Mutex
	state    types.ExtensionState
	monitors map[string]*Monitor
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock injects a time source (tests).
func WithClock(c Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithPollInterval overrides the monitoring interval.
func WithPollInterval(d time.Duration) Option {
	return func(co *Coordinator) { co.interval = d }
}

// WithDefaultLanguage sets the language used before any preference is
// persisted.
func WithDefaultLanguage(lang types.Language) Option {
	return func(co *Coordinator) { co.state.Language = lang.Normalize() }
}

// New creates a coordinator. Call Start before serving requests.
func New(states *state.Store, bus *events.Bus, ks *knowledge.Store, registry *platform.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		states:    states,
		bus:       bus,
		knowledge: ks,
		registry:  registry,
		clock:     RealClock{},
		interval:  defaults.PollInterval,
		monitors:  make(map[string]*Monitor),
		state: types.ExtensionState{
			Enabled:          true,
			DetectedPlatform: platform.Unknown,
			Language:         types.LangEnglish,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start loads persisted state over the defaults, writes the merged state back
// (the install path), and eagerly warms the FAQ cache.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	c.loadPersisted()
	snapshot := c.state
	c.mu.Unlock()

	c.persist(snapshot)

	go func() {
		c.knowledge.Resolve(ctx, knowledge.KindFAQ)
		logging.Debugf("coordinator: FAQ cache warmed")
	}()
}

// Stop halts every monitor.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.monitors {
		m.Stop()
	}
}

// Status returns the current in-memory snapshot.
func (c *Coordinator) Status() types.ExtensionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ToggleEnabled updates the enabled flag, persists it, starts or stops every
// monitor, and broadcasts the new state. Responds synchronously.
func (c *Coordinator) ToggleEnabled(enabled bool) types.Ack {
	c.mu.Lock()
	c.state.Enabled = enabled
	snapshot := c.state
	for _, m := range c.monitors {
		if enabled {
			m.Start()
		} else {
			m.Stop()
		}
	}
	c.mu.Unlock()

	c.persist(snapshot)
	c.broadcastState(snapshot)
	return types.Ack{Success: true}
}

// SetLanguage updates the reply language preference.
func (c *Coordinator) SetLanguage(lang types.Language) types.Ack {
	c.mu.Lock()
	c.state.Language = lang.Normalize()
	snapshot := c.state
	c.mu.Unlock()

	c.persist(snapshot)
	c.broadcastState(snapshot)
	return types.Ack{Success: true}
}

// ReportMessage handles a "new customer message" event from any context.
// A message equal to the stored one is an idempotent no-op: acknowledged,
// nothing persisted, nothing broadcast. Otherwise the state updates
// last-write-wins and every other context is notified.
func (c *Coordinator) ReportMessage(msg types.CustomerMessage) types.Ack {
	c.mu.Lock()
	if msg.Message == c.state.LastMessage {
		c.mu.Unlock()
		return types.Ack{Success: true}
	}
	c.state.LastMessage = msg.Message
	if msg.Platform != platform.Unknown && platform.Valid(msg.Platform) {
		c.state.DetectedPlatform = msg.Platform
	}
	snapshot := c.state
	c.mu.Unlock()

	c.persist(snapshot)
	if err := events.Emit(c.bus, events.TopicMessageUpdated, msg); err != nil {
		logging.Warnf("coordinator: message broadcast dropped: %v", err)
	}
	return types.Ack{Success: true}
}

// ObservePlatform records a platform classification from tab navigation.
// Unknown never overwrites a known platform, matching the install-time
// behavior of the page observer.
func (c *Coordinator) ObservePlatform(id platform.ID) {
	if id == platform.Unknown || !platform.Valid(id) {
		return
	}
	c.mu.Lock()
	c.state.DetectedPlatform = id
	snapshot := c.state
	c.mu.Unlock()

	c.persist(snapshot)
}

// Knowledge resolves a knowledge base on behalf of a context.
func (c *Coordinator) Knowledge(ctx context.Context, kind knowledge.Kind) *knowledge.Base {
	return c.knowledge.Resolve(ctx, kind)
}

// ObserveTab registers a tab for monitoring. The tab moves straight to
// Monitoring when the extension is enabled; a tab on an unsupported platform
// is rejected and stays unobserved.
func (c *Coordinator) ObserveTab(tabID, url string) (platform.ID, error) {
	id := platform.Detect(url)
	if id == platform.Unknown {
		return id, ErrUnsupportedPlatform
	}
	extractor, ok := c.registry.Lookup(id)
	if !ok {
		return id, ErrUnsupportedPlatform
	}

	c.mu.Lock()
	if existing, ok := c.monitors[tabID]; ok {
		existing.Stop()
	}
	m := NewMonitor(tabID, extractor, c.interval, c.clock, c.onMonitorMessage)
	c.monitors[tabID] = m
	enabled := c.state.Enabled
	c.state.DetectedPlatform = id
	snapshot := c.state
	c.mu.Unlock()

	c.persist(snapshot)
	if enabled {
		m.Start()
	}
	return id, nil
}

// ReleaseTab stops and forgets a tab's monitor.
func (c *Coordinator) ReleaseTab(tabID string) {
	c.mu.Lock()
	m, ok := c.monitors[tabID]
	if ok {
		delete(c.monitors, tabID)
	}
	c.mu.Unlock()
	if ok {
		m.Stop()
	}
}

func (c *Coordinator) onMonitorMessage(tabID, message string, p platform.ID) {
	c.ReportMessage(types.CustomerMessage{TabID: tabID, Message: message, Platform: p})
}

// persist mirrors the snapshot into the state store. A storage failure
// degrades to in-memory operation; the coordinator's copy stays
// authoritative either way.
func (c *Coordinator) persist(snapshot types.ExtensionState) {
	err := c.states.Set(map[string]json.RawMessage{
		state.KeyEnabled:     mustJSON(snapshot.Enabled),
		state.KeyLastMessage: mustJSON(snapshot.LastMessage),
		state.KeyPlatform:    mustJSON(snapshot.DetectedPlatform),
		state.KeyLanguage:    mustJSON(snapshot.Language),
	})
	if err != nil {
		logging.Warnf("coordinator: state persist degraded: %v", err)
	}
}

func (c *Coordinator) broadcastState(snapshot types.ExtensionState) {
	if err := events.Emit(c.bus, events.TopicStateChanged, snapshot); err != nil {
		logging.Warnf("coordinator: state broadcast dropped: %v", err)
	}
}

// loadPersisted overlays stored values onto the defaults. Missing keys keep
// their defaults; an unavailable store leaves the defaults untouched.
func (c *Coordinator) loadPersisted() {
	values, err := c.states.Get(state.KeyEnabled, state.KeyLastMessage, state.KeyPlatform, state.KeyLanguage)
	if err != nil {
		logging.Warnf("coordinator: persisted state unavailable, using defaults: %v", err)
	}

	if raw, ok := values[state.KeyEnabled]; ok {
		var v bool
		if json.Unmarshal(raw, &v) == nil {
			c.state.Enabled = v
		}
	}
	if raw, ok := values[state.KeyLastMessage]; ok {
		var v string
		if json.Unmarshal(raw, &v) == nil {
			c.state.LastMessage = v
		}
	}
	if raw, ok := values[state.KeyPlatform]; ok {
		var v platform.ID
		if json.Unmarshal(raw, &v) == nil && platform.Valid(v) {
			c.state.DetectedPlatform = v
		}
	}
	if raw, ok := values[state.KeyLanguage]; ok {
		var v types.Language
		if json.Unmarshal(raw, &v) == nil {
			c.state.Language = v.Normalize()
		}
	}
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		// Only primitive state values reach here.
		return json.RawMessage(`null`)
	}
	return raw
}
