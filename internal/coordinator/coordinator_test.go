package coordinator

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deskhand/deskhand/internal/events"
	"github.com/deskhand/deskhand/internal/knowledge"
	"github.com/deskhand/deskhand/internal/platform"
	"github.com/deskhand/deskhand/internal/state"
	"github.com/deskhand/deskhand/internal/types"
)

type fixture struct {
	states    *state.Store
	bus       *events.Bus
	registry  *platform.Registry
	coord     *Coordinator
	clock     *fakeClock
	broadcast *atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	states, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("failed to open state store: %v", err)
	}
	t.Cleanup(func() { states.Close() })

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	// Unreachable URLs: knowledge resolution exercises the default tier,
	// which is all these tests need.
	ks := knowledge.New(states, "http://127.0.0.1:1/faq.json", "http://127.0.0.1:1/training.json")

	registry := platform.NewRegistry()
	clock := &fakeClock{}
	coord := New(states, bus, ks, registry, WithClock(clock), WithPollInterval(time.Second))
	t.Cleanup(coord.Stop)

	var broadcasts atomic.Int64
	events.Subscribe(bus, events.TopicMessageUpdated, func(_ context.Context, _ types.CustomerMessage) error {
		broadcasts.Add(1)
		return nil
	})

	return &fixture{
		states:    states,
		bus:       bus,
		registry:  registry,
		coord:     coord,
		clock:     clock,
		broadcast: &broadcasts,
	}
}

func TestReportMessageIdempotentForRepeats(t *testing.T) {
	f := newFixture(t)

	msg := types.CustomerMessage{TabID: "tab-1", Message: "where is my order", Platform: platform.Zendesk}

	ack := f.coord.ReportMessage(msg)
	if !ack.Success {
		t.Fatal("first report not acknowledged")
	}
	waitFor(t, func() bool { return f.broadcast.Load() == 1 }, "first broadcast")

	// Identical message, even from another tab: acknowledged, no broadcast.
	msg.TabID = "tab-2"
	ack = f.coord.ReportMessage(msg)
	if !ack.Success {
		t.Fatal("repeat report not acknowledged")
	}
	time.Sleep(100 * time.Millisecond)
	if got := f.broadcast.Load(); got != 1 {
		t.Errorf("broadcasts after identical repeat = %d, want 1", got)
	}

	// A different message broadcasts again.
	msg.Message = "cancel my order"
	f.coord.ReportMessage(msg)
	waitFor(t, func() bool { return f.broadcast.Load() == 2 }, "second broadcast")

	if got := f.coord.Status().LastMessage; got != "cancel my order" {
		t.Errorf("lastMessage = %q", got)
	}
}

func TestReportMessageUpdatesPlatform(t *testing.T) {
	f := newFixture(t)

	f.coord.ReportMessage(types.CustomerMessage{TabID: "t", Message: "hi", Platform: platform.Freshdesk})
	if got := f.coord.Status().DetectedPlatform; got != platform.Freshdesk {
		t.Errorf("platform = %q, want freshdesk", got)
	}

	// Unknown does not clobber a known platform.
	f.coord.ReportMessage(types.CustomerMessage{TabID: "t", Message: "hi again", Platform: platform.Unknown})
	if got := f.coord.Status().DetectedPlatform; got != platform.Freshdesk {
		t.Errorf("platform after unknown report = %q, want freshdesk", got)
	}
}

func TestObserveTabRequiresKnownPlatform(t *testing.T) {
	f := newFixture(t)

	if _, err := f.coord.ObserveTab("tab-1", "https://example.com"); err == nil {
		t.Error("observing an unsupported URL succeeded")
	}

	// Known platform but no extractor registered: still unsupported.
	if _, err := f.coord.ObserveTab("tab-1", "https://acme.zendesk.com"); err == nil {
		t.Error("observing without a registered extractor succeeded")
	}
}

func TestToggleCyclesLeaveExactlyOneTicker(t *testing.T) {
	f := newFixture(t)

	extractor := newFakeExtractor(platform.Zendesk)
	f.registry.Register(extractor)

	if _, err := f.coord.ObserveTab("tab-1", "https://acme.zendesk.com/agent"); err != nil {
		t.Fatalf("ObserveTab failed: %v", err)
	}
	waitFor(t, func() bool { return len(f.clock.active()) == 1 }, "initial ticker")

	for i := 0; i < 10; i++ {
		f.coord.ToggleEnabled(false)
		waitFor(t, func() bool { return len(f.clock.active()) == 0 }, "ticker cancelled")
		f.coord.ToggleEnabled(true)
		waitFor(t, func() bool { return len(f.clock.active()) == 1 }, "ticker restarted")
	}

	if got := len(f.clock.active()); got != 1 {
		t.Fatalf("active tickers after 10 toggle cycles = %d, want 1", got)
	}

	// One extraction per tick on the surviving ticker.
	before := extractor.calls.Load()
	f.clock.active()[0].tick()
	waitFor(t, func() bool { return extractor.calls.Load() == before+1 }, "tick poll")
	time.Sleep(50 * time.Millisecond)
	if got := extractor.calls.Load(); got != before+1 {
		t.Errorf("extraction calls = %d, want %d", got, before+1)
	}
}

func TestToggleWhileDisabledObserveTabDefersMonitoring(t *testing.T) {
	f := newFixture(t)

	extractor := newFakeExtractor(platform.Intercom)
	f.registry.Register(extractor)

	f.coord.ToggleEnabled(false)
	if _, err := f.coord.ObserveTab("tab-1", "https://app.intercom.com/inbox"); err != nil {
		t.Fatalf("ObserveTab failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := len(f.clock.active()); got != 0 {
		t.Fatalf("monitor started while disabled: %d active tickers", got)
	}

	f.coord.ToggleEnabled(true)
	waitFor(t, func() bool { return len(f.clock.active()) == 1 }, "monitor started on enable")
}

func TestStatePersistsAcrossCoordinators(t *testing.T) {
	f := newFixture(t)

	f.coord.Start(context.Background())
	f.coord.ToggleEnabled(false)
	f.coord.SetLanguage(types.LangSwahili)
	f.coord.ReportMessage(types.CustomerMessage{TabID: "t", Message: "persisted?", Platform: platform.Hootsuite})

	// A second coordinator over the same store picks the state up, the way
	// a daemon restart does.
	ks := knowledge.New(f.states, "http://127.0.0.1:1/faq.json", "http://127.0.0.1:1/training.json")
	second := New(f.states, f.bus, ks, f.registry, WithClock(f.clock))
	second.Start(context.Background())
	defer second.Stop()

	got := second.Status()
	if got.Enabled {
		t.Error("enabled flag not restored")
	}
	if got.Language != types.LangSwahili {
		t.Errorf("language = %q, want sw", got.Language)
	}
	if got.LastMessage != "persisted?" {
		t.Errorf("lastMessage = %q", got.LastMessage)
	}
	if got.DetectedPlatform != platform.Hootsuite {
		t.Errorf("platform = %q, want hootsuite", got.DetectedPlatform)
	}
}

func TestReleaseTabStopsMonitor(t *testing.T) {
	f := newFixture(t)

	f.registry.Register(newFakeExtractor(platform.Freshchat))
	if _, err := f.coord.ObserveTab("tab-1", "https://web.freshchat.com/agent"); err != nil {
		t.Fatalf("ObserveTab failed: %v", err)
	}
	waitFor(t, func() bool { return len(f.clock.active()) == 1 }, "ticker running")

	f.coord.ReleaseTab("tab-1")
	waitFor(t, func() bool { return len(f.clock.active()) == 0 }, "ticker released")
}
