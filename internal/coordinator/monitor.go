package coordinator

import (
	"sync"
	"time"

	"github.com/deskhand/deskhand/internal/logging"
	"github.com/deskhand/deskhand/internal/platform"
)

// Monitor polls one tab's extractor for new inbound messages. Its lifecycle
// is the per-tab state machine: created (unobserved), Start (monitoring),
// Stop (stopped), Start again (monitoring). Start and Stop are idempotent,
// so repeated enable/disable toggles never accumulate duplicate tickers.
type Monitor struct {
	tabID     string
	extractor platform.Extractor
	interval  time.Duration
	clock     Clock
	onMessage func(tabID, message string, p platform.ID)

	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	lastSeen string
}

// NewMonitor creates a monitor in the unobserved state.
func NewMonitor(tabID string, e platform.Extractor, interval time.Duration, clock Clock, onMessage func(tabID, message string, p platform.ID)) *Monitor {
	return &Monitor{
		tabID:     tabID,
		extractor: e,
		interval:  interval,
		clock:     clock,
		onMessage: onMessage,
	}
}

// Start begins polling. A running monitor stays as it is: exactly one ticker
// exists per monitoring period.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	logging.Debugf("monitor %s: started (%s)", m.tabID, m.extractor.Platform())
	go m.loop(stop)
}

// Stop cancels the polling ticker. Idempotent; a stopped monitor can be
// started again.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stop)
	logging.Debugf("monitor %s: stopped", m.tabID)
}

// Running reports whether the monitor is in the Monitoring state.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(stop chan struct{}) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	// Initial check before the first tick.
	m.poll()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			m.poll()
		}
	}
}

// poll reads the extractor once. Extraction failure is a neutral no-result,
// never an error. A message equal to the previous one is not re-reported.
func (m *Monitor) poll() {
	message, ok := m.extractor.ExtractMessage()
	if !ok || message == "" {
		return
	}

	m.mu.Lock()
	changed := message != m.lastSeen
	if changed {
		m.lastSeen = message
	}
	m.mu.Unlock()

	if changed {
		m.onMessage(m.tabID, message, m.extractor.Platform())
	}
}
