package coordinator

import "time"

// Ticker abstracts time.Ticker so monitor transitions are testable without
// wall-clock waits.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock produces tickers. The daemon uses the real clock; tests inject a
// virtual one.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// RealClock is the wall-clock implementation.
type RealClock struct{}

func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
