package knowledge

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deskhand/deskhand/internal/logging"
)

// Refresher keeps both knowledge documents warm while the daemon runs, so
// interactive lookups rarely pay the fetch latency.
type Refresher struct {
	store *Store
	cron  *cron.Cron
}

// NewRefresher creates a refresher that re-resolves both kinds on schedule.
// The schedule uses the cron "@every" form, e.g. "@every 5m".
func NewRefresher(store *Store, schedule string) (*Refresher, error) {
	r := &Refresher{store: store, cron: cron.New()}

	_, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r.store.Refresh(ctx, KindFAQ)
		r.store.Refresh(ctx, KindTraining)
		logging.Debugf("knowledge caches refreshed")
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Start begins the schedule.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule, waiting for a running refresh to finish.
func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
