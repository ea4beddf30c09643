package presence

import (
	"time"

	"github.com/ecotterell/carelink/server/logger"
	"github.com/go-co-op/gocron"
)

const (
	DefaultTTL           = 10 * time.Minute
	DefaultSweepSchedule = "*/5 * * * *"

	sweepJobTag = "presence_sweep"
)

var logg = logger.NewLogger()

// Store is the slice of the record store the sweeper needs.
type Store interface {
	MarkStaleUsersOffline(cutoff time.Time) (int64, error)
}

// Sweeper periodically flips users offline once their last presence report
// is older than the TTL, so stale users stop matching as carer candidates.
type Sweeper struct {
	store     Store
	scheduler *gocron.Scheduler
	ttl       time.Duration
	schedule  string
}

func NewSweeper(store Store, scheduler *gocron.Scheduler, ttl time.Duration, schedule string) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	return &Sweeper{store: store, scheduler: scheduler, ttl: ttl, schedule: schedule}
}

// Schedule registers the sweep with the cron scheduler.
func (sweeper *Sweeper) Schedule() error {
	_, err := sweeper.scheduler.Cron(sweeper.schedule).Tag(sweepJobTag).Do(sweeper.sweep)
	return err
}

func (sweeper *Sweeper) sweep() {
	count, err := sweeper.store.MarkStaleUsersOffline(time.Now().Add(-sweeper.ttl))
	if err != nil {
		logg.Errorf("presence sweep failed: %v", err)
		return
	}

	if count > 0 {
		logg.Infof("presence sweep marked %v user(s) offline", count)
	}
}
