// internal/sweeper/sweeper.go
package sweeper

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Registry is the slice of the session manager the sweeper needs.
type Registry interface {
	SweepExpired(ctx context.Context) int
}

// Sweeper runs the session expiry sweep on a cron schedule, backstopping
// the lazy expiry check done on access.
type Sweeper struct {
	registry Registry
	schedule string
	cron     *cron.Cron
}

// cronParser accepts standard 5-field cron expressions, an optional seconds
// field, and descriptors like "@every 10m".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Sweeper firing on the given cron schedule.
func New(registry Registry, schedule string) *Sweeper {
	return &Sweeper{
		registry: registry,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// Start registers the sweep job and starts the cron ticker.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if n := s.registry.SweepExpired(ctx); n > 0 {
			slog.Info("expiry sweep", "swept", n)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron ticker; a sweep already in flight finishes.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}
