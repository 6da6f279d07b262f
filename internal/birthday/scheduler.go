package birthday

import (
	"context"
	"os"
	"strconv"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler fires the greeting run once a day at a fixed local hour. It owns
// nothing but the timer; the work itself is the injected run function.
type Scheduler struct {
	hour   int
	run    func(ctx context.Context)
	logger *zap.Logger
	done   chan struct{}
}

func NewScheduler(service *Service, logger *zap.Logger) *Scheduler {
	hour := 9
	if raw := os.Getenv("BIRTHDAY_HOUR"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 && parsed < 24 {
			hour = parsed
		}
	}
	return &Scheduler{
		hour: hour,
		run: func(ctx context.Context) {
			_, _, _ = service.SendGreetings(ctx)
		},
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start wires the scheduler into the fx lifecycle.
func (s *Scheduler) Start(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.logger.Info("starting birthday scheduler", zap.Int("hour", s.hour))
			go s.loop()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Info("stopping birthday scheduler")
			close(s.done)
			return nil
		},
	})
}

func (s *Scheduler) loop() {
	for {
		timer := time.NewTimer(untilNext(time.Now(), s.hour))
		select {
		case <-timer.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			s.run(ctx)
			cancel()
		case <-s.done:
			timer.Stop()
			return
		}
	}
}

// untilNext returns the duration until the next occurrence of hour o'clock.
func untilNext(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
