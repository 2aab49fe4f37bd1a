package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/clock"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/logger"
)

// Catalog is the slice of the event service the scheduler drives.
type Catalog interface {
	FinishDueEvents(ctx context.Context, now time.Time) (int, error)
}

// Notifier receives a best-effort announcement after a sweep closed events.
type Notifier interface {
	EventsFinished(ctx context.Context, finished int)
}

// Scheduler sweeps the catalog on a fixed interval and moves every
// SCHEDULED event whose end has passed to FINISHED. Each sweep is a single
// idempotent bulk transition, so overlapping or repeated runs are harmless.
type Scheduler struct {
	catalog  Catalog
	clk      clock.Clock
	log      *logger.Logger
	interval time.Duration
	notifier Notifier

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewScheduler creates a lifecycle scheduler. It does not start sweeping
// until Start is called.
func NewScheduler(catalog Catalog, clk clock.Clock, log *logger.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		catalog:  catalog,
		clk:      clk,
		log:      log,
		interval: interval,
	}
}

// SetNotifier enables sweep announcements (dependency injection)
func (s *Scheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

// Start launches the periodic sweep loop. The first sweep runs immediately
// so a restart catches up on events that ended while the process was down.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx)
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	finished, err := s.RunOnce(ctx)
	if err != nil {
		s.log.ErrorWithContext(ctx, "lifecycle sweep failed", err, nil)
		return
	}
	if finished > 0 && s.notifier != nil {
		s.notifier.EventsFinished(ctx, finished)
	}
}

// RunOnce performs a single sweep and returns how many events it finished.
// Also usable on demand, outside the ticker loop.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	return s.catalog.FinishDueEvents(ctx, s.clk.Now())
}
