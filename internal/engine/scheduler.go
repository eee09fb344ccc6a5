package engine

import (
	"context"
	"time"

	"github.com/rahul/ghostline/internal/observability"
)

// Schedule is one stored trigger: a command string to re-enter the pipeline
// with, the channel to report to, and the firing interval. Deciding when a
// schedule is due belongs to the store; the engine only consumes the command.
type Schedule struct {
	ID              int64
	Command         string
	Target          string
	IntervalSeconds int
}

// ScheduleStore is the slice of the memory collaborator the scheduler needs.
type ScheduleStore interface {
	DueSchedules() ([]Schedule, error)
	UpdateScheduleLastRun(id int64) error
	DeleteSchedule(id int64) error
}

// Scheduler polls the store for due schedules and fires each through
// Engine.Invoke. Fired triggers run concurrently with each other and with
// the interactive path.
type Scheduler struct {
	engine   *Engine
	store    ScheduleStore
	interval time.Duration
	logger   *observability.Logger
}

func NewScheduler(engine *Engine, store ScheduleStore, pollInterval time.Duration, logger *observability.Logger) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Scheduler{engine: engine, store: store, interval: pollInterval, logger: logger}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAndFire(ctx)
		}
	}
}

func (s *Scheduler) pollAndFire(ctx context.Context) {
	due, err := s.store.DueSchedules()
	if err != nil {
		s.logger.LogError("", "schedule poll failed: "+err.Error())
		return
	}

	for _, sched := range due {
		if err := s.store.UpdateScheduleLastRun(sched.ID); err != nil {
			s.logger.LogError(sched.Target, "schedule last-run update failed: "+err.Error())
		}
		// One-time schedules (interval 0) fire once and are removed.
		if sched.IntervalSeconds == 0 {
			if err := s.store.DeleteSchedule(sched.ID); err != nil {
				s.logger.LogError(sched.Target, "schedule delete failed: "+err.Error())
			}
		}

		sched := sched
		go s.engine.Invoke(ctx, sched.Command, sched.Target)
	}
}
