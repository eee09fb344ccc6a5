package capability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rahul/ghostline/internal/store"
)

// SchedulerStore is the slice of the persistence layer the scheduler
// module needs.
type SchedulerStore interface {
	CreateSchedule(command, target string, intervalSeconds int) (int64, error)
	ActiveSchedules() ([]store.Schedule, error)
	DeleteSchedule(id int64) error
}

// SchedulerCap lets plans create and manage recurring commands. The
// polling loop that fires them lives in the engine.
type SchedulerCap struct {
	db SchedulerStore
}

func NewSchedulerCap(db SchedulerStore) *SchedulerCap {
	return &SchedulerCap{db: db}
}

func (s *SchedulerCap) Register(r *Registry) error {
	funcs := map[string]Func{
		"create_schedule": {
			Description: "Schedule a command to run repeatedly. Use interval_seconds=0 for a one-shot.",
			Parameters: objSchema(map[string]any{
				"command":          strProp("The natural-language command to run"),
				"interval_seconds": intProp("Seconds between runs; 0 runs once on the next poll"),
			}, []string{"command"}),
			Run: s.createSchedule,
		},
		"list_schedules": {
			Description: "List active schedules.",
			Parameters:  objSchema(nil, nil),
			Run:         s.listSchedules,
		},
		"delete_schedule": {
			Description: "Delete a schedule by its ID. Destructive: requires confirmation.",
			Parameters: objSchema(map[string]any{
				"id": intProp("The schedule ID to delete"),
			}, []string{"id"}),
			Run: s.deleteSchedule,
		},
	}
	for name, fn := range funcs {
		if err := r.Register("scheduler", name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *SchedulerCap) createSchedule(ctx context.Context, args map[string]any) (map[string]any, error) {
	command, err := requireString(args, "command")
	if err != nil {
		return nil, err
	}
	interval := argInt(args, "interval_seconds", 0)
	if interval < 0 {
		return nil, fmt.Errorf("interval_seconds must not be negative")
	}
	target, _ := Target(ctx)

	id, err := s.db.CreateSchedule(command, target, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	desc := "once on the next poll"
	if interval > 0 {
		desc = "every " + (time.Duration(interval) * time.Second).String()
	}
	return map[string]any{
		"text":        fmt.Sprintf("Schedule #%d created: %q runs %s", id, command, desc),
		"schedule_id": id,
	}, nil
}

func (s *SchedulerCap) listSchedules(ctx context.Context, args map[string]any) (map[string]any, error) {
	schedules, err := s.db.ActiveSchedules()
	if err != nil {
		return nil, fmt.Errorf("could not list schedules: %w", err)
	}
	if len(schedules) == 0 {
		return map[string]any{"text": "No active schedules"}, nil
	}
	var b strings.Builder
	for _, sc := range schedules {
		interval := "one-shot"
		if sc.IntervalSeconds > 0 {
			interval = "every " + (time.Duration(sc.IntervalSeconds) * time.Second).String()
		}
		fmt.Fprintf(&b, "#%d %s (%s, last run %s)\n", sc.ID, sc.Command, interval, sc.LastRun)
	}
	return map[string]any{"text": b.String()}, nil
}

func (s *SchedulerCap) deleteSchedule(ctx context.Context, args map[string]any) (map[string]any, error) {
	id := argInt(args, "id", 0)
	if id <= 0 {
		return nil, fmt.Errorf("missing required argument %q", "id")
	}
	if err := s.db.DeleteSchedule(int64(id)); err != nil {
		return nil, fmt.Errorf("failed to delete schedule: %w", err)
	}
	return map[string]any{"text": fmt.Sprintf("Schedule #%d deleted", id)}, nil
}
