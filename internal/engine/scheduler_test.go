package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rahul/ghostline/internal/plan"
)

type fakeScheduleStore struct {
	mu      sync.Mutex
	due     []Schedule
	updated []int64
	deleted []int64
}

func (f *fakeScheduleStore) DueSchedules() ([]Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.due, nil
}

func (f *fakeScheduleStore) UpdateScheduleLastRun(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, id)
	return nil
}

func (f *fakeScheduleStore) DeleteSchedule(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func TestScheduler_FiresDueSchedules(t *testing.T) {
	p, err := plan.Parse([]byte(`{"actions": [
		{"module": "pc", "function": "screenshot", "args": {}}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	rep := &recordingReporter{}
	commands := &fakeCommandLog{}
	e := testEngine(t, &planOncePlanner{plan: p}, rep, commands)

	store := &fakeScheduleStore{due: []Schedule{
		{ID: 1, Command: "take a screenshot", Target: "chat1", IntervalSeconds: 3600},
		{ID: 2, Command: "take a screenshot", Target: "chat1", IntervalSeconds: 0},
	}}
	s := NewScheduler(e, store, time.Second, nil)

	s.pollAndFire(context.Background())

	// Fired commands run in their own goroutines.
	deadline := time.After(2 * time.Second)
	for {
		commands.mu.Lock()
		n := len(commands.entries)
		commands.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 2 fired commands, got %d", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.updated) != 2 {
		t.Errorf("both schedules should record a run, got %v", store.updated)
	}
	if len(store.deleted) != 1 || store.deleted[0] != 2 {
		t.Errorf("only the one-shot schedule should be deleted, got %v", store.deleted)
	}
}
