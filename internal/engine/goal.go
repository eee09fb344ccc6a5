package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/ghostline/internal/plan"
)

// GoalStatus is the state of an autonomous Goal.
type GoalStatus string

const (
	GoalPending   GoalStatus = "pending"
	GoalRunning   GoalStatus = "running"
	GoalCompleted GoalStatus = "completed"
	GoalFailed    GoalStatus = "failed"
	GoalCancelled GoalStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s GoalStatus) Terminal() bool {
	return s == GoalCompleted || s == GoalFailed || s == GoalCancelled
}

// GoalStep is one executed (Action, Result) pair in a Goal's history.
type GoalStep struct {
	Action plan.Action
	Result plan.Result
}

// Goal is a multi-step autonomous objective. Steps are append-only; Status
// only ever moves forward to a terminal state.
type Goal struct {
	ID          string
	Description string
	CreatedAt   time.Time

	mu        sync.Mutex
	status    GoalStatus
	steps     []GoalStep
	updatedAt time.Time
	summary   string

	cancelled atomic.Bool
}

func NewGoal(description string) *Goal {
	now := time.Now()
	return &Goal{
		ID:          uuid.NewString(),
		Description: description,
		CreatedAt:   now,
		status:      GoalPending,
		updatedAt:   now,
	}
}

// Cancel requests cooperative cancellation. The Coordinator observes the flag
// between iterations only; an in-flight capability call is never interrupted.
func (g *Goal) Cancel() {
	g.cancelled.Store(true)
}

func (g *Goal) Status() GoalStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Summary returns the terminal summary (planner's own words on completion,
// the exhaustion or cancellation reason otherwise).
func (g *Goal) Summary() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.summary
}

// Steps returns a copy of the executed (Action, Result) history.
func (g *Goal) Steps() []GoalStep {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GoalStep, len(g.steps))
	copy(out, g.steps)
	return out
}

// Results returns just the Results, positionally indexed, for the Resolver.
func (g *Goal) Results() []plan.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]plan.Result, len(g.steps))
	for i, s := range g.steps {
		out[i] = s.Result
	}
	return out
}

func (g *Goal) UpdatedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.updatedAt
}

func (g *Goal) append(action plan.Action, res plan.Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.steps = append(g.steps, GoalStep{Action: action, Result: res})
	g.updatedAt = time.Now()
}

func (g *Goal) setStatus(status GoalStatus, summary string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status.Terminal() {
		return
	}
	g.status = status
	if summary != "" {
		g.summary = summary
	}
	g.updatedAt = time.Now()
}
