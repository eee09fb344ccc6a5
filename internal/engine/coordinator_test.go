package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rahul/ghostline/internal/plan"
)

// scriptedPlanner returns canned step responses in order, then keeps
// returning the last one.
type scriptedPlanner struct {
	steps []*StepResponse
	calls int
}

func (s *scriptedPlanner) ParsePlan(ctx context.Context, command, memoryContext string) (*plan.Plan, error) {
	return nil, errors.New("not used")
}

func (s *scriptedPlanner) NextStep(ctx context.Context, goal *Goal) (*StepResponse, error) {
	i := s.calls
	s.calls++
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i], nil
}

// erroringPlanner always fails to produce a step.
type erroringPlanner struct {
	calls int
}

func (e *erroringPlanner) ParsePlan(ctx context.Context, command, memoryContext string) (*plan.Plan, error) {
	return nil, errors.New("not used")
}

func (e *erroringPlanner) NextStep(ctx context.Context, goal *Goal) (*StepResponse, error) {
	e.calls++
	return nil, errors.New("model unavailable")
}

func stepFor(module, function string) *StepResponse {
	return &StepResponse{Action: &plan.Action{
		Module: module, Function: function, Args: map[string]plan.Value{},
	}}
}

func testCoordinator(t *testing.T, planner Planner, rep Reporter, budget, maxIter int) *Coordinator {
	t.Helper()
	return NewCoordinator(planner, testDispatcher(t, rep), rep, nil, budget, maxIter)
}

func TestCoordinator_DoneOnFirstIteration(t *testing.T) {
	planner := &scriptedPlanner{steps: []*StepResponse{
		{Done: true, Summary: "nothing to do"},
	}}
	rep := &recordingReporter{}
	c := testCoordinator(t, planner, rep, 3, 25)

	goal := NewGoal("already satisfied")
	if goal.Status() != GoalPending {
		t.Fatalf("new goal should be pending, got %s", goal.Status())
	}

	status := c.Run(context.Background(), goal, "chat1")
	if status != GoalCompleted {
		t.Fatalf("expected completed, got %s", status)
	}
	if len(goal.Steps()) != 0 {
		t.Error("no steps should have been executed")
	}
	if goal.Summary() != "nothing to do" {
		t.Errorf("summary lost: %q", goal.Summary())
	}
	if len(rep.goals) != 1 || rep.goals[0].Status != "completed" {
		t.Errorf("expected one terminal goal update, got %+v", rep.goals)
	}
}

func TestCoordinator_ExecutesStepsUntilDone(t *testing.T) {
	planner := &scriptedPlanner{steps: []*StepResponse{
		stepFor("pc", "screenshot"),
		stepFor("pc", "screenshot"),
		{Done: true, Summary: "took two screenshots"},
	}}
	rep := &recordingReporter{}
	c := testCoordinator(t, planner, rep, 3, 25)

	goal := NewGoal("capture the desktop twice")
	status := c.Run(context.Background(), goal, "chat1")
	if status != GoalCompleted {
		t.Fatalf("expected completed, got %s", status)
	}
	if len(goal.Steps()) != 2 {
		t.Fatalf("expected 2 executed steps, got %d", len(goal.Steps()))
	}
	for i, s := range goal.Steps() {
		if !s.Result.Success {
			t.Errorf("step %d failed: %s", i, s.Result.Error)
		}
	}
}

func TestCoordinator_ConsecutiveFailureBudget(t *testing.T) {
	planner := &scriptedPlanner{steps: []*StepResponse{
		stepFor("pc", "broken"),
	}}
	rep := &recordingReporter{}
	c := testCoordinator(t, planner, rep, 3, 25)

	goal := NewGoal("doomed")
	status := c.Run(context.Background(), goal, "chat1")
	if status != GoalFailed {
		t.Fatalf("expected failed, got %s", status)
	}
	if len(goal.Steps()) != 3 {
		t.Errorf("expected exactly 3 attempts (the budget), got %d", len(goal.Steps()))
	}
	if !strings.Contains(goal.Summary(), "device unavailable") {
		t.Errorf("summary should carry the last error: %q", goal.Summary())
	}
}

func TestCoordinator_SuccessResetsFailureCounter(t *testing.T) {
	planner := &scriptedPlanner{steps: []*StepResponse{
		stepFor("pc", "broken"),
		stepFor("pc", "broken"),
		stepFor("pc", "screenshot"),
		stepFor("pc", "broken"),
		stepFor("pc", "broken"),
		{Done: true, Summary: "limped through"},
	}}
	rep := &recordingReporter{}
	c := testCoordinator(t, planner, rep, 3, 25)

	goal := NewGoal("flaky path")
	status := c.Run(context.Background(), goal, "chat1")
	if status != GoalCompleted {
		t.Fatalf("two failures, a success, then two failures must stay within a budget of 3; got %s", status)
	}
	if len(goal.Steps()) != 5 {
		t.Errorf("expected 5 executed steps, got %d", len(goal.Steps()))
	}
}

func TestCoordinator_PlannerErrorsBurnBudget(t *testing.T) {
	planner := &erroringPlanner{}
	c := testCoordinator(t, planner, &recordingReporter{}, 3, 25)

	goal := NewGoal("unplannable")
	status := c.Run(context.Background(), goal, "chat1")
	if status != GoalFailed {
		t.Fatalf("expected failed, got %s", status)
	}
	if planner.calls != 3 {
		t.Errorf("expected exactly 3 planner attempts, got %d", planner.calls)
	}
	if len(goal.Steps()) != 0 {
		t.Errorf("no steps should have been executed, got %d", len(goal.Steps()))
	}
}

func TestCoordinator_UnreachableFails(t *testing.T) {
	planner := &scriptedPlanner{steps: []*StepResponse{
		{Unreachable: true, Summary: "no way to do that"},
	}}
	c := testCoordinator(t, planner, &recordingReporter{}, 3, 25)

	goal := NewGoal("impossible")
	if status := c.Run(context.Background(), goal, "chat1"); status != GoalFailed {
		t.Fatalf("expected failed, got %s", status)
	}
	if goal.Summary() != "no way to do that" {
		t.Errorf("summary lost: %q", goal.Summary())
	}
}

func TestCoordinator_IterationBound(t *testing.T) {
	planner := &scriptedPlanner{steps: []*StepResponse{
		stepFor("pc", "screenshot"),
	}}
	c := testCoordinator(t, planner, &recordingReporter{}, 3, 5)

	goal := NewGoal("never finishes")
	if status := c.Run(context.Background(), goal, "chat1"); status != GoalFailed {
		t.Fatalf("expected failed at iteration bound, got %s", status)
	}
	if len(goal.Steps()) != 5 {
		t.Errorf("expected exactly 5 steps, got %d", len(goal.Steps()))
	}
}

func TestCoordinator_CancelBetweenIterations(t *testing.T) {
	started := make(chan struct{})
	planner := &blockingPlanner{started: started, release: make(chan struct{})}
	c := testCoordinator(t, planner, &recordingReporter{}, 3, 25)

	goal := NewGoal("long running")
	done := make(chan GoalStatus, 1)
	go func() { done <- c.Run(context.Background(), goal, "chat1") }()

	<-started
	goal.Cancel()
	close(planner.release)

	select {
	case status := <-done:
		if status != GoalCancelled {
			t.Fatalf("expected cancelled, got %s", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator did not observe the cancel flag")
	}
}

// blockingPlanner holds the first NextStep call until released so the test
// can flip the cancel flag mid-run.
type blockingPlanner struct {
	started chan struct{}
	release chan struct{}
	once    bool
}

func (b *blockingPlanner) ParsePlan(ctx context.Context, command, memoryContext string) (*plan.Plan, error) {
	return nil, errors.New("not used")
}

func (b *blockingPlanner) NextStep(ctx context.Context, goal *Goal) (*StepResponse, error) {
	if !b.once {
		b.once = true
		close(b.started)
		<-b.release
	}
	return stepFor("pc", "screenshot"), nil
}
