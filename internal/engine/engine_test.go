package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rahul/ghostline/internal/plan"
)

// planOncePlanner serves a fixed interactive plan and records the memory
// context it was given.
type planOncePlanner struct {
	plan       *plan.Plan
	err        error
	lastMemory string
}

func (p *planOncePlanner) ParsePlan(ctx context.Context, command, memoryContext string) (*plan.Plan, error) {
	p.lastMemory = memoryContext
	return p.plan, p.err
}

func (p *planOncePlanner) NextStep(ctx context.Context, goal *Goal) (*StepResponse, error) {
	return &StepResponse{Done: true, Summary: "done"}, nil
}

type fakeCommandLog struct {
	mu      sync.Mutex
	entries []string
	memory  string
}

func (f *fakeCommandLog) LogCommand(input, thought string, actions string, result string, success bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := "ok"
	if !success {
		status = "failed"
	}
	f.entries = append(f.entries, input+"|"+status)
	return nil
}

func (f *fakeCommandLog) MemoryContext(n int) string {
	return f.memory
}

func testEngine(t *testing.T, planner Planner, rep Reporter, commands CommandLog) *Engine {
	t.Helper()
	dispatcher := testDispatcher(t, rep)
	coordinator := NewCoordinator(planner, dispatcher, rep, nil, 3, 25)
	return New(planner, dispatcher, coordinator, rep, commands, nil)
}

func TestEngine_HandleCommand(t *testing.T) {
	p, err := plan.Parse([]byte(`{
		"thought": "grab the screen",
		"actions": [{"module": "pc", "function": "screenshot", "args": {}}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	planner := &planOncePlanner{plan: p}
	rep := &recordingReporter{}
	commands := &fakeCommandLog{memory: "  [t] ok: previous thing"}
	e := testEngine(t, planner, rep, commands)

	e.HandleCommand(context.Background(), "take a screenshot", "chat1")

	if planner.lastMemory != commands.memory {
		t.Errorf("planner did not receive memory context: %q", planner.lastMemory)
	}
	found := false
	for _, n := range rep.notices {
		if n == "grab the screen" {
			found = true
		}
	}
	if !found {
		t.Errorf("thought not relayed to operator: %v", rep.notices)
	}
	if len(rep.progress) != 1 {
		t.Errorf("expected 1 progress report, got %d", len(rep.progress))
	}
	if len(commands.entries) != 1 || !strings.HasSuffix(commands.entries[0], "|ok") {
		t.Errorf("command not logged as success: %v", commands.entries)
	}
}

func TestEngine_HandleCommand_PlanningFailure(t *testing.T) {
	planner := &planOncePlanner{err: &plan.PlanningError{Reason: "model returned prose"}}
	rep := &recordingReporter{}
	commands := &fakeCommandLog{}
	e := testEngine(t, planner, rep, commands)

	e.HandleCommand(context.Background(), "do something", "chat1")

	if len(rep.progress) != 0 {
		t.Error("nothing must be dispatched when planning fails")
	}
	if len(rep.notices) == 0 || !strings.Contains(rep.notices[0], "Planning failed") {
		t.Errorf("operator not told about the failure: %v", rep.notices)
	}
	if len(commands.entries) != 1 || !strings.HasSuffix(commands.entries[0], "|failed") {
		t.Errorf("failed command not logged: %v", commands.entries)
	}
}

func TestEngine_HandleCommand_FailuresReported(t *testing.T) {
	p, err := plan.Parse([]byte(`{"actions": [
		{"module": "pc", "function": "broken", "args": {}}
	]}`))
	if err != nil {
		t.Fatal(err)
	}
	rep := &recordingReporter{}
	e := testEngine(t, &planOncePlanner{plan: p}, rep, nil)

	e.HandleCommand(context.Background(), "poke the device", "chat1")

	found := false
	for _, n := range rep.notices {
		if strings.Contains(n, "Step 1 failed") && strings.Contains(n, "device unavailable") {
			found = true
		}
	}
	if !found {
		t.Errorf("failure must be reported, never silent: %v", rep.notices)
	}
}

func TestEngine_RunGoal_OnePerTarget(t *testing.T) {
	started := make(chan struct{})
	planner := &blockingPlanner{started: started, release: make(chan struct{})}
	rep := &recordingReporter{}
	e := testEngine(t, planner, rep, nil)

	first := make(chan error, 1)
	go func() {
		_, err := e.RunGoal(context.Background(), "goal one", "chat1")
		first <- err
	}()
	<-started

	if _, err := e.RunGoal(context.Background(), "goal two", "chat1"); err == nil {
		t.Error("second goal on the same channel must be rejected")
	}

	// A different channel is unaffected by chat1's running goal.
	if err := e.CancelGoal("chat2"); err == nil {
		t.Error("cancel on an idle channel must fail")
	}

	if err := e.CancelGoal("chat1"); err != nil {
		t.Errorf("cancel on the busy channel failed: %v", err)
	}
	close(planner.release)

	select {
	case err := <-first:
		if err != nil {
			t.Fatalf("first goal errored: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first goal never finished")
	}

	goal, ok := e.ActiveGoal("chat1")
	if !ok || goal.Status() != GoalCancelled {
		t.Errorf("expected cancelled goal, got %v", goal.Status())
	}

	// Terminal goal frees the slot.
	if _, err := e.RunGoal(context.Background(), "goal three", "chat1"); err != nil {
		t.Errorf("channel should be free after the goal ended: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	results := []plan.Result{
		plan.Ok(map[string]any{"text": "uptime 3 days"}),
		plan.Ok(map[string]any{"path": "/tmp/x.png"}),
		{Success: false, Error: "device unavailable"},
	}
	summary, ok := summarize(results)
	if ok {
		t.Error("a failed step must mark the summary as failed")
	}
	if !strings.Contains(summary, "uptime 3 days") {
		t.Errorf("text payload missing: %q", summary)
	}
	if !strings.Contains(summary, "Step 3 failed: device unavailable") {
		t.Errorf("failure line missing: %q", summary)
	}
	// Payloads without a text-ish key say nothing.
	if strings.Contains(summary, "/tmp/x.png") {
		t.Errorf("non-text payload should not leak into the summary: %q", summary)
	}
}
