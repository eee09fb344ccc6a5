package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rahul/ghostline/internal/capability"
	"github.com/rahul/ghostline/internal/observability"
	"github.com/rahul/ghostline/internal/plan"
)

// CommandLog is the slice of the memory collaborator the Engine needs:
// append-mostly command history plus the recency context fed to the planner.
type CommandLog interface {
	LogCommand(input, thought string, actions string, result string, success bool) error
	MemoryContext(n int) string
}

// Engine ties the planner, Dispatcher, and Coordinator together behind the
// two entry points the rest of the system uses: HandleCommand for interactive
// messages and Invoke for scheduled triggers. Both run the same
// planner→Dispatcher path.
type Engine struct {
	planner     Planner
	dispatcher  *Dispatcher
	coordinator *Coordinator
	reporter    Reporter
	commands    CommandLog
	logger      *observability.Logger

	mu    sync.Mutex
	goals map[string]*Goal // active goal per target channel
}

func New(planner Planner, dispatcher *Dispatcher, coordinator *Coordinator, reporter Reporter, commands CommandLog, logger *observability.Logger) *Engine {
	return &Engine{
		planner:     planner,
		dispatcher:  dispatcher,
		coordinator: coordinator,
		reporter:    reporter,
		commands:    commands,
		logger:      logger,
		goals:       make(map[string]*Goal),
	}
}

// HandleCommand processes one interactive command end to end: plan, dispatch,
// report, record. Each call is independent; callers run concurrent commands
// in their own goroutines.
func (e *Engine) HandleCommand(ctx context.Context, command, target string) {
	ctx = capability.WithTarget(ctx, target)

	observability.SetStatus(observability.RolePlanning, command)
	defer observability.SetStatus(observability.RoleIdle, "")

	memCtx := ""
	if e.commands != nil {
		memCtx = e.commands.MemoryContext(10)
	}

	p, err := e.planner.ParsePlan(ctx, command, memCtx)
	if err != nil {
		e.reporter.Notify(target, fmt.Sprintf("Planning failed: %v", err))
		e.logCommand(command, "", nil, err.Error(), false)
		return
	}
	e.logger.LogPlan(target, p.Thought, len(p.Actions))

	if p.Thought != "" {
		e.reporter.Notify(target, p.Thought)
	}

	observability.SetStatus(observability.RoleExecuting, command)
	results := e.dispatcher.Execute(ctx, target, p)

	summary, ok := summarize(results)
	if summary != "" {
		e.reporter.Notify(target, summary)
	}
	e.logCommand(command, p.Thought, p.Actions, summary, ok)
}

// Invoke is the scheduled-trigger entry point. A fired trigger's command
// string re-enters the pipeline exactly as if the operator had typed it.
func (e *Engine) Invoke(ctx context.Context, command, target string) {
	e.logger.LogTrigger(target, command)
	e.HandleCommand(ctx, command, target)
}

// RunGoal creates a Goal for the description and drives it to a terminal
// status. Only one active goal per target channel; a second request is
// rejected until the first finishes or is cancelled.
func (e *Engine) RunGoal(ctx context.Context, description, target string) (*Goal, error) {
	goal := NewGoal(description)

	e.mu.Lock()
	if existing, ok := e.goals[target]; ok && !existing.Status().Terminal() {
		e.mu.Unlock()
		return nil, fmt.Errorf("a goal is already running on this channel; /cancel it first")
	}
	e.goals[target] = goal
	e.mu.Unlock()

	ctx = capability.WithTarget(ctx, target)
	observability.GoalStarted()
	status := e.coordinator.Run(ctx, goal, target)
	observability.GoalFinished()

	e.logCommand("goal: "+description, "", nil,
		fmt.Sprintf("%s: %s", status, goal.Summary()), status == GoalCompleted)
	return goal, nil
}

// CancelGoal flags the target's active goal for cooperative cancellation.
func (e *Engine) CancelGoal(target string) error {
	e.mu.Lock()
	goal, ok := e.goals[target]
	e.mu.Unlock()
	if !ok || goal.Status().Terminal() {
		return errors.New("no goal is running on this channel")
	}
	goal.Cancel()
	return nil
}

// ActiveGoal returns the target's current goal, if any.
func (e *Engine) ActiveGoal(target string) (*Goal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	goal, ok := e.goals[target]
	return goal, ok
}

func (e *Engine) logCommand(input, thought string, actions []plan.Action, result string, success bool) {
	if e.commands == nil {
		return
	}
	var acts []string
	for _, a := range actions {
		acts = append(acts, a.Summary())
	}
	if err := e.commands.LogCommand(input, thought, strings.Join(acts, "; "), result, success); err != nil {
		e.logger.LogError("", fmt.Sprintf("command log write failed: %v", err))
	}
}

// summarize collapses a Plan's Results into the closing message sent to the
// operator. Failures are listed individually; silent failure is disallowed.
func summarize(results []plan.Result) (string, bool) {
	var parts []string
	ok := true
	for i, res := range results {
		if !res.Success {
			ok = false
			parts = append(parts, fmt.Sprintf("Step %d failed: %s", i+1, res.Error))
			continue
		}
		if text := textPayload(res.Payload); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), ok
}

func textPayload(payload map[string]any) string {
	for _, key := range []string{"text", "output", "result", "data"} {
		if v, found := payload[key]; found {
			s := strings.TrimSpace(fmt.Sprintf("%v", v))
			if s != "" {
				if len(s) > 1000 {
					s = s[:1000]
				}
				return s
			}
		}
	}
	return ""
}
