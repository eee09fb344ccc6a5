package engine

import (
	"context"
	"fmt"

	"github.com/rahul/ghostline/internal/observability"
	"github.com/rahul/ghostline/internal/plan"
)

// StepResponse is what the planner returns for one Coordinator iteration:
// either a terminal signal with a summary, or exactly one next Action.
type StepResponse struct {
	Done        bool
	Unreachable bool
	Summary     string
	Action      *plan.Action
}

// Planner is the AI collaborator. ParsePlan materializes a full Plan for an
// interactive command; NextStep proposes one Action for a running Goal given
// its accumulated history.
type Planner interface {
	ParsePlan(ctx context.Context, command, memoryContext string) (*plan.Plan, error)
	NextStep(ctx context.Context, goal *Goal) (*StepResponse, error)
}

// Coordinator drives autonomous Goals. Re-planning happens per step rather
// than committing to a fixed multi-step plan up front: each planner choice is
// validated against a real execution outcome before the next one is asked for.
type Coordinator struct {
	planner    Planner
	dispatcher *Dispatcher
	reporter   Reporter
	logger     *observability.Logger

	// failureBudget is the number of consecutive failed steps tolerated
	// before the Goal is abandoned. maxIterations bounds total planner
	// round-trips so a looping planner cannot run a Goal forever.
	failureBudget int
	maxIterations int
}

func NewCoordinator(planner Planner, dispatcher *Dispatcher, reporter Reporter, logger *observability.Logger, failureBudget, maxIterations int) *Coordinator {
	if failureBudget <= 0 {
		failureBudget = 3
	}
	if maxIterations <= 0 {
		maxIterations = 25
	}
	return &Coordinator{
		planner:       planner,
		dispatcher:    dispatcher,
		reporter:      reporter,
		logger:        logger,
		failureBudget: failureBudget,
		maxIterations: maxIterations,
	}
}

// Run executes the Goal to a terminal status and returns it. Every failure
// mode ends in a status, never a panic or a lost Goal.
func (c *Coordinator) Run(ctx context.Context, goal *Goal, target string) GoalStatus {
	goal.setStatus(GoalRunning, "")
	c.logger.LogGoal(target, goal.ID, string(GoalRunning), goal.Description)

	consecutiveFailures := 0
	lastError := ""

	for iter := 0; iter < c.maxIterations; iter++ {
		if goal.cancelled.Load() || ctx.Err() != nil {
			return c.finish(goal, target, GoalCancelled, "cancelled by operator")
		}

		resp, err := c.planner.NextStep(ctx, goal)
		if err != nil {
			// A planner failure burns a failure-budget slot like a failed
			// step: the next iteration re-queries with the error visible.
			consecutiveFailures++
			lastError = err.Error()
			c.reporter.Notify(target, fmt.Sprintf("Planner error on step %d: %v", len(goal.Steps())+1, err))
			if consecutiveFailures >= c.failureBudget {
				exhausted := &GoalExhausted{Failures: consecutiveFailures, LastError: lastError}
				return c.finish(goal, target, GoalFailed, exhausted.Error())
			}
			continue
		}

		if resp.Unreachable {
			summary := resp.Summary
			if summary == "" {
				summary = "planner reported the goal as unreachable"
			}
			return c.finish(goal, target, GoalFailed, summary)
		}
		if resp.Done {
			summary := resp.Summary
			if summary == "" {
				summary = fmt.Sprintf("goal completed in %d steps", len(goal.Steps()))
			}
			return c.finish(goal, target, GoalCompleted, summary)
		}
		if resp.Action == nil {
			consecutiveFailures++
			lastError = "planner returned neither a terminal signal nor an action"
			if consecutiveFailures >= c.failureBudget {
				exhausted := &GoalExhausted{Failures: consecutiveFailures, LastError: lastError}
				return c.finish(goal, target, GoalFailed, exhausted.Error())
			}
			continue
		}

		action := *resp.Action
		stepIndex := len(goal.Steps())
		res := c.dispatcher.ExecuteStep(ctx, target, action, stepIndex, goal.Results())
		goal.append(action, res)

		c.reporter.Progress(target, Progress{
			Step:     stepIndex + 1,
			Module:   action.Module,
			Function: action.Function,
			Success:  res.Success,
			Preview:  preview(res),
		})

		if res.Success {
			consecutiveFailures = 0
		} else {
			consecutiveFailures++
			lastError = res.Error
			if consecutiveFailures >= c.failureBudget {
				exhausted := &GoalExhausted{Failures: consecutiveFailures, LastError: lastError}
				return c.finish(goal, target, GoalFailed, exhausted.Error())
			}
		}
	}

	return c.finish(goal, target, GoalFailed,
		fmt.Sprintf("goal stopped after %d iterations without the planner signalling completion", c.maxIterations))
}

func (c *Coordinator) finish(goal *Goal, target string, status GoalStatus, summary string) GoalStatus {
	goal.setStatus(status, summary)
	c.logger.LogGoal(target, goal.ID, string(status), summary)
	c.reporter.GoalUpdate(target, GoalUpdate{GoalID: goal.ID, Status: string(status), Summary: summary})
	return status
}
