package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rahul/ghostline/internal/capability"
	"github.com/rahul/ghostline/internal/observability"
	"github.com/rahul/ghostline/internal/plan"
)

// Dispatcher executes one Plan of Actions in strict order. A capability
// failure never escapes: every outcome, good or bad, becomes a Result at the
// Action's step position.
type Dispatcher struct {
	registry *capability.Registry
	gate     *Gate
	reporter Reporter
	logger   *observability.Logger
}

func NewDispatcher(registry *capability.Registry, gate *Gate, reporter Reporter, logger *observability.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		gate:     gate,
		reporter: reporter,
		logger:   logger,
	}
}

// Execute runs every Action of the plan in order and returns exactly one
// Result per Action. Execution never short-circuits: a failed step records
// its failure and the Plan moves on (later steps that reference the failed
// step die in resolution instead).
func (d *Dispatcher) Execute(ctx context.Context, target string, p *plan.Plan) []plan.Result {
	results := make([]plan.Result, 0, len(p.Actions))
	for i, action := range p.Actions {
		res := d.ExecuteStep(ctx, target, action, i, results)
		results = append(results, res)
		d.report(target, i+1, len(p.Actions), action, res)
	}
	return results
}

// ExecuteStep runs a single Action at position index against the prior
// Results. The Coordinator shares this path so autonomous steps get the same
// resolution, gating, and failure containment as plan steps.
func (d *Dispatcher) ExecuteStep(ctx context.Context, target string, action plan.Action, index int, prior []plan.Result) plan.Result {
	args, err := plan.ResolveArgs(action.Args, index, prior)
	if err != nil {
		// The capability is never invoked on a bad reference.
		return plan.Failed(err)
	}

	if err := d.gate.Clear(ctx, target, action, args, d.reporter); err != nil {
		return plan.Failed(err)
	}

	fn, err := d.registry.Lookup(action.Module, action.Function)
	if err != nil {
		return plan.Failed(err)
	}

	d.logger.LogStep(target, action.Module, action.Function, args)

	payload, err := d.invoke(ctx, action, fn, args)
	if err != nil {
		return plan.Failed(err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return plan.Ok(payload)
}

// invoke runs the handler and converts both returned errors and panics into
// a *CapabilityError.
func (d *Dispatcher) invoke(ctx context.Context, action plan.Action, fn capability.Func, args map[string]any) (payload map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CapabilityError{Module: action.Module, Function: action.Function, Err: fmt.Errorf("handler panic: %v", r)}
		}
	}()
	payload, runErr := fn.Run(ctx, args)
	if runErr != nil {
		return nil, &CapabilityError{Module: action.Module, Function: action.Function, Err: runErr}
	}
	return payload, nil
}

func (d *Dispatcher) report(target string, step, total int, action plan.Action, res plan.Result) {
	p := Progress{
		Step:     step,
		Total:    total,
		Module:   action.Module,
		Function: action.Function,
		Success:  res.Success,
		Preview:  preview(res),
	}
	d.reporter.Progress(target, p)
	d.logger.LogStepResult(target, action.Module, action.Function, res.Success, p.Preview)
}

// preview renders a short single-line view of a Result for progress records.
func preview(res plan.Result) string {
	if !res.Success {
		return res.Error
	}
	if len(res.Payload) == 0 {
		return "ok"
	}
	data, err := json.Marshal(res.Payload)
	if err != nil {
		return "ok"
	}
	s := string(data)
	if len(s) > 200 {
		s = s[:197] + "..."
	}
	return s
}
