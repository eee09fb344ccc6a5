package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/ghostline/internal/governance"
	"github.com/rahul/ghostline/internal/observability"
	"github.com/rahul/ghostline/internal/plan"
)

// AuditLog records every gate decision. Implemented by the store.
type AuditLog interface {
	LogAudit(module, function, args, tier, outcome string) error
}

// ConfirmationRequest is one suspended destructive Action waiting for an
// operator decision. The decision channel is the suspended continuation: the
// owning Plan's goroutine selects on it against the expiry timer.
type ConfirmationRequest struct {
	ID          string
	Action      plan.Action
	RequestedAt time.Time
	ExpiresAt   time.Time
	decision    chan bool
}

// Gate intercepts destructive Actions before dispatch. Suspension is scoped
// to the owning Plan's goroutine only; concurrent Plans each carry their own
// pending request, keyed by ID so decisions are never ambiguous.
type Gate struct {
	policy *governance.Policy
	expiry time.Duration
	audit  AuditLog

	mu      sync.Mutex
	pending map[string]*ConfirmationRequest
}

func NewGate(policy *governance.Policy, expiry time.Duration, audit AuditLog) *Gate {
	return &Gate{
		policy:  policy,
		expiry:  expiry,
		audit:   audit,
		pending: make(map[string]*ConfirmationRequest),
	}
}

// Clear decides whether an Action may be dispatched. Non-destructive Actions
// pass straight through. Destructive Actions suspend the caller until the
// operator approves (nil), denies (ErrConfirmationDenied), or the request
// expires (ErrConfirmationTimeout).
func (g *Gate) Clear(ctx context.Context, target string, action plan.Action, resolvedArgs map[string]any, reporter Reporter) error {
	tier := g.policy.TierOf(action.Module, action.Function)
	if !g.policy.Destructive(action.Module, action.Function) {
		g.record(action, resolvedArgs, tier, "allowed")
		return nil
	}

	req := &ConfirmationRequest{
		ID:          uuid.NewString(),
		Action:      action,
		RequestedAt: time.Now(),
		ExpiresAt:   time.Now().Add(g.expiry),
		decision:    make(chan bool, 1),
	}

	g.mu.Lock()
	g.pending[req.ID] = req
	g.mu.Unlock()
	observability.ConfirmOpened()
	defer func() {
		g.mu.Lock()
		delete(g.pending, req.ID)
		g.mu.Unlock()
		observability.ConfirmClosed()
	}()

	reporter.ConfirmPrompt(target, ConfirmPrompt{
		RequestID:     req.ID,
		ActionSummary: action.Summary(),
		ExpiresIn:     g.expiry,
	})

	select {
	case approved := <-req.decision:
		if approved {
			g.record(action, resolvedArgs, tier, "approved")
			return nil
		}
		g.record(action, resolvedArgs, tier, "denied")
		return ErrConfirmationDenied
	case <-time.After(time.Until(req.ExpiresAt)):
		g.record(action, resolvedArgs, tier, "expired")
		return ErrConfirmationTimeout
	case <-ctx.Done():
		g.record(action, resolvedArgs, tier, "aborted")
		return ErrConfirmationDenied
	}
}

// Resolve delivers the operator's decision for a pending request. It is the
// external callback that resumes the suspended Plan. Unknown or already
// resolved IDs return an error so stale button presses are surfaced.
func (g *Gate) Resolve(requestID string, approved bool) error {
	g.mu.Lock()
	req, ok := g.pending[requestID]
	if ok {
		delete(g.pending, requestID)
	}
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending confirmation with id %s", requestID)
	}
	req.decision <- approved
	return nil
}

// Pending returns a snapshot of outstanding requests in no particular order.
func (g *Gate) Pending() []*ConfirmationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*ConfirmationRequest, 0, len(g.pending))
	for _, req := range g.pending {
		out = append(out, req)
	}
	return out
}

func (g *Gate) record(action plan.Action, args map[string]any, tier governance.Tier, outcome string) {
	if g.audit == nil {
		return
	}
	argsJSON, _ := json.Marshal(args)
	if len(argsJSON) > 800 {
		argsJSON = argsJSON[:800]
	}
	_ = g.audit.LogAudit(action.Module, action.Function, string(argsJSON), tier.String(), outcome)
}
