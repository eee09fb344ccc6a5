package engine

import (
	"sync"
	"time"
)

// Progress is the per-step record emitted to the reporting channel after
// every executed Action. Total is zero when the plan length is unknown
// (autonomous goals are planned one step at a time).
type Progress struct {
	Step     int    `json:"step"`
	Total    int    `json:"total,omitempty"`
	Module   string `json:"module"`
	Function string `json:"function"`
	Success  bool   `json:"success"`
	Preview  string `json:"preview"`
}

// GoalUpdate announces a Goal reaching a terminal status, or major
// milestones while it runs.
type GoalUpdate struct {
	GoalID  string `json:"goal_id"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// ConfirmPrompt asks the operator to approve or deny one destructive Action.
type ConfirmPrompt struct {
	RequestID     string        `json:"request_id"`
	ActionSummary string        `json:"action_summary"`
	ExpiresIn     time.Duration `json:"expires_in"`
}

// Reporter is the notification channel the engine talks to. target is the
// channel identifier the command arrived on (a chat ID for the Telegram and
// Discord gateways).
type Reporter interface {
	Progress(target string, p Progress)
	GoalUpdate(target string, u GoalUpdate)
	ConfirmPrompt(target string, p ConfirmPrompt)
	Notify(target string, text string)
}

// NopReporter discards everything. Used by tests and as a fallback when no
// gateway is configured.
type NopReporter struct{}

func (NopReporter) Progress(string, Progress)           {}
func (NopReporter) GoalUpdate(string, GoalUpdate)       {}
func (NopReporter) ConfirmPrompt(string, ConfirmPrompt) {}
func (NopReporter) Notify(string, string)               {}

// LateReporter forwards to a Reporter bound after construction. The gateways
// need the Engine to exist before they can be built, so the Engine gets a
// LateReporter and the gateway is bound once it comes up. Events before Bind
// are dropped.
type LateReporter struct {
	mu    sync.RWMutex
	inner Reporter
}

func NewLateReporter() *LateReporter {
	return &LateReporter{}
}

func (r *LateReporter) Bind(inner Reporter) {
	r.mu.Lock()
	r.inner = inner
	r.mu.Unlock()
}

func (r *LateReporter) get() Reporter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.inner == nil {
		return NopReporter{}
	}
	return r.inner
}

func (r *LateReporter) Progress(target string, p Progress)           { r.get().Progress(target, p) }
func (r *LateReporter) GoalUpdate(target string, u GoalUpdate)       { r.get().GoalUpdate(target, u) }
func (r *LateReporter) ConfirmPrompt(target string, p ConfirmPrompt) { r.get().ConfirmPrompt(target, p) }
func (r *LateReporter) Notify(target string, text string)            { r.get().Notify(target, text) }
