package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle      Role = "IDLE"
	RolePlanning  Role = "PLANNING"
	RoleExecuting Role = "EXECUTING"
)

// StatusSnapshot is a point-in-time copy of the process-wide status
// rendered by the live dashboard row.
type StatusSnapshot struct {
	Role            Role
	Task            string
	LastHeartbeat   time.Time
	GoalsRunning    int
	PendingConfirms int
}

var status = struct {
	mu              sync.Mutex
	role            Role
	task            string
	lastHeartbeat   time.Time
	goalsRunning    int
	pendingConfirms int
}{role: RoleIdle, lastHeartbeat: time.Now()}

// SetStatus records what the process is currently doing.
func SetStatus(role Role, task string) {
	status.mu.Lock()
	defer status.mu.Unlock()
	status.role = role
	status.task = task
}

// Heartbeat marks the process as alive.
func Heartbeat() {
	status.mu.Lock()
	defer status.mu.Unlock()
	status.lastHeartbeat = time.Now()
}

// GoalStarted and GoalFinished track how many autonomous goals are in flight.
func GoalStarted() {
	status.mu.Lock()
	defer status.mu.Unlock()
	status.goalsRunning++
}

func GoalFinished() {
	status.mu.Lock()
	defer status.mu.Unlock()
	if status.goalsRunning > 0 {
		status.goalsRunning--
	}
}

// ConfirmOpened and ConfirmClosed track outstanding approval prompts.
func ConfirmOpened() {
	status.mu.Lock()
	defer status.mu.Unlock()
	status.pendingConfirms++
}

func ConfirmClosed() {
	status.mu.Lock()
	defer status.mu.Unlock()
	if status.pendingConfirms > 0 {
		status.pendingConfirms--
	}
}

func Snapshot() StatusSnapshot {
	status.mu.Lock()
	defer status.mu.Unlock()
	return StatusSnapshot{
		Role:            status.role,
		Task:            status.task,
		LastHeartbeat:   status.lastHeartbeat,
		GoalsRunning:    status.goalsRunning,
		PendingConfirms: status.pendingConfirms,
	}
}
