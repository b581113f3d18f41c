package observability

import (
	"sync"
	"time"
)

// Phase is the stage of the plan-execute-verify loop shown on the dashboard.
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhasePlanning  Phase = "PLANNING"
	PhaseExecuting Phase = "EXECUTING"
	PhaseVerifying Phase = "VERIFYING"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentPhase  Phase
	ActiveTask    string
	ActiveRuns    int
	LastHeartbeat time.Time
}

var globalStatus = &SystemStatus{
	CurrentPhase:  PhaseIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(phase Phase, task string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentPhase = phase
	globalStatus.ActiveTask = task
}

// BeginRun marks a run as started and returns a func that marks it done.
// The dashboard falls back to IDLE once no runs are active.
func BeginRun(task string) func() {
	globalStatus.mu.Lock()
	globalStatus.ActiveRuns++
	globalStatus.CurrentPhase = PhasePlanning
	globalStatus.ActiveTask = task
	globalStatus.mu.Unlock()

	return func() {
		globalStatus.mu.Lock()
		defer globalStatus.mu.Unlock()
		globalStatus.ActiveRuns--
		if globalStatus.ActiveRuns <= 0 {
			globalStatus.ActiveRuns = 0
			globalStatus.CurrentPhase = PhaseIdle
			globalStatus.ActiveTask = ""
		}
	}
}

// Snapshot is a point-in-time copy of the system status.
type Snapshot struct {
	Phase         Phase
	Task          string
	ActiveRuns    int
	LastHeartbeat time.Time
}

// GetStatus retrieves a copy of the global system status.
func GetStatus() Snapshot {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return Snapshot{
		Phase:         globalStatus.CurrentPhase,
		Task:          globalStatus.ActiveTask,
		ActiveRuns:    globalStatus.ActiveRuns,
		LastHeartbeat: globalStatus.LastHeartbeat,
	}
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
