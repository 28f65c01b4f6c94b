// Package model provides domain types shared across packages.
package model

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus represents the lifecycle state of an agent run.
// Terminal states are final; a run never re-enters a prior state.
type RunStatus string

const (
	// RunRunning means the run is actively processing steps.
	RunRunning RunStatus = "running"
	// RunCompleted means the run finished with an answer (possibly partial).
	RunCompleted RunStatus = "completed"
	// RunCancelled means the run was stopped by an external cancel signal.
	RunCancelled RunStatus = "cancelled"
	// RunFailed means the run hit an unrecoverable error.
	RunFailed RunStatus = "failed"
)

// String returns the string representation of the run status.
func (s RunStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status is final.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunCancelled, RunFailed:
		return true
	default:
		return false
	}
}

// ParseRunStatus parses a string into a RunStatus.
func ParseRunStatus(s string) (RunStatus, error) {
	switch strings.ToLower(s) {
	case "running":
		return RunRunning, nil
	case "completed":
		return RunCompleted, nil
	case "cancelled":
		return RunCancelled, nil
	case "failed":
		return RunFailed, nil
	default:
		return "", fmt.Errorf("unknown run status: %s", s)
	}
}

// Message is a persisted chat message within a project conversation.
type Message struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Status     RunStatus `json:"status"`
	IsComplete bool      `json:"is_complete"`
	CreatedAt  int64     `json:"created_at"`
}

// File is a project file stored in the persistence layer.
// The store is the source of truth for content; caches layer on top.
type File struct {
	ProjectID string `json:"project_id"`
	Path      string `json:"path"`
	Content   string `json:"content"`
	UpdatedAt int64  `json:"updated_at"`
}

// GenerationEvent is an append-only audit record emitted by file-mutating
// tools and the project generator. Appends are best-effort: a failed append
// never fails the operation that produced it.
type GenerationEvent struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	FilePath  string `json:"file_path,omitempty"`
	Preview   string `json:"preview,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Generation event types.
const (
	EventFileWritten  = "file_written"
	EventFileDeleted  = "file_deleted"
	EventPhaseStarted = "phase_started"
	EventPhaseDone    = "phase_done"
	EventPhaseFailed  = "phase_failed"
	EventToolCall     = "tool_call"
	EventVerification = "verification"
)

// AgentStatus represents the lifecycle state of a background agent.
type AgentStatus string

const (
	AgentPending   AgentStatus = "pending"
	AgentRunning   AgentStatus = "running"
	AgentCompleted AgentStatus = "completed"
	AgentFailed    AgentStatus = "failed"
	AgentCancelled AgentStatus = "cancelled"
)

// String returns the string representation of the agent status.
func (s AgentStatus) String() string {
	return string(s)
}

// BackgroundAgent tracks a multi-phase project generation run.
// Progress is a percentage derived from completed phases over total phases
// and never decreases.
type BackgroundAgent struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"project_id"`
	Title       string      `json:"title"`
	Status      AgentStatus `json:"status"`
	Progress    int         `json:"progress"`
	CurrentStep string      `json:"current_step"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   int64       `json:"created_at"`
	UpdatedAt   int64       `json:"updated_at"`
}

// WithProgress returns a copy with progress advanced to pct.
// Progress is monotonic: a lower value is ignored.
func (a BackgroundAgent) WithProgress(pct int, step string) BackgroundAgent {
	if pct > a.Progress {
		a.Progress = pct
	}
	a.CurrentStep = step
	a.UpdatedAt = time.Now().Unix()
	return a
}
