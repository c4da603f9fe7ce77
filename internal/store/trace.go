package store

import (
	"time"

	"github.com/google/uuid"
)

const (
	TraceStatusRunning   = "running"
	TraceStatusCompleted = "completed"
	TraceStatusError     = "error"
	TraceStatusCancelled = "cancelled"
)

// TraceData describes one agent run for observability (spec's ambient
// logging/tracing stack, not a spec.md [MODULE] in its own right). It
// roots the span tree emitted by internal/tracing for that run.
type TraceData struct {
	ID            uuid.UUID
	RunID         string
	SessionKey    string
	UserID        string
	Channel       string
	Name          string
	AgentID       *uuid.UUID
	ParentTraceID *uuid.UUID

	InputPreview  string
	OutputPreview string
	Status        string
	Error         string
	Tags          []string

	StartTime time.Time
	EndTime   *time.Time
	CreatedAt time.Time
}
