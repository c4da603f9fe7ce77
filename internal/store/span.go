package store

import (
	"time"

	"github.com/google/uuid"
)

// Span kinds recorded by the agent engine for observability.
const (
	SpanTypeAgent    = "agent"
	SpanTypeLLMCall  = "llm_call"
	SpanTypeToolCall = "tool_call"
)

const (
	SpanStatusCompleted = "completed"
	SpanStatusError      = "error"
)

// SpanLevelDefault is the default verbosity level attached to a span.
const SpanLevelDefault = "default"

// SpanData describes one traced unit of work inside an agent run. It carries
// enough structure to be translated into an OpenTelemetry span by
// internal/tracing without the engine needing to import the OTel SDK
// directly.
type SpanData struct {
	ID           uuid.UUID
	TraceID      uuid.UUID
	ParentSpanID *uuid.UUID
	AgentID      *uuid.UUID

	SpanType string
	Name     string

	StartTime  time.Time
	EndTime    *time.Time
	DurationMS int

	Model    string
	Provider string

	ToolName   string
	ToolCallID string

	InputPreview  string
	OutputPreview string

	InputTokens  int
	OutputTokens int

	Status       string
	Error        string
	FinishReason string
	Level        string
	Metadata     []byte

	CreatedAt time.Time
}
