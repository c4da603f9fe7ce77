// Package tracing records agent-run spans (LLM calls, tool calls, agent
// turns) as OpenTelemetry spans. It replaces the teacher's DB-backed trace
// collector: a single operator does not need a queryable trace store, but
// still benefits from the same structured span shape exported to any OTLP
// collector configured in internal/config's TelemetryConfig.
package tracing

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/clawlite/internal/store"
)

type ctxKey int

const (
	keyCollector ctxKey = iota
	keyTraceID
	keyParentSpanID
	keyAnnounceParentSpanID
	keyDelegateParentTraceID
)

// Collector turns SpanData values into OpenTelemetry spans. A nil *Collector
// is valid and simply drops every span — used when telemetry is disabled.
type Collector struct {
	tracer  trace.Tracer
	verbose bool

	mu   sync.Mutex
	open map[uuid.UUID]trace.Span
}

// NewCollector builds a Collector that emits spans through the process-wide
// OTel tracer provider (configured by cmd/clawlite from TelemetryConfig).
func NewCollector(verbose bool) *Collector {
	return &Collector{tracer: otel.Tracer("clawlite/agent"), verbose: verbose}
}

// Verbose reports whether full message/tool payloads should be attached to
// spans rather than short previews.
func (c *Collector) Verbose() bool {
	return c != nil && c.verbose
}

// EmitSpan records a completed span. Spans are emitted retroactively (the
// caller has already measured Start/End), so a zero-duration child span is
// started and immediately ended with explicit timestamps.
func (c *Collector) EmitSpan(span store.SpanData) {
	if c == nil || c.tracer == nil {
		return
	}

	opts := []trace.SpanStartOption{
		trace.WithTimestamp(span.StartTime),
		trace.WithAttributes(
			attribute.String("clawlite.span_type", span.SpanType),
			attribute.String("clawlite.model", span.Model),
			attribute.String("clawlite.provider", span.Provider),
		),
	}
	_, sp := c.tracer.Start(context.Background(), span.Name, opts...)

	if span.ToolName != "" {
		sp.SetAttributes(attribute.String("clawlite.tool_name", span.ToolName))
	}
	if span.ToolCallID != "" {
		sp.SetAttributes(attribute.String("clawlite.tool_call_id", span.ToolCallID))
	}
	if span.InputTokens > 0 {
		sp.SetAttributes(attribute.Int("clawlite.input_tokens", span.InputTokens))
	}
	if span.OutputTokens > 0 {
		sp.SetAttributes(attribute.Int("clawlite.output_tokens", span.OutputTokens))
	}
	if span.FinishReason != "" {
		sp.SetAttributes(attribute.String("clawlite.finish_reason", span.FinishReason))
	}
	if c.verbose {
		if span.InputPreview != "" {
			sp.SetAttributes(attribute.String("clawlite.input_preview", span.InputPreview))
		}
		if span.OutputPreview != "" {
			sp.SetAttributes(attribute.String("clawlite.output_preview", span.OutputPreview))
		}
	}

	if span.Status == store.SpanStatusError {
		sp.SetStatus(codes.Error, span.Error)
	} else {
		sp.SetStatus(codes.Ok, "")
	}

	end := span.StartTime
	if span.EndTime != nil {
		end = *span.EndTime
	}
	sp.End(trace.WithTimestamp(end))
}

// CreateTrace starts the root span for a new agent run. Unlike the
// teacher's managed-mode collector, there is no backing TracingStore row:
// the trace is realized directly as an OTel span, started here and ended
// by FinishTrace once the run completes.
func (c *Collector) CreateTrace(ctx context.Context, t *store.TraceData) error {
	if c == nil || c.tracer == nil || t == nil {
		return nil
	}
	opts := []trace.SpanStartOption{
		trace.WithTimestamp(t.StartTime),
		trace.WithAttributes(
			attribute.String("clawlite.session_key", t.SessionKey),
			attribute.String("clawlite.channel", t.Channel),
			attribute.String("clawlite.run_id", t.RunID),
		),
	}
	if c.verbose && t.InputPreview != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("clawlite.input_preview", t.InputPreview)))
	}
	spanCtx, sp := c.tracer.Start(ctx, t.Name, opts...)
	c.mu.Lock()
	if c.open == nil {
		c.open = make(map[uuid.UUID]trace.Span)
	}
	c.open[t.ID] = sp
	c.mu.Unlock()
	_ = spanCtx
	return nil
}

// FinishTrace ends the root span started by CreateTrace.
func (c *Collector) FinishTrace(ctx context.Context, traceID uuid.UUID, status, errMsg, outputPreview string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	sp, ok := c.open[traceID]
	if ok {
		delete(c.open, traceID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if status == store.TraceStatusError || status == store.TraceStatusCancelled {
		sp.SetStatus(codes.Error, errMsg)
	} else {
		sp.SetStatus(codes.Ok, "")
	}
	if c.verbose && outputPreview != "" {
		sp.SetAttributes(attribute.String("clawlite.output_preview", outputPreview))
	}
	sp.End()
}

// WithCollector attaches the active Collector to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, keyCollector, c)
}

// CollectorFromContext returns the Collector attached to ctx, or nil.
func CollectorFromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(keyCollector).(*Collector)
	return c
}

// WithTraceID attaches the run's trace id to ctx.
func WithTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, keyTraceID, id)
}

// TraceIDFromContext returns the active trace id, or uuid.Nil.
func TraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(keyTraceID).(uuid.UUID)
	return id
}

// WithParentSpanID attaches the id that child spans should nest under.
func WithParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, keyParentSpanID, id)
}

// ParentSpanIDFromContext returns the active parent span id, or uuid.Nil.
func ParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(keyParentSpanID).(uuid.UUID)
	return id
}

// WithAnnounceParentSpanID marks the root span a proactively-sent run (cron,
// heartbeat) should nest under, distinguishing it from a reply to the user.
func WithAnnounceParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, keyAnnounceParentSpanID, id)
}

// AnnounceParentSpanIDFromContext returns the announce-parent span id, or uuid.Nil.
func AnnounceParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(keyAnnounceParentSpanID).(uuid.UUID)
	return id
}

// WithDelegateParentTraceID marks the trace id of a run that spawned this one
// via subagent delegation, so the child's spans can be correlated manually
// even though they live under their own trace id.
func WithDelegateParentTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, keyDelegateParentTraceID, id)
}

// DelegateParentTraceIDFromContext returns the delegating run's trace id, or uuid.Nil.
func DelegateParentTraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(keyDelegateParentTraceID).(uuid.UUID)
	return id
}
