package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nextlevelbuilder/clawlite/internal/providers"
)

// Tool is a named, JSON-schema-described callable the agent loop can invoke.
// Implementations must be safe for concurrent Execute calls — per-request
// state (workspace, sandbox key, agent id) travels on the context, never as
// mutable fields set before the call.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// AsyncCallback is invoked when an Async tool result eventually resolves
// (e.g. a subagent spawned via the spawn tool finishing its task).
type AsyncCallback func(ctx context.Context, result *Result)

// Registry holds the set of tools available to an agent loop.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Unregister removes a tool by name. No-op if not present.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the tool registered under name, resolving aliases first.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[resolveAlias(name)]
	return t, ok
}

// List returns all registered tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ProviderDefs returns every registered tool as a provider-facing schema,
// unfiltered. Callers that need policy filtering go through PolicyEngine.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	r.mu.RUnlock()

	defs := make([]providers.ToolDefinition, 0, len(names))
	for _, name := range names {
		if t, ok := r.Get(name); ok {
			defs = append(defs, ToProviderDef(t))
		}
	}
	return defs
}

// ToProviderDef converts a Tool into the wire schema sent to LLM providers.
func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}

// Execute runs a tool by name with no channel/session context attached.
// Used by the subagent loop, which has no originating channel.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *Result {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}
	return t.Execute(ctx, args)
}

// ExecuteWithContext runs a tool by name, attaching the originating channel,
// chat, peer kind, and session key to the context so tools that need to
// reply or schedule follow-up work (spawn, sessions_send, message) can do
// so without those values threaded through every Execute signature.
func (r *Registry) ExecuteWithContext(
	ctx context.Context,
	name string,
	args map[string]interface{},
	channel, chatID, peerKind, sessionKey string,
	asyncCB AsyncCallback,
) *Result {
	t, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}

	ctx = WithToolChannel(ctx, channel)
	ctx = WithToolChatID(ctx, chatID)
	ctx = WithToolPeerKind(ctx, peerKind)
	ctx = WithToolSessionKey(ctx, sessionKey)
	if asyncCB != nil {
		ctx = WithToolAsyncCB(ctx, asyncCB)
	}

	return t.Execute(ctx, args)
}

// --- Subagent announce batching ---
//
// Multiple subagents spawned close together announce their results through
// the same parent session; AnnounceQueue debounces those announces into a
// single batched message instead of flooding the chat with one reply per
// subagent.

// AnnounceQueueItem is one subagent's result pending announce.
type AnnounceQueueItem struct {
	SubagentID string
	Label      string
	Status     string
	Result     string
	Runtime    time.Duration
	Iterations int
}

// AnnounceMetadata carries the routing info needed to deliver a batched
// announce back to the originating channel/session.
type AnnounceMetadata struct {
	OriginChannel    string
	OriginChatID     string
	OriginPeerKind   string
	OriginUserID     string
	ParentAgent      string
	OriginTraceID    string
	OriginRootSpanID string
}

// FormatBatchedAnnounce renders one or more completed subagent results into
// a single system message for the parent agent to reformulate.
func FormatBatchedAnnounce(items []AnnounceQueueItem, remainingActive int) string {
	out := "SUBAGENT_RESULTS:\n"
	for _, item := range items {
		status := item.Status
		if status == "" {
			status = TaskStatusCompleted
		}
		out += fmt.Sprintf("\n--- %s (%s, %d iterations, %s) ---\n%s\n",
			item.Label, status, item.Iterations, item.Runtime.Round(time.Second), item.Result)
	}
	if remainingActive > 0 {
		out += fmt.Sprintf("\n(%d more subagent(s) still running)\n", remainingActive)
	}
	return out
}

// AnnounceQueue debounces subagent announces per session key, flushing a
// batch after a short idle window so near-simultaneous completions merge
// into one message instead of several. A batch also flushes early once it
// hits maxBatch items, or once countRunning reports no more subagents are
// still active for that parent (nothing left to coalesce with).
type AnnounceQueue struct {
	mu           sync.Mutex
	window       time.Duration
	maxBatch     int
	pending      map[string][]AnnounceQueueItem
	meta         map[string]AnnounceMetadata
	timers       map[string]*time.Timer
	flush        func(sessionKey string, items []AnnounceQueueItem, meta AnnounceMetadata)
	countRunning func(parentID string) int
}

// NewAnnounceQueue creates a queue that flushes each session's batch after
// windowMs milliseconds of inactivity, once it reaches maxBatch items, or
// once countRunning(parentID) reports zero subagents still running.
func NewAnnounceQueue(
	windowMs int,
	maxBatch int,
	flush func(sessionKey string, items []AnnounceQueueItem, meta AnnounceMetadata),
	countRunning func(parentID string) int,
) *AnnounceQueue {
	return &AnnounceQueue{
		window:       time.Duration(windowMs) * time.Millisecond,
		maxBatch:     maxBatch,
		pending:      make(map[string][]AnnounceQueueItem),
		meta:         make(map[string]AnnounceMetadata),
		timers:       make(map[string]*time.Timer),
		flush:        flush,
		countRunning: countRunning,
	}
}

// Enqueue adds an item to the batch for sessionKey, (re)arming its flush timer.
func (q *AnnounceQueue) Enqueue(sessionKey string, item AnnounceQueueItem, meta AnnounceMetadata) {
	q.mu.Lock()

	q.pending[sessionKey] = append(q.pending[sessionKey], item)
	q.meta[sessionKey] = meta

	if t, ok := q.timers[sessionKey]; ok {
		t.Stop()
		delete(q.timers, sessionKey)
	}

	flushNow := q.maxBatch > 0 && len(q.pending[sessionKey]) >= q.maxBatch
	if !flushNow && q.countRunning != nil && q.countRunning(meta.ParentAgent) == 0 {
		flushNow = true
	}

	if flushNow {
		items := q.pending[sessionKey]
		m := q.meta[sessionKey]
		delete(q.pending, sessionKey)
		delete(q.meta, sessionKey)
		q.mu.Unlock()
		q.flush(sessionKey, items, m)
		return
	}

	q.timers[sessionKey] = time.AfterFunc(q.window, func() {
		q.mu.Lock()
		items := q.pending[sessionKey]
		m := q.meta[sessionKey]
		delete(q.pending, sessionKey)
		delete(q.meta, sessionKey)
		delete(q.timers, sessionKey)
		q.mu.Unlock()

		if len(items) > 0 {
			q.flush(sessionKey, items, m)
		}
	})
	q.mu.Unlock()
}

// generateSubagentID returns a short, unique-enough id for a subagent task.
func generateSubagentID() string {
	return fmt.Sprintf("sub-%d", time.Now().UnixNano())
}

// truncate shortens s to max runes, appending an ellipsis when it overflows.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
