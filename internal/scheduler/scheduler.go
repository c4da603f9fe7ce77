// Package scheduler routes agent runs through named lanes, serializing runs
// within a session (at most one in flight per session by default) while
// capping total concurrency per lane across sessions.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/clawlite/internal/agent"
)

// Lane groups runs that share a concurrency budget. A command arrives on one
// lane ("main" for user messages, "cron" for scheduled jobs, "subagent" for
// spawned task results, "delegate" for cross-agent handoffs) and is dispatched
// against that lane's worker budget independent of the others.
type Lane string

const (
	LaneDefault  Lane = "main"
	LaneCron     Lane = "cron"
	LaneSubagent Lane = "subagent"
	LaneDelegate Lane = "delegate"
)

// LaneConfig caps the number of runs that may execute concurrently within a
// single lane, across all sessions.
type LaneConfig struct {
	MaxConcurrent int
}

// DefaultLanes returns the lane budgets used when no explicit config is
// supplied: the main lane (live chat) gets the largest budget, cron runs
// strictly one at a time (jobs must not overlap), and subagent/delegate
// lanes get a modest budget since they fan out from a single parent run.
func DefaultLanes() map[Lane]LaneConfig {
	return map[Lane]LaneConfig{
		LaneDefault:  {MaxConcurrent: 8},
		LaneCron:     {MaxConcurrent: 1},
		LaneSubagent: {MaxConcurrent: 4},
		LaneDelegate: {MaxConcurrent: 4},
	}
}

// QueueConfig bounds how much work may back up behind a busy session before
// Schedule starts rejecting new runs outright.
type QueueConfig struct {
	MaxPendingPerSession int
}

// DefaultQueueConfig returns the queue depth used when no explicit config is
// supplied.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{MaxPendingPerSession: 32}
}

// ScheduleOpts customizes a single Schedule call.
type ScheduleOpts struct {
	// MaxConcurrent overrides the number of runs from this session allowed
	// in flight at once. Zero means 1 (strict per-session serialization).
	// Group chats pass a higher value since multiple members may message
	// concurrently without needing to queue behind each other.
	MaxConcurrent int
}

// Outcome is delivered on the channel returned by Schedule/ScheduleWithOpts
// once a run completes (successfully, with an error, or via cancellation).
type Outcome struct {
	Result *agent.RunResult
	Err    error
}

// RunFunc executes one agent run. Implementations resolve the serving agent
// from req (typically from req.SessionKey) and return its result.
type RunFunc func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error)

// TokenEstimateFunc reports the current prompt token estimate and context
// window size for a session, used to throttle concurrency as a session
// approaches its compaction threshold.
type TokenEstimateFunc func(sessionKey string) (tokens, contextWindow int)

type task struct {
	ctx   context.Context
	lane  Lane
	req   agent.RunRequest
	opts  ScheduleOpts
	outCh chan Outcome
}

type activeRun struct {
	runID     string
	cancel    context.CancelFunc
	startedAt time.Time
}

type sessionQueue struct {
	mu      sync.Mutex
	pending []*task
	active  []*activeRun // insertion order; index 0 is oldest
}

// Scheduler dispatches agent runs onto lanes, serializing each session's
// runs (FIFO, at-most-N in flight) while a per-lane semaphore caps total
// concurrency across sessions.
type Scheduler struct {
	mu        sync.Mutex
	lanes     map[Lane]chan struct{}
	queueCfg  QueueConfig
	runFunc   RunFunc
	sessions  map[string]*sessionQueue
	tokenFn   TokenEstimateFunc
	closed    bool
	closeOnce sync.Once
}

// NewScheduler creates a Scheduler with the given lane budgets and queue
// limits, dispatching accepted runs through runFunc.
func NewScheduler(lanes map[Lane]LaneConfig, queueCfg QueueConfig, runFunc RunFunc) *Scheduler {
	laneSem := make(map[Lane]chan struct{}, len(lanes))
	for lane, cfg := range lanes {
		max := cfg.MaxConcurrent
		if max <= 0 {
			max = 1
		}
		laneSem[lane] = make(chan struct{}, max)
	}
	return &Scheduler{
		lanes:    laneSem,
		queueCfg: queueCfg,
		runFunc:  runFunc,
		sessions: make(map[string]*sessionQueue),
	}
}

// SetTokenEstimateFunc wires an adaptive throttle: when a session's estimated
// prompt tokens are within a safety margin of its context window, the
// scheduler forces that session down to single-flight regardless of the
// per-call MaxConcurrent, to avoid a concurrent run racing a compaction pass.
func (s *Scheduler) SetTokenEstimateFunc(fn TokenEstimateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenFn = fn
}

// Schedule enqueues req on lane with default concurrency (1 run in flight
// per session) and returns a channel that receives exactly one Outcome.
func (s *Scheduler) Schedule(ctx context.Context, lane Lane, req agent.RunRequest) <-chan Outcome {
	return s.ScheduleWithOpts(ctx, lane, req, ScheduleOpts{})
}

// ScheduleWithOpts enqueues req on lane honoring opts.MaxConcurrent for the
// session. The returned channel receives exactly one Outcome, whether the
// run completes, errors, or is cancelled via CancelSession/CancelOneSession.
func (s *Scheduler) ScheduleWithOpts(ctx context.Context, lane Lane, req agent.RunRequest, opts ScheduleOpts) <-chan Outcome {
	outCh := make(chan Outcome, 1)

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		outCh <- Outcome{Err: context.Canceled}
		return outCh
	}

	t := &task{ctx: ctx, lane: lane, req: req, opts: opts, outCh: outCh}
	sq := s.sessionFor(req.SessionKey)

	sq.mu.Lock()
	if s.queueCfg.MaxPendingPerSession > 0 && len(sq.pending) >= s.queueCfg.MaxPendingPerSession {
		sq.mu.Unlock()
		outCh <- Outcome{Err: context.DeadlineExceeded}
		return outCh
	}
	sq.pending = append(sq.pending, t)
	sq.mu.Unlock()

	go s.drain(req.SessionKey, sq)

	return outCh
}

func (s *Scheduler) sessionFor(key string) *sessionQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	sq, ok := s.sessions[key]
	if !ok {
		sq = &sessionQueue{}
		s.sessions[key] = sq
	}
	return sq
}

// maxConcurrentFor resolves the effective per-session concurrency, applying
// the adaptive token throttle when a session is near its context window.
func (s *Scheduler) maxConcurrentFor(sessionKey string, requested int) int {
	max := requested
	if max <= 0 {
		max = 1
	}

	s.mu.Lock()
	tokenFn := s.tokenFn
	s.mu.Unlock()
	if tokenFn == nil {
		return max
	}

	tokens, window := tokenFn(sessionKey)
	if window <= 0 || tokens <= 0 {
		return max
	}
	if float64(tokens) >= 0.85*float64(window) {
		return 1
	}
	return max
}

// drain dispatches as many pending tasks for sq as its session concurrency
// and lane budget currently allow. Safe to call repeatedly/concurrently;
// each call only claims work not already claimed by another.
func (s *Scheduler) drain(sessionKey string, sq *sessionQueue) {
	for {
		sq.mu.Lock()
		if len(sq.pending) == 0 {
			sq.mu.Unlock()
			return
		}
		maxConcurrent := s.maxConcurrentFor(sessionKey, sq.pending[0].opts.MaxConcurrent)
		if len(sq.active) >= maxConcurrent {
			sq.mu.Unlock()
			return
		}
		t := sq.pending[0]

		sem := s.laneSem(t.lane)
		select {
		case sem <- struct{}{}:
		default:
			sq.mu.Unlock()
			return
		}

		sq.pending = sq.pending[1:]
		runCtx, cancel := context.WithCancel(t.ctx)
		run := &activeRun{runID: t.req.RunID, cancel: cancel, startedAt: time.Now()}
		sq.active = append(sq.active, run)
		sq.mu.Unlock()

		go s.execute(sessionKey, sq, sem, run, t, runCtx)
	}
}

func (s *Scheduler) laneSem(lane Lane) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.lanes[lane]
	if !ok {
		sem = make(chan struct{}, 1)
		s.lanes[lane] = sem
	}
	return sem
}

func (s *Scheduler) execute(sessionKey string, sq *sessionQueue, sem chan struct{}, run *activeRun, t *task, runCtx context.Context) {
	defer func() {
		<-sem
		sq.mu.Lock()
		for i, r := range sq.active {
			if r == run {
				sq.active = append(sq.active[:i], sq.active[i+1:]...)
				break
			}
		}
		sq.mu.Unlock()
		go s.drain(sessionKey, sq)
	}()

	result, err := s.runFunc(runCtx, t.req)
	if err != nil {
		slog.Debug("scheduler: run failed", "session", sessionKey, "lane", t.lane, "error", err)
	}
	t.outCh <- Outcome{Result: result, Err: err}
}

// CancelOneSession cancels the oldest in-flight run for sessionKey,
// matching the /stop command's "stop the current task" semantics. Returns
// true if a run was cancelled.
func (s *Scheduler) CancelOneSession(sessionKey string) bool {
	s.mu.Lock()
	sq, ok := s.sessions[sessionKey]
	s.mu.Unlock()
	if !ok {
		return false
	}

	sq.mu.Lock()
	defer sq.mu.Unlock()
	if len(sq.active) == 0 {
		return false
	}
	sq.active[0].cancel()
	return true
}

// CancelSession cancels every in-flight run for sessionKey and drops any
// queued work, matching the /stopall command. Returns true if anything was
// cancelled or dropped.
func (s *Scheduler) CancelSession(sessionKey string) bool {
	s.mu.Lock()
	sq, ok := s.sessions[sessionKey]
	s.mu.Unlock()
	if !ok {
		return false
	}

	sq.mu.Lock()
	defer sq.mu.Unlock()
	didSomething := len(sq.active) > 0 || len(sq.pending) > 0

	for _, run := range sq.active {
		run.cancel()
	}
	for _, pending := range sq.pending {
		pending.outCh <- Outcome{Err: context.Canceled}
	}
	sq.pending = nil

	return didSomething
}

// Stop cancels every in-flight run across every session. New Schedule calls
// after Stop fail immediately with context.Canceled.
func (s *Scheduler) Stop() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		sessions := make([]*sessionQueue, 0, len(s.sessions))
		for _, sq := range s.sessions {
			sessions = append(sessions, sq)
		}
		s.mu.Unlock()

		for _, sq := range sessions {
			sq.mu.Lock()
			for _, run := range sq.active {
				run.cancel()
			}
			for _, pending := range sq.pending {
				pending.outCh <- Outcome{Err: context.Canceled}
			}
			sq.pending = nil
			sq.mu.Unlock()
		}
	})
}
