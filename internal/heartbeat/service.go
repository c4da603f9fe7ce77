// Package heartbeat runs periodic agent check-ins: on each tick it schedules
// a run through the cron lane, prompting the agent to review HEARTBEAT.md
// and its recent context, then delivers anything worth surfacing back to
// the agent's last-used channel. Routine "nothing to report" acks are
// suppressed so heartbeats stay invisible unless something needs attention.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/clawlite/internal/agent"
	"github.com/nextlevelbuilder/clawlite/internal/channels"
	"github.com/nextlevelbuilder/clawlite/internal/config"
	"github.com/nextlevelbuilder/clawlite/internal/scheduler"
	"github.com/nextlevelbuilder/clawlite/internal/sessions"
	"github.com/nextlevelbuilder/clawlite/internal/store"
)

const (
	defaultPrompt = "Heartbeat check-in. Review HEARTBEAT.md and your recent context. " +
		"If nothing needs proactive attention, reply exactly \"HEARTBEAT_OK\"."
	defaultAckMaxChars = 300
	ackToken           = "HEARTBEAT_OK"
)

// Service drives one ticker per agent with heartbeats enabled.
type Service struct {
	cfg        *config.Config
	sched      *scheduler.Scheduler
	sessions   store.SessionStore
	channelMgr *channels.Manager

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewService builds a heartbeat service. sched is used to run heartbeat
// prompts through the cron lane so they share concurrency control and
// /stop handling with scheduled jobs; sessStore resolves each agent's
// last-used delivery channel for target="last".
func NewService(cfg *config.Config, sched *scheduler.Scheduler, sessStore store.SessionStore, channelMgr *channels.Manager) *Service {
	return &Service{cfg: cfg, sched: sched, sessions: sessStore, channelMgr: channelMgr}
}

// Start launches a goroutine per agent whose heartbeat.every is set and
// parses to a positive duration. Call once; Stop tears everything down.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, agentID := range s.agentIDs() {
		hb := s.cfg.ResolveAgent(agentID).Heartbeat
		interval, ok := parseInterval(hb)
		if !ok {
			continue
		}
		slog.Info("heartbeat: enabled", "agent", agentID, "every", hb.Every)
		s.wg.Add(1)
		go s.run(ctx, agentID, hb, interval)
	}
}

// Stop cancels all heartbeat goroutines and waits for them to exit.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Service) agentIDs() []string {
	ids := []string{config.DefaultAgentID}
	for id := range s.cfg.Agents.List {
		if id == config.DefaultAgentID {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseInterval(hb *config.HeartbeatConfig) (time.Duration, bool) {
	if hb == nil || hb.Every == "" {
		return 0, false
	}
	d, err := time.ParseDuration(hb.Every)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func (s *Service) run(ctx context.Context, agentID string, hb *config.HeartbeatConfig, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !withinActiveHours(hb.ActiveHours, time.Now()) {
				continue
			}
			s.fire(ctx, agentID, hb)
		}
	}
}

func (s *Service) fire(ctx context.Context, agentID string, hb *config.HeartbeatConfig) {
	sessionKey := sessions.BuildAgentMainSessionKey(agentID, hb.Session)

	prompt := hb.Prompt
	if prompt == "" {
		prompt = defaultPrompt
	}

	outCh := s.sched.Schedule(ctx, scheduler.LaneCron, agent.RunRequest{
		SessionKey: sessionKey,
		Message:    prompt,
		Channel:    "heartbeat",
		RunID:      fmt.Sprintf("heartbeat:%s:%d", agentID, time.Now().UnixNano()),
		Stream:     false,
		TraceName:  fmt.Sprintf("Heartbeat - %s", agentID),
		TraceTags:  []string{"heartbeat"},
	})

	outcome := <-outCh
	if outcome.Err != nil {
		slog.Error("heartbeat: run failed", "agent", agentID, "error", outcome.Err)
		return
	}

	s.deliver(ctx, agentID, hb, outcome.Result.Content)
}

func (s *Service) deliver(ctx context.Context, agentID string, hb *config.HeartbeatConfig, content string) {
	if content == "" || agent.IsSilentReply(content) {
		return
	}
	if isRoutineAck(content, ackMaxChars(hb)) {
		slog.Debug("heartbeat: suppressing routine ack", "agent", agentID)
		return
	}

	target := hb.Target
	if target == "" {
		target = "last"
	}
	if target == "none" {
		return
	}

	var channel, chatID string
	switch target {
	case "last":
		channel, chatID = s.sessions.LastUsedChannel(agentID)
	default:
		channel = target
	}
	if hb.To != "" {
		chatID = hb.To
	}

	if channel == "" || chatID == "" {
		slog.Warn("heartbeat: no delivery target, dropping", "agent", agentID)
		return
	}

	if err := s.channelMgr.SendToChannel(ctx, channel, chatID, content); err != nil {
		slog.Error("heartbeat: delivery failed", "agent", agentID, "channel", channel, "error", err)
	}
}

func ackMaxChars(hb *config.HeartbeatConfig) int {
	if hb.AckMaxChars > 0 {
		return hb.AckMaxChars
	}
	return defaultAckMaxChars
}

// isRoutineAck reports whether content is just a short HEARTBEAT_OK
// acknowledgment not worth delivering to the operator.
func isRoutineAck(content string, maxChars int) bool {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, ackToken) {
		return false
	}
	return len(trimmed)-len(ackToken) <= maxChars
}

func withinActiveHours(ah *config.ActiveHoursConfig, now time.Time) bool {
	if ah == nil || ah.Start == "" || ah.End == "" {
		return true
	}
	loc := time.Local
	if ah.Timezone != "" {
		if l, err := time.LoadLocation(ah.Timezone); err == nil {
			loc = l
		}
	}
	now = now.In(loc)
	start, err1 := time.Parse("15:04", ah.Start)
	end, err2 := time.Parse("15:04", ah.End)
	if err1 != nil || err2 != nil {
		return true
	}
	cur := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if startMin <= endMin {
		return cur >= startMin && cur < endMin
	}
	return cur >= startMin || cur < endMin
}
