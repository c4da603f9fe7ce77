package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nextlevelbuilder/clawlite/internal/config"
	"github.com/nextlevelbuilder/clawlite/internal/providers"
)

const (
	defaultMemoryFlushSoftThresholdTokens = 4000
	defaultMemoryFlushPrompt              = "Extract any durable facts, preferences, or decisions from this conversation worth remembering long-term. Reply with one fact per line, or \"nothing\" if there is nothing worth keeping.\n\n"
	defaultMemoryFlushSystemPrompt        = "You distill conversations into short, durable memory entries. Each line you output becomes one standalone fact; omit anything that is only useful for the current turn."
)

// MemoryFlushSettings is the resolved (defaults-applied) configuration for
// running a memory consolidation pass during compaction.
type MemoryFlushSettings struct {
	Enabled             bool
	SoftThresholdTokens int
	Prompt              string
	SystemPrompt        string
}

// ResolveMemoryFlushSettings normalizes a possibly-nil compaction config into
// concrete memory flush settings. Flush is enabled by default.
func ResolveMemoryFlushSettings(cfg *config.CompactionConfig) MemoryFlushSettings {
	settings := MemoryFlushSettings{
		Enabled:             true,
		SoftThresholdTokens: defaultMemoryFlushSoftThresholdTokens,
		Prompt:              defaultMemoryFlushPrompt,
		SystemPrompt:        defaultMemoryFlushSystemPrompt,
	}

	if cfg == nil || cfg.MemoryFlush == nil {
		return settings
	}

	mf := cfg.MemoryFlush
	if mf.Enabled != nil {
		settings.Enabled = *mf.Enabled
	}
	if mf.SoftThresholdTokens > 0 {
		settings.SoftThresholdTokens = mf.SoftThresholdTokens
	}
	if mf.Prompt != "" {
		settings.Prompt = mf.Prompt
	}
	if mf.SystemPrompt != "" {
		settings.SystemPrompt = mf.SystemPrompt
	}
	return settings
}

// shouldRunMemoryFlush reports whether a flush is due for sessionKey: memory
// must be configured, flush enabled, and the token estimate must already be
// within softThreshold tokens of the compaction threshold. Idempotency across
// rapid re-triggers is the memory store's own debounce, not a count compare
// here, since MemoryFlushCompactionCount and CompactionCount start equal and
// an equality gate would wrongly skip the very first flush.
func (l *Loop) shouldRunMemoryFlush(sessionKey string, tokenEstimate int, settings MemoryFlushSettings) bool {
	if l.memory == nil || !l.hasMemory || !settings.Enabled {
		return false
	}

	historyShare := 0.75
	if l.compactionCfg != nil && l.compactionCfg.MaxHistoryShare > 0 {
		historyShare = l.compactionCfg.MaxHistoryShare
	}
	threshold := int(float64(l.contextWindow) * historyShare)
	if tokenEstimate < threshold-settings.SoftThresholdTokens {
		return false
	}

	return l.memory.ShouldConsolidate(sessionKey, 60*time.Second)
}

// runMemoryFlush asks the model to distill the session's history into durable
// facts and appends each non-empty line to the memory store. It marks the
// flush done for this compaction cycle regardless of outcome, so a failed
// attempt doesn't retry every turn until the next compaction actually lands.
func (l *Loop) runMemoryFlush(ctx context.Context, sessionKey string, settings MemoryFlushSettings) {
	defer l.sessions.SetMemoryFlushDone(sessionKey)

	history := l.sessions.GetHistory(sessionKey)
	if len(history) == 0 {
		return
	}

	var transcript string
	for _, m := range history {
		switch m.Role {
		case "user":
			transcript += fmt.Sprintf("user: %s\n", m.Content)
		case "assistant":
			transcript += fmt.Sprintf("assistant: %s\n", SanitizeAssistantContent(m.Content))
		}
	}

	fctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := l.provider.Chat(fctx, providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "system", Content: settings.SystemPrompt},
			{Role: "user", Content: settings.Prompt + transcript},
		},
		Model:   l.model,
		Options: map[string]interface{}{"max_tokens": 512, "temperature": 0.2},
	})
	if err != nil {
		slog.Warn("memory flush failed", "session", sessionKey, "error", err)
		return
	}

	sourceTag := "session:" + sessionKey
	for _, line := range strings.Split(SanitizeAssistantContent(resp.Content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, "nothing") {
			continue
		}
		if _, err := l.memory.Add(line, sourceTag); err != nil {
			slog.Warn("memory flush: add failed", "session", sessionKey, "error", err)
		}
	}
}
