package cmd

import (
	"log/slog"
	"path/filepath"

	"github.com/nextlevelbuilder/clawlite/internal/config"
	"github.com/nextlevelbuilder/clawlite/internal/memory"
)

// setupMemory opens the long-term memory store for an agent's workspace,
// honoring AgentDefaults.Memory.Enabled (default on). Returns nil when
// memory is disabled or the store cannot be opened — callers treat a nil
// Manager as "no memory".
func setupMemory(workspace string, agentCfg config.AgentDefaults) *memory.Manager {
	if agentCfg.Memory != nil && agentCfg.Memory.Enabled != nil && !*agentCfg.Memory.Enabled {
		return nil
	}

	path := filepath.Join(workspace, ".clawlite", "memory.jsonl")
	mgr, err := memory.NewManager(path)
	if err != nil {
		slog.Error("memory: failed to open store, continuing without memory", "path", path, "error", err)
		return nil
	}
	return mgr
}
