package cmd

import (
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/clawlite/internal/agent"
	"github.com/nextlevelbuilder/clawlite/internal/bootstrap"
	"github.com/nextlevelbuilder/clawlite/internal/bus"
	"github.com/nextlevelbuilder/clawlite/internal/config"
	"github.com/nextlevelbuilder/clawlite/internal/memory"
	"github.com/nextlevelbuilder/clawlite/internal/providers"
	"github.com/nextlevelbuilder/clawlite/internal/skills"
	"github.com/nextlevelbuilder/clawlite/internal/store"
	"github.com/nextlevelbuilder/clawlite/internal/tools"
)

// createAgentLoop resolves agentID's configuration, builds its Loop, and
// registers it in router. Called once per configured agent at startup —
// single-operator mode has no lazy per-request agent resolution.
func createAgentLoop(
	agentID string,
	cfg *config.Config,
	router *agent.Router,
	providerRegistry *providers.Registry,
	msgBus *bus.MessageBus,
	sessStore store.SessionStore,
	toolsReg *tools.Registry,
	toolPE *tools.PolicyEngine,
	contextFiles []bootstrap.ContextFile,
	skillsLoader *skills.Loader,
	hasMemory bool,
	memMgr *memory.Manager,
) error {
	agentCfg := cfg.ResolveAgent(agentID)

	prov, err := providerRegistry.Get(agentCfg.Provider)
	if err != nil {
		return fmt.Errorf("agent %s: provider %q: %w", agentID, agentCfg.Provider, err)
	}

	var skillAllowList []string
	var agentToolPolicy *config.ToolPolicySpec
	if spec, ok := cfg.Agents.List[agentID]; ok {
		skillAllowList = spec.Skills
		agentToolPolicy = spec.Tools
	}

	loop := agent.NewLoop(agent.LoopConfig{
		ID:                agentID,
		Provider:          prov,
		Model:             agentCfg.Model,
		ContextWindow:     agentCfg.ContextWindow,
		MaxIterations:     agentCfg.MaxToolIterations,
		Workspace:         agentCfg.Workspace,
		Bus:               msgBus,
		Sessions:          sessStore,
		Tools:             toolsReg,
		ToolPolicy:        toolPE,
		AgentToolPolicy:   agentToolPolicy,
		OwnerIDs:          cfg.Gateway.OwnerIDs,
		SkillsLoader:      skillsLoader,
		SkillAllowList:    skillAllowList,
		HasMemory:         hasMemory,
		Memory:            memMgr,
		ContextFiles:      contextFiles,
		CompactionCfg:     agentCfg.Compaction,
		ContextPruningCfg: agentCfg.ContextPruning,
		InjectionAction:   cfg.Gateway.InjectionAction,
		MaxMessageChars:   cfg.Gateway.MaxMessageChars,
	})

	router.Add(agentID, loop)
	slog.Info("agent created", "agent", agentID, "provider", agentCfg.Provider, "model", agentCfg.Model)
	return nil
}

// setupSubagents builds the subagent manager shared by every agent's
// spawn/subagent tools, wiring a createTools closure that gives each
// spawned child its own registry (file, exec, web-fetch and message tools;
// spawn itself is denied at max depth by SubagentDenyLeaf).
func setupSubagents(providerRegistry *providers.Registry, cfg *config.Config, msgBus *bus.MessageBus, workspace string) *tools.SubagentManager {
	agentCfg := cfg.Agents.Defaults
	sc := config.SubagentsConfig{
		MaxConcurrent:       8,
		MaxSpawnDepth:       1,
		MaxChildrenPerAgent: 5,
		ArchiveAfterMinutes: 60,
	}
	if agentCfg.Subagents != nil {
		if agentCfg.Subagents.MaxConcurrent > 0 {
			sc.MaxConcurrent = agentCfg.Subagents.MaxConcurrent
		}
		if agentCfg.Subagents.MaxSpawnDepth > 0 {
			sc.MaxSpawnDepth = agentCfg.Subagents.MaxSpawnDepth
		}
		if agentCfg.Subagents.MaxChildrenPerAgent > 0 {
			sc.MaxChildrenPerAgent = agentCfg.Subagents.MaxChildrenPerAgent
		}
		if agentCfg.Subagents.ArchiveAfterMinutes > 0 {
			sc.ArchiveAfterMinutes = agentCfg.Subagents.ArchiveAfterMinutes
		}
		if agentCfg.Subagents.Model != "" {
			sc.Model = agentCfg.Subagents.Model
		}
	}

	prov, err := providerRegistry.Get(agentCfg.Provider)
	if err != nil {
		slog.Warn("subagents disabled: default provider unavailable", "error", err)
		return nil
	}

	model := sc.Model
	if model == "" {
		model = agentCfg.Model
	}

	createTools := func() *tools.Registry {
		reg := tools.NewRegistry()
		reg.Register(tools.NewReadFileTool(workspace, agentCfg.RestrictToWorkspace))
		reg.Register(tools.NewWriteFileTool(workspace, agentCfg.RestrictToWorkspace))
		reg.Register(tools.NewListFilesTool(workspace, agentCfg.RestrictToWorkspace))
		reg.Register(tools.NewExecTool(workspace, agentCfg.RestrictToWorkspace))
		reg.Register(tools.NewWebFetchTool(tools.WebFetchConfig{}))
		reg.Register(tools.NewMessageTool())
		return reg
	}

	mgr := tools.NewSubagentManager(prov, model, msgBus, createTools, tools.SubagentConfig{
		MaxConcurrent:       sc.MaxConcurrent,
		MaxSpawnDepth:       sc.MaxSpawnDepth,
		MaxChildrenPerAgent: sc.MaxChildrenPerAgent,
		ArchiveAfterMinutes: sc.ArchiveAfterMinutes,
		Model:               model,
	})
	return mgr
}
