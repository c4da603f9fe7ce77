// Package bootstrap manages the operator-facing context files that get
// seeded into a fresh workspace and injected into the system prompt: the
// persona (IDENTITY.md, SOUL.md), operator profile (USER.md), available
// tooling notes (TOOLS.md), heartbeat policy (HEARTBEAT.md), and the
// one-shot first-run checklist (BOOTSTRAP.md). Single-operator mode has no
// per-user or per-team variant of these files — one set per workspace.
package bootstrap

import "github.com/nextlevelbuilder/clawlite/internal/sessions"

// Workspace context file names, seeded by EnsureWorkspaceFiles and read back
// by internal/agent to assemble the system prompt.
const (
	AgentsFile    = "AGENTS.md"
	SoulFile      = "SOUL.md"
	ToolsFile     = "TOOLS.md"
	IdentityFile  = "IDENTITY.md"
	UserFile      = "USER.md"
	HeartbeatFile = "HEARTBEAT.md"
	BootstrapFile = "BOOTSTRAP.md"
)

// ContextFile is one named document injected into the system prompt.
type ContextFile struct {
	Path    string
	Content string
}

// IsSubagentSession reports whether sessionKey belongs to a spawned
// subagent run, which gets the minimal (not full) prompt variant.
func IsSubagentSession(sessionKey string) bool {
	return sessions.IsSubagentSession(sessionKey)
}

// IsCronSession reports whether sessionKey belongs to a scheduled cron run.
func IsCronSession(sessionKey string) bool {
	return sessions.IsCronSession(sessionKey)
}
