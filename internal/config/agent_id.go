package config

import "strings"

// DefaultAgentID is the agent key used when a session, binding, or cron job
// doesn't name one explicitly, and when no agent in Agents.List is marked
// as the default.
const DefaultAgentID = "default"

// NormalizeAgentID trims whitespace and maps an empty agent id onto
// DefaultAgentID, so callers resolving an agent from a binding, cron job,
// or announce metadata never look up the empty string.
func NormalizeAgentID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultAgentID
	}
	return id
}
