package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/clawlite/internal/memory"
)

// ============================================================
// memory_get
// ============================================================

// MemoryGetTool fetches one memory entry by id, as returned by memory_search.
type MemoryGetTool struct {
	mgr *memory.Manager
}

func NewMemoryGetTool(mgr *memory.Manager) *MemoryGetTool {
	return &MemoryGetTool{mgr: mgr}
}

func (t *MemoryGetTool) Name() string { return "memory_get" }
func (t *MemoryGetTool) Description() string {
	return "Fetch a single long-term memory entry by id."
}

func (t *MemoryGetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{
				"type":        "string",
				"description": "Entry id, as returned by memory_search.",
			},
		},
		"required": []string{"id"},
	}
}

func (t *MemoryGetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.mgr == nil {
		return ErrorResult("memory is not enabled for this agent")
	}

	id, _ := args["id"].(string)
	if strings.TrimSpace(id) == "" {
		return ErrorResult("id is required")
	}

	entry, ok := t.mgr.Get(id)
	if !ok {
		return ErrorResult(fmt.Sprintf("no memory entry with id %q", id))
	}

	return UserResult(fmt.Sprintf("[%s] (%s) %s", entry.ID, entry.SourceTag, entry.Text))
}
