package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/clawlite/internal/memory"
)

// ============================================================
// memory_search
// ============================================================

// MemorySearchTool runs a lexical top-K lookup against long-term memory.
// Use memory_get to fetch a specific entry's full text by id afterward.
type MemorySearchTool struct {
	mgr *memory.Manager
}

func NewMemorySearchTool(mgr *memory.Manager) *MemorySearchTool {
	return &MemorySearchTool{mgr: mgr}
}

func (t *MemorySearchTool) Name() string { return "memory_search" }
func (t *MemorySearchTool) Description() string {
	return "Search long-term memory for facts relevant to a query. Returns matching entry ids, source tags, and text."
}

func (t *MemorySearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Keywords to search for in remembered facts.",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum entries to return (default 5).",
			},
		},
		"required": []string{"query"},
	}
}

func (t *MemorySearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.mgr == nil {
		return ErrorResult("memory is not enabled for this agent")
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return ErrorResult("query is required")
	}

	limit := 5
	switch v := args["limit"].(type) {
	case float64:
		if int(v) > 0 {
			limit = int(v)
		}
	case int:
		if v > 0 {
			limit = v
		}
	}

	entries := t.mgr.TopK(query, limit)
	if len(entries) == 0 {
		return UserResult("no matching memory entries")
	}

	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "- [%s] (%s) %s\n", e.ID, e.SourceTag, e.Text)
	}
	return UserResult(strings.TrimRight(sb.String(), "\n"))
}
