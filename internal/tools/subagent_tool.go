package tools

import (
	"context"
	"fmt"
)

// SpawnTool lets an agent fire off a background subagent task: it returns
// immediately with an acknowledgement, and the subagent's result is
// announced back into the parent's session later (see SubagentManager.runTask).
type SpawnTool struct {
	mgr      *SubagentManager
	parentID string
	depth    int
}

func NewSpawnTool(mgr *SubagentManager, parentID string, depth int) *SpawnTool {
	return &SpawnTool{mgr: mgr, parentID: parentID, depth: depth}
}

func (t *SpawnTool) Name() string { return "spawn" }

func (t *SpawnTool) Description() string {
	return "Spawn a background subagent to work on a task independently. Returns immediately; " +
		"the subagent's result is delivered back to this conversation once it finishes."
}

func (t *SpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to complete, written as a self-contained instruction.",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Short human-readable label for this task (defaults to a truncated task summary).",
			},
			"model": map[string]interface{}{
				"type":        "string",
				"description": "Optional model override for this subagent (defaults to the configured subagent model).",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.mgr == nil {
		return ErrorResult("subagents are not enabled for this agent")
	}

	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)
	model, _ := args["model"].(string)

	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)
	peerKind := ToolPeerKindFromCtx(ctx)

	msg, err := t.mgr.Spawn(ctx, t.parentID, t.depth, task, label, model, channel, chatID, peerKind, nil)
	if err != nil {
		return ErrorResult(fmt.Sprintf("failed to spawn subagent: %v", err))
	}
	return NewResult(msg)
}

// SubagentTool runs a subagent task synchronously and returns its result
// directly in this tool call, for when the caller needs the answer inline
// rather than as a later announce.
type SubagentTool struct {
	mgr      *SubagentManager
	parentID string
	depth    int
}

func NewSubagentTool(mgr *SubagentManager, parentID string, depth int) *SubagentTool {
	return &SubagentTool{mgr: mgr, parentID: parentID, depth: depth}
}

func (t *SubagentTool) Name() string { return "subagent" }

func (t *SubagentTool) Description() string {
	return "Run a subagent task synchronously and wait for its result. Use for focused sub-tasks " +
		"whose answer you need before continuing (blocks until the subagent finishes)."
}

func (t *SubagentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to complete, written as a self-contained instruction.",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Short human-readable label for this task (defaults to a truncated task summary).",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SubagentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.mgr == nil {
		return ErrorResult("subagents are not enabled for this agent")
	}

	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)

	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)

	result, _, err := t.mgr.RunSync(ctx, t.parentID, t.depth, task, label, channel, chatID)
	if err != nil {
		return ErrorResult(fmt.Sprintf("subagent failed: %v", err))
	}
	return NewResult(result)
}
