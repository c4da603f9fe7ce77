package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/clawlite/internal/store"
)

// ============================================================
// cron
// ============================================================

// CronTool lets the agent schedule, list, and cancel its own follow-up
// invocations (spec §4.4's "every N" / "at RFC3339" / 5-field expressions).
type CronTool struct {
	cron store.CronStore
}

func NewCronTool(cron store.CronStore) *CronTool {
	return &CronTool{cron: cron}
}

func (t *CronTool) Name() string { return "cron" }
func (t *CronTool) Description() string {
	return "Manage scheduled follow-ups for this session. Actions: add, list, remove."
}

func (t *CronTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"add", "list", "remove"},
				"description": "Operation to perform",
			},
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Human-readable name for the job (add)",
			},
			"expression": map[string]interface{}{
				"type":        "string",
				"description": `Schedule expression: "every 10m", "at 2026-01-01T09:00:00Z", or a 5-field cron expression (add)`,
			},
			"prompt": map[string]interface{}{
				"type":        "string",
				"description": "Prompt to run when the job fires (add)",
			},
			"job_id": map[string]interface{}{
				"type":        "string",
				"description": "Job id to remove (remove)",
			},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.cron == nil {
		return ErrorResult("cron store not available")
	}

	sessionKey := ToolSessionKeyFromCtx(ctx)
	action, _ := args["action"].(string)

	switch action {
	case "add":
		name, _ := args["name"].(string)
		expr, _ := args["expression"].(string)
		prompt, _ := args["prompt"].(string)
		if expr == "" || prompt == "" {
			return ErrorResult("expression and prompt are required")
		}
		job := store.CronJob{
			SessionID:  sessionKey,
			AgentID:    ToolAgentKeyFromCtx(ctx),
			Name:       name,
			Expression: expr,
			Prompt:     prompt,
			Enabled:    true,
			Payload: store.CronJobPayload{
				Channel: ToolChannelFromCtx(ctx),
				To:      ToolChatIDFromCtx(ctx),
				Deliver: true,
			},
		}
		id, err := t.cron.Add(job)
		if err != nil {
			return ErrorResult(fmt.Sprintf("failed to add job: %v", err))
		}
		return UserResult(fmt.Sprintf("scheduled job %s (%s)", id, expr))

	case "list":
		jobs := t.cron.List(sessionKey)
		if len(jobs) == 0 {
			return UserResult("no scheduled jobs for this session")
		}
		out := "Scheduled jobs:\n"
		for _, j := range jobs {
			out += fmt.Sprintf("- %s: %q (%s) next=%s\n", j.ID, j.Name, j.Expression, j.NextFireAt.Format("2006-01-02 15:04:05"))
		}
		return UserResult(out)

	case "remove":
		jobID, _ := args["job_id"].(string)
		if jobID == "" {
			return ErrorResult("job_id is required")
		}
		if err := t.cron.Remove(jobID); err != nil {
			return ErrorResult(fmt.Sprintf("failed to remove job: %v", err))
		}
		return UserResult(fmt.Sprintf("removed job %s", jobID))

	default:
		return ErrorResult(fmt.Sprintf("unknown action: %s", action))
	}
}
