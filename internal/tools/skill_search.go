package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/clawlite/internal/skills"
)

// ============================================================
// skill_search
// ============================================================

// SkillSearchTool lets the agent look up skills by keyword when the full
// catalog is too large to inline in the system prompt (see
// skillInlineMaxCount/skillInlineMaxTokens in the agent package).
type SkillSearchTool struct {
	loader *skills.Loader
}

func NewSkillSearchTool(loader *skills.Loader) *SkillSearchTool {
	return &SkillSearchTool{loader: loader}
}

func (t *SkillSearchTool) Name() string { return "skill_search" }
func (t *SkillSearchTool) Description() string {
	return "Search the skill catalog by keyword. Returns matching skill names and descriptions; use run_skill to execute one."
}

func (t *SkillSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Keyword to match against skill names and descriptions. Empty returns the full catalog.",
			},
		},
	}
}

func (t *SkillSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.loader == nil {
		return ErrorResult("skill registry not available")
	}

	rawQuery, _ := args["query"].(string)
	query := strings.ToLower(strings.TrimSpace(rawQuery))
	all := t.loader.ListSkills()

	var matched []string
	for _, s := range all {
		if query == "" ||
			strings.Contains(strings.ToLower(s.Name), query) ||
			strings.Contains(strings.ToLower(s.Description), query) {
			matched = append(matched, fmt.Sprintf("- %s: %s", s.Name, s.Description))
		}
	}

	if len(matched) == 0 {
		return UserResult("no matching skills")
	}
	return UserResult(strings.Join(matched, "\n"))
}
