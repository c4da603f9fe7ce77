package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/clawlite/internal/skills"
)

// ============================================================
// run_skill
// ============================================================

// RunSkillTool executes a skill's command or script by name. Skills with
// unmet requirements fail here with a clear message rather than on
// skill_search, which only reports already-available skills.
type RunSkillTool struct {
	loader *skills.Loader
}

func NewRunSkillTool(loader *skills.Loader) *RunSkillTool {
	return &RunSkillTool{loader: loader}
}

func (t *RunSkillTool) Name() string { return "run_skill" }
func (t *RunSkillTool) Description() string {
	return "Run a skill by name, passing named arguments. Use skill_search first to find the right skill and its expected arguments."
}

func (t *RunSkillTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Skill name, as returned by skill_search",
			},
			"args": map[string]interface{}{
				"type":        "object",
				"description": "Named arguments substituted into the skill's command/script",
			},
		},
		"required": []string{"name"},
	}
}

func (t *RunSkillTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.loader == nil {
		return ErrorResult("skill registry not available")
	}

	name, _ := args["name"].(string)
	if name == "" {
		return ErrorResult("name is required")
	}

	skillArgs := make(map[string]string)
	if raw, ok := args["args"].(map[string]interface{}); ok {
		for k, v := range raw {
			skillArgs[k] = fmt.Sprint(v)
		}
	}

	res, err := t.loader.Run(ctx, name, skillArgs)
	if err != nil {
		return ErrorResult(err.Error())
	}

	out := res.Stdout
	if res.ExitCode != 0 {
		out = fmt.Sprintf("exit_code=%d\nstdout:\n%s\nstderr:\n%s", res.ExitCode, res.Stdout, res.Stderr)
		return ErrorResult(out)
	}
	if res.Stderr != "" {
		out += "\nstderr:\n" + res.Stderr
	}
	return UserResult(out)
}
