package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, dir, name, content string) {
	t.Helper()
	skillDir := filepath.Join(dir, name)
	if err := os.MkdirAll(skillDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, skillFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoaderDiscoversWorkspaceSkill(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills"), "greet", "---\nname: greet\ndescription: says hello\n---\n\nSay hello.")

	l := NewLoader(ws, "", "")
	d, ok := l.Get("greet")
	if !ok {
		t.Fatalf("expected skill 'greet' to be discovered")
	}
	if d.Description != "says hello" {
		t.Fatalf("unexpected description: %q", d.Description)
	}
	if d.SourceRoot != rootWorkspace {
		t.Fatalf("expected source root %q, got %q", rootWorkspace, d.SourceRoot)
	}
}

func TestLoaderOverridesBySourceRootOrder(t *testing.T) {
	ws := t.TempDir()
	marketplace := t.TempDir()

	writeSkill(t, filepath.Join(ws, "skills"), "digest", "---\nname: digest\ndescription: workspace version\n---\n")
	writeSkill(t, marketplace, "digest", "---\nname: digest\ndescription: marketplace version\n---\n")

	l := NewLoader(ws, "", marketplace)
	d, ok := l.Get("digest")
	if !ok {
		t.Fatalf("expected 'digest' to resolve")
	}
	if d.Description != "marketplace version" {
		t.Fatalf("expected marketplace root to win, got %q (root=%s)", d.Description, d.SourceRoot)
	}
}

func TestFilterSkillsExcludesUnmetRequires(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills"), "needs-ghost-binary",
		"---\nname: needs-ghost-binary\ndescription: unavailable\nrequires:\n  bins: [\"definitely-not-a-real-binary-xyz\"]\n---\n")
	writeSkill(t, filepath.Join(ws, "skills"), "always-on",
		"---\nname: always-on\ndescription: available\n---\n")

	l := NewLoader(ws, "", "")
	filtered := l.FilterSkills(nil)

	names := make(map[string]bool, len(filtered))
	for _, d := range filtered {
		names[d.Name] = true
	}
	if names["needs-ghost-binary"] {
		t.Fatalf("expected skill with unmet requires to be filtered out of the catalog")
	}
	if !names["always-on"] {
		t.Fatalf("expected available skill to remain in the catalog")
	}

	// Get still resolves it by name so run_skill can report a clear error.
	if _, ok := l.Get("needs-ghost-binary"); !ok {
		t.Fatalf("expected Get to resolve unavailable skill by name")
	}
}

func TestFilterSkillsRespectsAllowList(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills"), "a", "---\nname: a\ndescription: a\n---\n")
	writeSkill(t, filepath.Join(ws, "skills"), "b", "---\nname: b\ndescription: b\n---\n")

	l := NewLoader(ws, "", "")
	filtered := l.FilterSkills([]string{"a"})
	if len(filtered) != 1 || filtered[0].Name != "a" {
		t.Fatalf("expected allowlist to restrict to [a], got %+v", filtered)
	}
}

func TestBuiltinSkillsAreDiscovered(t *testing.T) {
	l := NewLoader(t.TempDir(), "", "")
	if _, ok := l.Get("workspace-notes"); !ok {
		t.Fatalf("expected builtin skill 'workspace-notes' to be present")
	}
}

func TestBuildSummaryInlinesAlwaysSkillBody(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills"), "rules",
		"---\nname: rules\ndescription: house rules\nalways: true\n---\n\nNever lie.")

	l := NewLoader(ws, "", "")
	summary := l.BuildSummary(nil)
	if summary == "" {
		t.Fatalf("expected non-empty summary")
	}
	if !strings.Contains(summary, "Never lie.") {
		t.Fatalf("expected always=true skill body to be inlined, got: %s", summary)
	}
}
