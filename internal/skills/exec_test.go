package skills

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRunCommandSubstitutesPlaceholders(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills"), "echoer",
		"---\nname: echoer\ndescription: echoes its argument\ncommand: echo hello {who}\n---\n")

	l := NewLoader(ws, "", "")
	res, err := l.Run(context.Background(), "echoer", map[string]string{"who": "world"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr=%s)", res.ExitCode, res.Stderr)
	}
	want := "hello world\n"
	if res.Stdout != want {
		t.Fatalf("expected stdout %q, got %q", want, res.Stdout)
	}
}

func TestRunUnavailableSkillReturnsErrUnavailable(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills"), "ghost",
		"---\nname: ghost\ndescription: unavailable\nrequires:\n  bins: [\"definitely-not-a-real-binary-xyz\"]\ncommand: definitely-not-a-real-binary-xyz\n---\n")

	l := NewLoader(ws, "", "")
	_, err := l.Run(context.Background(), "ghost", nil)
	if _, ok := err.(ErrUnavailable); !ok {
		t.Fatalf("expected ErrUnavailable, got %v (%T)", err, err)
	}
}

func TestRunPureContextSkillReturnsErrNotRunnable(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills"), "context-only",
		"---\nname: context-only\ndescription: no command or script\n---\n\nJust text.")

	l := NewLoader(ws, "", "")
	_, err := l.Run(context.Background(), "context-only", nil)
	if _, ok := err.(ErrNotRunnable); !ok {
		t.Fatalf("expected ErrNotRunnable, got %v (%T)", err, err)
	}
}

func TestRunUnknownSkillErrors(t *testing.T) {
	l := NewLoader(t.TempDir(), "", "")
	if _, err := l.Run(context.Background(), "nope", nil); err == nil {
		t.Fatalf("expected error for unknown skill")
	}
}
