package skills

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"
)

// DefaultRunTimeout bounds how long a skill's command/script may run.
const DefaultRunTimeout = 120 * time.Second

// RunResult is the captured-output contract for a skill invocation.
type RunResult struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMs int64
}

// ErrUnavailable means the named skill's Requires are not satisfied; the
// caller must not attempt to spawn a process.
type ErrUnavailable struct {
	Name string
}

func (e ErrUnavailable) Error() string {
	return fmt.Sprintf("skill %q is unavailable on this host (unmet requires)", e.Name)
}

// ErrNotRunnable means the named skill has neither a command nor a script —
// it is pure context, not reachable through run_skill.
type ErrNotRunnable struct {
	Name string
}

func (e ErrNotRunnable) Error() string {
	return fmt.Sprintf("skill %q has no command or script to run", e.Name)
}

// Run resolves name, checks availability, and executes its command or
// script. args are substituted into the argv tokens via {key} placeholders
// before execution — the result is always an argv list, never a shell
// string, so skill-supplied or user-supplied values can never reach a shell
// interpreter.
func (l *Loader) Run(ctx context.Context, name string, args map[string]string) (*RunResult, error) {
	desc, ok := l.Get(name)
	if !ok {
		return nil, fmt.Errorf("skill %q not found", name)
	}
	if !IsAvailable(desc) {
		return nil, ErrUnavailable{Name: name}
	}

	argv, dir, err := resolveArgv(desc, args)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, ErrNotRunnable{Name: name}
	}

	return runArgv(ctx, argv, dir)
}

// resolveArgv builds the argv list for desc, preferring Command (shell-quote
// tokenized, never re-joined into a string) over Script (executed directly,
// resolved relative to desc.Dir).
func resolveArgv(desc Descriptor, args map[string]string) (argv []string, dir string, err error) {
	switch {
	case desc.Command != "":
		parser := shellwords.NewParser()
		tokens, err := parser.Parse(desc.Command)
		if err != nil {
			return nil, "", fmt.Errorf("skill %q: invalid command: %w", desc.Name, err)
		}
		for i, tok := range tokens {
			tokens[i] = substitutePlaceholders(tok, args)
		}
		return tokens, desc.Dir, nil

	case desc.Script != "":
		scriptPath := desc.Script
		if !filepath.IsAbs(scriptPath) {
			scriptPath = filepath.Join(desc.Dir, scriptPath)
		}
		argv := []string{scriptPath}
		for _, key := range sortedKeys(args) {
			argv = append(argv, fmt.Sprintf("--%s", key), args[key])
		}
		return argv, desc.Dir, nil

	default:
		return nil, desc.Dir, nil
	}
}

// substitutePlaceholders replaces every {key} occurrence in tok with
// args[key]. Substitution happens per-token, after shell-quote tokenization,
// so a substituted value can never introduce a new argv token or shell
// metacharacter.
func substitutePlaceholders(tok string, args map[string]string) string {
	for k, v := range args {
		tok = strings.ReplaceAll(tok, "{"+k+"}", v)
	}
	return tok
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func runArgv(ctx context.Context, argv []string, dir string) (*RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultRunTimeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	elapsed := time.Since(start).Milliseconds()

	result := &RunResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: elapsed,
	}

	if runErr == nil {
		result.ExitCode = 0
		return result, nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return result, fmt.Errorf("skill timed out after %s", DefaultRunTimeout)
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return result, runErr
}
