package bootstrap

import (
	"embed"
	"log/slog"
	"os"
	"path/filepath"
)

//go:embed templates/*.md
var templateFS embed.FS

// templateFiles lists the templates to seed, in order.
// BOOTSTRAP.md is handled separately (only seeded for brand-new workspaces).
var templateFiles = []string{
	AgentsFile,
	SoulFile,
	ToolsFile,
	IdentityFile,
	UserFile,
	HeartbeatFile,
}

// ReadTemplate returns the content of an embedded template file.
func ReadTemplate(name string) (string, error) {
	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// EnsureWorkspaceFiles seeds template files into a workspace directory.
// Only writes files that don't already exist (will not overwrite).
// BOOTSTRAP.md is only seeded if the workspace is brand new (no AGENTS.md exists).
// Returns the list of files that were created.
func EnsureWorkspaceFiles(workspaceDir string) ([]string, error) {
	if err := os.MkdirAll(workspaceDir, 0755); err != nil {
		return nil, err
	}

	var created []string

	// Check if this is a brand-new workspace (no AGENTS.md yet)
	_, agentsErr := os.Stat(filepath.Join(workspaceDir, AgentsFile))
	isBrandNew := os.IsNotExist(agentsErr)

	// Seed standard template files
	for _, name := range templateFiles {
		ok, err := seedTemplate(workspaceDir, name)
		if err != nil {
			slog.Warn("bootstrap: failed to seed template", "file", name, "error", err)
			continue
		}
		if ok {
			created = append(created, name)
		}
	}

	// Seed BOOTSTRAP.md only for brand-new workspaces
	if isBrandNew {
		ok, err := seedTemplate(workspaceDir, BootstrapFile)
		if err != nil {
			slog.Warn("bootstrap: failed to seed BOOTSTRAP.md", "error", err)
		} else if ok {
			created = append(created, BootstrapFile)
		}
	}

	return created, nil
}

// seedTemplate writes a template file to the workspace if it doesn't exist.
// Returns true if the file was created, false if it already exists.
func seedTemplate(workspaceDir, name string) (bool, error) {
	dstPath := filepath.Join(workspaceDir, name)

	// Only create if file doesn't exist (O_EXCL)
	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil // already exists, skip
		}
		return false, err
	}
	defer f.Close()

	// Read embedded template
	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dstPath) // clean up empty file
		return false, err
	}

	if _, err := f.Write(content); err != nil {
		return false, err
	}

	return true, nil
}

// DefaultMaxCharsPerFile is the truncation ceiling applied to a single
// context file when AgentDefaults.BootstrapMaxChars is unset.
const DefaultMaxCharsPerFile = 20000

// DefaultTotalMaxChars is the combined-size ceiling applied across every
// context file when AgentDefaults.BootstrapTotalMaxChars is unset.
const DefaultTotalMaxChars = 24000

// TruncateConfig bounds how much of each workspace context file is injected
// into the system prompt.
type TruncateConfig struct {
	MaxCharsPerFile int
	TotalMaxChars   int
}

// LoadWorkspaceFiles reads back every seeded context file that exists in
// workspaceDir, in seed order. Missing files are skipped rather than
// erroring — an operator may have deleted one intentionally.
func LoadWorkspaceFiles(workspaceDir string) []ContextFile {
	names := append(append([]string{}, templateFiles...), BootstrapFile)

	var files []ContextFile
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(workspaceDir, name))
		if err != nil {
			continue
		}
		files = append(files, ContextFile{Path: name, Content: string(data)})
	}
	return files
}

// BuildContextFiles truncates each file to cfg.MaxCharsPerFile, then drops
// files from the end of the list until the combined size fits
// cfg.TotalMaxChars. Earlier files (AGENTS.md, SOUL.md) are prioritized over
// later ones (HEARTBEAT.md, BOOTSTRAP.md) since the prompt assembler renders
// them first.
func BuildContextFiles(files []ContextFile, cfg TruncateConfig) []ContextFile {
	maxPerFile := cfg.MaxCharsPerFile
	if maxPerFile <= 0 {
		maxPerFile = DefaultMaxCharsPerFile
	}
	totalMax := cfg.TotalMaxChars
	if totalMax <= 0 {
		totalMax = DefaultTotalMaxChars
	}

	truncated := make([]ContextFile, 0, len(files))
	for _, f := range files {
		content := f.Content
		if len(content) > maxPerFile {
			content = content[:maxPerFile] + "\n...[truncated]"
		}
		truncated = append(truncated, ContextFile{Path: f.Path, Content: content})
	}

	total := 0
	for _, f := range truncated {
		total += len(f.Content)
	}
	for total > totalMax && len(truncated) > 0 {
		last := truncated[len(truncated)-1]
		total -= len(last.Content)
		truncated = truncated[:len(truncated)-1]
	}

	return truncated
}
