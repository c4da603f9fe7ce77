// Package skills discovers SKILL.md descriptors from the builtin catalog,
// the operator's workspace, and a local marketplace directory, and runs the
// ones backed by a command or script.
package skills

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
)

//go:embed builtin
var builtinFS embed.FS

const skillFileName = "SKILL.md"

// rootBuiltin etc name the discovery roots in override order: a name found
// in a later root replaces one found in an earlier root.
const (
	rootBuiltin     = "builtin"
	rootWorkspace   = "workspace"
	rootGlobal      = "global"
	rootMarketplace = "marketplace"
)

// Loader holds the merged skill catalog and knows how to rescan it.
type Loader struct {
	mu sync.RWMutex

	workspaceDir   string
	globalDir      string
	marketplaceDir string

	byName map[string]Descriptor
}

// NewLoader scans all discovery roots and returns a ready Loader.
// workspace is the agent's workspace root (skills live under
// <workspace>/skills); globalDir and marketplaceDir may be empty to skip
// that root.
func NewLoader(workspace, globalDir, marketplaceDir string) *Loader {
	l := &Loader{
		workspaceDir:   workspace,
		globalDir:      globalDir,
		marketplaceDir: marketplaceDir,
	}
	if err := l.Reload(); err != nil {
		slog.Warn("skills: initial load failed", "error", err)
	}
	return l
}

// Reload rescans every discovery root and atomically replaces the catalog.
// Safe to call concurrently with lookups; a lookup never observes a
// partially-rebuilt catalog.
func (l *Loader) Reload() error {
	byName := make(map[string]Descriptor)

	if err := scanEmbedded(builtinFS, byName); err != nil {
		slog.Warn("skills: builtin scan failed", "error", err)
	}
	if l.workspaceDir != "" {
		scanDir(filepath.Join(l.workspaceDir, "skills"), rootWorkspace, byName)
	}
	if l.globalDir != "" {
		scanDir(l.globalDir, rootGlobal, byName)
	}
	if l.marketplaceDir != "" {
		scanDir(l.marketplaceDir, rootMarketplace, byName)
	}

	l.mu.Lock()
	l.byName = byName
	l.mu.Unlock()
	return nil
}

func scanEmbedded(fsys embed.FS, out map[string]Descriptor) error {
	return fs.WalkDir(fsys, "builtin", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != skillFileName {
			return err
		}
		raw, err := fsys.ReadFile(path)
		if err != nil {
			return err
		}
		fm, body, err := splitFrontmatter(string(raw))
		if err != nil {
			slog.Warn("skills: skipping malformed builtin descriptor", "path", path, "error", err)
			return nil
		}
		desc, err := descriptorFromParts(fm, body, filepath.Dir(path), rootBuiltin)
		if err != nil {
			slog.Warn("skills: skipping malformed builtin descriptor", "path", path, "error", err)
			return nil
		}
		out[desc.Name] = desc
		return nil
	})
}

// scanDir recursively finds SKILL.md files under dir and merges them into
// out under sourceRoot, logging and skipping (never failing) malformed
// descriptors so one bad skill doesn't take down the whole catalog.
func scanDir(dir, sourceRoot string, out map[string]Descriptor) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || d.Name() != skillFileName {
			return nil
		}
		desc, err := parseFile(path, sourceRoot)
		if err != nil {
			slog.Warn("skills: skipping malformed descriptor", "path", path, "error", err)
			return nil
		}
		out[desc.Name] = desc
		return nil
	})
}

func descriptorFromParts(fm, body, dir, sourceRoot string) (Descriptor, error) {
	var meta frontmatter
	if fm != "" {
		if err := unmarshalFrontmatter(fm, &meta); err != nil {
			return Descriptor{}, err
		}
	}
	if meta.Name == "" {
		meta.Name = filepath.Base(dir)
	}
	return Descriptor{
		Name:        meta.Name,
		Description: meta.Description,
		Body:        body,
		Always:      meta.Always,
		Requires:    meta.Requires,
		Command:     meta.Command,
		Script:      meta.Script,
		SourceRoot:  sourceRoot,
		Dir:         dir,
	}, nil
}

// Get resolves a skill by name regardless of availability, so callers (the
// run_skill tool) can distinguish "no such skill" from "unmet requires".
func (l *Loader) Get(name string) (Descriptor, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.byName[name]
	return d, ok
}

// ListSkills returns every available skill (unmet Requires excluded),
// sorted by name.
func (l *Loader) ListSkills() []Descriptor {
	return l.FilterSkills(nil)
}

// FilterSkills returns available skills, sorted by name, intersected with
// allow if non-nil (nil allow means no restriction).
func (l *Loader) FilterSkills(allow []string) []Descriptor {
	var allowSet map[string]struct{}
	if allow != nil {
		allowSet = make(map[string]struct{}, len(allow))
		for _, n := range allow {
			allowSet[n] = struct{}{}
		}
	}

	l.mu.RLock()
	out := make([]Descriptor, 0, len(l.byName))
	for _, d := range l.byName {
		if allowSet != nil {
			if _, ok := allowSet[d.Name]; !ok {
				continue
			}
		}
		if !IsAvailable(d) {
			continue
		}
		out = append(out, d)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsAvailable reports whether d's Requires are satisfied on this host.
func IsAvailable(d Descriptor) bool {
	for _, bin := range d.Requires.Bins {
		if _, err := exec.LookPath(bin); err != nil {
			return false
		}
	}
	for _, env := range d.Requires.Env {
		if os.Getenv(env) == "" {
			return false
		}
	}
	if len(d.Requires.OS) > 0 {
		matched := false
		for _, want := range d.Requires.OS {
			if strings.EqualFold(want, runtime.GOOS) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// BuildSummary renders an XML catalog summary for inlining in the system
// prompt: every filtered skill's name + description, with the body inlined
// for always=true skills.
func (l *Loader) BuildSummary(allow []string) string {
	skills := l.FilterSkills(allow)
	if len(skills) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("<available_skills>\n")
	for _, s := range skills {
		sb.WriteString(fmt.Sprintf("  <skill name=%q>\n", s.Name))
		sb.WriteString(fmt.Sprintf("    <description>%s</description>\n", s.Description))
		if s.Always && s.Body != "" {
			sb.WriteString("    <body>\n")
			sb.WriteString(indentLines(s.Body, "      "))
			sb.WriteString("\n    </body>\n")
		}
		sb.WriteString("  </skill>\n")
	}
	sb.WriteString("</available_skills>")
	return sb.String()
}

func indentLines(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
