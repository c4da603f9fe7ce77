package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseFile reads one SKILL.md file and returns its Descriptor.
func parseFile(path, sourceRoot string) (Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, err
	}

	fm, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return Descriptor{}, fmt.Errorf("%s: %w", path, err)
	}

	desc, err := descriptorFromParts(fm, body, filepath.Dir(path), sourceRoot)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%s: %w", path, err)
	}
	return desc, nil
}

func unmarshalFrontmatter(fm string, meta *frontmatter) error {
	return yaml.Unmarshal([]byte(fm), meta)
}

// splitFrontmatter separates a leading "---\n...\n---\n" YAML block from the
// rest of the document. A file with no frontmatter delimiter is treated as
// body-only (fm is empty).
func splitFrontmatter(raw string) (fm, body string, err error) {
	if !strings.HasPrefix(raw, "---") {
		return "", raw, nil
	}

	rest := raw[3:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	} else {
		return "", raw, nil
	}

	closeIdx := strings.Index(rest, "\n---")
	if closeIdx < 0 {
		return "", "", fmt.Errorf("unterminated frontmatter block")
	}

	fm = rest[:closeIdx]
	after := rest[closeIdx+4:]
	if i := strings.IndexByte(after, '\n'); i >= 0 {
		body = strings.TrimLeft(after[i+1:], "\n")
	}
	return fm, body, nil
}
