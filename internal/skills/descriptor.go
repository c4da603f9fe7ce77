package skills

// Requirements gates a skill on the host environment: binaries that must
// resolve on PATH, environment variables that must be set, and accepted
// OS names. A skill with no Requirements is always available.
type Requirements struct {
	Bins []string `yaml:"bins,omitempty"`
	Env  []string `yaml:"env,omitempty"`
	OS   []string `yaml:"os,omitempty"`
}

// Descriptor is a parsed SKILL.md: frontmatter plus body. Name is unique
// within a Loader's catalog — a later discovery root overrides an earlier
// one of the same name.
type Descriptor struct {
	Name        string
	Description string
	Body        string
	Always      bool
	Requires    Requirements
	Command     string
	Script      string

	// SourceRoot identifies which discovery root this descriptor came from
	// (builtin, workspace, global, marketplace), for diagnostics.
	SourceRoot string
	// Dir is the directory containing SKILL.md, used to resolve a relative
	// Script path.
	Dir string
}

type frontmatter struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Always      bool         `yaml:"always"`
	Requires    Requirements `yaml:"requires"`
	Command     string       `yaml:"command"`
	Script      string       `yaml:"script"`
}
