package agent

import "regexp"

// InputGuard scans user-supplied text for common prompt-injection phrasing
// before it reaches the system prompt. It is a heuristic, not a security
// boundary: matches are logged/warned/blocked per LoopConfig.InjectionAction,
// never silently dropped.
type InputGuard struct {
	patterns []*regexp.Regexp
}

var defaultInjectionPatterns = []string{
	`(?i)ignore (all )?(previous|prior|above) instructions`,
	`(?i)disregard (all )?(previous|prior|above) (instructions|rules)`,
	`(?i)you are now (in )?(developer|debug|dan) mode`,
	`(?i)reveal (your|the) system prompt`,
	`(?i)print (your|the) (system|initial) prompt`,
	`(?i)act as if you have no (restrictions|guidelines|rules)`,
}

// NewInputGuard builds a guard using the default pattern set.
func NewInputGuard() *InputGuard {
	g := &InputGuard{}
	for _, p := range defaultInjectionPatterns {
		g.patterns = append(g.patterns, regexp.MustCompile(p))
	}
	return g
}

// Scan returns a human-readable label for every pattern that matched text.
func (g *InputGuard) Scan(text string) []string {
	if g == nil {
		return nil
	}
	var matches []string
	for _, p := range g.patterns {
		if p.MatchString(text) {
			matches = append(matches, p.String())
		}
	}
	return matches
}
