package detect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/taskmux/taskmux/internal/config"
)

// Runner family names.
const (
	FamilyMake   = "make"
	FamilyJust   = "just"
	FamilyScript = "script"
)

var (
	makeSignatures = []string{"Makefile", "makefile", "GNUmakefile"}
	justSignatures = []string{"justfile", "Justfile", ".justfile"}
)

// Probe answers filesystem questions for the resolver. The production
// implementation is FSProbe; tests substitute their own.
type Probe interface {
	FileExists(path string) bool
	IsExecutable(path string) bool
}

// FSProbe probes the real filesystem.
type FSProbe struct{}

func (FSProbe) FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (FSProbe) IsExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode()&0o111 != 0
}

// NoRunnerError means no runner family's signature matched and no
// override was given.
type NoRunnerError struct {
	Dir     string
	Checked []string
}

func (e *NoRunnerError) Error() string {
	return fmt.Sprintf("no build runner detected in %s (checked: %s)",
		e.Dir, strings.Join(e.Checked, ", "))
}

// Selection is the outcome of resolving a runner for one project.
type Selection struct {
	Runner    string `yaml:"runner" json:"runner"`
	Script    string `yaml:"script" json:"script,omitempty"`
	Signature string `yaml:"signature" json:"signature,omitempty"`
}

// Report describes everything detection found in a project directory.
type Report struct {
	Detected  string              `yaml:"detected" json:"detected,omitempty"`
	Signature string              `yaml:"signature" json:"signature,omitempty"`
	Available []string            `yaml:"available" json:"available"`
	Files     map[string][]string `yaml:"files" json:"files,omitempty"`
}

// Resolver picks the runner family governing a project directory.
type Resolver struct {
	runners       map[string]config.RunnerSpec
	defaultScript string
	probe         Probe
}

func NewResolver(cfg *config.Config, probe Probe) *Resolver {
	return &Resolver{
		runners:       cfg.Runners,
		defaultScript: cfg.Defaults.DefaultScript,
		probe:         probe,
	}
}

// Resolve picks the runner for dir. A non-empty override is honored
// unconditionally without probing and fails only when the name is not a
// known runner. Otherwise families are probed in priority order and the
// first matching signature wins.
func (r *Resolver) Resolve(dir, override string, priority []string) (Selection, error) {
	if override != "" {
		return r.parseOverride(override)
	}

	var checked []string
	for _, family := range priority {
		sel, signatures := r.probeFamily(dir, family)
		checked = append(checked, signatures...)
		if sel != nil {
			return *sel, nil
		}
	}
	return Selection{}, &NoRunnerError{Dir: dir, Checked: checked}
}

// Detect probes every family in priority order and reports all matches,
// not just the winning one.
func (r *Resolver) Detect(dir string, priority []string) Report {
	report := Report{Files: make(map[string][]string)}
	for _, family := range priority {
		matches := r.familyMatches(dir, family)
		if len(matches) == 0 {
			continue
		}
		report.Available = append(report.Available, family)
		report.Files[family] = matches
		if report.Detected == "" {
			report.Detected = family
			report.Signature = matches[0]
		}
	}
	return report
}

// parseOverride maps an explicit runner name to a selection. Recognized
// forms: a family name ("make", "makefile", "just", "justfile", "script"),
// "script:<path>", or a script path containing a slash or a dot.
func (r *Resolver) parseOverride(name string) (Selection, error) {
	switch name {
	case "make", "makefile":
		return Selection{Runner: FamilyMake}, nil
	case "just", "justfile":
		return Selection{Runner: FamilyJust}, nil
	case "script":
		return Selection{Runner: FamilyScript, Script: r.scriptDefault()}, nil
	}
	if rest, ok := strings.CutPrefix(name, "script:"); ok && rest != "" {
		return Selection{Runner: FamilyScript, Script: scriptPath(rest)}, nil
	}
	if strings.ContainsAny(name, "/.") {
		return Selection{Runner: FamilyScript, Script: scriptPath(name)}, nil
	}
	return Selection{}, fmt.Errorf("unknown runner %q", name)
}

func (r *Resolver) probeFamily(dir, family string) (*Selection, []string) {
	switch family {
	case FamilyMake:
		for _, sig := range makeSignatures {
			if r.probe.FileExists(filepath.Join(dir, sig)) {
				return &Selection{Runner: FamilyMake, Signature: sig}, makeSignatures
			}
		}
		return nil, makeSignatures
	case FamilyJust:
		for _, sig := range justSignatures {
			if r.probe.FileExists(filepath.Join(dir, sig)) {
				return &Selection{Runner: FamilyJust, Signature: sig}, justSignatures
			}
		}
		return nil, justSignatures
	case FamilyScript:
		candidates := r.scriptCandidates()
		for _, cand := range candidates {
			if r.probe.IsExecutable(filepath.Join(dir, cand)) {
				return &Selection{Runner: FamilyScript, Script: cand, Signature: cand}, candidates
			}
		}
		return nil, candidates
	}
	return nil, nil
}

func (r *Resolver) familyMatches(dir, family string) []string {
	var matches []string
	switch family {
	case FamilyMake:
		for _, sig := range makeSignatures {
			if r.probe.FileExists(filepath.Join(dir, sig)) {
				matches = append(matches, sig)
			}
		}
	case FamilyJust:
		for _, sig := range justSignatures {
			if r.probe.FileExists(filepath.Join(dir, sig)) {
				matches = append(matches, sig)
			}
		}
	case FamilyScript:
		for _, cand := range r.scriptCandidates() {
			if r.probe.IsExecutable(filepath.Join(dir, cand)) {
				matches = append(matches, cand)
			}
		}
	}
	return matches
}

func (r *Resolver) scriptCandidates() []string {
	if spec, ok := r.runners[FamilyScript]; ok && len(spec.Scripts) > 0 {
		return spec.Scripts
	}
	return []string{r.scriptDefault()}
}

func (r *Resolver) scriptDefault() string {
	if r.defaultScript != "" {
		return r.defaultScript
	}
	return "./run.sh"
}

// scriptPath normalizes a bare script name to an explicit relative path.
func scriptPath(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "./" + name
}
