package config

import (
	"fmt"
	"strconv"
)

// Config is the typed view of a fully merged configuration. It is built
// once per load and never modified afterwards.
type Config struct {
	Defaults Defaults               `yaml:"defaults" json:"defaults"`
	Projects Projects               `yaml:"projects" json:"projects"`
	Runners  map[string]RunnerSpec  `yaml:"runners" json:"runners"`
	Services map[string]ServiceSpec `yaml:"services" json:"services"`
}

// Defaults holds engine-wide settings that individual services may override.
type Defaults struct {
	RunnerPriority []string            `yaml:"runner_priority" json:"runner_priority"`
	DefaultScript  string              `yaml:"default_script" json:"default_script"`
	Timeout        int                 `yaml:"timeout" json:"timeout"`
	TaskAliases    map[string][]string `yaml:"task_aliases" json:"task_aliases,omitempty"`

	// AllowCommandInterpolation gates $(command) substitution in config
	// strings. Off unless explicitly enabled.
	AllowCommandInterpolation bool `yaml:"allow_command_interpolation" json:"allow_command_interpolation"`
}

// Projects configures how bare project names are resolved to directories.
type Projects struct {
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// RunnerSpec describes one build-tool family.
type RunnerSpec struct {
	Command     string   `yaml:"command" json:"command,omitempty"`
	ListCommand string   `yaml:"list_command" json:"list_command,omitempty"`
	Scripts     []string `yaml:"scripts" json:"scripts,omitempty"`
	ListMode    string   `yaml:"list_mode" json:"list_mode,omitempty"`
}

// ServiceSpec describes one named service. String fields may contain
// interpolation tokens until resolved through the registry.
type ServiceSpec struct {
	Name          string            `yaml:"name" json:"name"`
	ProjectDir    string            `yaml:"project_dir" json:"project_dir"`
	Runner        string            `yaml:"runner" json:"runner,omitempty"`
	Script        string            `yaml:"script" json:"script,omitempty"`
	DependsOn     []string          `yaml:"depends_on" json:"depends_on,omitempty"`
	ForceRecreate []string          `yaml:"force_recreate" json:"force_recreate,omitempty"`
	Tasks         map[string]string `yaml:"tasks" json:"tasks,omitempty"`
	Env           map[string]string `yaml:"env" json:"env,omitempty"`
	Timeout       int               `yaml:"timeout" json:"timeout,omitempty"`
}

const (
	defaultScript  = "./run.sh"
	defaultTimeout = 300

	defaultMakeListCommand = "make -pRrq : 2>/dev/null | awk -F: '/^[a-zA-Z0-9_-]+:/ {print $1}'"
	defaultJustListCommand = "just --list --unsorted"
)

func defaultRunnerPriority() []string {
	return []string{"make", "just", "script"}
}

func defaultPatterns() []string {
	return []string{"$HOME/projects/{name}", "$HOME/work/{name}", "./{name}"}
}

func defaultRunners() map[string]RunnerSpec {
	return map[string]RunnerSpec{
		"make": {
			Command:     "make",
			ListCommand: defaultMakeListCommand,
		},
		"just": {
			Command:     "just",
			ListCommand: defaultJustListCommand,
		},
		"script": {
			Scripts:  []string{"./run.sh", "./build.sh", "./task.sh"},
			ListMode: "help",
		},
	}
}

// decode turns a merged record into the typed view and fills defaults for
// anything the layers left unset.
func decode(root Record) (*Config, error) {
	cfg := &Config{
		Runners:  make(map[string]RunnerSpec),
		Services: make(map[string]ServiceSpec),
	}

	if rec, err := recordField(root, "defaults"); err != nil {
		return nil, err
	} else if rec != nil {
		if err := decodeDefaults(rec, &cfg.Defaults); err != nil {
			return nil, err
		}
	}

	if rec, err := recordField(root, "projects"); err != nil {
		return nil, err
	} else if rec != nil {
		patterns, err := listField(rec, "projects", "patterns")
		if err != nil {
			return nil, err
		}
		cfg.Projects.Patterns = patterns
	}

	if rec, err := recordField(root, "runners"); err != nil {
		return nil, err
	} else if rec != nil {
		for _, name := range rec.SortedKeys() {
			sub, err := subRecord(rec, "runners", name)
			if err != nil {
				return nil, err
			}
			spec, err := decodeRunner(sub, "runners."+name)
			if err != nil {
				return nil, err
			}
			cfg.Runners[name] = spec
		}
	}

	if rec, err := recordField(root, "services"); err != nil {
		return nil, err
	} else if rec != nil {
		for _, name := range rec.SortedKeys() {
			sub, err := subRecord(rec, "services", name)
			if err != nil {
				return nil, err
			}
			spec, err := decodeService(name, sub)
			if err != nil {
				return nil, err
			}
			cfg.Services[name] = spec
		}
	}

	applyDefaults(cfg)
	return cfg, nil
}

func decodeDefaults(rec Record, d *Defaults) error {
	var err error
	if d.RunnerPriority, err = listField(rec, "defaults", "runner_priority"); err != nil {
		return err
	}
	if d.DefaultScript, err = stringField(rec, "defaults", "default_script"); err != nil {
		return err
	}
	if d.Timeout, err = intField(rec, "defaults", "timeout"); err != nil {
		return err
	}
	if d.AllowCommandInterpolation, err = boolField(rec, "defaults", "allow_command_interpolation"); err != nil {
		return err
	}

	aliases, err := recordField(rec, "task_aliases")
	if err != nil {
		return fmt.Errorf("defaults.task_aliases: %w", err)
	}
	if aliases != nil {
		d.TaskAliases = make(map[string][]string, len(aliases))
		for _, task := range aliases.SortedKeys() {
			names, err := listField(aliases, "defaults.task_aliases", task)
			if err != nil {
				return err
			}
			d.TaskAliases[task] = names
		}
	}
	return nil
}

func decodeRunner(rec Record, path string) (RunnerSpec, error) {
	var spec RunnerSpec
	var err error
	if spec.Command, err = stringField(rec, path, "command"); err != nil {
		return spec, err
	}
	if spec.ListCommand, err = stringField(rec, path, "list_command"); err != nil {
		return spec, err
	}
	if spec.Scripts, err = listField(rec, path, "scripts"); err != nil {
		return spec, err
	}
	if spec.ListMode, err = stringField(rec, path, "list_mode"); err != nil {
		return spec, err
	}
	return spec, nil
}

func decodeService(name string, rec Record) (ServiceSpec, error) {
	spec := ServiceSpec{Name: name}
	path := "services." + name

	var err error
	if spec.ProjectDir, err = stringField(rec, path, "project_dir"); err != nil {
		return spec, err
	}
	if spec.Runner, err = stringField(rec, path, "runner"); err != nil {
		return spec, err
	}
	if spec.Script, err = stringField(rec, path, "script"); err != nil {
		return spec, err
	}
	if spec.DependsOn, err = listField(rec, path, "depends_on"); err != nil {
		return spec, err
	}
	if spec.ForceRecreate, err = listField(rec, path, "force_recreate"); err != nil {
		return spec, err
	}
	if spec.Timeout, err = intField(rec, path, "timeout"); err != nil {
		return spec, err
	}
	if spec.Tasks, err = stringMapField(rec, path, "tasks"); err != nil {
		return spec, err
	}
	if spec.Env, err = stringMapField(rec, path, "env"); err != nil {
		return spec, err
	}
	return spec, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Defaults.RunnerPriority) == 0 {
		cfg.Defaults.RunnerPriority = defaultRunnerPriority()
	}
	if cfg.Defaults.DefaultScript == "" {
		cfg.Defaults.DefaultScript = defaultScript
	}
	if cfg.Defaults.Timeout == 0 {
		cfg.Defaults.Timeout = defaultTimeout
	}
	if len(cfg.Projects.Patterns) == 0 {
		cfg.Projects.Patterns = defaultPatterns()
	}

	for name, builtin := range defaultRunners() {
		spec, ok := cfg.Runners[name]
		if !ok {
			cfg.Runners[name] = builtin
			continue
		}
		if spec.Command == "" {
			spec.Command = builtin.Command
		}
		if spec.ListCommand == "" {
			spec.ListCommand = builtin.ListCommand
		}
		if len(spec.Scripts) == 0 {
			spec.Scripts = builtin.Scripts
		}
		if spec.ListMode == "" {
			spec.ListMode = builtin.ListMode
		}
		cfg.Runners[name] = spec
	}
}

// validate rejects configurations whose dependency edges point at services
// that do not exist. Dangling edges are a configuration error, not
// something to discover halfway through a rebuild.
func validate(cfg *Config) error {
	for name, svc := range cfg.Services {
		for _, dep := range svc.DependsOn {
			if _, ok := cfg.Services[dep]; !ok {
				return fmt.Errorf("services.%s: depends_on references undefined service %q", name, dep)
			}
		}
	}
	return nil
}

func stringField(rec Record, path, key string) (string, error) {
	v, ok := rec[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(String)
	if !ok {
		return "", fmt.Errorf("%s.%s: expected string, got %s", path, key, v.Kind())
	}
	return string(s), nil
}

func intField(rec Record, path, key string) (int, error) {
	s, err := stringField(rec, path, key)
	if err != nil || s == "" {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: expected integer, got %q", path, key, s)
	}
	return n, nil
}

func boolField(rec Record, path, key string) (bool, error) {
	s, err := stringField(rec, path, key)
	if err != nil || s == "" {
		return false, err
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%s.%s: expected boolean, got %q", path, key, s)
	}
	return b, nil
}

func listField(rec Record, path, key string) ([]string, error) {
	v, ok := rec[key]
	if !ok {
		return nil, nil
	}
	l, ok := v.(List)
	if !ok {
		return nil, fmt.Errorf("%s.%s: expected list, got %s", path, key, v.Kind())
	}
	out := make([]string, len(l))
	copy(out, l)
	return out, nil
}

func recordField(rec Record, key string) (Record, error) {
	v, ok := rec[key]
	if !ok {
		return nil, nil
	}
	r, ok := v.(Record)
	if !ok {
		return nil, fmt.Errorf("%s: expected record, got %s", key, v.Kind())
	}
	return r, nil
}

func subRecord(rec Record, path, key string) (Record, error) {
	v := rec[key]
	r, ok := v.(Record)
	if !ok {
		return nil, fmt.Errorf("%s.%s: expected record, got %s", path, key, v.Kind())
	}
	return r, nil
}

func stringMapField(rec Record, path, key string) (map[string]string, error) {
	v, ok := rec[key]
	if !ok {
		return nil, nil
	}
	r, ok := v.(Record)
	if !ok {
		return nil, fmt.Errorf("%s.%s: expected record, got %s", path, key, v.Kind())
	}
	out := make(map[string]string, len(r))
	for k, sv := range r {
		s, ok := sv.(String)
		if !ok {
			return nil, fmt.Errorf("%s.%s.%s: expected string, got %s", path, key, k, sv.Kind())
		}
		out[k] = string(s)
	}
	return out, nil
}
