package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskmux/taskmux/internal/config"
	"github.com/taskmux/taskmux/internal/interp"
)

// LoadFunc produces a configuration. The registry calls it once at
// construction and again on every Reload.
type LoadFunc func() (*config.Config, error)

// Options configure a Registry.
type Options struct {
	// Load builds the configuration. Required.
	Load LoadFunc

	// Env overrides variable lookup during interpolation. Nil means
	// os.Getenv.
	Env func(string) string

	// DirExists overrides directory probing for project resolution. Nil
	// probes the real filesystem.
	DirExists func(path string) bool
}

// Registry hands out immutable configuration snapshots. Reload swaps in a
// fresh snapshot atomically; operations already holding the old one keep a
// consistent view until they finish.
type Registry struct {
	opts    Options
	current atomic.Pointer[Snapshot]
}

func New(opts Options) (*Registry, error) {
	r := &Registry{opts: opts}
	if r.opts.DirExists == nil {
		r.opts.DirExists = func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && info.IsDir()
		}
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload builds a fresh snapshot and swaps it in.
func (r *Registry) Reload() error {
	cfg, err := r.opts.Load()
	if err != nil {
		return err
	}
	snap := &Snapshot{
		cfg: cfg,
		ip: interp.New(interp.Options{
			AllowCommands: cfg.Defaults.AllowCommandInterpolation,
			Timeout:       time.Duration(cfg.Defaults.Timeout) * time.Second,
			Env:           r.opts.Env,
		}),
		dirExists: r.opts.DirExists,
		resolved:  make(map[string]config.ServiceSpec),
	}
	r.current.Store(snap)
	return nil
}

// Snapshot returns the current configuration view. Hold it for the length
// of one operation so a concurrent Reload cannot change the rules midway.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Snapshot is one immutable configuration view. Service lookups expand
// interpolation tokens lazily and cache the result for the snapshot's
// lifetime.
type Snapshot struct {
	cfg       *config.Config
	ip        *interp.Interpolator
	dirExists func(string) bool

	mu       sync.Mutex
	resolved map[string]config.ServiceSpec
}

// Config returns the typed configuration. Callers must treat it as
// read-only.
func (s *Snapshot) Config() *config.Config {
	return s.cfg
}

// Interpolator returns the expander bound to this snapshot's settings.
func (s *Snapshot) Interpolator() *interp.Interpolator {
	return s.ip
}

// Names returns the configured service names in sorted order.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.cfg.Services))
	for name := range s.cfg.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Service returns the named spec with project_dir, script, tasks and env
// expanded. Expansion runs at most once per service per snapshot.
func (s *Snapshot) Service(name string) (config.ServiceSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec, ok := s.resolved[name]; ok {
		return spec, nil
	}
	spec, ok := s.cfg.Services[name]
	if !ok {
		return config.ServiceSpec{}, &NotFoundError{Name: name, Known: s.Names()}
	}

	var err error
	if spec.ProjectDir, err = s.ip.Expand(spec.ProjectDir); err != nil {
		return config.ServiceSpec{}, fmt.Errorf("service %s: project_dir: %w", name, err)
	}
	if spec.Script, err = s.ip.Expand(spec.Script); err != nil {
		return config.ServiceSpec{}, fmt.Errorf("service %s: script: %w", name, err)
	}
	if spec.Tasks, err = s.ip.ExpandMap(spec.Tasks); err != nil {
		return config.ServiceSpec{}, fmt.Errorf("service %s: tasks: %w", name, err)
	}
	if spec.Env, err = s.ip.ExpandMap(spec.Env); err != nil {
		return config.ServiceSpec{}, fmt.Errorf("service %s: env: %w", name, err)
	}

	s.resolved[name] = spec
	return spec, nil
}

// ResolveProjectDir maps a project reference onto a directory. An empty
// reference means the current directory. An existing path wins as-is, a
// configured service name resolves to its expanded project_dir, and
// anything else is tried against projects.patterns with {name}
// substituted. The first candidate that exists on disk wins.
func (s *Snapshot) ResolveProjectDir(project string) (string, error) {
	if project == "" {
		return os.Getwd()
	}
	if s.dirExists(project) {
		return project, nil
	}
	tried := []string{project}

	if _, ok := s.cfg.Services[project]; ok {
		spec, err := s.Service(project)
		if err != nil {
			return "", err
		}
		if spec.ProjectDir != "" {
			if s.dirExists(spec.ProjectDir) {
				return spec.ProjectDir, nil
			}
			return "", &ProjectNotFoundError{Name: project, Tried: append(tried, spec.ProjectDir)}
		}
	}

	for _, pattern := range s.cfg.Projects.Patterns {
		candidate, err := s.ip.Expand(strings.ReplaceAll(pattern, "{name}", project))
		if err != nil {
			return "", fmt.Errorf("projects.patterns: %w", err)
		}
		if s.dirExists(candidate) {
			return candidate, nil
		}
		tried = append(tried, candidate)
	}
	return "", &ProjectNotFoundError{Name: project, Tried: tried}
}
