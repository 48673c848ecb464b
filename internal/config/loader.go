package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/taskmux/taskmux/internal/schema"
)

// EnvPrefix marks environment variables that overlay configuration fields.
// Nesting is expressed with a double underscore, so
// TASKMUX_DEFAULTS__TIMEOUT=600 sets defaults.timeout.
const EnvPrefix = "TASKMUX_"

// LoadOptions controls which sources a load considers.
type LoadOptions struct {
	// Layers lists the candidate layer files in ascending precedence.
	// Nil means DefaultLayers().
	Layers []string

	// Override is an extra layer merged last. Unlike the standard layers
	// it must exist.
	Override string

	// Environ supplies the environment for the EnvPrefix overlay.
	// Nil means os.Environ().
	Environ []string
}

// DefaultLayers returns the standard layer locations in ascending
// precedence: system-wide, user config dir, home dotfile, project-local
// dotfile.
func DefaultLayers() []string {
	layers := []string{"/etc/taskmux/config.toml"}
	if dir, err := os.UserConfigDir(); err == nil {
		layers = append(layers, filepath.Join(dir, "taskmux", "config.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		layers = append(layers, filepath.Join(home, ".taskmux.toml"))
	}
	return append(layers, ".taskmux.toml")
}

// Load reads every layer that exists, merges them in ascending precedence,
// applies the environment overlay, and returns the typed configuration.
// A layer that exists but cannot be used aborts the load with a ParseError
// naming the offending path.
func Load(opts LoadOptions) (*Config, error) {
	layers := opts.Layers
	if layers == nil {
		layers = DefaultLayers()
	}

	merged := Record{}
	for _, path := range layers {
		rec, err := readLayer(path, false)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		merged = Merge(merged, rec)
	}

	if opts.Override != "" {
		rec, err := readLayer(opts.Override, true)
		if err != nil {
			return nil, err
		}
		merged = Merge(merged, rec)
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	if overlay := envOverlay(environ); len(overlay) > 0 {
		merged = Merge(merged, overlay)
	}

	cfg, err := decode(merged)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readLayer(path string, required bool) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &ParseError{Path: path, Err: err}
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if raw == nil {
		// An empty document leaves the map nil, which would validate as
		// JSON null; it denotes an empty root table.
		raw = map[string]any{}
	}
	if err := schema.Validate(raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	rec, err := FromAny(raw)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return rec, nil
}

// envOverlay builds a record from EnvPrefix variables. Only scalar values
// can be set this way.
func envOverlay(environ []string) Record {
	overlay := Record{}
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		segments := strings.Split(strings.TrimPrefix(key, EnvPrefix), "__")
		valid := len(segments) > 0
		for i, seg := range segments {
			if seg == "" {
				valid = false
				break
			}
			segments[i] = strings.ToLower(seg)
		}
		if !valid {
			continue
		}
		overlay = Merge(overlay, nestedRecord(segments, String(value)))
	}
	return overlay
}

func nestedRecord(path []string, v Value) Record {
	rec := Record{path[len(path)-1]: v}
	for i := len(path) - 2; i >= 0; i-- {
		rec = Record{path[i]: rec}
	}
	return rec
}
