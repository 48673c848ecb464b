package config

import "fmt"

// ParseError reports a configuration layer that exists but could not be
// read, parsed, or validated. A missing layer is not an error.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config layer %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
