package registry

import (
	"fmt"
	"strings"
)

// NotFoundError means a requested service is not defined in the
// configuration.
type NotFoundError struct {
	Name  string
	Known []string
}

func (e *NotFoundError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("service %q is not configured", e.Name)
	}
	return fmt.Sprintf("service %q is not configured (known: %s)",
		e.Name, strings.Join(e.Known, ", "))
}

// ProjectNotFoundError means a project reference matched no existing path,
// no configured service directory, and no project pattern.
type ProjectNotFoundError struct {
	Name  string
	Tried []string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project %q not found (tried: %s)",
		e.Name, strings.Join(e.Tried, ", "))
}
