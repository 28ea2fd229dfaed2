package competence

import (
	"fmt"
	"strings"
)

// ConfigError reports a curriculum graph that cannot be served.
// It is fatal: a graph that fails to build must never reach a request.
type ConfigError struct {
	Problems []string
	// Cycle holds the first required-edge cycle found, closed on its
	// starting code (A, B, C, A). Empty when the problems are not cycles.
	Cycle []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("competence graph configuration invalid:\n  %s", strings.Join(e.Problems, "\n  "))
}

// NotFoundError indicates an unknown competence code.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("competence not found: %q", e.Code)
}

// NotFound marks the error as a missing-entity error for callers that
// classify errors without importing this package.
func (e *NotFoundError) NotFound() bool { return true }
