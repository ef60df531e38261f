package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classify failures across components. Callers match
// with errors.Is and decide whether to retry, abort, or surface.
var (
	// ErrValidation marks malformed input or illegal state requests.
	ErrValidation = errors.New("validation error")
	// ErrDriver marks failures from the downstream business application.
	ErrDriver = errors.New("driver error")
	// ErrConfiguration marks missing or inconsistent configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks lookups that matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks failures that may succeed on retry.
	ErrTransient = errors.New("transient error")
)

// Wrap builds a classified error carrying component and operation
// detail. The marker becomes matchable via errors.Is; cause, when
// non-nil, stays reachable through errors.Unwrap.
func Wrap(marker error, component, operation, message string, cause error) error {
	detail := buildDetail(component, operation, message)
	if cause != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, cause)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "unspecified"
	}
	return strings.Join(parts, ": ")
}
