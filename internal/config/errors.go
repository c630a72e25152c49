package config

import (
	"errors"
	"fmt"
)

var (
	// ErrFileNotFound is returned when a file given with WithFile is missing.
	ErrFileNotFound = errors.New("config file not found")
	// ErrInvalid wraps decode failures of the merged settings.
	ErrInvalid = errors.New("invalid configuration")
)

// ValidationError reports one rejected setting. Validate joins them with
// multierr, so callers can range over multierr.Errors.
type ValidationError struct {
	Path    string // dotted key, e.g. "network.serverPort"
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Path, e.Message, e.Value)
}
