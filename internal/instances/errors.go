package instances

import (
	"errors"
	"fmt"
)

// ErrMissingConfiguration marks a start that failed because the instance's
// settings file does not exist. It is the one start failure the reconciler
// expects and recovers from quietly.
var ErrMissingConfiguration = errors.New("missing instance configuration")

// MissingConfigurationError carries the alias and path of the failed start.
type MissingConfigurationError struct {
	Alias string
	Path  string
}

func (e *MissingConfigurationError) Error() string {
	return fmt.Sprintf("instance %q cannot be initialized: %q does not exist", e.Alias, e.Path)
}

// Is makes errors.Is(err, ErrMissingConfiguration) match.
func (e *MissingConfigurationError) Is(target error) bool {
	return target == ErrMissingConfiguration
}

// NewMissingConfigurationError builds a MissingConfigurationError.
func NewMissingConfigurationError(alias, path string) error {
	return &MissingConfigurationError{Alias: alias, Path: path}
}

// IsMissingConfiguration reports whether err is a missing-configuration failure.
func IsMissingConfiguration(err error) bool {
	return errors.Is(err, ErrMissingConfiguration)
}
