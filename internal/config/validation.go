package config

import (
	"fmt"
	"strings"
	"time"
)

// FieldError is one invalid botherd.yaml field.
type FieldError struct {
	// Field is the dotted YAML path, e.g. daemon.stopTimeout.
	Field string
	Value interface{}
	// Message completes "<field> ...", e.g. "must be positive".
	Message string
}

func (e FieldError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s %s (got %v)", e.Field, e.Message, e.Value)
}

// FieldErrors holds every invalid field found by one Validate call.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	switch len(fe) {
	case 0:
		return "no invalid fields"
	case 1:
		return ConfigFileName + ": " + fe[0].Error()
	}

	messages := make([]string, len(fe))
	for i, err := range fe {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("%s: %d invalid fields: %s", ConfigFileName, len(fe), strings.Join(messages, "; "))
}

// HasErrors reports whether any field is invalid.
func (fe FieldErrors) HasErrors() bool {
	return len(fe) > 0
}

// Fields returns the dotted paths of the invalid fields.
func (fe FieldErrors) Fields() []string {
	fields := make([]string, len(fe))
	for i, err := range fe {
		fields[i] = err.Field
	}
	return fields
}

func (fe *FieldErrors) add(field, message string, value interface{}) {
	*fe = append(*fe, FieldError{Field: field, Value: value, Message: message})
}

func (fe *FieldErrors) positive(field string, d time.Duration) {
	if d <= 0 {
		fe.add(field, "must be positive", d)
	}
}

func (fe *FieldErrors) nonNegative(field string, d time.Duration) {
	if d < 0 {
		fe.add(field, "must not be negative", d)
	}
}

func (fe *FieldErrors) nonNegativeCount(field string, n int) {
	if n < 0 {
		fe.add(field, "must not be negative", n)
	}
}

func (fe *FieldErrors) path(field, value string) {
	if strings.TrimSpace(value) == "" {
		fe.add(field, "must name a file", nil)
	}
}

// Validate reports every invalid field at once.
func Validate(cfg BotherdConfig) error {
	var errs FieldErrors

	errs.path("settings", cfg.Settings)
	errs.nonNegative("daemon.startGrace", cfg.Daemon.StartGrace)
	errs.positive("daemon.stopTimeout", cfg.Daemon.StopTimeout)
	errs.nonNegative("instances.startTimeout", cfg.Instances.StartTimeout)
	errs.nonNegativeCount("instances.maxConcurrentStarts", cfg.Instances.MaxConcurrentStarts)
	errs.nonNegative("watch.debounce", cfg.Watch.Debounce)
	errs.nonNegativeCount("notify.retryMax", cfg.Notify.RetryMax)

	if errs.HasErrors() {
		return errs
	}
	return nil
}
