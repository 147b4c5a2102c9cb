package config

import (
	"fmt"

	"github.com/gonewton/newton/internal/domain"
)

// ConfigError reports a malformed or incomplete configuration source.
type ConfigError struct {
	Path   string
	Key    string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "invalid configuration"
	if e.Path != "" {
		msg += " in " + e.Path
	}
	if e.Key != "" {
		msg += fmt.Sprintf(": %s %s", e.Key, e.Reason)
	} else if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ErrorCategory reports Configuration.
func (e *ConfigError) ErrorCategory() domain.ErrorCategory {
	return domain.CategoryConfiguration
}
