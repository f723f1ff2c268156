package config

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the root of every configuration failure. Check with
// errors.Is to distinguish a missing or invalid setting from runtime errors.
var ErrConfiguration = errors.New("configuration error")

// SettingError identifies a single missing or invalid setting by its dotted key.
type SettingError struct {
	Key    string // dotted key, e.g. "tasks.project"
	Reason string
}

// Error implements the error interface.
func (e *SettingError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Key)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Key, e.Reason)
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *SettingError) Unwrap() error {
	return ErrConfiguration
}
