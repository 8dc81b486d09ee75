package library

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is wrapped by lookups with an unknown group or item index.
var ErrIndexOutOfRange = errors.New("index out of range")

// ConfigError reports an invalid ambiance configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// MissingDirectoryError is returned when no level of the directory chain is set.
type MissingDirectoryError struct {
	Group string
	Item  string
}

func (e *MissingDirectoryError) Error() string {
	return fmt.Sprintf("missing directory: group=%q item=%q", e.Group, e.Item)
}

// MissingFileError is returned when a resolved local path does not exist.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("file does not exist: %s", e.Path)
}

func indexError(kind string, group, index int) error {
	if index < 0 {
		return fmt.Errorf("%s group=%d: %w", kind, group, ErrIndexOutOfRange)
	}
	return fmt.Errorf("%s group=%d index=%d: %w", kind, group, index, ErrIndexOutOfRange)
}
