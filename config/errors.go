package config

import "fmt"

// InvalidValueError names the configuration key that failed validation
type InvalidValueError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration value: %s = %s: %v", e.Key, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid configuration value: %s = %s", e.Key, e.Value)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

// FileNotFoundError is a configuration file that does not exist
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("configuration file not found: %s", e.Path)
}

// ParseFailedError is a configuration file that is not valid JSON for Config
type ParseFailedError struct {
	Path string
	Err  error
}

func (e *ParseFailedError) Error() string {
	return fmt.Sprintf("failed to parse configuration file %s: %v", e.Path, e.Err)
}

func (e *ParseFailedError) Unwrap() error { return e.Err }
