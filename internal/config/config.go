package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// Config holds all configurable Rewind settings.
type Config struct {
	BookkeepingDir   string   `json:"bookkeeping_dir"`    // directory name under the workspace root
	IgnorePatterns   []string `json:"ignore_patterns"`    // external-change watcher exclusions
	DiffContextLines int      `json:"diff_context_lines"` // unified diff context
	PurgeKeepDays    int      `json:"purge_keep_days"`    // default retention for the purge command
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		BookkeepingDir:   ".rewind",
		IgnorePatterns:   []string{},
		DiffContextLines: 3,
		PurgeKeepDays:    30,
	}
}

// LoadGlobal reads ~/.config/rewind/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".config", "rewind", "config.json")
	return loadFile(path, true)
}

// LoadProject reads .rewindconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".rewindconfig", false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()

	apply := func(c *Config) {
		if c == nil {
			return
		}
		if c.BookkeepingDir != "" {
			result.BookkeepingDir = c.BookkeepingDir
		}
		if len(c.IgnorePatterns) > 0 {
			result.IgnorePatterns = c.IgnorePatterns
		}
		if c.DiffContextLines > 0 {
			result.DiffContextLines = c.DiffContextLines
		}
		if c.PurgeKeepDays > 0 {
			result.PurgeKeepDays = c.PurgeKeepDays
		}
	}

	// Apply global values over defaults, then project values over global.
	apply(global)
	apply(project)

	return result
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
