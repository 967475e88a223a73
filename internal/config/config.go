// Package config loads the Sync declarations spec.md §6 "Configuration
// surface" describes from a TOML file, using
// github.com/pelletier/go-toml — the format both moby-moby and
// vimeo-dials reach for in the retrieval pack.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

// File is the root of a parsed configuration file.
type File struct {
	Settings Settings   `toml:"settings"`
	Syncs    []SyncDecl `toml:"sync"`
}

// Settings holds daemon-wide options, outside any one Sync.
type Settings struct {
	LogLevel   string `toml:"log_level"`
	Pidfile    string `toml:"pidfile"`
	StatusFile string `toml:"status_file"`
	// ShutdownTimeout bounds, in seconds, how long a SIGTERM/SIGINT
	// drains in-flight children before the daemon exits anyway. Zero
	// means dispatcher.DefaultDrainTimeout.
	ShutdownTimeout float64 `toml:"shutdown_timeout"`
}

// SyncDecl is one [[sync]] table: source (existing directory) and
// target (opaque string) are required; everything else is optional
// (spec.md §6).
type SyncDecl struct {
	Source       string  `toml:"source"`
	Target       string  `toml:"target"`
	Delay        float64 `toml:"delay"`
	MaxProcesses int     `toml:"max_processes"`
	Command      string  `toml:"command"`
	Startup      bool    `toml:"startup"`
}

// ConfigError carries the context of a configuration failure. Load sets
// File; nothing sets Line, so Error reports "file: message" (and Build,
// which has no file, leaves File empty too).
type ConfigError struct {
	File string
	Line int
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// Load parses path into a File and validates every Sync declaration.
func Load(path string) (*File, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, &ConfigError{File: path, Msg: err.Error()}
	}

	var f File
	if err := tree.Unmarshal(&f); err != nil {
		return nil, &ConfigError{File: path, Msg: err.Error()}
	}

	for i := range f.Syncs {
		if err := f.Syncs[i].validate(path); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func (s *SyncDecl) validate(file string) error {
	if s.Source == "" {
		return &ConfigError{File: file, Msg: "sync declaration missing required field \"source\""}
	}
	if s.Target == "" {
		return &ConfigError{File: file, Msg: fmt.Sprintf("sync %q missing required field \"target\"", s.Source)}
	}
	real, err := RealDir(s.Source)
	if err != nil {
		return &ConfigError{File: file, Msg: fmt.Sprintf("sync source %q: %s", s.Source, err)}
	}
	s.Source = real
	if s.MaxProcesses < 0 {
		return &ConfigError{File: file, Msg: fmt.Sprintf("sync %q: max_processes must be >= 0", s.Source)}
	}
	if s.Delay < 0 {
		return &ConfigError{File: file, Msg: fmt.Sprintf("sync %q: delay must be >= 0", s.Source)}
	}
	return nil
}

// RealDir is the host primitive spec.md §6 calls real_dir: it resolves
// path to a canonical absolute directory, or reports an error if path
// does not exist or is not a directory.
func RealDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", resolved)
	}
	return resolved, nil
}
