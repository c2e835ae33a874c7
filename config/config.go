// Package config loads the construction parameters for a coalescer.Options
// and a backend.FileBackend from a YAML file, the way a deployment would
// hand them to the process rather than hardcoding them at the call site.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"journalbuf/coalescer"
)

const (
	defaultBufferSize  = 1 << 20 // 1MiB
	defaultTimeout     = time.Millisecond
	defaultMaxFileSize = 256 << 20 // 256MiB
)

// File is the on-disk YAML shape. Durations are given in milliseconds
// because that is the unit operators most commonly reason in.
type File struct {
	BufferSize     int   `yaml:"buffer_size"`
	TimeoutMillis  int64 `yaml:"timeout_millis"`
	LogRates       bool  `yaml:"log_rates"`
	DataDir        string `yaml:"data_dir"`
	MaxFileSizeMiB int64 `yaml:"max_file_size_mib"`
}

// applyDefaults fills zero-valued fields with sensible defaults.
func (f *File) applyDefaults() {
	if f.BufferSize <= 0 {
		f.BufferSize = defaultBufferSize
	}
	if f.TimeoutMillis <= 0 {
		f.TimeoutMillis = defaultTimeout.Milliseconds()
	}
	if f.MaxFileSizeMiB <= 0 {
		f.MaxFileSizeMiB = defaultMaxFileSize / (1 << 20)
	}
	if f.DataDir == "" {
		f.DataDir = "."
	}
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	f.applyDefaults()
	return &f, nil
}

// CoalescerOptions translates the loaded file into coalescer.Options,
// leaving Analyzer/SleepFunc for the caller to override since neither has
// a sensible YAML representation.
func (f *File) CoalescerOptions(logger *slog.Logger) coalescer.Options {
	return coalescer.Options{
		BufferSize: f.BufferSize,
		Timeout:    time.Duration(f.TimeoutMillis) * time.Millisecond,
		LogRates:   f.LogRates,
		Logger:     logger,
	}
}

// MaxFileSizeBytes returns the configured backend rotation threshold in
// bytes.
func (f *File) MaxFileSizeBytes() int64 {
	return f.MaxFileSizeMiB * (1 << 20)
}
