// Package logging configures the structured logger shared by boardctl
// packages.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// Subsystem identifiers.
const (
	ComponentRegistry Component = "registry"
	ComponentConsole  Component = "console"
	ComponentDispatch Component = "dispatch"
	ComponentDAP      Component = "dap"
	ComponentTools    Component = "tools"
	ComponentBuild    Component = "build"
	ComponentITM      Component = "itm"
)

// Format specifies the handler used for log output.
type Format int

// Output formats.
const (
	FormatText Format = iota
	FormatJSON
)

var (
	level = new(slog.LevelVar)

	mu      sync.RWMutex
	current *slog.Logger
)

func init() {
	level.Set(slog.LevelInfo)
	current = New(os.Stderr, FormatText)
}

// New builds a logger writing to w that honours the shared level.
func New(w io.Writer, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup replaces the default logger.
func Setup(w io.Writer, format Format, lvl slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(lvl)
	current = New(w, format)
}

// Default returns the process-wide logger.
func Default() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// For returns the default logger tagged with a component attribute.
func For(c Component) *slog.Logger {
	return Default().With("component", string(c))
}

// ParseLevel maps a config string onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging: unknown level %q", s)
}

// ParseFormat maps a config string onto a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("logging: unknown format %q", s)
}
