package app

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Context carries app-wide dependencies and metadata.
type Context struct {
	Ctx       context.Context
	Config    Config
	Workspace WorkspaceHandle
	Logger    *log.Logger
	Now       time.Time
}

// WorkspaceHandle is a minimal contract the workspace package provides.
type WorkspaceHandle interface {
	Path(parts ...string) string
	ExtensionsDir() string
}

// NewLogger returns the shared logger. Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "ghostsh",
		Level:  lvl,
	})
}
