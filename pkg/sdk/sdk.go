// Package sdk is the contract between ghostsh and its plugins.
//
// A plugin receives exactly one capability, a RegisterFunc, and uses it to add
// named command handlers. Shared-object plugins export a function named
// EntryPoint with the signature func(sdk.RegisterFunc).
package sdk

import (
	"context"
	"io"
)

// EntryPoint is the symbol looked up in shared-object plugins.
const EntryPoint = "Register"

// Handler runs a command. args excludes the command name. A non-nil error
// reports a failure; usage problems should be printed to out and return nil.
type Handler func(ctx context.Context, out io.Writer, args []string) error

// RegisterFunc binds a command name to a handler.
type RegisterFunc func(name string, h Handler)

// Plugin is implemented by plugins linked into the binary.
type Plugin interface {
	// Name identifies the plugin in load reports.
	Name() string
	// Register adds the plugin's commands.
	Register(register RegisterFunc)
}
