package modules

import (
	"context"
	"os/exec"
	"sort"

	"github.com/tldr-it-stepankutaj/ghostsh/pkg/sdk"
)

// Registry maps command names to handlers. Registering a name twice replaces
// the earlier handler.
type Registry struct {
	handlers map[string]sdk.Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]sdk.Handler)}
}

// Register binds name to h. Empty names and nil handlers are ignored.
func (r *Registry) Register(name string, h sdk.Handler) {
	if name == "" || h == nil {
		return
	}
	r.handlers[name] = h
}

func (r *Registry) Lookup(name string) (sdk.Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the bound command names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int { return len(r.handlers) }

// Runner executes an external program and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs programs with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
