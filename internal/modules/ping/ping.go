package ping

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules"
	"github.com/tldr-it-stepankutaj/ghostsh/pkg/sdk"
)

// Count is the number of echo requests sent on non-Windows hosts.
const Count = 4

// Module implements the ping command by shelling out to the system utility.
type Module struct {
	Run  modules.Runner
	GOOS string
}

func New() Module { return Module{Run: modules.ExecRunner, GOOS: runtime.GOOS} }

func (Module) Name() string        { return "ping" }
func (Module) Description() string { return "Ping a host with the system ping utility" }

func (m Module) Register(register sdk.RegisterFunc) { register(m.Name(), m.Handle) }

// Args returns the ping invocation for host.
func (m Module) Args(host string) []string {
	if m.GOOS == "windows" {
		return []string{host}
	}
	return []string{"-c", fmt.Sprint(Count), host}
}

func (m Module) Handle(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(out, "Usage: ping <hostname>")
		return nil
	}
	output, err := m.Run(ctx, "ping", m.Args(args[0])...)
	if len(output) > 0 {
		_, _ = out.Write(output)
	}
	if err != nil {
		return fmt.Errorf("ping %s: %w", args[0], err)
	}
	return nil
}
