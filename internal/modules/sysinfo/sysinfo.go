package sysinfo

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/tldr-it-stepankutaj/ghostsh/pkg/sdk"
)

// InfoFunc returns host information.
type InfoFunc func(ctx context.Context) (*host.InfoStat, error)

// Module implements the sysinfo command.
type Module struct {
	Info InfoFunc
}

func New() Module { return Module{Info: host.InfoWithContext} }

func (Module) Name() string        { return "sysinfo" }
func (Module) Description() string { return "Show host operating system information" }

func (m Module) Register(register sdk.RegisterFunc) { register(m.Name(), m.Run) }

func (m Module) Run(ctx context.Context, out io.Writer, _ []string) error {
	info, err := m.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read host info: %w", err)
	}
	fmt.Fprintln(out, "System Information:")
	fmt.Fprintf(out, "  OS: %s %s\n", info.OS, info.KernelVersion)
	fmt.Fprintf(out, "  Platform: %s %s\n", info.Platform, info.PlatformVersion)
	fmt.Fprintf(out, "  Arch: %s\n", info.KernelArch)
	fmt.Fprintf(out, "  Hostname: %s\n", info.Hostname)
	fmt.Fprintf(out, "  Go: %s\n", runtime.Version())
	return nil
}
