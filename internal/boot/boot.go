// Package boot prints the startup banner and runs the optional host checks
// that gate the session.
package boot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules"
)

const (
	FirmwarePath = "/boot/firmware"
	bannerWidth  = 40
)

// RequiredPartitions must all appear in the df output.
var RequiredPartitions = []string{"/boot", "/root", "/home"}

var (
	ErrUnsupportedOS    = errors.New("this feature is only available on Linux")
	ErrMissingPartition = errors.New("missing required partition")
)

var (
	rule  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Width(bannerWidth).Align(lipgloss.Center)
	sub   = lipgloss.NewStyle().Faint(true).Width(bannerWidth).Align(lipgloss.Center)
)

// Banner renders the boot screen.
func Banner() string {
	line := rule.Render(strings.Repeat("=", bannerWidth))
	return strings.Join([]string{
		"",
		line,
		title.Render("GHOST OS BOOTING..."),
		sub.Render("BUILT FOR GO AND GHOSTSEC"),
		line,
		"",
	}, "\n")
}

// Checker runs the host checks.
type Checker struct {
	Exec   modules.Runner
	GOOS   string
	Stat   func(string) (os.FileInfo, error)
	Logger *log.Logger
}

func NewChecker(logger *log.Logger) *Checker {
	return &Checker{Exec: modules.ExecRunner, GOOS: runtime.GOOS, Stat: os.Stat, Logger: logger}
}

// CheckKernel fails unless the host runs Linux.
func (c *Checker) CheckKernel() error {
	if c.GOOS != "linux" {
		return fmt.Errorf("%w (running %s)", ErrUnsupportedOS, c.GOOS)
	}
	return nil
}

// CheckPartitions runs df -h, echoes it to out and looks for RequiredPartitions.
func (c *Checker) CheckPartitions(ctx context.Context, out io.Writer) error {
	if err := c.CheckKernel(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Checking system partitions...")
	res, err := c.Exec(ctx, "df", "-h")
	if err != nil {
		return fmt.Errorf("df failed: %w", err)
	}
	_, _ = out.Write(res)
	text := string(res)
	for _, p := range RequiredPartitions {
		if !strings.Contains(text, p) {
			return fmt.Errorf("%w: %s", ErrMissingPartition, p)
		}
	}
	fmt.Fprintln(out, "All required partitions are verified.")
	return nil
}

// LoadFirmware reports whether Raspberry Pi firmware is present. It never fails.
func (c *Checker) LoadFirmware(out io.Writer) {
	if c.CheckKernel() != nil {
		return
	}
	if _, err := c.Stat(FirmwarePath); err != nil {
		c.logger().Warn("firmware path not found", "path", FirmwarePath)
		return
	}
	fmt.Fprintf(out, "Raspberry Pi firmware found at %s.\n", FirmwarePath)
}

// Verify runs every check in boot order. Kernel and partition failures abort
// startup; missing firmware does not.
func (c *Checker) Verify(ctx context.Context, out io.Writer) error {
	if err := c.CheckKernel(); err != nil {
		return fmt.Errorf("linux kernel check failed: %w", err)
	}
	if err := c.CheckPartitions(ctx, out); err != nil {
		return fmt.Errorf("partition check failed: %w", err)
	}
	c.LoadFirmware(out)
	return nil
}

func (c *Checker) logger() *log.Logger {
	if c.Logger == nil {
		return log.New(io.Discard)
	}
	return c.Logger
}
