package shell

import (
	"context"
	"fmt"
	"io"

	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules"
)

const clearScreen = "\033[H\033[2J"

// RegisterBuiltins binds help and clear.
func RegisterBuiltins(reg *modules.Registry) {
	reg.Register("help", Help(reg))
	reg.Register("clear", Clear)
}

// Help lists the commands bound at call time.
func Help(reg *modules.Registry) func(context.Context, io.Writer, []string) error {
	return func(_ context.Context, out io.Writer, _ []string) error {
		fmt.Fprintln(out, "Available commands:")
		for _, name := range reg.Names() {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	}
}

func Clear(_ context.Context, out io.Writer, _ []string) error {
	_, err := io.WriteString(out, clearScreen)
	return err
}
