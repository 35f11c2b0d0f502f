// Package shell implements the read-dispatch loop of the interactive session.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules"
)

const (
	DefaultPrompt   = "ghost> "
	FarewellMessage = "Exiting ghost os... Goodbye!"
)

// MaxLineBytes caps a single input line.
const MaxLineBytes = 64 * 1024

// ErrLineTooLong is reported for an input line over MaxLineBytes.
var ErrLineTooLong = errors.New("input line too long")

// ErrUnknownCommand is returned by Dispatch when no handler is bound to the name.
var ErrUnknownCommand = errors.New("command not found")

// UnknownCommandError names the unbound command. It matches ErrUnknownCommand.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("Command not found: %s. Type 'help' for a list of commands.", e.Name)
}

func (e *UnknownCommandError) Is(target error) bool { return target == ErrUnknownCommand }

// CommandError reports a failed handler.
type CommandError struct {
	Name string
	Err  error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("Error executing command '%s': %v", e.Name, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Session owns the command registry and drives dispatch.
type Session struct {
	registry   *modules.Registry
	out        io.Writer
	logger     *log.Logger
	prompt     string
	interrupts <-chan os.Signal
}

// Option configures a Session.
type Option func(*Session)

// WithOutput sets where command output and messages are written.
func WithOutput(w io.Writer) Option { return func(s *Session) { s.out = w } }

func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithPrompt(p string) Option { return func(s *Session) { s.prompt = p } }

// WithInterrupts makes Run listen for interrupts. While waiting for input an
// interrupt ends the session; while a command runs it cancels that command.
func WithInterrupts(ch <-chan os.Signal) Option { return func(s *Session) { s.interrupts = ch } }

func New(reg *modules.Registry, opts ...Option) *Session {
	s := &Session{
		registry: reg,
		out:      os.Stdout,
		logger:   log.New(io.Discard),
		prompt:   DefaultPrompt,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Registry() *modules.Registry { return s.registry }

func (s *Session) Output() io.Writer { return s.out }

// Dispatch runs a single input line. Blank lines are ignored. The line is
// split on whitespace; the first field names the command and the rest are
// passed to its handler verbatim.
func (s *Session) Dispatch(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	return s.DispatchArgs(ctx, fields[0], fields[1:])
}

// DispatchArgs runs the named command with arguments that are already split.
func (s *Session) DispatchArgs(ctx context.Context, name string, args []string) (err error) {
	h, ok := s.registry.Lookup(name)
	if !ok {
		return &UnknownCommandError{Name: name}
	}

	defer func() {
		if r := recover(); r != nil {
			err = &CommandError{Name: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	s.logger.Debug("dispatch", "command", name, "args", args)
	if herr := h(ctx, s.out, args); herr != nil {
		return &CommandError{Name: name, Err: herr}
	}
	return nil
}

// Report prints the user-facing message for a Dispatch error.
func (s *Session) Report(err error) {
	if err == nil {
		return
	}
	var (
		cerr *CommandError
		uerr *UnknownCommandError
	)
	switch {
	case errors.As(err, &cerr):
		fmt.Fprintln(s.out, cerr.Error())
	case errors.As(err, &uerr):
		fmt.Fprintln(s.out, uerr.Error())
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

// Run reads lines from in until end of input, ctx cancellation or an
// interrupt while idle. A failing command never ends the loop, and neither
// does a line longer than MaxLineBytes.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := s.readLines(ctx, in)

	defer fmt.Fprintf(s.out, "\n%s\n", FarewellMessage)
	for {
		fmt.Fprint(s.out, s.prompt)

		var line inputLine
		select {
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		case <-s.interrupts:
			return nil
		case <-ctx.Done():
			return nil
		}

		if line.err != nil {
			s.Report(fmt.Errorf("%w (limit %d bytes)", line.err, MaxLineBytes))
			continue
		}
		s.Report(s.execute(ctx, line.text))
	}
}

type inputLine struct {
	text string
	err  error
}

// readLines feeds lines from in until end of input or ctx is done. The
// channel is closed when the reader stops.
func (s *Session) readLines(ctx context.Context, in io.Reader) <-chan inputLine {
	lines := make(chan inputLine)
	go func() {
		defer close(lines)
		br := bufio.NewReader(in)
		for {
			text, err := readLine(br, MaxLineBytes)
			if err != nil && !errors.Is(err, ErrLineTooLong) {
				if !errors.Is(err, io.EOF) {
					s.logger.Error("reading input", "err", err)
				}
				return
			}
			select {
			case lines <- inputLine{text: text, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// readLine returns the next line without its terminator. A line over limit
// bytes is consumed in full and reported as ErrLineTooLong.
func readLine(br *bufio.Reader, limit int) (string, error) {
	var (
		buf  []byte
		long bool
	)
	for {
		chunk, more, err := br.ReadLine()
		if err != nil {
			return "", err
		}
		if !long {
			if len(buf)+len(chunk) > limit {
				long, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !more {
			if long {
				return "", ErrLineTooLong
			}
			return string(buf), nil
		}
	}
}

// execute dispatches one line with a context that an interrupt cancels.
func (s *Session) execute(ctx context.Context, line string) error {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	if s.interrupts != nil {
		go func() {
			select {
			case <-s.interrupts:
				cancel()
			case <-done:
			}
		}()
	}
	return s.Dispatch(cctx, line)
}
