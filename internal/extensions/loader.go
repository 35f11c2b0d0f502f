package extensions

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/tldr-it-stepankutaj/ghostsh/pkg/sdk"
)

// ExcludePrefix marks files that are never loaded.
const ExcludePrefix = "_"

// Unit is an opened plugin. Register is nil when the unit exposes no entry point.
type Unit struct {
	Name     string
	Register func(register sdk.RegisterFunc) error
}

// Opener loads the unit stored at path.
type Opener func(path string) (*Unit, error)

// LookupFunc reports whether a command name is already bound.
type LookupFunc func(name string) bool

// LoadError reports a unit that failed to open or register.
type LoadError struct {
	Plugin string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load extension %s: %v", e.Plugin, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Report summarises a load pass.
type Report struct {
	Loaded  []string
	Skipped []string
	Failed  []*LoadError
}

// Loader scans a directory for plugin units.
type Loader struct {
	dir     string
	logger  *log.Logger
	openers map[string]Opener
}

type Option func(*Loader)

func WithLogger(l *log.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithOpener registers (or replaces) the opener for a file suffix such as ".so".
func WithOpener(suffix string, o Opener) Option {
	return func(ld *Loader) { ld.openers[strings.ToLower(suffix)] = o }
}

// New returns a loader for dir with the default openers.
func New(dir string, opts ...Option) *Loader {
	ld := &Loader{
		dir:    dir,
		logger: log.New(io.Discard),
		openers: map[string]Opener{
			".so":   OpenSharedObject,
			".yaml": OpenManifest,
			".yml":  OpenManifest,
		},
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

func (ld *Loader) Dir() string { return ld.dir }

// Load creates the directory if needed and registers every eligible unit in
// it. Only a failure to create or read the directory is returned as error.
func (ld *Loader) Load(ctx context.Context, register sdk.RegisterFunc, exists LookupFunc) (Report, error) {
	var rep Report
	if err := os.MkdirAll(ld.dir, 0o755); err != nil {
		return rep, fmt.Errorf("failed to create extensions directory %s: %w", ld.dir, err)
	}
	entries, err := os.ReadDir(ld.dir)
	if err != nil {
		return rep, fmt.Errorf("failed to read extensions directory %s: %w", ld.dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		filename := e.Name()
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(filename))
		open, ok := ld.openers[ext]
		if !ok {
			continue
		}
		name := strings.TrimSuffix(filename, filepath.Ext(filename))
		if strings.HasPrefix(filename, ExcludePrefix) {
			ld.logger.Debug("skipping excluded extension", "extension", name)
			rep.Skipped = append(rep.Skipped, name)
			continue
		}

		unit, err := safeOpen(open, filepath.Join(ld.dir, filename))
		if err == nil {
			if unit.Name == "" {
				unit.Name = name
			}
			err = ld.register(unit, register, exists)
		}
		ld.record(&rep, name, err)
	}
	return rep, nil
}

// LoadStatic registers plugins linked into the binary with the same failure
// isolation as directory units.
func (ld *Loader) LoadStatic(register sdk.RegisterFunc, exists LookupFunc, plugins ...sdk.Plugin) Report {
	var rep Report
	for _, p := range plugins {
		p := p
		unit := &Unit{
			Name: p.Name(),
			Register: func(r sdk.RegisterFunc) error {
				p.Register(r)
				return nil
			},
		}
		ld.record(&rep, unit.Name, ld.register(unit, register, exists))
	}
	return rep
}

func (ld *Loader) record(rep *Report, name string, err error) {
	if err != nil {
		lerr := &LoadError{Plugin: name, Err: err}
		ld.logger.Error("failed to load extension", "extension", name, "err", err)
		rep.Failed = append(rep.Failed, lerr)
		return
	}
	ld.logger.Debug("loaded extension", "extension", name)
	rep.Loaded = append(rep.Loaded, name)
}

// register calls the unit's entry point, warning about shadowed commands and
// turning a panic into an error.
func (ld *Loader) register(unit *Unit, register sdk.RegisterFunc, exists LookupFunc) (err error) {
	if unit.Register == nil {
		ld.logger.Debug("extension has no entry point", "extension", unit.Name)
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register panicked: %v", r)
		}
	}()
	return unit.Register(func(cmd string, h sdk.Handler) {
		if exists != nil && exists(cmd) {
			ld.logger.Warn("extension replaces existing command", "extension", unit.Name, "command", cmd)
		}
		register(cmd, h)
	})
}

func safeOpen(open Opener, path string) (unit *Unit, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open panicked: %v", r)
		}
	}()
	unit, err = open(path)
	if err == nil && unit == nil {
		unit = &Unit{}
	}
	return unit, err
}
