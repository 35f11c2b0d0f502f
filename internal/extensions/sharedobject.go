package extensions

import (
	"errors"
	"fmt"
	"path/filepath"
	"plugin"
	"strings"

	"github.com/tldr-it-stepankutaj/ghostsh/pkg/sdk"
)

// ErrBadEntryPoint is returned when a shared object exports Register with the
// wrong signature.
var ErrBadEntryPoint = errors.New("entry point has unexpected type")

// OpenSharedObject loads a Go plugin built with -buildmode=plugin. The plugin
// must be compiled against the same sdk package version as the host.
func OpenSharedObject(path string) (*Unit, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	unit := &Unit{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))}

	sym, err := p.Lookup(sdk.EntryPoint)
	if err != nil {
		return unit, nil
	}
	entry, err := entryPoint(sym)
	if err != nil {
		return nil, err
	}
	unit.Register = func(register sdk.RegisterFunc) error {
		entry(register)
		return nil
	}
	return unit, nil
}

// entryPoint accepts either the named RegisterFunc parameter or the plain
// function signature it stands for.
func entryPoint(sym plugin.Symbol) (func(sdk.RegisterFunc), error) {
	switch fn := sym.(type) {
	case func(sdk.RegisterFunc):
		return fn, nil
	case func(func(string, sdk.Handler)):
		return func(r sdk.RegisterFunc) { fn(r) }, nil
	default:
		return nil, fmt.Errorf("%w: %s is %T", ErrBadEntryPoint, sdk.EntryPoint, sym)
	}
}
