package extensions

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/tldr-it-stepankutaj/ghostsh/pkg/sdk"
)

// Manifest declares script commands in a YAML extension file.
type Manifest struct {
	Name        string          `yaml:"name,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Commands    []ScriptCommand `yaml:"commands"`
}

// ScriptCommand is a command implemented by a POSIX shell script. The command
// arguments are available as $1..$n.
type ScriptCommand struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Run         string `yaml:"run"`
}

// ParseManifest decodes and validates a manifest. Every script is parsed so
// syntax errors surface at load time.
func ParseManifest(data []byte) (*Manifest, []*syntax.File, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("invalid manifest: %w", err)
	}
	progs := make([]*syntax.File, 0, len(m.Commands))
	for i, c := range m.Commands {
		if strings.TrimSpace(c.Name) == "" {
			return nil, nil, fmt.Errorf("command #%d has no name", i+1)
		}
		if len(strings.Fields(c.Name)) != 1 {
			return nil, nil, fmt.Errorf("command name %q must be a single word", c.Name)
		}
		if strings.TrimSpace(c.Run) == "" {
			return nil, nil, fmt.Errorf("command %s has an empty run script", c.Name)
		}
		prog, err := syntax.NewParser().Parse(strings.NewReader(c.Run), c.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("command %s: failed to parse script: %w", c.Name, err)
		}
		progs = append(progs, prog)
	}
	return &m, progs, nil
}

// OpenManifest loads a YAML manifest. A manifest without commands has no entry point.
func OpenManifest(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, progs, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	unit := &Unit{Name: m.Name}
	if len(m.Commands) == 0 {
		return unit, nil
	}
	dir := filepath.Dir(path)
	unit.Register = func(register sdk.RegisterFunc) error {
		for i, c := range m.Commands {
			register(c.Name, scriptHandler(progs[i], dir))
		}
		return nil
	}
	return unit, nil
}

// scriptHandler runs prog with the mvdan.cc/sh interpreter in the current
// directory. GHOSTSH_EXTENSIONS_DIR points at the manifest's directory. A
// non-zero exit status is reported as a failure.
func scriptHandler(prog *syntax.File, dir string) sdk.Handler {
	return func(ctx context.Context, out io.Writer, args []string) error {
		opts := []interp.RunnerOption{
			interp.Env(expand.ListEnviron(append(os.Environ(), "GHOSTSH_EXTENSIONS_DIR="+dir)...)),
			interp.StdIO(nil, out, out),
		}
		// "--" keeps arguments like "-v" from being read as shell options.
		if len(args) > 0 {
			opts = append(opts, interp.Params(append([]string{"--"}, args...)...))
		}
		runner, err := interp.New(opts...)
		if err != nil {
			return fmt.Errorf("failed to create interpreter: %w", err)
		}
		if err := runner.Run(ctx, prog); err != nil {
			if status, ok := interp.IsExitStatus(err); ok {
				return fmt.Errorf("exit status %d", int(status))
			}
			return err
		}
		return nil
	}
}
