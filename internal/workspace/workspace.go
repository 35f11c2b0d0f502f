package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Handle implements app.WorkspaceHandle and provides helper methods.
type Handle struct {
	Root       string
	Extensions string
}

// Path joins workspace root with provided parts.
func (h Handle) Path(parts ...string) string {
	all := append([]string{h.Root}, parts...)
	return filepath.Join(all...)
}

// ExtensionsDir returns the plugin directory. Absolute paths are used as is.
func (h Handle) ExtensionsDir() string {
	if filepath.IsAbs(h.Extensions) {
		return h.Extensions
	}
	return h.Path(h.Extensions)
}

// Ensure creates the workspace root and extensions directory if missing.
// Existing directories and their contents are left untouched.
func Ensure(root, extensions string) (Handle, error) {
	h := Handle{Root: root, Extensions: extensions}
	for _, d := range []string{root, h.ExtensionsDir()} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return h, fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return h, nil
}
