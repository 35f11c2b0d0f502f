package ghostsh

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tldr-it-stepankutaj/ghostsh/internal/shell"
)

func setWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	viper.Set("workspace", root)
	viper.Set("extensions_dir", "extensions")
	viper.Set("scan.timeout", "100ms")
	viper.Set("scan.workers", 4)
	viper.Set("log_level", "error")
	t.Cleanup(func() {
		viper.Set("workspace", ".")
		viper.Set("extensions_dir", "extensions")
	})
	return root
}

func help(t *testing.T, s *shell.Session, out *bytes.Buffer) []string {
	t.Helper()
	out.Reset()
	require.NoError(t, s.Dispatch(context.Background(), "help"))
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n")[1:] {
		names = append(names, strings.TrimSpace(line))
	}
	return names
}

func TestBuildRegistry_EmptyExtensions(t *testing.T) {
	root := setWorkspace(t)
	appCtx, err := createAppContext()
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "extensions"))

	reg := buildRegistry(appCtx)
	var out bytes.Buffer
	s := shell.New(reg, shell.WithOutput(&out))
	assert.Equal(t,
		[]string{"banner", "clear", "decrypt", "encrypt", "help", "ping", "portscan", "sysinfo"},
		help(t, s, &out))

	out.Reset()
	require.NoError(t, s.Dispatch(context.Background(), "portscan"))
	assert.Equal(t, "Usage: portscan <hostname>\n", out.String())
}

func TestBuildRegistry_LoadsManifestsAndSkipsExcluded(t *testing.T) {
	root := setWorkspace(t)
	dir := filepath.Join(root, "extensions")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.yaml"),
		[]byte("commands:\n  - name: hello\n    run: echo hi $1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_draft.yaml"),
		[]byte("commands:\n  - name: draft\n    run: echo draft\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"),
		[]byte("commands: [\n"), 0o644))

	appCtx, err := createAppContext()
	require.NoError(t, err)
	reg := buildRegistry(appCtx)

	var out bytes.Buffer
	s := shell.New(reg, shell.WithOutput(&out))
	names := help(t, s, &out)
	assert.Contains(t, names, "hello")
	assert.NotContains(t, names, "draft")

	out.Reset()
	require.NoError(t, s.Dispatch(context.Background(), "hello ghost"))
	assert.Equal(t, "hi ghost\n", out.String())
}

func TestExecCommand_ExitStatus(t *testing.T) {
	setWorkspace(t)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"exec", "help"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Available commands:")

	out.Reset()
	rootCmd.SetArgs([]string{"exec", "nosuchcommand", "-x"})
	err := rootCmd.Execute()
	require.ErrorIs(t, err, shell.ErrUnknownCommand)
	assert.Contains(t, out.String(), "Command not found: nosuchcommand.")
}

func TestRootCommand_ReadsStdin(t *testing.T) {
	setWorkspace(t)
	viper.Set("no_banner", true)
	t.Cleanup(func() { viper.Set("no_banner", false) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader("help\nbogus\n"))
	rootCmd.SetArgs([]string{})
	t.Cleanup(func() { rootCmd.SetIn(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "  portscan\n")
	assert.Contains(t, out.String(), "Command not found: bogus.")
	assert.Contains(t, out.String(), shell.FarewellMessage)
}

func TestExecCommand_KeepsQuotedArguments(t *testing.T) {
	root := setWorkspace(t)
	dir := filepath.Join(root, "extensions")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "argv.yaml"),
		[]byte("commands:\n  - name: argv\n    run: echo \"[$1] $#\"\n"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"exec", "argv", "my file.txt"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "[my file.txt] 1\n", out.String())
}
