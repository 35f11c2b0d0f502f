package ghostsh

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tldr-it-stepankutaj/ghostsh/internal/app"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/boot"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/extensions"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules/banner"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules/crypt"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules/ping"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules/portscan"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/modules/sysinfo"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/shell"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/tui"
	"github.com/tldr-it-stepankutaj/ghostsh/internal/workspace"
	"github.com/tldr-it-stepankutaj/ghostsh/pkg/sdk"
	"github.com/tldr-it-stepankutaj/ghostsh/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "ghostsh",
	Short: "ghostsh: interactive shell extended by plugins",
	Long: "ghostsh is an interactive command shell. Built-in commands are merged with commands " +
		"registered by plugins found in the extensions directory. Use --tui for the full-screen front end.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx, err := createAppContext()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if !appCtx.Config.NoBanner {
			fmt.Fprintln(out, boot.Banner())
		}
		if appCtx.Config.BootChecks {
			if err := boot.NewChecker(appCtx.Logger).Verify(appCtx.Ctx, out); err != nil {
				return err
			}
		}

		reg := buildRegistry(appCtx)
		if appCtx.Config.TUI {
			return tui.Run(appCtx, reg, out)
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt)
		defer signal.Stop(sigs)

		session := shell.New(reg,
			shell.WithOutput(out),
			shell.WithLogger(appCtx.Logger),
			shell.WithPrompt(appCtx.Config.Prompt),
			shell.WithInterrupts(sigs),
		)
		return session.Run(appCtx.Ctx, cmd.InOrStdin())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all subcommands).
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ./ghostsh.yaml or ~/.config/ghostsh/ghostsh.yaml)")
	rootCmd.PersistentFlags().String("workspace", ".", "Workspace root")
	rootCmd.PersistentFlags().String("extensions", "extensions", "Extensions directory (relative to workspace)")
	rootCmd.PersistentFlags().Bool("tui", false, "Run in TUI mode")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("prompt", shell.DefaultPrompt, "Interactive prompt")
	rootCmd.PersistentFlags().Duration("scan-timeout", portscan.DefaultTimeout, "Per-port connect timeout for portscan")
	rootCmd.PersistentFlags().Int("scan-workers", portscan.DefaultWorkers, "Concurrent connection attempts for portscan (1 = sequential)")
	rootCmd.PersistentFlags().Bool("boot-checks", false, "Run kernel, partition and firmware checks before starting")
	rootCmd.PersistentFlags().Bool("no-banner", false, "Do not print the boot banner")

	// Bind flags to Viper.
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("extensions_dir", rootCmd.PersistentFlags().Lookup("extensions"))
	_ = viper.BindPFlag("tui", rootCmd.PersistentFlags().Lookup("tui"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("prompt", rootCmd.PersistentFlags().Lookup("prompt"))
	_ = viper.BindPFlag("scan.timeout", rootCmd.PersistentFlags().Lookup("scan-timeout"))
	_ = viper.BindPFlag("scan.workers", rootCmd.PersistentFlags().Lookup("scan-workers"))
	_ = viper.BindPFlag("boot_checks", rootCmd.PersistentFlags().Lookup("boot-checks"))
	_ = viper.BindPFlag("no_banner", rootCmd.PersistentFlags().Lookup("no-banner"))

	// Env support: GHOSTSH_WORKSPACE, GHOSTSH_SCAN_TIMEOUT, etc.
	viper.SetEnvPrefix("GHOSTSH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register subcommands.
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads an optional config file. A missing file is not an error.
func initConfig() {
	if path, _ := rootCmd.PersistentFlags().GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("ghostsh")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ghostsh"))
		}
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "[!] failed to read config: %v\n", err)
		}
	}
}

// Helper to create app context
func createAppContext() (app.Context, error) {
	cfg, err := app.LoadConfigFromViper()
	if err != nil {
		return app.Context{}, err
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel)
	ws, err := workspace.Ensure(cfg.Workspace, cfg.ExtensionsDir)
	if err != nil {
		return app.Context{}, err
	}
	return app.Context{
		Ctx:       context.Background(),
		Config:    cfg,
		Workspace: ws,
		Logger:    logger,
		Now:       time.Now(),
	}, nil
}

// builtins returns the commands compiled into the shell.
func builtins(cfg app.Config) []sdk.Plugin {
	return []sdk.Plugin{
		portscan.New(cfg.ScanTimeout, cfg.ScanWorkers),
		sysinfo.New(),
		ping.New(),
		crypt.New(),
	}
}

// buildRegistry registers built-ins first, then linked plugins, then the
// extensions directory. Later registrations replace earlier ones.
func buildRegistry(appCtx app.Context) *modules.Registry {
	reg := modules.NewRegistry()
	shell.RegisterBuiltins(reg)
	for _, p := range builtins(appCtx.Config) {
		p.Register(reg.Register)
	}

	exists := func(name string) bool {
		_, ok := reg.Lookup(name)
		return ok
	}
	loader := extensions.New(appCtx.Workspace.ExtensionsDir(), extensions.WithLogger(appCtx.Logger))
	loader.LoadStatic(reg.Register, exists, banner.New())
	rep, err := loader.Load(appCtx.Ctx, reg.Register, exists)
	if err != nil {
		// The shell still starts with whatever is registered.
		appCtx.Logger.Error("extension loading aborted", "err", err)
		return reg
	}
	appCtx.Logger.Debug("extensions loaded", "loaded", len(rep.Loaded), "failed", len(rep.Failed), "skipped", len(rep.Skipped))
	return reg
}

// `init` subcommand to initialize/ensure workspace structure.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the workspace and extensions directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx, err := createAppContext()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Extensions directory ready at: %s\n", appCtx.Workspace.ExtensionsDir())
		return nil
	},
}

// `exec` subcommand: run a single shell command non-interactively.
var execCmd = &cobra.Command{
	Use:           "exec <command> [args...]",
	Short:         "Run one command and exit with its status",
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx, err := createAppContext()
		if err != nil {
			return err
		}
		reg := buildRegistry(appCtx)
		ctx, stop := signal.NotifyContext(appCtx.Ctx, os.Interrupt)
		defer stop()

		session := shell.New(reg, shell.WithOutput(cmd.OutOrStdout()), shell.WithLogger(appCtx.Logger))
		err = session.DispatchArgs(ctx, args[0], args[1:])
		session.Report(err)
		return err
	},
}

func init() {
	// Everything after the command name belongs to the command.
	execCmd.Flags().SetInterspersed(false)
}

// `version` subcommand.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
