// Package main provides the CLI entrypoint for riotswitch.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/riotswitch/internal/automation"
	"github.com/verte-zerg/riotswitch/internal/config"
	"github.com/verte-zerg/riotswitch/internal/controller"
	"github.com/verte-zerg/riotswitch/internal/logging"
	"github.com/verte-zerg/riotswitch/internal/model"
	"github.com/verte-zerg/riotswitch/internal/store"
	"github.com/verte-zerg/riotswitch/internal/tui"
)

const (
	backendJSON   = "json"
	backendSQLite = "sqlite"
)

var (
	storePath    string
	storeBackend string
	debugLogging bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "riotswitch",
		Short:         "Riot Client account switcher",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logging.SetDebug(debugLogging)
		},
		RunE: runTUICmd,
	}

	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "account store path (default: XDG data dir)")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "backend", backendJSON, "store backend: json or sqlite")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newRegionsCmd())
	rootCmd.AddCommand(newSaveCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newSpeedCmd())
	rootCmd.AddCommand(newCopyCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// app bundles what every command needs.
type app struct {
	store store.CredentialStore
	ctrl  *controller.Controller
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logging.Errorf("failed to close store: %v", err)
	}
}

func openApp(cmd *cobra.Command) (*app, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "backend", &storeBackend, fileCfg.Store.Backend)
	applyStringConfig(cmd, "store", &storePath, fileCfg.Store.Path)

	templatePath := config.DefaultTemplatePath()
	if fileCfg.Store.Template != nil {
		templatePath = config.ExpandPath(*fileCfg.Store.Template)
	}

	loginCfg, err := buildLoginConfig(fileCfg.Login, config.DefaultImageDir())
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("strategy"); f != nil && f.Changed {
		strategy, err := controller.ParseStrategy(f.Value.String())
		if err != nil {
			return nil, err
		}
		loginCfg.Strategy = strategy
	}

	st, err := openStore(storeBackend, storePath, templatePath)
	if err != nil {
		return nil, err
	}

	var autoOpts []automation.XDoToolOption
	if len(fileCfg.Login.CaptureCommand) > 0 {
		autoOpts = append(autoOpts, automation.WithCaptureCommand(fileCfg.Login.CaptureCommand...))
	}
	ctrl := controller.New(st, automation.NewXDoTool(autoOpts...), controller.WithConfig(loginCfg))
	return &app{store: st, ctrl: ctrl}, nil
}

func openStore(backend, path, templatePath string) (store.CredentialStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", backendJSON:
		if path == "" {
			path = config.DefaultStorePath()
		}
		// Load problems are logged by OpenFile; the store falls back to an empty state.
		st, _ := store.OpenFile(config.ExpandPath(path), store.WithTemplate(templatePath))
		return st, nil
	case backendSQLite:
		if path == "" {
			path = config.DefaultDBPath()
		}
		st, err := store.OpenSQLite(config.ExpandPath(path))
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown backend %q (use %s or %s)", backend, backendJSON, backendSQLite)
	}
}

// buildLoginConfig overlays the [login] table onto the controller defaults.
func buildLoginConfig(lc config.LoginConfig, imageDir string) (controller.Config, error) {
	cfg := controller.DefaultConfig()
	if lc.WindowTitle != nil {
		cfg.WindowTitle = *lc.WindowTitle
	}
	if lc.Strategy != nil {
		strategy, err := controller.ParseStrategy(*lc.Strategy)
		if err != nil {
			return controller.Config{}, err
		}
		cfg.Strategy = strategy
	}
	if len(lc.Templates) > 0 {
		cfg.Templates = append([]string(nil), lc.Templates...)
	}
	for i, path := range cfg.Templates {
		cfg.Templates[i] = config.ResolveImagePath(imageDir, path)
	}
	if lc.Confidence != nil {
		cfg.Confidence = *lc.Confidence
	}
	if lc.OffsetX != nil {
		cfg.OffsetX = *lc.OffsetX
	}
	if lc.OffsetY != nil {
		cfg.OffsetY = *lc.OffsetY
	}
	if lc.SubmitTabs != nil {
		cfg.SubmitTabs = *lc.SubmitTabs
	}
	if lc.Resubmit != nil {
		cfg.Resubmit = *lc.Resubmit
	}
	if lc.ClearWithDelete != nil {
		cfg.ClearWithDelete = *lc.ClearWithDelete
	}
	if lc.Timeout != nil {
		cfg.Timeout = lc.Timeout.Duration
	}
	if lc.RestoreDelay != nil {
		cfg.RestoreDelay = lc.RestoreDelay.Duration
	}
	if lc.ActivateDelay != nil {
		cfg.ActivateDelay = lc.ActivateDelay.Duration
	}
	if err := validateLoginConfig(cfg); err != nil {
		return controller.Config{}, err
	}
	return cfg, nil
}

func validateLoginConfig(cfg controller.Config) error {
	if strings.TrimSpace(cfg.WindowTitle) == "" {
		return fmt.Errorf("login.window-title must not be empty")
	}
	if cfg.Confidence <= 0 || cfg.Confidence > 1 {
		return fmt.Errorf("login.confidence must be in (0, 1]")
	}
	if cfg.SubmitTabs < 0 {
		return fmt.Errorf("login.submit-tabs must be >= 0")
	}
	if cfg.Timeout < 0 || cfg.RestoreDelay < 0 || cfg.ActivateDelay < 0 {
		return fmt.Errorf("login durations must be >= 0")
	}
	return nil
}

func runTUICmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	restore := redirectLogs(config.DefaultLogPath())
	defer restore()

	m := tui.NewModel(cmd.Context(), a.ctrl)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// redirectLogs sends log output to path while the TUI owns the terminal.
func redirectLogs(path string) func() {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logging.SetOutput(io.Discard)
		return func() { logging.SetOutput(os.Stderr) }
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		logging.SetOutput(io.Discard)
		return func() { logging.SetOutput(os.Stderr) }
	}
	logging.SetOutput(f)
	return func() {
		logging.SetOutput(os.Stderr)
		// Best-effort close.
		_ = f.Close()
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	d := controller.DefaultConfig()
	return fmt.Sprintf(`# riotswitch configuration
# Uncomment a value to enable it. CLI flags override config values.

[store]
# backend = %q                 # json or sqlite
# path = %q
# template = %q                # Seed document copied on first run (json backend)

[login]
# window-title = %q
# strategy = %q                # auto, template or offset
# templates = [%q, %q]         # Relative paths resolve against %s
# confidence = %.2f
# offset-x = %d
# offset-y = %d
# submit-tabs = %d
# resubmit = %t
# clear-with-delete = %t
# timeout = %q
# restore-delay = %q
# activate-delay = %q
# capture-command = ["import", "-window", "root", "png:-"]
`,
		backendJSON,
		config.DefaultStorePath(),
		config.DefaultTemplatePath(),
		d.WindowTitle,
		string(d.Strategy),
		d.Templates[0], d.Templates[1], config.DefaultImageDir(),
		d.Confidence,
		d.OffsetX,
		d.OffsetY,
		d.SubmitTabs,
		d.Resubmit,
		d.ClearWithDelete,
		d.Timeout.String(),
		d.RestoreDelay.String(),
		d.ActivateDelay.String(),
	)
}

// printResult writes a successful result to stdout and turns a failed one into an error.
func printResult(cmd *cobra.Command, res model.Result) error {
	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), res.Message); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
