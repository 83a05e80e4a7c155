package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/marginalia/internal/cache"
	"github.com/dshills/marginalia/internal/config"
	"github.com/dshills/marginalia/internal/logging"
	"github.com/dshills/marginalia/internal/providers"
	"github.com/dshills/marginalia/internal/review"
)

// version is set by the linker at build time.
var version = "0.1.0"

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitPartial      = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var rootCmd = &cobra.Command{
	Use:   "marginalia",
	Short: "Multi-persona AI document review",
	Long: "Marginalia reviews a document with several AI reviewer personas and merges their\n" +
		"snippet comments into non-overlapping annotated regions.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// providerFactory overrides provider construction; nil uses the config.
var providerFactory review.Factory

var flagLogLevel string

// Run executes the root command and returns an exit code.
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:])
}

func execute(ctx context.Context, args []string) int {
	exitCode = ExitSuccess
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) || exitCode == ExitSuccess {
			return ExitUsageError
		}
	}
	return exitCode
}

// usageError marks errors caused by bad arguments or configuration.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// fail records code and returns err for cobra to print.
func fail(code int, err error) error {
	exitCode = code
	return err
}

// failFor maps a run error to an exit code.
func failFor(err error) error {
	if providers.IsAuthError(err) {
		return fail(ExitAuthError, err)
	}
	return fail(ExitRuntimeError, err)
}

// loadConfig builds the effective config from overrides and reconfigures
// logging from it.
func loadConfig(overrides map[string]string) (config.Config, error) {
	if flagLogLevel != "" {
		if overrides == nil {
			overrides = map[string]string{}
		}
		overrides["log.level"] = flagLogLevel
	}
	cfg, err := config.Load(overrides)
	if err != nil {
		return config.Config{}, usageError{err}
	}
	logging.Init(logging.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Component: "cli",
		Version:   version,
	})
	return cfg, nil
}

func openCache(cfg config.Config) (*cache.Cache, error) {
	c, err := cache.New(cfg.Cache.Enabled, cfg.Cache.Dir, cfg.CacheTTL())
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return c, nil
}

func factoryFor(cfg config.Config) review.Factory {
	if providerFactory != nil {
		return providerFactory
	}
	return review.DefaultFactory(cfg)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print marginalia version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "marginalia version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")
	rootCmd.AddCommand(
		reviewCmd,
		mergeCmd,
		serveCmd,
		mcpCmd,
		personasCmd,
		modelsCmd,
		configCmd,
		cacheCmd,
		versionCmd,
	)
}
