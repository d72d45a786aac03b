// Package cli implements the zwf command line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/zowe/zowe-cli-sub009/internal/auth"
	"github.com/zowe/zowe-cli-sub009/internal/config"
	"github.com/zowe/zowe-cli-sub009/internal/logging"
	"github.com/zowe/zowe-cli-sub009/internal/repository"
	"github.com/zowe/zowe-cli-sub009/internal/services"
)

// App carries the state shared by every command.
type App struct {
	cfgFile   string
	debug     bool
	logFormat string
	output    string

	out     io.Writer
	cfg     *config.Config
	logger  *logging.Logger
	backend services.WorkflowBackend
	runs    repository.RunStore
	pool    *pgxpool.Pool
	service *services.WorkflowService
}

// Option customizes the App, mostly for tests.
type Option func(*App)

// WithOutput redirects command results.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithConfig skips loading configuration from disk.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) { a.cfg = cfg }
}

// WithBackend replaces the z/OSMF client.
func WithBackend(b services.WorkflowBackend) Option {
	return func(a *App) { a.backend = b }
}

// WithRunStore replaces the run history store.
func WithRunStore(store repository.RunStore) Option {
	return func(a *App) { a.runs = store }
}

// NewRootCommand builds the zwf command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	app := &App{out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}

	root := &cobra.Command{
		Use:   "zwf",
		Short: "Manage z/OSMF workflows",
		Long: `zwf creates, starts, monitors and cleans up z/OSMF workflow instances
through the z/OSMF workflow REST API.`,
		SilenceUsage:      true,
		PersistentPreRunE: app.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) { app.close() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.cfgFile, "config", "", "config file (default is config.yaml in ., ./config or $HOME/.zwf)")
	flags.BoolVar(&app.debug, "debug", false, "Enable debug logging")
	flags.StringVar(&app.logFormat, "log-format", "", "Log format: json or human")
	flags.StringVarP(&app.output, "output", "o", outputTable, "Output format: table, json or yaml")

	root.AddCommand(
		app.createCommand(),
		app.startCommand(),
		app.waitCommand(),
		app.stepsCommand(),
		app.propertiesCommand(),
		app.listCommand(),
		app.listArchivedCommand(),
		app.keyCommand(),
		app.cancelCommand(),
		app.archiveCommand(),
		app.deleteCommand(),
		app.deleteArchivedCommand(),
		app.definitionCommand(),
		app.runsCommand(),
	)
	return root
}

// Execute runs the CLI with ctx and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *App) setup(cmd *cobra.Command, args []string) error {
	if err := validOutput(a.output); err != nil {
		return err
	}

	if a.cfg == nil {
		cfg, err := config.LoadConfig(a.cfgFile)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	// CLI flags override config settings
	if cmd.Flags().Changed("debug") && a.debug {
		a.cfg.Logging.Level = "debug"
	}
	if cmd.Flags().Changed("log-format") {
		a.cfg.Logging.Format = a.logFormat
	}

	logger, err := logging.New(logging.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})
	if err != nil {
		return err
	}
	a.logger = logger

	ctx := cmd.Context()
	if a.backend == nil {
		client, err := services.NewZosmfClient(a.cfg.BaseURL(),
			services.WithHTTPClient(auth.NewHTTPClient(ctx, auth.ClientConfigFrom(a.cfg))),
			services.WithVersion(a.cfg.Zosmf.Version),
			services.WithRateLimit(a.cfg.RateLimit.RequestsPerSecond, a.cfg.RateLimit.Burst),
			services.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		a.backend = client
	}

	if a.runs == nil {
		runs, err := a.openRunStore(ctx)
		if err != nil {
			return err
		}
		a.runs = runs
	}

	a.service = services.NewWorkflowService(a.backend, logger,
		services.WithRunStore(a.runs),
		services.WithWaitDefaults(a.cfg.Polling.Interval, a.cfg.Polling.MaxInterval, a.cfg.Polling.Timeout),
	)
	return nil
}

// openRunStore uses Postgres when db.enable is set and an in-memory store
// otherwise.
func (a *App) openRunStore(ctx context.Context) (repository.RunStore, error) {
	if !a.cfg.DB.Enable {
		return repository.NewMemoryRunStore(), nil
	}

	a.logger.Debug("connecting to run history database", "host", a.cfg.DB.Host, "name", a.cfg.DB.Name)
	store, pool, err := repository.OpenPostgresRunStore(ctx, a.cfg.DSN())
	if err != nil {
		return nil, err
	}
	a.pool = pool
	return store, nil
}

func (a *App) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}
