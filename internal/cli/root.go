// Package cli implements orderctl, the operator command line for the order
// service.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dejobratic/orderflow/internal/bootstrap"
	"github.com/dejobratic/orderflow/internal/config"
	"github.com/dejobratic/orderflow/internal/database"
	ordersapp "github.com/dejobratic/orderflow/internal/orders/app"
	"github.com/dejobratic/orderflow/internal/orders/app/queries"
	"github.com/dejobratic/orderflow/internal/orders/domain"
	"github.com/dejobratic/orderflow/internal/orders/ports"
	"github.com/dejobratic/orderflow/internal/telemetry"
)

// OrderService is the part of the order service the CLI drives.
type OrderService interface {
	PlaceOrder(ctx context.Context, input ordersapp.PlaceOrderInput) (*domain.OrderSummary, error)
	ListOrders(ctx context.Context, query queries.ListBuyerOrdersQuery) (*queries.OrderList, error)
}

// Runtime is what data commands operate on.
type Runtime struct {
	Orders  OrderService
	Catalog ports.Catalog
	Keys    ports.IdempotencyStore
	Close   func() error
}

// RuntimeFactory opens a Runtime for the loaded configuration.
type RuntimeFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error)

// Migrator applies (steps == 0) or rolls back (steps > 0) schema migrations.
type Migrator func(databaseURL, migrationsPath string, steps int) error

// Options overrides collaborators, mainly for tests.
type Options struct {
	Runtime RuntimeFactory
	Migrate Migrator
	LogOut  io.Writer
	Viper   *viper.Viper
}

type app struct {
	opts   Options
	v      *viper.Viper
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the orderctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Runtime == nil {
		opts.Runtime = postgresRuntime
	}
	if opts.Migrate == nil {
		opts.Migrate = migrate
	}
	if opts.Viper == nil {
		opts.Viper = viper.New()
	}

	a := &app{opts: opts, v: opts.Viper}

	root := &cobra.Command{
		Use:           "orderctl",
		Short:         "Operate the order service from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("database-url", "", "postgres connection string")

	_ = a.v.BindPFlag("config", flags.Lookup("config"))
	_ = a.v.BindPFlag("telemetry.log_level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("database.url", flags.Lookup("database-url"))

	root.AddCommand(
		a.migrateCommand(),
		a.seedCommand(),
		a.placeCommand(),
		a.ordersCommand(),
		a.purgeKeysCommand(),
	)

	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	out := a.opts.LogOut
	if out == nil {
		out = cmd.ErrOrStderr()
	}
	a.logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: telemetry.ParseLevel(cfg.Telemetry.LogLevel),
	}))
	return nil
}

// withRuntime opens a runtime for the duration of fn.
func (a *app) withRuntime(ctx context.Context, fn func(rt *Runtime) error) error {
	rt, err := a.opts.Runtime(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if rt.Close == nil {
			return
		}
		if err := rt.Close(); err != nil {
			a.logger.Error("failed to release resources", "error", err)
		}
	}()
	return fn(rt)
}

func postgresRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	deps, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		Orders:  deps.Service,
		Catalog: deps.Catalog,
		Keys:    deps.Idempotency,
		Close:   deps.Close,
	}, nil
}

func migrate(databaseURL, migrationsPath string, steps int) error {
	if steps > 0 {
		return database.RollbackMigrations(databaseURL, migrationsPath, steps)
	}
	return database.RunMigrations(databaseURL, migrationsPath)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
