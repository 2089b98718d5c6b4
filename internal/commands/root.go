package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/goblin-dev/goblin/internal/buildinfo"
	"github.com/goblin-dev/goblin/internal/config"
	"github.com/goblin-dev/goblin/internal/logger"
	"github.com/goblin-dev/goblin/internal/metrics"
	"github.com/goblin-dev/goblin/internal/store/sqlstore"
)

// app carries what every subcommand shares for one invocation.
type app struct {
	configPath string
	dsn        string

	cfg     *config.Config
	store   *sqlstore.Store
	metrics *metrics.Metrics
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "goblin",
		Short:   "Bank CSV import and subscription tracking",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.FileName, "path to goblin.yaml")
	rootCmd.PersistentFlags().StringVar(&a.dsn, "db", "", "database DSN, overrides the config file")

	rootCmd.AddCommand(
		newInitCommand(a),
		newAccountCommand(a),
		newImportCommand(a),
		newImportsCommand(a),
		newCategoriesCommand(a),
		newDetectCommand(a),
		newSubscriptionsCommand(a),
		newSpendCommand(a),
		newTransactionsCommand(a),
	)

	return rootCmd
}

// withStore wraps a RunE so it runs with config, logger and store ready, and
// releases them afterwards.
func (a *app) withStore(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := config.LoadOrDefault(a.configPath)
		if err != nil {
			return err
		}
		if err := a.open(cmd, cfg); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, a.close())
		}()
		return fn(cmd, args)
	}
}

func (a *app) open(cmd *cobra.Command, cfg *config.Config) error {
	if a.dsn != "" {
		cfg.Database.DSN = a.dsn
	}
	a.cfg = cfg

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	ctx := logger.WithContext(cmd.Context(), log)
	cmd.SetContext(ctx)

	s, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening %s database: %w", cfg.Database.Driver, err)
	}
	log.Debug().Str("driver", string(s.Dialect())).Msg("database opened")

	a.store = s
	a.metrics = metrics.New()
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.cfg != nil && a.cfg.Metrics.Textfile != "" && a.metrics != nil {
		errs = append(errs, a.metrics.WriteTextfile(a.cfg.Metrics.Textfile))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	return errors.Join(errs...)
}

// requireAccount fails early with a readable error for unknown account ids.
func (a *app) requireAccount(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("--account is required")
	}
	if _, err := a.store.GetAccount(ctx, id); err != nil {
		return err
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
