package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/whatscottcodes/paceutils/agg"
	"github.com/whatscottcodes/paceutils/config"
	"github.com/whatscottcodes/paceutils/store"
	"github.com/whatscottcodes/paceutils/store/postgres"
	"github.com/whatscottcodes/paceutils/store/schema"
	"github.com/whatscottcodes/paceutils/store/sqlite"
)

// executor opens the configured reporting database.
func (a *app) executor() (*store.Executor, error) {
	if a.cfg.DBDriver == config.DriverPostgres {
		return postgres.New(a.cfg.Postgres(), a.log.Base)
	}
	return sqlite.New(a.cfg.SQLite(), a.log.Base)
}

// aggregates returns nil when no aggregate database is configured.
func (a *app) aggregates() (*agg.Agg, error) {
	if !a.cfg.HasAgg() {
		return nil, nil
	}
	exec, err := sqlite.New(a.cfg.AggConfig(), a.log.Base)
	if err != nil {
		return nil, err
	}
	return agg.New(exec, agg.Config{Tables: a.cfg.AggAllowList(), Calendar: a.calendar}), nil
}

// schemaDB opens a handle for migrations and seeding, creating SQLite files.
func (a *app) schemaDB(aggregate bool) (*sql.DB, store.Dialect, error) {
	if aggregate {
		if !a.cfg.HasAgg() {
			return nil, store.Dialect{}, fmt.Errorf("agg_db_path is not configured")
		}
		db, err := sqlite.OpenDB(a.cfg.AggDBPath)
		return db, store.SQLite, err
	}
	if a.cfg.DBDriver == config.DriverPostgres {
		db, err := postgres.OpenDB(a.cfg.DatabaseURL)
		return db, store.Postgres, err
	}
	db, err := sqlite.OpenDB(a.cfg.DBPath)
	return db, store.SQLite, err
}

func migrateCmd(a *app) *cobra.Command {
	var aggregate, functionsOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if aggregate && functionsOnly {
				return fmt.Errorf("--agg and --functions-only cannot be combined")
			}
			db, d, err := a.schemaDB(aggregate)
			if err != nil {
				return err
			}
			defer db.Close()

			if functionsOnly {
				if err := schema.InstallFunctions(ctx, db, d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d %s functions installed\n", len(d.Functions), d.Goose)
				return nil
			}

			migrate, dir := schema.Migrate, schema.ReportingDir
			if aggregate {
				migrate, dir = schema.MigrateAgg, schema.AggDir
			}
			if err := migrate(ctx, db, d, a.log.Base); err != nil {
				return err
			}
			return printVersion(ctx, cmd, db, d, dir)
		},
	}
	cmd.Flags().BoolVar(&aggregate, "agg", false, "Migrate the aggregate database")
	cmd.Flags().BoolVar(&functionsOnly, "functions-only", false, "Only install the dialect functions the catalog needs")
	return cmd
}

func printVersion(ctx context.Context, cmd *cobra.Command, db *sql.DB, d store.Dialect, dir string) error {
	v, err := schema.Version(ctx, db, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s at version %d\n", dir, v)
	return nil
}

func seedCmd(a *app) *cobra.Command {
	var aggregate bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the demo fixtures into a migrated database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, d, err := a.schemaDB(aggregate)
			if err != nil {
				return err
			}
			defer db.Close()

			if aggregate {
				err = schema.SeedAggDemo(cmd.Context(), db, d)
			} else {
				err = schema.SeedDemo(cmd.Context(), db, d)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "demo data loaded")
			return nil
		},
	}
	cmd.Flags().BoolVar(&aggregate, "agg", false, "Seed the aggregate database")
	return cmd
}
