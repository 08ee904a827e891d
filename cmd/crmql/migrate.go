package main

import (
	"github.com/rpattn/crmql/internal/db"
	"github.com/rpattn/crmql/migrations"

	"github.com/spf13/cobra"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	for _, dir := range []db.Direction{db.Up, db.Down} {
		cmd.AddCommand(&cobra.Command{
			Use:   string(dir),
			Short: "Run migrations " + string(dir),
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return db.RunMigrations(a.cfg.Database, migrations.FS, dir, a.logger)
			},
		})
	}
	return cmd
}
