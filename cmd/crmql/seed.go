package main

import (
	"fmt"

	"github.com/rpattn/crmql/internal/db"
	"github.com/rpattn/crmql/internal/repository"
	"github.com/rpattn/crmql/internal/seed"

	"github.com/spf13/cobra"
)

func seedCmd(a *app) *cobra.Command {
	opts := seed.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with sample customers, products and orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := db.NewConnection(cmd.Context(), a.cfg.Database, a.logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			res, err := seed.New(repository.NewStore(conn), a.logger).Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d customers, %d products, %d orders\n", res.Customers, res.Products, res.Orders)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.Fake, "fake", 0, "number of generated customers and products to add")
	cmd.Flags().IntVar(&opts.Orders, "orders", opts.Orders, "sample orders to create when none exist")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed for generated data, 0 for random")
	return cmd
}
