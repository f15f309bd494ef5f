package main

import (
	"fmt"

	"github.com/carbonclap/carbonclap/internal/cli"
	"github.com/carbonclap/carbonclap/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply any pending schema migrations to the emission ledger database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Database is at schema version %d", storage.ExpectedSchemaVersion)))
			return nil
		},
	}
}
