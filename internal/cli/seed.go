package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
)

func newSeedCommand(loadConfig func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate an empty catalog with sample public domain books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			created, err := db.SeedCatalog(cmd.Context(), database.SampleCatalog())
			if err != nil {
				return fmt.Errorf("failed to seed catalog: %w", err)
			}
			if created == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "catalog already has books, nothing to seed")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d books\n", created)
			return nil
		},
	}
}
