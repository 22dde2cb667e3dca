package main

import (
	"github.com/spf13/cobra"

	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
	"github.com/E8A281E6ACA2/BinaryStore/internal/pgstore"
)

func newMigrateCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, s)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := pgstore.Migrate(ctx, a.db); err != nil {
				return err
			}
			n, err := a.config.SeedDefaults(ctx)
			if err != nil {
				return err
			}
			log.Info(ctx).Int("seeded", n).Msg("migrations applied")
			return nil
		},
	}
}
