package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	binarystore "github.com/E8A281E6ACA2/BinaryStore"
	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
)

// adminPasswordEnv supplies the password when --password is omitted.
const adminPasswordEnv = "ADMIN_PASSWORD"

func newCreateAdminCmd(s *settings) *cobra.Command {
	var req binarystore.InitializeAdminRequest

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the first ADMIN account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Password == "" {
				req.Password = os.Getenv(adminPasswordEnv)
			}
			if req.Email == "" || req.Name == "" || req.Password == "" {
				return errors.New("--email, --name and a password are required")
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, s)
			if err != nil {
				return err
			}
			defer a.Close()

			engine, err := a.buildEngine()
			if err != nil {
				return err
			}
			user, err := engine.InitializeAdmin(ctx, req)
			if err != nil {
				return err
			}
			if _, err := a.config.SeedDefaults(ctx); err != nil {
				log.Warn(ctx).Err(err).Msg("seeding default settings failed")
			}

			cmd.Printf("created admin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&req.Name, "name", "", "admin display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "admin password (default $"+adminPasswordEnv+")")
	return cmd
}
