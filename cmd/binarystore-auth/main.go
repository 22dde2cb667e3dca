// Command binarystore-auth runs the BinaryStore admin authentication
// service and its maintenance tasks.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/E8A281E6ACA2/BinaryStore/internal/log"
)

func main() {
	Execute()
}

// BuildRootCmd returns the command tree. Settings are loaded once before
// any subcommand runs.
func BuildRootCmd() *cobra.Command {
	var configFile string
	s := new(settings)

	cmd := &cobra.Command{
		Use:          "binarystore-auth",
		Short:        "BinaryStore admin authentication service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadSettings(configFile)
			if err != nil {
				return err
			}
			*s = *loaded
			return log.Configure(os.Stdout, s.Production(), s.LogLevel)
		},
	}

	cmd.AddCommand(
		newServeCmd(s),
		newMigrateCmd(s),
		newCreateAdminCmd(s),
		newLoadtestCmd(s),
	)
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (env vars take precedence)")

	return cmd
}

// Execute runs the root command until it finishes or a signal arrives.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	rootCmd := BuildRootCmd()
	go func() {
		sig := <-c
		switch sig {
		case syscall.SIGINT:
			rootCmd.PrintErrln("\nShutting down... (press Ctrl+C again to force)")
		default:
			rootCmd.PrintErrf("Received %s, shutting down...\n", sig.String())
		}
		cancel()
		<-c
		os.Exit(1)
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}
