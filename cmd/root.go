package cmd

import (
	"fmt"

	"github.com/respireai/respire-web/cmd/serve"
	"github.com/respireai/respire-web/internal/conf"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "respire-web",
		Short: "RespireAI web frontend",
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	serveCmd := serve.Command(settings)
	rootCmd.AddCommand(serveCmd)

	// The serve command is the default action.
	rootCmd.RunE = serveCmd.RunE

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
