// Package serve implements the command that runs the web server.
package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/respireai/respire-web/internal/conf"
	"github.com/respireai/respire-web/internal/httpcontroller"
	"github.com/respireai/respire-web/internal/inference"
	"github.com/respireai/respire-web/internal/logging"
	"github.com/respireai/respire-web/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Command creates the serve command for running the web frontend.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web frontend",
		Long:  "Start the web server hosting the marketing pages, the analysis page and the JSON API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Host, "host", viper.GetString("webserver.host"), "Host address to listen on")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().StringVar(&settings.Inference.BaseURL, "inference-url", viper.GetString("inference.baseurl"), "Base URL of the prediction service")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

// runServer wires the collaborators together and blocks until the
// process receives an interrupt or termination signal.
func runServer(settings *conf.Settings) error {
	if err := conf.ValidateSettings(settings); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client := inference.New(&settings.Inference, logging.ForService("inference"))
	defer client.Close()

	store := session.NewCookieStore(&settings.Session)

	server := httpcontroller.New(settings, store, client)
	server.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down")
	return server.Shutdown()
}
