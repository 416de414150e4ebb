package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/respireai/respire-web/cmd"
	"github.com/respireai/respire-web/internal/conf"
	"github.com/respireai/respire-web/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	logging.Init(level)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
