// Command server runs the HypeShelf API.
//
// main only reads configuration, builds the logger and starts the server;
// everything else lives under internal/.
//
//	server                      serve the API
//	server promote <externalId> grant admin to a synced user and exit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/hypeshelf/internal/config"
	"github.com/sakif/hypeshelf/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel,
	}))
	slog.SetDefault(logger)

	if len(os.Args) > 1 && os.Args[1] == "promote" {
		os.Exit(promote(cfg, logger, os.Args[2:]))
	}

	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// blocks until SIGINT/SIGTERM
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func promote(cfg *config.Config, logger *slog.Logger, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: server promote <externalId>")
		return 2
	}
	user, err := server.Promote(context.Background(), cfg, logger, args[0])
	if err != nil {
		logger.Error("promote failed", slog.String("externalID", args[0]), slog.String("error", err.Error()))
		return 1
	}
	fmt.Printf("%s (%s) is now %s\n", user.DisplayName, user.ExternalID, user.Role)
	return 0
}
