package main

import (
	"log/slog"
	"os"

	"github.com/BioHazard786/meshroom/internal/cli"
	"github.com/BioHazard786/meshroom/internal/logging"
)

func main() {
	// Logs go to stderr so they stay out of the room view.
	logging.Init(os.Stderr, slog.LevelError)
	cli.Execute()
}
