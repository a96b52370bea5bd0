package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/alkime/practice/internal/config"
	"github.com/alkime/practice/internal/logger"
)

// CLI defines the practice command structure.
type CLI struct {
	// Default TUI command (runs when no subcommand given)
	TUI TUICmd `cmd:"" default:"withargs" help:"Record and play back takes for a song"`

	// Subcommands
	Devices DevicesCmd `cmd:"" help:"List available audio devices"`
	Resume  ResumeCmd  `cmd:"" help:"Deliver queued uploads without opening the UI"`
	Audios  AudiosCmd  `cmd:"" help:"Manage stored takes"`
	Config  ConfigCmd  `cmd:"" help:"Manage configuration"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Text logging until a command picks its own mode.
	if _, _, err := logger.SetupLogger(cfg, logger.ModeCLI); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("practice"),
		kong.Description("Record practice takes for a song and keep them in sync."),
		kong.Bind(cfg),
	)

	err = ctx.Run()
	if err != nil {
		slog.Debug("command failed", "command", ctx.Command(), "error", err)
	}

	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
