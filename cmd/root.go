package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/everybook/internal/config"
	boterrors "github.com/lepinkainen/everybook/internal/errors"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"
)

// CLI represents the complete command structure for the everybook bot
type CLI struct {
	// Global flags
	Config  string `help:"Path to YAML config file" type:"path" placeholder:"FILE"`
	Verbose bool   `short:"v" help:"Enable debug logging"`
	DryRun  bool   `help:"Log the post instead of publishing it"`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Run one posting cycle and exit"`
	Serve   ServeCmd   `cmd:"" help:"Post on a fixed interval and serve health and metrics endpoints"`
	Check   CheckCmd   `cmd:"" help:"Validate setup and print the effective configuration"`
	History HistoryCmd `cmd:"" help:"List recently posted books"`
}

// Execute runs the Kong-based CLI
func Execute() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("everybook"),
		kong.Description("Posts a random book about a random subject."),
		kong.UsageOnError(),
	)

	initLogging(cli.Verbose)

	v := viper.GetViper()
	cfg, err := initConfig(v, cli.Config, cli.DryRun)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(cfg, v); err != nil {
		if boterrors.IsSetupError(err) {
			slog.Error("Setup failed", "error", err)
		} else {
			slog.Error("Command failed", "error", err)
		}
		stop()
		os.Exit(1)
	}
}

// initConfig layers defaults, the optional config file and the environment.
// A missing config file is not an error.
func initConfig(v *viper.Viper, path string, dryRun bool) (*config.Config, error) {
	config.SetDefaults(v)
	if err := config.BindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		slog.Debug("Config file not found, using defaults and environment")
	} else {
		slog.Debug("Loaded config", "file", v.ConfigFileUsed())
	}

	if dryRun {
		v.Set("bot.dry_run", true)
	}
	return config.Load(v)
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	slog.SetDefault(slog.New(handler))
}
