package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lepinkainen/everybook/internal/config"
	"github.com/lepinkainen/everybook/internal/scheduler"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	now              = time.Now
	stdout io.Writer = os.Stdout
)

// RunCmd runs a single cycle, for cron-driven deployments
type RunCmd struct {
	GateHours int `help:"Only post when the current hour is divisible by N (0 uses bot.every_hours, 1 always posts)" default:"1"`
}

func (r *RunCmd) Run(ctx context.Context, cfg *config.Config) error {
	every := r.GateHours
	if every == 0 {
		every = cfg.Bot.EveryHours
	}
	if !scheduler.ShouldPost(now(), every) {
		slog.Info("Not posting this hour", "hour", now().Hour(), "every_hours", every)
		return nil
	}

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Runner.RunOnce(ctx)
	if err != nil {
		return err
	}
	slog.Info("Cycle finished", "state", res.State.String(), "attempts", res.Attempts)
	return nil
}

// ServeCmd keeps posting on cfg.Bot.Interval until interrupted
type ServeCmd struct {
	NoRunOnStart bool `help:"Wait for the first interval before posting"`
}

func (s *ServeCmd) Run(ctx context.Context, cfg *config.Config) error {
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	serverErr := make(chan error, 1)
	var health *scheduler.Server
	if cfg.Metrics.Addr != "" {
		health = scheduler.NewServer(cfg.Metrics.Addr)
		health.SetReady(true)
		go func() { serverErr <- health.Start(ctx) }()
	}

	loopErr := scheduler.Loop(ctx, scheduler.Config{
		Name:       "poster",
		Interval:   cfg.Bot.Interval,
		RunOnStart: !s.NoRunOnStart,
		OnTick: func(ctx context.Context) {
			res, err := app.Runner.RunOnce(ctx)
			if err != nil {
				slog.Error("Cycle failed", "cycle", res.ID, "error", err)
				return
			}
			slog.Info("Cycle finished", "cycle", res.ID, "state", res.State.String(), "attempts", res.Attempts)
		},
	})

	if health != nil {
		if err := <-serverErr; err != nil {
			slog.Error("Health server stopped", "error", err)
		}
	}
	if errors.Is(loopErr, context.Canceled) {
		slog.Info("Shutting down")
		return nil
	}
	return loopErr
}

// CheckCmd validates setup without posting
type CheckCmd struct{}

func (c *CheckCmd) Run(ctx context.Context, cfg *config.Config, v *viper.Viper) error {
	cfg.Bot.DryRun = true
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	out, err := yaml.Marshal(redact(v.AllSettings()))
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	_, _ = fmt.Fprintf(stdout, "# effective configuration\n%s", out)
	_, _ = fmt.Fprintf(stdout, "blacklist: %d words, artifact dir %s writable, dedup store %s\n",
		app.Filter.Len(), app.Compositor.Dir(), storeStatus(app))
	return nil
}

// HistoryCmd prints the newest posts from the dedup store
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of posts to list" default:"20"`
}

func (h *HistoryCmd) Run(ctx context.Context, cfg *config.Config) error {
	if !cfg.Dedup.Enabled {
		return errors.New("dedup store is disabled (dedup.enabled)")
	}
	store, err := openStore(ctx, cfg.Dedup.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	posts, err := store.History(ctx, h.Limit)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		_, _ = fmt.Fprintln(stdout, "No books posted yet.")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "POSTED\tISBN\tSUBJECT\tTITLE\tAUTHOR")
	for _, p := range posts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			p.PostedAt.Local().Format("2006-01-02 15:04"), p.ISBN, p.Subject, p.Title, p.Author)
	}
	return w.Flush()
}

func storeStatus(app *App) string {
	if app.Store == nil {
		return "disabled"
	}
	return "ready"
}

// redact masks credentials in a nested settings map.
func redact(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		switch val := v.(type) {
		case map[string]any:
			out[k] = redact(val)
		case string:
			if val != "" && (strings.Contains(k, "key") || strings.Contains(k, "token")) {
				out[k] = "********"
				continue
			}
			out[k] = val
		default:
			out[k] = val
		}
	}
	return out
}
