package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/milkyware/glacier/internal/config"
	"github.com/milkyware/glacier/internal/deploy"
	"github.com/milkyware/glacier/internal/metrics"
	"github.com/milkyware/glacier/internal/server"
	"github.com/milkyware/glacier/internal/site"
	"github.com/milkyware/glacier/internal/version"
	"github.com/milkyware/glacier/internal/watch"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"site.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Source      string `short:"s" help:"Source directory (overrides configuration)"`
		Output      string `short:"o" help:"Output directory (overrides configuration)"`
		Drafts      bool   `help:"Include draft posts"`
		Future      bool   `help:"Include future-dated posts"`
		SkipInvalid bool   `help:"Exclude invalid documents instead of failing"`
	} `cmd:"" help:"Build the site once"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new site configuration"`

	Serve struct {
		Addr   string `short:"a" help:"Listen address" default:"127.0.0.1:4000"`
		Drafts bool   `help:"Include draft posts"`
		Future bool   `help:"Include future-dated posts"`
		Watch  bool   `short:"w" help:"Rebuild on source changes" default:"true" negatable:""`
	} `cmd:"" help:"Build the site and serve it locally"`

	Watch struct {
		Drafts   bool          `help:"Include draft posts"`
		Future   bool          `help:"Include future-dated posts"`
		Interval time.Duration `help:"Also rebuild on a fixed schedule (publishes future-dated posts); 0 disables" default:"0"`
	} `cmd:"" help:"Rebuild the site whenever source files change"`

	Deploy struct {
		Remote  string `short:"r" required:"" help:"Git remote URL to publish to"`
		Branch  string `short:"b" help:"Publishing branch" default:"gh-pages"`
		Message string `short:"m" help:"Commit message" default:"Publish site"`
		Token   string `env:"GLACIER_DEPLOY_TOKEN" help:"HTTP token for the remote"`
		DryRun  bool   `help:"Commit locally without pushing"`
	} `cmd:"" help:"Build the site and push it to a publishing branch"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild()
	case "init":
		err = runInit()
	case "serve":
		err = runServe()
	case "watch":
		err = runWatch()
	case "deploy":
		err = runDeploy()
	case "version":
		fmt.Println(version.String())
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, err
	}
	if CLI.Build.Source != "" {
		cfg.Source = CLI.Build.Source
	}
	if CLI.Build.Output != "" {
		cfg.Output = CLI.Build.Output
	}
	return cfg, nil
}

func runBuild() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	builder := site.NewBuilder(cfg, cfg.Source, cfg.Output, site.Options{
		Drafts:      CLI.Build.Drafts,
		Future:      CLI.Build.Future,
		SkipInvalid: CLI.Build.SkipInvalid,
	})
	_, err = builder.Build(context.Background())
	return err
}

func runInit() error {
	slog.Info("Initializing site configuration", "path", CLI.Config, "force", CLI.Init.Force)
	return config.Init(CLI.Config, CLI.Init.Force)
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	recorder := metrics.NewPrometheusRecorder()
	opts := site.Options{Drafts: CLI.Serve.Drafts, Future: CLI.Serve.Future}

	rebuild := func(ctx context.Context) error {
		_, err := site.NewBuilder(cfg, cfg.Source, cfg.Output, opts).
			SetRecorder(recorder).
			Build(ctx)
		return err
	}
	if err := rebuild(ctx); err != nil {
		return err
	}

	if CLI.Serve.Watch {
		w, err := watch.NewWatcher(cfg.Source, rebuild, watch.Config{Recorder: recorder})
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Error("Watcher stopped", "error", err)
			}
		}()
	}

	return server.New(CLI.Serve.Addr, cfg.Output, recorder).Run(ctx)
}

func runWatch() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	recorder := metrics.NewPrometheusRecorder()
	opts := site.Options{Drafts: CLI.Watch.Drafts, Future: CLI.Watch.Future}

	rebuild := func(ctx context.Context) error {
		_, err := site.NewBuilder(cfg, cfg.Source, cfg.Output, opts).
			SetRecorder(recorder).
			Build(ctx)
		return err
	}
	if err := rebuild(ctx); err != nil {
		return err
	}

	w, err := watch.NewWatcher(cfg.Source, rebuild, watch.Config{
		Interval: CLI.Watch.Interval,
		Recorder: recorder,
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func runDeploy() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Always publish a fresh build, never whatever happens to sit in the
	// output directory.
	builder := site.NewBuilder(cfg, cfg.Source, cfg.Output, site.Options{})
	if _, err := builder.Build(context.Background()); err != nil {
		return err
	}

	d, err := deploy.NewDeployer(deploy.Options{
		RemoteURL: CLI.Deploy.Remote,
		Branch:    CLI.Deploy.Branch,
		Message:   CLI.Deploy.Message,
		Token:     CLI.Deploy.Token,
		Author:    cfg.Author.Name,
		Email:     cfg.Author.Email,
		Push:      !CLI.Deploy.DryRun,
	})
	if err != nil {
		return err
	}
	return d.Deploy(context.Background(), cfg.Output)
}
