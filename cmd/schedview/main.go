package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"schedview/internal/capture"
	"schedview/internal/config"
	"schedview/internal/ics"
	appLog "schedview/internal/log"
	"schedview/internal/refresh"
	"schedview/internal/remote"
	"schedview/internal/source"
	"schedview/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	level := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"source", conf.Source,
		"calendar", conf.Widget.Calendar,
		"capture", conf.Capture.Enabled,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags.once); err != nil {
		appLog.Error("schedview stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("schedview exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig
	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Capture one PNG of the default widget and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return cfg
}

// buildStore selects the event store. The ICS catalog is also returned as
// the cache the scheduler invalidates.
func buildStore(conf *config.Config) (source.Catalog, refresh.Invalidator) {
	if conf.Source == config.SourceICS {
		feeds := make([]ics.Feed, 0, len(conf.ICS))
		for _, f := range conf.ICS {
			feeds = append(feeds, ics.Feed{ID: f.CalendarID(), Name: f.Name, URL: f.URL})
		}
		catalog := ics.NewCatalog(ics.NewFetcher(conf.CacheDir, nil), feeds, conf.Location(), ics.DefaultTTL)
		return catalog, catalog
	}
	return remote.NewClient(conf.API.BaseURL, conf.APITimeout()), nil
}

func run(ctx context.Context, conf *config.Config, once bool) error {
	store, cache := buildStore(conf)
	server, err := web.NewServer(conf, store)
	if err != nil {
		return err
	}
	defer server.Close()

	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", conf.Listen, err)
	}

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	serveErr := make(chan error, 1)
	go func() { serveErr <- web.StartServer(serveCtx, ln, server.Handler()) }()

	captureFn := func(ctx context.Context) error {
		return captureDefault(ctx, conf, server, ln.Addr().String())
	}

	if once {
		err := captureFn(ctx)
		cancelServe()
		return errors.Join(err, <-serveErr)
	}

	opts := refresh.Options{
		Spec:     conf.RefreshCron,
		Location: conf.Location(),
		Target:   server,
		Cache:    cache,
	}
	if conf.Capture.Enabled {
		opts.AfterReload = captureFn
	}
	scheduler, err := refresh.New(opts)
	if err != nil {
		cancelServe()
		return errors.Join(err, <-serveErr)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	return <-serveErr
}

// captureDefault opens a throwaway session for the default calendar and
// screenshots its static page.
func captureDefault(ctx context.Context, conf *config.Config, server *web.Server, addr string) error {
	id := server.OpenSession(ctx)
	defer server.CloseSession(id)

	var headers map[string]string
	if ba := conf.BasicAuth; ba != nil && ba.Username != "" && ba.Password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(ba.Username + ":" + ba.Password))
		headers = map[string]string{"Authorization": "Basic " + token}
	}

	start := time.Now()
	err := capture.WidgetPNG(ctx, capture.Options{
		URL:        fmt.Sprintf("http://%s/w/%s?static=1", addr, id),
		OutputPath: conf.Capture.Output,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
		Timeout:    time.Duration(conf.Capture.TimeoutSeconds) * time.Second,
		Headers:    headers,
	})
	if err != nil {
		return err
	}
	appLog.Info("preview captured", "output", conf.Capture.Output, "duration", time.Since(start).String())
	return nil
}
