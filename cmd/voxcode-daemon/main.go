package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	cli "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"voxcode/internal/command"
	"voxcode/internal/config"
	"voxcode/internal/delegate"
	"voxcode/internal/host"
	"voxcode/internal/ipc"
	"voxcode/internal/metrics"
	"voxcode/internal/proxy"
	"voxcode/internal/session"
	"voxcode/internal/tts"
	"voxcode/pkg/protocol"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	configPath := cli.StringP("config", "c", "voxcode.yaml", "Config file path")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "", "Log level, overrides config")
	cli.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log.SetDefault(newLogger(cfg.Log))
	log.Info("Booting up", "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("daemon failed", "err", err)
		os.Exit(1)
	}
	log.Info("Shut down")
}

func newLogger(c config.LogConfig) *log.Logger {
	level, ok := logLevelMap[c.Level]
	if !ok {
		level = log.LevelInfo
	}

	if c.Format == "json" {
		return log.New(log.NewJSONHandler(os.Stdout, &log.HandlerOptions{Level: level}))
	}
	return log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}

func run(ctx context.Context, cfg *config.Config) error {
	link, err := protocol.NewProtocol(ctx, protocol.Config{
		URL:     cfg.Host.URL,
		Reconn:  cfg.Host.ReconnectDuration(),
		Timeout: cfg.Host.CallTimeoutDuration(),
	})
	if err != nil {
		return fmt.Errorf("host link: %w", err)
	}
	defer link.Close()
	log.Debug("Connected to host", "url", cfg.Host.URL)

	editor := host.NewEditor(link)
	notifier := host.NewNotifier(link, cfg.UI.StatusMessages())

	extra, err := command.LoadFile(cfg.Commands.File, editor)
	if err != nil {
		return err
	}
	table := command.Build(editor, cfg.Commands.BuiltinsEnabled(), extra)
	log.Debug("Loaded commands", "count", table.Len(), "custom", len(extra))

	backend, err := newBackend(cfg.Delegate, link)
	if err != nil {
		return err
	}
	del := delegate.New(backend, delegate.Config{Timeout: cfg.Delegate.TimeoutDuration()},
		log.Default().With("component", "delegate"))

	recognizer, closeRecognizer := newRecognizer(cfg, link, notifier)
	defer closeRecognizer()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs := metrics.New(reg)

	sess := session.New(session.Config{QueueSize: cfg.Session.QueueSize}, table, del, session.Ports{
		Recognizer: recognizer,
		Speaker:    newSpeaker(cfg.Speech, link),
		Notifier:   notifier,
		Observer:   obs,
	}, log.Default().With("component", "session", "session", uuid.NewString()))

	log.Info("Boot up - successful")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return link.Run(gctx) })
	g.Go(func() error { return sess.Run(gctx) })
	g.Go(func() error { return ipc.Serve(gctx, cfg.Control.Socket, ipc.SessionHandler(sess)) })
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Addr, reg) })
	}

	if cfg.Session.Autostart {
		if err := sess.Start(gctx); err != nil {
			log.Error("autostart failed", "err", err)
		}
	}

	err = g.Wait()
	_ = sess.Stop()
	return err
}

func newBackend(cfg config.DelegateConfig, link *protocol.Protocol) (delegate.Backend, error) {
	switch cfg.Backend {
	case "openai":
		httpClient, err := proxy.NewHTTPClient(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("proxy %s: %w", cfg.Proxy, err)
		}
		return delegate.NewOpenAI(delegate.OpenAIConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: httpClient,
		}, log.Default().With("component", "openai")), nil
	case "host":
		return host.NewAssistant(link), nil
	default:
		return delegate.Disabled{}, nil
	}
}

func newSpeaker(cfg config.SpeechConfig, link *protocol.Protocol) session.Speaker {
	if cfg.Output == "espeak" {
		return tts.NewEspeak(cfg.Language, cfg.Rate)
	}
	return host.NewSpeaker(link, host.Voice{Lang: cfg.Language, Rate: cfg.Rate, Pitch: cfg.Pitch})
}
