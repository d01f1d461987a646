package mediator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"sage/config"
	"sage/internal/clients/fal"
	"sage/internal/dependencies"
	"sage/internal/services"
	"sage/internal/store"

	"github.com/charmbracelet/log"
)

type App struct {
	api      *services.Api
	rpc      *dependencies.Rpc
	hub      *services.Hub
	sessions *services.SessionManager
	archive  *services.ArchiveService
	cancel   context.CancelFunc
	// settings
	Config *config.Config
}

func NewApp(cfg config.Config) (*App, error) {
	configureLogging(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	aws := dependencies.NewAws()

	key, err := falKey(ctx, cfg.Fal, aws)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("error creating newapp: %w", err)
	}

	saver, err := newSaver(ctx, cfg.Export, aws)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("error creating newapp: %w", err)
	}

	rpc := dependencies.NewRpc(cfg.Rpc.Port)
	hub := services.NewHub()
	tokens := fal.NewTokenClient(key, cfg.Fal.RestUrl, cfg.Fal.App, cfg.Fal.TokenExpirationSec)
	sessions := services.NewSessionManager(hub, services.FalChannels(cfg.Fal, tokens), cfg.Realtime, func(ok bool) {
		rpc.SetServing(dependencies.RealtimeService, ok)
	})
	archive := services.NewArchiveService(ctx, hub, saver, cfg.Export)
	api := services.NewApi(cfg.Api, key, cfg.Realtime.DefaultPrompt, hub, sessions, archive)

	return &App{
		api:      api,
		rpc:      rpc,
		hub:      hub,
		sessions: sessions,
		archive:  archive,
		cancel:   cancel,
		Config:   &cfg,
	}, nil
}

// Start blocks until the HTTP server stops.
func (a *App) Start() error {
	if err := a.rpc.Start(); err != nil {
		return err
	}
	a.archive.Run()

	log.With("component", "app").Info("listening", "port", a.Config.Api.Port)
	return a.api.Start()
}

func (a *App) Shutdown() {
	if a.api != nil {
		if err := a.api.Shutdown(); err != nil {
			log.With("component", "app").Warn("http shutdown", "err", err)
		}
	}
	a.sessions.Shutdown()
	a.hub.Shutdown()
	a.archive.Shutdown()
	a.cancel()
	if a.rpc != nil {
		a.rpc.Close()
	}
}

func configureLogging(cfg config.LogConfig) {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(true)

	if level, err := log.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	} else {
		log.Warn("unknown log level, keeping default", "level", cfg.Level)
	}
	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(log.JSONFormatter)
	}
}

func falKey(ctx context.Context, cfg config.FalConfig, aws *dependencies.Aws) (string, error) {
	if cfg.Key != "" {
		return cfg.Key, nil
	}
	client, err := aws.SSM(ctx)
	if err != nil {
		return "", err
	}
	return dependencies.FetchParameter(ctx, client, cfg.KeyParam)
}

func newSaver(ctx context.Context, cfg config.ExportConfig, aws *dependencies.Aws) (store.Saver, error) {
	switch cfg.Store {
	case "s3":
		client, err := aws.S3(ctx)
		if err != nil {
			return nil, err
		}
		return &store.S3Saver{Client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix}, nil
	default:
		return &store.DirSaver{Dir: cfg.Dir}, nil
	}
}
