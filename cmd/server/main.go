package main

import (
	"os"
	"os/signal"
	"syscall"

	"sage/config"
	"sage/internal/mediator"

	"github.com/TypeTerrors/gonfig"
	"github.com/charmbracelet/log"
)

func main() {

	cfg, err := gonfig.Load[config.Config](
		gonfig.WithConfigFile("config/config.yaml"),
		gonfig.WithDotenv(".env"), // ignored if missing
		gonfig.WithStrict(),       // fail if ${VAR} has no value/default
	)
	if err != nil {
		log.Fatal(err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", "err", err)
	}

	app, err := mediator.NewApp(cfg)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		if err := app.Start(); err != nil {
			log.Fatal("server stopped", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	app.Shutdown()
}
