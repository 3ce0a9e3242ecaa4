package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/wallet-sentinel/sentinel/cmd/sentinel/startup"
	"github.com/wallet-sentinel/sentinel/pkg/config"
	"github.com/wallet-sentinel/sentinel/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("loading configuration: " + err.Error())
	}

	l := logging.New(cfg.LogLevel)
	l.Info("wallet sentinel starting", map[string]interface{}{"env": cfg.NodeEnv})

	app, err := startup.InitializeApplication(cfg, l)
	if err != nil {
		l.Fatal("initializing application", err)
	}

	if err := app.Start(); err != nil {
		l.Fatal("starting application", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	l.Info("shutdown signal received", map[string]interface{}{"signal": sig.String()})

	if err := app.Stop(); err != nil {
		l.Error("application stop error", err)
		os.Exit(1)
	}

	l.Info("wallet sentinel stopped cleanly", nil)
}
