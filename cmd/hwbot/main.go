package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hwbot/internal/app"
	"hwbot/internal/config"
	"hwbot/pkg/logx"
)

func main() {
	var (
		cfgPath string
		envPath string
	)
	flag.StringVar(&cfgPath, "config", "", "path to config yaml/json (optional)")
	flag.StringVar(&envPath, "env", ".env", "path to a dotenv file loaded before reading the environment")
	flag.Parse()

	log := logx.NewConsole("info").With(logx.String("comp", "main"))

	if err := config.LoadDotEnv(envPath); err != nil {
		log.Error("fatal: dotenv", logx.Err(err))
		os.Exit(1)
	}

	a, err := app.New(cfgPath)
	if err != nil {
		var mc *config.MissingCredentialsError
		if errors.As(err, &mc) {
			log.Error("fatal: required environment variables are not set", logx.Any("missing", mc.Vars))
		} else {
			log.Error("fatal", logx.Err(err))
		}
		os.Exit(1)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := a.Start(context.Background()); err != nil {
		log.Error("fatal start", logx.Err(err))
		os.Exit(1)
	}

	var reason app.StopReason
	select {
	case sig := <-sigs:
		reason = app.StopSIGINT
		if sig == syscall.SIGTERM {
			reason = app.StopSIGTERM
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = a.Stop(ctx, reason)
	if reason == app.StopFatalError {
		log.Error("stopped after fatal error", logx.Err(a.Err()))
		cancel()
		os.Exit(1)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("unclean shutdown", logx.Err(err))
	}
}
