package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"glimpse"
	"glimpse/internal/config"
	"glimpse/internal/logging"
	"glimpse/internal/probe"
)

var (
	dbPath       = flag.String("db", "", "Path to database (overrides GLIMPSE_DB)")
	addr         = flag.String("addr", "", "Listen address (overrides GLIMPSE_ADDR)")
	pollinations = flag.String("pollinations", "", "Address of a pollinations-style text server")
	openAI       = flag.Bool("openai", false, "Use an OpenAI-compatible provider (see OPENAI_* env vars)")
	dev          = flag.Bool("dev", false, "Console logging for local development")
)

func main() {
	flag.Parse()

	logger, err := logging.New(*dev)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalw("load config", "error", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *pollinations != "" {
		cfg.PollinationsServer = *pollinations
	}

	gio := glimpse.InitOptions{
		OpenAI:        *openAI,
		OpenAIKey:     cfg.OpenAIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
		HttpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	if !*openAI {
		gio.PollinationsServer = cfg.PollinationsServer
		gio.PollinationsModel = cfg.PollinationsModel
	}

	g, err := glimpse.Init(gio)
	if err != nil {
		logger.Fatalw("init provider", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	db, err := glimpse.NewDB(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatalw("open database", "path", cfg.DBPath, "error", err)
	}
	defer db.Close()

	responder := glimpse.NewResponder(g.Describer, probe.NewCache(cfg.ProbeTTL), cfg.MaxContextTurns)
	srv := NewServer(responder, g.Describer, db, cfg, logger)

	go func() {
		<-ctx.Done()
		logger.Infow("shutting down")
		sdctx, sdcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer sdcancel()
		srv.Shutdown(sdctx)
	}()

	logger.Infow("starting server",
		"addr", cfg.Addr,
		"provider", g.Name(),
		"model", g.Model(),
		"image_budget_kb", cfg.ImageBudgetKB)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalw("server", "error", err)
	}
}
