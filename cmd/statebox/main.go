package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/tailored-agentic-units/statebox/config"
	"github.com/tailored-agentic-units/statebox/observability"
	"github.com/tailored-agentic-units/statebox/rpc"
	"github.com/tailored-agentic-units/statebox/snapshot"
	"github.com/tailored-agentic-units/statebox/store"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to statebox config JSON file")
		serve      = flag.Bool("serve", false, "Serve the demo store over Connect")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
		subtree    = flag.String("subtree", "", "Subtree to dispatch to")
		action     = flag.String("action", "", "Action to dispatch")
		param      = flag.String("param", "", "Action parameter as JSON")
		wait       = flag.Duration("wait", 10*time.Second, "How long to wait for the dispatch chain to complete")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if !*serve && (*subtree == "" || *action == "") {
		fmt.Fprintln(os.Stderr, "Usage: statebox -serve | statebox -subtree <name> -action <name> [-param <json>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	level, err := cfg.Level()
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	if *verbose {
		level = observability.LevelVerbose
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level.SlogLevel(),
	}))
	slog.SetDefault(logger)
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	s, err := store.New(&cfg.Store, demoMutators(), store.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *serve {
		if err := runServer(ctx, s, cfg, logger); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	var p any
	if *param != "" {
		if err := json.Unmarshal([]byte(*param), &p); err != nil {
			log.Fatalf("Invalid -param JSON: %v", err)
		}
	}

	done := make(chan struct{})
	if err := s.Dispatch(*subtree, *action, p, func() { close(done) }); err != nil {
		log.Fatalf("Dispatch failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(*wait):
		log.Fatalf("%s.%s did not complete within %s", *subtree, *action, *wait)
	case <-ctx.Done():
		log.Fatalf("Interrupted while waiting for %s.%s", *subtree, *action)
	}

	out, err := snapshot.MarshalJSON(s.Snapshot())
	if err != nil {
		log.Fatalf("Failed to render state: %v", err)
	}
	fmt.Println(string(out))
}

func runServer(ctx context.Context, s *store.Store, cfg *config.Config, logger *slog.Logger) error {
	obs, err := observability.Resolve(cfg.Store.Observers...)
	if err != nil {
		return err
	}

	svc := rpc.NewService(s, cfg.Server, rpc.WithObserver(obs))
	path, handler := svc.Handler()

	mux := http.NewServeMux()
	mux.Handle(path, handler)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("serving store", "addr", cfg.Server.Addr, "subtrees", s.Subtrees())

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
