// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ocgully/construct/internal/api"
	"github.com/ocgully/construct/internal/auth"
	"github.com/ocgully/construct/internal/chat"
	"github.com/ocgully/construct/internal/config"
	"github.com/ocgully/construct/internal/configwatch"
	"github.com/ocgully/construct/internal/newsfeed"
	"github.com/ocgully/construct/internal/node"
	"github.com/ocgully/construct/internal/service"
	"github.com/ocgully/construct/internal/session"
	"github.com/ocgully/construct/internal/store"
	"github.com/ocgully/construct/internal/timeaccount"
)

var version = "0.1"

// builtinServices maps a configured service id to the factory that
// builds it. Empty today; doors are added here as they're built.
var builtinServices = map[string]service.Factory{}

func main() {
	var (
		configPath  string
		host        string
		port        int
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "WebSocket server host (overrides config)")
	flag.IntVar(&port, "port", 0, "WebSocket server port (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("construct %s\n", version)
		os.Exit(0)
	}

	loader := config.NewLoader()
	if configPath == "" {
		found, err := loader.FindConfig()
		if err != nil {
			log.Fatalf("construct: %v", err)
		}
		configPath = found
	}

	ctx := context.Background()
	cfg, err := loader.LoadWithDefaults(ctx, configPath)
	if err != nil {
		log.Fatalf("construct: %v", err)
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	log.Printf("construct: using config %s", configPath)

	if err := run(ctx, cfg, configPath); err != nil {
		log.Fatalf("construct: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, configPath string) error {
	st, err := store.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	registry, err := buildRegistry(cfg.Services)
	if err != nil {
		return fmt.Errorf("build service registry: %w", err)
	}

	shared := &session.Shared{
		Store:      st,
		Nodes:      node.New(cfg.Nodes.Count),
		Chat:       chat.New(cfg.Chat.BufferSize),
		Registry:   registry,
		Config:     cfg,
		Policies:   buildPolicies(cfg.Levels),
		Limiter:    auth.NewLimiter(cfg.Auth.LockoutMaxAttempts, parseDurationOr(cfg.Auth.LockoutWindow, 15*time.Minute)),
		HashParams: auth.PolicyParams(cfg.Auth.ArgonMemoryKiB, cfg.Auth.ArgonIterations, cfg.Auth.ArgonParallelism),
		Now:        time.Now,
	}

	sweepInterval := parseDurationOr(cfg.Storage.SweepInterval, 5*time.Minute)
	sweeper := store.NewSweeper(st, sweepInterval)
	sweeper.Start()
	defer sweeper.Close()

	poller := newsfeed.NewPoller(cfg.News, 15*time.Minute)
	poller.Start()
	defer poller.Close()
	shared.News = poller

	var watcher *configwatch.Watcher
	if w, werr := configwatch.Start(configPath); werr != nil {
		log.Printf("construct: config watcher disabled: %v", werr)
	} else {
		watcher = w
		defer watcher.Close()
	}

	handler := api.NewHandler(api.Dependencies{Shared: shared, Version: version})
	router := api.NewRouter(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: router}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Printf("construct: listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("construct: received %v, shutting down", sig)
	case <-gctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	handler.Shutdown(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("construct: server shutdown: %v", err)
	}

	return group.Wait()
}

func buildRegistry(configured []config.ServiceConfig) (*service.Registry, error) {
	var entries []service.Metadata
	factories := make(map[string]service.Factory)

	for _, sc := range configured {
		factory, ok := builtinServices[sc.ID]
		if !ok {
			log.Printf("construct: service %q is configured but not built yet, skipping", sc.ID)
			continue
		}
		entries = append(entries, service.Metadata{
			ID:       sc.ID,
			Name:     sc.Name,
			MinLevel: int(store.ParseLevel(sc.MinLevel)),
			Enabled:  sc.IsEnabled(),
		})
		factories[sc.ID] = factory
	}

	return service.NewRegistry(entries, factories)
}

func buildPolicies(levels []config.LevelConfig) map[store.Level]timeaccount.Policy {
	policies := make(map[store.Level]timeaccount.Policy, len(levels))
	for _, lvl := range levels {
		policies[store.ParseLevel(lvl.Name)] = timeaccount.Policy{
			DailyMinutesMax: lvl.DailyMinutes,
			BankCap:         lvl.BankCap,
		}
	}
	return policies
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
