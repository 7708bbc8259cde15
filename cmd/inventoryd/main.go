package main

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"StockKeeper/internal/inventory"
	"StockKeeper/internal/operator"
	"StockKeeper/internal/server"
	"StockKeeper/internal/snapshot"
	"StockKeeper/pkg/kit"
)

func main() {
	service := "inventory"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	port := getenv("PORT", "8084")

	jwtSecret := os.Getenv("JWT_SECRET")
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET is required and must be at least 32 chars")
	}

	creds, err := operator.NewCredentials(getenv("OPERATOR_NAME", operator.DefaultName), os.Getenv("OPERATOR_PASSWORD_HASH"))
	if err != nil {
		log.Fatal("OPERATOR_PASSWORD_HASH must be a bcrypt hash", zap.Error(err))
	}

	journalMax, err := strconv.Atoi(getenv("JOURNAL_MAX", "1000"))
	if err != nil {
		log.Fatal("JOURNAL_MAX must be an integer", zap.Error(err))
	}

	backend, err := snapshot.Open(ctx, getenv("INVENTORY_BACKEND", inventory.DefaultPath))
	if err != nil {
		log.Fatal("open snapshot backend failed", zap.Error(err))
	}
	defer func() { _ = backend.Close() }()

	store := inventory.New(log)
	if getenv("LOAD_ON_START", "false") == "true" {
		loadOnStart(ctx, log, store, backend)
	}

	s := &server.Server{
		Log:      log,
		Store:    store,
		Journal:  inventory.NewLines(journalMax),
		Backend:  backend,
		Operator: creds,
		JWT:      operator.NewTokenMaker(jwtSecret),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := server.NewHandler(s, server.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   os.Getenv("METRICS_TOKEN"),
	})

	if err := kit.RunHTTPServer(ctx, ":"+port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}

func loadOnStart(ctx context.Context, log *zap.Logger, store *inventory.Store, backend snapshot.Backend) {
	snap, err := backend.Load(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		log.Info("no snapshot to load, starting empty", zap.Stringer("backend", backend))
		return
	}
	if err != nil {
		log.Fatal("load snapshot failed", zap.Error(err), zap.Stringer("backend", backend))
	}
	if err := store.Restore(snap); err != nil {
		log.Fatal("restore snapshot failed", zap.Error(err))
	}
	log.Info("snapshot loaded", zap.Stringer("backend", backend), zap.Int("items", store.Len()))
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
