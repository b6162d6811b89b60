package main

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediguard/mediguard/backend/alerting"
	"github.com/mediguard/mediguard/backend/catalog"
	"github.com/mediguard/mediguard/backend/scoring"
	"github.com/mediguard/mediguard/backend/simulator"
	"github.com/mediguard/mediguard/backend/store"
)

func main() {
	cfg := LoadConfig()

	// Catalog: fatal when configured but unreadable, optional otherwise
	// (streams then synthesize plausible rows).
	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		var err error
		cat, err = catalog.Load(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("Failed to load catalog: %v", err)
		}
		log.Printf("Loaded catalog with %d rows, %d manufacturers", cat.Len(), len(cat.Manufacturers()))
	} else {
		log.Printf("No catalog configured, streams will synthesize rows")
	}

	// Scorer: model-backed when the artifact loads, heuristic otherwise.
	// Never fatal.
	scorer := scoring.Load(cfg.ModelPath, cfg.ReferenceDate, cfg.Generator.Seed)

	// Alert store backend.
	var alerts store.AlertStore
	switch cfg.AlertBackend {
	case "postgres":
		pg, err := store.NewPostgresStore(context.Background(), cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres alert store: %v", err)
		}
		defer pg.Close()
		alerts = pg
		log.Printf("Using Postgres alert store")
	case "redis":
		rd, err := store.NewRedisStore(cfg.RedisAddr, "", 0)
		if err != nil {
			log.Fatalf("Failed to connect to Redis alert store at %s: %v", cfg.RedisAddr, err)
		}
		defer rd.Close()
		alerts = rd
		log.Printf("Using Redis alert store at %s", cfg.RedisAddr)
	default:
		alerts = store.NewMemoryStore()
		log.Printf("Using in-memory alert store (ephemeral)")
	}

	ctx := context.Background()

	hub := NewHub()
	go hub.Run(ctx)

	gen := simulator.NewGenerator(cfg.Generator, scorer, cfg.ReferenceDate)
	evaluator := alerting.NewEvaluator(alerts, cat, hub)
	supervisor := simulator.NewSupervisor(gen, hub, evaluator, cat)
	defer supervisor.StopAll()

	api := NewAPI(cat, scorer, supervisor, evaluator, alerts, hub, cfg.ReferenceDate)

	http.HandleFunc("/health", api.handleHealth)
	http.HandleFunc("/predict", api.handlePredict)
	http.HandleFunc("/streams", api.handleStreams)
	http.HandleFunc("/streams/", api.handleStreamByID)
	http.HandleFunc("/alerts", api.handleAlerts)
	http.HandleFunc("/highrisk", api.handleHighRisk)
	http.HandleFunc("/schema", api.handleSchema)
	http.HandleFunc("/ws", api.handleWebSocket)
	http.Handle("/metrics", promhttp.Handler())

	handler := corsMiddleware(http.DefaultServeMux)

	log.Printf("MediGuard backend listening on %s", cfg.ListenAddr)
	log.Fatal(http.ListenAndServe(cfg.ListenAddr, handler))
}
