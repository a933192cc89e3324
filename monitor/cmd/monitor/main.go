package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Krimson/eda-forensics/internal/logging"
	"github.com/Krimson/eda-forensics/internal/profile"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
	"github.com/Krimson/eda-forensics/monitor/internal/config"
	"github.com/Krimson/eda-forensics/monitor/internal/health"
	"github.com/Krimson/eda-forensics/monitor/internal/relay"
	"github.com/Krimson/eda-forensics/monitor/internal/session"
	"github.com/Krimson/eda-forensics/monitor/internal/telemetry"
	"github.com/Krimson/eda-forensics/monitor/internal/websocket"

	_ "github.com/Krimson/eda-forensics/monitor/docs" // Swagger docs
)

// @title EDA Forensic Monitor API
// @version 1.0
// @description Живая станция EDA телеметрии: рукопожатие, защелкивание матрицы, досье и ретранслятор канала.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http

func main() {
	// .env необязателен
	_ = godotenv.Load()

	cfg := config.Load()
	logFile := logging.Setup(cfg.LogFile)
	defer logFile.Close()

	log.Printf("[INFO] Starting EDA monitor...")
	log.Printf("[INFO] Configuration loaded: http_port=%s grpc_port=%s source=%s",
		cfg.HTTPPort, cfg.GRPCPort, cfg.SourceKind)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Профиль ядра, при PROFILE_WATCH перечитывается на лету
	var managerRef atomic.Pointer[session.Manager]
	currentProfile := profile.Default
	if cfg.WatchProfile && cfg.ProfilePath != "" {
		watcher, err := profile.Watch(cfg.ProfilePath, func(p *profile.Profile) {
			if m := managerRef.Load(); m != nil {
				m.ApplyProfile(p)
			}
		})
		if err != nil {
			log.Fatalf("[FATAL] Failed to watch profile: %v", err)
		}
		currentProfile = watcher.Current
	} else {
		prof, err := profile.Load(cfg.ProfilePath)
		if err != nil {
			log.Fatalf("[FATAL] Failed to load profile: %v", err)
		}
		currentProfile = func() *profile.Profile { return prof.Clone() }
	}
	prof := currentProfile()
	log.Printf("[INFO] Profile: backend=%s node=%s latch=%s", prof.MLBackend, prof.StationNode, prof.MatrixUpdateInterval)

	// Redis: кэш сессий и ретранслятор канала
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	memory := session.NewMemoryStore()
	var cache session.CacheStore = memory
	var relayStore relay.Store = relay.NewMemoryStore()
	redisReady := false

	pingCtx, pingCancel := context.WithTimeout(rootCtx, 3*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Printf("[WARN] Redis unavailable at %s, using in-memory cache and relay: %v", cfg.RedisAddr, err)
	} else {
		cache = session.NewRedisStore(redisClient)
		relayStore = relay.NewRedisStore(redisClient, cfg.RelayKey, 0)
		redisReady = true
		log.Printf("[INFO] Connected to Redis at %s", cfg.RedisAddr)
	}
	pingCancel()

	// PostgreSQL: досье сохраненных сессий
	var repository session.Repository = memory
	var storePinger health.Pinger = memory
	if pg, err := connectPostgres(rootCtx, cfg.PostgresDSN); err != nil {
		log.Printf("[WARN] PostgreSQL unavailable, dossiers kept in memory: %v", err)
	} else {
		defer pg.Close()
		repository = pg
		storePinger = pg
		log.Printf("[INFO] Connected to PostgreSQL")
	}

	backend := reconstruct.NewClient(prof.MLBackend, cfg.MLTimeout)
	hub := websocket.NewHub()

	sourceKind := cfg.SourceKind
	if sourceKind == "redis" && !redisReady {
		log.Printf("[WARN] Redis source requested without Redis, polling local relay over HTTP")
		sourceKind = "relay"
	}

	manager := session.NewManager(session.ManagerConfig{
		Backend:        backend,
		Logger:         backend,
		Publisher:      hub,
		Cache:          cache,
		Repository:     repository,
		Profile:        currentProfile,
		Source:         newSourceFactory(sourceKind, cfg, redisClient, currentProfile),
		QueueDepth:     cfg.QueueDepth,
		MLTimeout:      cfg.MLTimeout,
		SessionDataTTL: cfg.SessionDataTTL,
	})
	managerRef.Store(manager)

	// HTTP API
	router := mux.NewRouter()
	relay.NewHandler(relayStore).RegisterRoutes(router)
	session.NewHTTPHandler(manager, backend).RegisterRoutes(router)
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		sent, dropped := hub.GetStats()
		stats := map[string]interface{}{
			"active_sessions": manager.ActiveCount(),
			"ws_clients":      hub.ClientCount(),
			"ws_sent":         sent,
			"ws_dropped":      dropped,
			"timestamp":       time.Now().Format(time.RFC3339),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	}).Methods(http.MethodGet)
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      enableCORS(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC health
	grpcServer := grpc.NewServer()
	healthServer := health.NewHealthServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	address := fmt.Sprintf(":%s", cfg.GRPCPort)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		log.Fatalf("[FATAL] Failed to listen on %s: %v", address, err)
	}

	healthServer.SetServingStatus("")
	healthServer.SetServingStatus(health.ServiceMonitor)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-shutdownChan:
			log.Printf("[INFO] Received signal %v, starting graceful shutdown...", sig)
			cancel()
		case <-rootCtx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		healthServer.Probe(gctx, health.ServiceBackend, backend, cfg.BackendProbeInterval)
		return nil
	})
	g.Go(func() error {
		healthServer.Probe(gctx, health.ServiceStore, storePinger, cfg.BackendProbeInterval)
		return nil
	})
	g.Go(func() error {
		log.Printf("[INFO] HTTP server listening on :%s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Printf("[INFO] gRPC server listening on %s", address)
		if err := grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		healthServer.SetNotServingStatus("")
		healthServer.SetNotServingStatus(health.ServiceMonitor)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] HTTP server forced to shutdown: %v", err)
		}

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			log.Printf("[WARN] Graceful shutdown timeout, forcing stop")
			grpcServer.Stop()
		}

		manager.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("[ERROR] Server error: %v", err)
	}
	log.Printf("[INFO] Server stopped")
}

// connectPostgres открывает пул и создает схему досье
func connectPostgres(ctx context.Context, dsn string) (*session.PostgresRepository, error) {
	repo, err := session.NewPostgresRepositoryFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

// newSourceFactory выбирает источник пакетов для каждой станции
func newSourceFactory(kind string, cfg *config.Config, client *redis.Client, current func() *profile.Profile) session.SourceFactory {
	return func(st *session.Station) (telemetry.Source, time.Duration) {
		prof := current()
		timeout := prof.PollingRate * 4

		switch kind {
		case "simulated":
			return telemetry.NewSimulatedSource(st.Code, prof.BaseBaseline, prof.StationNode, time.Now().UnixNano()), prof.SimulatedPollingRate
		case "redis":
			return telemetry.NewRedisSource(client, cfg.RelayKey), prof.PollingRate
		case "relay":
			return telemetry.NewHTTPSource(fmt.Sprintf("http://localhost:%s/telemetry.json", cfg.HTTPPort), timeout), prof.PollingRate
		default:
			return telemetry.NewHTTPSource(prof.UplinkEndpoint, timeout), prof.PollingRate
		}
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(w, r)
	})
}
