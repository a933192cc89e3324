package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Krimson/eda-forensics/forge/config"
	"github.com/Krimson/eda-forensics/forge/internal/handler"
	"github.com/Krimson/eda-forensics/forge/internal/repository"
	"github.com/Krimson/eda-forensics/forge/internal/service"
	"github.com/Krimson/eda-forensics/internal/logging"
	"github.com/Krimson/eda-forensics/internal/profile"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
)

// @title EDA Forensic Laboratory API
// @version 1.0
// @description Офлайн-лаборатория: загрузка файла признаков EDA, очистка через ML бэкенд,
// @description полный перебор 127 комбинаций алгоритмов и решение о сохранении.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8081
// @BasePath /
// @schemes http

func main() {
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	logFile := logging.Setup(cfg.LogFile)
	defer logFile.Close()

	prof, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		log.Fatalf("[FATAL] Failed to load profile: %v", err)
	}

	var cacheRepo service.CacheRepository
	var dbRepo service.DBRepository

	if cfg.UseStubs {
		cacheRepo = repository.NewRedisStub(cfg.RedisTTL)
		dbRepo = repository.NewPostgresStub()
		log.Printf("[INFO] Using STUB repositories (Redis & PostgreSQL)")
	} else {
		redisRepo := repository.NewRedisRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisRepo.CheckConnection(ctx)
		cancel()
		if err != nil {
			log.Fatalf("[FATAL] Failed to connect to Redis: %v (set FORGE_USE_STUBS=true to run without it)", err)
		}
		log.Printf("[INFO] Connected to Redis at %s", cfg.RedisAddr)
		cacheRepo = redisRepo

		postgresRepo, err := repository.NewPostgreSQLRepository(cfg.PostgreSQLConnStr)
		if err != nil {
			log.Fatalf("[FATAL] PostgreSQL unavailable: %v", err)
		}
		log.Printf("[INFO] Connected to PostgreSQL")
		dbRepo = postgresRepo
	}
	defer cacheRepo.Close()
	defer dbRepo.Close()

	backend := reconstruct.NewClient(prof.MLBackend, cfg.MLTimeout)
	labService := service.NewLabService(backend, cacheRepo, dbRepo, prof, cfg.MLTimeout)

	mux := http.NewServeMux()
	handler.NewHTTPHandler(labService, cfg.MaxUploadBytes).RegisterRoutes(mux)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      enableCORS(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.MLTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[INFO] Forge laboratory starting on port %s, ML backend %s", cfg.HTTPPort, prof.MLBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("[INFO] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[ERROR] Server forced to shutdown: %v", err)
	}

	log.Printf("[INFO] Server exited gracefully")
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			return
		}

		next.ServeHTTP(w, r)
	})
}
