package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"

	"github.com/smschat/server/internal/auth"
	"github.com/smschat/server/internal/cache"
	"github.com/smschat/server/internal/config"
	"github.com/smschat/server/internal/db"
	httphandler "github.com/smschat/server/internal/http"
	"github.com/smschat/server/internal/http/handlers"
	"github.com/smschat/server/internal/repo"
	"github.com/smschat/server/internal/sms"
	"github.com/smschat/server/internal/twilio"

	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	userRepo := repo.NewUserRepo(database)
	messageRepo := repo.NewMessageRepo(database)

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	authService := auth.NewService(jwtService, userRepo)

	if cfg.SeedUsers {
		if err := authService.SeedDefaultUsers(ctx); err != nil {
			log.Fatalf("Failed to seed default users: %v", err)
		}
		log.Printf("Seeded default users")
	}

	if !cfg.Twilio.Configured() {
		log.Printf("WARNING: Twilio not fully configured. SMS delivery will fail.")
	}
	gateway := twilio.NewClient(cfg.Twilio)

	messageCache := newMessageCache(cfg.Redis)
	smsService := sms.NewService(messageRepo, gateway, messageCache, cfg.Twilio.Configured())

	authHandler := handlers.NewAuthHandler(authService)
	messagesHandler := handlers.NewMessagesHandler(smsService)
	webhookHandler := handlers.NewWebhookHandler(smsService)
	healthHandler := handlers.NewHealthHandler(database, cfg.Twilio.Configured())

	router := httphandler.NewRouter(authHandler, messagesHandler, webhookHandler, healthHandler, jwtService)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// newMessageCache returns the Redis-backed cache when configured, otherwise a
// no-op cache.
func newMessageCache(cfg config.RedisConfig) cache.MessageCache {
	if !cfg.Enabled {
		return cache.NewNoop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	log.Printf("Message cache enabled (redis %s)", cfg.Addr)
	return cache.NewRedisCache(rdb, cfg.TTL)
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the module root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
