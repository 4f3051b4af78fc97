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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/northwind-commerce/cart-service/internal/auth"
	"github.com/northwind-commerce/cart-service/internal/config"
	"github.com/northwind-commerce/cart-service/internal/httpapi"
	"github.com/northwind-commerce/cart-service/internal/repository"
	"github.com/northwind-commerce/cart-service/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()

	directPool, err := repository.Connect(ctx, cfg.Database.DirectURL)
	if err != nil {
		log.Fatalf("failed to connect to direct database endpoint: %v", err)
	}
	defer directPool.Close()

	if err := repository.RunMigrations(cfg.Database.DirectURL, cfg.Database.MigrationsDir); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	pooledPool := directPool
	if cfg.Database.URL != cfg.Database.DirectURL {
		pooledPool, err = repository.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("failed to connect to pooled database endpoint: %v", err)
		}
		defer pooledPool.Close()
	}

	// Both repositories share one probe so the snapshot-column check
	// runs at most once per process.
	probe := repository.NewSchemaProbe()
	directRepo := repository.NewCart(directPool, probe)
	pooledRepo := repository.NewCart(pooledPool, probe)
	directCatalog := repository.NewCatalog(directPool)
	pooledCatalog := repository.NewCatalog(pooledPool)

	cartService := service.NewCartService(directRepo, pooledRepo, directCatalog, pooledCatalog)
	sessions := auth.NewTokenResolver(cfg.Auth.JWTSecret)
	cartHandler := httpapi.NewCartHandler(cartService, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(httpapi.SessionMiddleware(sessions))
		cartHandler.Routes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("cart service starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
}
