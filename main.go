package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stationdesk/casedesk-backend/internal/auth"
	"github.com/stationdesk/casedesk-backend/internal/casework"
	"github.com/stationdesk/casedesk-backend/internal/config"
	"github.com/stationdesk/casedesk-backend/internal/db"
	"github.com/stationdesk/casedesk-backend/internal/middleware"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close(gdb)

	if err := casework.Migrate(gdb); err != nil {
		log.Fatalf("casework init: %v", err)
	}
	if err := auth.Migrate(gdb); err != nil {
		log.Fatalf("auth init: %v", err)
	}

	store := casework.NewGormStore(gdb)
	opts := []casework.Option{casework.WithTimeout(cfg.AssignTimeout)}

	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("redis ping %s: %v", cfg.RedisAddr, err)
		}
		opts = append(opts, casework.WithLocker(casework.NewRedisLocker(rdb, cfg.LockTTL)))
		log.Printf("[casework] officer locks enabled via redis at %s", cfg.RedisAddr)
	}

	svc := casework.NewService(store, opts...)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Get("/", RootHandler)

	r.Mount("/auth", auth.SetupRoutes(auth.NewHandler(gdb, cfg.SessionTTL, cfg.SecureCookies)))

	apiMiddleware := []func(http.Handler) http.Handler{
		middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware,
	}
	if cfg.RequireAuth {
		apiMiddleware = append(apiMiddleware, middleware.SessionMiddleware(auth.SessionInfo{DB: gdb}))
	}
	r.Mount("/api", casework.SetupRoutes(casework.NewHandler(svc, store), apiMiddleware...))

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on port :%s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("Server stopped")
}
