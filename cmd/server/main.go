package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/technosupport/ts-signal/internal/alerts"
	"github.com/technosupport/ts-signal/internal/api"
	"github.com/technosupport/ts-signal/internal/auth"
	"github.com/technosupport/ts-signal/internal/broker"
	"github.com/technosupport/ts-signal/internal/metrics"
	"github.com/technosupport/ts-signal/internal/session"
)

const serviceName = "TS-Signal"

type config struct {
	Server struct {
		Port      string `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
	} `yaml:"server"`
	Auth struct {
		SessionTTLHours      int    `yaml:"session_ttl_hours"`
		SweepIntervalMinutes int    `yaml:"sweep_interval_minutes"`
		UsersFile            string `yaml:"users_file"`
	} `yaml:"auth"`
	Broker struct {
		AuthDeadlineSeconds int `yaml:"auth_deadline_seconds"`
	} `yaml:"broker"`
	Alerts struct {
		NatsSubject     string `yaml:"nats_subject"`
		PublishRetryMax int    `yaml:"publish_retry_max"`
		DedupTTLSeconds int    `yaml:"dedup_ttl_seconds"`
		DedupMaxKeys    int    `yaml:"dedup_max_keys"`
	} `yaml:"alerts"`
}

func loadConfig() config {
	var cfg config
	// Defaults
	cfg.Server.Port = "3000"
	cfg.Server.StaticDir = "public"
	cfg.Auth.SessionTTLHours = 24
	cfg.Auth.SweepIntervalMinutes = 60
	cfg.Broker.AuthDeadlineSeconds = 10
	cfg.Alerts.NatsSubject = "signal.motion"
	cfg.Alerts.PublishRetryMax = 3
	cfg.Alerts.DedupTTLSeconds = 30
	cfg.Alerts.DedupMaxKeys = 1024

	data, err := os.ReadFile("config/default.yaml")
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Printf("Config parse error, using defaults: %v", err)
		}
	}

	// Env overrides
	if p := os.Getenv("PORT"); p != "" {
		cfg.Server.Port = p
	}
	if d := os.Getenv("STATIC_DIR"); d != "" {
		cfg.Server.StaticDir = d
	}
	if f := os.Getenv("USERS_FILE"); f != "" {
		cfg.Auth.UsersFile = f
	}
	return cfg
}

func main() {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. User directory
	directory := auth.NewDirectory()
	if cfg.Auth.UsersFile != "" {
		if err := directory.LoadFile(cfg.Auth.UsersFile); err != nil {
			log.Fatalf("User file load error: %v", err)
		}
		directory.StartWatcher(ctx, cfg.Auth.UsersFile)
	} else if loaded := directory.LoadFromEnv(); loaded == 0 {
		directory.LoadDefaults()
	}
	log.Printf("Loaded %d users", directory.Size())

	// 2. Session store (redis when configured, volatile otherwise)
	var sessions session.Store
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Redis ping error: %v", err)
		}
		sessions = session.NewRedisStore(rdb)
		log.Printf("Sessions: redis at %s", redisAddr)
	} else {
		mem := session.NewMemoryStore()
		mem.StartSweeper(ctx, time.Duration(cfg.Auth.SweepIntervalMinutes)*time.Minute)
		sessions = mem
	}

	// 3. Metrics
	collector := metrics.NewCollector(func() int {
		return sessions.Count(context.Background())
	})

	// 4. Optional NATS motion publisher
	var motionSink broker.MotionPublisher
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		nc, err := nats.Connect(natsURL, nats.Name(serviceName))
		if err != nil {
			log.Printf("Warning: NATS connect failed: %v. Motion publishing disabled.", err)
		} else {
			defer nc.Close()
			dedup := alerts.NewDedup(cfg.Alerts.DedupMaxKeys, time.Duration(cfg.Alerts.DedupTTLSeconds)*time.Second)
			motionSink = alerts.NewPublisher(nc, cfg.Alerts.NatsSubject, cfg.Alerts.PublishRetryMax, dedup)
			log.Printf("Alerts: publishing motion events to %s", cfg.Alerts.NatsSubject)
		}
	}

	// 5. Broker
	b := broker.New(sessions, broker.Config{
		AuthDeadline: time.Duration(cfg.Broker.AuthDeadlineSeconds) * time.Second,
		Metrics:      collector,
		Alerts:       motionSink,
	})

	// 6. Handlers
	authHandler := &api.AuthHandler{
		Directory: directory,
		Sessions:  sessions,
		TTL:       time.Duration(cfg.Auth.SessionTTLHours) * time.Hour,
	}
	healthHandler := &api.HealthHandler{Broker: b, Sessions: sessions}
	wsHandler := api.NewWSHandler(b)

	// 7. Routing
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Post("/api/login", authHandler.Login)
	r.Post("/api/logout", authHandler.Logout)
	r.Get("/ping", healthHandler.Ping)
	r.Handle("/metrics", collector.Handler())
	r.Get("/ws", wsHandler.ServeWS)

	if info, err := os.Stat(cfg.Server.StaticDir); err == nil && info.IsDir() {
		r.Handle("/*", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	}

	// 8. Serve
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Printf("%s listening on :%s", serviceName, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown error: %v", err)
	}
	log.Printf("Server stopped")
}
