package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"redlight-quiz/internal/config"
	"redlight-quiz/internal/domain"
	"redlight-quiz/internal/infra/memory"
	"redlight-quiz/internal/infra/pocketbase"
	pgstore "redlight-quiz/internal/infra/postgres"
	redisinfra "redlight-quiz/internal/infra/redis"
	"redlight-quiz/internal/session"
	"redlight-quiz/internal/store"
	transport "redlight-quiz/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the proctored quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	rs, auth, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}

	cacheTTL := config.ParseDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	loader := store.NewQuestionLoader(rs)
	var questions session.QuestionSource
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		questions = redisinfra.NewQuestionCache(redisClient, loader, cacheTTL)
	} else {
		questions = memory.NewQuestionCache(loader, cacheTTL)
	}

	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		secret = randomSecret()
		log.Printf("auth.jwt_secret not configured; using an ephemeral secret, tokens will not survive restarts")
	}

	duration := config.ParseDuration(cfg.Quiz.Duration, 10*time.Minute)
	pollInterval := config.ParseDuration(cfg.Quiz.PollInterval, 3*time.Second)

	registry := session.NewRegistry()
	wsHandler := transport.NewWSHandler(rs, questions, registry, duration, pollInterval)
	loginHandler := transport.NewLoginHandler(auth, secret)
	adminHandler := transport.NewAdminHandler(rs)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("POST /login", loginHandler)
	mux.Handle("GET /ws", transport.RequireRole(secret, domain.RolePlayer, http.HandlerFunc(wsHandler.ServeWS)))
	mux.Handle("GET /admin/players", transport.RequireRole(secret, domain.RoleAdmin, http.HandlerFunc(adminHandler.ListPlayers)))
	mux.Handle("GET /admin/light", transport.RequireRole(secret, domain.RoleAdmin, http.HandlerFunc(adminHandler.GetLight)))
	mux.Handle("POST /admin/light", transport.RequireRole(secret, domain.RoleAdmin, http.HandlerFunc(adminHandler.SetLight)))
	mux.Handle("POST /admin/players/{id}/reset", transport.RequireRole(secret, domain.RoleAdmin, http.HandlerFunc(adminHandler.ResetPlayer)))
	mux.Handle("POST /admin/players/{id}/disqualify", transport.RequireRole(secret, domain.RoleAdmin, http.HandlerFunc(adminHandler.Disqualify)))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting redlight-quiz on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildStore selects the collaborator-store backend. Explicit backend
// config wins; otherwise the presence of a pocketbase or postgres URL
// decides, falling back to a seeded in-memory store for demos.
func buildStore(ctx context.Context, cfg config.Config) (store.RecordStore, store.Authenticator, error) {
	backend := cfg.Store.Backend
	if backend == "" {
		switch {
		case cfg.Store.URL != "":
			backend = "pocketbase"
		case cfg.Postgres.URL != "":
			backend = "postgres"
		default:
			backend = "memory"
		}
	}

	switch backend {
	case "pocketbase":
		client := pocketbase.New(cfg.Store.URL, cfg.Store.Token)
		return client, client, nil
	case "postgres":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		rs := pgstore.NewRecordStore(pool)
		return rs, store.NewFieldAuthenticator(rs), nil
	case "memory":
		rs := memory.NewRecordStore()
		seedDemoData(ctx, rs)
		return rs, store.NewFieldAuthenticator(rs), nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// seedDemoData loads a minimal player/question set for store-less runs.
func seedDemoData(ctx context.Context, rs store.RecordStore) {
	records := []struct {
		collection string
		fields     store.Fields
	}{
		{store.CollectionPlayers, store.Fields{
			"id": "admin1", "username": "proctor", "email": "admin@example.com",
			"password": "admin", "role": domain.RoleAdmin,
		}},
		{store.CollectionPlayers, store.Fields{
			"id": "player1", "username": "alice", "email": "alice@example.com",
			"password": "alice", "role": domain.RolePlayer,
		}},
		{store.CollectionQuestions, store.Fields{
			"id": "q1", "question": "What is 2 + 2?",
			"options": []string{"3", "4", "5"}, "index": 1,
		}},
		{store.CollectionQuestions, store.Fields{
			"id": "q2", "question": "Which planet is closest to the sun?",
			"options": []string{"Mercury", "Venus", "Mars"}, "index": 0,
		}},
		{store.CollectionQuestions, store.Fields{
			"id": "q3", "question": "How many sides does a hexagon have?",
			"options": []string{"5", "6", "7"}, "index": 1,
		}},
		{store.CollectionState, store.Fields{"light": false}},
	}
	for _, rec := range records {
		if _, err := rs.Create(ctx, rec.collection, rec.fields); err != nil {
			log.Printf("seed %s failed: %v", rec.collection, err)
		}
	}
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(hex.EncodeToString([]byte(time.Now().String())))
	}
	return buf
}
