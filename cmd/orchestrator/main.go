// cmd/orchestrator/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	awsclients "analytics-orchestrator/internal/common/aws"
	"analytics-orchestrator/internal/common/config"
	"analytics-orchestrator/internal/common/database"
	"analytics-orchestrator/internal/common/logger"
	"analytics-orchestrator/internal/common/observability"

	"analytics-orchestrator/internal/capabilities/chat"
	"analytics-orchestrator/internal/capabilities/eventanalysis"
	"analytics-orchestrator/internal/capabilities/eventsearch"
	"analytics-orchestrator/internal/capabilities/help"
	"analytics-orchestrator/internal/capabilities/notify"
	"analytics-orchestrator/internal/capabilities/ticketingdata"
	"analytics-orchestrator/internal/capability"
	"analytics-orchestrator/internal/models"
	"analytics-orchestrator/internal/orchestrator"
	"analytics-orchestrator/internal/resolver"
	"analytics-orchestrator/internal/session"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type queryRequest struct {
	SessionID string       `json:"sessionId,omitempty"`
	TenantID  string       `json:"tenantId"`
	Frame     models.Frame `json:"frame"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting orchestrator...")

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Build the capability registry ---
	registry := capability.NewRegistry()

	mustRegister(zapLog, registry, chat.New(chat.Config{
		BaseURL: cfg.APIs.GenAI.BaseURL,
		APIKey:  cfg.APIs.GenAI.APIKey,
		Timeout: config.GetDuration(cfg.APIs.GenAI.Timeout),
	}, log))

	mustRegister(zapLog, registry, eventanalysis.New(eventanalysis.Config{
		BaseURL: cfg.APIs.GenAI.BaseURL,
		APIKey:  cfg.APIs.GenAI.APIKey,
		Timeout: config.GetDuration(cfg.APIs.GenAI.Timeout),
	}, log))

	mustRegister(zapLog, registry, ticketingdata.New(ticketingdata.Config{
		BaseURL: cfg.APIs.Cube.BaseURL,
		Secret:  cfg.APIs.Cube.Secret,
		Timeout: config.GetDuration(cfg.APIs.Cube.Timeout),
	}, log))

	mustRegister(zapLog, registry, eventsearch.New(eventsearch.Config{
		Index: cfg.Database.Elasticsearch.EventIndex,
	}, esClient.Client, log))

	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		var emailSender notify.EmailSender
		var smsSender notify.SMSSender
		if cfg.Notifications.Email.Enabled {
			sesClient, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("ses client failed", zap.Error(err))
			}
			emailSender = sesClient
		}
		if cfg.Notifications.SMS.Enabled {
			snsClient, err := awsclients.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				zapLog.Fatal("sns client failed", zap.Error(err))
			}
			smsSender = snsClient
		}
		mustRegister(zapLog, registry, notify.New(notify.Config{
			FromEmail: cfg.Notifications.Email.FromEmail,
			SenderID:  cfg.Notifications.SMS.SenderID,
		}, emailSender, smsSender, log))
	}

	mustRegister(zapLog, registry, help.New(registry))

	zapLog.Info("Capability registry built", zap.Strings("capabilities", registry.Names()))

	// --- Wire the engine ---
	entityResolver := resolver.New(
		resolver.NewPostgresStore(pg.DB),
		log,
		resolver.WithThreshold(cfg.Resolver.Threshold),
		resolver.WithCrossTypeDiscount(cfg.Resolver.CrossTypeDiscount),
	)

	oracle := orchestrator.NewHTTPOracle(orchestrator.OracleConfig{
		BaseURL:    cfg.APIs.Oracle.BaseURL,
		APIKey:     cfg.APIs.Oracle.APIKey,
		Timeout:    config.GetDuration(cfg.APIs.Oracle.Timeout),
		MaxRetries: cfg.APIs.Oracle.MaxRetries,
	}, log)

	engine := orchestrator.New(entityResolver, oracle, registry, log,
		orchestrator.WithMaxLoops(cfg.Orchestrator.MaxLoops),
		orchestrator.WithObservability(obs),
	)

	sessions := session.NewStore(
		redis.Client,
		time.Duration(cfg.Orchestrator.SessionResultTTL)*time.Second,
		log,
	)

	// --- HTTP API ---
	http.HandleFunc("/v1/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.TenantID == "" || req.Frame.Query == "" {
			http.Error(w, "tenantId and frame.query are required", http.StatusBadRequest)
			return
		}
		if req.SessionID == "" {
			req.SessionID = uuid.New().String()
		}

		state := models.NewSessionState(req.SessionID, req.TenantID, req.Frame)
		final, runErr := engine.Run(r.Context(), state)

		if err := sessions.Save(context.Background(), state); err != nil {
			log.WithError(err).Warn("session snapshot save failed", map[string]interface{}{
				"sessionId": req.SessionID,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if runErr != nil {
			w.WriteHeader(http.StatusBadGateway)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sessionId": req.SessionID,
			"result":    final,
		})
	})

	http.HandleFunc("/v1/sessions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		sessionID := r.URL.Path[len("/v1/sessions/"):]
		snapshot, err := sessions.Load(r.Context(), sessionID)
		if err == session.ErrNotFound {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "session lookup failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snapshot)
	})

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	http.Handle(cfg.Server.MetricsPath, promhttp.Handler())

	server := &http.Server{Addr: cfg.Server.Address}
	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}

	zapLog.Info("Orchestrator stopped gracefully")
}

func mustRegister(zapLog *zap.Logger, registry *capability.Registry, c capability.Capability) {
	if err := registry.Register(c); err != nil {
		zapLog.Fatal("capability registration failed", zap.Error(err))
	}
}
