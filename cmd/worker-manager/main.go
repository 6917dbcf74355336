// cmd/worker-manager/main.go
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"entitlement-workers/internal/billing"
	"entitlement-workers/internal/common/auth"
	"entitlement-workers/internal/common/aws"
	"entitlement-workers/internal/common/camunda"
	"entitlement-workers/internal/common/config"
	"entitlement-workers/internal/common/database"
	"entitlement-workers/internal/common/logger"
	"entitlement-workers/internal/common/observability"
	"entitlement-workers/internal/entitlement"
	"entitlement-workers/internal/grant"
	"entitlement-workers/internal/notify"
	"entitlement-workers/internal/store/audit"
	"entitlement-workers/internal/store/mirror"
	"entitlement-workers/internal/store/promo"
	"entitlement-workers/internal/store/tiercache"
	"entitlement-workers/internal/store/wallet"
	"entitlement-workers/pkg/catalog"

	// Exchange Workers (3)
	ec "entitlement-workers/internal/workers/exchange/exchange-coins"
	rpc "entitlement-workers/internal/workers/exchange/redeem-promo-code"
	rrr "entitlement-workers/internal/workers/exchange/redeem-referral-reward"

	// Subscription Workers (3)
	lo "entitlement-workers/internal/workers/subscription/logout-session"
	rp "entitlement-workers/internal/workers/subscription/restore-purchases"
	ss "entitlement-workers/internal/workers/subscription/sync-subscription"
)

// registrable is the surface every worker handler exposes.
type registrable interface {
	Register() error
	Close()
	GetTaskType() string
}

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
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("worker-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Camunda Client with retry ---
	var camundaClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		camundaClient, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Camunda client initialization")

	if err != nil {
		zapLog.Fatal("camunda client failed after retries", zap.Error(err))
	}
	zapLog.Info("Camunda client connected successfully")

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

	// --- Init External Service Clients ---
	keycloak := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
	)

	billingClient := billing.NewClient(
		cfg.Billing.BaseURL,
		cfg.Billing.APIKey,
		config.GetDuration(cfg.Billing.Timeout),
	)

	grantClient := grant.NewClient(
		cfg.Grant.BaseURL,
		keycloak,
		config.GetDuration(cfg.Grant.Timeout),
		cfg.Grant.MaxRetries,
		log,
	)

	zapLog.Info("All external service clients initialized")

	// --- Assemble Domain Services ---
	tierCache := tiercache.New(redis.Client)
	mirrorStore := mirror.New(redis.Client, log)
	walletStore := wallet.New(pg.DB)
	promoStore := promo.New(pg.DB)
	auditSink := audit.New(esClient.Client, cfg.Database.Elasticsearch.AuditIndex, log)

	manager := entitlement.NewManager(
		billingClient,
		tierCache,
		mirrorStore,
		time.Duration(cfg.Subscription.FreshnessWindow)*time.Second,
		log,
	)
	defer manager.Close()

	exchanger := entitlement.NewExchanger(walletStore, grantClient, manager, auditSink, log)

	offerCatalog, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		zapLog.Fatal("offer catalog load failed", zap.Error(err), zap.String("path", cfg.Catalog.Path))
	}
	zapLog.Info("Offer catalog loaded", zap.String("version", offerCatalog.Version), zap.Int("offers", len(offerCatalog.Offers)))

	// Notification channels are optional. A missing AWS setup degrades to
	// log-only delivery inside the notifier.
	var emailSender notify.EmailSender
	var smsSender notify.SMSSender
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Warn("SES client init failed, email notifications disabled", zap.Error(err))
		} else {
			emailSender = sesClient
		}
	}
	if cfg.Notifications.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Warn("SNS client init failed, sms notifications disabled", zap.Error(err))
		} else {
			smsSender = snsClient
		}
	}
	notifier := notify.New(
		emailSender,
		smsSender,
		cfg.Notifications.Email.FromEmail,
		cfg.Notifications.SMS.DefaultSMSSenderID,
		log,
	)

	// --- Register ALL 6 Workers ---
	var handlers []registrable

	// Subscription Workers (3)
	syncHandler, err := ss.NewHandler(ss.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Logger:    log,
		Service:   manager,
	})
	if err != nil {
		zapLog.Fatal("failed to create sync-subscription handler", zap.Error(err))
	}
	handlers = append(handlers, syncHandler)

	restoreHandler, err := rp.NewHandler(rp.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Logger:    log,
		Service:   manager,
	})
	if err != nil {
		zapLog.Fatal("failed to create restore-purchases handler", zap.Error(err))
	}
	handlers = append(handlers, restoreHandler)

	logoutHandler, err := lo.NewHandler(lo.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Logger:    log,
		Sessions:  manager,
	})
	if err != nil {
		zapLog.Fatal("failed to create logout-session handler", zap.Error(err))
	}
	handlers = append(handlers, logoutHandler)

	// Exchange Workers (3)
	coinsHandler, err := ec.NewHandler(ec.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Logger:    log,
		Catalog:   offerCatalog,
		Exchanger: exchanger,
		Notifier:  notifier,
	})
	if err != nil {
		zapLog.Fatal("failed to create exchange-coins handler", zap.Error(err))
	}
	handlers = append(handlers, coinsHandler)

	promoHandler, err := rpc.NewHandler(rpc.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Logger:    log,
		Promo:     promoStore,
		Exchanger: exchanger,
	})
	if err != nil {
		zapLog.Fatal("failed to create redeem-promo-code handler", zap.Error(err))
	}
	handlers = append(handlers, promoHandler)

	referralHandler, err := rrr.NewHandler(rrr.HandlerOptions{
		AppConfig: cfg,
		Camunda:   camundaClient,
		Logger:    log,
		Exchanger: exchanger,
		Wallet:    walletStore,
	})
	if err != nil {
		zapLog.Fatal("failed to create redeem-referral-reward handler", zap.Error(err))
	}
	handlers = append(handlers, referralHandler)

	for _, h := range handlers {
		if err := h.Register(); err != nil {
			zapLog.Fatal("worker registration failed", zap.Error(err), zap.String("taskType", h.GetTaskType()))
		}
	}
	zapLog.Info("All 6 workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
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
			if err := camundaClient.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, h := range handlers {
		h.Close()
	}

	if err := camundaClient.Close(); err != nil {
		zapLog.Error("Error closing Camunda client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
