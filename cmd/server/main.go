package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/featureflags"
	"github.com/laala/laala-api/internal/handler"
	"github.com/laala/laala-api/internal/infrastructure/logger"
	"github.com/laala/laala-api/internal/infrastructure/redis"
	"github.com/laala/laala-api/internal/notify"
	"github.com/laala/laala-api/internal/observability/tracing"
	"github.com/laala/laala-api/internal/reliability/circuitbreaker"
	"github.com/laala/laala-api/internal/repository"
	"github.com/laala/laala-api/internal/repository/memory"
	"github.com/laala/laala-api/internal/security"
	"github.com/laala/laala-api/internal/security/audit"
	"github.com/laala/laala-api/internal/security/auth"
	"github.com/laala/laala-api/internal/security/ratelimit"
	"github.com/laala/laala-api/internal/service"
	"github.com/laala/laala-api/internal/worker"
	"github.com/laala/laala-api/pkg/config"
	"github.com/laala/laala-api/pkg/database"
)

// stores is the set of repositories backing the services.
type stores struct {
	users         domain.UserRepository
	coManagers    domain.CoManagerRepository
	requests      domain.AccountRequestRepository
	documents     domain.DocumentRepository
	notifications domain.NotificationRepository
	audit         domain.AuditRepository
	outbox        domain.OutboxRepository
	tx            domain.TxRunner
	checks        map[string]handler.Pinger
	close         func() error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "laala-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting La-a-La API",
		slog.String("environment", cfg.Environment),
		slog.String("store", cfg.StoreDriver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, "laala-api", cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("failed to flush traces", slog.String("error", err.Error()))
		}
	}()

	// 2. Storage
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	// 3. Public rate limiting: Redis when configured, in-process otherwise
	var (
		publicLimiter ratelimit.Counter
		localLimiter  *ratelimit.Limiter
	)
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return err
		}
		defer rdb.Close()
		publicLimiter = ratelimit.NewFixedWindow(rdb, cfg.RateLimit.PublicLimit, cfg.RateLimit.PublicWindow)
		st.checks["redis"] = rdb
	} else {
		localLimiter = ratelimit.NewLimiter(cfg.RateLimit.PublicLimit, cfg.RateLimit.PublicWindow)
		publicLimiter = localLimiter
	}
	actorLimiter := ratelimit.NewActorLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// 4. Token verification
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	var verifier auth.Verifier = tokens
	if cfg.Auth.OIDCEnabled() {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuerURL, cfg.Auth.OIDCAudience)
		if err != nil {
			return err
		}
		verifier = auth.ChainVerifier{tokens, oidcVerifier}
		log.Info("oidc verification enabled", slog.String("issuer", cfg.Auth.OIDCIssuerURL))
	}

	// 5. Email delivery
	var mailer notify.Mailer = notify.NewLogMailer(log)
	if cfg.SMTP.Host != "" {
		breaker := circuitbreaker.NewCircuitBreaker(5, 1, cfg.Outbox.BreakerTimeout)
		breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
			log.Warn("smtp circuit breaker state changed",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
		smtpMailer := notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
		mailer = notify.NewBreakerMailer(smtpMailer, breaker)
	}

	// 6. Services
	composer := notify.NewComposer(cfg.DashboardURL)
	notifications := service.NewNotificationService(st.notifications, log)
	authSvc := service.NewAuthService(st.users, st.coManagers, tokens, notifications, log)
	svc := handler.Services{
		Auth: authSvc,
		Requests: service.NewAccountRequestService(service.AccountRequestDeps{
			Requests:      st.requests,
			Users:         st.users,
			CoManagers:    st.coManagers,
			Outbox:        st.outbox,
			Tx:            st.tx,
			Composer:      composer,
			Auth:          authSvc,
			Notifications: notifications,
		}, log),
		CoManagers: service.NewCoManagerService(st.coManagers, st.users, st.requests, st.outbox, st.tx, composer, notifications, log),
		Documents: service.NewDocumentService(st.documents, map[domain.Resource]string{
			domain.ResourceLaalas:         cfg.Collections.Laalas,
			domain.ResourceContenus:       cfg.Collections.Contenus,
			domain.ResourceCommunications: cfg.Collections.Messages,
			domain.ResourceCampaigns:      cfg.Collections.Campaigns,
		}, cfg.Collections.Retraits, log),
		Profiles:      service.NewProfileService(st.users, log),
		Notifications: notifications,
	}

	// 7. HTTP stack
	router := handler.NewRouter(handler.RouterConfig{
		Gate:          security.NewGate(verifier, security.NewResolver(st.coManagers, cfg.IsAdminEmail, log), log),
		Audit:         audit.NewLogger(st.audit, log),
		Flags:         featureflags.New(cfg.Features),
		PublicLimiter: publicLimiter,
		ActorLimiter:  actorLimiter,
		CORSOrigins:   cfg.CORSAllowedOrigins,
		Health:        handler.NewHealthHandler(st.checks, log),
	}, svc, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           otelhttp.NewHandler(router, "laala-api"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// 8. Run everything until a signal arrives
	dispatcher := worker.NewDispatcher(st.outbox, mailer, worker.DispatcherConfig{
		Interval:    cfg.Outbox.Interval,
		BatchSize:   cfg.Outbox.BatchSize,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		StaleAfter:  cfg.Outbox.StaleAfter,
	}, log)
	janitor := worker.NewJanitor(st.outbox, st.notifications, cfg.Outbox.SentRetention, cfg.Outbox.ReadRetention, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", slog.Int("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return dispatcher.Start(gctx) })
	g.Go(func() error { return janitor.Start(gctx, cfg.Outbox.JanitorSpec) })
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				actorLimiter.Sweep(10 * time.Minute)
			}
		}
	})
	if localLimiter != nil {
		g.Go(func() error {
			localLimiter.Run(gctx, cfg.RateLimit.PublicWindow)
			return nil
		})
	}

	err = g.Wait()
	log.Info("server stopped")
	return err
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory store: data is lost on restart")
		m := memory.NewStore()
		return &stores{
			users:         m.Users(),
			coManagers:    m.CoManagers(),
			requests:      m.AccountRequests(),
			documents:     m.Documents(),
			notifications: m.Notifications(),
			audit:         m.Audit(),
			outbox:        m.Outbox(),
			tx:            m,
			checks:        map[string]handler.Pinger{},
			close:         func() error { return nil },
		}, nil
	}

	pool, err := database.NewConnectionPool(ctx, &database.Config{URL: cfg.DatabaseURL}, log)
	if err != nil {
		return nil, err
	}
	db := pool.GetDB()
	if err := database.RunMigrations(db); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	c := cfg.Collections
	if err := database.CheckTables(ctx, db, append(c.Tables(), "documents")...); err != nil {
		pool.Close()
		return nil, err
	}

	return &stores{
		users:         repository.NewPostgresUserRepository(db, c.Users, log),
		coManagers:    repository.NewPostgresCoManagerRepository(db, c.CoGestionnaires, log),
		requests:      repository.NewPostgresAccountRequestRepository(db, c.AccountRequests, log),
		documents:     repository.NewPostgresDocumentRepository(db, log),
		notifications: repository.NewPostgresNotificationRepository(db, c.Notifications, log),
		audit:         repository.NewPostgresAuditRepository(db, c.AuditLogs, log),
		outbox:        repository.NewPostgresOutboxRepository(db, c.EmailOutbox, log),
		tx:            repository.NewTxManager(db),
		checks:        map[string]handler.Pinger{"database": handler.PingerFunc(pool.Health)},
		close:         pool.Close,
	}, nil
}
