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

	"github.com/redis/go-redis/v9"

	"github.com/AliNMackie/cofound-platform/internal/application"
	appjobs "github.com/AliNMackie/cofound-platform/internal/application/jobs"
	"github.com/AliNMackie/cofound-platform/internal/config"
	domainauth "github.com/AliNMackie/cofound-platform/internal/domain/auth"
	"github.com/AliNMackie/cofound-platform/internal/domain/firewall"
	domain "github.com/AliNMackie/cofound-platform/internal/domain/jobs"
	aiopenai "github.com/AliNMackie/cofound-platform/internal/infra/ai/openai"
	"github.com/AliNMackie/cofound-platform/internal/infra/auth/devkeys"
	"github.com/AliNMackie/cofound-platform/internal/infra/auth/oidc"
	mysqlp "github.com/AliNMackie/cofound-platform/internal/infra/db/mysql"
	postgresp "github.com/AliNMackie/cofound-platform/internal/infra/db/postgres"
	"github.com/AliNMackie/cofound-platform/internal/infra/httpserver"
	"github.com/AliNMackie/cofound-platform/internal/infra/queue/redisq"
	"github.com/AliNMackie/cofound-platform/internal/infra/queue/tasks"
	minioStore "github.com/AliNMackie/cofound-platform/internal/infra/storage"
	"github.com/AliNMackie/cofound-platform/internal/middleware"
	"github.com/AliNMackie/cofound-platform/internal/tenantstore"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database
	var (
		db   *sql.DB
		repo domain.Repository
	)
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("mysql schema error: %v", err)
		}
		repo = mysqlp.NewJobRepository(db)
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		if err := postgresp.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("postgres schema error: %v", err)
		}
		repo = postgresp.NewJobRepository(db)
	default:
		log.Fatalf("unknown database driver %q", cfg.Database.Driver)
	}
	defer db.Close()

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	stores := tenantstore.New(repo, store)

	// init verifier
	var verifier domainauth.Verifier
	if cfg.Auth.DevMode {
		log.Println("auth: dev-mode static keys enabled")
		verifier = devkeys.New(cfg.Auth.DevKeys, cfg.Auth.DevDeliveryKey)
	} else {
		verifier, err = oidc.NewVerifier(ctx, oidc.Config{
			UserIssuer:             cfg.Auth.Issuer,
			UserAudience:           cfg.Auth.Audience,
			DeliveryIssuer:         cfg.Queue.Issuer,
			DeliveryAudience:       cfg.Queue.Audience,
			DeliveryServiceAccount: cfg.Queue.ServiceAccount,
		})
		if err != nil {
			log.Fatalf("oidc init error: %v", err)
		}
	}

	// init AI client: one client serves both the analyzer and the
	// firewall's intent classifier.
	ai := aiopenai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.ClassifierModel)
	pipeline := firewall.NewPipeline(ai, cfg.Firewall.BlockThreshold)

	// init service
	svc := &appjobs.Service{
		Stores:         stores,
		Firewall:       pipeline,
		Analyzer:       ai,
		Clock:          application.SystemClock{},
		MaxInputBytes:  cfg.Firewall.MaxInputBytes,
		MaxAttempts:    cfg.Jobs.MaxAttempts,
		AnalyzeTimeout: cfg.AnalyzeTimeout(),
	}

	// init dispatch queue
	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"storage":  middleware.CheckerFunc(store.Check),
	}
	switch cfg.Queue.Kind {
	case "tasks":
		svc.Queue = tasks.NewClient(
			cfg.Queue.Endpoint,
			cfg.Queue.Name,
			cfg.Queue.CallbackURL,
			cfg.Queue.ServiceAccount,
			cfg.Queue.Audience,
		)
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
		})
		disp := redisq.New(rdb, cfg.Queue.Name, processHandler{svc: svc}, 0, 0)
		svc.Queue = disp
		health["queue"] = middleware.CheckerFunc(disp.Check)
		go disp.Run(ctx)
	default:
		log.Fatalf("unknown queue kind %q", cfg.Queue.Kind)
	}

	// init router
	handler := httpserver.NewRouter(svc, verifier, httpserver.Options{
		CORSOrigins: []string{"*"},
		Health:      health,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// processHandler adapts the application service to the in-process queue
// consumer. Only retryable failures propagate; anything else acknowledges so
// the queue does not spin on a permanent error.
type processHandler struct {
	svc *appjobs.Service
}

func (h processHandler) Deliver(ctx context.Context, ref domain.Ref) error {
	job, err := h.svc.Process(ctx, ref)
	if err != nil {
		if domain.Retryable(err) || firewall.Retryable(err) {
			return err
		}
		log.Printf("process: job=%s dropped: %v", ref.JobID, err)
		return nil
	}
	switch job.State {
	case domain.StateCompleted:
		middleware.IncrementJobsCompleted()
	case domain.StateBlocked:
		middleware.IncrementJobsBlocked()
		middleware.IncrementFirewallBlocks()
	case domain.StateFailed:
		middleware.IncrementJobsFailed()
	}
	return nil
}
