package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pegvault/pegvault/internal/audit"
	"github.com/pegvault/pegvault/internal/config"
	"github.com/pegvault/pegvault/internal/events"
	"github.com/pegvault/pegvault/internal/handler"
	"github.com/pegvault/pegvault/internal/middleware"
	"github.com/pegvault/pegvault/internal/model"
	"github.com/pegvault/pegvault/internal/pkg/apperrors"
	"github.com/pegvault/pegvault/internal/pkg/logger"
	"github.com/pegvault/pegvault/internal/repository"
	"github.com/pegvault/pegvault/internal/signer"
	"github.com/pegvault/pegvault/internal/treasury"
	"github.com/pegvault/pegvault/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)

	// Persistence. Postgres and Redis are both optional; the server
	// degrades to in-memory state for local development.
	var (
		stateStore treasury.StateStore = repository.NewMemoryStateStore()
		loanStores []treasury.LoanStore
		loanLister handler.LoanLister
		auditRepo  audit.Repo
		idemStore  middleware.IdempotencyStore = middleware.NewInMemIdempotencyStore()
	)

	if cfg.Database.DSN != "" {
		db, err := repository.NewDB(cfg)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL, running without durable storage", "error", err)
		} else {
			logger.Info("Connected to PostgreSQL")
			stateStore = repository.NewPostgresStateStore(db)
			loanRepo := repository.NewPostgresLoanRepo(db)
			loanStores = append(loanStores, loanRepo)
			loanLister = loanRepo
			auditRepo = repository.NewPostgresAuditRepo(db)

			go runLoanRetention(loanRepo, cfg)
		}
	}

	if cfg.Redis.Addr != "" {
		rdb, err := repository.NewRedisClient(cfg)
		if err != nil {
			logger.Error("Failed to connect to Redis, running without cache", "error", err)
		} else {
			logger.Info("Connected to Redis")
			ttl := time.Duration(cfg.Redis.ConfigTTLSeconds) * time.Second
			stateStore = repository.NewCachedStateStore(stateStore, rdb, ttl)

			redisLoans := repository.NewRedisLoanStore(rdb, cfg.Redis.LoanListKey, cfg.Redis.LoanListMax)
			loanStores = append(loanStores, redisLoans)
			loanLister = redisLoans

			idemTTL := time.Duration(cfg.Redis.IdempotencyTTLSecs) * time.Second
			idemStore = repository.NewRedisIdempotencyStore(rdb, idemTTL)
		}
	}

	if len(loanStores) == 0 {
		mem := repository.NewMemoryLoanStore(cfg.Redis.LoanListMax)
		loanStores = append(loanStores, mem)
		loanLister = mem
	}

	auditSvc, err := audit.NewService("./logs", auditRepo)
	if err != nil {
		log.Fatalf("Failed to initialize audit service: %v", err)
	}

	// Upstream collaborators. The pool address doubles as the spender
	// bound into transfer grants, so prefer the persisted value over
	// the bootstrap config.
	poolAddr, err := model.ParseAddress(cfg.Treasury.Pool)
	if err != nil {
		log.Fatalf("Invalid treasury.pool address: %v", err)
	}
	asset, err := model.ParseAddress(cfg.Treasury.Asset)
	if err != nil {
		log.Fatalf("Invalid treasury.asset address: %v", err)
	}
	if persisted, err := stateStore.Load(context.Background()); err == nil && persisted != nil {
		poolAddr = persisted.Pool
		asset = persisted.Asset
	}

	timeout := time.Duration(cfg.Upstreams.TimeoutMs) * time.Millisecond
	callbackTO := time.Duration(cfg.Upstreams.CallbackTOMs) * time.Millisecond

	hub := events.NewHub()

	svc, err := treasury.New(context.Background(), treasury.Deps{
		Store:    stateStore,
		Loans:    repository.NewMultiLoanStore(loanStores...),
		Pool:     upstream.NewPoolClient(cfg.Upstreams.PoolURL, poolAddr, timeout),
		Issuer:   upstream.NewIssuerClient(cfg.Upstreams.IssuerURL, asset, timeout),
		Borrower: upstream.NewBorrowerClient(cfg.Upstreams.BorrowerURL, callbackTO),
		Verifier: signer.NewVerifier(time.Duration(cfg.Auth.ProofTTLSeconds) * time.Second),
		Events:   hub,
	})
	if err != nil {
		log.Fatalf("Failed to initialize treasury service: %v", err)
	}

	if cfg.Treasury.AutoInitialize {
		if err := autoInitialize(svc, cfg); err != nil {
			log.Fatalf("Auto-initialize failed: %v", err)
		}
	}

	treasuryHandler := handler.NewTreasuryHandler(svc)
	supplyHandler := handler.NewSupplyHandler(svc)
	flashLoanHandler := handler.NewFlashLoanHandler(svc)
	loansHandler := handler.NewLoansHandler(loanLister, hub)
	auditHandler := handler.NewAuditHandler(auditSvc)

	r := gin.Default()

	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware(auditSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "pegvault"})
	})

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(cfg.Auth.QPS, cfg.Auth.Burst))
	v1.Use(middleware.IdempotencyMiddleware(idemStore))
	{
		v1.POST("/treasury/initialize", treasuryHandler.Initialize)
		v1.POST("/treasury/admin", treasuryHandler.SetAdmin)
		v1.POST("/treasury/borrower", treasuryHandler.SetBorrower)
		v1.POST("/treasury/loan-fee", treasuryHandler.SetLoanFee)
		v1.GET("/treasury/config", treasuryHandler.GetConfig)
		v1.GET("/treasury/supply", treasuryHandler.GetSupply)
		v1.POST("/supply/increase", supplyHandler.Increase)
		v1.POST("/supply/decrease", supplyHandler.Decrease)
		v1.POST("/flashloan", flashLoanHandler.Execute)
		v1.GET("/loans", loansHandler.List)
		v1.GET("/events/ws", loansHandler.Stream)
		v1.GET("/audit", auditHandler.List)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("PegVault started", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.Close()
	auditSvc.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	logger.Info("Server exiting")
}

// autoInitialize bootstraps the treasury from config on first start.
// An already-initialized treasury is left untouched.
func autoInitialize(svc *treasury.Service, cfg *config.Config) error {
	if _, err := svc.Config(); err == nil {
		return nil
	} else if !apperrors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	var p treasury.InitializeParams
	var err error
	if p.Address, err = model.ParseAddress(cfg.Treasury.Address); err != nil {
		return err
	}
	if p.Admin, err = model.ParseAddress(cfg.Treasury.Admin); err != nil {
		return err
	}
	if p.Asset, err = model.ParseAddress(cfg.Treasury.Asset); err != nil {
		return err
	}
	if p.CollateralAsset, err = model.ParseAddress(cfg.Treasury.CollateralAsset); err != nil {
		return err
	}
	if p.Pool, err = model.ParseAddress(cfg.Treasury.Pool); err != nil {
		return err
	}
	if p.Exchange, err = model.ParseAddress(cfg.Treasury.Exchange); err != nil {
		return err
	}
	if p.Borrower, err = model.ParseAddress(cfg.Treasury.Borrower); err != nil {
		return err
	}
	if p.LoanFee, err = model.ParseAmount(cfg.Treasury.LoanFee); err != nil {
		return err
	}

	logger.Info("Auto-initializing treasury from config", "admin", p.Admin.Hex())
	return svc.Initialize(context.Background(), p)
}

// runLoanRetention prunes old loan rows on an interval.
func runLoanRetention(repo *repository.PostgresLoanRepo, cfg *config.Config) {
	interval := time.Duration(cfg.Database.CleanupIntervalMin) * time.Minute
	if interval <= 0 {
		return
	}
	retention := time.Duration(cfg.Database.LoanRetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		n, err := repo.Cleanup(ctx, time.Now().Add(-retention))
		cancel()
		if err != nil {
			logger.Warn("loan retention cleanup failed", "error", err)
			continue
		}
		if n > 0 {
			logger.Info("pruned old loan records", "deleted", n)
		}
	}
}
