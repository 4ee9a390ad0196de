package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	chainadp "polar-bridge-relayer/internal/adapter/chain"
	httpadp "polar-bridge-relayer/internal/adapter/http"
	appmw "polar-bridge-relayer/internal/adapter/middleware"
	oracleadp "polar-bridge-relayer/internal/adapter/oracle"
	"polar-bridge-relayer/internal/adapter/repository/mysql"
	"polar-bridge-relayer/internal/config"
	chainDomain "polar-bridge-relayer/internal/domain/chain"
	loanDomain "polar-bridge-relayer/internal/domain/loan"
	"polar-bridge-relayer/internal/domain/settlement"
	"polar-bridge-relayer/internal/infrastructure/cache"
	"polar-bridge-relayer/internal/infrastructure/db"
	"polar-bridge-relayer/internal/scheduler"
	loanuc "polar-bridge-relayer/internal/usecase/loan"
	settlementuc "polar-bridge-relayer/internal/usecase/settlement"
	"polar-bridge-relayer/internal/watcher"
)

// coingeckoIDs maps asset symbols to CoinGecko ids for the price source.
var coingeckoIDs = map[string]string{
	"XLM": "stellar",
	"PAS": "polkadot",
	"DOT": "polkadot",
	"BTC": "bitcoin",
	"ETH": "ethereum",
}

func openStore(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DBDriver == "sqlite" {
		return db.OpenSQLite(cfg.SQLitePath)
	}
	return db.OpenGorm(cfg.MySQLDSN())
}

func main() {
	_ = godotenv.Load() // optional .env for local runs
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb, err := openStore(cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	if err := gdb.AutoMigrate(
		&loanDomain.Loan{},
		&loanDomain.AccrualCheckpoint{},
		&loanDomain.LiquidationEvent{},
		&settlement.Record{},
		&settlement.Credit{},
		&chainDomain.Cursor{},
	); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	// price oracle: coingecko behind a TTL cache with redis fallback
	gecko := oracleadp.NewCoinGecko(cfg.QuoteCurrency, coingeckoIDs)
	prices := oracleadp.NewCached(gecko, cfg.PriceCacheTTL, rdb)

	// chain adapters: in-process ledgers; RPC-backed clients slot in here
	source := chainadp.NewMemory(cfg.SourceChain)
	dest := chainadp.NewMemory(cfg.DestChain)

	loansRepo := mysql.NewLoanRepository(gdb)
	settleRepo := mysql.NewSettlementRepository(gdb)
	checkpointRepo := mysql.NewCheckpointRepository(gdb)
	cursorRepo := mysql.NewCursorRepository(gdb)
	unit := mysql.NewGormUoW(gdb)

	ledger := loanuc.NewUsecase(cfg, unit, loansRepo, settleRepo, prices)
	dispatcher := settlementuc.NewDispatcher(cfg, settleRepo, ledger, prices, source, dest)
	ledger.SetReleaser(dispatcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	dispatcher.SetBaseContext(ctx)

	// background loops
	go watcher.New(source, cursorRepo, dispatcher, settleRepo, cfg.PollInterval, cfg.WatcherBatchSize).Run(ctx)
	go watcher.New(dest, cursorRepo, dispatcher, settleRepo, cfg.PollInterval, cfg.WatcherBatchSize).Run(ctx)
	go scheduler.NewAccrual(loansRepo, checkpointRepo, ledger, cfg.AccrualInterval).Run(ctx)
	go scheduler.NewScanner(cfg, loansRepo, ledger, prices).Run(ctx)
	go dispatcher.Run(ctx, 10*time.Second)

	// HTTP surface
	h := httpadp.NewHandler()
	lh := httpadp.NewLoanHandler(ledger)
	lendH := httpadp.NewLendingHandler(cfg, ledger)
	sh := httpadp.NewSettlementHandler(settleRepo, dispatcher)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover())

	e.GET("/health", h.Health)

	api := e.Group("/api", appmw.IdempotencyMiddleware(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second))
	api.POST("/loans", lh.Originate)
	api.GET("/loans/:loan_id", lh.Get)
	api.POST("/loans/:loan_id/repay", lh.Repay)
	api.POST("/loans/:loan_id/collateral", lh.AddCollateral)
	api.GET("/loans/:loan_id/liquidations", lh.LiquidationEvents)
	api.GET("/borrowers/:address/loans", lh.ListByBorrower)
	api.GET("/borrowers/:address/summary", lh.Summary)
	api.POST("/lending/preview", lendH.Preview)
	api.GET("/lending/config", lendH.Config)
	api.GET("/settlements/:source_event_id", sh.Get)
	api.POST("/settlements/:source_event_id/requeue", sh.Requeue)

	go func() {
		addr := ":" + cfg.AppPort
		log.Printf("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	dispatcher.Wait()
	log.Printf("bye")
}
