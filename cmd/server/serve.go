package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/iliyamo/lanparty/internal/config"
	"github.com/iliyamo/lanparty/internal/database"
	"github.com/iliyamo/lanparty/internal/handler"
	"github.com/iliyamo/lanparty/internal/middleware"
	"github.com/iliyamo/lanparty/internal/payment"
	"github.com/iliyamo/lanparty/internal/repository"
	"github.com/iliyamo/lanparty/internal/router"
	"github.com/iliyamo/lanparty/internal/service"
	"github.com/iliyamo/lanparty/internal/settlement"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	serveCmd.Flags().Bool("skip-migrate", false, "Do not create missing tables on startup")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API.  MySQL and MongoDB are required.  Redis enables the
response cache and rate limiter; without it both are skipped.  RabbitMQ
is used for settlement and consumption events when QUEUE_ENABLED is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing MySQL tables and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger := newLogger()
		db, err := openMySQL(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info("schema up to date")
		return nil
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	skipMigrate, _ := cmd.Flags().GetBool("skip-migrate")

	cfg := config.Load()
	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openMySQL(ctx, cfg, !skipMigrate)
	if err != nil {
		return err
	}
	defer db.Close()

	mcfg := config.LoadMongoConfig()
	mongoClient, err := database.OpenMongo(ctx, mcfg.URI, mcfg.Timeout)
	if err != nil {
		return err
	}
	defer disconnectMongo(mongoClient, logger)
	settlements := repository.NewSettlementStore(mongoClient, mcfg.Database, mcfg.Collection)
	if err := settlements.EnsureIndexes(ctx); err != nil {
		return err
	}

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb, logger)

	var (
		settlementPub  settlement.Publisher
		consumptionPub handler.ConsumptionPublisher
	)
	if qcfg := config.LoadQueueConfig(); qcfg.Enabled {
		pub := service.NewPublisher(qcfg.URL, logger)
		settlementPub, consumptionPub = pub, pub
	} else {
		logger.Info("queue disabled; domain events are not published")
	}

	events := repository.NewEventRepo(db)
	guests := repository.NewGuestRepo(db)
	products := repository.NewProductRepo(db)
	consumption := repository.NewConsumptionRepo(db)
	tips := repository.NewTipRepo(db)
	hardware := repository.NewHardwareRepo(db)
	seats := repository.NewSeatRepo(db)

	costs := service.NewCostService(events, guests, consumption, hardware, tips)
	bank := config.LoadBankConfig()
	qr := payment.NewClient(bank.QRBaseURL, bank.QRTimeout, logger)
	settleSvc := settlement.NewService(settlements, costs, settlementPub, bank.Account, bank.QRBaseURL, logger)

	h := router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), logger),
		Events:      handler.NewEventHandler(events, guests, products, consumption, logger),
		Consumption: handler.NewConsumptionHandler(consumption, cache, consumptionPub, logger),
		Costs:       handler.NewCostsHandler(costs, settleSvc, logger),
		Tips:        handler.NewTipHandler(tips, costs, settleSvc, cache, logger),
		Settlements: handler.NewSettlementHandler(settleSvc, costs, qr, cache, logger),
		Hardware:    handler.NewHardwareHandler(hardware, cache, logger),
		Seats:       handler.NewSeatHandler(seats, events, cache, logger),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	var public []echo.MiddlewareFunc
	if rdb != nil {
		public = append(public, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger))
	}
	public = append(public, cache.Middleware())

	checks := map[string]handler.ReadyCheck{
		"mysql": db.PingContext,
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) },
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	router.RegisterRoutes(e, checks)
	router.RegisterAuth(e, h.Auth, cfg.JWTSecret)
	router.RegisterPublic(e, h, public...)
	router.RegisterAdmin(e, h, cfg.JWTSecret, cache.Middleware())

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openMySQL(ctx context.Context, cfg config.Config, migrate bool) (*sql.DB, error) {
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, err
	}
	if migrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := database.Migrate(mctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func disconnectMongo(client *mongo.Client, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.WithError(err).Warn("mongo disconnect")
	}
}
