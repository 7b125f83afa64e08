package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/HSouheill/herbreserve_backend/config"
	"github.com/HSouheill/herbreserve_backend/controllers"
	"github.com/HSouheill/herbreserve_backend/middleware"
	"github.com/HSouheill/herbreserve_backend/repositories"
	"github.com/HSouheill/herbreserve_backend/routes"
	"github.com/HSouheill/herbreserve_backend/services"
	"github.com/HSouheill/herbreserve_backend/utils"
	"github.com/HSouheill/herbreserve_backend/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := config.NewLogger(cfg.LogLevel)

	clock, err := utils.NewDayClock(cfg.Profit.Timezone)
	if err != nil {
		log.WithError(err).Fatal("invalid PROFIT_TIMEZONE")
	}
	schedule, err := services.ParseSchedule(cfg.Profit.Schedule)
	if err != nil {
		log.WithError(err).Fatal("invalid DAILY_PROFIT_CRON")
	}

	// Connect to database
	client := config.ConnectDB(cfg, log)
	db := client.Database(cfg.DBName)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	investmentRepo := repositories.NewInvestmentRepository(db)
	planRepo := repositories.NewPlanRepository(db)
	incomeRepo := repositories.NewIncomeRepository(db)
	executionRepo := repositories.NewCronExecutionRepository(db)
	activationRepo := repositories.NewTradeActivationRepository(db)

	var tx services.TxRunner = services.DirectTx{}
	if cfg.MongoTransactions {
		tx = repositories.NewMongoTxRunner(client)
	}

	var lock services.RunLock = services.NoopRunLock{}
	redisClient := config.ConnectRedis(cfg.Redis, log)
	if redisClient != nil {
		lock = services.NewRedisRunLock(redisClient)
		defer redisClient.Close()
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()

	sinks := services.MultiSink{wsHub}
	if cfg.SMTP.AlertsEnabled() {
		sinks = append(sinks, services.NewMailAlerter(services.MailConfig{
			Host: cfg.SMTP.Host,
			Port: cfg.SMTP.Port,
			User: cfg.SMTP.User,
			Pass: cfg.SMTP.Pass,
			From: cfg.SMTP.From,
			To:   cfg.SMTP.AlertEmail,
		}, log))
	}

	engine := services.NewProfitEngine(services.ProfitEngineDeps{
		Users:           userRepo,
		Investments:     investmentRepo,
		Plans:           planRepo,
		Incomes:         incomeRepo,
		Activations:     activationRepo,
		Executions:      executionRepo,
		Tx:              tx,
		Lock:            lock,
		Events:          sinks,
		Clock:           clock,
		Log:             log,
		StaleAfter:      cfg.Profit.StaleAfter,
		ResetActivation: cfg.Profit.ResetActivation,
	})

	fatal := func(err error) {
		log.WithError(err).Fatal("daily profit batch could not run")
	}

	// Replay a missed run before the scheduler takes over.
	recovery := services.NewRecovery(engine, engine.Tracker(), schedule, clock, log)
	if _, err := recovery.Check(context.Background()); err != nil {
		fatal(err)
	}

	scheduler := services.NewScheduler(engine, schedule, clock, log, fatal)
	scheduler.Start()

	activationService := services.NewActivationService(userRepo, activationRepo, clock, log)

	// Create a new Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = controllers.NewCustomValidator()

	rateLimiter := middleware.NewRateLimiter()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for now := range ticker.C {
			rateLimiter.Cleanup(now)
		}
	}()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS(cfg.CORSOrigins))
	e.Use(echoMiddleware.Secure())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeaders())

	routes.SetupRoutes(e, client, cfg.JWTSecret, routes.Controllers{
		Cron:       controllers.NewCronController(executionRepo, activationRepo, engine, clock, log),
		Activation: controllers.NewActivationController(activationService, wsHub, log),
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	scheduler.Stop(ctx)
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
	if err := client.Disconnect(ctx); err != nil {
		log.WithError(err).Error("MongoDB disconnect failed")
	}
}
