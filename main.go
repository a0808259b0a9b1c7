package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"

	"github.com/aamirazhar/phithebot/src/connectors"
	"github.com/aamirazhar/phithebot/src/controller"
	"github.com/aamirazhar/phithebot/src/database"
	"github.com/aamirazhar/phithebot/src/executors"
	"github.com/aamirazhar/phithebot/src/model"
	"github.com/aamirazhar/phithebot/src/pricing"
	"github.com/aamirazhar/phithebot/src/repository"
	"github.com/aamirazhar/phithebot/src/security"
	"github.com/aamirazhar/phithebot/src/server"
	"github.com/aamirazhar/phithebot/src/strategy"
	"github.com/aamirazhar/phithebot/src/symbols"
	"github.com/aamirazhar/phithebot/src/utils"
)

type appConfig struct {
	AppName  string `envconfig:"APP_NAME" default:"phithebot"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`

	// Strategies is a JSON array of strategy configurations. Every
	// named strategy must have a registered signal function.
	Strategies string `envconfig:"STRATEGIES" default:"[]"`

	APIKey            string `envconfig:"KITE_API_KEY"`
	AccessTokenSealed string `envconfig:"KITE_ACCESS_TOKEN_SEALED"`

	EnableTicker bool `envconfig:"ENABLE_TICKER" default:"false"`
}

func getAppConfig() appConfig {
	var config appConfig
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	config := getAppConfig()

	if err := database.InitLedgerDB(); err != nil {
		logger.WithError(err).Fatal("Failed to open ledger database")
	}

	strategies, err := loadStrategies(config)
	if err != nil {
		logger.WithError(err).Fatal("Invalid strategy configuration")
	}

	ledger := repository.NewLedgerRepository()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, cfg := range strategies {
		if err := ledger.EnsureStrategy(ctx, cfg.Name); err != nil {
			logger.WithError(err).Fatal("Failed to initialize ledger slots")
		}
	}

	session, err := newSession(config)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build broker session")
	}

	client := connectors.NewKiteClient(session)
	manager := controller.NewOrderManager(client, ledger)
	policy := pricing.NewPolicy(client)
	resolver := symbols.NewResolver(client, repository.NewInstrumentRepository())

	runners := make([]*strategy.Runner, 0, len(strategies))
	for _, cfg := range strategies {
		fn, err := strategy.Lookup(cfg.Name)
		if err != nil {
			logger.WithError(err).Fatal("Strategy has no signal function")
		}
		runners = append(runners, strategy.NewRunner(cfg, fn, client))
	}

	go server.StartServer(ctx, ledger)

	if config.EnableTicker {
		startTicker(ctx, client, session)
	}

	displayOpenPositions(ctx, client, ledger)

	err = executors.StartLoop(ctx, executors.Deps{
		Manager:    manager,
		Policy:     policy,
		Resolver:   resolver,
		Runners:    runners,
		SignalLogs: repository.NewSignalLogRepository(),
		Session:    client,
	})
	if err != nil {
		logger.WithError(err).Error("trading loop exited with error")
	}

	logger.Info("trading ends for the day")
}

// loadStrategies parses and validates the configured strategies.
func loadStrategies(config appConfig) ([]model.StrategyConfig, error) {
	var strategies []model.StrategyConfig
	if err := json.Unmarshal([]byte(config.Strategies), &strategies); err != nil {
		return nil, fmt.Errorf("parse STRATEGIES: %w", err)
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no strategies configured")
	}

	for i := range strategies {
		if err := strategies[i].Validate(); err != nil {
			return nil, err
		}
		logger.WithFields(logger.Fields{
			"strategy": strategies[i].Name,
			"interval": strategies[i].Interval,
			"security": strategies[i].Security,
		}).Info("strategy configured")
	}

	return strategies, nil
}

// newSession unseals the day's access token acquired by the external
// login flow. The token dies with the trading day.
func newSession(config appConfig) (*connectors.Session, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("KITE_API_KEY not set")
	}

	token, err := security.DecryptString(config.AccessTokenSealed)
	if err != nil {
		return nil, fmt.Errorf("unseal access token: %w", err)
	}

	now := time.Now().In(utils.IST())
	expiry := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, utils.IST())

	return &connectors.Session{
		APIKey:      config.APIKey,
		AccessToken: token,
		IssuedAt:    now,
		Expiry:      expiry,
	}, nil
}

// startTicker subscribes the streaming quote cache to the tracked index.
func startTicker(ctx context.Context, client *connectors.KiteClient, session *connectors.Session) {
	quote, err := client.LTP(ctx, symbols.IndexSymbol())
	if err != nil {
		logger.WithError(err).Warn("could not resolve index token, ticker disabled")
		return
	}

	ticker := connectors.NewTicker(session, []uint32{quote.InstrumentToken})
	go ticker.Run(ctx)
}

// displayOpenPositions logs broker positions and ledger slots at
// startup so an operator can compare both views of the book.
func displayOpenPositions(ctx context.Context, client *connectors.KiteClient, ledger *repository.LedgerRepository) {
	positions, err := client.Positions(ctx)
	if err != nil {
		logger.WithError(err).Warn("could not fetch broker positions at startup")
	}
	for _, p := range positions {
		logger.WithFields(logger.Fields{
			"tradingsymbol": p.TradingSymbol,
			"quantity":      p.Quantity,
			"last_price":    p.LastPrice.String(),
			"pnl":           p.PnL.String(),
		}).Info("open position at broker")
	}

	snaps, err := ledger.All(ctx)
	if err != nil {
		logger.WithError(err).Warn("could not read ledger at startup")
		return
	}
	for _, s := range snaps {
		if s.IsEmpty() {
			continue
		}
		logger.WithFields(logger.Fields{
			"strategy":      s.Strategy,
			"slot":          s.Slot,
			"order_id":      s.OrderID,
			"tradingsymbol": s.TradingSymbol,
			"status":        s.Status,
		}).Info("open order in ledger")
	}
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error("Application panic")
	}
	//nolint
	time.Sleep(time.Second * 5)
}
