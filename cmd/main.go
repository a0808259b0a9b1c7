package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/aamirazhar/phithebot/src/connectors"
	"github.com/aamirazhar/phithebot/src/database"
	"github.com/aamirazhar/phithebot/src/model"
	"github.com/aamirazhar/phithebot/src/repository"
	"github.com/aamirazhar/phithebot/src/security"
	"github.com/aamirazhar/phithebot/src/symbols"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "phithebot CMD"
	app.Usage = "The phithebot command line interface"

	app.Commands = []cli.Command{
		positionsCMD,
		instrumentsCMD,
		sealCMD,
		resetCMD,
		logoutCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	positionsCMD = cli.Command{
		Name:        "positions",
		Usage:       "print the order ledger",
		Action:      positionsAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Print every slot snapshot in the ledger`,
	}
	instrumentsCMD = cli.Command{
		Name:      "instruments",
		Usage:     "load a broker instrument dump",
		Action:    instrumentsAction,
		ArgsUsage: "<instruments.csv>",
		Flags:     []cli.Flag{},
		Description: `Parse a broker instrument CSV dump and upsert it
into the local database for symbol resolution`,
	}
	sealCMD = cli.Command{
		Name:        "seal",
		Usage:       "seal a secret for the environment",
		Action:      sealAction,
		ArgsUsage:   "<secret>",
		Flags:       []cli.Flag{},
		Description: `Encrypt a secret with BROKER_CREDENTIALS_KEY`,
	}
	resetCMD = cli.Command{
		Name:      "reset",
		Usage:     "reset a strategy's ledger slots",
		Action:    resetAction,
		ArgsUsage: "<strategy>",
		Flags:     []cli.Flag{},
		Description: `Clear all four slots of a strategy back to the
empty state. Use after resolving positions manually at the broker`,
	}
	logoutCMD = cli.Command{
		Name:        "logout",
		Usage:       "invalidate the broker session",
		Action:      logoutAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `End the day's broker session at the gateway`,
	}
)

func positionsAction(_ *cli.Context) error {
	logrus.WithField("cmd", "positions").Info("Reading ledger")

	if err := database.InitLedgerDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to open ledger database")
	}

	snaps, err := repository.NewLedgerRepository().All(context.Background())
	if err != nil {
		logrus.WithError(err).Error("Failed to read ledger")
		return err
	}

	for _, s := range snaps {
		fmt.Printf("%-20s %-4s %-12s %-24s %-10s %s\n",
			s.Strategy, s.Slot, s.OrderID, s.TradingSymbol, s.Status, s.Price.String())
	}

	return nil
}

func instrumentsAction(c *cli.Context) error {
	logrus.Info("Starting instruments CMD")

	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("usage: instruments <instruments.csv>")
	}

	if err := database.InitLedgerDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to open ledger database")
	}

	instruments, err := symbols.LoadInstrumentsCSV(path)
	if err != nil {
		logrus.WithError(err).Error("Failed to parse instrument dump")
		return err
	}

	err = repository.NewInstrumentRepository().ReplaceAll(context.Background(), instruments)
	if err != nil {
		logrus.WithError(err).Error("Failed to load instrument dump")
		return err
	}

	logrus.WithField("rows", len(instruments)).Info("Instrument dump loaded")
	return nil
}

func sealAction(c *cli.Context) error {
	secret := c.Args().First()
	if secret == "" {
		return fmt.Errorf("usage: seal <secret>")
	}

	sealed, err := security.EncryptString(secret)
	if err != nil {
		logrus.WithError(err).Error("Failed to seal secret")
		return err
	}

	fmt.Println(sealed)
	return nil
}

func logoutAction(_ *cli.Context) error {
	logrus.WithField("cmd", "logout").Info("Invalidating broker session")

	apiKey := os.Getenv("KITE_API_KEY")
	sealed := os.Getenv("KITE_ACCESS_TOKEN_SEALED")
	if apiKey == "" || sealed == "" {
		return fmt.Errorf("KITE_API_KEY and KITE_ACCESS_TOKEN_SEALED must be set")
	}

	token, err := security.DecryptString(sealed)
	if err != nil {
		logrus.WithError(err).Error("Failed to unseal access token")
		return err
	}

	now := time.Now()
	client := connectors.NewKiteClient(&connectors.Session{
		APIKey:      apiKey,
		AccessToken: token,
		IssuedAt:    now,
		Expiry:      now.Add(time.Hour),
	})

	if err := client.InvalidateSession(context.Background()); err != nil {
		logrus.WithError(err).Error("Failed to invalidate session")
		return err
	}

	logrus.Info("Broker session invalidated")
	return nil
}

func resetAction(c *cli.Context) error {
	strategy := c.Args().First()
	if strategy == "" {
		return fmt.Errorf("usage: reset <strategy>")
	}

	logrus.WithField("cmd", "reset").Warn("Resetting ledger slots")

	if err := database.InitLedgerDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to open ledger database")
	}

	ledger := repository.NewLedgerRepository()
	for _, slot := range model.SignalSlots {
		if err := ledger.Reset(context.Background(), strategy, slot); err != nil {
			logrus.WithError(err).Error("Failed to reset strategy")
			return err
		}
	}

	logrus.WithField("strategy", strategy).Info("Strategy slots reset")
	return nil
}
