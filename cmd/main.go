package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"orderstate/src/client"
	"orderstate/src/database"
	"orderstate/src/hub"
	"orderstate/src/model"
	"orderstate/src/security"
	"orderstate/src/server"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "orderstate"
	app.Usage = "The order state command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		migrateCMD,
		sendCMD,
		stateCMD,
		hashTokenCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the HTTP API",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Open the database, migrate and serve the API until SIGINT/SIGTERM`,
	}
	migrateCMD = cli.Command{
		Name:        "migrate",
		Usage:       "run schema and data migrations",
		Action:      migrateAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Apply schema and data migrations and exit`,
	}
	sendCMD = cli.Command{
		Name:        "send",
		Usage:       "post an update payload to a running service",
		Action:      sendAction,
		ArgsUsage:   "<payload.json>",
		Flags:       []cli.Flag{},
		Description: `Read a place_order payload from a JSON file and post it`,
	}
	stateCMD = cli.Command{
		Name:        "state",
		Usage:       "print the active orders and TP levels",
		Action:      stateAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Fetch the active state from a running service and print it as JSON`,
	}
	hashTokenCMD = cli.Command{
		Name:        "hash-token",
		Usage:       "bcrypt a webhook token for WEBHOOK_TOKEN_HASH",
		Action:      hashTokenAction,
		ArgsUsage:   "<token>",
		Flags:       []cli.Flag{},
		Description: `Print the bcrypt hash of a webhook token`,
	}
)

func serveAction(_ *cli.Context) error {
	log := logrus.WithField("cmd", "serve")
	log.Info("Starting serve CMD")

	db, err := database.OpenAndMigrate(database.GetConfig())
	if err != nil {
		log.WithError(err).Error("Failed to connect to database")
		return err
	}

	app := server.NewApp(server.GetConfig(), db, hub.GetConfig(), security.GetConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, app)
}

func migrateAction(_ *cli.Context) error {
	log := logrus.WithField("cmd", "migrate")
	log.Info("Starting migrate CMD")

	db, err := database.Open(database.GetConfig())
	if err != nil {
		log.WithError(err).Error("Failed to connect to database")
		return err
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Error("Migration failed")
		return err
	}
	return nil
}

func sendAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: send <payload.json>")
	}
	log := logrus.WithFields(map[string]interface{}{"cmd": "send", "file": c.Args().First()})

	raw, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	var payload model.UpdatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}

	resp, err := client.NewClientFromConfig(client.GetConfig()).PlaceOrder(context.Background(), payload)
	if err != nil {
		log.WithError(err).Error("Update rejected")
		return err
	}
	log.Info(resp.Message)
	return nil
}

func stateAction(_ *cli.Context) error {
	state, err := client.NewClientFromConfig(client.GetConfig()).ActiveOrders(context.Background())
	if err != nil {
		logrus.WithError(err).WithField("cmd", "state").Error("Fetching state")
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(state)
}

func hashTokenAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: hash-token <token>")
	}
	hashed, err := security.HashToken(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Println(hashed)
	return nil
}
