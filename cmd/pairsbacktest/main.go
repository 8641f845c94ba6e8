package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/yourusername/pairs-arb-backtest/pkg/backtest"
	"github.com/yourusername/pairs-arb-backtest/pkg/logger"
)

const (
	appName    = "pairsbacktest"
	appVersion = "1.0.0"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    appName,
		Version: appVersion,
		Usage:   "gold/silver pairs-trading backtester",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "./config/backtest.yaml", Usage: "configuration file path"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before the config"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "panic, fatal, error, warn, info, debug, trace"},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "text or json"},
		},
		Before: func(c *cli.Context) error {
			if err := godotenv.Load(c.String("env-file")); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", c.String("env-file"), err)
			}
			return nil
		},
		Commands: []*cli.Command{
			cointCommand(),
			backtestCommand(),
			optimizeCommand(),
			exportCommand(),
			replayCommand(),
			historyCommand(),
		},
	}
}

// setup loads the logger and the configuration shared by every command
func setup(c *cli.Context) (*backtest.Config, *logrus.Logger, error) {
	log, err := logger.New(c.String("log-level"), c.String("log-format"))
	if err != nil {
		return nil, nil, err
	}

	entry := log.WithField("component", "Main")
	entry.Infof("Loading configuration from: %s", c.String("config"))
	config, err := backtest.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	if config.Publish.NATSURL == "" {
		config.Publish.NATSURL = os.Getenv("PAIRS_NATS_URL")
	}
	if config.Archive.MySQLDSN == "" {
		config.Archive.MySQLDSN = os.Getenv("PAIRS_MYSQL_DSN")
	}
	return config, log, nil
}

// timeNow is replaced in tests to pin the resolved date range
var timeNow = time.Now

func printBanner() {
	fmt.Println("========================================")
	fmt.Printf("%s v%s\n", appName, appVersion)
	fmt.Println("黄金/白银配对交易回测")
	fmt.Println("========================================")
}
