package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-alpaca/internal/logger"
	"github.com/rxtech-lab/argo-alpaca/internal/version"
	"github.com/rxtech-lab/argo-alpaca/pkg/alpaca"
	"github.com/rxtech-lab/argo-alpaca/pkg/recorder"
)

// app holds what the commands share. Tests replace the writers and the recorder factory.
type app struct {
	stdout      io.Writer
	stderr      io.Writer
	newRecorder func(dir string, log *logger.Logger) recorder.Recorder
}

func newApp() *app {
	return &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		newRecorder: func(dir string, log *logger.Logger) recorder.Recorder {
			return recorder.NewDuckDBRecorder(dir, log)
		},
	}
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:      "alpaca",
		Usage:     "Trade and stream market data from the brokerage API",
		Version:   version.GetVersion(),
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML client config file",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key id",
				Sources: cli.EnvVars("APCA_API_KEY_ID"),
			},
			&cli.StringFlag{
				Name:    "api-secret",
				Usage:   "API secret key",
				Sources: cli.EnvVars("APCA_API_SECRET_KEY"),
			},
			&cli.BoolFlag{
				Name:  "live",
				Usage: "Use the live trading hosts instead of paper trading",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn or error",
				Value: "warn",
			},
			&cli.StringFlag{
				Name:    "trading-url",
				Usage:   "Override the trading REST host",
				Sources: cli.EnvVars("APCA_API_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "data-url",
				Usage:   "Override the market data REST host",
				Sources: cli.EnvVars("APCA_API_DATA_URL"),
			},
			&cli.StringFlag{
				Name:  "trading-stream-url",
				Usage: "Override the account stream host",
			},
			&cli.StringFlag{
				Name:  "data-stream-url",
				Usage: "Override the market data and news stream host",
			},
		},
		Commands: []*cli.Command{
			a.streamCommand(),
			a.accountCommand(),
			a.positionsCommand(),
			a.ordersCommand(),
			a.clockCommand(),
			a.tradesCommand(),
			a.newsCommand(),
			a.schemaCommand(),
			a.versionCommand(),
		},
	}
}

// loadDotEnv loads environment variables from the given files. Missing files are
// skipped and variables already set in the environment win.
func loadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	return nil
}

// loadConfig builds the client config from the config file, then applies flags and environment.
func loadConfig(cmd *cli.Command) (alpaca.ClientConfig, error) {
	config := alpaca.ClientConfig{Paper: true}

	if path := cmd.String("config"); path != "" {
		loaded, err := alpaca.LoadConfigFile(path)
		if err != nil {
			return alpaca.ClientConfig{}, err
		}

		config = *loaded
	}

	overrides := map[string]*string{
		"api-key":            &config.APIKey,
		"api-secret":         &config.APISecret,
		"trading-url":        &config.TradingURL,
		"data-url":           &config.DataURL,
		"trading-stream-url": &config.TradingStreamURL,
		"data-stream-url":    &config.MarketDataStreamURL,
	}
	for flag, field := range overrides {
		if value := cmd.String(flag); value != "" {
			*field = value
		}
	}

	if cmd.IsSet("live") {
		config.Paper = !cmd.Bool("live")
	}

	if config.LogLevel == "" || cmd.IsSet("log-level") {
		config.LogLevel = cmd.String("log-level")
	}

	return config, config.Validate()
}

// newClient creates a client and its logger. Logs go to stderr so stdout stays machine readable.
func newClient(cmd *cli.Command) (*alpaca.Client, *logger.Logger, error) {
	config, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.NewLoggerWithOutput(config.LogLevel, "stderr")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	client, err := alpaca.NewClient(config, log)
	if err != nil {
		return nil, nil, err
	}

	return client, log, nil
}

// printer writes one JSON document per line.
type printer struct {
	encoder *json.Encoder
}

func newPrinter(w io.Writer) *printer {
	return &printer{encoder: json.NewEncoder(w)}
}

func (p *printer) print(v any) error {
	return p.encoder.Encode(v)
}

func (a *app) schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the client config",
		Action: func(_ context.Context, _ *cli.Command) error {
			schema, err := alpaca.GetConfigSchema()
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(a.stdout, schema)

			return err
		},
	}
}

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the library version",
		Action: func(_ context.Context, _ *cli.Command) error {
			_, err := fmt.Fprintln(a.stdout, version.GetVersion())
			return err
		},
	}
}
