package main

import (
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-alpaca/internal/logger"
	"github.com/rxtech-lab/argo-alpaca/pkg/alpaca"
	"github.com/rxtech-lab/argo-alpaca/pkg/recorder"
	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

func maxFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "max",
		Usage: "Stop after this many batches (0 streams until interrupted)",
	}
}

func (a *app) streamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Stream a push channel as JSON lines until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics of the stream on this address, e.g. :9090",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "market",
				Usage:     "Stream trades, quotes and bars",
				ArgsUsage: "SYMBOL...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "exchange",
						Aliases: []string{"e"},
						Usage:   "Market data feed: iex, sip or test",
						Value:   "iex",
					},
					&cli.StringFlag{
						Name:  "record",
						Usage: "Record trades, quotes and bars as parquet files into this directory",
					},
					maxFlag(),
				},
				Action: a.streamMarket,
			},
			{
				Name:      "news",
				Usage:     "Stream news articles (no symbols streams every symbol)",
				ArgsUsage: "[SYMBOL...]",
				Flags:     []cli.Flag{maxFlag()},
				Action:    a.streamNews,
			},
			{
				Name:   "account",
				Usage:  "Stream order updates of the account",
				Flags:  []cli.Flag{maxFlag()},
				Action: a.streamAccount,
			},
		},
	}
}

func (a *app) streamMarket(ctx context.Context, cmd *cli.Command) error {
	exchange, err := alpaca.ParseStockExchange(cmd.String("exchange"))
	if err != nil {
		return err
	}

	symbols := cmd.Args().Slice()
	if len(symbols) == 0 && exchange == alpaca.TEST {
		symbols = []string{alpaca.TestSymbol}
	}

	client, log, closeMetrics, err := streamClient(cmd)
	if err != nil {
		return err
	}
	defer closeMetrics()

	var rec recorder.Recorder

	if dir := cmd.String("record"); dir != "" {
		rec = a.newRecorder(dir, log)
		if err := rec.Initialize(); err != nil {
			return err
		}
		defer rec.Close()
	}

	batches := client.MonitorStockPrice(ctx, symbols, exchange)
	if rec == nil {
		return printBatches(a.stdout, batches, int(cmd.Int("max")))
	}

	streamErr := printBatches(a.stdout, recording(batches, rec), int(cmd.Int("max")))

	// Batches recorded before a failure are still exported.
	if err := a.finalizeRecording(rec, log); err != nil {
		if streamErr == nil {
			return err
		}

		log.Warn("Failed to save recording", zap.Error(err))
	}

	return streamErr
}

// recording passes every batch of seq through rec before yielding it.
func recording(seq iter.Seq2[[]stream.Message, error], rec recorder.Recorder) iter.Seq2[[]stream.Message, error] {
	return func(yield func([]stream.Message, error) bool) {
		for batch, err := range seq {
			if err == nil {
				err = rec.Record(batch)
			}

			if !yield(batch, err) || err != nil {
				return
			}
		}
	}
}

// streamClient creates a client and, with --metrics-addr, a metrics endpoint that lives until the returned func is called.
func streamClient(cmd *cli.Command) (*alpaca.Client, *logger.Logger, func(), error) {
	client, log, err := newClient(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	addr := cmd.String("metrics-addr")
	if addr == "" {
		return client, log, func() {}, nil
	}

	server, err := serveMetrics(addr, client, log)
	if err != nil {
		return nil, nil, nil, err
	}

	return client, log, func() { _ = server.Close() }, nil
}

func (a *app) finalizeRecording(rec recorder.Recorder, log *logger.Logger) error {
	dir, err := rec.Finalize()
	if err != nil {
		return err
	}

	log.Info("Recording saved", zap.String("dir", dir))
	_, err = fmt.Fprintf(a.stderr, "Recorded to %s\n", dir)

	return err
}

func (a *app) streamNews(ctx context.Context, cmd *cli.Command) error {
	client, _, closeMetrics, err := streamClient(cmd)
	if err != nil {
		return err
	}
	defer closeMetrics()

	return printBatches(a.stdout, client.StreamNews(ctx, cmd.Args().Slice()), int(cmd.Int("max")))
}

func (a *app) streamAccount(ctx context.Context, cmd *cli.Command) error {
	client, _, closeMetrics, err := streamClient(cmd)
	if err != nil {
		return err
	}
	defer closeMetrics()

	return printBatches(a.stdout, client.StreamAccount(ctx), int(cmd.Int("max")))
}

// printBatches prints every element of seq as one JSON line, stopping after limit elements when limit is positive.
func printBatches[T any](w io.Writer, seq iter.Seq2[T, error], limit int) error {
	out := newPrinter(w)
	count := 0

	for value, err := range seq {
		if err != nil {
			return err
		}

		if err := out.print(value); err != nil {
			return err
		}

		count++
		if limit > 0 && count >= limit {
			break
		}
	}

	return nil
}
