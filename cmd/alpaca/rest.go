package main

import (
	"context"
	"fmt"
	"time"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-alpaca/pkg/alpaca"
	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
	"github.com/rxtech-lab/argo-alpaca/pkg/models"
)

var timestampLayouts = []string{time.RFC3339, "2006-01-02"}

// printResult runs fn with a fresh client and prints its result as JSON.
func (a *app) printResult(fn func(ctx context.Context, cmd *cli.Command, client *alpaca.Client) (any, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		client, _, err := newClient(cmd)
		if err != nil {
			return err
		}

		result, err := fn(ctx, cmd, client)
		if err != nil {
			return err
		}

		return newPrinter(a.stdout).print(result)
	}
}

// decimalFlag parses an optional decimal flag. Unset flags are None.
func decimalFlag(cmd *cli.Command, name string) (optional.Option[decimal.Decimal], error) {
	value := cmd.String(name)
	if value == "" {
		return optional.None[decimal.Decimal](), nil
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return optional.None[decimal.Decimal](), errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid --%s %q", name, value)
	}

	return optional.Some(parsed), nil
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	value := cmd.Args().First()
	if value == "" {
		return "", errors.Newf(errors.ErrCodeMissingParameter, "%s is required", name)
	}

	return value, nil
}

func (a *app) accountCommand() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "Print the trading account",
		Action: a.printResult(func(ctx context.Context, _ *cli.Command, client *alpaca.Client) (any, error) {
			return client.GetAccount(ctx)
		}),
	}
}

func (a *app) clockCommand() *cli.Command {
	return &cli.Command{
		Name:  "clock",
		Usage: "Print the market clock",
		Action: a.printResult(func(ctx context.Context, _ *cli.Command, client *alpaca.Client) (any, error) {
			return client.GetClock(ctx)
		}),
	}
}

func (a *app) positionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "positions",
		Usage: "List and close open positions",
		Action: a.printResult(func(ctx context.Context, _ *cli.Command, client *alpaca.Client) (any, error) {
			return client.GetPositions(ctx)
		}),
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the position of a symbol",
				ArgsUsage: "SYMBOL",
				Action: a.printResult(func(ctx context.Context, cmd *cli.Command, client *alpaca.Client) (any, error) {
					symbol, err := requireArg(cmd, "symbol")
					if err != nil {
						return nil, err
					}

					return client.GetPosition(ctx, symbol)
				}),
			},
			{
				Name:      "close",
				Usage:     "Liquidate a position, or part of it",
				ArgsUsage: "SYMBOL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "qty", Usage: "Number of shares to sell"},
					&cli.StringFlag{Name: "percentage", Usage: "Percentage of the position to sell"},
					&cli.BoolFlag{Name: "cancel-orders", Usage: "Cancel open orders of the symbol first"},
				},
				Action: a.printResult(func(ctx context.Context, cmd *cli.Command, client *alpaca.Client) (any, error) {
					symbol, err := requireArg(cmd, "symbol")
					if err != nil {
						return nil, err
					}

					params := alpaca.ClosePositionParams{CancelOrders: cmd.Bool("cancel-orders")}
					if params.Qty, err = decimalFlag(cmd, "qty"); err != nil {
						return nil, err
					}

					if params.Percentage, err = decimalFlag(cmd, "percentage"); err != nil {
						return nil, err
					}

					return client.ClosePosition(ctx, symbol, params)
				}),
			},
			{
				Name:  "close-all",
				Usage: "Liquidate every position",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "cancel-orders", Usage: "Cancel every open order first"},
				},
				Action: a.printResult(func(ctx context.Context, cmd *cli.Command, client *alpaca.Client) (any, error) {
					return client.CloseAllPositions(ctx, cmd.Bool("cancel-orders"))
				}),
			},
		},
	}
}

func (a *app) ordersCommand() *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "List, place and cancel orders",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Usage: "open, closed or all", Value: "open"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of orders", Value: alpaca.DefaultOrdersLimit},
			&cli.StringFlag{Name: "direction", Usage: "asc or desc", Value: "desc"},
			&cli.StringSliceFlag{Name: "symbols", Usage: "Only orders of these symbols"},
		},
		Action: a.printResult(func(ctx context.Context, cmd *cli.Command, client *alpaca.Client) (any, error) {
			return client.GetOrders(ctx, alpaca.GetOrdersParams{
				Status:    cmd.String("status"),
				Limit:     int(cmd.Int("limit")),
				Direction: cmd.String("direction"),
				Symbols:   cmd.StringSlice("symbols"),
			})
		}),
		Commands: []*cli.Command{
			{
				Name:      "place",
				Usage:     "Submit an order",
				ArgsUsage: "SYMBOL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "side", Usage: "buy or sell", Value: string(models.OrderSideBuy)},
					&cli.StringFlag{Name: "type", Usage: "market, limit, stop, stop_limit or trailing_stop", Value: string(models.OrderTypeMarket)},
					&cli.StringFlag{Name: "time-in-force", Usage: "day, gtc, opg, cls, ioc or fok", Value: string(models.TimeInForceDay)},
					&cli.StringFlag{Name: "qty", Usage: "Number of shares"},
					&cli.StringFlag{Name: "notional", Usage: "Dollar amount to trade instead of a share count"},
					&cli.StringFlag{Name: "limit-price", Usage: "Limit price"},
					&cli.StringFlag{Name: "stop-price", Usage: "Stop price"},
					&cli.StringFlag{Name: "client-order-id", Usage: "Client order id (a UUID is generated when empty)"},
				},
				Action: a.printResult(placeOrder),
			},
			{
				Name:      "get",
				Usage:     "Print an order by id",
				ArgsUsage: "ORDER_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "client-id", Usage: "Treat the argument as a client order id"},
				},
				Action: a.printResult(func(ctx context.Context, cmd *cli.Command, client *alpaca.Client) (any, error) {
					id, err := requireArg(cmd, "order id")
					if err != nil {
						return nil, err
					}

					if cmd.Bool("client-id") {
						return client.GetOrderByClientID(ctx, id)
					}

					return client.GetOrder(ctx, id)
				}),
			},
			{
				Name:      "cancel",
				Usage:     "Cancel an open order",
				ArgsUsage: "ORDER_ID",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := requireArg(cmd, "order id")
					if err != nil {
						return err
					}

					client, _, err := newClient(cmd)
					if err != nil {
						return err
					}

					if err := client.CancelOrder(ctx, id); err != nil {
						return err
					}

					_, err = fmt.Fprintf(a.stderr, "Cancel requested for %s\n", id)

					return err
				},
			},
			{
				Name:  "cancel-all",
				Usage: "Cancel every open order",
				Action: a.printResult(func(ctx context.Context, _ *cli.Command, client *alpaca.Client) (any, error) {
					return client.CancelAllOrders(ctx)
				}),
			},
		},
	}
}

func placeOrder(ctx context.Context, cmd *cli.Command, client *alpaca.Client) (any, error) {
	symbol, err := requireArg(cmd, "symbol")
	if err != nil {
		return nil, err
	}

	request := models.OrderRequest{
		Symbol:        symbol,
		Side:          models.OrderSide(cmd.String("side")),
		Type:          models.OrderType(cmd.String("type")),
		TimeInForce:   models.TimeInForce(cmd.String("time-in-force")),
		ClientOrderID: cmd.String("client-order-id"),
	}

	decimals := map[string]*optional.Option[decimal.Decimal]{
		"qty":         &request.Qty,
		"notional":    &request.Notional,
		"limit-price": &request.LimitPrice,
		"stop-price":  &request.StopPrice,
	}
	for name, field := range decimals {
		if *field, err = decimalFlag(cmd, name); err != nil {
			return nil, err
		}
	}

	return client.PlaceOrder(ctx, request)
}

func (a *app) tradesCommand() *cli.Command {
	return &cli.Command{
		Name:      "trades",
		Usage:     "Download historical trades of a symbol as JSON lines",
		ArgsUsage: "SYMBOL",
		Flags: []cli.Flag{
			&cli.TimestampFlag{
				Name:   "start",
				Usage:  "Start time in `YYYY-MM-DD` or RFC3339 format",
				Config: cli.TimestampConfig{Layouts: timestampLayouts},
			},
			&cli.TimestampFlag{
				Name:   "end",
				Usage:  "End time in `YYYY-MM-DD` or RFC3339 format",
				Config: cli.TimestampConfig{Layouts: timestampLayouts},
			},
			&cli.IntFlag{
				Name:  "page-size",
				Usage: "Trades per request",
				Value: alpaca.MaxTradesLimit,
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Hide the progress bar",
			},
		},
		Action: a.downloadTrades,
	}
}

func (a *app) downloadTrades(ctx context.Context, cmd *cli.Command) error {
	symbol, err := requireArg(cmd, "symbol")
	if err != nil {
		return err
	}

	client, _, err := newClient(cmd)
	if err != nil {
		return err
	}

	params := alpaca.GetTradesParams{
		Start: cmd.Timestamp("start"),
		End:   cmd.Timestamp("end"),
		Limit: int(cmd.Int("page-size")),
	}

	var bar *progressbar.ProgressBar
	if !cmd.Bool("quiet") {
		// the total is unknown up front, so the bar is a spinner with a counter
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s trades", symbol)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(a.stderr),
		)
	}

	out := newPrinter(a.stdout)

	var writeErr error

	total, err := client.GetAllTrades(ctx, symbol, params, func(page models.TradesPage) bool {
		for _, trade := range page.Trades {
			if writeErr = out.print(trade); writeErr != nil {
				return false
			}
		}

		if bar != nil {
			_ = bar.Add(len(page.Trades))
		}

		return true
	})
	if err != nil {
		return err
	}

	if writeErr != nil {
		return writeErr
	}

	if bar != nil {
		_ = bar.Finish()
	}

	_, err = fmt.Fprintf(a.stderr, "\nDownloaded %d trades for %s\n", total, symbol)

	return err
}

func (a *app) newsCommand() *cli.Command {
	return &cli.Command{
		Name:      "news",
		Usage:     "Print recent news articles",
		ArgsUsage: "[SYMBOL...]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of articles", Value: alpaca.DefaultNewsLimit},
			&cli.BoolFlag{Name: "asc", Usage: "Oldest first"},
			&cli.TimestampFlag{
				Name:   "start",
				Usage:  "Start time in `YYYY-MM-DD` or RFC3339 format",
				Config: cli.TimestampConfig{Layouts: timestampLayouts},
			},
		},
		Action: a.printResult(func(ctx context.Context, cmd *cli.Command, client *alpaca.Client) (any, error) {
			page, err := client.GetNews(ctx, alpaca.GetNewsParams{
				Symbols: cmd.Args().Slice(),
				Start:   cmd.Timestamp("start"),
				SortAsc: cmd.Bool("asc"),
				Limit:   int(cmd.Int("limit")),
			})
			if err != nil {
				return nil, err
			}

			return page.News, nil
		}),
	}
}
