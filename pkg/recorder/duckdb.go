package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-alpaca/internal/logger"
	"github.com/rxtech-lab/argo-alpaca/pkg/errors"
	"github.com/rxtech-lab/argo-alpaca/pkg/stream"
)

// Table names, also used as the parquet file names.
const (
	TableTrades = "trades"
	TableQuotes = "quotes"
	TableBars   = "bars"
)

// Tables lists every table in export order.
var Tables = []string{TableTrades, TableQuotes, TableBars}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		symbol TEXT,
		id BIGINT,
		exchange TEXT,
		price DOUBLE,
		size UINTEGER,
		time TIMESTAMP,
		conditions TEXT,
		tape TEXT,
		PRIMARY KEY (symbol, id)
	)`,
	`CREATE TABLE IF NOT EXISTS quotes (
		symbol TEXT,
		time TIMESTAMP,
		ask_exchange TEXT,
		ask_price DOUBLE,
		ask_size UINTEGER,
		bid_exchange TEXT,
		bid_price DOUBLE,
		bid_size UINTEGER,
		conditions TEXT,
		tape TEXT,
		time_ns BIGINT,
		PRIMARY KEY (symbol, time_ns)
	)`,
	`CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT,
		time TIMESTAMP,
		open DOUBLE,
		high DOUBLE,
		low DOUBLE,
		close DOUBLE,
		volume UBIGINT,
		trade_count UBIGINT,
		vwap DOUBLE,
		PRIMARY KEY (symbol, time)
	)`,
}

// DuckDBRecorder records market data into an in-memory DuckDB database and
// exports one parquet file per table into its output directory.
type DuckDBRecorder struct {
	db        *sql.DB
	sq        squirrel.StatementBuilderType
	outputDir string
	log       *logger.Logger
	mu        sync.Mutex
}

// NewDuckDBRecorder creates a recorder that exports into outputDir.
func NewDuckDBRecorder(outputDir string, log *logger.Logger) *DuckDBRecorder {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &DuckDBRecorder{
		db:        nil,
		sq:        squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		outputDir: outputDir,
		log:       log.Named("recorder"),
		mu:        sync.Mutex{},
	}
}

// Initialize creates the output directory and the tables.
func (r *DuckDBRecorder) Initialize() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeRecorderWriteFailed, err, "failed to create output directory %s", r.outputDir)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeRecorderWriteFailed, "failed to open DuckDB connection", err)
	}

	for _, statement := range schema {
		if _, err := db.Exec(statement); err != nil {
			db.Close()

			return errors.Wrap(errors.ErrCodeRecorderWriteFailed, "failed to create table", err)
		}
	}

	r.db = db

	return nil
}

// Record inserts the trades, quotes and bars of messages in one transaction.
// Duplicate trades and quotes are ignored; a repeated bar replaces the earlier one.
func (r *DuckDBRecorder) Record(messages []stream.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return errors.New(errors.ErrCodeRecorderNotInitialized, "recorder not initialized")
	}

	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeRecorderWriteFailed, "failed to begin transaction", err)
	}

	for _, message := range messages {
		insert, ok := r.insertFor(message)
		if !ok {
			continue
		}

		if _, err := insert.RunWith(tx).Exec(); err != nil {
			_ = tx.Rollback()

			return errors.Wrapf(errors.ErrCodeRecorderWriteFailed, err, "failed to record %s message", message.MessageType())
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeRecorderWriteFailed, "failed to commit batch", err)
	}

	return nil
}

func (r *DuckDBRecorder) insertFor(message stream.Message) (squirrel.InsertBuilder, bool) {
	switch m := message.(type) {
	case stream.Trade:
		return r.sq.Insert(TableTrades).
			Columns("symbol", "id", "exchange", "price", "size", "time", "conditions", "tape").
			Values(m.Symbol, m.ID, m.Exchange, m.Price, m.Size, m.Timestamp.UTC(), strings.Join(m.Conditions, ","), m.Tape).
			Suffix("ON CONFLICT DO NOTHING"), true
	case stream.Quote:
		return r.sq.Insert(TableQuotes).
			Columns("symbol", "time", "ask_exchange", "ask_price", "ask_size", "bid_exchange", "bid_price", "bid_size", "conditions", "tape", "time_ns").
			Values(m.Symbol, m.Timestamp.UTC(), m.AskExchange, m.AskPrice, m.AskSize,
				m.BidExchange, m.BidPrice, m.BidSize, strings.Join(m.Conditions, ","), m.Tape, m.Timestamp.UnixNano()).
			Suffix("ON CONFLICT DO NOTHING"), true
	case stream.Bar:
		var tradeCount, vwap any
		if m.TradeCount.IsSome() {
			tradeCount = m.TradeCount.Unwrap()
		}

		if m.VWAP.IsSome() {
			vwap = m.VWAP.Unwrap()
		}

		return r.sq.Insert(TableBars).
			Columns("symbol", "time", "open", "high", "low", "close", "volume", "trade_count", "vwap").
			Values(m.Symbol, m.Timestamp.UTC(), m.Open, m.High, m.Low, m.Close, m.Volume, tradeCount, vwap).
			Suffix(`ON CONFLICT (symbol, time) DO UPDATE SET
				open = excluded.open,
				high = excluded.high,
				low = excluded.low,
				close = excluded.close,
				volume = excluded.volume,
				trade_count = excluded.trade_count,
				vwap = excluded.vwap`), true
	default:
		return squirrel.InsertBuilder{}, false
	}
}

// Count returns the number of rows in table.
func (r *DuckDBRecorder) Count(table string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return 0, errors.New(errors.ErrCodeRecorderNotInitialized, "recorder not initialized")
	}

	var count int

	err := r.sq.Select("COUNT(*)").From(table).RunWith(r.db).QueryRow().Scan(&count)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeRecorderWriteFailed, err, "failed to count %s", table)
	}

	return count, nil
}

// Flush exports every table to parquet.
func (r *DuckDBRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return errors.New(errors.ErrCodeRecorderNotInitialized, "recorder not initialized")
	}

	return r.exportToParquet()
}

// Finalize exports every table and returns the output directory.
func (r *DuckDBRecorder) Finalize() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return "", errors.New(errors.ErrCodeRecorderNotInitialized, "recorder not initialized")
	}

	if err := r.exportToParquet(); err != nil {
		return "", err
	}

	return r.outputDir, nil
}

// OutputPath returns the parquet file of table.
func (r *DuckDBRecorder) OutputPath(table string) string {
	return filepath.Join(r.outputDir, table+".parquet")
}

// Close releases database resources.
func (r *DuckDBRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}

		r.db = nil
	}

	return nil
}

func (r *DuckDBRecorder) exportToParquet() error {
	for _, table := range Tables {
		path := r.OutputPath(table)

		_, err := r.db.Exec(fmt.Sprintf(`COPY (SELECT * FROM %s ORDER BY symbol, time) TO '%s' (FORMAT PARQUET)`, table, path))
		if err != nil {
			return errors.Wrapf(errors.ErrCodeRecorderExportFailed, err, "failed to export %s", table)
		}

		r.log.Debug("exported table", zap.String("table", table), zap.String("path", path))
	}

	return nil
}

var _ Recorder = (*DuckDBRecorder)(nil)
