package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/San4ouzs/Flight-deals-eu/pkg/logging"
	"github.com/San4ouzs/Flight-deals-eu/pkg/metrics"
	"github.com/San4ouzs/Flight-deals-eu/pkg/sources"
)

// TimestampLayout is the persisted form of observation times. It is fixed
// width so that string order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// TrailingWindowDays is the length of the averaging window before a departure date.
const TrailingWindowDays = 365

// PriceRecord is one persisted observation of a quote.
type PriceRecord struct {
	ID            int64           `json:"id"`
	ObservedAt    time.Time       `json:"observed_at"`
	Source        string          `json:"source"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureDate time.Time       `json:"departure_date"`
	Currency      string          `json:"currency"`
	Price         decimal.Decimal `json:"price"`
}

type recordRow struct {
	ID            int64   `db:"id"`
	ObservedAt    string  `db:"observed_at"`
	Source        string  `db:"source"`
	Origin        string  `db:"origin"`
	Destination   string  `db:"destination"`
	DepartureDate string  `db:"departure_date"`
	Currency      string  `db:"currency"`
	Price         float64 `db:"price"`
}

func (r recordRow) toRecord() (PriceRecord, error) {
	observed, err := time.Parse(TimestampLayout, r.ObservedAt)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("row %d: observed_at %q: %w", r.ID, r.ObservedAt, err)
	}
	departure, err := time.Parse(sources.DateLayout, r.DepartureDate)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("row %d: departure_date %q: %w", r.ID, r.DepartureDate, err)
	}
	return PriceRecord{
		ID:            r.ID,
		ObservedAt:    observed,
		Source:        r.Source,
		Origin:        r.Origin,
		Destination:   r.Destination,
		DepartureDate: departure,
		Currency:      r.Currency,
		Price:         decimal.NewFromFloat(r.Price),
	}, nil
}

// Store is the price history ledger. Rows are only ever inserted.
type Store struct {
	db     *sqlx.DB
	driver string
	logger *logging.Logger
}

// Open connects to the database. For sqlite the parent directory of the
// database file is created if needed.
func Open(driver, dsn string, logger *logging.Logger) (*Store, error) {
	driver = strings.ToLower(driver)
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	if driver == DriverSQLite && isSQLiteFile(dsn) {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, fmt.Errorf("%w: create data directory: %w", ErrStorage, err)
		}
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrStorage, err)
	}

	return New(db, driver, logger), nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB, driver string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if driver == DriverSQLite {
		// sqlite allows a single writer, and each :memory: connection is a separate database
		db.SetMaxOpenConns(1)
	}
	return &Store{
		db:     db,
		driver: driver,
		logger: logger.With("component", "store", "driver", driver),
	}
}

func isSQLiteFile(dsn string) bool {
	return dsn != "" && !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:")
}

// Initialize creates the table and index if they do not exist. It is safe to
// call on every start.
func (s *Store) Initialize(ctx context.Context) (err error) {
	defer s.observe("initialize", time.Now(), &err)

	for _, stmt := range schemaStatements(s.driver) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: initialize schema: %w", ErrStorage, err)
		}
	}
	s.logger.Debug("Schema ready")
	return nil
}

// Append writes one record per quote, all stamped with observedAt, in a single
// transaction.
func (s *Store) Append(ctx context.Context, quotes []sources.Quote, observedAt time.Time) (err error) {
	if len(quotes) == 0 {
		return nil
	}
	defer s.observe("append", time.Now(), &err)

	ts := observedAt.UTC().Format(TimestampLayout)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStorage, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(insertSQL))
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %w", ErrStorage, err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, q := range quotes {
		if _, err = stmt.ExecContext(ctx,
			ts,
			q.Source,
			q.Origin,
			q.Destination,
			q.DepartureDate.Format(sources.DateLayout),
			q.Currency,
			q.Price.InexactFloat64(),
		); err != nil {
			return fmt.Errorf("%w: insert: %w", ErrStorage, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorage, err)
	}

	metrics.RecordAppended(len(quotes))
	s.logger.Debug("Appended price records", "count", len(quotes), "observed_at", ts)
	return nil
}

// TrailingAverage returns the mean price for the route and currency over
// departure dates in [date-365d, date). The boolean is false when the window
// holds no records.
func (s *Store) TrailingAverage(ctx context.Context, origin, destination string, date time.Time, currency string) (avg decimal.Decimal, ok bool, err error) {
	defer s.observe("trailing_average", time.Now(), &err)

	day := sources.Day(date)
	from := day.AddDate(0, 0, -TrailingWindowDays)

	var mean sql.NullFloat64
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(trailingAverageSQL),
		origin,
		destination,
		currency,
		from.Format(sources.DateLayout),
		day.Format(sources.DateLayout),
	).Scan(&mean)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("%w: trailing average: %w", ErrStorage, err)
	}
	if !mean.Valid {
		return decimal.Decimal{}, false, nil
	}
	return decimal.NewFromFloat(mean.Float64), true, nil
}

// LatestPerCombination returns, for every (origin, destination, departure
// date, source) ever recorded, the most recently observed record.
func (s *Store) LatestPerCombination(ctx context.Context) (records []PriceRecord, err error) {
	defer s.observe("latest_per_combination", time.Now(), &err)
	return s.selectRecords(ctx, "latest per combination", latestPerCombinationSQL)
}

// History returns every observation for a route and departure date, oldest first.
func (s *Store) History(ctx context.Context, origin, destination string, date time.Time) (records []PriceRecord, err error) {
	defer s.observe("history", time.Now(), &err)
	return s.selectRecords(ctx, "history", historySQL, origin, destination, sources.Day(date).Format(sources.DateLayout))
}

func (s *Store) selectRecords(ctx context.Context, op, query string, args ...interface{}) ([]PriceRecord, error) {
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
	}

	records := make([]PriceRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toRecord()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrStorage, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close: %w", ErrStorage, err)
	}
	return nil
}

func (s *Store) observe(op string, start time.Time, errp *error) {
	metrics.RecordStoreOperation(op, time.Since(start), *errp)
	if *errp != nil {
		s.logger.Error("Store operation failed", "operation", op, "error", *errp)
	}
}
