package candles

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/lib/pq"
)

// Store loads bar history from a candles table over database/sql. The driver
// is picked from the DSN scheme: clickhouse:// or postgres://.
type Store struct {
	db     *sql.DB
	driver string
}

// OpenStore connects to the bar database named by dsn and verifies the
// connection with a ping.
func OpenStore(dsn string) (*Store, error) {
	var driver string
	switch {
	case strings.HasPrefix(dsn, "clickhouse://"):
		driver = "clickhouse"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driver = "postgres"
	default:
		return nil, fmt.Errorf("unsupported DSN scheme in %q (want clickhouse:// or postgres://)", dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadCandles returns the symbol's bars in [from, to], oldest first.
func (s *Store) LoadCandles(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error) {
	query := `SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`
	if s.driver == "postgres" {
		query = `SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = $1 AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp ASC`
	}

	rows, err := s.db.QueryContext(ctx, query, symbol, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []Candle
	for rows.Next() {
		c := Candle{Symbol: symbol}
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no candles for %s in [%s, %s]", symbol, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return bars, nil
}
