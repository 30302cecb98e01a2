package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"EtfSentinel/internal/model"
)

// SQLiteCache persists the cache to a SQLite database.
type SQLiteCache struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
	now func() time.Time
}

// NewSQLiteCache opens (or creates) the SQLite database and runs migrations.
func NewSQLiteCache(dbPath string, log zerolog.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	c := &SQLiteCache{
		db:  db,
		log: log.With().Str("component", "cache").Logger(),
		now: time.Now,
	}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	c.log.Info().Str("path", dbPath).Msg("sqlite cache opened")
	return c, nil
}

func (c *SQLiteCache) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS portfolios (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			body       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS prices (
			isin   TEXT PRIMARY KEY,
			price  REAL NOT NULL,
			as_of  INTEGER NOT NULL,
			series BLOB
		)`,

		`CREATE TABLE IF NOT EXISTS drift_snapshots (
			id                    INTEGER PRIMARY KEY AUTOINCREMENT,
			portfolio_id          TEXT NOT NULL,
			date                  TEXT NOT NULL,
			recorded_at           INTEGER NOT NULL,
			value                 REAL,
			cost                  REAL,
			max_drift             REAL,
			asset_class_max_drift REAL,
			country_max_drift     REAL,
			breached              INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drift_portfolio ON drift_snapshots(portfolio_id, recorded_at)`,
	}

	for _, s := range stmts {
		if _, err := c.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (c *SQLiteCache) SavePortfolio(p *model.Portfolio) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode portfolio: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(`INSERT INTO portfolios (id, name, body, updated_at) VALUES (?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, body = excluded.body, updated_at = excluded.updated_at`,
		p.ID, p.Name, string(body), c.now().UnixNano(),
	)
	return err
}

func (c *SQLiteCache) Portfolios() ([]*model.Portfolio, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query(`SELECT body FROM portfolios ORDER BY updated_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Portfolio
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var p model.Portfolio
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, fmt.Errorf("decode portfolio: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (c *SQLiteCache) DeletePortfolio(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec(`DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// seriesRecord is the msgpack layout of a price series.
type seriesRecord struct {
	Dates  []string  `msgpack:"d"`
	Prices []float64 `msgpack:"p"`
}

func encodeSeries(series []model.PricePoint) ([]byte, error) {
	rec := seriesRecord{
		Dates:  make([]string, len(series)),
		Prices: make([]float64, len(series)),
	}
	for i, pt := range series {
		rec.Dates[i] = pt.Date.String()
		rec.Prices[i] = pt.Price
	}
	return msgpack.Marshal(&rec)
}

func decodeSeries(blob []byte) ([]model.PricePoint, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	var rec seriesRecord
	if err := msgpack.Unmarshal(blob, &rec); err != nil {
		return nil, err
	}
	if len(rec.Dates) != len(rec.Prices) {
		return nil, fmt.Errorf("series has %d dates and %d prices", len(rec.Dates), len(rec.Prices))
	}
	series := make([]model.PricePoint, len(rec.Dates))
	for i, s := range rec.Dates {
		d, err := model.ParseDate(s)
		if err != nil {
			return nil, err
		}
		series[i] = model.PricePoint{Date: d, Price: rec.Prices[i]}
	}
	return series, nil
}

func (c *SQLiteCache) SavePrice(isin string, h *model.PriceHistory) error {
	blob, err := encodeSeries(h.Series)
	if err != nil {
		return fmt.Errorf("encode series: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(`INSERT OR REPLACE INTO prices (isin, price, as_of, series) VALUES (?,?,?,?)`,
		isin, h.Price, h.AsOf.UnixNano(), blob,
	)
	return err
}

func (c *SQLiteCache) Price(isin string) (*model.PriceHistory, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		price float64
		asOf  int64
		blob  []byte
	)
	err := c.db.QueryRow(`SELECT price, as_of, series FROM prices WHERE isin = ?`, isin).Scan(&price, &asOf, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	series, err := decodeSeries(blob)
	if err != nil {
		return nil, false, fmt.Errorf("decode series of %s: %w", isin, err)
	}
	return &model.PriceHistory{
		Price:  price,
		AsOf:   time.Unix(0, asOf).UTC(),
		Series: series,
	}, true, nil
}

func (c *SQLiteCache) RecordDrift(s *DriftSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	recordedAt := s.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = c.now()
	}
	_, err := c.db.Exec(`INSERT INTO drift_snapshots
		(portfolio_id, date, recorded_at, value, cost, max_drift, asset_class_max_drift, country_max_drift, breached)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		s.PortfolioID, s.Date.String(), recordedAt.UnixNano(),
		s.Value, s.Cost, s.MaxDrift, s.AssetClassMaxDrift, s.CountryMaxDrift, s.Breached,
	)
	return err
}

func (c *SQLiteCache) DriftHistory(portfolioID string, limit int) ([]DriftSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.Query(`SELECT date, recorded_at, value, cost, max_drift, asset_class_max_drift, country_max_drift, breached
		FROM drift_snapshots WHERE portfolio_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		portfolioID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DriftSnapshot
	for rows.Next() {
		var (
			s          = DriftSnapshot{PortfolioID: portfolioID}
			date       string
			recordedAt int64
		)
		if err := rows.Scan(&date, &recordedAt, &s.Value, &s.Cost, &s.MaxDrift,
			&s.AssetClassMaxDrift, &s.CountryMaxDrift, &s.Breached); err != nil {
			return nil, err
		}
		if s.Date, err = model.ParseDate(date); err != nil {
			return nil, err
		}
		s.RecordedAt = time.Unix(0, recordedAt).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *SQLiteCache) Close() error {
	c.log.Info().Msg("closing sqlite cache")
	return c.db.Close()
}
