// Package persistence provides the SQLite journal of market activity: per
// tick clearing statistics, individual fills and daily summaries. It is an
// append-only observation log; nothing is restored from it.
package persistence

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/harvest-market/internal/commodity"
	"github.com/talgya/harvest-market/internal/engine"
	"github.com/talgya/harvest-market/internal/market"
)

// DB wraps a SQLite connection for the market journal.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tick_stats (
		tick INTEGER NOT NULL,
		commodity TEXT NOT NULL,
		bids INTEGER NOT NULL,
		asks INTEGER NOT NULL,
		bid_quantity REAL NOT NULL,
		ask_quantity REAL NOT NULL,
		fills INTEGER NOT NULL,
		traded REAL NOT NULL,
		money REAL NOT NULL,
		avg_price REAL NOT NULL,
		unmatched INTEGER NOT NULL,
		rounds INTEGER NOT NULL,
		PRIMARY KEY (tick, commodity)
	);

	CREATE TABLE IF NOT EXISTS fills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		commodity TEXT NOT NULL,
		price REAL NOT NULL,
		quantity REAL NOT NULL,
		buyer INTEGER NOT NULL,
		seller INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS days (
		tick INTEGER PRIMARY KEY,
		day INTEGER NOT NULL,
		population INTEGER NOT NULL,
		total_cash REAL NOT NULL,
		taxes REAL NOT NULL,
		treasury REAL NOT NULL,
		bankrupt INTEGER NOT NULL,
		fills INTEGER NOT NULL,
		traded REAL NOT NULL,
		money REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_fills_tick ON fills(tick);
	CREATE INDEX IF NOT EXISTS idx_tick_stats_commodity ON tick_stats(commodity, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveReport appends one tick's clearing statistics and fills.
func (db *DB) SaveReport(rep market.Report) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range rep.Commodities {
		_, err := tx.Exec(`INSERT OR REPLACE INTO tick_stats
			(tick, commodity, bids, asks, bid_quantity, ask_quantity,
			 fills, traded, money, avg_price, unmatched, rounds)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rep.Tick, c.Commodity.String(), c.Bids, c.Asks, c.BidQuantity, c.AskQuantity,
			c.Fills, c.Traded, c.Money, c.AvgPrice, c.Unmatched, c.Rounds,
		)
		if err != nil {
			return fmt.Errorf("insert tick stats %d %s: %w", rep.Tick, c.Commodity, err)
		}
	}

	if len(rep.Fills) > 0 {
		stmt, err := tx.Preparex(`INSERT INTO fills
			(tick, commodity, price, quantity, buyer, seller)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, f := range rep.Fills {
			if _, err := stmt.Exec(rep.Tick, f.Commodity.String(), f.Price, f.Quantity, f.Buyer, f.Seller); err != nil {
				return fmt.Errorf("insert fill %s: %w", f, err)
			}
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES ('last_tick', ?)",
		strconv.FormatUint(rep.Tick, 10),
	); err != nil {
		return fmt.Errorf("save last tick: %w", err)
	}

	return tx.Commit()
}

// SaveDay appends a daily summary.
func (db *DB) SaveDay(stats engine.DayStats) error {
	_, err := db.conn.NamedExec(`INSERT OR REPLACE INTO days
		(tick, day, population, total_cash, taxes, treasury, bankrupt, fills, traded, money)
		VALUES (:tick, :day, :population, :total_cash, :taxes, :treasury, :bankrupt, :fills, :traded, :money)`,
		dayRow(stats),
	)
	if err != nil {
		return fmt.Errorf("insert day %d: %w", stats.Day, err)
	}
	slog.Debug("journal day saved", "day", stats.Day, "tick", stats.Tick)
	return nil
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// TickStat is one stored row of per-commodity clearing statistics.
type TickStat struct {
	Tick        uint64  `db:"tick" json:"tick"`
	Commodity   string  `db:"commodity" json:"commodity"`
	Bids        int     `db:"bids" json:"bids"`
	Asks        int     `db:"asks" json:"asks"`
	BidQuantity float64 `db:"bid_quantity" json:"bid_quantity"`
	AskQuantity float64 `db:"ask_quantity" json:"ask_quantity"`
	Fills       int     `db:"fills" json:"fills"`
	Traded      float64 `db:"traded" json:"traded"`
	Money       float64 `db:"money" json:"money"`
	AvgPrice    float64 `db:"avg_price" json:"avg_price"`
	Unmatched   int     `db:"unmatched" json:"unmatched"`
	Rounds      int     `db:"rounds" json:"rounds"`
}

// RecentStats returns the latest limit rows for k, newest first.
func (db *DB) RecentStats(k commodity.Kind, limit int) ([]TickStat, error) {
	var stats []TickStat
	err := db.conn.Select(&stats,
		`SELECT tick, commodity, bids, asks, bid_quantity, ask_quantity,
			fills, traded, money, avg_price, unmatched, rounds
		FROM tick_stats WHERE commodity = ? ORDER BY tick DESC LIMIT ?`,
		k.String(), limit,
	)
	return stats, err
}

// FillRow is one stored fill.
type FillRow struct {
	Tick      uint64  `db:"tick" json:"tick"`
	Commodity string  `db:"commodity" json:"commodity"`
	Price     float64 `db:"price" json:"price"`
	Quantity  float64 `db:"quantity" json:"quantity"`
	Buyer     int     `db:"buyer" json:"buyer"`
	Seller    int     `db:"seller" json:"seller"`
}

// RecentFills returns the most recent limit fills, newest first.
func (db *DB) RecentFills(limit int) ([]FillRow, error) {
	var fills []FillRow
	err := db.conn.Select(&fills,
		"SELECT tick, commodity, price, quantity, buyer, seller FROM fills ORDER BY id DESC LIMIT ?",
		limit,
	)
	return fills, err
}

type day struct {
	Tick       uint64  `db:"tick"`
	Day        uint64  `db:"day"`
	Population int     `db:"population"`
	TotalCash  float64 `db:"total_cash"`
	Taxes      float64 `db:"taxes"`
	Treasury   float64 `db:"treasury"`
	Bankrupt   int     `db:"bankrupt"`
	Fills      int     `db:"fills"`
	Traded     float64 `db:"traded"`
	Money      float64 `db:"money"`
}

func dayRow(s engine.DayStats) day {
	return day(s)
}

// RecentDays returns the latest limit daily summaries, newest first.
func (db *DB) RecentDays(limit int) ([]engine.DayStats, error) {
	var rows []day
	err := db.conn.Select(&rows,
		`SELECT tick, day, population, total_cash, taxes, treasury, bankrupt, fills, traded, money
		FROM days ORDER BY tick DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]engine.DayStats, len(rows))
	for i, r := range rows {
		out[i] = engine.DayStats(r)
	}
	return out, nil
}
