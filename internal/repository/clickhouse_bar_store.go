package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PVResonance/internal/domain/models"
	domrepo "PVResonance/internal/domain/repository"
	pkgch "PVResonance/pkg/clickhouse"
	applogger "PVResonance/pkg/logger"
)

// CHBarStore implements BarStore and NorthFlowStore backed by ClickHouse.
type CHBarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

var (
	_ domrepo.BarStore          = (*CHBarStore)(nil)
	_ domrepo.NorthFlowStore    = (*CHBarStore)(nil)
	_ domrepo.VersionedBarStore = (*CHBarStore)(nil)
)

func NewCHBarStore(ch *pkgch.Client, database string) *CHBarStore {
	return &CHBarStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) table(name string) string { return s.database + "." + name }

func (s *CHBarStore) GetDailyBars(ctx context.Context, instrument string, from, to int) ([]models.Bar, error) {
	q := fmt.Sprintf(`
        SELECT date, open, high, low, close, volume, turnover, factor
        FROM %s FINAL
        WHERE code = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `, s.table("futures_daily"))
	return query(ctx, s, "daily_bars", q, []any{instrument, from, to}, func(rows *sql.Rows) (models.Bar, error) {
		var b models.Bar
		err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Turnover, &b.Factor)
		return b, err
	})
}

func (s *CHBarStore) GetMinuteBars(ctx context.Context, instrument string, from, to int) ([]models.Bar, error) {
	q := fmt.Sprintf(`
        SELECT date, time, open, high, low, close, volume, turnover
        FROM %s FINAL
        WHERE code = ? AND date >= ? AND date <= ?
        ORDER BY date ASC, time ASC
    `, s.table("futures_minute"))
	return query(ctx, s, "minute_bars", q, []any{instrument, from, to}, func(rows *sql.Rows) (models.Bar, error) {
		var b models.Bar
		err := rows.Scan(&b.Date, &b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Turnover)
		return b, err
	})
}

func (s *CHBarStore) GetFactors(ctx context.Context, instrument string, from, to int) ([]models.AdjFactor, error) {
	q := fmt.Sprintf(`
        SELECT date, factor
        FROM %s FINAL
        WHERE code = ? AND date >= ? AND date <= ?
        ORDER BY date ASC
    `, s.table("futures_factor"))
	return query(ctx, s, "factors", q, []any{instrument, from, to}, func(rows *sql.Rows) (models.AdjFactor, error) {
		var f models.AdjFactor
		err := rows.Scan(&f.Date, &f.Factor)
		return f, err
	})
}

func (s *CHBarStore) GetNorthFlows(ctx context.Context, from, to int) ([]models.NorthFlow, error) {
	q := fmt.Sprintf(`
        SELECT date, buy, sell
        FROM %s FINAL
        WHERE date >= ? AND date <= ?
        ORDER BY date ASC
    `, s.table("north_flow"))
	return query(ctx, s, "north_flows", q, []any{from, to}, func(rows *sql.Rows) (models.NorthFlow, error) {
		var f models.NorthFlow
		err := rows.Scan(&f.Date, &f.Buy, &f.Sell)
		return f, err
	})
}

func (s *CHBarStore) GetComponentQuotes(ctx context.Context, indexCode string, from, to int) ([]models.ComponentQuote, error) {
	q := fmt.Sprintf(`
        SELECT date, code, close, amount, oi
        FROM %s FINAL
        WHERE index_code = ? AND date >= ? AND date <= ?
        ORDER BY code ASC, date ASC
    `, s.table("index_component_quote"))
	return query(ctx, s, "component_quotes", q, []any{indexCode, from, to}, func(rows *sql.Rows) (models.ComponentQuote, error) {
		var c models.ComponentQuote
		err := rows.Scan(&c.Date, &c.Code, &c.Close, &c.Amount, &c.OI)
		return c, err
	})
}

// BarVersion counts the stored bars of the range and reports the last date.
func (s *CHBarStore) BarVersion(ctx context.Context, instrument string, daily bool, from, to int) (domrepo.DataVersion, error) {
	table := "futures_minute"
	if daily {
		table = "futures_daily"
	}
	q := fmt.Sprintf(`
        SELECT count(), max(date)
        FROM %s FINAL
        WHERE code = ? AND date >= ? AND date <= ?
    `, s.table(table))
	var (
		rows uint64
		last uint32
	)
	if err := s.db.QueryRowContext(ctx, q, instrument, from, to).Scan(&rows, &last); err != nil {
		return domrepo.DataVersion{}, fmt.Errorf("bar version: %w", err)
	}
	return domrepo.DataVersion{Rows: int64(rows), LastDate: int(last)}, nil
}

// query runs q and scans every row with scan, logging failures and timings.
func query[T any](ctx context.Context, s *CHBarStore, op, q string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	start := time.Now()
	logErr := func(stage string, err error) {
		if s.l != nil {
			s.l.Error("clickhouse "+op+" "+stage+" error", applogger.Any("args", args), applogger.Error(err))
		}
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		logErr("query", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]T, 0, 1024)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			logErr("scan", err)
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		logErr("rows", err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse "+op+" ok",
			applogger.Any("args", args),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}
