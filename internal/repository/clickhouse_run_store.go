package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"PVResonance/internal/domain/models"
	domrepo "PVResonance/internal/domain/repository"
	pkgch "PVResonance/pkg/clickhouse"
)

const pointChunkSize = 2000

// CHRunStore persists runs and their points in ClickHouse.
type CHRunStore struct {
	db       *sql.DB
	database string
}

func NewCHRunStore(ch *pkgch.Client, database string) *CHRunStore {
	return &CHRunStore{db: ch.DB(), database: database}
}

func (s *CHRunStore) SaveRun(ctx context.Context, run *models.Run) error {
	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	sum := run.Summary
	q := fmt.Sprintf(`INSERT INTO %s.backtest_runs
        (run_id, run_key, instrument, variant, frequency, started_at, duration_ms, params, summary)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.database)
	if _, err := s.db.ExecContext(ctx, q,
		sum.RunID, sum.RunKey, sum.Instrument, string(sum.Variant), sum.Frequency,
		sum.StartedAt, sum.DurationMs, string(params), string(summary),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	// multi-row VALUES per chunk to limit round trips
	for start := 0; start < len(run.Points); start += pointChunkSize {
		q, args := pointInsert(s.database, sum.RunID, start, run.Points[start:min(start+pointChunkSize, len(run.Points))])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert points: %w", err)
		}
	}
	return nil
}

// pointInsert builds one INSERT for points whose first element has sequence
// number offset.
func pointInsert(database, runID string, offset int, points []models.SignalPoint) (string, []any) {
	values := make([]string, 0, len(points))
	args := make([]any, 0, len(points)*11)
	for i, p := range points {
		var factor any
		if p.FactorOK {
			factor = p.Factor
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			runID, offset+i, p.Date, p.DateTime,
			p.Open, p.Close, factor,
			int8(p.Regime), int8(p.RawSig), int8(p.Sig), int8(p.Pos),
		)
	}
	q := fmt.Sprintf(`INSERT INTO %s.backtest_points
        (run_id, seq, date, date_time, open, close, factor, regime, raw_sig, sig, pos)
        VALUES %s`, database, strings.Join(values, ","))
	return q, args
}

func (s *CHRunStore) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	q := fmt.Sprintf(`SELECT params, summary FROM %s.backtest_runs WHERE run_id = ? LIMIT 1`, s.database)
	var params, summary string
	if err := s.db.QueryRowContext(ctx, q, runID).Scan(&params, &summary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domrepo.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	run := &models.Run{}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}

	q = fmt.Sprintf(`SELECT date, date_time, open, close, factor, regime, raw_sig, sig, pos
        FROM %s.backtest_points WHERE run_id = ? ORDER BY seq ASC`, s.database)
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("get points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.SignalPoint
		var factor sql.NullFloat64
		var regime, raw, sig, pos int8
		if err := rows.Scan(&p.Date, &p.DateTime, &p.Open, &p.Close, &factor, &regime, &raw, &sig, &pos); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Factor, p.FactorOK = factor.Float64, factor.Valid
		p.Regime, p.RawSig, p.Sig, p.Pos = models.Regime(regime), models.Signal(raw), models.Signal(sig), int(pos)
		run.Points = append(run.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return run, nil
}

func (s *CHRunStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
