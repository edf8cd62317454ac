package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"PVResonance/internal/domain/models"
	domrepo "PVResonance/internal/domain/repository"
	"PVResonance/internal/services/bars"
)

// CSVFiles names the flat files read by CSVStore. Empty paths yield no rows.
type CSVFiles struct {
	Bars    string // date,[time],open,high,low,close,volume,turnover,[factor]
	Factors string // date,factor
	North   string // date,buy,sell
	Quotes  string // date,code,close,amount,oi,[index]
}

// CSVStore serves bars, factors and north-bound inputs from CSV files with a
// header row. Columns are matched by name, case-insensitively.
type CSVStore struct {
	files CSVFiles
}

var (
	_ domrepo.BarStore          = (*CSVStore)(nil)
	_ domrepo.NorthFlowStore    = (*CSVStore)(nil)
	_ domrepo.VersionedBarStore = (*CSVStore)(nil)
)

func NewCSVStore(files CSVFiles) *CSVStore {
	return &CSVStore{files: files}
}

func (s *CSVStore) GetDailyBars(ctx context.Context, _ string, from, to int) ([]models.Bar, error) {
	return s.readBars(ctx, from, to)
}

func (s *CSVStore) GetMinuteBars(ctx context.Context, _ string, from, to int) ([]models.Bar, error) {
	return s.readBars(ctx, from, to)
}

// BarVersion reads the bar file and reports the rows in range and the last
// date among them.
func (s *CSVStore) BarVersion(ctx context.Context, _ string, _ bool, from, to int) (domrepo.DataVersion, error) {
	bs, err := s.readBars(ctx, from, to)
	if err != nil {
		return domrepo.DataVersion{}, err
	}
	v := domrepo.DataVersion{Rows: int64(len(bs))}
	for _, b := range bs {
		v.LastDate = max(v.LastDate, b.Date)
	}
	return v, nil
}

func (s *CSVStore) readBars(ctx context.Context, from, to int) ([]models.Bar, error) {
	var out []models.Bar
	err := readCSV(ctx, s.files.Bars, []string{"date", "open", "high", "low", "close", "volume"}, func(r row) error {
		d, err := r.int("date")
		if err != nil || d < from || d > to {
			return err
		}
		b := models.Bar{Date: d, Factor: 1}
		if r.has("time") {
			raw, err := r.int("time")
			if err != nil {
				return err
			}
			b.Time = bars.NormalizeTime(raw)
		}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close},
			{"volume", &b.Volume}, {"turnover", &b.Turnover}, {"factor", &b.Factor},
		} {
			if !r.has(f.name) {
				continue
			}
			if *f.dst, err = r.float(f.name); err != nil {
				return err
			}
		}
		out = append(out, b)
		return nil
	})
	return out, err
}

func (s *CSVStore) GetFactors(ctx context.Context, _ string, from, to int) ([]models.AdjFactor, error) {
	var out []models.AdjFactor
	err := readCSV(ctx, s.files.Factors, []string{"date", "factor"}, func(r row) error {
		d, err := r.int("date")
		if err != nil || d < from || d > to {
			return err
		}
		f, err := r.float("factor")
		if err != nil {
			return err
		}
		out = append(out, models.AdjFactor{Date: d, Factor: f})
		return nil
	})
	return out, err
}

func (s *CSVStore) GetNorthFlows(ctx context.Context, from, to int) ([]models.NorthFlow, error) {
	var out []models.NorthFlow
	err := readCSV(ctx, s.files.North, []string{"date", "buy", "sell"}, func(r row) error {
		d, err := r.int("date")
		if err != nil || d < from || d > to {
			return err
		}
		nf := models.NorthFlow{Date: d}
		if nf.Buy, err = r.float("buy"); err != nil {
			return err
		}
		if nf.Sell, err = r.float("sell"); err != nil {
			return err
		}
		out = append(out, nf)
		return nil
	})
	return out, err
}

// GetComponentQuotes returns quotes of indexCode. Rows without an index
// column are assumed to belong to it.
func (s *CSVStore) GetComponentQuotes(ctx context.Context, indexCode string, from, to int) ([]models.ComponentQuote, error) {
	var out []models.ComponentQuote
	err := readCSV(ctx, s.files.Quotes, []string{"date", "code", "close", "amount", "oi"}, func(r row) error {
		if r.has("index") && r.str("index") != indexCode {
			return nil
		}
		d, err := r.int("date")
		if err != nil || d < from || d > to {
			return err
		}
		q := models.ComponentQuote{Date: d, Code: r.str("code")}
		if q.Close, err = r.float("close"); err != nil {
			return err
		}
		if q.Amount, err = r.float("amount"); err != nil {
			return err
		}
		if q.OI, err = r.float("oi"); err != nil {
			return err
		}
		out = append(out, q)
		return nil
	})
	return out, err
}

type row struct {
	cols   map[string]int
	fields []string
	line   int
}

func (r row) has(name string) bool {
	i, ok := r.cols[name]
	return ok && i < len(r.fields)
}

func (r row) str(name string) string {
	if !r.has(name) {
		return ""
	}
	return strings.TrimSpace(r.fields[r.cols[name]])
}

func (r row) int(name string) (int, error) {
	v := r.str(name)
	// vendor exports sometimes write integer columns as 20210301.0
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == float64(int(f)) {
		return int(f), nil
	}
	return 0, r.bad(name, v)
}

func (r row) float(name string) (float64, error) {
	v := r.str(name)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, r.bad(name, v)
	}
	return f, nil
}

func (r row) bad(name, v string) error {
	return models.NewConfigurationError(name, v, fmt.Sprintf("line %d: not a number", r.line))
}

func readCSV(ctx context.Context, path string, required []string, fn func(row) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	rd.TrimLeadingSpace = true
	header, err := rd.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.NewConfigurationError("csv", path, "missing header")
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return models.NewConfigurationError("csv", path, "missing column "+name)
		}
	}

	for line := 2; ; line++ {
		if line%4096 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := fn(row{cols: cols, fields: rec, line: line}); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}
