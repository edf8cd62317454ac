package repository

import "fmt"

// Schema returns the idempotent DDL for database db.
func Schema(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.futures_daily (
			code String, date UInt32,
			open Float64, high Float64, low Float64, close Float64,
			volume Float64, turnover Float64, factor Float64
		) ENGINE = ReplacingMergeTree ORDER BY (code, date)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.futures_minute (
			code String, date UInt32, time UInt16,
			open Float64, high Float64, low Float64, close Float64,
			volume Float64, turnover Float64
		) ENGINE = ReplacingMergeTree ORDER BY (code, date, time)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.futures_factor (
			code String, date UInt32, factor Float64
		) ENGINE = ReplacingMergeTree ORDER BY (code, date)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.north_flow (
			date UInt32, buy Float64, sell Float64
		) ENGINE = ReplacingMergeTree ORDER BY date`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.index_component_quote (
			index_code String, code String, date UInt32,
			close Float64, amount Float64, oi Float64
		) ENGINE = ReplacingMergeTree ORDER BY (index_code, code, date)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.backtest_runs (
			run_id String, run_key String, instrument String, variant String,
			frequency UInt16, started_at DateTime64(3), duration_ms Int64,
			params String, summary String
		) ENGINE = MergeTree ORDER BY (run_id)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.backtest_points (
			run_id String, seq UInt32, date UInt32, date_time DateTime64(3),
			open Float64, close Float64, factor Nullable(Float64),
			regime Int8, raw_sig Int8, sig Int8, pos Int8
		) ENGINE = MergeTree ORDER BY (run_id, seq)`, db),
	}
}
