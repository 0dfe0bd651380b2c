package storage

// migrations содержит SQL-миграции в порядке выполнения.
var migrations = []string{
	// Миграция 1: запуски
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		input_dir TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		pitch_ratio REAL NOT NULL,
		time_scale REAL NOT NULL,
		format TEXT NOT NULL,
		request_hash TEXT NOT NULL,
		schemes TEXT NOT NULL,
		workers INTEGER NOT NULL,
		files_processed INTEGER NOT NULL,
		files_skipped INTEGER NOT NULL,
		jobs INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		total_bytes INTEGER NOT NULL,
		wall_seconds REAL NOT NULL,
		throughput_mbps REAL NOT NULL
	);`,

	// Миграция 2: результаты заданий, по одному на пару (файл, схема) в запуске
	`CREATE TABLE IF NOT EXISTS job_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		file_id INTEGER NOT NULL,
		file TEXT NOT NULL,
		scheme TEXT NOT NULL,
		success INTEGER NOT NULL,
		elapsed_seconds REAL NOT NULL,
		throughput_mbps REAL NOT NULL,
		size_bytes INTEGER NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);`,

	`CREATE UNIQUE INDEX IF NOT EXISTS ux_job_results_pair
	ON job_results (run_id, file_id, scheme);`,

	`CREATE INDEX IF NOT EXISTS ix_job_results_scheme ON job_results (scheme);`,

	// Миграция 3: пропущенные при сканировании файлы
	`CREATE TABLE IF NOT EXISTS skipped_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		file TEXT NOT NULL,
		reason TEXT NOT NULL
	);`,

	`CREATE INDEX IF NOT EXISTS ix_runs_started ON runs (started_at);`,

	// Миграция 4: версия схемы
	`CREATE TABLE IF NOT EXISTS schema_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`,

	`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', '1');`,
}

// GetMigrations возвращает список SQL-миграций.
func GetMigrations() []string {
	return migrations
}
