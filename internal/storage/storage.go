// Package storage хранит историю запусков в SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/artemshloyda/tempobench/internal/report"
)

// ErrRunNotFound возвращается, если запуска с таким ID нет.
var ErrRunNotFound = errors.New("запуск не найден")

// Storage предоставляет методы для работы с историей запусков.
type Storage struct {
	db *sqlx.DB
}

// New открывает (или создаёт) базу и выполняет миграции.
func New(dbPath string) (*Storage, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию для БД: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on", dbPath)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть БД: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
	}

	// SQLite не поддерживает параллельную запись
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Storage{db: db}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("не удалось выполнить миграции: %w", err)
	}

	return s, nil
}

func (s *Storage) migrate(ctx context.Context) error {
	for i, m := range GetMigrations() {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("миграция %d: %w", i+1, err)
		}
	}
	return nil
}

// Close закрывает подключение к БД.
func (s *Storage) Close() error {
	return s.db.Close()
}

// NewRun строит запись запуска из отчёта. Пустой RunID отчёта заменяется новым UUID.
func NewRun(rep *report.RunReport, meta Meta) Run {
	id := rep.RunID
	if id == "" {
		id = uuid.NewString()
	}

	finished := meta.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	sum := rep.Summary
	return Run{
		ID:             id,
		StartedAt:      rep.StartedAt.Unix(),
		FinishedAt:     finished.Unix(),
		InputDir:       meta.InputDir,
		OutputDir:      rep.Request.OutputDir,
		PitchRatio:     rep.Request.PitchRatio,
		TimeScale:      rep.Request.TimeScale,
		Format:         string(rep.Request.Format),
		RequestHash:    meta.RequestHash,
		Schemes:        strings.Join(rep.Schemes, ","),
		Workers:        meta.Workers,
		FilesProcessed: sum.FilesProcessed,
		FilesSkipped:   sum.FilesSkipped,
		Jobs:           sum.Jobs,
		Succeeded:      sum.Succeeded,
		Failed:         sum.Failed,
		TotalBytes:     sum.TotalBytes,
		WallSeconds:    sum.WallSeconds,
		ThroughputMBps: sum.ThroughputMBps,
	}
}

// SaveRun сохраняет запуск, результаты заданий и пропущенные файлы в одной транзакции.
func (s *Storage) SaveRun(ctx context.Context, rep *report.RunReport, meta Meta) (Run, error) {
	run := NewRun(rep, meta)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, input_dir, output_dir, pitch_ratio, time_scale,
		                  format, request_hash, schemes, workers, files_processed, files_skipped,
		                  jobs, succeeded, failed, total_bytes, wall_seconds, throughput_mbps)
		VALUES (:id, :started_at, :finished_at, :input_dir, :output_dir, :pitch_ratio, :time_scale,
		        :format, :request_hash, :schemes, :workers, :files_processed, :files_skipped,
		        :jobs, :succeeded, :failed, :total_bytes, :wall_seconds, :throughput_mbps)
	`, run)
	if err != nil {
		return Run{}, fmt.Errorf("не удалось сохранить запуск: %w", err)
	}

	for _, r := range rep.Results {
		row := JobRow{
			RunID:          run.ID,
			FileID:         r.FileID,
			File:           r.File,
			Scheme:         r.Scheme,
			Success:        r.Success,
			ElapsedSeconds: r.ElapsedSeconds,
			ThroughputMBps: r.ThroughputMBps,
			SizeBytes:      r.SizeBytes,
			Output:         r.Output,
			Error:          r.Error,
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO job_results (run_id, file_id, file, scheme, success, elapsed_seconds,
			                         throughput_mbps, size_bytes, output, error)
			VALUES (:run_id, :file_id, :file, :scheme, :success, :elapsed_seconds,
			        :throughput_mbps, :size_bytes, :output, :error)
		`, row)
		if err != nil {
			return Run{}, fmt.Errorf("не удалось сохранить результат %s [%s]: %w", r.File, r.Scheme, err)
		}
	}

	for _, sk := range rep.Skipped {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO skipped_files (run_id, file, reason) VALUES (?, ?, ?)",
			run.ID, sk.File, sk.Reason,
		)
		if err != nil {
			return Run{}, fmt.Errorf("не удалось сохранить пропущенный файл %s: %w", sk.File, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("не удалось завершить транзакцию: %w", err)
	}

	return run, nil
}

// ListRuns возвращает последние запуски, новые первыми. limit <= 0 - все.
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT * FROM runs ORDER BY started_at DESC, rowid DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("не удалось прочитать запуски: %w", err)
	}
	return runs, nil
}

// GetRun возвращает запуск по ID (допускается уникальный префикс).
func (s *Storage) GetRun(ctx context.Context, id string) (Run, error) {
	var runs []Run
	err := s.db.SelectContext(ctx, &runs, "SELECT * FROM runs WHERE id LIKE ? LIMIT 2", id+"%")
	if err != nil {
		return Run{}, fmt.Errorf("не удалось прочитать запуск: %w", err)
	}
	switch len(runs) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return runs[0], nil
	default:
		return Run{}, fmt.Errorf("префикс %s неоднозначен", id)
	}
}

// RunJobs возвращает результаты заданий запуска по файлам.
func (s *Storage) RunJobs(ctx context.Context, runID string) ([]JobRow, error) {
	rows := []JobRow{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM job_results WHERE run_id = ? ORDER BY file_id, id", runID)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать результаты: %w", err)
	}
	return rows, nil
}

// RunSkipped возвращает пропущенные файлы запуска.
func (s *Storage) RunSkipped(ctx context.Context, runID string) ([]SkippedRow, error) {
	rows := []SkippedRow{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM skipped_files WHERE run_id = ? ORDER BY id", runID)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать пропущенные файлы: %w", err)
	}
	return rows, nil
}

// SchemeHistory возвращает показатели схемы по запускам, новые первыми.
func (s *Storage) SchemeHistory(ctx context.Context, scheme string, limit int) ([]SchemeRun, error) {
	query := `
		SELECT r.id AS run_id, r.started_at, r.request_hash,
		       SUM(CASE WHEN j.success THEN 1 ELSE 0 END) AS succeeded,
		       SUM(CASE WHEN j.success THEN 0 ELSE 1 END) AS failed,
		       COALESCE(AVG(CASE WHEN j.success THEN j.elapsed_seconds END), 0.0) AS average_seconds,
		       COALESCE(SUM(CASE WHEN j.success THEN j.size_bytes END) / 1048576.0
		                / NULLIF(SUM(CASE WHEN j.success THEN j.elapsed_seconds END), 0), 0.0) AS throughput_mbps
		FROM job_results j
		JOIN runs r ON r.id = j.run_id
		WHERE j.scheme = ?
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.rowid DESC
	`
	args := []interface{}{scheme}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	history := []SchemeRun{}
	if err := s.db.SelectContext(ctx, &history, query, args...); err != nil {
		return nil, fmt.Errorf("не удалось прочитать историю схемы %s: %w", scheme, err)
	}
	return history, nil
}

// DeleteRun удаляет запуск вместе с результатами.
func (s *Storage) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("не удалось удалить запуск: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetStats возвращает количество запусков и заданий в истории.
func (s *Storage) GetStats(ctx context.Context) (runs, jobs int64, err error) {
	if err = s.db.GetContext(ctx, &runs, "SELECT COUNT(*) FROM runs"); err != nil {
		return 0, 0, err
	}
	if err = s.db.GetContext(ctx, &jobs, "SELECT COUNT(*) FROM job_results"); err != nil {
		return 0, 0, err
	}
	return runs, jobs, nil
}

/*
Возможные расширения:
- Добавить команду очистки запусков старше N дней
- Индекс по (scheme, started_at) для больших историй
*/
