package storage

import (
	"strings"
	"time"
)

// Run - запись об одном запуске.
type Run struct {
	ID             string  `db:"id"`
	StartedAt      int64   `db:"started_at"`
	FinishedAt     int64   `db:"finished_at"`
	InputDir       string  `db:"input_dir"`
	OutputDir      string  `db:"output_dir"`
	PitchRatio     float64 `db:"pitch_ratio"`
	TimeScale      float64 `db:"time_scale"`
	Format         string  `db:"format"`
	RequestHash    string  `db:"request_hash"`
	Schemes        string  `db:"schemes"`
	Workers        int     `db:"workers"`
	FilesProcessed int     `db:"files_processed"`
	FilesSkipped   int     `db:"files_skipped"`
	Jobs           int     `db:"jobs"`
	Succeeded      int     `db:"succeeded"`
	Failed         int     `db:"failed"`
	TotalBytes     int64   `db:"total_bytes"`
	WallSeconds    float64 `db:"wall_seconds"`
	ThroughputMBps float64 `db:"throughput_mbps"`
}

// Started возвращает время начала запуска.
func (r Run) Started() time.Time {
	return time.Unix(r.StartedAt, 0)
}

// SchemeList возвращает схемы запуска списком.
func (r Run) SchemeList() []string {
	if r.Schemes == "" {
		return nil
	}
	return strings.Split(r.Schemes, ",")
}

// JobRow - результат задания в истории.
type JobRow struct {
	ID             int64   `db:"id"`
	RunID          string  `db:"run_id"`
	FileID         int     `db:"file_id"`
	File           string  `db:"file"`
	Scheme         string  `db:"scheme"`
	Success        bool    `db:"success"`
	ElapsedSeconds float64 `db:"elapsed_seconds"`
	ThroughputMBps float64 `db:"throughput_mbps"`
	SizeBytes      int64   `db:"size_bytes"`
	Output         string  `db:"output"`
	Error          string  `db:"error"`
}

// SkippedRow - пропущенный файл в истории.
type SkippedRow struct {
	ID     int64  `db:"id"`
	RunID  string `db:"run_id"`
	File   string `db:"file"`
	Reason string `db:"reason"`
}

// SchemeRun - показатели одной схемы в одном запуске.
type SchemeRun struct {
	RunID          string  `db:"run_id"`
	StartedAt      int64   `db:"started_at"`
	RequestHash    string  `db:"request_hash"`
	Succeeded      int     `db:"succeeded"`
	Failed         int     `db:"failed"`
	AverageSeconds float64 `db:"average_seconds"`
	ThroughputMBps float64 `db:"throughput_mbps"`
}

// Started возвращает время начала запуска.
func (r SchemeRun) Started() time.Time {
	return time.Unix(r.StartedAt, 0)
}

// Meta - параметры запуска, которых нет в отчёте.
type Meta struct {
	InputDir    string
	Workers     int
	RequestHash string
	FinishedAt  time.Time
}
