// Package report собирает результаты заданий в сравнительный отчёт по схемам и файлам.
package report

import (
	"sort"
	"time"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/runner"
	"github.com/artemshloyda/tempobench/internal/scanner"
)

const bytesPerMB = 1024 * 1024

// Input - всё, что нужно для построения отчёта.
type Input struct {
	RunID     string
	StartedAt time.Time
	Request   config.Request

	// Schemes - имена схем в порядке объявления.
	Schemes []string

	// Files - обработанные (не пропущенные) файлы.
	Files []scanner.File

	// Skipped - пропущенные на этапе сканирования файлы.
	Skipped []scanner.Entry

	Results []runner.JobResult

	// Wall - общее время прогона.
	Wall time.Duration
}

// SchemeStats - сводка по одной схеме.
type SchemeStats struct {
	Scheme         string  `json:"scheme" yaml:"scheme"`
	Succeeded      int     `json:"succeeded" yaml:"succeeded"`
	Failed         int     `json:"failed" yaml:"failed"`
	TotalSeconds   float64 `json:"total_seconds" yaml:"total_seconds"`
	AverageSeconds float64 `json:"average_seconds" yaml:"average_seconds"`
	ThroughputMBps float64 `json:"throughput_mbps" yaml:"throughput_mbps"`
}

// Outcome - результат одной схемы для файла.
type Outcome struct {
	Scheme         string  `json:"scheme" yaml:"scheme"`
	Success        bool    `json:"success" yaml:"success"`
	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	ThroughputMBps float64 `json:"throughput_mbps" yaml:"throughput_mbps"`
	Error          string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// FileStats - сводка по одному файлу.
type FileStats struct {
	FileID       int       `json:"file_id" yaml:"file_id"`
	File         string    `json:"file" yaml:"file"`
	SizeBytes    int64     `json:"size_bytes" yaml:"size_bytes"`
	TotalSeconds float64   `json:"total_seconds" yaml:"total_seconds"`
	Outcomes     []Outcome `json:"outcomes" yaml:"outcomes"`
}

// JobRef указывает на одно задание.
type JobRef struct {
	File           string  `json:"file" yaml:"file"`
	Scheme         string  `json:"scheme" yaml:"scheme"`
	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
}

// SkippedFile - файл, исключённый на этапе сканирования.
type SkippedFile struct {
	File   string `json:"file" yaml:"file"`
	Reason string `json:"reason" yaml:"reason"`
}

// Summary - общая сводка прогона.
type Summary struct {
	FilesAttempted int     `json:"files_attempted" yaml:"files_attempted"`
	FilesProcessed int     `json:"files_processed" yaml:"files_processed"`
	FilesSkipped   int     `json:"files_skipped" yaml:"files_skipped"`
	Jobs           int     `json:"jobs" yaml:"jobs"`
	Succeeded      int     `json:"succeeded" yaml:"succeeded"`
	Failed         int     `json:"failed" yaml:"failed"`
	TotalBytes     int64   `json:"total_bytes" yaml:"total_bytes"`
	WallSeconds    float64 `json:"wall_seconds" yaml:"wall_seconds"`
	ThroughputMBps float64 `json:"throughput_mbps" yaml:"throughput_mbps"`
	Fastest        *JobRef `json:"fastest,omitempty" yaml:"fastest,omitempty"`
	Slowest        *JobRef `json:"slowest,omitempty" yaml:"slowest,omitempty"`
}

// RunReport - итоговый отчёт. Строится один раз после завершения всех заданий.
type RunReport struct {
	RunID     string         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	StartedAt time.Time      `json:"started_at" yaml:"started_at"`
	Request   config.Request `json:"request" yaml:"request"`
	Schemes   []string       `json:"schemes" yaml:"schemes"`
	Summary   Summary        `json:"summary" yaml:"summary"`
	PerScheme []SchemeStats  `json:"per_scheme" yaml:"per_scheme"`
	PerFile   []FileStats    `json:"per_file" yaml:"per_file"`
	Skipped   []SkippedFile  `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	Results []runner.JobResult `json:"results" yaml:"results"`
}

// Aggregate строит отчёт. Входные данные не изменяются.
func Aggregate(in Input) *RunReport {
	order := make(map[string]int, len(in.Schemes))
	for i, name := range in.Schemes {
		order[name] = i
	}

	results := append([]runner.JobResult(nil), in.Results...)
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].FileID != results[j].FileID {
			return results[i].FileID < results[j].FileID
		}
		return schemeRank(order, results[i].Scheme) < schemeRank(order, results[j].Scheme)
	})

	rep := &RunReport{
		RunID:     in.RunID,
		StartedAt: in.StartedAt,
		Request:   in.Request,
		Schemes:   append([]string(nil), in.Schemes...),
		Results:   results,
	}

	rep.PerScheme = perScheme(in.Schemes, results)
	rep.PerFile = perFile(in.Files, results)

	for _, e := range in.Skipped {
		rel := e.RelPath
		if rel == "" {
			rel = e.Path
		}
		rep.Skipped = append(rep.Skipped, SkippedFile{File: rel, Reason: e.Reason})
	}

	rep.Summary = summarize(in, results)
	return rep
}

func schemeRank(order map[string]int, name string) int {
	if i, ok := order[name]; ok {
		return i
	}
	return len(order)
}

func perScheme(schemes []string, results []runner.JobResult) []SchemeStats {
	stats := make([]SchemeStats, len(schemes))
	index := make(map[string]int, len(schemes))
	for i, name := range schemes {
		stats[i].Scheme = name
		index[name] = i
	}

	sizes := make([]int64, len(schemes))
	successSeconds := make([]float64, len(schemes))
	successElapsed := make([]time.Duration, len(schemes))
	for _, r := range results {
		i, ok := index[r.Scheme]
		if !ok {
			continue
		}
		st := &stats[i]
		st.TotalSeconds += r.ElapsedSeconds
		if r.Success {
			st.Succeeded++
			sizes[i] += r.SizeBytes
			successSeconds[i] += r.ElapsedSeconds
			successElapsed[i] += r.Elapsed()
		} else {
			st.Failed++
		}
	}

	// Среднее только по успешным; без успешных остаётся 0
	for i := range stats {
		if stats[i].Succeeded == 0 {
			continue
		}
		stats[i].AverageSeconds = successSeconds[i] / float64(stats[i].Succeeded)
		stats[i].ThroughputMBps = runner.Throughput(sizes[i], successElapsed[i])
	}

	return stats
}

func perFile(files []scanner.File, results []runner.JobResult) []FileStats {
	byID := make(map[int]int, len(files))
	stats := make([]FileStats, len(files))
	for i, f := range files {
		stats[i] = FileStats{FileID: f.Index, File: f.RelPath, SizeBytes: f.Size}
		byID[f.Index] = i
	}

	// results уже упорядочены по схемам
	for _, r := range results {
		i, ok := byID[r.FileID]
		if !ok {
			continue
		}
		st := &stats[i]
		st.TotalSeconds += r.ElapsedSeconds
		st.Outcomes = append(st.Outcomes, Outcome{
			Scheme:         r.Scheme,
			Success:        r.Success,
			ElapsedSeconds: r.ElapsedSeconds,
			ThroughputMBps: r.ThroughputMBps,
			Error:          r.Error,
		})
	}

	sort.SliceStable(stats, func(i, j int) bool { return stats[i].FileID < stats[j].FileID })
	return stats
}

func summarize(in Input, results []runner.JobResult) Summary {
	s := Summary{
		FilesProcessed: len(in.Files),
		FilesSkipped:   len(in.Skipped),
		Jobs:           len(results),
		WallSeconds:    in.Wall.Seconds(),
	}
	s.FilesAttempted = s.FilesProcessed + s.FilesSkipped

	for _, f := range in.Files {
		s.TotalBytes += f.Size
	}
	if s.WallSeconds > 0 {
		s.ThroughputMBps = float64(s.TotalBytes) / bytesPerMB / s.WallSeconds
	}

	for _, r := range results {
		if !r.Success {
			s.Failed++
			continue
		}
		s.Succeeded++

		ref := &JobRef{File: r.File, Scheme: r.Scheme, ElapsedSeconds: r.ElapsedSeconds}
		if s.Fastest == nil || r.ElapsedSeconds < s.Fastest.ElapsedSeconds {
			s.Fastest = ref
		}
		if s.Slowest == nil || r.ElapsedSeconds > s.Slowest.ElapsedSeconds {
			s.Slowest = ref
		}
	}

	return s
}
