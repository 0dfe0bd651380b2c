// Package scanner отвечает за поиск входных аудиофайлов.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/probe"
)

// ErrNoInputFiles возвращается, когда в директории нет файлов для обработки.
var ErrNoInputFiles = errors.New("входные файлы не найдены")

// File представляет входной файл, пригодный для обработки.
type File struct {
	// Index - порядковый номер в каталоге, идентификатор файла в результатах.
	Index int

	// Path - абсолютный путь к файлу.
	Path string

	// RelPath - относительный путь от входной директории.
	RelPath string

	// Size - размер файла в байтах.
	Size int64

	// SampleRate - частота дискретизации в Гц.
	SampleRate int
}

// SizeMB возвращает размер файла в мебибайтах.
func (f File) SizeMB() float64 {
	return float64(f.Size) / (1024 * 1024)
}

// Entry - результат проверки одного кандидата.
type Entry struct {
	File

	// Skipped - файл исключён из обработки.
	Skipped bool

	// Reason - человекочитаемая причина пропуска.
	Reason string
}

// Catalog содержит результат полного сканирования.
type Catalog struct {
	// Files - файлы для обработки в порядке обнаружения.
	Files []File

	// Skipped - пропущенные файлы с причинами.
	Skipped []Entry
}

// Scanner ищет входные файлы в директории.
type Scanner struct {
	cfg    *config.Config
	prober probe.Prober
}

// New создаёт новый Scanner.
func New(cfg *config.Config, prober probe.Prober) *Scanner {
	return &Scanner{cfg: cfg, prober: prober}
}

// Discover запускает сканирование и отправляет найденные файлы в канал.
// Канал закрывается после завершения. Каждый вызов сканирует директорию заново.
func (s *Scanner) Discover(ctx context.Context) (<-chan Entry, <-chan error) {
	entries := make(chan Entry, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errs)

		index := 0
		err := s.walk(func(path string) error {
			entry := s.Inspect(ctx, path)
			if !entry.Skipped {
				entry.Index = index
				index++
			}

			select {
			case entries <- entry:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		if err != nil {
			errs <- err
		}
	}()

	return entries, errs
}

// Collect сканирует директорию целиком и возвращает каталог.
func (s *Scanner) Collect(ctx context.Context) (*Catalog, error) {
	entries, errs := s.Discover(ctx)

	catalog := &Catalog{}
	for entry := range entries {
		if entry.Skipped {
			catalog.Skipped = append(catalog.Skipped, entry)
			continue
		}
		catalog.Files = append(catalog.Files, entry.File)
	}

	if err := <-errs; err != nil {
		return nil, err
	}

	return catalog, nil
}

// CountFiles возвращает количество кандидатов (для progress bar).
func (s *Scanner) CountFiles() (int64, error) {
	var count int64
	err := s.walk(func(string) error {
		count++
		return nil
	})
	return count, err
}

// Inspect проверяет один файл: доступность, размер и частоту дискретизации.
func (s *Scanner) Inspect(ctx context.Context, path string) Entry {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	relPath, err := filepath.Rel(s.cfg.InputDir, path)
	if err != nil {
		relPath = filepath.Base(path)
	}

	entry := Entry{File: File{Path: absPath, RelPath: relPath}}

	info, err := os.Stat(absPath)
	if err != nil {
		return skip(entry, fmt.Sprintf("не удалось получить информацию: %v", err))
	}
	if !info.Mode().IsRegular() {
		return skip(entry, "не обычный файл")
	}
	entry.Size = info.Size()

	if entry.Size == 0 {
		return skip(entry, "пустой файл")
	}

	if err := checkReadable(absPath); err != nil {
		return skip(entry, fmt.Sprintf("файл недоступен для чтения: %v", err))
	}

	rate, err := s.prober.SampleRate(ctx, absPath)
	if err != nil {
		return skip(entry, fmt.Sprintf("частота дискретизации не определена: %v", err))
	}
	if rate <= 0 {
		return skip(entry, "частота дискретизации не определена")
	}
	entry.SampleRate = rate

	return entry
}

// walk обходит входную директорию и вызывает fn для каждого кандидата.
func (s *Scanner) walk(fn func(path string) error) error {
	outAbs, _ := filepath.Abs(s.cfg.OutputDir)
	inAbs, _ := filepath.Abs(s.cfg.InputDir)

	return filepath.WalkDir(s.cfg.InputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == s.cfg.InputDir {
				return err
			}
			fmt.Fprintf(os.Stderr, "Предупреждение: не удалось прочитать %s: %v\n", path, err)
			return nil
		}

		if d.IsDir() {
			if path == s.cfg.InputDir {
				return nil
			}
			if !s.cfg.Recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			// Не сканируем собственные результаты
			if abs, err := filepath.Abs(path); err == nil && abs == outAbs && abs != inAbs {
				return filepath.SkipDir
			}
			return nil
		}

		// Пропускаем macOS metadata файлы (._*) и незавершённые результаты
		base := filepath.Base(path)
		if strings.HasPrefix(base, "._") || strings.Contains(base, ".running.") {
			return nil
		}

		if !s.cfg.HasInputExtension(filepath.Ext(path)) {
			return nil
		}

		return fn(path)
	})
}

// checkReadable открывает файл и читает первый байт.
func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	var b [1]byte
	if _, err := f.Read(b[:]); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func skip(entry Entry, reason string) Entry {
	entry.Skipped = true
	entry.Reason = reason
	return entry
}
