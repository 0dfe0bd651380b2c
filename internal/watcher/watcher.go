// Package watcher следит за входной директорией и отдаёт новые WAV файлы.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/scanner"
)

// Inspector проверяет файл перед обработкой.
type Inspector interface {
	Inspect(ctx context.Context, path string) scanner.Entry
}

// Watcher следит за директорией и отправляет проверенные файлы в канал.
type Watcher struct {
	cfg       *config.Config
	inspector Inspector
	watcher   *fsnotify.Watcher

	// debounceTime - сколько файл должен не меняться перед обработкой.
	debounceTime time.Duration

	// pending - путь -> время последнего события. Доступ только из цикла событий.
	pending map[string]time.Time

	outAbs string

	// nextIndex - индекс следующего файла; продолжает нумерацию каталога.
	nextIndex int
}

// New создаёт Watcher. startIndex - первый свободный индекс файла.
func New(cfg *config.Config, inspector Inspector, startIndex int) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("не удалось создать watcher: %w", err)
	}

	outAbs, _ := filepath.Abs(cfg.OutputDir)

	return &Watcher{
		cfg:          cfg,
		inspector:    inspector,
		watcher:      w,
		debounceTime: 500 * time.Millisecond,
		pending:      make(map[string]time.Time),
		outAbs:       outAbs,
		nextIndex:    startIndex,
	}, nil
}

// SetDebounceTime устанавливает время debounce.
func (w *Watcher) SetDebounceTime(d time.Duration) {
	w.debounceTime = d
}

// Watch запускает слежение. Канал закрывается после отмены ctx.
// Пропущенные файлы тоже отправляются (Entry.Skipped), чтобы их можно было показать.
func (w *Watcher) Watch(ctx context.Context) (<-chan scanner.Entry, error) {
	if err := w.addDirs(w.cfg.InputDir); err != nil {
		_ = w.watcher.Close()
		return nil, err
	}

	entries := make(chan scanner.Entry, 16)
	go w.loop(ctx, entries)

	return entries, nil
}

// addDirs добавляет директорию (и поддиректории в рекурсивном режиме).
func (w *Watcher) addDirs(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignoredDir(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("не удалось добавить директорию %s: %w", path, err)
		}
		if path != root && !w.cfg.Recursive {
			return filepath.SkipDir
		}
		return nil
	})
}

func (w *Watcher) ignoredDir(path string) bool {
	if !w.cfg.Recursive || strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	abs, err := filepath.Abs(path)
	return err == nil && abs == w.outAbs
}

// ignoredFile отсекает служебные и собственные файлы.
func (w *Watcher) ignoredFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.Contains(base, ".running.") {
		return true
	}
	if !w.cfg.HasInputExtension(filepath.Ext(path)) {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == w.outAbs || strings.HasPrefix(abs, w.outAbs+string(filepath.Separator))
}

// loop - единственная горутина, владеющая pending и каналом entries.
func (w *Watcher) loop(ctx context.Context, entries chan<- scanner.Entry) {
	defer close(entries)
	defer func() { _ = w.watcher.Close() }()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "⚠️  Ошибка watcher: %v\n", err)

		case <-ticker.C:
			if !w.flush(ctx, entries) {
				return
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !w.ignoredDir(event.Name) {
			_ = w.addDirs(event.Name)
		}
		return
	}

	if w.ignoredFile(event.Name) {
		return
	}

	w.pending[event.Name] = time.Now()
}

// flush отправляет файлы, которые не менялись debounceTime. false - ctx отменён.
func (w *Watcher) flush(ctx context.Context, entries chan<- scanner.Entry) bool {
	now := time.Now()
	for path, last := range w.pending {
		if now.Sub(last) < w.debounceTime {
			continue
		}
		delete(w.pending, path)

		entry := w.inspector.Inspect(ctx, path)
		if !entry.Skipped {
			entry.Index = w.nextIndex
			w.nextIndex++
		}

		select {
		case entries <- entry:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

/*
Возможные расширения:
- Флаг --watch-debounce для SetDebounceTime
*/
