package worker

import (
	"context"
	"sync"
	"time"
)

// MemoryFactor - оценка памяти на задание относительно размера входного файла.
// Встроенный движок держит все каналы во float64: для 16-битного PCM это
// вчетверо больше входа, плюс промежуточные буферы сдвига и ресемплинга.
const MemoryFactor = 12

// MemoryLimiter ограничивает суммарную оценку памяти одновременно выполняемых заданий.
type MemoryLimiter struct {
	// maxMemoryBytes - максимальное использование памяти в байтах.
	maxMemoryBytes uint64

	// mu защищает currentUsage.
	mu sync.Mutex

	// currentUsage - текущее зарезервированное использование памяти.
	currentUsage uint64

	// enabled - включено ли ограничение.
	enabled bool

	// pollInterval - пауза между попытками резервирования.
	pollInterval time.Duration
}

// NewMemoryLimiter создаёт MemoryLimiter.
// maxMemoryMB - ограничение в мегабайтах (0 = без ограничения).
func NewMemoryLimiter(maxMemoryMB int) *MemoryLimiter {
	if maxMemoryMB <= 0 {
		return &MemoryLimiter{enabled: false}
	}

	return &MemoryLimiter{
		maxMemoryBytes: uint64(maxMemoryMB) * 1024 * 1024,
		enabled:        true,
		pollInterval:   50 * time.Millisecond,
	}
}

// Acquire резервирует память под файл. Блокирует, пока резерв не поместится
// в лимит. Задание, которое больше лимита целиком, допускается только в
// одиночку. Возвращает функцию освобождения.
func (ml *MemoryLimiter) Acquire(ctx context.Context, fileSize int64) (release func(), err error) {
	if !ml.enabled {
		return func() {}, nil
	}

	estimated := uint64(fileSize) * MemoryFactor

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ml.mu.Lock()
		if ml.currentUsage == 0 || ml.currentUsage+estimated <= ml.maxMemoryBytes {
			ml.currentUsage += estimated
			ml.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					ml.mu.Lock()
					ml.currentUsage -= estimated
					ml.mu.Unlock()
				})
			}, nil
		}
		ml.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(ml.pollInterval):
		}
	}
}

// IsEnabled возвращает true, если ограничение включено.
func (ml *MemoryLimiter) IsEnabled() bool {
	return ml.enabled
}

// CurrentUsage возвращает текущее зарезервированное использование памяти.
func (ml *MemoryLimiter) CurrentUsage() uint64 {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return ml.currentUsage
}

// MaxMemory возвращает ограничение памяти.
func (ml *MemoryLimiter) MaxMemory() uint64 {
	return ml.maxMemoryBytes
}
