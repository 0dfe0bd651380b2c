// Package toolfinder отвечает за поиск внешних инструментов (ffmpeg, ffprobe, rubberband).
package toolfinder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound возвращается, когда инструмент не найден ни в одном из мест.
var ErrNotFound = errors.New("инструмент не найден")

// ToolInfo содержит информацию о найденном инструменте.
type ToolInfo struct {
	// Name - имя инструмента (ffmpeg, ffprobe, rubberband).
	Name string

	// Path - абсолютный путь к бинарнику.
	Path string

	// Version - версия из вывода -version / --version.
	Version string
}

// Finder ищет бинарник инструмента.
type Finder struct {
	// Name - имя инструмента.
	Name string

	// CustomPath - пользовательский путь (из флага или конфига).
	CustomPath string

	// EnvVar - переменная окружения с путём к инструменту.
	EnvVar string

	// VersionArg - аргумент для получения версии.
	VersionArg string
}

// NewFinder создаёт Finder для инструмента name.
func NewFinder(name, customPath string) *Finder {
	versionArg := "-version"
	if name == "rubberband" {
		versionArg = "--version"
	}
	return &Finder{
		Name:       name,
		CustomPath: customPath,
		EnvVar:     "TEMPOBENCH_" + strings.ToUpper(name),
		VersionArg: versionArg,
	}
}

// Find ищет инструмент в следующем порядке:
// 1. CustomPath (если задан)
// 2. Переменная окружения TEMPOBENCH_<NAME>
// 3. PATH
// 4. Рядом с исполняемым файлом в ./bin/<os-arch>/
func (f *Finder) Find() (*ToolInfo, error) {
	var candidates []string

	if f.CustomPath != "" {
		candidates = append(candidates, f.CustomPath)
	}

	if envPath := os.Getenv(f.EnvVar); envPath != "" {
		candidates = append(candidates, envPath)
	}

	if p, err := exec.LookPath(f.Name); err == nil {
		candidates = append(candidates, p)
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		platformDir := fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
		bin := binaryName(f.Name)
		candidates = append(candidates,
			filepath.Join(execDir, "bin", platformDir, bin),
			filepath.Join(execDir, "bin", bin),
		)
	}

	for _, path := range candidates {
		if info, err := f.check(path); err == nil {
			return info, nil
		}
	}

	return nil, fmt.Errorf("%w: %s. Проверьте:\n"+
		"  1. Установлен ли %s в системе и доступен ли в PATH\n"+
		"  2. Установлена ли переменная окружения %s\n"+
		"  3. Указан ли путь через флаг --%s-path\n"+
		"  4. Находится ли бинарник рядом с утилитой в ./bin/<os-arch>/",
		ErrNotFound, f.Name, f.Name, f.EnvVar, f.Name)
}

// check проверяет, что path - рабочий бинарник.
func (f *Finder) check(path string) (*ToolInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("файл не найден: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось получить абсолютный путь: %w", err)
	}

	// rubberband печатает версию в stderr, поэтому читаем оба потока
	// #nosec G204 - путь из конфигурации или PATH
	output, err := exec.Command(absPath, f.VersionArg).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("не удалось выполнить %s %s: %w", f.Name, f.VersionArg, err)
	}

	return &ToolInfo{
		Name:    f.Name,
		Path:    absPath,
		Version: parseVersion(f.Name, string(output)),
	}, nil
}

// parseVersion извлекает версию из первой строки вывода.
// Примеры: "ffmpeg version 6.1.1 Copyright ...", "3.3.0".
func parseVersion(name, output string) string {
	line := strings.TrimSpace(output)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}

	if rest, ok := strings.CutPrefix(line, name+" version "); ok {
		if fields := strings.Fields(rest); len(fields) > 0 {
			return fields[0]
		}
	}
	if rest, ok := strings.CutPrefix(line, name+"-"); ok {
		return rest
	}

	return line
}

// binaryName возвращает имя бинарника для текущей ОС.
func binaryName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// Filters возвращает набор фильтров, поддерживаемых ffmpeg.
func (t *ToolInfo) Filters(ctx context.Context) (map[string]bool, error) {
	// #nosec G204 - путь найден Finder
	output, err := exec.CommandContext(ctx, t.Path, "-hide_banner", "-filters").Output()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить список фильтров %s: %w", t.Name, err)
	}
	return ParseFilters(string(output)), nil
}

// ParseFilters разбирает вывод "ffmpeg -filters".
// Строки фильтров имеют вид: " ..C atempo            A->A       Adjust audio tempo."
// Строки легенды ("T.. = Timeline support") не содержат "->" и пропускаются.
func ParseFilters(output string) map[string]bool {
	filters := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !strings.Contains(fields[2], "->") {
			continue
		}
		filters[fields[1]] = true
	}

	return filters
}
