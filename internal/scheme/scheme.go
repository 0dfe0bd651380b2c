// Package scheme описывает схемы обработки: какой инструмент и с какими
// аргументами выполняет растяжение/сдвиг высоты тона.
package scheme

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/artemshloyda/tempobench/internal/config"
	"github.com/artemshloyda/tempobench/internal/derive"
	"github.com/artemshloyda/tempobench/internal/scanner"
)

// ErrUnknownScheme возвращается для имени схемы, которой нет в реестре.
var ErrUnknownScheme = errors.New("неизвестная схема")

// Capabilities описывает возможности установленных инструментов.
type Capabilities struct {
	// FFmpegPath - путь к ffmpeg (пусто, если не найден).
	FFmpegPath string

	// FFmpegFilters - фильтры, поддерживаемые ffmpeg.
	FFmpegFilters map[string]bool

	// RubberbandPath - путь к rubberband CLI (пусто, если не найден).
	RubberbandPath string

	// RubberbandVersion - версия rubberband CLI.
	RubberbandVersion string

	// Format - запрошенный формат сэмплов.
	Format config.SampleFormat
}

// Invocation - конкретный вызов движка для одной пары (файл, схема).
type Invocation struct {
	// Program - имя внешней программы ("ffmpeg", "rubberband"); путь к ней
	// подставляет runner. Пусто для встроенного движка.
	Program string

	// Args - аргументы программы.
	Args []string

	// Output - итоговый путь результата.
	Output string

	// WorkPath - куда движок пишет результат до переименования в Output.
	WorkPath string

	// InProcess - встроенный движок; если задан, Program не используется.
	InProcess func(ctx context.Context) error
}

// CommandLine возвращает вызов в виде строки (для dry-run и логов).
func (inv Invocation) CommandLine() string {
	if inv.InProcess != nil {
		return "<in-process> -> " + inv.WorkPath
	}
	parts := append([]string{inv.Program}, inv.Args...)
	for i, p := range parts {
		if strings.ContainsAny(p, " \t'\"") {
			parts[i] = fmt.Sprintf("%q", p)
		}
	}
	return strings.Join(parts, " ")
}

// Scheme - одна стратегия растяжения.
type Scheme interface {
	// Name возвращает уникальное имя схемы.
	Name() string

	// Available проверяет, поддерживается ли схема установленными инструментами.
	// Второе значение - причина недоступности.
	Available(caps Capabilities) (bool, string)

	// Build строит вызов движка. Чистая функция от аргументов.
	Build(file scanner.File, params derive.Params, req config.Request) (Invocation, error)
}

// sourceExtension - расширение входа, которое не попадает в имя результата.
const sourceExtension = "wav"

// OutputPath строит детерминированный путь результата:
// <out>/<reldir>/<base>[_<srcext>]_p<pitch>_t<scale>_<scheme>.<ext>
// Любое исходное расширение, кроме "wav", остаётся в имени, поэтому
// take.wav, take.WAV и take.flac дают разные результаты.
func OutputPath(file scanner.File, req config.Request, schemeName string) string {
	rel := file.RelPath
	if rel == "" {
		rel = filepath.Base(file.Path)
	}
	ext := filepath.Ext(rel)
	base := strings.TrimSuffix(filepath.Base(rel), ext)
	if src := strings.TrimPrefix(ext, "."); src != "" && src != sourceExtension {
		base += "_" + src
	}
	name := fmt.Sprintf("%s_p%s_t%s_%s.%s",
		base,
		derive.FormatRatio(req.PitchRatio),
		derive.FormatRatio(req.TimeScale),
		schemeName,
		req.Format.Extension(),
	)
	return filepath.Join(req.OutputDir, filepath.Dir(rel), name)
}

// WorkPath возвращает временный путь рядом с итоговым, сохраняя расширение
// (ffmpeg определяет контейнер по расширению).
func WorkPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".running" + ext
}

// OutputClaims закрепляет пути результатов за входными файлами на время запуска.
// Два файла с одинаковым путём результата писали бы в один и тот же файл.
type OutputClaims struct {
	req config.Request

	mu     sync.Mutex
	owners map[string]scanner.File
}

// NewOutputClaims создаёт пустой набор для запроса.
func NewOutputClaims(req config.Request) *OutputClaims {
	return &OutputClaims{req: req, owners: make(map[string]scanner.File)}
}

// Claim закрепляет результаты за файлом. Если они уже принадлежат другому
// файлу, возвращает его относительный путь и false. Повторный Claim того же
// файла успешен.
func (c *OutputClaims) Claim(file scanner.File) (owner string, ok bool) {
	// Имя схемы - общий суффикс, совпадение для одной схемы означает совпадение для всех
	key := OutputPath(file, c.req, "")

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, taken := c.owners[key]; taken && prev.Path != file.Path {
		return prev.RelPath, false
	}
	c.owners[key] = file
	return "", true
}

// Filter оставляет первый файл для каждого пути результата, остальные
// возвращает пропущенными с причиной.
func (c *OutputClaims) Filter(files []scanner.File) ([]scanner.File, []scanner.Entry) {
	kept := make([]scanner.File, 0, len(files))
	var skipped []scanner.Entry
	for _, f := range files {
		if owner, ok := c.Claim(f); !ok {
			skipped = append(skipped, scanner.Entry{
				File:    f,
				Skipped: true,
				Reason:  fmt.Sprintf("результат совпадает с файлом %s", owner),
			})
			continue
		}
		kept = append(kept, f)
	}
	return kept, skipped
}

// Status - результат проверки доступности одной схемы.
type Status struct {
	Name      string
	Available bool
	Reason    string
}

// Registry содержит схемы в порядке объявления и их доступность.
type Registry struct {
	schemes []Scheme

	once   sync.Once
	status []Status
}

// Builtin возвращает все встроенные схемы в порядке объявления.
func Builtin() []Scheme {
	return []Scheme{
		FFmpegRubberband{},
		FFmpegAtempo{},
		FFmpegScaletempo{},
		RubberbandCLI{Engine: EngineR2},
		RubberbandCLI{Engine: EngineR3},
		AlgoDSP{},
	}
}

// Names возвращает имена встроенных схем.
func Names() []string {
	var names []string
	for _, s := range Builtin() {
		names = append(names, s.Name())
	}
	return names
}

// NewRegistry создаёт реестр из встроенных схем.
// names выбирает подмножество; пустой список - все схемы.
// Порядок всегда соответствует порядку объявления.
func NewRegistry(names []string) (*Registry, error) {
	if len(names) == 0 {
		return NewRegistryFrom(Builtin()...), nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.TrimSpace(n)] = true
	}

	var selected []Scheme
	for _, s := range Builtin() {
		if wanted[s.Name()] {
			selected = append(selected, s)
			delete(wanted, s.Name())
		}
	}

	if len(wanted) > 0 {
		var unknown []string
		for n := range wanted {
			unknown = append(unknown, n)
		}
		return nil, fmt.Errorf("%w: %s (доступны: %s)",
			ErrUnknownScheme, strings.Join(unknown, ", "), strings.Join(Names(), ", "))
	}

	return NewRegistryFrom(selected...), nil
}

// NewRegistryFrom создаёт реестр из произвольных схем.
func NewRegistryFrom(schemes ...Scheme) *Registry {
	return &Registry{schemes: schemes}
}

// Probe проверяет доступность всех схем. Выполняется один раз за запуск,
// повторные вызовы возвращают первый результат.
func (r *Registry) Probe(caps Capabilities) map[string]bool {
	r.once.Do(func() {
		for _, s := range r.schemes {
			ok, reason := s.Available(caps)
			r.status = append(r.status, Status{Name: s.Name(), Available: ok, Reason: reason})
		}
	})

	result := make(map[string]bool, len(r.status))
	for _, st := range r.status {
		result[st.Name] = st.Available
	}
	return result
}

// Status возвращает результат Probe в порядке объявления.
func (r *Registry) Status() []Status {
	return append([]Status(nil), r.status...)
}

// Enabled возвращает доступные схемы в порядке объявления.
// До вызова Probe возвращает пустой список.
func (r *Registry) Enabled() []Scheme {
	var enabled []Scheme
	for i, st := range r.status {
		if st.Available {
			enabled = append(enabled, r.schemes[i])
		}
	}
	return enabled
}

// All возвращает все схемы реестра.
func (r *Registry) All() []Scheme {
	return append([]Scheme(nil), r.schemes...)
}

/*
Возможные расширения:
- Схема sox (tempo + pitch) при наличии бинарника
- Варианты rubberband с --formant и --crisp как отдельные схемы
*/
