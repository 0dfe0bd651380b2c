package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/artemshloyda/tempobench/internal/derive"
)

// Форматы структурированного отчёта.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// WriteText выводит человекочитаемую сводку.
func WriteText(w io.Writer, rep *RunReport) error {
	s := rep.Summary

	fmt.Fprintf(w, "\n📊 Результаты (pitch=%s, scale=%s, формат %s)\n",
		derive.FormatRatio(rep.Request.PitchRatio), derive.FormatRatio(rep.Request.TimeScale), rep.Request.Format)
	fmt.Fprintf(w, "   Файлов: %d (обработано %d, пропущено %d)\n", s.FilesAttempted, s.FilesProcessed, s.FilesSkipped)
	fmt.Fprintf(w, "   Заданий: %d (успешно %d, ошибок %d)\n", s.Jobs, s.Succeeded, s.Failed)
	fmt.Fprintf(w, "   Объём: %.2f MiB, время: %.2fs, %.2f MiB/s\n",
		float64(s.TotalBytes)/bytesPerMB, s.WallSeconds, s.ThroughputMBps)

	if s.Fastest != nil {
		fmt.Fprintf(w, "   ⚡ Быстрее всех: %s [%s] %.3fs\n", s.Fastest.File, s.Fastest.Scheme, s.Fastest.ElapsedSeconds)
	}
	if s.Slowest != nil {
		fmt.Fprintf(w, "   🐢 Медленнее всех: %s [%s] %.3fs\n", s.Slowest.File, s.Slowest.Scheme, s.Slowest.ElapsedSeconds)
	}

	fmt.Fprintln(w, "\nПо схемам:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  СХЕМА\tOK\tОШИБОК\tВСЕГО, с\tСРЕДНЕЕ, с\tMiB/s")
	for _, st := range rep.PerScheme {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%.3f\t%.3f\t%.2f\n",
			st.Scheme, st.Succeeded, st.Failed, st.TotalSeconds, st.AverageSeconds, st.ThroughputMBps)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(rep.PerFile) > 0 {
		fmt.Fprintln(w, "\nПо файлам:")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  ФАЙЛ\tСХЕМА\tСТАТУС\tВРЕМЯ, с\tMiB/s")
		for _, f := range rep.PerFile {
			for _, o := range f.Outcomes {
				status := "✅"
				if !o.Success {
					status = "❌"
				}
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%.3f\t%.2f\n", f.File, o.Scheme, status, o.ElapsedSeconds, o.ThroughputMBps)
			}
			fmt.Fprintf(tw, "  %s\t%s\t\t%.3f\t\n", f.File, "итого", f.TotalSeconds)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(rep.Skipped) > 0 {
		fmt.Fprintln(w, "\nПропущены:")
		for _, sk := range rep.Skipped {
			fmt.Fprintf(w, "  ⏭️  %s: %s\n", sk.File, sk.Reason)
		}
	}

	return nil
}

// WriteJSON пишет отчёт целиком в JSON.
func WriteJSON(w io.Writer, rep *RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteYAML пишет отчёт целиком в YAML.
func WriteYAML(w io.Writer, rep *RunReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}

// WriteCSV пишет по строке на задание.
func WriteCSV(w io.Writer, rep *RunReport) error {
	cw := csv.NewWriter(w)

	header := []string{"run_id", "file_id", "file", "scheme", "success", "elapsed_seconds", "throughput_mbps", "size_bytes", "error"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range rep.Results {
		row := []string{
			rep.RunID,
			strconv.Itoa(r.FileID),
			r.File,
			r.Scheme,
			strconv.FormatBool(r.Success),
			strconv.FormatFloat(r.ElapsedSeconds, 'f', 6, 64),
			strconv.FormatFloat(r.ThroughputMBps, 'f', 6, 64),
			strconv.FormatInt(r.SizeBytes, 10),
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Write пишет отчёт в указанном формате.
func Write(w io.Writer, format string, rep *RunReport) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, rep)
	case FormatCSV:
		return WriteCSV(w, rep)
	case FormatYAML:
		return WriteYAML(w, rep)
	default:
		return fmt.Errorf("неизвестный формат отчёта: %s", format)
	}
}

// Save сохраняет отчёт в файл.
func Save(path, format string, rep *RunReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("не удалось создать отчёт %s: %w", path, err)
	}

	if err := Write(f, format, rep); err != nil {
		_ = f.Close()
		return fmt.Errorf("не удалось записать отчёт %s: %w", path, err)
	}

	return f.Close()
}

/*
Возможные расширения:
- Добавить формат markdown для вставки отчёта в issue
- Выводить в тексте разницу с предыдущим запуском с тем же RequestHash
*/
