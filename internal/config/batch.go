// Package config содержит конфигурацию приложения.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SavedPreset представляет сохранённую именованную конфигурацию запуска.
type SavedPreset struct {
	// Name - имя пресета.
	Name string
	// Path - путь к файлу пресета.
	Path string
	// Config - содержимое пресета (nil, если файл не читается).
	Config *FileConfig
}

// PresetStore хранит именованные конфигурации в директории.
type PresetStore struct {
	// Dir - директория с YAML файлами пресетов.
	Dir string
}

// DefaultPresetStore возвращает хранилище в ~/.config/tempobench/presets.
func DefaultPresetStore() (*PresetStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить домашнюю директорию: %w", err)
	}
	return &PresetStore{Dir: filepath.Join(homeDir, ".config", "tempobench", "presets")}, nil
}

// Path возвращает путь к файлу пресета по имени.
func (s *PresetStore) Path(name string) (string, error) {
	safeName := sanitizePresetName(name)
	if safeName == "" || safeName != name {
		return "", fmt.Errorf("некорректное имя пресета: %q (допустимы буквы, цифры, '-' и '_')", name)
	}
	return filepath.Join(s.Dir, safeName+".yaml"), nil
}

// sanitizePresetName оставляет в имени только безопасные символы.
func sanitizePresetName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Save сохраняет конфигурацию как именованный пресет.
func (s *PresetStore) Save(name string, cfg *Config) (string, error) {
	path, err := s.Path(name)
	if err != nil {
		return "", err
	}

	if err := FromConfig(cfg).SaveToFile(path); err != nil {
		return "", fmt.Errorf("не удалось сохранить пресет: %w", err)
	}

	return path, nil
}

// Load загружает именованный пресет.
func (s *PresetStore) Load(name string) (*FileConfig, string, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, "", err
	}

	fc, err := LoadFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("не удалось загрузить пресет '%s': %w", name, err)
	}
	if fc == nil {
		return nil, "", fmt.Errorf("пресет '%s' не найден", name)
	}

	return fc, path, nil
}

// List возвращает все сохранённые пресеты, отсортированные по имени.
func (s *PresetStore) List() ([]SavedPreset, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SavedPreset{}, nil
		}
		return nil, fmt.Errorf("не удалось прочитать директорию пресетов: %w", err)
	}

	presets := []SavedPreset{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(s.Dir, name)
		fc, _ := LoadFromFile(path)

		presets = append(presets, SavedPreset{
			Name:   strings.TrimSuffix(name, ext),
			Path:   path,
			Config: fc,
		})
	}

	sort.Slice(presets, func(i, j int) bool {
		return presets[i].Name < presets[j].Name
	})

	return presets, nil
}

// Delete удаляет именованный пресет.
func (s *PresetStore) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("пресет '%s' не найден", name)
		}
		return fmt.Errorf("не удалось удалить пресет: %w", err)
	}

	return nil
}

// Exists проверяет существование пресета.
func (s *PresetStore) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}
