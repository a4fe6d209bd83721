package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Prefs are the runner settings persisted between sessions.
type Prefs struct {
	Theme string `yaml:"theme"`
}

// DefaultPrefsPath returns the preferences file under the user config dir.
func DefaultPrefsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "memelab", "runner.yaml"), nil
}

// LoadPrefs reads preferences. A missing file yields the defaults.
func LoadPrefs(path string) (Prefs, error) {
	prefs := Prefs{Theme: ThemeDark}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return prefs, fmt.Errorf("read prefs: %w", err)
	}

	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return Prefs{Theme: ThemeDark}, fmt.Errorf("parse prefs: %w", err)
	}
	if prefs.Theme != ThemeLight {
		prefs.Theme = ThemeDark
	}
	return prefs, nil
}

// Save writes preferences to path.
func (p Prefs) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create prefs directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}
