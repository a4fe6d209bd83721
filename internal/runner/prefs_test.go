package runner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPrefsMissingFile(t *testing.T) {
	prefs, err := LoadPrefs(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if prefs.Theme != ThemeDark {
		t.Errorf("theme = %q, want dark default", prefs.Theme)
	}
}

func TestLoadPrefsNormalizesTheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.yaml")
	if err := os.WriteFile(path, []byte("theme: solarized\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	prefs, err := LoadPrefs(path)
	if err != nil || prefs.Theme != ThemeDark {
		t.Errorf("prefs = %+v, %v", prefs, err)
	}
}

func TestLoadPrefsRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.yaml")
	if err := os.WriteFile(path, []byte("theme: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPrefs(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestPrefsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "runner.yaml")
	if err := (Prefs{Theme: ThemeLight}).Save(path); err != nil {
		t.Fatal(err)
	}
	prefs, err := LoadPrefs(path)
	if err != nil || prefs.Theme != ThemeLight {
		t.Errorf("prefs = %+v, %v", prefs, err)
	}
}
