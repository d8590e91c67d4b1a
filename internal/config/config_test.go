package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_CreatesDefaultFile(t *testing.T) {
	tmpDir := t.TempDir()

	service, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, SettingsFile)); os.IsNotExist(err) {
		t.Error("Settings file was not created")
	}

	settings := service.Get()
	if !settings.Notes.ToggleShow {
		t.Error("Expected notes to be shown by default")
	}
	if settings.Notes.ToolbarMode == nil || !*settings.Notes.ToolbarMode {
		t.Error("Expected toolbar mode on by default")
	}
	if settings.Calendar.ToggleShow || settings.Weather.ToggleShow {
		t.Error("Expected auxiliary widgets hidden by default")
	}
}

func TestSettings_SaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	settingsPath := filepath.Join(tmpDir, SettingsFile)

	service := &Service{
		filePath: settingsPath,
		settings: getDefaultSettings(),
	}

	updated := service.Get()
	updated.Weather.ToggleShow = true
	updated.Calendar.Theme = map[string]interface{}{"calendarBgColor": "#101010"}
	service.Set(updated)

	if err := service.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Create a new service and load
	service2 := &Service{
		filePath: settingsPath,
		settings: getDefaultSettings(),
	}
	if err := service2.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	loaded := service2.Get()
	if !loaded.Weather.ToggleShow {
		t.Error("Expected weather toggleShow true")
	}
	if loaded.Calendar.Theme["calendarBgColor"] != "#101010" {
		t.Errorf("Unexpected calendar theme: %v", loaded.Calendar.Theme)
	}
}

func TestSettings_MalformedFileFallsBackToDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	settingsPath := filepath.Join(tmpDir, SettingsFile)
	if err := os.WriteFile(settingsPath, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	service, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed on malformed file: %v", err)
	}

	if !service.Get().Notes.ToggleShow {
		t.Error("Expected defaults after malformed file")
	}

	// the malformed file is left alone until the next change
	data, _ := os.ReadFile(settingsPath)
	if string(data) != "{not json" {
		t.Errorf("Malformed file was rewritten: %s", data)
	}
}

func TestSettings_PartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	settingsPath := filepath.Join(tmpDir, SettingsFile)
	body := `{"notesSettings": {"toggleShow": false}, "timeSettings": {"toggleShow": true}}`
	if err := os.WriteFile(settingsPath, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	service, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	settings := service.Get()
	if settings.Notes.ToggleShow {
		t.Error("Expected notes hidden")
	}
	if !settings.Time.ToggleShow {
		t.Error("Expected time shown")
	}
	if settings.Calendar.Timezone != "UTC" {
		t.Errorf("Expected default calendar timezone, got %q", settings.Calendar.Timezone)
	}
}

func TestSettings_UpdateNotes(t *testing.T) {
	tmpDir := t.TempDir()

	service, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := service.UpdateNotes(Section{ToggleShow: false}); err != nil {
		t.Fatalf("UpdateNotes failed: %v", err)
	}

	reloaded, err := New(tmpDir, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if reloaded.Get().Notes.ToggleShow {
		t.Error("Expected notes toggleShow false after reload")
	}
}

func TestSettings_Sections(t *testing.T) {
	service := &Service{settings: getDefaultSettings()}

	sections := service.Sections()
	if len(sections) != 6 {
		t.Errorf("Expected 6 sections, got %d", len(sections))
	}

	date, ok := service.Section(SectionDate)
	if !ok || date.Timezone != "America/New_York" {
		t.Errorf("Unexpected date section: %+v", date)
	}

	if _, ok := service.Section("lyrics"); ok {
		t.Error("Expected unknown section to be missing")
	}
}
