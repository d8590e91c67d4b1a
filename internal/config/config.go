package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// SettingsFile is the name of the global settings file
const SettingsFile = "global_settings.json"

// Settings section keys, as used in apply-<key>-settings messages
const (
	SectionNotes     = "notes"
	SectionCalendar  = "calendar"
	SectionWeather   = "weather"
	SectionDate      = "date"
	SectionTime      = "time"
	SectionWallpaper = "wallpaper"
)

// GlobalSettings holds the per-feature settings edited in the settings window
type GlobalSettings struct {
	Notes     Section `json:"notesSettings"`
	Calendar  Section `json:"calendarSettings"`
	Weather   Section `json:"weatherSettings"`
	Date      Section `json:"dateSettings"`
	Time      Section `json:"timeSettings"`
	Wallpaper Section `json:"wallpaperSettings"`
}

// Section holds the settings of one feature
type Section struct {
	ToggleShow bool `json:"toggleShow"`
	// ToolbarMode only applies to notes.
	ToolbarMode   *bool                  `json:"toolbarMode,omitempty"`
	Timezone      string                 `json:"timezone,omitempty"`
	Theme         map[string]interface{} `json:"theme,omitempty"`
	ToolbarConfig map[string]interface{} `json:"toolbarConfig,omitempty"`
}

// Service manages global settings persistence
type Service struct {
	mu       sync.RWMutex
	settings *GlobalSettings
	filePath string
	log      *zap.Logger
}

// DefaultDir returns the directory holding every persisted file
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".deskoverlay"), nil
}

// New creates a settings service rooted at dir.
//
// A missing settings file is created with defaults. A malformed one is
// logged and replaced by defaults in memory; it is only overwritten on the
// next change.
func New(dir string, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	service := &Service{
		filePath: filepath.Join(dir, SettingsFile),
		settings: getDefaultSettings(),
		log:      log.Named("config"),
	}

	if _, err := os.Stat(service.filePath); err == nil {
		if err := service.Load(); err != nil {
			service.log.Warn("ignoring malformed settings file", zap.String("path", service.filePath), zap.Error(err))
		}
	} else {
		if err := service.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default settings: %w", err)
		}
	}

	return service, nil
}

// getDefaultSettings returns the settings used when nothing is persisted
func getDefaultSettings() *GlobalSettings {
	toolbar := true
	return &GlobalSettings{
		Notes:    Section{ToggleShow: true, ToolbarMode: &toolbar},
		Calendar: Section{Timezone: "UTC"},
		Date:     Section{Timezone: "America/New_York"},
	}
}

// Get returns a copy of the current settings
func (s *Service) Get() GlobalSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.settings
}

// Set replaces the current settings without saving them
func (s *Service) Set(settings GlobalSettings) {
	s.mu.Lock()
	s.settings = &settings
	s.mu.Unlock()
}

// Load loads settings from file. On error the defaults are kept.
func (s *Service) Load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	loaded := getDefaultSettings()
	if err := json.Unmarshal(data, loaded); err != nil {
		s.Set(*getDefaultSettings())
		return fmt.Errorf("failed to parse %s: %w", SettingsFile, err)
	}
	s.Set(*loaded)
	return nil
}

// Save saves settings to file
func (s *Service) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.settings, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	return os.WriteFile(s.filePath, data, 0644)
}

// Path returns the full path to the settings file
func (s *Service) Path() string {
	return s.filePath
}

// Update replaces and persists every section
func (s *Service) Update(settings GlobalSettings) error {
	s.Set(settings)
	return s.Save()
}

// UpdateNotes replaces and persists the notes section
func (s *Service) UpdateNotes(notes Section) error {
	s.mu.Lock()
	s.settings.Notes = notes
	s.mu.Unlock()
	return s.Save()
}

// Sections returns every section by key
func (s *Service) Sections() map[string]Section {
	settings := s.Get()
	return map[string]Section{
		SectionNotes:     settings.Notes,
		SectionCalendar:  settings.Calendar,
		SectionWeather:   settings.Weather,
		SectionDate:      settings.Date,
		SectionTime:      settings.Time,
		SectionWallpaper: settings.Wallpaper,
	}
}

// Section returns the section stored under key
func (s *Service) Section(key string) (Section, bool) {
	section, ok := s.Sections()[key]
	return section, ok
}
