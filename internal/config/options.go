package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// OptionsFile is the name of the host tuning file
const OptionsFile = "options.yaml"

// EnvPrefix prefixes every environment override
const EnvPrefix = "DESKOVERLAY"

// Options tunes the host. Unlike GlobalSettings it is never edited by the UI.
type Options struct {
	Hotkey           string        `yaml:"hotkey" envconfig:"HOTKEY"`
	ReattachInterval time.Duration `yaml:"reattach_interval" envconfig:"REATTACH_INTERVAL"`
	BlurDelay        time.Duration `yaml:"blur_delay" envconfig:"BLUR_DELAY"`
	FocusDelay       time.Duration `yaml:"focus_delay" envconfig:"FOCUS_DELAY"`
	HelperTimeout    time.Duration `yaml:"helper_timeout" envconfig:"HELPER_TIMEOUT"`
	// ZOrderStrategy is one of auto, script, native or fallback.
	ZOrderStrategy string `yaml:"zorder_strategy" envconfig:"ZORDER_STRATEGY"`
	// Helper is "powershell" or the path of the sendtobottom executable.
	Helper            string        `yaml:"helper" envconfig:"HELPER"`
	RaiseOnEdit       bool          `yaml:"raise_on_edit" envconfig:"RAISE_ON_EDIT"`
	LowerOnCorrect    bool          `yaml:"lower_on_correct" envconfig:"LOWER_ON_CORRECT"`
	PositionSaveDelay time.Duration `yaml:"position_save_delay" envconfig:"POSITION_SAVE_DELAY"`
	// MovePollInterval is how often a widget checks whether it was dragged.
	MovePollInterval time.Duration `yaml:"move_poll_interval" envconfig:"MOVE_POLL_INTERVAL"`
	BusAddr           string        `yaml:"bus_addr" envconfig:"BUS_ADDR"`
	WidgetBinary      string        `yaml:"widget_binary" envconfig:"WIDGET_BINARY"`
	LogLevel          string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogDevelopment    bool          `yaml:"log_development" envconfig:"LOG_DEV"`
}

// DefaultOptions returns the built-in tuning
func DefaultOptions() Options {
	return Options{
		Hotkey:            "CommandOrControl+Alt+N",
		ReattachInterval:  2 * time.Second,
		BlurDelay:         50 * time.Millisecond,
		FocusDelay:        100 * time.Millisecond,
		HelperTimeout:     5 * time.Second,
		ZOrderStrategy:    "auto",
		Helper:            "powershell",
		LowerOnCorrect:    true,
		PositionSaveDelay: 250 * time.Millisecond,
		MovePollInterval:  500 * time.Millisecond,
		BusAddr:           "127.0.0.1:0",
		LogLevel:          "info",
	}
}

// LoadOptions reads dir/options.yaml over the defaults, then applies
// DESKOVERLAY_* environment overrides. A missing file is not an error.
func LoadOptions(dir string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(filepath.Join(dir, OptionsFile))
	switch {
	case err == nil:
		if err := decodeOptions(data, &opts); err != nil {
			return DefaultOptions(), fmt.Errorf("failed to parse %s: %w", OptionsFile, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return opts, fmt.Errorf("failed to read %s: %w", OptionsFile, err)
	}

	if err := envconfig.Process(EnvPrefix, &opts); err != nil {
		return opts, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return opts, opts.Validate()
}

func decodeOptions(data []byte, opts *Options) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(opts); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate rejects values the host cannot run with
func (o Options) Validate() error {
	switch o.ZOrderStrategy {
	case "auto", "script", "native", "fallback":
	default:
		return fmt.Errorf("invalid zorder_strategy %q", o.ZOrderStrategy)
	}
	if o.ReattachInterval < 100*time.Millisecond {
		return fmt.Errorf("reattach_interval %s is below 100ms", o.ReattachInterval)
	}
	if o.BlurDelay < 0 || o.FocusDelay < 0 {
		return errors.New("eager correction delays must not be negative")
	}
	if o.HelperTimeout <= 0 {
		return errors.New("helper_timeout must be positive")
	}
	if o.MovePollInterval <= 0 {
		return errors.New("move_poll_interval must be positive")
	}
	return nil
}

// HelperBinary returns the helper executable path, or "" for PowerShell
func (o Options) HelperBinary() string {
	if o.Helper == "" || o.Helper == "powershell" {
		return ""
	}
	return o.Helper
}
