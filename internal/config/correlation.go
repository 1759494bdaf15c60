package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultCorrelationConfigPath is where rule tuning is read from when nothing else is set
const DefaultCorrelationConfigPath = "./config/correlation_config.json"

// CorrelationConfig tunes the three correlation rules. Windows are in minutes.
type CorrelationConfig struct {
	BruteForceWindowMinutes     int `mapstructure:"brute_force_window_minutes" json:"brute_force_window_minutes" validate:"gt=0"`
	BruteForceThreshold         int `mapstructure:"brute_force_threshold" json:"brute_force_threshold" validate:"gt=0"`
	WebScanWindowMinutes        int `mapstructure:"web_scan_window_minutes" json:"web_scan_window_minutes" validate:"gt=0"`
	WebScanURLThreshold         int `mapstructure:"web_scan_url_threshold" json:"web_scan_url_threshold" validate:"gt=0"`
	WebScanErrorThreshold       int `mapstructure:"web_scan_error_threshold" json:"web_scan_error_threshold" validate:"gt=0"`
	IDSCorrelationWindowMinutes int `mapstructure:"ids_correlation_window_minutes" json:"ids_correlation_window_minutes" validate:"gt=0"`
}

// DefaultCorrelationConfig returns the documented rule defaults
func DefaultCorrelationConfig() CorrelationConfig {
	return CorrelationConfig{
		BruteForceWindowMinutes:     10,
		BruteForceThreshold:         5,
		WebScanWindowMinutes:        5,
		WebScanURLThreshold:         20,
		WebScanErrorThreshold:       10,
		IDSCorrelationWindowMinutes: 10,
	}
}

// BruteForceWindow returns the brute-force window as a duration
func (c CorrelationConfig) BruteForceWindow() time.Duration {
	return time.Duration(c.BruteForceWindowMinutes) * time.Minute
}

// WebScanWindow returns the web-scanning window as a duration
func (c CorrelationConfig) WebScanWindow() time.Duration {
	return time.Duration(c.WebScanWindowMinutes) * time.Minute
}

// IDSCorrelationWindow returns the half-width of the IDS corroboration window
func (c CorrelationConfig) IDSCorrelationWindow() time.Duration {
	return time.Duration(c.IDSCorrelationWindowMinutes) * time.Minute
}

var validate = validator.New()

// WithDefaults returns c with every invalid key replaced by its default
func (c CorrelationConfig) WithDefaults() CorrelationConfig {
	var verrs validator.ValidationErrors
	if err := validate.Struct(c); !errors.As(err, &verrs) {
		return c
	}

	out := reflect.ValueOf(&c).Elem()
	defaults := reflect.ValueOf(DefaultCorrelationConfig())
	for _, fe := range verrs {
		out.FieldByName(fe.StructField()).Set(defaults.FieldByName(fe.StructField()))
	}
	return c
}

// Validate checks every field is positive
func (c CorrelationConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid correlation config: %w", err)
	}
	return nil
}

// ErrTuningFallback marks a tuning file that was ignored in favour of defaults
var ErrTuningFallback = errors.New("using default correlation config")

// LoadCorrelationConfig reads rule tuning from a JSON file.
//
// The returned config is always usable. A missing file silently yields the
// defaults and keys absent from the file keep their default. Invalid values
// are replaced by their own default only. When the file cannot be read or
// does not parse, the defaults are returned. Either fallback comes with an
// error wrapping ErrTuningFallback for the caller to log.
func LoadCorrelationConfig(path string) (CorrelationConfig, error) {
	defaults := DefaultCorrelationConfig()
	if path == "" {
		return defaults, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return defaults, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("brute_force_window_minutes", defaults.BruteForceWindowMinutes)
	v.SetDefault("brute_force_threshold", defaults.BruteForceThreshold)
	v.SetDefault("web_scan_window_minutes", defaults.WebScanWindowMinutes)
	v.SetDefault("web_scan_url_threshold", defaults.WebScanURLThreshold)
	v.SetDefault("web_scan_error_threshold", defaults.WebScanErrorThreshold)
	v.SetDefault("ids_correlation_window_minutes", defaults.IDSCorrelationWindowMinutes)

	if err := v.ReadInConfig(); err != nil {
		return defaults, fmt.Errorf("%w: failed to read %s: %v", ErrTuningFallback, path, err)
	}

	var cfg CorrelationConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return defaults, fmt.Errorf("%w: failed to decode %s: %v", ErrTuningFallback, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg.WithDefaults(), fmt.Errorf("%w: %s: %v", ErrTuningFallback, path, err)
	}

	return cfg, nil
}
