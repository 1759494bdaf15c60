// Package seeder generates synthetic datasets that exercise the correlation
// rules: brute-force bursts, web scans, IDS alerts and benign noise.
package seeder

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Scenario describes what a generated dataset contains
type Scenario struct {
	Name        string           `yaml:"name" validate:"required"`
	Description string           `yaml:"description"`
	Seed        int64            `yaml:"seed"`
	BruteForce  []BruteForceSpec `yaml:"brute_force" validate:"dive"`
	WebScans    []WebScanSpec    `yaml:"web_scans" validate:"dive"`
	IDSAlerts   []IDSAlertSpec   `yaml:"ids_alerts" validate:"dive"`
	Noise       NoiseSpec        `yaml:"noise"`
}

// BruteForceSpec is a burst of login failures from one address
type BruteForceSpec struct {
	SourceIP string        `yaml:"source_ip" validate:"required,ip"`
	Username string        `yaml:"username"`
	Attempts int           `yaml:"attempts" validate:"gt=0"`
	Spacing  time.Duration `yaml:"spacing" validate:"gte=0"`
	Offset   time.Duration `yaml:"offset"`
}

// WebScanSpec is a sweep of distinct URLs from one address
type WebScanSpec struct {
	SourceIP   string        `yaml:"source_ip" validate:"required,ip"`
	Requests   int           `yaml:"requests" validate:"gt=0"`
	Spacing    time.Duration `yaml:"spacing" validate:"gte=0"`
	ErrorRatio float64       `yaml:"error_ratio" validate:"gte=0,lte=1"`
	ScannerUA  string        `yaml:"scanner_user_agent"`
	Offset     time.Duration `yaml:"offset"`
}

// IDSAlertSpec is one or more identical IDS alerts
type IDSAlertSpec struct {
	SourceIP  string        `yaml:"source_ip" validate:"omitempty,ip"`
	DestIP    string        `yaml:"dest_ip" validate:"omitempty,ip"`
	Sensor    string        `yaml:"sensor" validate:"omitempty,oneof=suricata snort"`
	Signature string        `yaml:"signature"`
	Category  string        `yaml:"category"`
	Priority  int           `yaml:"priority" validate:"gte=0"`
	Count     int           `yaml:"count" validate:"gte=0"`
	Offset    time.Duration `yaml:"offset"`
}

// NoiseSpec is benign background traffic
type NoiseSpec struct {
	Logins      int `yaml:"logins" validate:"gte=0"`
	WebRequests int `yaml:"web_requests" validate:"gte=0"`
}

// DefaultScenario triggers every rule once against a layer of noise
func DefaultScenario() Scenario {
	return Scenario{
		Name:        "mixed-attack",
		Description: "SSH brute force, web reconnaissance and IDS alerts over benign traffic",
		Seed:        42,
		BruteForce: []BruteForceSpec{
			{SourceIP: "192.168.1.100", Username: "admin", Attempts: 8, Spacing: 20 * time.Second},
		},
		WebScans: []WebScanSpec{
			{SourceIP: "10.0.5.23", Requests: 30, Spacing: 5 * time.Second, ErrorRatio: 0.5, ScannerUA: "Nikto/2.1.6", Offset: 10 * time.Minute},
		},
		IDSAlerts: []IDSAlertSpec{
			{SourceIP: "192.168.1.100", DestIP: "10.0.0.10", Sensor: "suricata", Signature: "ET SCAN Potential SSH Scan", Category: "Attempted Information Leak", Priority: 2, Offset: time.Minute},
			{SourceIP: "203.0.113.50", DestIP: "10.0.0.12", Sensor: "snort", Signature: "GPL ATTACK_RESPONSE id check returned root", Category: "Potentially Bad Traffic", Priority: 1, Offset: 30 * time.Minute},
		},
		Noise: NoiseSpec{Logins: 30, WebRequests: 40},
	}
}

// LoadScenario reads a YAML scenario file
func LoadScenario(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("failed to read scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

var validate = validator.New()

// Validate checks the scenario is generatable
func (s Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	return nil
}
