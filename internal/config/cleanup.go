package config

import (
	"fmt"
	"time"
)

// CleanupConfig holds the grant cleanup policy. Environment selects a
// profile; any field set explicitly overrides the profile's value.
type CleanupConfig struct {
	Environment     string `toml:"environment"`      // "development", "testing" or "production"
	IntervalMinutes int    `toml:"interval_minutes"` // scheduler period; 0 disables the timer

	RetentionDays         *int  `toml:"retention_days,omitempty"`
	BatchSize             *int  `toml:"batch_size,omitempty"`
	MaxPerRun             *int  `toml:"max_per_run,omitempty"`
	DeactivateExpired     *bool `toml:"deactivate_expired,omitempty"`
	PurgeInactive         *bool `toml:"purge_inactive,omitempty"`
	CleanupOnDeactivation *bool `toml:"cleanup_on_deactivation,omitempty"`
}

// CleanupSettings is a fully resolved cleanup policy.
type CleanupSettings struct {
	RetentionDays         int
	BatchSize             int
	MaxPerRun             int
	DeactivateExpired     bool
	PurgeInactive         bool
	CleanupOnDeactivation bool
}

var defaultCleanup = CleanupSettings{
	RetentionDays:         90,
	BatchSize:             1000,
	MaxPerRun:             10000,
	DeactivateExpired:     true,
	PurgeInactive:         true,
	CleanupOnDeactivation: true,
}

// cleanupProfiles holds per-environment departures from defaultCleanup.
var cleanupProfiles = map[string]func(*CleanupSettings){
	"development": func(s *CleanupSettings) {
		s.RetentionDays = 30
		s.BatchSize = 100
		s.PurgeInactive = false
	},
	"testing": func(s *CleanupSettings) {
		s.RetentionDays = 1
		s.BatchSize = 10
		s.PurgeInactive = false
	},
	"production": func(s *CleanupSettings) {
		s.RetentionDays = 365
		s.BatchSize = 1000
		s.PurgeInactive = true
	},
}

// Interval returns the scheduler period.
func (c CleanupConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// Settings resolves the profile named by Environment and applies explicit
// overrides. An empty Environment uses the defaults alone.
func (c CleanupConfig) Settings() (CleanupSettings, error) {
	s := defaultCleanup
	if c.Environment != "" {
		apply, ok := cleanupProfiles[c.Environment]
		if !ok {
			return CleanupSettings{}, fmt.Errorf("unknown cleanup environment: %s", c.Environment)
		}
		apply(&s)
	}

	if c.RetentionDays != nil {
		s.RetentionDays = *c.RetentionDays
	}
	if c.BatchSize != nil {
		s.BatchSize = *c.BatchSize
	}
	if c.MaxPerRun != nil {
		s.MaxPerRun = *c.MaxPerRun
	}
	if c.DeactivateExpired != nil {
		s.DeactivateExpired = *c.DeactivateExpired
	}
	if c.PurgeInactive != nil {
		s.PurgeInactive = *c.PurgeInactive
	}
	if c.CleanupOnDeactivation != nil {
		s.CleanupOnDeactivation = *c.CleanupOnDeactivation
	}

	if s.RetentionDays < 0 {
		return CleanupSettings{}, fmt.Errorf("retention_days must not be negative, got %d", s.RetentionDays)
	}
	if s.BatchSize <= 0 {
		return CleanupSettings{}, fmt.Errorf("batch_size must be positive, got %d", s.BatchSize)
	}
	return s, nil
}
