// Package tracker runs the per-tick recompute of every target in the store:
// kinematics first, then alarm classification, then age-out.
package tracker

import (
	"fmt"
	"time"

	"github.com/agile-defense/vesselwatch/pkg/kinematics"
)

// Config holds tracker engine settings
type Config struct {
	// Recompute interval
	TickInterval time.Duration
	// Targets without a position report for longer than this are removed
	MaxAge time.Duration
	// Targets without a position report for longer than this are flagged lost
	LostAge time.Duration
	// Closest approaches further in the future are not reported
	Horizon time.Duration
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second,
		MaxAge:       30 * time.Minute,
		LostAge:      6 * time.Minute,
		Horizon:      kinematics.DefaultHorizon,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	}
	if c.MaxAge <= 0 {
		return fmt.Errorf("max age must be positive, got %s", c.MaxAge)
	}
	if c.LostAge <= 0 || c.LostAge > c.MaxAge {
		return fmt.Errorf("lost age must be positive and at most max age, got %s", c.LostAge)
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %s", c.Horizon)
	}
	return nil
}
