// internal/workers/exchange/redeem-referral-reward/config.go
package redeemreferralreward

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`

	// Reward handed to the invited user.
	EntitlementID string `mapstructure:"entitlement_id"`
	DurationDays  int    `mapstructure:"duration_days"`
	DurationUnit  string `mapstructure:"duration_unit"`

	// Coin bonus credited to the referrer. Zero disables the bonus.
	ReferrerBonus int64 `mapstructure:"referrer_bonus"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		EntitlementID: "premium",
		DurationDays:  7,
		DurationUnit:  "day",
		ReferrerBonus: 100,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.EntitlementID == "" {
		return fmt.Errorf("entitlement_id must be set")
	}
	if c.DurationDays <= 0 {
		return fmt.Errorf("duration_days must be positive")
	}
	if c.ReferrerBonus < 0 {
		return fmt.Errorf("referrer_bonus must not be negative")
	}
	return nil
}
