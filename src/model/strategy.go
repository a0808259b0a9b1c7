package model

import "fmt"

// StrategyConfig declares one strategy tracked by the executor. The
// legacy deployment loaded these from a free-form text file; here they
// are typed values validated at startup.
type StrategyConfig struct {
	Name             string `json:"name"`
	Interval         string `json:"interval"`
	Security         string `json:"security"`
	LotSize          int    `json:"lot_size"`
	BaseQty          int    `json:"baseqty"`
	DaysBeforeExpiry int    `json:"days_before_expiry"`
}

// Validate checks the configuration before the strategy is registered.
func (c *StrategyConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if c.Interval != Interval15Minute && c.Interval != Interval60Minute {
		return fmt.Errorf("strategy %s: unsupported interval %q", c.Name, c.Interval)
	}
	if c.Security == "" {
		return fmt.Errorf("strategy %s: security is required", c.Name)
	}
	if c.LotSize <= 0 {
		return fmt.Errorf("strategy %s: lot_size must be > 0", c.Name)
	}
	if c.BaseQty <= 0 {
		return fmt.Errorf("strategy %s: baseqty must be > 0", c.Name)
	}
	if c.DaysBeforeExpiry < 0 {
		return fmt.Errorf("strategy %s: days_before_expiry must be >= 0", c.Name)
	}
	return nil
}
