// Package fees resolves filing charges from the configured fee
// schedule. All amounts are integer cents.
package fees

import (
	"github.com/dotfilings/dotfilings/internal/config"
)

// Calculator answers fee questions against the live fee schedule.
type Calculator struct {
	holder *config.FeeConfigHolder
}

func NewCalculator(holder *config.FeeConfigHolder) *Calculator {
	return &Calculator{holder: holder}
}

// UCRFee maps a vehicle count to its flat UCR fee tier. ok=false means
// the count falls in the open-ended "contact us" band with no numeric
// fee. Negative counts clamp to zero; the calculator stays total and
// callers sanitize their own input.
func (c *Calculator) UCRFee(vehicleCount int) (cents int64, ok bool) {
	if vehicleCount < 0 {
		vehicleCount = 0
	}

	for _, tier := range c.holder.Get().UCRTiers {
		if vehicleCount < tier.MinVehicles {
			continue
		}
		if tier.MaxVehicles == nil {
			return 0, false
		}
		if vehicleCount <= *tier.MaxVehicles {
			return tier.AmountCents, true
		}
	}
	return 0, false
}

// MCS150Fee is the flat service fee charged for a biennial update.
func (c *Calculator) MCS150Fee() int64 {
	return c.holder.Get().MCS150FeeCents
}
