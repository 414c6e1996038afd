package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type feeTierView struct {
	MinVehicles int    `json:"min_vehicles"`
	MaxVehicles *int   `json:"max_vehicles,omitempty"`
	AmountCents *int64 `json:"amount_cents,omitempty"`
	ContactOnly bool   `json:"contact_only"`
}

// UCRFeeSchedule publishes the current tier table so the wizard can
// show the price before the billing step. With ?vehicle_count=n it
// also resolves the fee for that fleet size.
func (s *Server) UCRFeeSchedule(c *gin.Context) {
	cfg := s.feeCfg.Get()

	if raw := c.Query("vehicle_count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("vehicle_count", "invalid_vehicle_count", "vehicle_count must be an integer"))
			return
		}
		amount, ok := s.feesCalc.UCRFee(count)
		resp := gin.H{"vehicle_count": count, "contact_required": !ok}
		if ok {
			resp["amount_cents"] = amount
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	tiers := make([]feeTierView, 0, len(cfg.UCRTiers))
	for _, tier := range cfg.UCRTiers {
		view := feeTierView{
			MinVehicles: tier.MinVehicles,
			MaxVehicles: tier.MaxVehicles,
		}
		if tier.MaxVehicles == nil {
			view.ContactOnly = true
		} else {
			amount := tier.AmountCents
			view.AmountCents = &amount
		}
		tiers = append(tiers, view)
	}

	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}
