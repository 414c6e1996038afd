package server

import (
	"net/http"
	"strconv"

	carrierdomain "github.com/dotfilings/dotfilings/internal/carrier/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LookupCarrierRequest struct {
	DOTNumber     string `json:"dot_number"`
	RequestSource string `json:"request_source"`

	botCheckFields
}

func (s *Server) LookupCarrier(c *gin.Context) {
	var req LookupCarrierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.botCheckFields.suspicious(s.now()) {
		// Bots get the same answer as a malformed request.
		AbortWithError(c, invalidRequestError())
		return
	}

	if s.limiter.Enabled() {
		res, err := s.limiter.Allow(c.Request.Context(), req.DOTNumber, c.ClientIP())
		if err != nil {
			// A broken limiter must not take lookups down with it.
			s.log.Warn("lookup rate limiter unavailable", zap.Error(err))
		} else if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
	}

	source := req.RequestSource
	if source == "" {
		source = "web"
	}
	record, err := s.carrierSvc.Lookup(c.Request.Context(), carrierdomain.LookupRequest{
		DOTNumber:     req.DOTNumber,
		RequestSource: source,
	})
	if err != nil {
		carrierLookupsTotal.WithLabelValues(lookupOutcome(err)).Inc()
		AbortWithError(c, err)
		return
	}

	carrierLookupsTotal.WithLabelValues("hit").Inc()
	c.JSON(http.StatusOK, gin.H{"carrier": record})
}

func lookupOutcome(err error) string {
	switch err {
	case carrierdomain.ErrNotFound:
		return "not_found"
	case carrierdomain.ErrInvalidDOTNumber:
		return "invalid"
	default:
		return "error"
	}
}
