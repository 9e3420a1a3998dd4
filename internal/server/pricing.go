package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	pricingdomain "github.com/parcelflow/parcelflow/internal/pricing/domain"
)

func (s *Server) GetCurrentPricing(c *gin.Context) {
	resp, err := s.pricingSvc.Current(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPricingHistory(c *gin.Context) {
	resp, err := s.pricingSvc.History(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updatePricingRequest struct {
	BaseFare             float64 `json:"base_fare"`
	PerKg                float64 `json:"per_kg"`
	PerKm                float64 `json:"per_km"`
	CODPct               float64 `json:"cod_pct"`
	ServiceAreaSurcharge float64 `json:"service_area_surcharge"`
	ExpressMultiplier    float64 `json:"express_multiplier"`
}

func (s *Server) UpdatePricing(c *gin.Context) {
	var req updatePricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pricingSvc.Update(c.Request.Context(), pricingdomain.UpdatePricingRequest{
		BaseFare:             req.BaseFare,
		PerKg:                req.PerKg,
		PerKm:                req.PerKm,
		CODPct:               req.CODPct,
		ServiceAreaSurcharge: req.ServiceAreaSurcharge,
		ExpressMultiplier:    req.ExpressMultiplier,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type quoteFareRequest struct {
	WeightKg    float64 `json:"weight_kg"`
	DistanceKm  float64 `json:"distance_km"`
	CODAmount   float64 `json:"cod_amount"`
	ServiceType string  `json:"service_type"`
}

func (s *Server) QuoteFare(c *gin.Context) {
	var req quoteFareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	fare, err := s.pricingSvc.QuoteFare(c.Request.Context(), pricingdomain.QuoteAttributes{
		WeightKg:    req.WeightKg,
		DistanceKm:  req.DistanceKm,
		CODAmount:   req.CODAmount,
		ServiceType: parceldomain.ServiceType(strings.TrimSpace(req.ServiceType)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"fare": fare}})
}

func isPricingValidationError(err error) bool {
	switch err {
	case pricingdomain.ErrInvalidAmount,
		pricingdomain.ErrInvalidMultiplier,
		pricingdomain.ErrInvalidAttributes:
		return true
	default:
		return false
	}
}
