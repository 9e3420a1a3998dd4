package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	assignmentdomain "github.com/parcelflow/parcelflow/internal/assignment/domain"
	parceldomain "github.com/parcelflow/parcelflow/internal/parcel/domain"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type createParcelRequest struct {
	MerchantID       string  `json:"merchant_id"`
	CustomerName     string  `json:"customer_name"`
	CustomerPhone    string  `json:"customer_phone"`
	OriginHubID      string  `json:"origin_hub_id"`
	DestinationHubID string  `json:"destination_hub_id"`
	DestinationArea  string  `json:"destination_area"`
	WeightKg         float64 `json:"weight_kg"`
	DistanceKm       float64 `json:"distance_km"`
	CODAmount        float64 `json:"cod_amount"`
	ServiceType      string  `json:"service_type"`
}

func (s *Server) CreateParcel(c *gin.Context) {
	var req createParcelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.parcelSvc.Create(c.Request.Context(), parceldomain.CreateParcelRequest{
		MerchantID:       strings.TrimSpace(req.MerchantID),
		CustomerName:     strings.TrimSpace(req.CustomerName),
		CustomerPhone:    strings.TrimSpace(req.CustomerPhone),
		OriginHubID:      strings.TrimSpace(req.OriginHubID),
		DestinationHubID: strings.TrimSpace(req.DestinationHubID),
		DestinationArea:  strings.TrimSpace(req.DestinationArea),
		WeightKg:         req.WeightKg,
		DistanceKm:       req.DistanceKm,
		CODAmount:        req.CODAmount,
		ServiceType:      parceldomain.ServiceType(strings.TrimSpace(req.ServiceType)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListParcels(c *gin.Context) {
	var query struct {
		pagination.Pagination
		MerchantID string `form:"merchant_id"`
		HubID      string `form:"hub_id"`
		RiderID    string `form:"rider_id"`
		Status     string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.parcelSvc.List(c.Request.Context(), parceldomain.ListParcelRequest{
		Pagination: query.Pagination,
		MerchantID: strings.TrimSpace(query.MerchantID),
		HubID:      strings.TrimSpace(query.HubID),
		RiderID:    strings.TrimSpace(query.RiderID),
		Status:     strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Parcels, "page_info": resp.PageInfo})
}

func (s *Server) GetParcelByID(c *gin.Context) {
	resp, err := s.parcelSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type advanceParcelRequest struct {
	TargetStatus string `json:"target_status"`
	HubID        string `json:"hub_id"`
	Note         string `json:"note"`
}

func (s *Server) AdvanceParcel(c *gin.Context) {
	var req advanceParcelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	event, err := s.parcelSvc.Advance(c.Request.Context(), parceldomain.AdvanceRequest{
		ParcelID:     strings.TrimSpace(c.Param("id")),
		TargetStatus: parceldomain.Status(strings.TrimSpace(req.TargetStatus)),
		HubID:        strings.TrimSpace(req.HubID),
		Note:         strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": event})
}

type assignRiderRequest struct {
	RiderID string `json:"rider_id"`
	Bulk    bool   `json:"bulk"`
}

func (s *Server) AssignRider(c *gin.Context) {
	var req assignRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.assignmentSvc.AssignRider(c.Request.Context(), assignmentdomain.AssignRiderRequest{
		ParcelID: strings.TrimSpace(c.Param("id")),
		RiderID:  strings.TrimSpace(req.RiderID),
		Bulk:     req.Bulk,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"assigned": true}})
}

func (s *Server) UnassignRider(c *gin.Context) {
	if err := s.assignmentSvc.Unassign(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"assigned": false}})
}

func (s *Server) ResolveNextHop(c *gin.Context) {
	hubID, err := s.assignmentSvc.ResolveNextHop(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"next_hub_id": hubID.String()}})
}

func isParcelValidationError(err error) bool {
	switch err {
	case parceldomain.ErrInvalidID,
		parceldomain.ErrInvalidStatus,
		parceldomain.ErrInvalidWeight,
		parceldomain.ErrInvalidDistance,
		parceldomain.ErrInvalidCOD,
		parceldomain.ErrInvalidServiceType,
		parceldomain.ErrInvalidCustomer,
		parceldomain.ErrInvalidRoute:
		return true
	default:
		return false
	}
}
