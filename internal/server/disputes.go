package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	disputedomain "github.com/parcelflow/parcelflow/internal/dispute/domain"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type openDisputeRequest struct {
	ParcelID string `json:"parcel_id"`
	Issue    string `json:"issue"`
}

func (s *Server) OpenDispute(c *gin.Context) {
	var req openDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.disputeSvc.Open(c.Request.Context(), disputedomain.OpenDisputeRequest{
		ParcelID: strings.TrimSpace(req.ParcelID),
		Issue:    strings.TrimSpace(req.Issue),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type resolveDisputeRequest struct {
	Resolution string `json:"resolution"`
}

func (s *Server) ResolveDispute(c *gin.Context) {
	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.disputeSvc.Resolve(c.Request.Context(), disputedomain.ResolveDisputeRequest{
		DisputeID:  strings.TrimSpace(c.Param("id")),
		Resolution: strings.TrimSpace(req.Resolution),
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": disputedomain.DisputeStatusResolved}})
}

func (s *Server) GetDisputeByID(c *gin.Context) {
	resp, err := s.disputeSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDisputes(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ParcelID string `form:"parcel_id"`
		Status   string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.disputeSvc.List(c.Request.Context(), disputedomain.ListDisputeRequest{
		Pagination: query.Pagination,
		ParcelID:   strings.TrimSpace(query.ParcelID),
		Status:     strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Disputes, "page_info": resp.PageInfo})
}

func isDisputeValidationError(err error) bool {
	switch err {
	case disputedomain.ErrInvalidID,
		disputedomain.ErrInvalidIssue,
		disputedomain.ErrInvalidResolution:
		return true
	default:
		return false
	}
}
