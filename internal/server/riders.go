package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	riderdomain "github.com/parcelflow/parcelflow/internal/rider/domain"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type upsertRiderRequest struct {
	Name   string `json:"name"`
	HubID  string `json:"hub_id"`
	Area   string `json:"area"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
}

func (s *Server) CreateRider(c *gin.Context) {
	var req upsertRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.riderSvc.Upsert(c.Request.Context(), riderdomain.UpsertRiderRequest{
		Name:   strings.TrimSpace(req.Name),
		HubID:  strings.TrimSpace(req.HubID),
		Area:   strings.TrimSpace(req.Area),
		Phone:  strings.TrimSpace(req.Phone),
		Status: riderdomain.RiderStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateRider(c *gin.Context) {
	var req upsertRiderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.riderSvc.Upsert(c.Request.Context(), riderdomain.UpsertRiderRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Name:   strings.TrimSpace(req.Name),
		HubID:  strings.TrimSpace(req.HubID),
		Area:   strings.TrimSpace(req.Area),
		Phone:  strings.TrimSpace(req.Phone),
		Status: riderdomain.RiderStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRiderByID(c *gin.Context) {
	resp, err := s.riderSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRiders(c *gin.Context) {
	var query struct {
		pagination.Pagination
		HubID  string `form:"hub_id"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.riderSvc.List(c.Request.Context(), riderdomain.ListRiderRequest{
		Pagination: query.Pagination,
		HubID:      strings.TrimSpace(query.HubID),
		Status:     strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Riders, "page_info": resp.PageInfo})
}

func (s *Server) SuspendRider(c *gin.Context) {
	if err := s.riderSvc.Suspend(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": riderdomain.RiderStatusSuspended}})
}

func isRiderValidationError(err error) bool {
	switch err {
	case riderdomain.ErrInvalidID,
		riderdomain.ErrInvalidName,
		riderdomain.ErrInvalidHub,
		riderdomain.ErrInvalidStatus:
		return true
	default:
		return false
	}
}
