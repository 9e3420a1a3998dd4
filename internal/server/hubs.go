package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	hubdomain "github.com/parcelflow/parcelflow/internal/hub/domain"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type upsertHubRequest struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	ParentHubID   string   `json:"parent_hub_id"`
	Capacity      int      `json:"capacity"`
	CoverageAreas []string `json:"coverage_areas"`
	Status        string   `json:"status"`
}

func (s *Server) CreateHub(c *gin.Context) {
	var req upsertHubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.hubSvc.Upsert(c.Request.Context(), hubdomain.UpsertHubRequest{
		Name:          strings.TrimSpace(req.Name),
		Type:          hubdomain.HubType(strings.TrimSpace(req.Type)),
		ParentHubID:   strings.TrimSpace(req.ParentHubID),
		Capacity:      req.Capacity,
		CoverageAreas: req.CoverageAreas,
		Status:        hubdomain.HubStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateHub(c *gin.Context) {
	var req upsertHubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.hubSvc.Upsert(c.Request.Context(), hubdomain.UpsertHubRequest{
		ID:            strings.TrimSpace(c.Param("id")),
		Name:          strings.TrimSpace(req.Name),
		Type:          hubdomain.HubType(strings.TrimSpace(req.Type)),
		ParentHubID:   strings.TrimSpace(req.ParentHubID),
		Capacity:      req.Capacity,
		CoverageAreas: req.CoverageAreas,
		Status:        hubdomain.HubStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetHubByID(c *gin.Context) {
	resp, err := s.hubSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListHubs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Type        string `form:"type"`
		Status      string `form:"status"`
		ParentHubID string `form:"parent_hub_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.hubSvc.List(c.Request.Context(), hubdomain.ListHubRequest{
		Pagination:  query.Pagination,
		Type:        strings.TrimSpace(query.Type),
		Status:      strings.TrimSpace(query.Status),
		ParentHubID: strings.TrimSpace(query.ParentHubID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Hubs, "page_info": resp.PageInfo})
}

func (s *Server) DeactivateHub(c *gin.Context) {
	if err := s.hubSvc.Deactivate(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": hubdomain.HubStatusInactive}})
}

func isHubValidationError(err error) bool {
	switch err {
	case hubdomain.ErrInvalidID,
		hubdomain.ErrInvalidName,
		hubdomain.ErrInvalidType,
		hubdomain.ErrInvalidCapacity,
		hubdomain.ErrInvalidParent,
		hubdomain.ErrInvalidCoverage:
		return true
	default:
		return false
	}
}
