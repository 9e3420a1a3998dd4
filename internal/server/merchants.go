package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	merchantdomain "github.com/parcelflow/parcelflow/internal/merchant/domain"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type upsertMerchantRequest struct {
	Name     string `json:"name"`
	ShopName string `json:"shop_name"`
	Phone    string `json:"phone"`
	Status   string `json:"status"`
}

func (s *Server) CreateMerchant(c *gin.Context) {
	var req upsertMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.merchantSvc.Upsert(c.Request.Context(), merchantdomain.UpsertMerchantRequest{
		Name:     strings.TrimSpace(req.Name),
		ShopName: strings.TrimSpace(req.ShopName),
		Phone:    strings.TrimSpace(req.Phone),
		Status:   merchantdomain.MerchantStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateMerchant(c *gin.Context) {
	var req upsertMerchantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.merchantSvc.Upsert(c.Request.Context(), merchantdomain.UpsertMerchantRequest{
		ID:       strings.TrimSpace(c.Param("id")),
		Name:     strings.TrimSpace(req.Name),
		ShopName: strings.TrimSpace(req.ShopName),
		Phone:    strings.TrimSpace(req.Phone),
		Status:   merchantdomain.MerchantStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMerchantByID(c *gin.Context) {
	resp, err := s.merchantSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMerchants(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.merchantSvc.List(c.Request.Context(), merchantdomain.ListMerchantRequest{
		Pagination: query.Pagination,
		Status:     strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Merchants, "page_info": resp.PageInfo})
}

func (s *Server) VerifyMerchant(c *gin.Context) {
	resp, err := s.merchantSvc.Verify(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SuspendMerchant(c *gin.Context) {
	if err := s.merchantSvc.Suspend(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": merchantdomain.MerchantStatusSuspended}})
}

func isMerchantValidationError(err error) bool {
	switch err {
	case merchantdomain.ErrInvalidID,
		merchantdomain.ErrInvalidName,
		merchantdomain.ErrInvalidShopName,
		merchantdomain.ErrInvalidStatus:
		return true
	default:
		return false
	}
}
