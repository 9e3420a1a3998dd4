package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	transactiondomain "github.com/parcelflow/parcelflow/internal/transaction/domain"
	"github.com/parcelflow/parcelflow/pkg/db/pagination"
)

type recordTransactionRequest struct {
	Type      string  `json:"type"`
	RefID     string  `json:"ref_id"`
	Amount    float64 `json:"amount"`
	Direction string  `json:"direction"`
	Note      string  `json:"note"`
}

func (s *Server) RecordTransaction(c *gin.Context) {
	var req recordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.transactionSvc.Record(c.Request.Context(), transactiondomain.RecordTransactionRequest{
		Type:      transactiondomain.Type(strings.TrimSpace(req.Type)),
		RefID:     strings.TrimSpace(req.RefID),
		Amount:    req.Amount,
		Direction: transactiondomain.Direction(strings.TrimSpace(req.Direction)),
		Note:      strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Type  string `form:"type"`
		RefID string `form:"ref_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.transactionSvc.List(c.Request.Context(), transactiondomain.ListTransactionRequest{
		Pagination: query.Pagination,
		Type:       strings.TrimSpace(query.Type),
		RefID:      strings.TrimSpace(query.RefID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Transactions, "page_info": resp.PageInfo})
}

func isTransactionValidationError(err error) bool {
	switch err {
	case transactiondomain.ErrInvalidType,
		transactiondomain.ErrInvalidRef,
		transactiondomain.ErrInvalidAmount,
		transactiondomain.ErrInvalidDirection:
		return true
	default:
		return false
	}
}
