package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/costledger/costledger-api/internal/events"
	"github.com/costledger/costledger-api/internal/money"
	"github.com/costledger/costledger-api/internal/services"
	"github.com/gin-gonic/gin"
)

// FinanceHandler serves the (project, cost code) level surface: budgets,
// derived aggregates, retention releases and recorded domain events.
type FinanceHandler struct {
	ledger *services.LedgerService
	events *events.Publisher
}

func NewFinanceHandler(ledger *services.LedgerService, publisher *events.Publisher) *FinanceHandler {
	return &FinanceHandler{ledger: ledger, events: publisher}
}

// Aggregate returns the derived totals for a pair
func (h *FinanceHandler) Aggregate(c *gin.Context) {
	agg, err := h.ledger.GetAggregate(c.Request.Context(), c.Param("project_id"), c.Param("cost_code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"aggregate": agg.ToResponse()})
}

type updateBudgetRequest struct {
	Amount      string `json:"amount" binding:"required"`
	OperationID string `json:"operation_id"`
}

// UpdateBudget writes the approved budget for a pair
func (h *FinanceHandler) UpdateBudget(c *gin.Context) {
	var req updateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := money.Parse("amount", req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	out, err := h.ledger.UpdateBudget(c.Request.Context(),
		c.Param("project_id"), c.Param("cost_code"), amount,
		actor(c), operationID(c, req.OperationID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type releaseRetentionRequest struct {
	VendorID    string `json:"vendor_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	ReleaseDate string `json:"release_date"`
	OperationID string `json:"operation_id"`
}

// ReleaseRetention records a retention release for a pair
func (h *FinanceHandler) ReleaseRetention(c *gin.Context) {
	var req releaseRetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := money.Parse("amount", req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	releaseDate := time.Now()
	if req.ReleaseDate != "" {
		releaseDate, err = time.Parse("2006-01-02", req.ReleaseDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "release_date must be YYYY-MM-DD"})
			return
		}
	}

	out, err := h.ledger.ReleaseRetention(c.Request.Context(), services.ReleaseRetentionInput{
		ProjectID:   c.Param("project_id"),
		CostCode:    c.Param("cost_code"),
		VendorID:    req.VendorID,
		Amount:      amount,
		ReleaseDate: releaseDate,
	}, actor(c), operationID(c, req.OperationID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Events returns recorded domain events for a pair, oldest first
func (h *FinanceHandler) Events(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := h.events.List(c.Request.Context(), c.Param("project_id"), c.Param("cost_code"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": rows})
}
