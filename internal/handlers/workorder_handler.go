package handlers

import (
	"net/http"
	"strconv"

	"github.com/costledger/costledger-api/internal/money"
	"github.com/costledger/costledger-api/internal/repository"
	"github.com/costledger/costledger-api/internal/services"
	"github.com/gin-gonic/gin"
)

type WorkOrderHandler struct {
	ledger *services.LedgerService
}

func NewWorkOrderHandler(ledger *services.LedgerService) *WorkOrderHandler {
	return &WorkOrderHandler{ledger: ledger}
}

type createWorkOrderRequest struct {
	TenantID            string `json:"tenant_id"`
	ProjectID           string `json:"project_id" binding:"required"`
	CostCode            string `json:"cost_code" binding:"required"`
	VendorID            string `json:"vendor_id" binding:"required"`
	Title               string `json:"title"`
	Rate                string `json:"rate" binding:"required"`
	Quantity            string `json:"quantity" binding:"required"`
	RetentionPercentage string `json:"retention_percentage"`
}

// Create creates a draft work order. No document number is assigned here.
func (h *WorkOrderHandler) Create(c *gin.Context) {
	var req createWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rate, err := money.Parse("rate", req.Rate)
	if err != nil {
		respondError(c, err)
		return
	}
	quantity, err := money.Parse("quantity", req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	retention, err := parseOptionalDecimal("retention_percentage", req.RetentionPercentage)
	if err != nil {
		respondError(c, err)
		return
	}

	wo, err := h.ledger.CreateWorkOrder(c.Request.Context(), services.CreateWorkOrderInput{
		TenantID:            req.TenantID,
		ProjectID:           req.ProjectID,
		CostCode:            req.CostCode,
		VendorID:            req.VendorID,
		Title:               req.Title,
		Rate:                rate,
		Quantity:            quantity,
		RetentionPercentage: retention,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"work_order": wo.ToResponse()})
}

// Show returns one work order
func (h *WorkOrderHandler) Show(c *gin.Context) {
	wo, err := h.ledger.GetWorkOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"work_order": wo.ToResponse()})
}

// Index returns a paginated list of work orders
func (h *WorkOrderHandler) Index(c *gin.Context) {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Status = c.Query("status")
	query.Project = c.Query("project_id")
	query.Code = c.Query("cost_code")

	orders, total, err := h.ledger.ListWorkOrders(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]interface{}, 0, len(orders))
	for _, wo := range orders {
		responses = append(responses, wo.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"work_orders": responses,
		"pagination": gin.H{
			"page":     query.Page,
			"per_page": query.PerPage,
			"total":    total,
		},
	})
}

type operationRequest struct {
	OperationID string `json:"operation_id"`
}

// Issue assigns a document number and commits the work order to the ledger.
func (h *WorkOrderHandler) Issue(c *gin.Context) {
	var req operationRequest
	_ = c.ShouldBindJSON(&req)

	out, err := h.ledger.IssueWorkOrder(c.Request.Context(), c.Param("id"), actor(c), operationID(c, req.OperationID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type reviseWorkOrderRequest struct {
	Rate                string `json:"rate" binding:"required"`
	Quantity            string `json:"quantity" binding:"required"`
	RetentionPercentage string `json:"retention_percentage"`
	OperationID         string `json:"operation_id"`
}

// Revise replaces the figures of an issued work order
func (h *WorkOrderHandler) Revise(c *gin.Context) {
	var req reviseWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rate, err := money.Parse("rate", req.Rate)
	if err != nil {
		respondError(c, err)
		return
	}
	quantity, err := money.Parse("quantity", req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	retention, err := parseOptionalDecimal("retention_percentage", req.RetentionPercentage)
	if err != nil {
		respondError(c, err)
		return
	}

	out, err := h.ledger.ReviseWorkOrder(c.Request.Context(), c.Param("id"), services.ReviseWorkOrderInput{
		Rate:                rate,
		Quantity:            quantity,
		RetentionPercentage: retention,
	}, actor(c), operationID(c, req.OperationID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Cancel soft-disables a draft work order
func (h *WorkOrderHandler) Cancel(c *gin.Context) {
	if err := h.ledger.CancelDraft(c.Request.Context(), services.EntityWorkOrder, c.Param("id"), actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// Delete always rejects: ledger entities are never hard-deleted.
func (h *WorkOrderHandler) Delete(c *gin.Context) {
	respondError(c, h.ledger.Delete(c.Request.Context(), services.EntityWorkOrder, c.Param("id")))
}

// Versions returns the snapshot history of a work order
func (h *WorkOrderHandler) Versions(c *gin.Context) {
	versions, err := h.ledger.ListWorkOrderVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

type lockRequest struct {
	Reason string `json:"reason"`
}

// Lock blocks further mutation of the work order
func (h *WorkOrderHandler) Lock(c *gin.Context) {
	var req lockRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.ledger.Lock(c.Request.Context(), services.EntityWorkOrder, c.Param("id"), actor(c), req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": true})
}

// Unlock lifts the lock; the reason is mandatory
func (h *WorkOrderHandler) Unlock(c *gin.Context) {
	var req lockRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.ledger.Unlock(c.Request.Context(), services.EntityWorkOrder, c.Param("id"), actor(c), req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": false})
}
