package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/costledger/costledger-api/internal/money"
	"github.com/costledger/costledger-api/internal/repository"
	"github.com/costledger/costledger-api/internal/services"
	"github.com/gin-gonic/gin"
)

type CertificateHandler struct {
	ledger *services.LedgerService
}

func NewCertificateHandler(ledger *services.LedgerService) *CertificateHandler {
	return &CertificateHandler{ledger: ledger}
}

type createCertificateRequest struct {
	TenantID            string  `json:"tenant_id"`
	ProjectID           string  `json:"project_id" binding:"required"`
	CostCode            string  `json:"cost_code" binding:"required"`
	VendorID            string  `json:"vendor_id" binding:"required"`
	WorkOrderID         *string `json:"work_order_id"`
	InvoiceNumber       string  `json:"invoice_number"`
	CurrentBillAmount   string  `json:"current_bill_amount" binding:"required"`
	RetentionPercentage string  `json:"retention_percentage"`
	GSTRate             string  `json:"gst_rate"`
}

// Create creates a draft certificate with previewed figures
func (h *CertificateHandler) Create(c *gin.Context) {
	var req createCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bill, err := money.Parse("current_bill_amount", req.CurrentBillAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	retention, err := parseOptionalDecimal("retention_percentage", req.RetentionPercentage)
	if err != nil {
		respondError(c, err)
		return
	}
	gst, err := parseOptionalDecimal("gst_rate", req.GSTRate)
	if err != nil {
		respondError(c, err)
		return
	}

	pc, err := h.ledger.CreateCertificate(c.Request.Context(), services.CreateCertificateInput{
		TenantID:            req.TenantID,
		ProjectID:           req.ProjectID,
		CostCode:            req.CostCode,
		VendorID:            req.VendorID,
		WorkOrderID:         req.WorkOrderID,
		InvoiceNumber:       req.InvoiceNumber,
		CurrentBillAmount:   bill,
		RetentionPercentage: retention,
		GSTRate:             gst,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"payment_certificate": pc.ToResponse()})
}

// Show returns one certificate
func (h *CertificateHandler) Show(c *gin.Context) {
	pc, err := h.ledger.GetCertificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_certificate": pc.ToResponse()})
}

// Index returns a paginated list of certificates
func (h *CertificateHandler) Index(c *gin.Context) {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	query.Status = c.Query("status")
	query.Project = c.Query("project_id")
	query.Code = c.Query("cost_code")

	certs, total, err := h.ledger.ListCertificates(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]interface{}, 0, len(certs))
	for _, pc := range certs {
		responses = append(responses, pc.ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_certificates": responses,
		"pagination": gin.H{
			"page":     query.Page,
			"per_page": query.PerPage,
			"total":    total,
		},
	})
}

type certifyRequest struct {
	InvoiceNumber string `json:"invoice_number"`
	OperationID   string `json:"operation_id"`
}

// Certify runs the duplicate invoice guard, assigns a document number and
// commits the certificate to the ledger.
func (h *CertificateHandler) Certify(c *gin.Context) {
	var req certifyRequest
	_ = c.ShouldBindJSON(&req)

	out, err := h.ledger.CertifyCertificate(c.Request.Context(), c.Param("id"),
		req.InvoiceNumber, actor(c), operationID(c, req.OperationID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type recordPaymentRequest struct {
	Amount      string `json:"amount" binding:"required"`
	PaymentDate string `json:"payment_date"`
	Reference   string `json:"reference"`
	OperationID string `json:"operation_id"`
}

// Pay records a payment against the certificate
func (h *CertificateHandler) Pay(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := money.Parse("amount", req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	paymentDate := time.Now()
	if req.PaymentDate != "" {
		paymentDate, err = time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "payment_date must be YYYY-MM-DD"})
			return
		}
	}

	out, err := h.ledger.RecordPayment(c.Request.Context(), c.Param("id"), services.RecordPaymentInput{
		Amount:      amount,
		PaymentDate: paymentDate,
		Reference:   req.Reference,
	}, actor(c), operationID(c, req.OperationID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Payments lists the payments recorded against the certificate
func (h *CertificateHandler) Payments(c *gin.Context) {
	payments, err := h.ledger.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]interface{}, 0, len(payments))
	for _, p := range payments {
		responses = append(responses, p.ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"payments": responses})
}

// Cancel soft-disables a draft certificate
func (h *CertificateHandler) Cancel(c *gin.Context) {
	if err := h.ledger.CancelDraft(c.Request.Context(), services.EntityCertificate, c.Param("id"), actor(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// Delete always rejects: ledger entities are never hard-deleted.
func (h *CertificateHandler) Delete(c *gin.Context) {
	respondError(c, h.ledger.Delete(c.Request.Context(), services.EntityCertificate, c.Param("id")))
}

// Versions returns the snapshot history of a certificate
func (h *CertificateHandler) Versions(c *gin.Context) {
	versions, err := h.ledger.ListCertificateVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// Lock blocks further mutation of the certificate
func (h *CertificateHandler) Lock(c *gin.Context) {
	var req lockRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.ledger.Lock(c.Request.Context(), services.EntityCertificate, c.Param("id"), actor(c), req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": true})
}

// Unlock lifts the lock; the reason is mandatory
func (h *CertificateHandler) Unlock(c *gin.Context) {
	var req lockRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.ledger.Unlock(c.Request.Context(), services.EntityCertificate, c.Param("id"), actor(c), req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": false})
}
