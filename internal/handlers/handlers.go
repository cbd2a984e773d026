package handlers

import (
	"github.com/costledger/costledger-api/internal/middleware"
	"github.com/costledger/costledger-api/internal/money"
	"github.com/costledger/costledger-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handlers holds all handler instances
type Handlers struct {
	Health      *HealthHandler
	WorkOrder   *WorkOrderHandler
	Certificate *CertificateHandler
	Finance     *FinanceHandler
	Audit       *AuditHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services) *Handlers {
	return &Handlers{
		Health:      NewHealthHandler(),
		WorkOrder:   NewWorkOrderHandler(svcs.Ledger),
		Certificate: NewCertificateHandler(svcs.Ledger),
		Finance:     NewFinanceHandler(svcs.Ledger, svcs.Events),
		Audit:       NewAuditHandler(svcs.Audit),
	}
}

// actor resolves the acting user for audit and snapshot attribution.
func actor(c *gin.Context) string {
	if id := middleware.GetActorID(c); id != "" {
		return id
	}
	return "system"
}

// operationID resolves the idempotency key: an explicit body value wins,
// then the X-Operation-Id header, then empty (the ledger generates one).
func operationID(c *gin.Context, bodyValue string) string {
	if bodyValue != "" {
		return bodyValue
	}
	return c.GetHeader("X-Operation-Id")
}

// parseOptionalDecimal treats an empty string as zero.
func parseOptionalDecimal(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return money.Parse(field, value)
}
