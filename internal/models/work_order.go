package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WorkOrder represents a commitment against a (project, cost code) budget.
// Draft orders have no ledger effect; issued and revised orders contribute
// their base amount to the committed value.
type WorkOrder struct {
	ID                  string          `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID            string          `gorm:"size:64;not null;default:default;index" json:"tenant_id"`
	ProjectID           string          `gorm:"size:64;not null;index:idx_wo_project_code" json:"project_id"`
	CostCode            string          `gorm:"size:64;not null;index:idx_wo_project_code" json:"cost_code"`
	VendorID            string          `gorm:"size:64;not null;index" json:"vendor_id"`
	Title               string          `gorm:"size:255" json:"title"`
	Status              string          `gorm:"size:32;default:draft;not null;index" json:"status"`
	DocumentNumber      string          `gorm:"size:32;default:DRAFT;not null" json:"document_number"`
	SequenceNumber      int64           `gorm:"default:0;not null" json:"sequence_number"`
	Rate                decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"rate"`
	Quantity            decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"quantity"`
	RetentionPercentage decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"retention_percentage"`
	BaseAmount          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"base_amount"`
	RetentionAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"retention_amount"`
	NetWOValue          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"net_wo_value"`
	VersionNumber       int64           `gorm:"default:1;not null" json:"version_number"`
	Locked              bool            `gorm:"default:false;not null" json:"locked"`
	CreatedAt           time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TableName specifies the table name for WorkOrder
func (WorkOrder) TableName() string {
	return "work_orders"
}

// Work order status constants
const (
	WorkOrderStatusDraft     = "draft"
	WorkOrderStatusIssued    = "issued"
	WorkOrderStatusRevised   = "revised"
	WorkOrderStatusCancelled = "cancelled"
)

// DraftDocumentNumber is the placeholder number carried until issuance.
const DraftDocumentNumber = "DRAFT"

// BeforeCreate assigns the entity id
func (w *WorkOrder) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// MayIssue returns true if the work order can be issued
func (w *WorkOrder) MayIssue() bool {
	return w.Status == WorkOrderStatusDraft
}

// MayRevise returns true if the work order can be revised
func (w *WorkOrder) MayRevise() bool {
	return w.Status == WorkOrderStatusIssued || w.Status == WorkOrderStatusRevised
}

// IsCommitted returns true if the work order contributes to committed value
func (w *WorkOrder) IsCommitted() bool {
	return w.Status == WorkOrderStatusIssued || w.Status == WorkOrderStatusRevised
}

// CommittedStatuses are the statuses that count toward committed value.
var CommittedStatuses = []string{WorkOrderStatusIssued, WorkOrderStatusRevised}

// WorkOrderResponse is the JSON response format for work orders
type WorkOrderResponse struct {
	ID                  string    `json:"id"`
	ProjectID           string    `json:"project_id"`
	CostCode            string    `json:"cost_code"`
	VendorID            string    `json:"vendor_id"`
	Title               string    `json:"title"`
	Status              string    `json:"status"`
	DocumentNumber      string    `json:"document_number"`
	Rate                string    `json:"rate"`
	Quantity            string    `json:"quantity"`
	RetentionPercentage string    `json:"retention_percentage"`
	BaseAmount          string    `json:"base_amount"`
	RetentionAmount     string    `json:"retention_amount"`
	NetWOValue          string    `json:"net_wo_value"`
	VersionNumber       int64     `json:"version_number"`
	Locked              bool      `json:"locked"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ToResponse converts WorkOrder to WorkOrderResponse
func (w *WorkOrder) ToResponse() WorkOrderResponse {
	return WorkOrderResponse{
		ID:                  w.ID,
		ProjectID:           w.ProjectID,
		CostCode:            w.CostCode,
		VendorID:            w.VendorID,
		Title:               w.Title,
		Status:              w.Status,
		DocumentNumber:      w.DocumentNumber,
		Rate:                w.Rate.StringFixed(2),
		Quantity:            w.Quantity.StringFixed(2),
		RetentionPercentage: w.RetentionPercentage.StringFixed(2),
		BaseAmount:          w.BaseAmount.StringFixed(2),
		RetentionAmount:     w.RetentionAmount.StringFixed(2),
		NetWOValue:          w.NetWOValue.StringFixed(2),
		VersionNumber:       w.VersionNumber,
		Locked:              w.Locked,
		CreatedAt:           w.CreatedAt,
		UpdatedAt:           w.UpdatedAt,
	}
}
