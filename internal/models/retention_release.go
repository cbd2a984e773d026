package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RetentionRelease is an immutable append-only record of retention money
// returned to a vendor. Each release reduces the retention held for its
// (project, cost code).
type RetentionRelease struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID   string          `gorm:"size:64;not null;index:idx_rr_project_code" json:"project_id"`
	CostCode    string          `gorm:"size:64;not null;index:idx_rr_project_code" json:"cost_code"`
	VendorID    string          `gorm:"size:64;not null;index" json:"vendor_id"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	ReleaseDate time.Time       `gorm:"type:date;not null" json:"release_date"`
	RecordedBy  string          `gorm:"size:64;not null" json:"recorded_by"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for RetentionRelease
func (RetentionRelease) TableName() string {
	return "retention_releases"
}

// BeforeCreate assigns the entity id
func (r *RetentionRelease) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RetentionReleaseResponse is the JSON response format for releases
type RetentionReleaseResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	CostCode    string    `json:"cost_code"`
	VendorID    string    `json:"vendor_id"`
	Amount      string    `json:"amount"`
	ReleaseDate time.Time `json:"release_date"`
	RecordedBy  string    `json:"recorded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToResponse converts RetentionRelease to RetentionReleaseResponse
func (r *RetentionRelease) ToResponse() RetentionReleaseResponse {
	return RetentionReleaseResponse{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		CostCode:    r.CostCode,
		VendorID:    r.VendorID,
		Amount:      r.Amount.StringFixed(2),
		ReleaseDate: r.ReleaseDate,
		RecordedBy:  r.RecordedBy,
		CreatedAt:   r.CreatedAt,
	}
}
