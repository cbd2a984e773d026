package models

// DocumentSequence is the per-(tenant, prefix) monotonic counter backing
// document numbering. It is advanced with a single atomic fetch-and-increment
// outside the surrounding mutation transaction; numbering only needs "no two
// callers get the same number", not consistency with the rest of the
// mutation, so aborted transactions may leave gaps.
type DocumentSequence struct {
	TenantID        string `gorm:"size:64;primaryKey" json:"tenant_id"`
	Prefix          string `gorm:"size:16;primaryKey" json:"prefix"`
	CurrentSequence int64  `gorm:"default:0;not null" json:"current_sequence"`
}

// TableName specifies the table name for DocumentSequence
func (DocumentSequence) TableName() string {
	return "document_sequences"
}
