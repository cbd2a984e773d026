package repository

import (
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	WorkOrder   WorkOrderRepository
	Certificate CertificateRepository
	Payment     PaymentRepository
	Retention   RetentionReleaseRepository
	Aggregate   AggregateRepository
	Budget      BudgetRepository
	Sequence    SequenceRepository
	Operation   OperationRepository
	Version     VersionRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		WorkOrder:   NewWorkOrderRepository(db),
		Certificate: NewCertificateRepository(db),
		Payment:     NewPaymentRepository(db),
		Retention:   NewRetentionReleaseRepository(db),
		Aggregate:   NewAggregateRepository(db),
		Budget:      NewBudgetRepository(db),
		Sequence:    NewSequenceRepository(db),
		Operation:   NewOperationRepository(db),
		Version:     NewVersionRepository(db),
	}
}

// WithTx returns a copy of the repository set bound to the given transaction.
// Mutating operations run every read and write of their span through a
// tx-bound set so a rollback leaves nothing partial behind.
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return &Repositories{
		WorkOrder:   r.WorkOrder.WithTx(tx),
		Certificate: r.Certificate.WithTx(tx),
		Payment:     r.Payment.WithTx(tx),
		Retention:   r.Retention.WithTx(tx),
		Aggregate:   r.Aggregate.WithTx(tx),
		Budget:      r.Budget.WithTx(tx),
		Sequence:    r.Sequence,
		Operation:   r.Operation,
		Version:     r.Version.WithTx(tx),
	}
}

// ListQuery carries pagination parameters for list endpoints
type ListQuery struct {
	Page    int
	PerPage int
	Status  string
	Project string
	Code    string
}

// NewListQuery returns a query with default pagination
func NewListQuery() *ListQuery {
	return &ListQuery{Page: 1, PerPage: 20}
}

// Offset returns the row offset for the current page
func (q *ListQuery) Offset() int {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > 100 {
		q.PerPage = 20
	}
	return (q.Page - 1) * q.PerPage
}
