package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/costledger/costledger-api/internal/events"
	"github.com/costledger/costledger-api/internal/models"
	"github.com/costledger/costledger-api/internal/money"
	"github.com/costledger/costledger-api/internal/repository"
	"github.com/costledger/costledger-api/internal/statemachine"
	"github.com/costledger/costledger-api/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Entity type names used by lock, delete and audit paths
const (
	EntityWorkOrder   = "work_order"
	EntityCertificate = "payment_certificate"
)

// TxRunner opens the transactional session a mutation runs in. *gorm.DB
// satisfies it.
type TxRunner interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// EventPublisher is the post-commit side channel for domain events.
type EventPublisher interface {
	Publish(evt events.Event)
}

// AuditRecorder writes best-effort audit entries.
type AuditRecorder interface {
	Log(ctx context.Context, actorID, action, entity, entityID, details string)
}

// LedgerService orchestrates every ledger mutation: idempotency check,
// aggregate row lock, business mutation through the state machine,
// recalculation, invariant validation, commit, then post-commit event
// emission. Any error inside the span aborts the whole transaction.
type LedgerService struct {
	db          TxRunner
	repos       *repository.Repositories
	machine     *statemachine.Machine
	numbering   *NumberingService
	invariants  *InvariantService
	recalc      *RecalcService
	idempotency *IdempotencyService
	audit       AuditRecorder
	events      EventPublisher
}

// NewLedgerService wires the service graph and registers the transition
// table once at startup.
func NewLedgerService(
	db TxRunner,
	repos *repository.Repositories,
	numbering *NumberingService,
	invariants *InvariantService,
	recalc *RecalcService,
	idempotency *IdempotencyService,
	audit AuditRecorder,
	publisher EventPublisher,
) *LedgerService {
	s := &LedgerService{
		db:          db,
		repos:       repos,
		numbering:   numbering,
		invariants:  invariants,
		recalc:      recalc,
		idempotency: idempotency,
		audit:       audit,
		events:      publisher,
	}
	s.machine = s.buildMachine()
	return s
}

// workOrderMutation is the state machine payload for work order transitions
type workOrderMutation struct {
	wo           *models.WorkOrder
	rate         decimal.Decimal
	quantity     decimal.Decimal
	retentionPct decimal.Decimal
}

// certificateMutation is the state machine payload for certificate transitions
type certificateMutation struct {
	pc      *models.PaymentCertificate
	payment *models.Payment
}

func (s *LedgerService) buildMachine() *statemachine.Machine {
	m := statemachine.New()

	m.Register(statemachine.KindWorkOrder,
		models.WorkOrderStatusDraft, models.WorkOrderStatusIssued,
		"issue", s.guardWorkOrderValues, s.handleWorkOrderIssue)
	m.Register(statemachine.KindWorkOrder,
		models.WorkOrderStatusIssued, models.WorkOrderStatusRevised,
		"revise", s.guardWorkOrderRevision, s.handleWorkOrderRevise)
	m.Register(statemachine.KindWorkOrder,
		models.WorkOrderStatusRevised, models.WorkOrderStatusRevised,
		"revise", s.guardWorkOrderRevision, s.handleWorkOrderRevise)
	m.Register(statemachine.KindWorkOrder,
		models.WorkOrderStatusDraft, models.WorkOrderStatusCancelled,
		"cancel", nil, s.handleNoop)

	m.Register(statemachine.KindPaymentCertificate,
		models.CertificateStatusDraft, models.CertificateStatusCertified,
		"certify", s.guardCertificateValues, s.handleCertify)
	m.Register(statemachine.KindPaymentCertificate,
		models.CertificateStatusCertified, models.CertificateStatusPartiallyPaid,
		"record_partial_payment", s.guardPayment, s.handleRecordPayment)
	m.Register(statemachine.KindPaymentCertificate,
		models.CertificateStatusCertified, models.CertificateStatusFullyPaid,
		"record_full_payment", s.guardPayment, s.handleRecordPayment)
	m.Register(statemachine.KindPaymentCertificate,
		models.CertificateStatusPartiallyPaid, models.CertificateStatusPartiallyPaid,
		"record_partial_payment", s.guardPayment, s.handleRecordPayment)
	m.Register(statemachine.KindPaymentCertificate,
		models.CertificateStatusPartiallyPaid, models.CertificateStatusFullyPaid,
		"record_full_payment", s.guardPayment, s.handleRecordPayment)
	m.Register(statemachine.KindPaymentCertificate,
		models.CertificateStatusDraft, models.CertificateStatusCancelled,
		"cancel", nil, s.handleNoop)

	return m
}

// --- guards and handlers -------------------------------------------------

func (s *LedgerService) guardWorkOrderValues(ctx context.Context, tc *statemachine.Context) error {
	wm := tc.Entity.(*workOrderMutation)
	if err := money.RequirePositive("rate", wm.wo.Rate); err != nil {
		return err
	}
	if err := money.RequirePositive("quantity", wm.wo.Quantity); err != nil {
		return err
	}
	return money.RequireNonNegative("retention_percentage", wm.wo.RetentionPercentage)
}

func (s *LedgerService) guardWorkOrderRevision(ctx context.Context, tc *statemachine.Context) error {
	wm := tc.Entity.(*workOrderMutation)
	if err := money.RequirePositive("rate", wm.rate); err != nil {
		return err
	}
	if err := money.RequirePositive("quantity", wm.quantity); err != nil {
		return err
	}
	return money.RequireNonNegative("retention_percentage", wm.retentionPct)
}

func (s *LedgerService) handleWorkOrderIssue(ctx context.Context, tc *statemachine.Context) (*statemachine.Result, error) {
	wm := tc.Entity.(*workOrderMutation)
	wo := wm.wo

	values, err := money.CalculateWorkOrderValues(wo.Rate, wo.Quantity, wo.RetentionPercentage)
	if err != nil {
		return nil, err
	}

	number, seq, err := s.numbering.NextDocumentNumber(ctx, wo.TenantID, PrefixWorkOrder)
	if err != nil {
		return nil, err
	}

	wo.DocumentNumber = number
	wo.SequenceNumber = seq
	wo.BaseAmount = values.BaseAmount
	wo.RetentionAmount = values.RetentionAmount
	wo.NetWOValue = values.NetValue

	return &statemachine.Result{DocumentNumber: number}, nil
}

func (s *LedgerService) handleWorkOrderRevise(ctx context.Context, tc *statemachine.Context) (*statemachine.Result, error) {
	wm := tc.Entity.(*workOrderMutation)
	wo := wm.wo

	values, err := money.CalculateWorkOrderValues(wm.rate, wm.quantity, wm.retentionPct)
	if err != nil {
		return nil, err
	}

	wo.Rate = wm.rate
	wo.Quantity = wm.quantity
	wo.RetentionPercentage = wm.retentionPct
	wo.BaseAmount = values.BaseAmount
	wo.RetentionAmount = values.RetentionAmount
	wo.NetWOValue = values.NetValue

	return &statemachine.Result{DocumentNumber: wo.DocumentNumber}, nil
}

func (s *LedgerService) guardCertificateValues(ctx context.Context, tc *statemachine.Context) error {
	cm := tc.Entity.(*certificateMutation)
	return money.RequirePositive("current_bill_amount", cm.pc.CurrentBillAmount)
}

func (s *LedgerService) handleCertify(ctx context.Context, tc *statemachine.Context) (*statemachine.Result, error) {
	cm := tc.Entity.(*certificateMutation)
	pc := cm.pc
	certs := s.repos.Certificate.WithTx(tc.Tx)

	values, err := money.CalculateCertificateValues(pc.CurrentBillAmount, pc.RetentionPercentage, pc.GSTRate)
	if err != nil {
		return nil, err
	}

	previousCertified, err := certs.SumCurrentBill(ctx, pc.ProjectID, pc.CostCode, models.CertifiedStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to sum prior certifications: %w", err)
	}
	previousRetention, err := certs.SumRetentionCurrent(ctx, pc.ProjectID, pc.CostCode, models.CertifiedStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to sum prior retention: %w", err)
	}

	number, seq, err := s.numbering.NextDocumentNumber(ctx, pc.TenantID, PrefixCertificate)
	if err != nil {
		return nil, err
	}

	pc.DocumentNumber = number
	pc.SequenceNumber = seq
	pc.RetentionCurrent = values.RetentionCurrent
	pc.TaxableAmount = values.TaxableAmount
	pc.CGSTAmount = values.CGSTAmount
	pc.SGSTAmount = values.SGSTAmount
	pc.NetPayable = values.NetPayable
	pc.CumulativePreviousCertified = money.Round(previousCertified)
	pc.RetentionCumulative = money.Round(previousRetention.Add(values.RetentionCurrent))

	return &statemachine.Result{DocumentNumber: number}, nil
}

func (s *LedgerService) guardPayment(ctx context.Context, tc *statemachine.Context) error {
	cm := tc.Entity.(*certificateMutation)
	if err := money.RequirePositive("amount", cm.payment.Amount); err != nil {
		return err
	}
	outstanding := cm.pc.OutstandingPayable()
	if cm.payment.Amount.GreaterThan(outstanding) {
		return fmt.Errorf("payment of %s exceeds outstanding payable %s",
			cm.payment.Amount.StringFixed(2), outstanding.StringFixed(2))
	}
	return nil
}

func (s *LedgerService) handleRecordPayment(ctx context.Context, tc *statemachine.Context) (*statemachine.Result, error) {
	cm := tc.Entity.(*certificateMutation)
	pc := cm.pc

	cm.payment.CertificateID = pc.ID
	cm.payment.ProjectID = pc.ProjectID
	cm.payment.CostCode = pc.CostCode

	if err := s.repos.Payment.WithTx(tc.Tx).Create(ctx, cm.payment); err != nil {
		return nil, fmt.Errorf("failed to append payment: %w", err)
	}

	pc.TotalPaidCumulative = money.Round(pc.TotalPaidCumulative.Add(cm.payment.Amount))

	return &statemachine.Result{
		DocumentNumber: pc.DocumentNumber,
		Fields:         map[string]string{"payment_id": cm.payment.ID},
	}, nil
}

func (s *LedgerService) handleNoop(ctx context.Context, tc *statemachine.Context) (*statemachine.Result, error) {
	return &statemachine.Result{}, nil
}

// --- outcomes ------------------------------------------------------------

// Replayed operations answer with status "skipped" and this reason; the
// entity's own status moves to a separate field so the caller can still see
// where the original mutation landed.
const (
	StatusSkipped          = "skipped"
	SkippedReasonDuplicate = "idempotent_duplicate"
)

// TransitionOutcome reports an issue/revise/certify/cancel mutation
type TransitionOutcome struct {
	OperationID    string `json:"operation_id"`
	EntityID       string `json:"entity_id"`
	DocumentNumber string `json:"document_number,omitempty"`
	Status         string `json:"status"`
	EntityStatus   string `json:"entity_status,omitempty"`
	Skipped        bool   `json:"skipped,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// PaymentOutcome reports a recorded payment
type PaymentOutcome struct {
	Status              string `json:"status,omitempty"`
	OperationID         string `json:"operation_id"`
	PaymentID           string `json:"payment_id"`
	TotalPaidCumulative string `json:"total_paid_cumulative"`
	CertificateStatus   string `json:"pc_status"`
	Skipped             bool   `json:"skipped,omitempty"`
	Reason              string `json:"reason,omitempty"`
}

// ReleaseOutcome reports a retention release
type ReleaseOutcome struct {
	Status             string `json:"status,omitempty"`
	OperationID        string `json:"operation_id"`
	ReleaseID          string `json:"release_id"`
	RemainingRetention string `json:"remaining_retention"`
	Skipped            bool   `json:"skipped,omitempty"`
	Reason             string `json:"reason,omitempty"`
}

// BudgetOutcome reports a budget update
type BudgetOutcome struct {
	Status      string `json:"status,omitempty"`
	OperationID string `json:"operation_id"`
	ProjectID   string `json:"project_id"`
	CostCode    string `json:"cost_code"`
	OldAmount   string `json:"old_amount"`
	NewAmount   string `json:"new_amount"`
	Skipped     bool   `json:"skipped,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// --- draft creation ------------------------------------------------------

// CreateWorkOrderInput is the payload for draft work order creation
type CreateWorkOrderInput struct {
	TenantID            string
	ProjectID           string
	CostCode            string
	VendorID            string
	Title               string
	Rate                decimal.Decimal
	Quantity            decimal.Decimal
	RetentionPercentage decimal.Decimal
}

// CreateWorkOrder creates a draft. Drafts have no ledger effect and carry no
// document number; derived values are still computed so callers can preview
// them.
func (s *LedgerService) CreateWorkOrder(ctx context.Context, input CreateWorkOrderInput) (*models.WorkOrder, error) {
	values, err := money.CalculateWorkOrderValues(input.Rate, input.Quantity, input.RetentionPercentage)
	if err != nil {
		return nil, err
	}

	tenant := input.TenantID
	if tenant == "" {
		tenant = "default"
	}

	wo := &models.WorkOrder{
		TenantID:            tenant,
		ProjectID:           input.ProjectID,
		CostCode:            input.CostCode,
		VendorID:            input.VendorID,
		Title:               input.Title,
		Status:              models.WorkOrderStatusDraft,
		DocumentNumber:      models.DraftDocumentNumber,
		Rate:                money.Round(input.Rate),
		Quantity:            money.Round(input.Quantity),
		RetentionPercentage: input.RetentionPercentage,
		BaseAmount:          values.BaseAmount,
		RetentionAmount:     values.RetentionAmount,
		NetWOValue:          values.NetValue,
		VersionNumber:       1,
	}
	if err := s.repos.WorkOrder.Create(ctx, wo); err != nil {
		return nil, fmt.Errorf("failed to create work order: %w", err)
	}
	return wo, nil
}

// CreateCertificateInput is the payload for draft certificate creation
type CreateCertificateInput struct {
	TenantID            string
	ProjectID           string
	CostCode            string
	VendorID            string
	WorkOrderID         *string
	InvoiceNumber       string
	CurrentBillAmount   decimal.Decimal
	RetentionPercentage decimal.Decimal
	GSTRate             decimal.Decimal
}

// CreateCertificate creates a draft certificate with previewed figures; the
// authoritative figures are recomputed at certification.
func (s *LedgerService) CreateCertificate(ctx context.Context, input CreateCertificateInput) (*models.PaymentCertificate, error) {
	values, err := money.CalculateCertificateValues(input.CurrentBillAmount, input.RetentionPercentage, input.GSTRate)
	if err != nil {
		return nil, err
	}

	tenant := input.TenantID
	if tenant == "" {
		tenant = "default"
	}

	pc := &models.PaymentCertificate{
		TenantID:            tenant,
		ProjectID:           input.ProjectID,
		CostCode:            input.CostCode,
		VendorID:            input.VendorID,
		WorkOrderID:         input.WorkOrderID,
		InvoiceNumber:       input.InvoiceNumber,
		Status:              models.CertificateStatusDraft,
		DocumentNumber:      models.DraftDocumentNumber,
		CurrentBillAmount:   money.Round(input.CurrentBillAmount),
		RetentionPercentage: input.RetentionPercentage,
		GSTRate:             input.GSTRate,
		RetentionCurrent:    values.RetentionCurrent,
		TaxableAmount:       values.TaxableAmount,
		CGSTAmount:          values.CGSTAmount,
		SGSTAmount:          values.SGSTAmount,
		NetPayable:          values.NetPayable,
		VersionNumber:       1,
	}
	if err := s.repos.Certificate.Create(ctx, pc); err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	return pc, nil
}

// --- work order mutations ------------------------------------------------

// IssueWorkOrder assigns a document number and moves the draft into the
// committed ledger.
func (s *LedgerService) IssueWorkOrder(ctx context.Context, id, actor, operationID string) (*TransitionOutcome, error) {
	check, err := s.idempotency.Ensure(ctx, operationID, EntityWorkOrder, id)
	if err != nil {
		return nil, err
	}
	if check.Duplicate {
		return duplicateTransitionOutcome(check)
	}

	var outcome *TransitionOutcome
	var projectID, costCode string
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		wo, err := repos.WorkOrder.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "work order")
		}
		if wo.Locked {
			return &DocumentLockedError{EntityType: EntityWorkOrder, EntityID: wo.ID}
		}
		projectID, costCode = wo.ProjectID, wo.CostCode
		if err := lockAggregate(ctx, repos, wo.ProjectID, wo.CostCode); err != nil {
			return err
		}
		if err := snapshotWorkOrder(ctx, repos, wo, actor); err != nil {
			return err
		}

		result, err := s.machine.Transition(ctx, statemachine.KindWorkOrder,
			wo.Status, models.WorkOrderStatusIssued,
			&statemachine.Context{Tx: tx, Actor: actor, Entity: &workOrderMutation{wo: wo}})
		if err != nil {
			return err
		}

		wo.Status = result.Status
		wo.VersionNumber++
		if err := repos.WorkOrder.Update(ctx, wo); err != nil {
			return fmt.Errorf("failed to update work order: %w", err)
		}

		if _, err := s.recalc.Recalculate(ctx, repos, wo.ProjectID, wo.CostCode); err != nil {
			return err
		}
		if err := s.invariants.Validate(ctx, repos, wo.ProjectID, wo.CostCode); err != nil {
			return err
		}

		outcome = &TransitionOutcome{
			OperationID:    check.OperationID,
			EntityID:       wo.ID,
			DocumentNumber: result.DocumentNumber,
			Status:         result.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.finishMutation(ctx, check.OperationID, outcome, events.Event{
		Type:       events.TypeWorkOrderIssued,
		EntityType: EntityWorkOrder,
		EntityID:   outcome.EntityID,
		ProjectID:  projectID,
		CostCode:   costCode,
		ActorID:    actor,
		Payload:    map[string]string{"document_number": outcome.DocumentNumber},
	}, actor, "ISSUE", EntityWorkOrder, outcome.EntityID)

	return outcome, nil
}

// ReviseWorkOrderInput carries the replacement figures for a revision
type ReviseWorkOrderInput struct {
	Rate                decimal.Decimal
	Quantity            decimal.Decimal
	RetentionPercentage decimal.Decimal
}

// ReviseWorkOrder recomputes the derived values from the new figures. The
// aggregate is fully re-derived afterwards; there is no delta arithmetic.
func (s *LedgerService) ReviseWorkOrder(ctx context.Context, id string, input ReviseWorkOrderInput, actor, operationID string) (*TransitionOutcome, error) {
	check, err := s.idempotency.Ensure(ctx, operationID, EntityWorkOrder, id)
	if err != nil {
		return nil, err
	}
	if check.Duplicate {
		return duplicateTransitionOutcome(check)
	}

	var outcome *TransitionOutcome
	var projectID, costCode string
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		wo, err := repos.WorkOrder.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "work order")
		}
		if wo.Locked {
			return &DocumentLockedError{EntityType: EntityWorkOrder, EntityID: wo.ID}
		}
		projectID, costCode = wo.ProjectID, wo.CostCode
		if err := lockAggregate(ctx, repos, wo.ProjectID, wo.CostCode); err != nil {
			return err
		}
		if err := snapshotWorkOrder(ctx, repos, wo, actor); err != nil {
			return err
		}

		result, err := s.machine.Transition(ctx, statemachine.KindWorkOrder,
			wo.Status, models.WorkOrderStatusRevised,
			&statemachine.Context{Tx: tx, Actor: actor, Entity: &workOrderMutation{
				wo:           wo,
				rate:         input.Rate,
				quantity:     input.Quantity,
				retentionPct: input.RetentionPercentage,
			}})
		if err != nil {
			return err
		}

		wo.Status = result.Status
		wo.VersionNumber++
		if err := repos.WorkOrder.Update(ctx, wo); err != nil {
			return fmt.Errorf("failed to update work order: %w", err)
		}

		if _, err := s.recalc.Recalculate(ctx, repos, wo.ProjectID, wo.CostCode); err != nil {
			return err
		}
		if err := s.invariants.Validate(ctx, repos, wo.ProjectID, wo.CostCode); err != nil {
			return err
		}

		outcome = &TransitionOutcome{
			OperationID:    check.OperationID,
			EntityID:       wo.ID,
			DocumentNumber: wo.DocumentNumber,
			Status:         result.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.finishMutation(ctx, check.OperationID, outcome, events.Event{
		Type:       events.TypeWorkOrderRevised,
		EntityType: EntityWorkOrder,
		EntityID:   outcome.EntityID,
		ProjectID:  projectID,
		CostCode:   costCode,
		ActorID:    actor,
		Payload:    map[string]string{"document_number": outcome.DocumentNumber},
	}, actor, "REVISE", EntityWorkOrder, outcome.EntityID)

	return outcome, nil
}

// --- certificate mutations -----------------------------------------------

// CertifyCertificate runs the duplicate invoice guard, assigns a document
// number and moves the draft into the certified ledger.
func (s *LedgerService) CertifyCertificate(ctx context.Context, id, invoiceNumber, actor, operationID string) (*TransitionOutcome, error) {
	check, err := s.idempotency.Ensure(ctx, operationID, EntityCertificate, id)
	if err != nil {
		return nil, err
	}
	if check.Duplicate {
		return duplicateTransitionOutcome(check)
	}

	var outcome *TransitionOutcome
	var projectID, costCode string
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		pc, err := repos.Certificate.FindByID(ctx, id)
		if err != nil {
			return notFoundOr(err, "payment certificate")
		}
		if pc.Locked {
			return &DocumentLockedError{EntityType: EntityCertificate, EntityID: pc.ID}
		}
		projectID, costCode = pc.ProjectID, pc.CostCode
		if invoiceNumber != "" {
			pc.InvoiceNumber = invoiceNumber
		}
		if pc.InvoiceNumber != "" {
			conflict, err := repos.Certificate.FindDuplicateInvoice(ctx, pc.VendorID, pc.ProjectID, pc.InvoiceNumber, pc.ID)
			if err != nil {
				return fmt.Errorf("failed to check invoice uniqueness: %w", err)
			}
			if conflict != nil {
				return &DuplicateInvoiceError{
					InvoiceNumber: pc.InvoiceNumber,
					VendorID:      pc.VendorID,
					ProjectID:     pc.ProjectID,
					ConflictingID: conflict.ID,
				}
			}
		}
		if err := lockAggregate(ctx, repos, pc.ProjectID, pc.CostCode); err != nil {
			return err
		}
		if err := snapshotCertificate(ctx, repos, pc, actor); err != nil {
			return err
		}

		result, err := s.machine.Transition(ctx, statemachine.KindPaymentCertificate,
			pc.Status, models.CertificateStatusCertified,
			&statemachine.Context{Tx: tx, Actor: actor, Entity: &certificateMutation{pc: pc}})
		if err != nil {
			return err
		}

		pc.Status = result.Status
		pc.VersionNumber++
		if err := repos.Certificate.Update(ctx, pc); err != nil {
			return fmt.Errorf("failed to update certificate: %w", err)
		}

		if _, err := s.recalc.Recalculate(ctx, repos, pc.ProjectID, pc.CostCode); err != nil {
			return err
		}
		if err := s.invariants.Validate(ctx, repos, pc.ProjectID, pc.CostCode); err != nil {
			return err
		}

		outcome = &TransitionOutcome{
			OperationID:    check.OperationID,
			EntityID:       pc.ID,
			DocumentNumber: result.DocumentNumber,
			Status:         result.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.finishMutation(ctx, check.OperationID, outcome, events.Event{
		Type:       events.TypeCertificateCertified,
		EntityType: EntityCertificate,
		EntityID:   outcome.EntityID,
		ProjectID:  projectID,
		CostCode:   costCode,
		ActorID:    actor,
		Payload:    map[string]string{"document_number": outcome.DocumentNumber},
	}, actor, "CERTIFY", EntityCertificate, outcome.EntityID)

	return outcome, nil
}

// RecordPaymentInput carries one payment against a certificate
type RecordPaymentInput struct {
	Amount      decimal.Decimal
	PaymentDate time.Time
	Reference   string
}

// RecordPayment appends an immutable payment and advances the certificate to
// partially or fully paid depending on whether the cumulative total meets
// the net payable.
func (s *LedgerService) RecordPayment(ctx context.Context, certificateID string, input RecordPaymentInput, actor, operationID string) (*PaymentOutcome, error) {
	check, err := s.idempotency.Ensure(ctx, operationID, EntityCertificate, certificateID)
	if err != nil {
		return nil, err
	}
	if check.Duplicate {
		outcome := &PaymentOutcome{}
		if err := json.Unmarshal(check.Response, outcome); err != nil {
			return nil, fmt.Errorf("failed to decode cached outcome: %w", err)
		}
		outcome.OperationID = check.OperationID
		outcome.Status = StatusSkipped
		outcome.Skipped = true
		outcome.Reason = SkippedReasonDuplicate
		return outcome, nil
	}

	var outcome *PaymentOutcome
	var projectID, costCode string
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		pc, err := repos.Certificate.FindByID(ctx, certificateID)
		if err != nil {
			return notFoundOr(err, "payment certificate")
		}
		if pc.Locked {
			return &DocumentLockedError{EntityType: EntityCertificate, EntityID: pc.ID}
		}
		projectID, costCode = pc.ProjectID, pc.CostCode
		if err := lockAggregate(ctx, repos, pc.ProjectID, pc.CostCode); err != nil {
			return err
		}
		if err := snapshotCertificate(ctx, repos, pc, actor); err != nil {
			return err
		}

		payment := &models.Payment{
			Amount:      money.Round(input.Amount),
			PaymentDate: input.PaymentDate,
			Reference:   input.Reference,
			RecordedBy:  actor,
		}

		target := models.CertificateStatusPartiallyPaid
		if pc.TotalPaidCumulative.Add(payment.Amount).GreaterThanOrEqual(pc.NetPayable) {
			target = models.CertificateStatusFullyPaid
		}

		result, err := s.machine.Transition(ctx, statemachine.KindPaymentCertificate,
			pc.Status, target,
			&statemachine.Context{Tx: tx, Actor: actor, Entity: &certificateMutation{pc: pc, payment: payment}})
		if err != nil {
			return err
		}

		pc.Status = result.Status
		pc.VersionNumber++
		if err := repos.Certificate.Update(ctx, pc); err != nil {
			return fmt.Errorf("failed to update certificate: %w", err)
		}

		if _, err := s.recalc.Recalculate(ctx, repos, pc.ProjectID, pc.CostCode); err != nil {
			return err
		}
		if err := s.invariants.Validate(ctx, repos, pc.ProjectID, pc.CostCode); err != nil {
			return err
		}

		outcome = &PaymentOutcome{
			OperationID:         check.OperationID,
			PaymentID:           result.Fields["payment_id"],
			TotalPaidCumulative: pc.TotalPaidCumulative.StringFixed(2),
			CertificateStatus:   result.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.finishMutation(ctx, check.OperationID, outcome, events.Event{
		Type:       events.TypePaymentRecorded,
		EntityType: EntityCertificate,
		EntityID:   certificateID,
		ProjectID:  projectID,
		CostCode:   costCode,
		ActorID:    actor,
		Payload: map[string]string{
			"payment_id": outcome.PaymentID,
			"amount":     input.Amount.StringFixed(2),
		},
	}, actor, "PAY", EntityCertificate, certificateID)

	return outcome, nil
}

// --- retention and budget ------------------------------------------------

// ReleaseRetentionInput identifies the pair and amount to release
type ReleaseRetentionInput struct {
	ProjectID   string
	CostCode    string
	VendorID    string
	Amount      decimal.Decimal
	ReleaseDate time.Time
}

// ReleaseRetention appends an immutable release record. Releasing more than
// is held fails the NEGATIVE_RETENTION invariant and rolls back.
func (s *LedgerService) ReleaseRetention(ctx context.Context, input ReleaseRetentionInput, actor, operationID string) (*ReleaseOutcome, error) {
	if err := money.RequirePositive("amount", input.Amount); err != nil {
		return nil, err
	}

	check, err := s.idempotency.Ensure(ctx, operationID, "retention_release", input.ProjectID+"/"+input.CostCode)
	if err != nil {
		return nil, err
	}
	if check.Duplicate {
		outcome := &ReleaseOutcome{}
		if err := json.Unmarshal(check.Response, outcome); err != nil {
			return nil, fmt.Errorf("failed to decode cached outcome: %w", err)
		}
		outcome.OperationID = check.OperationID
		outcome.Status = StatusSkipped
		outcome.Skipped = true
		outcome.Reason = SkippedReasonDuplicate
		return outcome, nil
	}

	var outcome *ReleaseOutcome
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		if err := lockAggregate(ctx, repos, input.ProjectID, input.CostCode); err != nil {
			return err
		}

		release := &models.RetentionRelease{
			ProjectID:   input.ProjectID,
			CostCode:    input.CostCode,
			VendorID:    input.VendorID,
			Amount:      money.Round(input.Amount),
			ReleaseDate: input.ReleaseDate,
			RecordedBy:  actor,
		}
		if err := repos.Retention.Create(ctx, release); err != nil {
			return fmt.Errorf("failed to append retention release: %w", err)
		}

		agg, err := s.recalc.Recalculate(ctx, repos, input.ProjectID, input.CostCode)
		if err != nil {
			return err
		}
		if err := s.invariants.Validate(ctx, repos, input.ProjectID, input.CostCode); err != nil {
			return err
		}

		outcome = &ReleaseOutcome{
			OperationID:        check.OperationID,
			ReleaseID:          release.ID,
			RemainingRetention: agg.RetentionHeld.StringFixed(2),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.finishMutation(ctx, check.OperationID, outcome, events.Event{
		Type:       events.TypeRetentionReleased,
		EntityType: "retention_release",
		EntityID:   outcome.ReleaseID,
		ProjectID:  input.ProjectID,
		CostCode:   input.CostCode,
		ActorID:    actor,
		Payload:    map[string]string{"amount": input.Amount.StringFixed(2)},
	}, actor, "RELEASE", "retention_release", outcome.ReleaseID)

	return outcome, nil
}

// UpdateBudget writes the approved budget for a pair, creating the aggregate
// on the first write. Reducing the budget below the already certified value
// is rejected.
func (s *LedgerService) UpdateBudget(ctx context.Context, projectID, costCode string, newAmount decimal.Decimal, actor, operationID string) (*BudgetOutcome, error) {
	if err := money.RequireNonNegative("amount", newAmount); err != nil {
		return nil, err
	}

	check, err := s.idempotency.Ensure(ctx, operationID, "approved_budget", projectID+"/"+costCode)
	if err != nil {
		return nil, err
	}
	if check.Duplicate {
		outcome := &BudgetOutcome{}
		if err := json.Unmarshal(check.Response, outcome); err != nil {
			return nil, fmt.Errorf("failed to decode cached outcome: %w", err)
		}
		outcome.OperationID = check.OperationID
		outcome.Status = StatusSkipped
		outcome.Skipped = true
		outcome.Reason = SkippedReasonDuplicate
		return outcome, nil
	}

	var outcome *BudgetOutcome
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)

		if err := lockAggregate(ctx, repos, projectID, costCode); err != nil {
			return err
		}

		certified, err := repos.Certificate.SumCurrentBill(ctx, projectID, costCode, models.CertifiedStatuses)
		if err != nil {
			return fmt.Errorf("failed to sum certified value: %w", err)
		}
		if newAmount.LessThan(certified) {
			return &BudgetReductionBlockedError{
				ProjectID: projectID,
				CostCode:  costCode,
				Requested: newAmount,
				Certified: certified,
			}
		}

		budget, err := repos.Budget.FindByProjectCode(ctx, projectID, costCode)
		if err != nil {
			return fmt.Errorf("failed to load budget: %w", err)
		}

		oldAmount := decimal.Zero
		if budget == nil {
			budget = &models.ApprovedBudget{
				ProjectID: projectID,
				CostCode:  costCode,
				Amount:    money.Round(newAmount),
				UpdatedBy: actor,
			}
			if err := repos.Budget.Create(ctx, budget); err != nil {
				return fmt.Errorf("failed to create budget: %w", err)
			}
		} else {
			oldAmount = budget.Amount
			budget.Amount = money.Round(newAmount)
			budget.UpdatedBy = actor
			if err := repos.Budget.Save(ctx, budget); err != nil {
				return fmt.Errorf("failed to save budget: %w", err)
			}
		}

		if _, err := s.recalc.Recalculate(ctx, repos, projectID, costCode); err != nil {
			return err
		}
		if err := s.invariants.Validate(ctx, repos, projectID, costCode); err != nil {
			return err
		}

		outcome = &BudgetOutcome{
			OperationID: check.OperationID,
			ProjectID:   projectID,
			CostCode:    costCode,
			OldAmount:   oldAmount.StringFixed(2),
			NewAmount:   budget.Amount.StringFixed(2),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.finishMutation(ctx, check.OperationID, outcome, events.Event{
		Type:       events.TypeBudgetUpdated,
		EntityType: "approved_budget",
		EntityID:   projectID + "/" + costCode,
		ProjectID:  projectID,
		CostCode:   costCode,
		ActorID:    actor,
		Payload: map[string]string{
			"old_amount": outcome.OldAmount,
			"new_amount": outcome.NewAmount,
		},
	}, actor, "BUDGET", "approved_budget", projectID+"/"+costCode)

	return outcome, nil
}

// --- lock, unlock, delete, reads ----------------------------------------

// Lock blocks further mutation of the entity until an explicit unlock.
func (s *LedgerService) Lock(ctx context.Context, entityType, entityID, actor, reason string) error {
	return s.setLock(ctx, entityType, entityID, actor, reason, true)
}

// Unlock lifts the lock; a non-empty reason is mandatory.
func (s *LedgerService) Unlock(ctx context.Context, entityType, entityID, actor, reason string) error {
	if reason == "" {
		return ErrUnlockReasonNeeded
	}
	return s.setLock(ctx, entityType, entityID, actor, reason, false)
}

func (s *LedgerService) setLock(ctx context.Context, entityType, entityID, actor, reason string, locked bool) error {
	var was bool
	var projectID, costCode string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		switch entityType {
		case EntityWorkOrder:
			wo, err := repos.WorkOrder.FindByID(ctx, entityID)
			if err != nil {
				return notFoundOr(err, "work order")
			}
			was, wo.Locked = wo.Locked, locked
			projectID, costCode = wo.ProjectID, wo.CostCode
			return repos.WorkOrder.Update(ctx, wo)
		case EntityCertificate:
			pc, err := repos.Certificate.FindByID(ctx, entityID)
			if err != nil {
				return notFoundOr(err, "payment certificate")
			}
			was, pc.Locked = pc.Locked, locked
			projectID, costCode = pc.ProjectID, pc.CostCode
			return repos.Certificate.Update(ctx, pc)
		default:
			return fmt.Errorf("unknown entity type %q", entityType)
		}
	})
	if err != nil {
		return err
	}

	action := "LOCK"
	eventType := events.TypeEntityLocked
	if !locked {
		action = "UNLOCK"
		eventType = events.TypeEntityUnlocked
	}
	details, _ := json.Marshal(map[string]interface{}{
		"reason": reason, "was_locked": was, "locked": locked,
	})
	s.audit.Log(ctx, actor, action, entityType, entityID, string(details))
	s.events.Publish(events.Event{
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		ProjectID:  projectID,
		CostCode:   costCode,
		ActorID:    actor,
		Payload:    map[string]string{"reason": reason},
	})
	return nil
}

// Delete always fails: ledger entities are never hard-deleted, in any
// status. The only removal path is the status-based soft disable.
func (s *LedgerService) Delete(ctx context.Context, entityType, entityID string) error {
	return &HardDeleteBlockedError{EntityType: entityType, EntityID: entityID}
}

// CancelDraft soft-disables a draft entity. Drafts have no ledger effect, so
// no recalculation or invariant run is needed.
func (s *LedgerService) CancelDraft(ctx context.Context, entityType, entityID, actor string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repos := s.repos.WithTx(tx)
		switch entityType {
		case EntityWorkOrder:
			wo, err := repos.WorkOrder.FindByID(ctx, entityID)
			if err != nil {
				return notFoundOr(err, "work order")
			}
			if wo.Locked {
				return &DocumentLockedError{EntityType: entityType, EntityID: entityID}
			}
			if err := snapshotWorkOrder(ctx, repos, wo, actor); err != nil {
				return err
			}
			result, err := s.machine.Transition(ctx, statemachine.KindWorkOrder,
				wo.Status, models.WorkOrderStatusCancelled,
				&statemachine.Context{Tx: tx, Actor: actor, Entity: &workOrderMutation{wo: wo}})
			if err != nil {
				return err
			}
			wo.Status = result.Status
			wo.VersionNumber++
			return repos.WorkOrder.Update(ctx, wo)
		case EntityCertificate:
			pc, err := repos.Certificate.FindByID(ctx, entityID)
			if err != nil {
				return notFoundOr(err, "payment certificate")
			}
			if pc.Locked {
				return &DocumentLockedError{EntityType: entityType, EntityID: entityID}
			}
			if err := snapshotCertificate(ctx, repos, pc, actor); err != nil {
				return err
			}
			result, err := s.machine.Transition(ctx, statemachine.KindPaymentCertificate,
				pc.Status, models.CertificateStatusCancelled,
				&statemachine.Context{Tx: tx, Actor: actor, Entity: &certificateMutation{pc: pc}})
			if err != nil {
				return err
			}
			pc.Status = result.Status
			pc.VersionNumber++
			return repos.Certificate.Update(ctx, pc)
		default:
			return fmt.Errorf("unknown entity type %q", entityType)
		}
	})
	if err != nil {
		return err
	}

	s.audit.Log(ctx, actor, "CANCEL", entityType, entityID, "")
	eventType := events.TypeWorkOrderCancelled
	if entityType == EntityCertificate {
		eventType = events.TypeCertificateCancelled
	}
	s.events.Publish(events.Event{
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actor,
	})
	return nil
}

// GetAggregate returns the derived totals for a pair (read-only).
func (s *LedgerService) GetAggregate(ctx context.Context, projectID, costCode string) (*models.FinancialAggregate, error) {
	agg, err := s.repos.Aggregate.FindByProjectCode(ctx, projectID, costCode)
	if err != nil {
		return nil, notFoundOr(err, "aggregate")
	}
	return agg, nil
}

// ReconcileAggregates re-derives every known (project, cost code) aggregate
// from its source documents and re-checks the invariants. Drift on a pair is
// logged and the pair's transaction rolled back; the sweep keeps going so one
// bad pair does not hide the rest.
func (s *LedgerService) ReconcileAggregates(ctx context.Context) error {
	pairs, err := s.repos.Aggregate.ListPairs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list aggregate pairs: %w", err)
	}

	var failed int
	for _, pair := range pairs {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			repos := s.repos.WithTx(tx)
			if err := lockAggregate(ctx, repos, pair.ProjectID, pair.CostCode); err != nil {
				return err
			}
			if _, err := s.recalc.Recalculate(ctx, repos, pair.ProjectID, pair.CostCode); err != nil {
				return err
			}
			return s.invariants.Validate(ctx, repos, pair.ProjectID, pair.CostCode)
		})
		if err != nil {
			failed++
			logger.Error("aggregate reconciliation failed",
				"project_id", pair.ProjectID, "cost_code", pair.CostCode, "error", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("aggregate reconciliation: %d of %d pairs failed", failed, len(pairs))
	}
	return nil
}

// GetWorkOrder returns one work order
func (s *LedgerService) GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	wo, err := s.repos.WorkOrder.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "work order")
	}
	return wo, nil
}

// ListWorkOrders returns a page of work orders
func (s *LedgerService) ListWorkOrders(ctx context.Context, query *repository.ListQuery) ([]models.WorkOrder, int64, error) {
	return s.repos.WorkOrder.List(ctx, query)
}

// GetCertificate returns one certificate
func (s *LedgerService) GetCertificate(ctx context.Context, id string) (*models.PaymentCertificate, error) {
	pc, err := s.repos.Certificate.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "payment certificate")
	}
	return pc, nil
}

// ListCertificates returns a page of certificates
func (s *LedgerService) ListCertificates(ctx context.Context, query *repository.ListQuery) ([]models.PaymentCertificate, int64, error) {
	return s.repos.Certificate.List(ctx, query)
}

// ListPayments returns the payments recorded against a certificate
func (s *LedgerService) ListPayments(ctx context.Context, certificateID string) ([]models.Payment, error) {
	return s.repos.Payment.FindByCertificate(ctx, certificateID)
}

// ListWorkOrderVersions returns the snapshot history of a work order
func (s *LedgerService) ListWorkOrderVersions(ctx context.Context, id string) ([]models.WorkOrderVersion, error) {
	return s.repos.Version.ListWorkOrderVersions(ctx, id)
}

// ListCertificateVersions returns the snapshot history of a certificate
func (s *LedgerService) ListCertificateVersions(ctx context.Context, id string) ([]models.PaymentCertificateVersion, error) {
	return s.repos.Version.ListCertificateVersions(ctx, id)
}

// --- helpers -------------------------------------------------------------

// finishMutation marks the operation applied (post-commit, never before),
// emits the domain event, and writes the best-effort audit entry.
func (s *LedgerService) finishMutation(ctx context.Context, operationID string, outcome interface{}, evt events.Event, actor, action, entityType, entityID string) {
	if err := s.idempotency.MarkApplied(ctx, operationID, outcome); err != nil {
		// The mutation is committed; a retry under the same id re-executes.
		// Documented at-least-once window, surfaced in the logs only.
		s.audit.Log(ctx, actor, "MARK_APPLIED_FAILED", entityType, entityID, err.Error())
	}
	s.events.Publish(evt)

	details, _ := json.Marshal(outcome)
	s.audit.Log(ctx, actor, action, entityType, entityID, string(details))
}

func duplicateTransitionOutcome(check *Check) (*TransitionOutcome, error) {
	outcome := &TransitionOutcome{}
	if err := json.Unmarshal(check.Response, outcome); err != nil {
		return nil, fmt.Errorf("failed to decode cached outcome: %w", err)
	}
	outcome.OperationID = check.OperationID
	outcome.EntityStatus = outcome.Status
	outcome.Status = StatusSkipped
	outcome.Skipped = true
	outcome.Reason = SkippedReasonDuplicate
	return outcome, nil
}

// lockAggregate serializes writers of the same (project, cost code) on the
// aggregate row. A missing row is fine: it is created by the first budget
// write, and recalculation re-locks before saving.
func lockAggregate(ctx context.Context, repos *repository.Repositories, projectID, costCode string) error {
	_, err := repos.Aggregate.FindForUpdate(ctx, projectID, costCode)
	if err != nil && !repository.IsNotFound(err) {
		return fmt.Errorf("failed to lock aggregate for %s/%s: %w", projectID, costCode, err)
	}
	return nil
}

// snapshotWorkOrder writes the full pre-mutation state keyed by the current
// version number. Runs in the mutation's transaction so a rollback also
// discards the snapshot, keeping version numbers gapless.
func snapshotWorkOrder(ctx context.Context, repos *repository.Repositories, wo *models.WorkOrder, actor string) error {
	body, err := json.Marshal(wo)
	if err != nil {
		return fmt.Errorf("failed to encode work order snapshot: %w", err)
	}
	return repos.Version.CreateWorkOrderVersion(ctx, &models.WorkOrderVersion{
		WorkOrderID:    wo.ID,
		VersionNumber:  wo.VersionNumber,
		Status:         wo.Status,
		DocumentNumber: wo.DocumentNumber,
		Snapshot:       string(body),
		ChangedBy:      actor,
	})
}

func snapshotCertificate(ctx context.Context, repos *repository.Repositories, pc *models.PaymentCertificate, actor string) error {
	body, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("failed to encode certificate snapshot: %w", err)
	}
	return repos.Version.CreateCertificateVersion(ctx, &models.PaymentCertificateVersion{
		CertificateID:  pc.ID,
		VersionNumber:  pc.VersionNumber,
		Status:         pc.Status,
		DocumentNumber: pc.DocumentNumber,
		Snapshot:       string(body),
		ChangedBy:      actor,
	})
}

func notFoundOr(err error, what string) error {
	if repository.IsNotFound(err) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
