package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/costledger/costledger-api/internal/events"
	"github.com/costledger/costledger-api/internal/models"
	"github.com/costledger/costledger-api/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for the persistence layer so the
// orchestrator can be exercised end to end without a database. The fake
// transaction runner snapshots the store before a span and restores it on
// error, mirroring rollback. Sequences are deliberately excluded from the
// snapshot: in production the counter advances outside the transaction, so
// an aborted mutation leaves a gap.
type memStore struct {
	mu         sync.Mutex
	workOrders map[string]models.WorkOrder
	certs      map[string]models.PaymentCertificate
	payments   []models.Payment
	releases   []models.RetentionRelease
	aggregates map[string]models.FinancialAggregate
	budgets    map[string]models.ApprovedBudget
	sequences  map[string]int64
	operations map[string]models.MutationOperationLog
	woVersions []models.WorkOrderVersion
	pcVersions []models.PaymentCertificateVersion
	nextID     int
}

func newMemStore() *memStore {
	return &memStore{
		workOrders: make(map[string]models.WorkOrder),
		certs:      make(map[string]models.PaymentCertificate),
		aggregates: make(map[string]models.FinancialAggregate),
		budgets:    make(map[string]models.ApprovedBudget),
		sequences:  make(map[string]int64),
		operations: make(map[string]models.MutationOperationLog),
	}
}

func (s *memStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

func pairKey(projectID, costCode string) string {
	return projectID + "/" + costCode
}

type storeSnapshot struct {
	workOrders map[string]models.WorkOrder
	certs      map[string]models.PaymentCertificate
	payments   []models.Payment
	releases   []models.RetentionRelease
	aggregates map[string]models.FinancialAggregate
	budgets    map[string]models.ApprovedBudget
	operations map[string]models.MutationOperationLog
	woVersions []models.WorkOrderVersion
	pcVersions []models.PaymentCertificateVersion
	nextID     int
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *memStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storeSnapshot{
		workOrders: copyMap(s.workOrders),
		certs:      copyMap(s.certs),
		payments:   append([]models.Payment(nil), s.payments...),
		releases:   append([]models.RetentionRelease(nil), s.releases...),
		aggregates: copyMap(s.aggregates),
		budgets:    copyMap(s.budgets),
		operations: copyMap(s.operations),
		woVersions: append([]models.WorkOrderVersion(nil), s.woVersions...),
		pcVersions: append([]models.PaymentCertificateVersion(nil), s.pcVersions...),
		nextID:     s.nextID,
	}
}

func (s *memStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workOrders = snap.workOrders
	s.certs = snap.certs
	s.payments = snap.payments
	s.releases = snap.releases
	s.aggregates = snap.aggregates
	s.budgets = snap.budgets
	s.operations = snap.operations
	s.woVersions = snap.woVersions
	s.pcVersions = snap.pcVersions
	s.nextID = snap.nextID
}

type fakeTxRunner struct {
	store *memStore
}

func (r *fakeTxRunner) Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	snap := r.store.snapshot()
	if err := fc(nil); err != nil {
		r.store.restore(snap)
		return err
	}
	return nil
}

// --- fake repositories ---------------------------------------------------

type fakeWorkOrderRepo struct{ s *memStore }

func (r *fakeWorkOrderRepo) WithTx(tx *gorm.DB) repository.WorkOrderRepository { return r }

func (r *fakeWorkOrderRepo) Create(ctx context.Context, wo *models.WorkOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if wo.ID == "" {
		wo.ID = r.s.id("wo")
	}
	r.s.workOrders[wo.ID] = *wo
	return nil
}

func (r *fakeWorkOrderRepo) FindByID(ctx context.Context, id string) (*models.WorkOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wo, ok := r.s.workOrders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &wo, nil
}

func (r *fakeWorkOrderRepo) Update(ctx context.Context, wo *models.WorkOrder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.workOrders[wo.ID] = *wo
	return nil
}

func (r *fakeWorkOrderRepo) List(ctx context.Context, query *repository.ListQuery) ([]models.WorkOrder, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.WorkOrder
	for _, wo := range r.s.workOrders {
		if query.Status != "" && wo.Status != query.Status {
			continue
		}
		if query.Project != "" && wo.ProjectID != query.Project {
			continue
		}
		out = append(out, wo)
	}
	return out, int64(len(out)), nil
}

func (r *fakeWorkOrderRepo) SumBaseAmount(ctx context.Context, projectID, costCode string, statuses []string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, wo := range r.s.workOrders {
		if wo.ProjectID == projectID && wo.CostCode == costCode && contains(statuses, wo.Status) {
			total = total.Add(wo.BaseAmount)
		}
	}
	return total, nil
}

func (r *fakeWorkOrderRepo) ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, wo := range r.s.workOrders {
		if wo.DocumentNumber == documentNumber {
			return true, nil
		}
	}
	return false, nil
}

type fakeCertificateRepo struct{ s *memStore }

func (r *fakeCertificateRepo) WithTx(tx *gorm.DB) repository.CertificateRepository { return r }

func (r *fakeCertificateRepo) Create(ctx context.Context, pc *models.PaymentCertificate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if pc.ID == "" {
		pc.ID = r.s.id("pc")
	}
	r.s.certs[pc.ID] = *pc
	return nil
}

func (r *fakeCertificateRepo) FindByID(ctx context.Context, id string) (*models.PaymentCertificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pc, ok := r.s.certs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &pc, nil
}

func (r *fakeCertificateRepo) Update(ctx context.Context, pc *models.PaymentCertificate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.certs[pc.ID] = *pc
	return nil
}

func (r *fakeCertificateRepo) List(ctx context.Context, query *repository.ListQuery) ([]models.PaymentCertificate, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.PaymentCertificate
	for _, pc := range r.s.certs {
		if query.Status != "" && pc.Status != query.Status {
			continue
		}
		out = append(out, pc)
	}
	return out, int64(len(out)), nil
}

func (r *fakeCertificateRepo) SumCurrentBill(ctx context.Context, projectID, costCode string, statuses []string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, pc := range r.s.certs {
		if pc.ProjectID == projectID && pc.CostCode == costCode && contains(statuses, pc.Status) {
			total = total.Add(pc.CurrentBillAmount)
		}
	}
	return total, nil
}

func (r *fakeCertificateRepo) SumRetentionCurrent(ctx context.Context, projectID, costCode string, statuses []string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, pc := range r.s.certs {
		if pc.ProjectID == projectID && pc.CostCode == costCode && contains(statuses, pc.Status) {
			total = total.Add(pc.RetentionCurrent)
		}
	}
	return total, nil
}

func (r *fakeCertificateRepo) FindDuplicateInvoice(ctx context.Context, vendorID, projectID, invoiceNumber, excludeID string) (*models.PaymentCertificate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, pc := range r.s.certs {
		if pc.ID == excludeID {
			continue
		}
		if pc.VendorID == vendorID && pc.ProjectID == projectID &&
			pc.InvoiceNumber == invoiceNumber && contains(models.CertifiedStatuses, pc.Status) {
			match := pc
			return &match, nil
		}
	}
	return nil, nil
}

func (r *fakeCertificateRepo) ExistsByDocumentNumber(ctx context.Context, documentNumber string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, pc := range r.s.certs {
		if pc.DocumentNumber == documentNumber {
			return true, nil
		}
	}
	return false, nil
}

type fakePaymentRepo struct{ s *memStore }

func (r *fakePaymentRepo) WithTx(tx *gorm.DB) repository.PaymentRepository { return r }

func (r *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if payment.ID == "" {
		payment.ID = r.s.id("pay")
	}
	r.s.payments = append(r.s.payments, *payment)
	return nil
}

func (r *fakePaymentRepo) FindByCertificate(ctx context.Context, certificateID string) ([]models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Payment
	for _, p := range r.s.payments {
		if p.CertificateID == certificateID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) SumByProjectCode(ctx context.Context, projectID, costCode string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, p := range r.s.payments {
		if p.ProjectID == projectID && p.CostCode == costCode {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

func (r *fakePaymentRepo) SumByCertificate(ctx context.Context, certificateID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, p := range r.s.payments {
		if p.CertificateID == certificateID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

type fakeRetentionRepo struct{ s *memStore }

func (r *fakeRetentionRepo) WithTx(tx *gorm.DB) repository.RetentionReleaseRepository { return r }

func (r *fakeRetentionRepo) Create(ctx context.Context, release *models.RetentionRelease) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if release.ID == "" {
		release.ID = r.s.id("rr")
	}
	r.s.releases = append(r.s.releases, *release)
	return nil
}

func (r *fakeRetentionRepo) FindByProjectCode(ctx context.Context, projectID, costCode string) ([]models.RetentionRelease, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.RetentionRelease
	for _, rr := range r.s.releases {
		if rr.ProjectID == projectID && rr.CostCode == costCode {
			out = append(out, rr)
		}
	}
	return out, nil
}

func (r *fakeRetentionRepo) SumByProjectCode(ctx context.Context, projectID, costCode string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	total := decimal.Zero
	for _, rr := range r.s.releases {
		if rr.ProjectID == projectID && rr.CostCode == costCode {
			total = total.Add(rr.Amount)
		}
	}
	return total, nil
}

type fakeAggregateRepo struct{ s *memStore }

func (r *fakeAggregateRepo) WithTx(tx *gorm.DB) repository.AggregateRepository { return r }

func (r *fakeAggregateRepo) FindByProjectCode(ctx context.Context, projectID, costCode string) (*models.FinancialAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	agg, ok := r.s.aggregates[pairKey(projectID, costCode)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &agg, nil
}

func (r *fakeAggregateRepo) FindForUpdate(ctx context.Context, projectID, costCode string) (*models.FinancialAggregate, error) {
	return r.FindByProjectCode(ctx, projectID, costCode)
}

func (r *fakeAggregateRepo) ListPairs(ctx context.Context) ([]models.FinancialAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pairs := make([]models.FinancialAggregate, 0, len(r.s.aggregates))
	for _, agg := range r.s.aggregates {
		pairs = append(pairs, models.FinancialAggregate{ProjectID: agg.ProjectID, CostCode: agg.CostCode})
	}
	return pairs, nil
}

func (r *fakeAggregateRepo) Create(ctx context.Context, agg *models.FinancialAggregate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if agg.ID == "" {
		agg.ID = r.s.id("agg")
	}
	r.s.aggregates[pairKey(agg.ProjectID, agg.CostCode)] = *agg
	return nil
}

func (r *fakeAggregateRepo) Save(ctx context.Context, agg *models.FinancialAggregate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.aggregates[pairKey(agg.ProjectID, agg.CostCode)] = *agg
	return nil
}

type fakeBudgetRepo struct{ s *memStore }

func (r *fakeBudgetRepo) WithTx(tx *gorm.DB) repository.BudgetRepository { return r }

func (r *fakeBudgetRepo) FindByProjectCode(ctx context.Context, projectID, costCode string) (*models.ApprovedBudget, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.budgets[pairKey(projectID, costCode)]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *fakeBudgetRepo) Create(ctx context.Context, budget *models.ApprovedBudget) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if budget.ID == "" {
		budget.ID = r.s.id("bud")
	}
	r.s.budgets[pairKey(budget.ProjectID, budget.CostCode)] = *budget
	return nil
}

func (r *fakeBudgetRepo) Save(ctx context.Context, budget *models.ApprovedBudget) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.budgets[pairKey(budget.ProjectID, budget.CostCode)] = *budget
	return nil
}

type fakeSequenceRepo struct{ s *memStore }

func (r *fakeSequenceRepo) Next(ctx context.Context, tenantID, prefix string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := tenantID + "/" + prefix
	r.s.sequences[key]++
	return r.s.sequences[key], nil
}

type fakeOperationRepo struct{ s *memStore }

func (r *fakeOperationRepo) FindByOperationID(ctx context.Context, operationID string) (*models.MutationOperationLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	op, ok := r.s.operations[operationID]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

func (r *fakeOperationRepo) Create(ctx context.Context, op *models.MutationOperationLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.operations[op.OperationID]; exists {
		return gorm.ErrDuplicatedKey
	}
	r.s.operations[op.OperationID] = *op
	return nil
}

func (r *fakeOperationRepo) MarkApplied(ctx context.Context, operationID, responseSummary string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	op, ok := r.s.operations[operationID]
	if !ok || op.Applied {
		return nil
	}
	op.Applied = true
	op.ResponseSummary = responseSummary
	r.s.operations[operationID] = op
	return nil
}

type fakeVersionRepo struct{ s *memStore }

func (r *fakeVersionRepo) WithTx(tx *gorm.DB) repository.VersionRepository { return r }

func (r *fakeVersionRepo) CreateWorkOrderVersion(ctx context.Context, v *models.WorkOrderVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.woVersions = append(r.s.woVersions, *v)
	return nil
}

func (r *fakeVersionRepo) CreateCertificateVersion(ctx context.Context, v *models.PaymentCertificateVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.pcVersions = append(r.s.pcVersions, *v)
	return nil
}

func (r *fakeVersionRepo) ListWorkOrderVersions(ctx context.Context, workOrderID string) ([]models.WorkOrderVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.WorkOrderVersion
	for _, v := range r.s.woVersions {
		if v.WorkOrderID == workOrderID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVersionRepo) ListCertificateVersions(ctx context.Context, certificateID string) ([]models.PaymentCertificateVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.PaymentCertificateVersion
	for _, v := range r.s.pcVersions {
		if v.CertificateID == certificateID {
			out = append(out, v)
		}
	}
	return out, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// --- fake side channels --------------------------------------------------

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type auditEntry struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *fakeAudit) Log(ctx context.Context, actorID, action, entity, entityID, details string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{Actor: actorID, Action: action, Entity: entity, EntityID: entityID})
}

// --- test harness --------------------------------------------------------

type ledgerHarness struct {
	ledger    *LedgerService
	store     *memStore
	repos     *repository.Repositories
	publisher *fakePublisher
	audit     *fakeAudit
}

func newLedgerHarness() *ledgerHarness {
	store := newMemStore()
	repos := &repository.Repositories{
		WorkOrder:   &fakeWorkOrderRepo{s: store},
		Certificate: &fakeCertificateRepo{s: store},
		Payment:     &fakePaymentRepo{s: store},
		Retention:   &fakeRetentionRepo{s: store},
		Aggregate:   &fakeAggregateRepo{s: store},
		Budget:      &fakeBudgetRepo{s: store},
		Sequence:    &fakeSequenceRepo{s: store},
		Operation:   &fakeOperationRepo{s: store},
		Version:     &fakeVersionRepo{s: store},
	}

	numbering := NewNumberingService(repos.Sequence, repos.WorkOrder, repos.Certificate, 3, 0)
	publisher := &fakePublisher{}
	audit := &fakeAudit{}

	ledger := NewLedgerService(
		&fakeTxRunner{store: store},
		repos,
		numbering,
		NewInvariantService(),
		NewRecalcService(),
		NewIdempotencyService(repos.Operation),
		audit,
		publisher,
	)

	return &ledgerHarness{
		ledger:    ledger,
		store:     store,
		repos:     repos,
		publisher: publisher,
		audit:     audit,
	}
}
