package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/poofware/completions-service/internal/config"
	"github.com/poofware/completions-service/internal/models"
)

// In-memory repository fakes mirroring the optimistic-locking contract of
// the real ones: reads hand out copies, UpdateIfVersion bumps row_version.

type fakeApptRepo struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*models.Appointment
}

func newFakeApptRepo() *fakeApptRepo {
	return &fakeApptRepo{appts: make(map[uuid.UUID]*models.Appointment)}
}

func (f *fakeApptRepo) Create(ctx context.Context, a *models.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	if cp.RowVersion == 0 {
		cp.RowVersion = 1
	}
	f.appts[a.ID] = &cp
	return nil
}

func (f *fakeApptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeApptRepo) UpdateIfVersion(ctx context.Context, a *models.Appointment, expectedVersion int64) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.appts[a.ID]
	if !ok || cur.RowVersion != expectedVersion {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	cp := *a
	cp.RowVersion = expectedVersion + 1
	f.appts[a.ID] = &cp
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (f *fakeApptRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Appointment) error) error {
	for attempt := 0; attempt < 3; attempt++ {
		a, err := f.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			return pgx.ErrNoRows
		}
		old := a.RowVersion
		if err := mutate(a); err != nil {
			return err
		}
		tag, err := f.UpdateIfVersion(ctx, a, old)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
	}
	return errors.New("too much contention")
}

type fakeRecRepo struct {
	mu    sync.Mutex
	recs  map[uuid.UUID]*models.WorkerCompletionRecord
	order []uuid.UUID
}

func newFakeRecRepo() *fakeRecRepo {
	return &fakeRecRepo{recs: make(map[uuid.UUID]*models.WorkerCompletionRecord)}
}

func (f *fakeRecRepo) Create(ctx context.Context, rec *models.WorkerCompletionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	if cp.RowVersion == 0 {
		cp.RowVersion = 1
	}
	f.recs[rec.ID] = &cp
	f.order = append(f.order, rec.ID)
	return nil
}

func (f *fakeRecRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WorkerCompletionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecRepo) GetByAppointmentAndWorker(ctx context.Context, appointmentID, workerID uuid.UUID) (*models.WorkerCompletionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		rec := f.recs[id]
		if rec.AppointmentID == appointmentID && rec.WorkerID == workerID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRecRepo) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*models.WorkerCompletionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.WorkerCompletionRecord
	for _, id := range f.order {
		rec := f.recs[id]
		if rec.AppointmentID == appointmentID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRecRepo) FindExpiredSubmitted(ctx context.Context, asOf time.Time) ([]*models.WorkerCompletionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.WorkerCompletionRecord
	for _, id := range f.order {
		rec := f.recs[id]
		if rec.Status == models.CompletionStatusSubmitted &&
			rec.AutoApprovalExpiresAt != nil && !rec.AutoApprovalExpiresAt.After(asOf) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRecRepo) UpdateIfVersion(ctx context.Context, rec *models.WorkerCompletionRecord, expectedVersion int64) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.recs[rec.ID]
	if !ok || cur.RowVersion != expectedVersion {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	cp := *rec
	cp.RowVersion = expectedVersion + 1
	f.recs[rec.ID] = &cp
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (f *fakeRecRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.WorkerCompletionRecord) error) error {
	for attempt := 0; attempt < 3; attempt++ {
		rec, err := f.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return pgx.ErrNoRows
		}
		old := rec.RowVersion
		if err := mutate(rec); err != nil {
			return err
		}
		tag, err := f.UpdateIfVersion(ctx, rec, old)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
	}
	return errors.New("too much contention")
}

type fakePayoutRepo struct {
	mu      sync.Mutex
	payouts map[uuid.UUID]*models.PayoutRecord
	order   []uuid.UUID
}

func newFakePayoutRepo() *fakePayoutRepo {
	return &fakePayoutRepo{payouts: make(map[uuid.UUID]*models.PayoutRecord)}
}

func (f *fakePayoutRepo) Create(ctx context.Context, p *models.PayoutRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		existing := f.payouts[id]
		if existing.AppointmentID == p.AppointmentID && existing.WorkerID == p.WorkerID &&
			existing.Status != models.PayoutStatusFailed {
			// conflict, do nothing
			return nil
		}
	}
	cp := *p
	if cp.RowVersion == 0 {
		cp.RowVersion = 1
	}
	f.payouts[p.ID] = &cp
	f.order = append(f.order, p.ID)
	return nil
}

func (f *fakePayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayoutRepo) GetByAppointmentAndWorker(ctx context.Context, appointmentID, workerID uuid.UUID) (*models.PayoutRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var failed *models.PayoutRecord
	for _, id := range f.order {
		p := f.payouts[id]
		if p.AppointmentID != appointmentID || p.WorkerID != workerID {
			continue
		}
		if p.Status != models.PayoutStatusFailed {
			cp := *p
			return &cp, nil
		}
		cp := *p
		failed = &cp
	}
	return failed, nil
}

func (f *fakePayoutRepo) FindStaleProcessing(ctx context.Context, olderThan time.Time) ([]*models.PayoutRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PayoutRecord
	for _, id := range f.order {
		p := f.payouts[id]
		if p.Status == models.PayoutStatusProcessing &&
			p.InitiatedAt != nil && !p.InitiatedAt.After(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePayoutRepo) UpdateIfVersion(ctx context.Context, p *models.PayoutRecord, expectedVersion int64) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.payouts[p.ID]
	if !ok || cur.RowVersion != expectedVersion {
		return pgconn.CommandTag("UPDATE 0"), nil
	}
	cp := *p
	cp.RowVersion = expectedVersion + 1
	f.payouts[p.ID] = &cp
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (f *fakePayoutRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.PayoutRecord) error) error {
	for attempt := 0; attempt < 3; attempt++ {
		p, err := f.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return pgx.ErrNoRows
		}
		old := p.RowVersion
		if err := mutate(p); err != nil {
			return err
		}
		tag, err := f.UpdateIfVersion(ctx, p, old)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
	}
	return errors.New("too much contention")
}

type fakeWorkerRepo struct {
	mu      sync.Mutex
	workers map[uuid.UUID]*models.Worker
}

func newFakeWorkerRepo() *fakeWorkerRepo {
	return &fakeWorkerRepo{workers: make(map[uuid.UUID]*models.Worker)}
}

func (f *fakeWorkerRepo) Create(ctx context.Context, w *models.Worker) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *w
	f.workers[w.ID] = &cp
	return nil
}

func (f *fakeWorkerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.workers[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (f *fakeWorkerRepo) GetByStripeConnectAccountID(ctx context.Context, acctID string) (*models.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.workers {
		if w.StripeConnectAccountID != nil && *w.StripeConnectAccountID == acctID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*models.RoomAssignment
	order []uuid.UUID
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[uuid.UUID]*models.RoomAssignment)}
}

func (f *fakeRoomRepo) Create(ctx context.Context, ra *models.RoomAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *ra
	f.rooms[ra.ID] = &cp
	f.order = append(f.order, ra.ID)
	return nil
}

func (f *fakeRoomRepo) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*models.RoomAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RoomAssignment
	for _, id := range f.order {
		ra := f.rooms[id]
		if ra.AppointmentID == appointmentID {
			cp := *ra
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRoomRepo) ReleaseForWorker(ctx context.Context, appointmentID, workerID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var released int64
	for _, ra := range f.rooms {
		if ra.AppointmentID == appointmentID && ra.WorkerID != nil && *ra.WorkerID == workerID {
			ra.WorkerID = nil
			ra.Status = models.RoomAssignmentPending
			released++
		}
	}
	return released, nil
}

// fakeProcessor counts transfer requests and can be told to fail.
type fakeProcessor struct {
	mu        sync.Mutex
	calls     int
	keys      []string
	amounts   []int64
	failWith  error
	transfers map[string]string // idempotency key -> transfer ID
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{transfers: make(map[string]string)}
}

func (f *fakeProcessor) CreateTransfer(ctx context.Context, amountCents int64, destination string, metadata map[string]string, idempotencyKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.keys = append(f.keys, idempotencyKey)
	f.amounts = append(f.amounts, amountCents)
	if f.failWith != nil {
		return "", f.failWith
	}
	if id, ok := f.transfers[idempotencyKey]; ok {
		return id, nil
	}
	id := fmt.Sprintf("tr_%d", f.calls)
	f.transfers[idempotencyKey] = id
	return id, nil
}

// fakeNotifier records notification counts; delivery itself is out of scope.
type fakeNotifier struct {
	mu              sync.Mutex
	payoutCompleted int
	payoutFailed    int
	soloOffers      int
	submissions     int
}

func (f *fakeNotifier) PayoutCompleted(ctx context.Context, p *models.PayoutRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payoutCompleted++
}

func (f *fakeNotifier) PayoutFailed(ctx context.Context, p *models.PayoutRecord, requiresUserAction bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payoutFailed++
}

func (f *fakeNotifier) SoloOfferExtended(ctx context.Context, workerID uuid.UUID, appt *models.Appointment, offer SoloEarnings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.soloOffers++
}

func (f *fakeNotifier) SubmissionAwaitingReview(ctx context.Context, appt *models.Appointment, workerID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions++
}

// testEnv bundles the fakes behind fully wired services.
type testEnv struct {
	cfg           *config.Config
	apptRepo      *fakeApptRepo
	recRepo       *fakeRecRepo
	payoutRepo    *fakePayoutRepo
	workerRepo    *fakeWorkerRepo
	roomRepo      *fakeRoomRepo
	processor     *fakeProcessor
	notifier      *fakeNotifier
	payoutSvc     *PayoutService
	reassignSvc   *ReassignmentService
	completionSvc *CompletionService
}

func newTestEnv() *testEnv {
	cfg := &config.Config{
		AppName: "completions-service-test",
		Pricing: config.PricingConfig{
			PlatformFeePercent:    10,
			MultiWorkerFeePercent: 13,
			AutoApprovalHours:     24,
			SoloBonusCents:        500,
			MinOnSiteMinutes:      30,
			RequiresEvidence:      true,
		},
		SoloOfferWindowHours: 12,
	}

	env := &testEnv{
		cfg:        cfg,
		apptRepo:   newFakeApptRepo(),
		recRepo:    newFakeRecRepo(),
		payoutRepo: newFakePayoutRepo(),
		workerRepo: newFakeWorkerRepo(),
		roomRepo:   newFakeRoomRepo(),
		processor:  newFakeProcessor(),
		notifier:   &fakeNotifier{},
	}
	env.payoutSvc = NewPayoutService(cfg, env.apptRepo, env.recRepo, env.payoutRepo, env.workerRepo, env.roomRepo, env.processor, env.notifier)
	env.reassignSvc = NewReassignmentService(cfg, env.apptRepo, env.recRepo, env.roomRepo, env.notifier)
	env.completionSvc = NewCompletionService(cfg, env.apptRepo, env.recRepo, env.payoutSvc, env.reassignSvc, env.notifier)
	return env
}

func (e *testEnv) addWorker(stripeID string) *models.Worker {
	w := &models.Worker{
		ID:            uuid.New(),
		Email:         "worker@example.com",
		PhoneNumber:   "+15555550100",
		FirstName:     "Test",
		LastName:      "Worker",
		AccountStatus: models.AccountStatusActive,
	}
	if stripeID != "" {
		w.StripeConnectAccountID = &stripeID
	}
	_ = e.workerRepo.Create(context.Background(), w)
	return w
}

func (e *testEnv) addAppointment(priceCents int64, workerCount int) *models.Appointment {
	a := &models.Appointment{
		ID:                   uuid.New(),
		HomeownerID:          uuid.New(),
		HomeID:               uuid.New(),
		PriceCents:           priceCents,
		IsMultiWorker:        workerCount > 1,
		PaymentCaptured:      true,
		CompletionStatus:     models.CompletionStatusInProgress,
		RequiredWorkerCount:  workerCount,
		ConfirmedWorkerCount: workerCount,
		WindowStartsAt:       time.Now().UTC().Add(-time.Hour),
	}
	_ = e.apptRepo.Create(context.Background(), a)
	return a
}

func (e *testEnv) assign(appt *models.Appointment, workerID uuid.UUID) *models.WorkerCompletionRecord {
	rec := &models.WorkerCompletionRecord{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		WorkerID:      workerID,
		Status:        models.CompletionStatusInProgress,
		CreatedAt:     time.Now().UTC(),
	}
	_ = e.recRepo.Create(context.Background(), rec)
	return rec
}
