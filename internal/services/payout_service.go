package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/poofware/completions-service/internal/config"
	"github.com/poofware/completions-service/internal/constants"
	"github.com/poofware/completions-service/internal/models"
	"github.com/poofware/completions-service/internal/repositories"
	"github.com/poofware/completions-service/internal/utils"
)

type PayoutResultStatus string

const (
	PayoutResultCompleted   PayoutResultStatus = "completed"
	PayoutResultAlreadyPaid PayoutResultStatus = "already_paid"
	PayoutResultSkipped     PayoutResultStatus = "skipped"
	PayoutResultError       PayoutResultStatus = "error"
)

// PayoutResult is returned to approval callers so the UI can tell the
// worker their payment is delayed instead of assuming it went through.
type PayoutResult struct {
	Status PayoutResultStatus
	Reason string
	Payout *models.PayoutRecord
}

// PayoutService issues per-worker transfers with an at-most-once-completed
// guarantee: the ledger row is the local guard, and the idempotency key
// passed to the processor is the external one.
type PayoutService struct {
	cfg         *config.Config
	apptRepo    repositories.AppointmentRepository
	recRepo     repositories.CompletionRecordRepository
	payoutRepo  repositories.PayoutRecordRepository
	workerRepo  repositories.WorkerRepository
	roomRepo    repositories.RoomAssignmentRepository
	processor   PaymentProcessor
	notifier    Notifier
	generatedBy string
}

func NewPayoutService(
	cfg *config.Config,
	apptRepo repositories.AppointmentRepository,
	recRepo repositories.CompletionRecordRepository,
	payoutRepo repositories.PayoutRecordRepository,
	workerRepo repositories.WorkerRepository,
	roomRepo repositories.RoomAssignmentRepository,
	processor PaymentProcessor,
	notifier Notifier,
) *PayoutService {
	return &PayoutService{
		cfg:         cfg,
		apptRepo:    apptRepo,
		recRepo:     recRepo,
		payoutRepo:  payoutRepo,
		workerRepo:  workerRepo,
		roomRepo:    roomRepo,
		processor:   processor,
		notifier:    notifier,
		generatedBy: cfg.AppName,
	}
}

// IssuePayout pays a worker for an approved completion. Safe to call
// redundantly: a completed ledger row short-circuits to already_paid, a
// processing row is left alone, and a failed row is resumed with a fresh
// idempotency key until the retry cap. Eligibility problems found before the
// transfer come back as skipped; transfer failures are recorded and returned
// as error, never silently retried.
func (s *PayoutService) IssuePayout(ctx context.Context, appointmentID, workerID uuid.UUID) (*PayoutResult, error) {
	appt, err := s.apptRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, &utils.AppError{
			StatusCode: http.StatusNotFound,
			Code:       utils.ErrCodeNotFound,
			Message:    fmt.Sprintf("Appointment %s not found", appointmentID),
		}
	}
	if !appt.PaymentCaptured {
		return &PayoutResult{Status: PayoutResultSkipped, Reason: "payment_not_captured"}, nil
	}

	rec, err := s.recRepo.GetByAppointmentAndWorker(ctx, appointmentID, workerID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, utils.ErrNotAssigned
	}
	if !rec.Status.ApprovedEquivalent() {
		return &PayoutResult{Status: PayoutResultSkipped, Reason: "completion_not_approved"}, nil
	}

	payout, err := s.payoutRepo.GetByAppointmentAndWorker(ctx, appointmentID, workerID)
	if err != nil {
		return nil, err
	}
	if payout != nil {
		switch payout.Status {
		case models.PayoutStatusCompleted:
			return &PayoutResult{Status: PayoutResultAlreadyPaid, Payout: payout}, nil
		case models.PayoutStatusProcessing:
			// A concurrent or crashed attempt owns this row. The stale audit
			// sweep resolves it; the request path never double-sends.
			return &PayoutResult{Status: PayoutResultSkipped, Reason: "payout_in_flight", Payout: payout}, nil
		case models.PayoutStatusFailed:
			if payout.RetryCount >= constants.MaxPayoutRetries {
				// Further retries are an operator decision.
				return &PayoutResult{Status: PayoutResultSkipped, Reason: constants.ReasonRetryLimitReached, Payout: payout}, nil
			}
		}
	}

	share, err := s.computeShare(ctx, appt, workerID)
	if err != nil {
		return nil, err
	}

	if payout == nil {
		payout = &models.PayoutRecord{
			ID:               uuid.New(),
			AppointmentID:    appointmentID,
			WorkerID:         workerID,
			GrossAmountCents: share.GrossCents,
			PlatformFeeCents: share.FeeCents,
			NetAmountCents:   share.NetCents,
			Status:           models.PayoutStatusPending,
			CapturedAt:       utils.Ptr(time.Now().UTC()),
		}
		if err := s.payoutRepo.Create(ctx, payout); err != nil {
			return nil, err
		}
		// Create is ON CONFLICT DO NOTHING; re-read so a racing request and
		// this one settle on the same row.
		payout, err = s.payoutRepo.GetByAppointmentAndWorker(ctx, appointmentID, workerID)
		if err != nil {
			return nil, err
		}
		if payout == nil {
			return nil, fmt.Errorf("payout row for appointment %s worker %s vanished after create", appointmentID, workerID)
		}
		if payout.Status == models.PayoutStatusCompleted {
			return &PayoutResult{Status: PayoutResultAlreadyPaid, Payout: payout}, nil
		}
	}

	worker, err := s.workerRepo.GetByID(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if worker == nil {
		return s.skipPayout(ctx, payout, constants.ReasonWorkerRecordNotFound)
	}
	if worker.StripeConnectAccountID == nil || *worker.StripeConnectAccountID == "" {
		return s.skipPayout(ctx, payout, constants.ReasonMissingStripeConnectID)
	}
	if worker.AccountStatus != models.AccountStatusActive {
		return s.skipPayout(ctx, payout, constants.ReasonWorkerNotPayoutEligible)
	}

	err = s.payoutRepo.UpdateWithRetry(ctx, payout.ID, func(p *models.PayoutRecord) error {
		p.Status = models.PayoutStatusProcessing
		p.GrossAmountCents = share.GrossCents
		p.PlatformFeeCents = share.FeeCents
		p.NetAmountCents = share.NetCents
		p.InitiatedAt = utils.Ptr(time.Now().UTC())
		*payout = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	idempotencyKey := fmt.Sprintf("%s-transfer-%d", payout.ID, payout.RetryCount)
	transferID, transferErr := s.processor.CreateTransfer(ctx, payout.NetAmountCents, *worker.StripeConnectAccountID, map[string]string{
		constants.TransferMetadataAppointmentIDKey: appointmentID.String(),
		constants.TransferMetadataWorkerIDKey:      workerID.String(),
		constants.TransferMetadataPayoutIDKey:      payout.ID.String(),
		constants.TransferMetadataGeneratedByKey:   s.generatedBy,
	}, idempotencyKey)
	if transferErr != nil {
		utils.Logger.WithError(transferErr).Errorf("Transfer creation failed for payout %s (worker %s)", payout.ID, workerID)
		return s.failPayout(ctx, payout, TransferFailureReason(transferErr))
	}

	err = s.payoutRepo.UpdateWithRetry(ctx, payout.ID, func(p *models.PayoutRecord) error {
		p.Status = models.PayoutStatusCompleted
		p.TransferID = utils.Ptr(transferID)
		p.CompletedAt = utils.Ptr(time.Now().UTC())
		*payout = *p
		return nil
	})
	if err != nil {
		// The transfer went out; the idempotency key protects any retry that
		// re-runs this payout after the crash.
		utils.Logger.WithError(err).Errorf("CRITICAL: transfer %s created but payout %s could not be marked completed", transferID, payout.ID)
		return nil, err
	}

	if err := s.recRepo.UpdateWithRetry(ctx, rec.ID, func(r *models.WorkerCompletionRecord) error {
		r.PayoutID = utils.Ptr(payout.ID)
		return nil
	}); err != nil {
		utils.Logger.WithError(err).Errorf("Failed to link payout %s to completion record %s", payout.ID, rec.ID)
	}

	s.notifier.PayoutCompleted(ctx, payout)
	utils.Logger.Infof("Payout %s completed for worker %s on appointment %s (net %d cents, transfer %s)",
		payout.ID, workerID, appointmentID, payout.NetAmountCents, transferID)

	return &PayoutResult{Status: PayoutResultCompleted, Payout: payout}, nil
}

// recordFailure marks the ledger row FAILED with the reason and notifies the
// worker or finance depending on who can act on it.
func (s *PayoutService) recordFailure(ctx context.Context, payout *models.PayoutRecord, reason string) error {
	err := s.payoutRepo.UpdateWithRetry(ctx, payout.ID, func(p *models.PayoutRecord) error {
		p.Status = models.PayoutStatusFailed
		p.FailureReason = utils.Ptr(reason)
		p.RetryCount++
		*payout = *p
		return nil
	})
	if err != nil {
		utils.Logger.WithError(err).Errorf("Failed to mark payout %s as failed", payout.ID)
		return err
	}

	_, requiresUserAction := IsFailureRecoverable(reason)
	s.notifier.PayoutFailed(ctx, payout, requiresUserAction)
	return nil
}

// skipPayout records an eligibility problem found before any transfer was
// attempted. Skipped, not error: nothing went out to the processor, and the
// row resumes once the worker fixes their account.
func (s *PayoutService) skipPayout(ctx context.Context, payout *models.PayoutRecord, reason string) (*PayoutResult, error) {
	if err := s.recordFailure(ctx, payout, reason); err != nil {
		return nil, err
	}
	utils.Logger.Warnf("Payout %s for worker %s skipped: %s", payout.ID, payout.WorkerID, reason)
	return &PayoutResult{Status: PayoutResultSkipped, Reason: reason, Payout: payout}, nil
}

func (s *PayoutService) failPayout(ctx context.Context, payout *models.PayoutRecord, reason string) (*PayoutResult, error) {
	if err := s.recordFailure(ctx, payout, reason); err != nil {
		return nil, err
	}
	utils.Logger.Errorf("Payout %s for worker %s failed: %s", payout.ID, payout.WorkerID, reason)
	return &PayoutResult{Status: PayoutResultError, Reason: reason, Payout: payout}, nil
}

// EarningsPreview computes what a worker would take home right now without
// touching the ledger or the processor.
func (s *PayoutService) EarningsPreview(ctx context.Context, appointmentID, workerID uuid.UUID) (WorkerShare, error) {
	appt, err := s.apptRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return WorkerShare{}, err
	}
	if appt == nil {
		return WorkerShare{}, utils.ErrNotAssigned
	}
	rec, err := s.recRepo.GetByAppointmentAndWorker(ctx, appointmentID, workerID)
	if err != nil {
		return WorkerShare{}, err
	}
	if rec == nil {
		return WorkerShare{}, utils.ErrNotAssigned
	}
	return s.computeShare(ctx, appt, workerID)
}

// computeShare picks the fee schedule and split for one worker: accepted
// solo offers use the regular fee plus bonus, single-worker jobs use the
// regular fee, and crews split proportionally by room effort (equal split
// when no rooms are recorded).
func (s *PayoutService) computeShare(ctx context.Context, appt *models.Appointment, workerID uuid.UUID) (WorkerShare, error) {
	if appt.SoloOfferAcceptedBy(workerID) {
		solo := SoloCompletionEarnings(appt.PriceCents, s.cfg.Pricing.PlatformFeePercent, s.cfg.Pricing.SoloBonusCents)
		return WorkerShare{
			WorkerID:      workerID,
			GrossCents:    solo.GrossCents + solo.BonusCents,
			FeeCents:      solo.PlatformFeeCents,
			NetCents:      solo.TotalCents,
			PercentOfWork: 100,
		}, nil
	}

	if !appt.IsMultiWorker {
		res := EqualSplit(appt.PriceCents, s.cfg.Pricing.PlatformFeePercent, []uuid.UUID{workerID})
		return res.Shares[0], nil
	}

	recs, err := s.recRepo.ListByAppointment(ctx, appt.ID)
	if err != nil {
		return WorkerShare{}, err
	}
	completion := models.NewJobCompletion(appt.IsMultiWorker, recs)
	eligible := completion.EligibleWorkers()
	if len(eligible) == 0 {
		return WorkerShare{}, utils.ErrNotAssigned
	}

	rooms, err := s.roomRepo.ListByAppointment(ctx, appt.ID)
	if err != nil {
		return WorkerShare{}, err
	}

	var res SplitResult
	if len(rooms) == 0 {
		res = EqualSplit(appt.PriceCents, s.cfg.Pricing.MultiWorkerFeePercent, eligible)
	} else {
		effortByWorker := make(map[uuid.UUID]int, len(eligible))
		for _, room := range rooms {
			if room.WorkerID != nil {
				effortByWorker[*room.WorkerID] += room.EstimatedEffortMinutes
			}
		}
		efforts := make([]WorkerEffort, 0, len(eligible))
		for _, id := range eligible {
			efforts = append(efforts, WorkerEffort{WorkerID: id, EffortMinutes: effortByWorker[id]})
		}
		res = ProportionalSplit(appt.PriceCents, s.cfg.Pricing.MultiWorkerFeePercent, efforts)
	}

	for _, share := range res.Shares {
		if share.WorkerID == workerID {
			return share, nil
		}
	}
	return WorkerShare{}, utils.ErrNotAssigned
}

// AuditStaleProcessing flags payouts stuck in PROCESSING past the threshold,
// usually a crash between the transfer request and its confirmation. The
// rows are left untouched: the transfer may have succeeded, so resolution is
// a manual decision backed by the idempotency key.
func (s *PayoutService) AuditStaleProcessing(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-constants.StaleProcessingThreshold)
	stale, err := s.payoutRepo.FindStaleProcessing(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, p := range stale {
		utils.Logger.Errorf("CRITICAL: payout %s for worker %s has been processing since %v; verify transfer status manually", p.ID, p.WorkerID, p.InitiatedAt)
		flagged := *p
		flagged.FailureReason = utils.Ptr("stale_processing")
		s.notifier.PayoutFailed(ctx, &flagged, false)
	}

	if len(stale) > 0 {
		utils.Logger.Warnf("Stale payout audit flagged %d record(s)", len(stale))
	}
	return nil
}
