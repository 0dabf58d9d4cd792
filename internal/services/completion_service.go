package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/poofware/completions-service/internal/config"
	"github.com/poofware/completions-service/internal/models"
	"github.com/poofware/completions-service/internal/repositories"
	"github.com/poofware/completions-service/internal/utils"
)

// CompletionService drives the per-worker completion state machine:
// in_progress → submitted → approved/auto_approved, with dropout and no-show
// as side exits. Every terminal transition re-runs the aggregate rollup.
type CompletionService struct {
	cfg         *config.Config
	apptRepo    repositories.AppointmentRepository
	recRepo     repositories.CompletionRecordRepository
	payoutSvc   *PayoutService
	reassignSvc *ReassignmentService
	notifier    Notifier
}

func NewCompletionService(
	cfg *config.Config,
	apptRepo repositories.AppointmentRepository,
	recRepo repositories.CompletionRecordRepository,
	payoutSvc *PayoutService,
	reassignSvc *ReassignmentService,
	notifier Notifier,
) *CompletionService {
	return &CompletionService{
		cfg:         cfg,
		apptRepo:    apptRepo,
		recRepo:     recRepo,
		payoutSvc:   payoutSvc,
		reassignSvc: reassignSvc,
		notifier:    notifier,
	}
}

// CheckIn records the worker arriving on site. Idempotent: a second check-in
// keeps the original timestamp. Only legal while the record is in progress.
func (s *CompletionService) CheckIn(ctx context.Context, appointmentID, workerID uuid.UUID) (*models.WorkerCompletionRecord, error) {
	rec, err := s.recRepo.GetByAppointmentAndWorker(ctx, appointmentID, workerID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, utils.ErrNotAssigned
	}
	if rec.Status != models.CompletionStatusInProgress {
		return nil, statusConflict(rec.Status)
	}
	if rec.CheckInAt != nil {
		return rec, nil
	}

	err = s.recRepo.UpdateWithRetry(ctx, rec.ID, func(r *models.WorkerCompletionRecord) error {
		if r.Status != models.CompletionStatusInProgress {
			return statusConflict(r.Status)
		}
		if r.CheckInAt == nil {
			r.CheckInAt = utils.Ptr(time.Now().UTC())
		}
		*rec = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Submit transitions a worker's record to submitted, stamps the
// auto-approval deadline and notifies the homeowner. Validation order
// matters: assignment, current status, payment capture, evidence, timing.
func (s *CompletionService) Submit(ctx context.Context, appointmentID, workerID uuid.UUID, evidence json.RawMessage) (*models.WorkerCompletionRecord, error) {
	appt, err := s.apptRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, utils.ErrNotAssigned
	}

	rec, err := s.recRepo.GetByAppointmentAndWorker(ctx, appointmentID, workerID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, utils.ErrNotAssigned
	}

	now := time.Now().UTC()
	if err := s.validateSubmit(appt, rec, evidence, now); err != nil {
		return nil, err
	}

	err = s.recRepo.UpdateWithRetry(ctx, rec.ID, func(r *models.WorkerCompletionRecord) error {
		if err := s.validateSubmit(appt, r, evidence, now); err != nil {
			return err
		}
		r.Status = models.CompletionStatusSubmitted
		r.SubmittedAt = utils.Ptr(now)
		r.AutoApprovalExpiresAt = utils.Ptr(AutoApprovalExpiry(now, s.cfg.Pricing.AutoApprovalHours))
		if len(evidence) > 0 {
			r.ChecklistEvidence = evidence
		}
		*rec = *r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.SubmissionAwaitingReview(ctx, appt, workerID)
	utils.Logger.Infof("Worker %s submitted completion for appointment %s (auto-approval at %s)",
		workerID, appointmentID, rec.AutoApprovalExpiresAt.Format(time.RFC3339))
	return rec, nil
}

func (s *CompletionService) validateSubmit(appt *models.Appointment, rec *models.WorkerCompletionRecord, evidence json.RawMessage, now time.Time) error {
	switch rec.Status {
	case models.CompletionStatusSubmitted:
		return utils.ErrAlreadySubmitted
	case models.CompletionStatusApproved, models.CompletionStatusAutoApproved:
		return utils.ErrAlreadyApproved
	case models.CompletionStatusDroppedOut, models.CompletionStatusNoShow:
		return utils.ErrWrongStatus
	}
	if !appt.PaymentCaptured {
		return utils.ErrPaymentNotCaptured
	}
	if s.cfg.Pricing.RequiresEvidence && len(evidence) == 0 {
		return utils.ErrEvidenceRequired
	}

	windowStarted := !now.Before(appt.WindowStartsAt)
	onSiteLongEnough := rec.CheckInAt != nil &&
		now.Sub(*rec.CheckInAt) >= time.Duration(s.cfg.Pricing.MinOnSiteMinutes)*time.Minute
	if !windowStarted && !onSiteLongEnough {
		return utils.ErrTimingNotAllowed
	}
	return nil
}

// Approve applies the homeowner's explicit approval, issues the worker's
// payout and re-runs the rollup. The payout outcome rides along in the
// response so callers can surface a delayed payment instead of assuming
// success.
func (s *CompletionService) Approve(ctx context.Context, appointmentID, workerID, approverID uuid.UUID) (*models.WorkerCompletionRecord, *PayoutResult, error) {
	return s.approve(ctx, appointmentID, workerID, approverID, false, "")
}

// RequestReview approves and pays exactly like Approve but flags the
// appointment for follow-up. Payment is decoupled from review sentiment on
// purpose: a dissatisfied homeowner triggers a review, never a withheld
// paycheck.
func (s *CompletionService) RequestReview(ctx context.Context, appointmentID, workerID, approverID uuid.UUID, concerns string) (*models.WorkerCompletionRecord, *PayoutResult, error) {
	return s.approve(ctx, appointmentID, workerID, approverID, true, concerns)
}

func (s *CompletionService) approve(ctx context.Context, appointmentID, workerID, approverID uuid.UUID, feedbackRequired bool, concerns string) (*models.WorkerCompletionRecord, *PayoutResult, error) {
	appt, err := s.apptRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	if appt == nil {
		return nil, nil, utils.ErrNotAssigned
	}
	if appt.HomeownerID != approverID {
		return nil, nil, utils.ErrForbidden
	}

	rec, err := s.recRepo.GetByAppointmentAndWorker(ctx, appointmentID, workerID)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, utils.ErrNotAssigned
	}

	err = s.recRepo.UpdateWithRetry(ctx, rec.ID, func(r *models.WorkerCompletionRecord) error {
		if r.Status.ApprovedEquivalent() {
			return utils.ErrAlreadyApproved
		}
		if r.Status != models.CompletionStatusSubmitted {
			return utils.ErrNotApprovable
		}
		r.Status = models.CompletionStatusApproved
		r.ApprovedAt = utils.Ptr(time.Now().UTC())
		r.ApprovedBy = utils.Ptr(approverID)
		*rec = *r
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if feedbackRequired {
		if concerns != "" {
			utils.Logger.Infof("Homeowner %s flagged appointment %s for review: %s", approverID, appointmentID, concerns)
		}
		if err := s.apptRepo.UpdateWithRetry(ctx, appointmentID, func(a *models.Appointment) error {
			a.FeedbackRequired = true
			return nil
		}); err != nil {
			utils.Logger.WithError(err).Errorf("Failed to flag appointment %s for review", appointmentID)
		}
	}

	// The approval stands whatever happens below: payout and rollup failures
	// are reported, never rolled back.
	payoutResult, err := s.payoutSvc.IssuePayout(ctx, appointmentID, workerID)
	if err != nil {
		utils.Logger.WithError(err).Errorf("Payout issuance errored for worker %s on appointment %s", workerID, appointmentID)
		payoutResult = &PayoutResult{Status: PayoutResultError, Reason: "internal_error"}
	}

	if err := s.RecomputeAggregate(ctx, appointmentID); err != nil {
		utils.Logger.WithError(err).Errorf("Aggregate rollup failed for appointment %s", appointmentID)
	}

	return rec, payoutResult, nil
}

// MarkDropout records a worker abandoning the job and hands the fallout to
// the reassignment handler.
func (s *CompletionService) MarkDropout(ctx context.Context, appointmentID, workerID uuid.UUID, reason string) (*models.WorkerCompletionRecord, error) {
	return s.depart(ctx, appointmentID, workerID, models.CompletionStatusDroppedOut, reason)
}

// MarkNoShow records a worker who never turned up.
func (s *CompletionService) MarkNoShow(ctx context.Context, appointmentID, workerID uuid.UUID) (*models.WorkerCompletionRecord, error) {
	return s.depart(ctx, appointmentID, workerID, models.CompletionStatusNoShow, "")
}

func (s *CompletionService) depart(ctx context.Context, appointmentID, workerID uuid.UUID, terminal models.CompletionStatusType, reason string) (*models.WorkerCompletionRecord, error) {
	rec, err := s.recRepo.GetByAppointmentAndWorker(ctx, appointmentID, workerID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, utils.ErrNotAssigned
	}

	err = s.recRepo.UpdateWithRetry(ctx, rec.ID, func(r *models.WorkerCompletionRecord) error {
		if r.Status != models.CompletionStatusInProgress && r.Status != models.CompletionStatusSubmitted {
			return statusConflict(r.Status)
		}
		r.Status = terminal
		if reason != "" {
			r.DropoutReason = utils.Ptr(reason)
		}
		*rec = *r
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.Logger.Infof("Worker %s marked %s on appointment %s", workerID, terminal, appointmentID)

	if err := s.reassignSvc.HandleDeparture(ctx, appointmentID, workerID); err != nil {
		utils.Logger.WithError(err).Errorf("Departure handling failed for worker %s on appointment %s", workerID, appointmentID)
	}

	if err := s.RecomputeAggregate(ctx, appointmentID); err != nil {
		utils.Logger.WithError(err).Errorf("Aggregate rollup failed for appointment %s", appointmentID)
	}
	return rec, nil
}

// RecomputeAggregate flips the appointment to completed once every worker
// still counted has an approval AND the job's slots are resolved (full crew
// confirmed, or the remaining worker holds an accepted solo offer). The flip
// is monotonic: once completed, this function never reverts it. Any
// inconsistency fails closed, leaving completed=false.
func (s *CompletionService) RecomputeAggregate(ctx context.Context, appointmentID uuid.UUID) error {
	recs, err := s.recRepo.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}

	return s.apptRepo.UpdateWithRetry(ctx, appointmentID, func(a *models.Appointment) error {
		if a.Completed {
			return nil
		}
		completion := models.NewJobCompletion(a.IsMultiWorker, recs)
		slotsResolved := a.ConfirmedWorkerCount >= a.RequiredWorkerCount || a.SoloOfferAcceptedAt != nil
		if completion.AllApproved() && slotsResolved {
			a.Completed = true
			a.CompletionStatus = models.CompletionStatusApproved
			utils.Logger.Infof("Appointment %s is fully approved and completed", appointmentID)
		}
		return nil
	})
}

// SweepAutoApprovals promotes expired submissions to auto_approved with the
// exact same payout and rollup side effects as an explicit approval. Run
// periodically; each record is handled independently so one failure does not
// stall the rest.
func (s *CompletionService) SweepAutoApprovals(ctx context.Context) (int, error) {
	expired, err := s.recRepo.FindExpiredSubmitted(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, rec := range expired {
		err := s.recRepo.UpdateWithRetry(ctx, rec.ID, func(r *models.WorkerCompletionRecord) error {
			if r.Status != models.CompletionStatusSubmitted {
				return utils.ErrWrongStatus
			}
			if r.AutoApprovalExpiresAt == nil || r.AutoApprovalExpiresAt.After(time.Now().UTC()) {
				return utils.ErrWrongStatus
			}
			r.Status = models.CompletionStatusAutoApproved
			r.ApprovedAt = utils.Ptr(time.Now().UTC())
			return nil
		})
		if err != nil {
			// Raced with an explicit approval or dropout; nothing to do.
			if err == utils.ErrWrongStatus {
				continue
			}
			utils.Logger.WithError(err).Errorf("Auto-approval failed for record %s", rec.ID)
			continue
		}
		promoted++
		utils.Logger.Infof("Auto-approved completion record %s (worker %s, appointment %s)", rec.ID, rec.WorkerID, rec.AppointmentID)

		if _, err := s.payoutSvc.IssuePayout(ctx, rec.AppointmentID, rec.WorkerID); err != nil {
			utils.Logger.WithError(err).Errorf("Payout issuance errored after auto-approval of record %s", rec.ID)
		}
		if err := s.RecomputeAggregate(ctx, rec.AppointmentID); err != nil {
			utils.Logger.WithError(err).Errorf("Aggregate rollup failed for appointment %s", rec.AppointmentID)
		}
	}
	return promoted, nil
}

// Status returns the appointment and its completion records, optionally
// narrowed to one worker, for the progress endpoint.
func (s *CompletionService) Status(ctx context.Context, appointmentID uuid.UUID, workerID *uuid.UUID) (*models.Appointment, []*models.WorkerCompletionRecord, error) {
	appt, err := s.apptRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	if appt == nil {
		return nil, nil, utils.ErrNotAssigned
	}

	if workerID != nil {
		rec, err := s.recRepo.GetByAppointmentAndWorker(ctx, appointmentID, *workerID)
		if err != nil {
			return nil, nil, err
		}
		if rec == nil {
			return appt, nil, nil
		}
		return appt, []*models.WorkerCompletionRecord{rec}, nil
	}

	recs, err := s.recRepo.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	return appt, recs, nil
}

// statusConflict maps a terminal status to the matching conflict sentinel.
func statusConflict(status models.CompletionStatusType) error {
	switch status {
	case models.CompletionStatusSubmitted:
		return utils.ErrAlreadySubmitted
	case models.CompletionStatusApproved, models.CompletionStatusAutoApproved:
		return utils.ErrAlreadyApproved
	default:
		return utils.ErrWrongStatus
	}
}
