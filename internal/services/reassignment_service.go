package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/poofware/completions-service/internal/config"
	"github.com/poofware/completions-service/internal/models"
	"github.com/poofware/completions-service/internal/repositories"
	"github.com/poofware/completions-service/internal/utils"
)

// ReassignmentService handles the fallout of a worker leaving a job:
// releasing their rooms and, when a single worker is left on a crew job,
// extending a time-boxed solo-completion offer.
type ReassignmentService struct {
	cfg      *config.Config
	apptRepo repositories.AppointmentRepository
	recRepo  repositories.CompletionRecordRepository
	roomRepo repositories.RoomAssignmentRepository
	notifier Notifier
}

func NewReassignmentService(
	cfg *config.Config,
	apptRepo repositories.AppointmentRepository,
	recRepo repositories.CompletionRecordRepository,
	roomRepo repositories.RoomAssignmentRepository,
	notifier Notifier,
) *ReassignmentService {
	return &ReassignmentService{
		cfg:      cfg,
		apptRepo: apptRepo,
		recRepo:  recRepo,
		roomRepo: roomRepo,
		notifier: notifier,
	}
}

// HandleDeparture releases the departing worker's rooms, decrements the
// confirmed-worker count (floored at zero) and evaluates a solo offer for
// whoever is left.
func (s *ReassignmentService) HandleDeparture(ctx context.Context, appointmentID, workerID uuid.UUID) error {
	released, err := s.roomRepo.ReleaseForWorker(ctx, appointmentID, workerID)
	if err != nil {
		return err
	}
	if released > 0 {
		utils.Logger.Infof("Released %d room assignment(s) for worker %s on appointment %s", released, workerID, appointmentID)
	}

	err = s.apptRepo.UpdateWithRetry(ctx, appointmentID, func(a *models.Appointment) error {
		if a.ConfirmedWorkerCount > 0 {
			a.ConfirmedWorkerCount--
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.EvaluateSoloOffer(ctx, appointmentID)
}

// EvaluateSoloOffer extends a solo-completion offer when exactly one
// eligible worker remains on a job that originally required more than one.
// The offer is an invitation, never an automatic transition: the worker has
// to accept within the configured window.
func (s *ReassignmentService) EvaluateSoloOffer(ctx context.Context, appointmentID uuid.UUID) error {
	appt, err := s.apptRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt == nil || !appt.IsMultiWorker || appt.RequiredWorkerCount <= 1 {
		return nil
	}
	if appt.SoloOfferAcceptedAt != nil {
		return nil
	}

	recs, err := s.recRepo.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	eligible := models.NewJobCompletion(appt.IsMultiWorker, recs).EligibleWorkers()
	if len(eligible) != 1 {
		return nil
	}
	remaining := eligible[0]

	now := time.Now().UTC()
	if appt.SoloOfferWorkerID != nil && *appt.SoloOfferWorkerID == remaining &&
		appt.SoloOfferExpiresAt != nil && appt.SoloOfferExpiresAt.After(now) {
		// An unexpired offer for this worker is already out.
		return nil
	}

	offer := SoloCompletionEarnings(appt.PriceCents, s.cfg.Pricing.PlatformFeePercent, s.cfg.Pricing.SoloBonusCents)
	expiresAt := now.Add(time.Duration(s.cfg.SoloOfferWindowHours) * time.Hour)

	err = s.apptRepo.UpdateWithRetry(ctx, appointmentID, func(a *models.Appointment) error {
		if a.SoloOfferAcceptedAt != nil {
			return nil
		}
		a.SoloOfferWorkerID = utils.Ptr(remaining)
		a.SoloOfferAmountCents = utils.Ptr(offer.TotalCents)
		a.SoloOfferExpiresAt = utils.Ptr(expiresAt)
		a.SoloOfferAcceptedAt = nil
		*appt = *a
		return nil
	})
	if err != nil {
		return err
	}

	utils.Logger.Infof("Solo completion offer extended to worker %s on appointment %s (%d cents, expires %s)",
		remaining, appointmentID, offer.TotalCents, expiresAt.Format(time.RFC3339))
	s.notifier.SoloOfferExtended(ctx, remaining, appt, offer)
	return nil
}

// AcceptSoloOffer records the remaining worker taking over the whole job.
// Accepting is idempotent; an expired or foreign offer is rejected.
func (s *ReassignmentService) AcceptSoloOffer(ctx context.Context, appointmentID, workerID uuid.UUID) (*models.Appointment, error) {
	var accepted *models.Appointment
	err := s.apptRepo.UpdateWithRetry(ctx, appointmentID, func(a *models.Appointment) error {
		if a.SoloOfferWorkerID == nil || *a.SoloOfferWorkerID != workerID {
			return utils.ErrNoSoloOffer
		}
		if a.SoloOfferAcceptedAt != nil {
			accepted = a
			return nil
		}
		if a.SoloOfferExpiresAt == nil || !a.SoloOfferExpiresAt.After(time.Now().UTC()) {
			return utils.ErrSoloOfferExpired
		}
		a.SoloOfferAcceptedAt = utils.Ptr(time.Now().UTC())
		accepted = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.Logger.Infof("Worker %s accepted solo completion of appointment %s", workerID, appointmentID)
	return accepted, nil
}
