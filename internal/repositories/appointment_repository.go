package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/poofware/completions-service/internal/models"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appt *models.Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	UpdateIfVersion(ctx context.Context, appt *models.Appointment, expectedVersion int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Appointment) error) error
}

type appointmentRepo struct {
	*BaseVersionedRepo[*models.Appointment]
	db DB
}

func NewAppointmentRepository(db DB) AppointmentRepository {
	r := &appointmentRepo{db: db}
	selectStmt := baseSelectAppointment() + " WHERE id = $1"
	r.BaseVersionedRepo = NewBaseRepo(db, selectStmt, scanAppointment)
	return r
}

func baseSelectAppointment() string {
	return `
        SELECT
            id, homeowner_id, home_id, price_cents, is_multi_worker,
            payment_captured, completion_status, completed, feedback_required,
            required_worker_count, confirmed_worker_count, window_starts_at,
            solo_offer_worker_id, solo_offer_amount_cents,
            solo_offer_expires_at, solo_offer_accepted_at,
            row_version, created_at, updated_at
        FROM appointments
    `
}

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(
		&a.ID,
		&a.HomeownerID,
		&a.HomeID,
		&a.PriceCents,
		&a.IsMultiWorker,
		&a.PaymentCaptured,
		&a.CompletionStatus,
		&a.Completed,
		&a.FeedbackRequired,
		&a.RequiredWorkerCount,
		&a.ConfirmedWorkerCount,
		&a.WindowStartsAt,
		&a.SoloOfferWorkerID,
		&a.SoloOfferAmountCents,
		&a.SoloOfferExpiresAt,
		&a.SoloOfferAcceptedAt,
		&a.RowVersion,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	return r.BaseVersionedRepo.GetByID(ctx, id.String())
}

func (r *appointmentRepo) Create(ctx context.Context, appt *models.Appointment) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO appointments (
            id, homeowner_id, home_id, price_cents, is_multi_worker,
            payment_captured, completion_status, completed, feedback_required,
            required_worker_count, confirmed_worker_count, window_starts_at,
            created_at, updated_at, row_version
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,FALSE,FALSE,$8,$9,$10,NOW(),NOW(),1
        )
    `,
		appt.ID,
		appt.HomeownerID,
		appt.HomeID,
		appt.PriceCents,
		appt.IsMultiWorker,
		appt.PaymentCaptured,
		appt.CompletionStatus,
		appt.RequiredWorkerCount,
		appt.ConfirmedWorkerCount,
		appt.WindowStartsAt,
	)
	return err
}

func (r *appointmentRepo) UpdateIfVersion(ctx context.Context, a *models.Appointment, expectedVersion int64) (pgconn.CommandTag, error) {
	q := `
        UPDATE appointments SET
            payment_captured = $1,
            completion_status = $2,
            completed = $3,
            feedback_required = $4,
            confirmed_worker_count = $5,
            solo_offer_worker_id = $6,
            solo_offer_amount_cents = $7,
            solo_offer_expires_at = $8,
            solo_offer_accepted_at = $9,
            updated_at = NOW(),
            row_version = row_version + 1
        WHERE id = $10 AND row_version = $11
    `
	return r.db.Exec(ctx, q,
		a.PaymentCaptured, a.CompletionStatus, a.Completed, a.FeedbackRequired,
		a.ConfirmedWorkerCount, a.SoloOfferWorkerID, a.SoloOfferAmountCents,
		a.SoloOfferExpiresAt, a.SoloOfferAcceptedAt,
		a.ID, expectedVersion)
}

func (r *appointmentRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Appointment) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}
