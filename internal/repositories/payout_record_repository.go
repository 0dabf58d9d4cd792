package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/poofware/completions-service/internal/models"
)

// PayoutRecordRepository defines the interface for payout ledger operations.
// A partial unique index on (appointment_id, worker_id) WHERE status <>
// 'FAILED' backs the at-most-once-completed invariant.
type PayoutRecordRepository interface {
	Create(ctx context.Context, p *models.PayoutRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutRecord, error)
	GetByAppointmentAndWorker(ctx context.Context, appointmentID, workerID uuid.UUID) (*models.PayoutRecord, error)
	FindStaleProcessing(ctx context.Context, olderThan time.Time) ([]*models.PayoutRecord, error)
	UpdateIfVersion(ctx context.Context, p *models.PayoutRecord, expectedVersion int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.PayoutRecord) error) error
}

type payoutRecordRepo struct {
	*BaseVersionedRepo[*models.PayoutRecord]
	db DB
}

func NewPayoutRecordRepository(db DB) PayoutRecordRepository {
	r := &payoutRecordRepo{db: db}
	selectStmt := baseSelectPayout() + " WHERE id = $1"
	r.BaseVersionedRepo = NewBaseRepo(db, selectStmt, scanPayout)
	return r
}

func baseSelectPayout() string {
	return `
        SELECT
            id, appointment_id, worker_id, gross_amount_cents,
            platform_fee_cents, net_amount_cents, status, transfer_id,
            failure_reason, retry_count, captured_at, initiated_at,
            completed_at, created_at, updated_at, row_version
        FROM payout_records
    `
}

func scanPayout(row pgx.Row) (*models.PayoutRecord, error) {
	var p models.PayoutRecord
	err := row.Scan(
		&p.ID, &p.AppointmentID, &p.WorkerID, &p.GrossAmountCents,
		&p.PlatformFeeCents, &p.NetAmountCents, &p.Status, &p.TransferID,
		&p.FailureReason, &p.RetryCount, &p.CapturedAt, &p.InitiatedAt,
		&p.CompletedAt, &p.CreatedAt, &p.UpdatedAt, &p.RowVersion,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *payoutRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutRecord, error) {
	return r.BaseVersionedRepo.GetByID(ctx, id.String())
}

func (r *payoutRecordRepo) Create(ctx context.Context, p *models.PayoutRecord) error {
	q := `
        INSERT INTO payout_records (
            id, appointment_id, worker_id, gross_amount_cents,
            platform_fee_cents, net_amount_cents, status, transfer_id,
            failure_reason, retry_count, captured_at, initiated_at,
            completed_at, created_at, updated_at, row_version
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,$10,$11,$12,NOW(),NOW(),1)
        ON CONFLICT (appointment_id, worker_id) WHERE status <> 'FAILED' DO NOTHING
    `
	_, err := r.db.Exec(ctx, q,
		p.ID, p.AppointmentID, p.WorkerID, p.GrossAmountCents,
		p.PlatformFeeCents, p.NetAmountCents, p.Status, p.TransferID,
		p.FailureReason, p.CapturedAt, p.InitiatedAt, p.CompletedAt,
	)
	return err
}

// GetByAppointmentAndWorker returns the live ledger row for the pair,
// preferring a non-failed record when earlier attempts failed.
func (r *payoutRecordRepo) GetByAppointmentAndWorker(ctx context.Context, appointmentID, workerID uuid.UUID) (*models.PayoutRecord, error) {
	q := baseSelectPayout() + `
        WHERE appointment_id = $1 AND worker_id = $2
        ORDER BY (status <> 'FAILED') DESC, created_at DESC
        LIMIT 1
    `
	row := r.db.QueryRow(ctx, q, appointmentID, workerID)
	return scanPayout(row)
}

// FindStaleProcessing returns rows stuck in PROCESSING since before the
// given cutoff, typically a crash between transfer request and confirmation.
func (r *payoutRecordRepo) FindStaleProcessing(ctx context.Context, olderThan time.Time) ([]*models.PayoutRecord, error) {
	q := baseSelectPayout() + `
        WHERE status = 'PROCESSING'
          AND initiated_at IS NOT NULL
          AND initiated_at <= $1
        ORDER BY initiated_at
    `
	rows, err := r.db.Query(ctx, q, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []*models.PayoutRecord
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

func (r *payoutRecordRepo) UpdateIfVersion(ctx context.Context, p *models.PayoutRecord, expectedVersion int64) (pgconn.CommandTag, error) {
	q := `
        UPDATE payout_records SET
            gross_amount_cents = $1,
            platform_fee_cents = $2,
            net_amount_cents = $3,
            status = $4,
            transfer_id = $5,
            failure_reason = $6,
            retry_count = $7,
            captured_at = $8,
            initiated_at = $9,
            completed_at = $10,
            updated_at = NOW(),
            row_version = row_version + 1
        WHERE id = $11 AND row_version = $12
    `
	return r.db.Exec(ctx, q,
		p.GrossAmountCents, p.PlatformFeeCents, p.NetAmountCents, p.Status,
		p.TransferID, p.FailureReason, p.RetryCount, p.CapturedAt,
		p.InitiatedAt, p.CompletedAt, p.ID, expectedVersion)
}

func (r *payoutRecordRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.PayoutRecord) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}
