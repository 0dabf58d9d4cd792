package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/poofware/completions-service/internal/models"
)

// CompletionRecordRepository persists per-worker completion rows. Rows are
// append/update-only; there is no delete.
type CompletionRecordRepository interface {
	Create(ctx context.Context, rec *models.WorkerCompletionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.WorkerCompletionRecord, error)
	GetByAppointmentAndWorker(ctx context.Context, appointmentID, workerID uuid.UUID) (*models.WorkerCompletionRecord, error)
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*models.WorkerCompletionRecord, error)
	FindExpiredSubmitted(ctx context.Context, asOf time.Time) ([]*models.WorkerCompletionRecord, error)
	UpdateIfVersion(ctx context.Context, rec *models.WorkerCompletionRecord, expectedVersion int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.WorkerCompletionRecord) error) error
}

type completionRecordRepo struct {
	*BaseVersionedRepo[*models.WorkerCompletionRecord]
	db DB
}

func NewCompletionRecordRepository(db DB) CompletionRecordRepository {
	r := &completionRecordRepo{db: db}
	selectStmt := baseSelectCompletionRecord() + " WHERE id = $1"
	r.BaseVersionedRepo = NewBaseRepo(db, selectStmt, scanCompletionRecord)
	return r
}

func baseSelectCompletionRecord() string {
	return `
        SELECT
            id, appointment_id, worker_id, status,
            check_in_at, submitted_at, approved_at, approved_by,
            auto_approval_expires_at, checklist_evidence, payout_id,
            dropout_reason, row_version, created_at, updated_at
        FROM worker_completion_records
    `
}

func scanCompletionRecord(row pgx.Row) (*models.WorkerCompletionRecord, error) {
	var rec models.WorkerCompletionRecord
	err := row.Scan(
		&rec.ID,
		&rec.AppointmentID,
		&rec.WorkerID,
		&rec.Status,
		&rec.CheckInAt,
		&rec.SubmittedAt,
		&rec.ApprovedAt,
		&rec.ApprovedBy,
		&rec.AutoApprovalExpiresAt,
		&rec.ChecklistEvidence,
		&rec.PayoutID,
		&rec.DropoutReason,
		&rec.RowVersion,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *completionRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WorkerCompletionRecord, error) {
	return r.BaseVersionedRepo.GetByID(ctx, id.String())
}

func (r *completionRecordRepo) Create(ctx context.Context, rec *models.WorkerCompletionRecord) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO worker_completion_records (
            id, appointment_id, worker_id, status,
            check_in_at, submitted_at, approved_at, approved_by,
            auto_approval_expires_at, checklist_evidence, payout_id,
            dropout_reason, created_at, updated_at, row_version
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW(),1
        )
    `,
		rec.ID,
		rec.AppointmentID,
		rec.WorkerID,
		rec.Status,
		rec.CheckInAt,
		rec.SubmittedAt,
		rec.ApprovedAt,
		rec.ApprovedBy,
		rec.AutoApprovalExpiresAt,
		rec.ChecklistEvidence,
		rec.PayoutID,
		rec.DropoutReason,
	)
	return err
}

func (r *completionRecordRepo) GetByAppointmentAndWorker(ctx context.Context, appointmentID, workerID uuid.UUID) (*models.WorkerCompletionRecord, error) {
	q := baseSelectCompletionRecord() + " WHERE appointment_id = $1 AND worker_id = $2"
	row := r.db.QueryRow(ctx, q, appointmentID, workerID)
	return scanCompletionRecord(row)
}

// ListByAppointment returns records in assignment order (created_at). Stable
// ordering matters: the equal-split remainder goes to the first worker.
func (r *completionRecordRepo) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*models.WorkerCompletionRecord, error) {
	q := baseSelectCompletionRecord() + " WHERE appointment_id = $1 ORDER BY created_at, id"
	rows, err := r.db.Query(ctx, q, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.WorkerCompletionRecord
	for rows.Next() {
		rec, err := scanCompletionRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *completionRecordRepo) FindExpiredSubmitted(ctx context.Context, asOf time.Time) ([]*models.WorkerCompletionRecord, error) {
	q := baseSelectCompletionRecord() + `
        WHERE status = 'SUBMITTED'
          AND auto_approval_expires_at IS NOT NULL
          AND auto_approval_expires_at <= $1
        ORDER BY auto_approval_expires_at
    `
	rows, err := r.db.Query(ctx, q, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.WorkerCompletionRecord
	for rows.Next() {
		rec, err := scanCompletionRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *completionRecordRepo) UpdateIfVersion(ctx context.Context, rec *models.WorkerCompletionRecord, expectedVersion int64) (pgconn.CommandTag, error) {
	q := `
        UPDATE worker_completion_records SET
            status = $1,
            check_in_at = $2,
            submitted_at = $3,
            approved_at = $4,
            approved_by = $5,
            auto_approval_expires_at = $6,
            checklist_evidence = $7,
            payout_id = $8,
            dropout_reason = $9,
            updated_at = NOW(),
            row_version = row_version + 1
        WHERE id = $10 AND row_version = $11
    `
	return r.db.Exec(ctx, q,
		rec.Status, rec.CheckInAt, rec.SubmittedAt, rec.ApprovedAt, rec.ApprovedBy,
		rec.AutoApprovalExpiresAt, rec.ChecklistEvidence, rec.PayoutID, rec.DropoutReason,
		rec.ID, expectedVersion)
}

func (r *completionRecordRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.WorkerCompletionRecord) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}
