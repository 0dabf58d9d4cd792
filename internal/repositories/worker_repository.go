package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/poofware/completions-service/internal/models"
)

// WorkerRepository exposes the read-mostly slice of the account
// subsystem's worker table that payouts and notifications need.
type WorkerRepository interface {
	Create(ctx context.Context, w *models.Worker) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Worker, error)
	GetByStripeConnectAccountID(ctx context.Context, acctID string) (*models.Worker, error)
}

type workerRepo struct {
	db DB
}

func NewWorkerRepository(db DB) WorkerRepository {
	return &workerRepo{db: db}
}

func baseSelectWorker() string {
	return `
        SELECT
            id, email, phone_number, first_name, last_name,
            account_status, stripe_connect_account_id,
            row_version, created_at, updated_at
        FROM workers
    `
}

func scanWorker(row pgx.Row) (*models.Worker, error) {
	var w models.Worker
	err := row.Scan(
		&w.ID,
		&w.Email,
		&w.PhoneNumber,
		&w.FirstName,
		&w.LastName,
		&w.AccountStatus,
		&w.StripeConnectAccountID,
		&w.RowVersion,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *workerRepo) Create(ctx context.Context, w *models.Worker) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO workers (
            id, email, phone_number, first_name, last_name,
            account_status, stripe_connect_account_id,
            created_at, updated_at, row_version
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW(),1)
    `,
		w.ID, w.Email, w.PhoneNumber, w.FirstName, w.LastName,
		w.AccountStatus, w.StripeConnectAccountID,
	)
	return err
}

func (r *workerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Worker, error) {
	row := r.db.QueryRow(ctx, baseSelectWorker()+" WHERE id = $1", id)
	return scanWorker(row)
}

func (r *workerRepo) GetByStripeConnectAccountID(ctx context.Context, acctID string) (*models.Worker, error) {
	row := r.db.QueryRow(ctx, baseSelectWorker()+" WHERE stripe_connect_account_id = $1", acctID)
	return scanWorker(row)
}
