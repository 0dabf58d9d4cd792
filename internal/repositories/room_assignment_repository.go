package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/poofware/completions-service/internal/models"
)

// RoomAssignmentRepository reads the scheduling subsystem's room rows as the
// weighting input for proportional splits, and releases them on dropout.
type RoomAssignmentRepository interface {
	Create(ctx context.Context, ra *models.RoomAssignment) error
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*models.RoomAssignment, error)
	ReleaseForWorker(ctx context.Context, appointmentID, workerID uuid.UUID) (int64, error)
}

type roomAssignmentRepo struct {
	db DB
}

func NewRoomAssignmentRepository(db DB) RoomAssignmentRepository {
	return &roomAssignmentRepo{db: db}
}

func baseSelectRoomAssignment() string {
	return `
        SELECT
            id, appointment_id, worker_id, room_label,
            estimated_effort_minutes, status,
            row_version, created_at, updated_at
        FROM room_assignments
    `
}

func scanRoomAssignment(row pgx.Row) (*models.RoomAssignment, error) {
	var ra models.RoomAssignment
	err := row.Scan(
		&ra.ID,
		&ra.AppointmentID,
		&ra.WorkerID,
		&ra.RoomLabel,
		&ra.EstimatedEffortMinutes,
		&ra.Status,
		&ra.RowVersion,
		&ra.CreatedAt,
		&ra.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ra, nil
}

func (r *roomAssignmentRepo) Create(ctx context.Context, ra *models.RoomAssignment) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO room_assignments (
            id, appointment_id, worker_id, room_label,
            estimated_effort_minutes, status,
            created_at, updated_at, row_version
        ) VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW(),1)
    `,
		ra.ID,
		ra.AppointmentID,
		ra.WorkerID,
		ra.RoomLabel,
		ra.EstimatedEffortMinutes,
		ra.Status,
	)
	return err
}

func (r *roomAssignmentRepo) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*models.RoomAssignment, error) {
	q := baseSelectRoomAssignment() + " WHERE appointment_id = $1 ORDER BY created_at, id"
	rows, err := r.db.Query(ctx, q, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []*models.RoomAssignment
	for rows.Next() {
		ra, err := scanRoomAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, ra)
	}
	return assignments, rows.Err()
}

// ReleaseForWorker unassigns every room held by the worker on the
// appointment, resetting status to PENDING so scheduling can re-offer them.
func (r *roomAssignmentRepo) ReleaseForWorker(ctx context.Context, appointmentID, workerID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE room_assignments SET
            worker_id = NULL,
            status = 'PENDING',
            updated_at = NOW(),
            row_version = row_version + 1
        WHERE appointment_id = $1 AND worker_id = $2
    `, appointmentID, workerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
