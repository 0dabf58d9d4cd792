package models

import (
	"time"

	"github.com/google/uuid"
)

type RoomAssignmentStatusType string

const (
	RoomAssignmentPending RoomAssignmentStatusType = "PENDING"
	RoomAssignmentClaimed RoomAssignmentStatusType = "CLAIMED"
	RoomAssignmentDone    RoomAssignmentStatusType = "DONE"
)

// RoomAssignment maps a room of a multi-worker job to the worker covering
// it. Ownership belongs to the scheduling subsystem; this core reads
// estimated effort as the weighting input for proportional splits and
// releases assignments on dropout/no-show.
type RoomAssignment struct {
	Versioned

	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointment_id"`
	WorkerID      *uuid.UUID `json:"worker_id,omitempty"` // nil = unassigned

	RoomLabel              string                   `json:"room_label"`
	EstimatedEffortMinutes int                      `json:"estimated_effort_minutes"`
	Status                 RoomAssignmentStatusType `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ra *RoomAssignment) GetID() string {
	return ra.ID.String()
}
