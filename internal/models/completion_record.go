package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CompletionStatusType string

const (
	CompletionStatusInProgress   CompletionStatusType = "IN_PROGRESS"
	CompletionStatusSubmitted    CompletionStatusType = "SUBMITTED"
	CompletionStatusApproved     CompletionStatusType = "APPROVED"
	CompletionStatusAutoApproved CompletionStatusType = "AUTO_APPROVED"
	CompletionStatusDroppedOut   CompletionStatusType = "DROPPED_OUT"
	CompletionStatusNoShow       CompletionStatusType = "NO_SHOW"
)

// Terminal reports whether no further transitions are legal for a worker
// record in this status.
func (s CompletionStatusType) Terminal() bool {
	switch s {
	case CompletionStatusApproved, CompletionStatusAutoApproved,
		CompletionStatusDroppedOut, CompletionStatusNoShow:
		return true
	}
	return false
}

// ApprovedEquivalent reports whether the status counts toward aggregate
// completion (explicit homeowner approval or the auto-approval backstop).
func (s CompletionStatusType) ApprovedEquivalent() bool {
	return s == CompletionStatusApproved || s == CompletionStatusAutoApproved
}

// WorkerCompletionRecord tracks one assigned worker's progress on one
// appointment. Records are created at assignment time and never deleted;
// they are retained for audit and dispute handling.
type WorkerCompletionRecord struct {
	Versioned

	ID            uuid.UUID            `json:"id"`
	AppointmentID uuid.UUID            `json:"appointment_id"`
	WorkerID      uuid.UUID            `json:"worker_id"`
	Status        CompletionStatusType `json:"status"`

	CheckInAt             *time.Time `json:"check_in_at,omitempty"`
	SubmittedAt           *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt            *time.Time `json:"approved_at,omitempty"`
	ApprovedBy            *uuid.UUID `json:"approved_by,omitempty"`
	AutoApprovalExpiresAt *time.Time `json:"auto_approval_expires_at,omitempty"`

	// Opaque, versioned payload from the checklist subsystem. This core
	// validates presence only, never shape.
	ChecklistEvidence json.RawMessage `json:"checklist_evidence,omitempty"`

	PayoutID *uuid.UUID `json:"payout_id,omitempty"`

	DropoutReason *string `json:"dropout_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *WorkerCompletionRecord) GetID() string {
	return r.ID.String()
}

// JobCompletion is the tagged-variant view of an appointment's completion
// state: a solo job collapses to a single record, a multi-worker job carries
// one record per assigned worker. The aggregate rollup is a pure function
// over either shape.
type JobCompletion struct {
	Solo *WorkerCompletionRecord
	Crew []*WorkerCompletionRecord
}

// NewJobCompletion builds the variant from the appointment flag and the
// record set loaded for it.
func NewJobCompletion(isMultiWorker bool, records []*WorkerCompletionRecord) JobCompletion {
	if !isMultiWorker && len(records) == 1 {
		return JobCompletion{Solo: records[0]}
	}
	return JobCompletion{Crew: records}
}

// Records flattens either variant back to a slice.
func (jc JobCompletion) Records() []*WorkerCompletionRecord {
	if jc.Solo != nil {
		return []*WorkerCompletionRecord{jc.Solo}
	}
	return jc.Crew
}

// AllApproved is the aggregate rollup: true when, excluding dropped-out and
// no-show workers, at least one record remains and every remaining record is
// approved or auto-approved. An empty remaining set fails closed.
func (jc JobCompletion) AllApproved() bool {
	remaining := 0
	for _, rec := range jc.Records() {
		if rec.Status == CompletionStatusDroppedOut || rec.Status == CompletionStatusNoShow {
			continue
		}
		if !rec.Status.ApprovedEquivalent() {
			return false
		}
		remaining++
	}
	return remaining > 0
}

// EligibleWorkers returns, in assignment order, the workers who still count
// toward settlement: everyone not dropped out or no-show, approved or not.
func (jc JobCompletion) EligibleWorkers() []uuid.UUID {
	var ids []uuid.UUID
	for _, rec := range jc.Records() {
		if rec.Status == CompletionStatusDroppedOut || rec.Status == CompletionStatusNoShow {
			continue
		}
		ids = append(ids, rec.WorkerID)
	}
	return ids
}

// ActiveWorkers returns the workers still on the job (not dropped out or
// no-show, not yet approved).
func (jc JobCompletion) ActiveWorkers() []*WorkerCompletionRecord {
	var active []*WorkerCompletionRecord
	for _, rec := range jc.Records() {
		if rec.Status == CompletionStatusInProgress || rec.Status == CompletionStatusSubmitted {
			active = append(active, rec)
		}
	}
	return active
}
