package models

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatusType defines the possible states of a worker payout.
type PayoutStatusType string

const (
	PayoutStatusPending    PayoutStatusType = "PENDING"
	PayoutStatusHeld       PayoutStatusType = "HELD"
	PayoutStatusProcessing PayoutStatusType = "PROCESSING"
	PayoutStatusCompleted  PayoutStatusType = "COMPLETED"
	PayoutStatusFailed     PayoutStatusType = "FAILED"
)

// PayoutRecord is the ledger row for one worker's share of one appointment.
// At most one record per (appointment_id, worker_id) may ever reach
// COMPLETED, and gross_amount_cents = platform_fee_cents + net_amount_cents
// holds on every row.
type PayoutRecord struct {
	Versioned

	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	WorkerID      uuid.UUID `json:"worker_id"`

	GrossAmountCents int64 `json:"gross_amount_cents"`
	PlatformFeeCents int64 `json:"platform_fee_cents"`
	NetAmountCents   int64 `json:"net_amount_cents"`

	Status        PayoutStatusType `json:"status"`
	TransferID    *string          `json:"transfer_id,omitempty"`
	FailureReason *string          `json:"failure_reason,omitempty"`
	RetryCount    int              `json:"retry_count"`

	CapturedAt  *time.Time `json:"captured_at,omitempty"`
	InitiatedAt *time.Time `json:"initiated_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PayoutRecord) GetID() string {
	return p.ID.String()
}
