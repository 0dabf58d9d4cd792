package models

import (
	"time"

	"github.com/google/uuid"
)

// Appointment is the aggregate booking record spanning one or more workers.
// Booking creation and scheduling belong to the booking subsystem; the
// completion core reads price/worker data and writes completion_status,
// completed and the solo-offer columns.
type Appointment struct {
	Versioned

	ID          uuid.UUID `json:"id"`
	HomeownerID uuid.UUID `json:"homeowner_id"`
	HomeID      uuid.UUID `json:"home_id"`

	PriceCents      int64 `json:"price_cents"`
	IsMultiWorker   bool  `json:"is_multi_worker"`
	PaymentCaptured bool  `json:"payment_captured"`

	CompletionStatus CompletionStatusType `json:"completion_status"`
	Completed        bool                 `json:"completed"`
	FeedbackRequired bool                 `json:"feedback_required"`

	RequiredWorkerCount  int `json:"required_worker_count"`
	ConfirmedWorkerCount int `json:"confirmed_worker_count"`

	// Start of the booked service window; submissions before this time are
	// only allowed after a sufficiently long on-site check-in.
	WindowStartsAt time.Time `json:"window_starts_at"`

	// Solo-completion offer, set when a dropout leaves a single eligible
	// worker on a job that originally required more than one.
	SoloOfferWorkerID    *uuid.UUID `json:"solo_offer_worker_id,omitempty"`
	SoloOfferAmountCents *int64     `json:"solo_offer_amount_cents,omitempty"`
	SoloOfferExpiresAt   *time.Time `json:"solo_offer_expires_at,omitempty"`
	SoloOfferAcceptedAt  *time.Time `json:"solo_offer_accepted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Appointment) GetID() string {
	return a.ID.String()
}

// SoloOfferAcceptedBy reports whether the given worker holds an accepted,
// still-standing solo-completion offer on this appointment.
func (a *Appointment) SoloOfferAcceptedBy(workerID uuid.UUID) bool {
	return a.SoloOfferWorkerID != nil &&
		*a.SoloOfferWorkerID == workerID &&
		a.SoloOfferAcceptedAt != nil
}
