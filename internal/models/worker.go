package models

import (
	"time"

	"github.com/google/uuid"
)

type AccountStatusType string

const (
	AccountStatusIncomplete AccountStatusType = "INCOMPLETE"
	AccountStatusActive     AccountStatusType = "ACTIVE"
	AccountStatusSuspended  AccountStatusType = "SUSPENDED"
)

// Worker is the slice of the account subsystem's worker record that the
// completion core needs: identity, contact details for notifications, and
// the verified payout destination.
type Worker struct {
	Versioned

	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`

	AccountStatus          AccountStatusType `json:"account_status"`
	StripeConnectAccountID *string           `json:"stripe_connect_account_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (w *Worker) GetID() string {
	return w.ID.String()
}
