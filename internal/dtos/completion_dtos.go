package dtos

import (
	"encoding/json"
	"time"
)

type SubmitCompletionRequest struct {
	Evidence json.RawMessage `json:"evidence,omitempty"`
}

type ApproveCompletionRequest struct {
	WorkerID string `json:"worker_id" validate:"required,uuid4"`
}

type RequestReviewRequest struct {
	WorkerID string `json:"worker_id" validate:"required,uuid4"`
	Concerns string `json:"concerns" validate:"required,max=2000"`
}

type DropoutRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type NoShowRequest struct {
	WorkerID string `json:"worker_id" validate:"required,uuid4"`
}

type CompletionRecordResponse struct {
	ID                    string     `json:"id"`
	AppointmentID         string     `json:"appointment_id"`
	WorkerID              string     `json:"worker_id"`
	Status                string     `json:"status"`
	CheckInAt             *time.Time `json:"check_in_at,omitempty"`
	SubmittedAt           *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt            *time.Time `json:"approved_at,omitempty"`
	AutoApprovalExpiresAt *time.Time `json:"auto_approval_expires_at,omitempty"`
	PayoutID              *string    `json:"payout_id,omitempty"`
	DropoutReason         *string    `json:"dropout_reason,omitempty"`
}

type PayoutResultResponse struct {
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	PayoutID       string `json:"payout_id,omitempty"`
	NetAmountCents int64  `json:"net_amount_cents,omitempty"`
}

// ApprovalResponse reports both the state transition and the payout outcome
// so the caller can tell the worker when payment is delayed.
type ApprovalResponse struct {
	Record CompletionRecordResponse `json:"record"`
	Payout PayoutResultResponse     `json:"payout"`
}

// WorkerStatusResponse is one worker's progress line on the status endpoint.
type WorkerStatusResponse struct {
	WorkerID                  string     `json:"worker_id"`
	Status                    string     `json:"status"`
	CheckInAt                 *time.Time `json:"check_in_at,omitempty"`
	SubmittedAt               *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt                *time.Time `json:"approved_at,omitempty"`
	AutoApprovalExpiresAt     *time.Time `json:"auto_approval_expires_at,omitempty"`
	AutoApprovalRemainingSecs *int64     `json:"auto_approval_remaining_seconds,omitempty"`
	CallerMayApprove          bool       `json:"caller_may_approve"`
}

type StatusResponse struct {
	AppointmentID    string                 `json:"appointment_id"`
	Completed        bool                   `json:"completed"`
	CompletionStatus string                 `json:"completion_status"`
	FeedbackRequired bool                   `json:"feedback_required"`
	SoloOffer        *SoloOfferResponse     `json:"solo_offer,omitempty"`
	Workers          []WorkerStatusResponse `json:"workers"`
}

type SoloOfferResponse struct {
	WorkerID    string     `json:"worker_id"`
	AmountCents int64      `json:"amount_cents"`
	ExpiresAt   time.Time  `json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
}

type EarningsPreviewResponse struct {
	WorkerID      string `json:"worker_id"`
	GrossCents    int64  `json:"gross_cents"`
	FeeCents      int64  `json:"fee_cents"`
	NetCents      int64  `json:"net_cents"`
	PercentOfWork int    `json:"percent_of_work"`
}

type PricingConfigResponse struct {
	PlatformFeePercent    float64 `json:"platform_fee_percent"`
	MultiWorkerFeePercent float64 `json:"multi_worker_fee_percent"`
	AutoApprovalHours     int     `json:"auto_approval_hours"`
	SoloBonusCents        int64   `json:"solo_bonus_cents"`
	MinOnSiteMinutes      int     `json:"min_on_site_minutes"`
	RequiresEvidence      bool    `json:"requires_evidence"`
}
