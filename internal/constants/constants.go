package constants

import "time"

const (
	// Payout failure reasons recorded on the ledger row. Stripe error codes
	// are stored verbatim; these cover failures raised before Stripe is hit.
	ReasonWorkerRecordNotFound       = "worker_record_not_found"
	ReasonMissingStripeConnectID     = "worker_missing_stripe_connect_id"
	ReasonWorkerNotPayoutEligible    = "worker_not_payout_eligible"
	ReasonUnknownStripeTransferError = "unknown_stripe_transfer_error"
	ReasonRetryLimitReached          = "payout_retry_limit_reached"

	// Metadata keys attached to every outbound Stripe transfer.
	TransferMetadataAppointmentIDKey = "appointment_id"
	TransferMetadataWorkerIDKey      = "worker_id"
	TransferMetadataPayoutIDKey      = "payout_id"
	TransferMetadataGeneratedByKey   = "generated_by"

	EmailSubjectPayoutFailureActionRequired = "Action Required: Your Poof payout could not be processed"
	EmailSubjectPayoutFailurePlatformIssue  = "Payout failure (platform issue) for worker %s"
	EmailSubjectSoloOffer                   = "A solo completion offer is waiting for you"
	FinanceTeamName                         = "Poof Finance Team"
	FinanceTeamEmail                        = "finance@thepoofapp.com"
	StripeExpressDashboardURL               = "https://connect.stripe.com/express_login"

	// Cron specs for the in-process sweeps.
	AutoApprovalSweepCronSpec = "*/5 * * * *"
	StalePayoutAuditCronSpec  = "17 * * * *"

	DefaultPlatformFeePercent    = 10.0
	DefaultMultiWorkerFeePercent = 13.0
	DefaultAutoApprovalHours     = 24
	DefaultSoloBonusCents        = 500
	DefaultMinOnSiteMinutes      = 30
	DefaultSoloOfferWindowHours  = 12

	// A FAILED payout is not resubmitted past this many attempts; further
	// retries are an operator decision.
	MaxPayoutRetries = 3

	// A PROCESSING payout older than this without a transfer confirmation is
	// flagged by the audit sweep.
	StaleProcessingThreshold = 30 * time.Minute

	ServerReadTimeout  = 15 * time.Second
	ServerWriteTimeout = 30 * time.Second
)
