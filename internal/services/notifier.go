package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/poofware/completions-service/internal/config"
	"github.com/poofware/completions-service/internal/constants"
	"github.com/poofware/completions-service/internal/models"
	"github.com/poofware/completions-service/internal/repositories"
	"github.com/poofware/completions-service/internal/utils"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier delivers completion and payout notifications. All methods are
// fire-and-forget: delivery failures are logged, never returned, so a dead
// email provider cannot block a payout.
type Notifier interface {
	PayoutCompleted(ctx context.Context, payout *models.PayoutRecord)
	PayoutFailed(ctx context.Context, payout *models.PayoutRecord, requiresUserAction bool)
	SoloOfferExtended(ctx context.Context, workerID uuid.UUID, appt *models.Appointment, offer SoloEarnings)
	SubmissionAwaitingReview(ctx context.Context, appt *models.Appointment, workerID uuid.UUID)
}

const userFacingFailureEmailHTML = `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;">
  <h2>Payout issue</h2>
  <p>Hi %s,</p>
  <p>Your payout of <strong>$%.2f</strong> could not be processed due to an issue
  with your connected bank account. Reason: <em>%s</em></p>
  <p>Please update your payout information in the
  <a href="%s">Stripe Express Dashboard</a> to ensure you receive your earnings.</p>
  <p>If you continue to have issues, please contact support.</p>
  <p>- The Poof Team</p>
</body>
</html>`

const internalFinanceEmailHTML = `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;">
  <h2>Payout failure — platform issue</h2>
  <p>A payout of <strong>$%.2f</strong> for worker %s (Payout ID: %s) failed due
  to a platform-side issue. Reason: <em>%s</em></p>
  <p>Please investigate immediately.</p>
</body>
</html>`

const soloOfferEmailHTML = `<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;">
  <h2>Solo completion offer</h2>
  <p>Hi %s,</p>
  <p>Your co-worker can no longer complete the job. You can finish it on your own
  and earn <strong>$%.2f</strong> (including a $%.2f solo bonus).</p>
  <p>This offer expires at %s. Open the app to accept it.</p>
  <p>- The Poof Team</p>
</body>
</html>`

type workerNotifier struct {
	cfg        *config.Config
	workerRepo repositories.WorkerRepository
	sgClient   *sendgrid.Client
	twClient   *twilio.RestClient
}

// NewWorkerNotifier builds the production notifier. The Twilio client is
// optional; without credentials only email goes out.
func NewWorkerNotifier(cfg *config.Config, workerRepo repositories.WorkerRepository) Notifier {
	n := &workerNotifier{
		cfg:        cfg,
		workerRepo: workerRepo,
		sgClient:   sendgrid.NewSendClient(cfg.SendgridAPIKey),
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		n.twClient = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		})
	}
	return n
}

func (n *workerNotifier) PayoutCompleted(ctx context.Context, p *models.PayoutRecord) {
	worker, err := n.workerRepo.GetByID(ctx, p.WorkerID)
	if err != nil || worker == nil {
		utils.Logger.WithError(err).Errorf("Failed to fetch worker %s for payout notification", p.WorkerID)
		return
	}
	body := fmt.Sprintf(
		"Hi %s, your payout of $%.2f is on its way to your bank account.",
		worker.FirstName, float64(p.NetAmountCents)/100.0,
	)
	n.sendSMS(worker.PhoneNumber, body)
}

func (n *workerNotifier) PayoutFailed(ctx context.Context, p *models.PayoutRecord, requiresUserAction bool) {
	worker, err := n.workerRepo.GetByID(ctx, p.WorkerID)
	if err != nil || worker == nil {
		utils.Logger.WithError(err).Errorf("Failed to fetch worker %s for failure notification", p.WorkerID)
		return
	}

	reason := "unknown"
	if p.FailureReason != nil {
		reason = *p.FailureReason
	}

	from := mail.NewEmail(n.cfg.OrganizationName, n.cfg.SendgridFromEmail)
	var to *mail.Email
	var subject, plainText, htmlContent string

	if requiresUserAction {
		to = mail.NewEmail(worker.FirstName+" "+worker.LastName, worker.Email)
		subject = constants.EmailSubjectPayoutFailureActionRequired
		plainText = fmt.Sprintf(
			"Hi %s,\n\nYour payout of $%.2f could not be processed due to an issue with your connected bank account. Reason: %s\n\nPlease update your payout information in the Stripe Express Dashboard: %s\n\n- The Poof Team",
			worker.FirstName, float64(p.NetAmountCents)/100.0, reason, constants.StripeExpressDashboardURL,
		)
		htmlContent = fmt.Sprintf(
			userFacingFailureEmailHTML,
			worker.FirstName, float64(p.NetAmountCents)/100.0, reason, constants.StripeExpressDashboardURL,
		)
	} else {
		to = mail.NewEmail(constants.FinanceTeamName, constants.FinanceTeamEmail)
		subject = fmt.Sprintf(constants.EmailSubjectPayoutFailurePlatformIssue, worker.ID)
		plainText = fmt.Sprintf(
			"A payout of $%.2f for worker %s (Payout ID: %s) failed due to a platform-side issue. Reason: %s\n\nPlease investigate immediately.",
			float64(p.NetAmountCents)/100.0, worker.ID.String(), p.ID.String(), reason,
		)
		htmlContent = fmt.Sprintf(
			internalFinanceEmailHTML,
			float64(p.NetAmountCents)/100.0, worker.ID.String(), p.ID.String(), reason,
		)
	}

	n.sendEmail(from, to, subject, plainText, htmlContent)
}

func (n *workerNotifier) SoloOfferExtended(ctx context.Context, workerID uuid.UUID, appt *models.Appointment, offer SoloEarnings) {
	worker, err := n.workerRepo.GetByID(ctx, workerID)
	if err != nil || worker == nil {
		utils.Logger.WithError(err).Errorf("Failed to fetch worker %s for solo offer notification", workerID)
		return
	}

	expires := "soon"
	if appt.SoloOfferExpiresAt != nil {
		expires = appt.SoloOfferExpiresAt.Format("3:04 PM MST, Jan 2")
	}

	plainText := fmt.Sprintf(
		"Hi %s, your co-worker can no longer complete the job. Finish it solo and earn $%.2f (includes a $%.2f bonus). Offer expires at %s — open the app to accept.",
		worker.FirstName,
		float64(offer.TotalCents)/100.0,
		float64(offer.BonusCents)/100.0,
		expires,
	)
	htmlContent := fmt.Sprintf(
		soloOfferEmailHTML,
		worker.FirstName,
		float64(offer.TotalCents)/100.0,
		float64(offer.BonusCents)/100.0,
		expires,
	)

	n.sendSMS(worker.PhoneNumber, plainText)

	from := mail.NewEmail(n.cfg.OrganizationName, n.cfg.SendgridFromEmail)
	to := mail.NewEmail(worker.FirstName+" "+worker.LastName, worker.Email)
	n.sendEmail(from, to, constants.EmailSubjectSoloOffer, plainText, htmlContent)
}

// SubmissionAwaitingReview targets the homeowner, whose contact data lives
// in another service. Delivery goes through the notifications queue owned by
// that service; here we only log the event.
func (n *workerNotifier) SubmissionAwaitingReview(ctx context.Context, appt *models.Appointment, workerID uuid.UUID) {
	utils.Logger.Infof(
		"Submission by worker %s on appointment %s awaiting homeowner %s review",
		workerID, appt.ID, appt.HomeownerID,
	)
}

func (n *workerNotifier) sendSMS(to, body string) {
	if n.twClient == nil || n.cfg.TwilioFromPhone == "" {
		utils.Logger.Debug("Twilio client not configured, skipping SMS")
		return
	}
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(n.cfg.TwilioFromPhone)
	params.SetBody(body)
	if _, err := n.twClient.Api.CreateMessage(params); err != nil {
		utils.Logger.WithError(err).Warnf("Failed to send SMS to %s", to)
	}
}

func (n *workerNotifier) sendEmail(from, to *mail.Email, subject, plainText, htmlContent string) {
	msg := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	msg.TrackingSettings = &mail.TrackingSettings{
		ClickTracking: &mail.ClickTrackingSetting{
			Enable: utils.Ptr(false),
		},
	}
	if n.cfg.SendgridSandboxMode {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}
	if _, err := n.sgClient.Send(msg); err != nil {
		utils.Logger.WithError(err).Error("Failed to send notification email")
	}
}
