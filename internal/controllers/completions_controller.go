package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/poofware/completions-service/internal/config"
	"github.com/poofware/completions-service/internal/dtos"
	"github.com/poofware/completions-service/internal/middleware"
	"github.com/poofware/completions-service/internal/models"
	"github.com/poofware/completions-service/internal/services"
	"github.com/poofware/completions-service/internal/utils"
)

type CompletionsController struct {
	cfg           *config.Config
	completionSvc *services.CompletionService
	payoutSvc     *services.PayoutService
	reassignSvc   *services.ReassignmentService
	validate      *validator.Validate
}

func NewCompletionsController(
	cfg *config.Config,
	completionSvc *services.CompletionService,
	payoutSvc *services.PayoutService,
	reassignSvc *services.ReassignmentService,
) *CompletionsController {
	return &CompletionsController{
		cfg:           cfg,
		completionSvc: completionSvc,
		payoutSvc:     payoutSvc,
		reassignSvc:   reassignSvc,
		validate:      validator.New(),
	}
}

// POST /api/v1/completions/{appointmentID}/check-in
func (c *CompletionsController) CheckInHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID, workerID, ok := c.apptAndCaller(w, r)
	if !ok {
		return
	}

	rec, err := c.completionSvc.CheckIn(r.Context(), appointmentID, workerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, toRecordResponse(rec))
}

// POST /api/v1/completions/{appointmentID}/submit
func (c *CompletionsController) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID, workerID, ok := c.apptAndCaller(w, r)
	if !ok {
		return
	}

	var req dtos.SubmitCompletionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
			return
		}
	}

	rec, err := c.completionSvc.Submit(r.Context(), appointmentID, workerID, req.Evidence)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, toRecordResponse(rec))
}

// POST /api/v1/completions/{appointmentID}/approve
func (c *CompletionsController) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID, approverID, ok := c.apptAndCaller(w, r)
	if !ok {
		return
	}

	var req dtos.ApproveCompletionRequest
	if !c.decodeAndValidate(w, r, &req) {
		return
	}
	workerID, _ := uuid.Parse(req.WorkerID)

	rec, payout, err := c.completionSvc.Approve(r.Context(), appointmentID, workerID, approverID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, toApprovalResponse(rec, payout))
}

// POST /api/v1/completions/{appointmentID}/request-review
func (c *CompletionsController) RequestReviewHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID, approverID, ok := c.apptAndCaller(w, r)
	if !ok {
		return
	}

	var req dtos.RequestReviewRequest
	if !c.decodeAndValidate(w, r, &req) {
		return
	}
	workerID, _ := uuid.Parse(req.WorkerID)

	rec, payout, err := c.completionSvc.RequestReview(r.Context(), appointmentID, workerID, approverID, req.Concerns)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, toApprovalResponse(rec, payout))
}

// POST /api/v1/completions/{appointmentID}/dropout
func (c *CompletionsController) DropoutHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID, workerID, ok := c.apptAndCaller(w, r)
	if !ok {
		return
	}

	var req dtos.DropoutRequest
	if !c.decodeAndValidate(w, r, &req) {
		return
	}

	rec, err := c.completionSvc.MarkDropout(r.Context(), appointmentID, workerID, req.Reason)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, toRecordResponse(rec))
}

// POST /api/v1/completions/{appointmentID}/no-show
func (c *CompletionsController) NoShowHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID, _, ok := c.apptAndCaller(w, r)
	if !ok {
		return
	}

	var req dtos.NoShowRequest
	if !c.decodeAndValidate(w, r, &req) {
		return
	}
	workerID, _ := uuid.Parse(req.WorkerID)

	rec, err := c.completionSvc.MarkNoShow(r.Context(), appointmentID, workerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, toRecordResponse(rec))
}

// POST /api/v1/completions/{appointmentID}/solo-offer/accept
func (c *CompletionsController) AcceptSoloOfferHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID, workerID, ok := c.apptAndCaller(w, r)
	if !ok {
		return
	}

	appt, err := c.reassignSvc.AcceptSoloOffer(r.Context(), appointmentID, workerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	// Acceptance can resolve the last open slot on a job whose remaining
	// worker is already approved.
	if err := c.completionSvc.RecomputeAggregate(r.Context(), appointmentID); err != nil {
		utils.Logger.WithError(err).Errorf("Aggregate rollup failed for appointment %s", appointmentID)
	}

	utils.RespondWithJSON(w, http.StatusOK, toSoloOfferResponse(appt))
}

// GET /api/v1/completions/{appointmentID}/status?worker_id=...
func (c *CompletionsController) StatusHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID, callerID, ok := c.apptAndCaller(w, r)
	if !ok {
		return
	}

	var workerFilter *uuid.UUID
	if raw := r.URL.Query().Get("worker_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "worker_id is not a valid UUID", nil)
			return
		}
		workerFilter = &id
	}

	appt, recs, err := c.completionSvc.Status(r.Context(), appointmentID, workerFilter)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	resp := dtos.StatusResponse{
		AppointmentID:    appt.ID.String(),
		Completed:        appt.Completed,
		CompletionStatus: string(appt.CompletionStatus),
		FeedbackRequired: appt.FeedbackRequired,
		Workers:          make([]dtos.WorkerStatusResponse, 0, len(recs)),
	}
	if appt.SoloOfferWorkerID != nil && appt.SoloOfferExpiresAt != nil && appt.SoloOfferAmountCents != nil {
		resp.SoloOffer = &dtos.SoloOfferResponse{
			WorkerID:    appt.SoloOfferWorkerID.String(),
			AmountCents: *appt.SoloOfferAmountCents,
			ExpiresAt:   *appt.SoloOfferExpiresAt,
			AcceptedAt:  appt.SoloOfferAcceptedAt,
		}
	}

	now := time.Now().UTC()
	callerIsHomeowner := appt.HomeownerID == callerID
	for _, rec := range recs {
		ws := dtos.WorkerStatusResponse{
			WorkerID:              rec.WorkerID.String(),
			Status:                string(rec.Status),
			CheckInAt:             rec.CheckInAt,
			SubmittedAt:           rec.SubmittedAt,
			ApprovedAt:            rec.ApprovedAt,
			AutoApprovalExpiresAt: rec.AutoApprovalExpiresAt,
			CallerMayApprove:      callerIsHomeowner && rec.Status == models.CompletionStatusSubmitted,
		}
		if rec.Status == models.CompletionStatusSubmitted && rec.AutoApprovalExpiresAt != nil {
			remaining := int64(rec.AutoApprovalExpiresAt.Sub(now).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			ws.AutoApprovalRemainingSecs = &remaining
		}
		resp.Workers = append(resp.Workers, ws)
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// GET /api/v1/completions/{appointmentID}/earnings-preview
func (c *CompletionsController) EarningsPreviewHandler(w http.ResponseWriter, r *http.Request) {
	appointmentID, workerID, ok := c.apptAndCaller(w, r)
	if !ok {
		return
	}

	share, err := c.payoutSvc.EarningsPreview(r.Context(), appointmentID, workerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.EarningsPreviewResponse{
		WorkerID:      share.WorkerID.String(),
		GrossCents:    share.GrossCents,
		FeeCents:      share.FeeCents,
		NetCents:      share.NetCents,
		PercentOfWork: share.PercentOfWork,
	})
}

// GET /api/v1/completions/pricing-config
func (c *CompletionsController) PricingConfigHandler(w http.ResponseWriter, r *http.Request) {
	p := c.cfg.Pricing
	utils.RespondWithJSON(w, http.StatusOK, dtos.PricingConfigResponse{
		PlatformFeePercent:    p.PlatformFeePercent,
		MultiWorkerFeePercent: p.MultiWorkerFeePercent,
		AutoApprovalHours:     p.AutoApprovalHours,
		SoloBonusCents:        p.SoloBonusCents,
		MinOnSiteMinutes:      p.MinOnSiteMinutes,
		RequiresEvidence:      p.RequiresEvidence,
	})
}

// ------------------------------ helpers ------------------------------

// apptAndCaller extracts the appointment ID from the route and the caller's
// user ID from the auth context.
func (c *CompletionsController) apptAndCaller(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	ctxUserID := r.Context().Value(middleware.ContextKeyUserID)
	if ctxUserID == nil {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Missing userID in context", nil)
		return uuid.Nil, uuid.Nil, false
	}
	callerID, err := uuid.Parse(ctxUserID.(string))
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid userID in context", nil, err)
		return uuid.Nil, uuid.Nil, false
	}

	appointmentID, err := uuid.Parse(mux.Vars(r)["appointmentID"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "appointmentID is not a valid UUID", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return appointmentID, callerID, true
}

func (c *CompletionsController) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON body", nil, err)
		return false
	}
	if err := c.validate.Struct(dst); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, err.Error(), nil)
		return false
	}
	return true
}

// respondDomainError maps domain sentinels onto HTTP codes: validation
// errors are 400, authorization 403, missing offers 404, conflicts 409.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, utils.ErrNotAssigned),
		errors.Is(err, utils.ErrPaymentNotCaptured),
		errors.Is(err, utils.ErrEvidenceRequired),
		errors.Is(err, utils.ErrTimingNotAllowed):
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, err.Error(), nil)

	case errors.Is(err, utils.ErrForbidden):
		utils.RespondErrorWithCode(w, http.StatusForbidden, utils.ErrCodeForbidden, err.Error(), nil)

	case errors.Is(err, utils.ErrNoSoloOffer):
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, err.Error(), nil)

	case errors.Is(err, utils.ErrAlreadySubmitted),
		errors.Is(err, utils.ErrAlreadyApproved),
		errors.Is(err, utils.ErrNotApprovable),
		errors.Is(err, utils.ErrWrongStatus),
		errors.Is(err, utils.ErrSoloOfferExpired):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeConflict, err.Error(), nil)

	case errors.Is(err, utils.ErrRowVersionConflict):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeRowVersionConflict, err.Error(), nil)

	default:
		utils.HandleAppError(w, err)
	}
}

func toRecordResponse(rec *models.WorkerCompletionRecord) dtos.CompletionRecordResponse {
	resp := dtos.CompletionRecordResponse{
		ID:                    rec.ID.String(),
		AppointmentID:         rec.AppointmentID.String(),
		WorkerID:              rec.WorkerID.String(),
		Status:                string(rec.Status),
		CheckInAt:             rec.CheckInAt,
		SubmittedAt:           rec.SubmittedAt,
		ApprovedAt:            rec.ApprovedAt,
		AutoApprovalExpiresAt: rec.AutoApprovalExpiresAt,
		DropoutReason:         rec.DropoutReason,
	}
	if rec.PayoutID != nil {
		resp.PayoutID = utils.Ptr(rec.PayoutID.String())
	}
	return resp
}

func toApprovalResponse(rec *models.WorkerCompletionRecord, payout *services.PayoutResult) dtos.ApprovalResponse {
	resp := dtos.ApprovalResponse{
		Record: toRecordResponse(rec),
		Payout: dtos.PayoutResultResponse{
			Status: string(payout.Status),
			Reason: payout.Reason,
		},
	}
	if payout.Payout != nil {
		resp.Payout.PayoutID = payout.Payout.ID.String()
		resp.Payout.NetAmountCents = payout.Payout.NetAmountCents
	}
	return resp
}

func toSoloOfferResponse(appt *models.Appointment) dtos.SoloOfferResponse {
	resp := dtos.SoloOfferResponse{
		AcceptedAt: appt.SoloOfferAcceptedAt,
	}
	if appt.SoloOfferWorkerID != nil {
		resp.WorkerID = appt.SoloOfferWorkerID.String()
	}
	if appt.SoloOfferAmountCents != nil {
		resp.AmountCents = *appt.SoloOfferAmountCents
	}
	if appt.SoloOfferExpiresAt != nil {
		resp.ExpiresAt = *appt.SoloOfferExpiresAt
	}
	return resp
}
