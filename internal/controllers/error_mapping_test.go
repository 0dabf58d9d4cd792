package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poofware/completions-service/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestRespondDomainError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not assigned is a validation error", utils.ErrNotAssigned, http.StatusBadRequest, utils.ErrCodeValidation},
		{"payment not captured", utils.ErrPaymentNotCaptured, http.StatusBadRequest, utils.ErrCodeValidation},
		{"evidence required", utils.ErrEvidenceRequired, http.StatusBadRequest, utils.ErrCodeValidation},
		{"timing not allowed", utils.ErrTimingNotAllowed, http.StatusBadRequest, utils.ErrCodeValidation},
		{"forbidden", utils.ErrForbidden, http.StatusForbidden, utils.ErrCodeForbidden},
		{"no solo offer", utils.ErrNoSoloOffer, http.StatusNotFound, utils.ErrCodeNotFound},
		{"already submitted", utils.ErrAlreadySubmitted, http.StatusConflict, utils.ErrCodeConflict},
		{"already approved", utils.ErrAlreadyApproved, http.StatusConflict, utils.ErrCodeConflict},
		{"not approvable", utils.ErrNotApprovable, http.StatusConflict, utils.ErrCodeConflict},
		{"solo offer expired", utils.ErrSoloOfferExpired, http.StatusConflict, utils.ErrCodeConflict},
		{"row version conflict", utils.ErrRowVersionConflict, http.StatusConflict, utils.ErrCodeRowVersionConflict},
		{
			"app error passes through",
			&utils.AppError{StatusCode: http.StatusNotFound, Code: utils.ErrCodeNotFound, Message: "Appointment not found"},
			http.StatusNotFound,
			utils.ErrCodeNotFound,
		},
		{"unexpected error", errors.New("pq: connection reset"), http.StatusInternalServerError, utils.ErrCodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondDomainError(rec, tc.err)

			require.Equal(t, tc.wantStatus, rec.Code)

			var body utils.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, tc.wantCode, body.Code)
		})
	}
}
