package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/poofware/completions-service/internal/config"
	"github.com/poofware/completions-service/internal/controllers"
	"github.com/poofware/completions-service/internal/middleware"
)

// RegisterRoutes wires the public health probe and the JWT-protected
// completion endpoints.
func RegisterRoutes(
	r *mux.Router,
	cfg *config.Config,
	healthController *controllers.HealthController,
	completionsController *controllers.CompletionsController,
) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", healthController.HealthHandler).Methods(http.MethodGet)

	completions := api.PathPrefix("/completions").Subrouter()
	completions.Use(middleware.AuthMiddleware(cfg.RSAPublicKey))

	completions.HandleFunc("/pricing-config", completionsController.PricingConfigHandler).Methods(http.MethodGet)

	completions.HandleFunc("/{appointmentID}/check-in", completionsController.CheckInHandler).Methods(http.MethodPost)
	completions.HandleFunc("/{appointmentID}/submit", completionsController.SubmitHandler).Methods(http.MethodPost)
	completions.HandleFunc("/{appointmentID}/approve", completionsController.ApproveHandler).Methods(http.MethodPost)
	completions.HandleFunc("/{appointmentID}/request-review", completionsController.RequestReviewHandler).Methods(http.MethodPost)
	completions.HandleFunc("/{appointmentID}/dropout", completionsController.DropoutHandler).Methods(http.MethodPost)
	completions.HandleFunc("/{appointmentID}/no-show", completionsController.NoShowHandler).Methods(http.MethodPost)
	completions.HandleFunc("/{appointmentID}/solo-offer/accept", completionsController.AcceptSoloOfferHandler).Methods(http.MethodPost)
	completions.HandleFunc("/{appointmentID}/status", completionsController.StatusHandler).Methods(http.MethodGet)
	completions.HandleFunc("/{appointmentID}/earnings-preview", completionsController.EarningsPreviewHandler).Methods(http.MethodGet)
}
