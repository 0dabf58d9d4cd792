package controllers

import (
	"net/http"

	"github.com/poofware/completions-service/internal/config"
	"github.com/poofware/completions-service/internal/dtos"
	"github.com/poofware/completions-service/internal/utils"
)

type HealthController struct {
	cfg *config.Config
}

func NewHealthController(cfg *config.Config) *HealthController {
	return &HealthController{cfg: cfg}
}

// GET /api/v1/health
func (c *HealthController) HealthHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, dtos.HealthResponse{
		Status:  "ok",
		AppName: c.cfg.AppName,
	})
}
