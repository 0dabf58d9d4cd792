package main

import (
	"context"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/gorilla/mux"
	"github.com/poofware/completions-service/internal/app"
	"github.com/poofware/completions-service/internal/config"
	"github.com/poofware/completions-service/internal/constants"
	"github.com/poofware/completions-service/internal/controllers"
	"github.com/poofware/completions-service/internal/repositories"
	"github.com/poofware/completions-service/internal/routes"
	"github.com/poofware/completions-service/internal/services"
	"github.com/poofware/completions-service/internal/utils"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
)

func main() {
	utils.InitLogger("completions-service")
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize completions-service:", err)
	}
	defer application.Close()

	// Repositories
	apptRepo := repositories.NewAppointmentRepository(application.DB)
	recRepo := repositories.NewCompletionRecordRepository(application.DB)
	payoutRepo := repositories.NewPayoutRecordRepository(application.DB)
	workerRepo := repositories.NewWorkerRepository(application.DB)
	roomRepo := repositories.NewRoomAssignmentRepository(application.DB)

	// Services
	processor := services.NewStripeProcessor(cfg.StripeSecretKey)
	notifier := services.NewWorkerNotifier(cfg, workerRepo)
	payoutService := services.NewPayoutService(cfg, apptRepo, recRepo, payoutRepo, workerRepo, roomRepo, processor, notifier)
	reassignService := services.NewReassignmentService(cfg, apptRepo, recRepo, roomRepo, notifier)
	completionService := services.NewCompletionService(cfg, apptRepo, recRepo, payoutService, reassignService, notifier)

	// Controllers
	healthController := controllers.NewHealthController(cfg)
	completionsController := controllers.NewCompletionsController(cfg, completionService, payoutService, reassignService)

	// Router setup
	router := mux.NewRouter()
	routes.RegisterRoutes(router, cfg, healthController, completionsController)

	// Cron job setup
	c := cron.New(cron.WithLocation(time.UTC))

	_, err = c.AddFunc(constants.AutoApprovalSweepCronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		promoted, err := completionService.SweepAutoApprovals(ctx)
		if err != nil {
			utils.Logger.WithError(err).Error("Auto-approval sweep failed")
			return
		}
		if promoted > 0 {
			utils.Logger.Infof("Auto-approval sweep promoted %d record(s)", promoted)
		}
	})
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to schedule auto-approval sweep cron")
	}

	_, err = c.AddFunc(constants.StalePayoutAuditCronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := payoutService.AuditStaleProcessing(ctx); err != nil {
			utils.Logger.WithError(err).Error("Stale payout audit failed")
		}
	})
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to schedule stale payout audit cron")
	}

	c.Start()
	defer c.Stop()
	utils.Logger.Info("Scheduled completion sweep cron jobs")

	co := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AppUrl},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Platform"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      co.Handler(router),
		ReadTimeout:  constants.ServerReadTimeout,
		WriteTimeout: constants.ServerWriteTimeout,
	}

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil {
		utils.Logger.Fatal("completions-service failed to start:", err)
	}
}
