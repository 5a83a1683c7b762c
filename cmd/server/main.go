// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/streadway/amqp"

	"github.com/unclebandit/leadflow-backend/internal/controller"
	"github.com/unclebandit/leadflow-backend/internal/db"
	"github.com/unclebandit/leadflow-backend/internal/handler"
	"github.com/unclebandit/leadflow-backend/internal/mailer"
	"github.com/unclebandit/leadflow-backend/internal/queue"
	"github.com/unclebandit/leadflow-backend/internal/repository"
	"github.com/unclebandit/leadflow-backend/internal/service"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	// Init DB
	db.Init()

	campaignRepo := &repository.CampaignRepository{DB: db.DB}
	stepRepo := &repository.StepRepository{DB: db.DB}
	progressRepo := &repository.ProgressRepository{DB: db.DB}
	leadRepo := &repository.LeadRepository{DB: db.DB}
	activityRepo := &repository.ActivityRepository{DB: db.DB}
	scheduledRepo := &repository.ScheduledEmailRepository{DB: db.DB}

	sender := newSender()

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		StepRepo:     stepRepo,
		ProgressRepo: progressRepo,
		LeadRepo:     leadRepo,
	}
	runner := service.NewSequenceRunner(campaignRepo, stepRepo, progressRepo, leadRepo, activityRepo, sender)
	scheduledService := service.NewScheduledEmailService(scheduledRepo, sender)

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Runner:          runner,
	}
	scheduledController := &controller.ScheduledEmailController{
		Service: scheduledService,
	}
	activityHandler := handler.NewActivityHandler(activityRepo)

	startDispatcherLoop(scheduledService)
	startRunnerLoop(runner, campaignRepo)

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Post("/campaigns/{id}/status", campaignController.UpdateCampaignStatus)
	r.Post("/campaigns/{id}/steps", campaignController.UpsertStep)
	r.Get("/campaigns/{id}/steps", campaignController.ListSteps)
	r.Delete("/campaigns/{id}/steps/{stepID}", campaignController.DeleteStep)
	r.Post("/campaigns/{id}/leads", campaignController.AttachLeads)
	r.Get("/campaigns/{id}/leads", campaignController.ListLeads)
	r.Delete("/campaigns/{id}/leads", campaignController.RemoveLeads)
	r.Post("/campaigns/{id}/run", campaignController.RunCampaign)
	r.Post("/campaigns/{id}/reset", campaignController.ResetCampaign)
	r.Post("/campaigns/{id}/personalized-preview", campaignController.PersonalizedPreview)
	r.Get("/campaigns/{id}/activity", activityHandler.ListActivityHandler)

	// Scheduled email routes
	r.Post("/scheduled-emails", scheduledController.Schedule)
	r.Get("/scheduled-emails", scheduledController.List)
	r.Post("/scheduled-emails/{id}/cancel", scheduledController.Cancel)
	r.Post("/scheduled-emails/process-due", scheduledController.ProcessDue)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Println("🚀 Server running on", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}

// newSender picks the delivery transport. With AMQP_URL set, sends are
// handed to RabbitMQ for cmd/worker; otherwise the in-memory queue
// delivers within this process.
func newSender() mailer.Sender {
	if url := os.Getenv("AMQP_URL"); url != "" {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ:", err)
		}
		sender, err := mailer.NewAMQPSender(conn)
		if err != nil {
			log.Fatal("Failed to declare email queue:", err)
		}
		log.Println("📨 Email sends go to RabbitMQ queue", mailer.EmailSendQueue)
		return sender
	}

	q := queue.NewInMemoryQueue()
	mailer.StartDeliverySubscriber(q, mailer.LogDelivery)
	log.Println("📨 No AMQP_URL set, delivering emails in-process")
	return mailer.NewQueueSender(q)
}

// startRunnerLoop sweeps every active campaign on a timer so due leads
// advance without an operator pressing run.
func startRunnerLoop(runner *service.SequenceRunner, campaigns repository.CampaignRepositoryInterface) {
	interval := 60 * time.Second
	if raw := os.Getenv("RUN_INTERVAL_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}

	go func() {
		for range time.Tick(interval) {
			offset := 0
			for {
				batch, total, err := campaigns.ListCampaigns(offset, 50)
				if err != nil {
					log.Println("⚠️ campaign sweep failed:", err)
					break
				}
				for _, c := range batch {
					if c.Status != "active" {
						continue
					}
					result, err := runner.Run(c.ID, false)
					if err != nil {
						log.Println("⚠️ campaign sweep failed for", c.ID, ":", err)
						continue
					}
					if result.Processed > 0 {
						log.Printf("Campaign %d sweep: %s\n", c.ID, result.Message)
					}
				}
				offset += len(batch)
				if len(batch) == 0 || offset >= total {
					break
				}
			}
		}
	}()
}

// startDispatcherLoop runs the scheduled-email sweep on a ticker. The
// same sweep stays safe to trigger over HTTP at any time.
func startDispatcherLoop(svc *service.ScheduledEmailService) {
	interval := 30 * time.Second
	if raw := os.Getenv("DISPATCH_INTERVAL_SECONDS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			interval = time.Duration(n) * time.Second
		}
	}

	go func() {
		for range time.Tick(interval) {
			result, err := svc.ProcessDue(time.Now())
			if err != nil {
				log.Println("⚠️ scheduled email sweep failed:", err)
				continue
			}
			if result.Sent > 0 || result.Failed > 0 {
				log.Printf("Scheduled email sweep: %d sent, %d failed\n", result.Sent, result.Failed)
			}
		}
	}()
}
