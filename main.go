package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labdesk/labdesk/internal/config"
	"github.com/labdesk/labdesk/internal/db"
	"github.com/labdesk/labdesk/internal/gelf"
	"github.com/labdesk/labdesk/internal/handler"
	"github.com/labdesk/labdesk/internal/platform"
	"github.com/labdesk/labdesk/internal/repository"
	"github.com/labdesk/labdesk/internal/router"
	"github.com/labdesk/labdesk/internal/service"
)

func main() {
	cfg := config.Load()

	// GELF UDP logging
	if cfg.GelfAddr != "" {
		gelfWriter, err := gelf.New(cfg.GelfAddr)
		if err != nil {
			log.Printf("Warning: GELF init failed: %v", err)
		} else {
			log.SetOutput(io.MultiWriter(os.Stderr, gelfWriter))
			log.Printf("GELF logging: enabled (%s)", cfg.GelfAddr)
		}
	}

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer database.Close(context.Background())
	log.Printf("Connected to MongoDB (%s)", cfg.MongoDB)

	// Repositories
	userRepo := repository.NewUserRepo(database)
	templateRepo := repository.NewTemplateRepo(database)
	assignmentRepo := repository.NewAssignmentRepo(database)
	subRepo := repository.NewSubmissionRepo(database)

	// Platform collaborators
	uploader, err := platform.NewGridFSUploader(database)
	if err != nil {
		log.Fatalf("Failed to open attachment bucket: %v", err)
	}
	var mailer platform.Mailer = platform.LogMailer{}
	if cfg.SMTPAddr != "" {
		mailer = &platform.SMTPMailer{
			Addr: cfg.SMTPAddr,
			From: cfg.SMTPFrom,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
		}
	}
	notifier := platform.LogNotifier{}
	designations := &platform.StaticDesignations{List: cfg.ApprovalDesignations}
	activity := platform.LogActivity{}

	// Services
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret)
	templateSvc := service.NewTemplateService(templateRepo, assignmentRepo, userRepo, notifier)
	workflowSvc := service.NewWorkflowService(assignmentRepo, subRepo, templateRepo, userRepo, designations, notifier, mailer, activity)
	chainSvc := service.NewChainService(assignmentRepo, subRepo, userRepo, designations)
	subSvc := service.NewSubmissionService(subRepo)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	templateH := handler.NewTemplateHandler(templateSvc)
	workflowH := handler.NewWorkflowHandler(workflowSvc, chainSvc, uploader)
	subH := handler.NewSubmissionHandler(subSvc)
	attachH := handler.NewAttachmentHandler(uploader)
	dashH := handler.NewDashboardHandler(templateRepo, assignmentRepo)

	// Router
	r := router.New(cfg.JWTSecret, authH, templateH, workflowH, subH, attachH, dashH)

	// Start HTTP immediately; index creation and admin seeding run in
	// background so a cold Mongo doesn't block the listener.
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		log.Printf("Background init: creating indexes...")
		if err := userRepo.EnsureIndexes(bg); err != nil {
			log.Printf("Warning: user index creation failed: %v", err)
		}
		if err := templateRepo.EnsureIndexes(bg); err != nil {
			log.Printf("Warning: template index creation failed: %v", err)
		}
		if err := assignmentRepo.EnsureIndexes(bg); err != nil {
			log.Printf("Warning: assignment index creation failed: %v", err)
		}
		if err := subRepo.EnsureIndexes(bg); err != nil {
			log.Printf("Warning: submission index creation failed: %v", err)
		}

		log.Printf("Background init: seeding admin user...")
		if err := authSvc.SeedAdmin(bg, cfg.AdminEmail, cfg.AdminPass, cfg.AdminLab, cfg.AdminDesignation); err != nil {
			log.Printf("Warning: failed to seed admin: %v", err)
		}
		log.Printf("Background init: done")
	}()

	log.Printf("Labdesk server starting on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
