package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/labdesk/labdesk/internal/auth"
	"github.com/labdesk/labdesk/internal/handler"
	mw "github.com/labdesk/labdesk/internal/middleware"
)

func New(
	jwtSecret string,
	authH *handler.AuthHandler,
	templateH *handler.TemplateHandler,
	workflowH *handler.WorkflowHandler,
	subH *handler.SubmissionHandler,
	attachH *handler.AttachmentHandler,
	dashH *handler.DashboardHandler,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/register", authH.Register)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))

			// Auth
			r.Get("/auth/me", authH.Me)

			// Dashboard
			r.Get("/dashboard", dashH.Summary)

			// Templates
			r.Get("/templates", templateH.List)
			r.Post("/templates", templateH.Create)
			r.Get("/templates/{templateId}", templateH.Get)
			r.Put("/templates/{templateId}", templateH.Update)
			r.Delete("/templates/{templateId}", templateH.Delete)

			// Workflow
			r.Post("/workflow/delegate", workflowH.Delegate)
			r.Post("/workflow/mark-back", workflowH.MarkBack)
			r.Post("/workflow/mark-final", workflowH.MarkFinal)
			r.Post("/workflow/approve", workflowH.Approve)
			r.Post("/workflow/submit-to-distributor", workflowH.SubmitToDistributor)
			r.Post("/workflow/save-draft", workflowH.SaveDraft)
			r.Get("/workflow/chain/{assignmentId}", workflowH.Chain)
			r.Get("/workflow/chain-by-submission/{submissionId}", workflowH.ChainBySubmission)

			// Submissions
			r.Get("/templates/{templateId}/submissions", subH.ListByTemplate)
			r.Get("/submissions/{submissionId}", subH.Get)

			// Attachments
			r.Post("/attachments", attachH.Upload)
			r.Get("/attachments/{fileId}", attachH.Download)
		})
	})

	return r
}
