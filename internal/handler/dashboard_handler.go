package handler

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/labdesk/labdesk/internal/auth"
	"github.com/labdesk/labdesk/internal/models"
	"github.com/labdesk/labdesk/internal/repository"
)

// DashboardHandler serves the per-user landing counts: how many forms
// are waiting on the caller at each stage of the workflow.
type DashboardHandler struct {
	templates   *repository.TemplateRepo
	assignments *repository.AssignmentRepo
}

func NewDashboardHandler(templates *repository.TemplateRepo, assignments *repository.AssignmentRepo) *DashboardHandler {
	return &DashboardHandler{templates: templates, assignments: assignments}
}

func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUser(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid user id")
		return
	}

	totalTemplates, err := h.templates.Count(r.Context())
	if err != nil {
		respondErr(w, err)
		return
	}
	counts := map[string]int64{}
	for _, status := range []string{
		models.StatusPending,
		models.StatusEdited,
		models.StatusApproved,
		models.StatusSubmitted,
	} {
		n, err := h.assignments.CountForHolder(r.Context(), userID, status)
		if err != nil {
			respondErr(w, err)
			return
		}
		counts[status] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"templates":   totalTemplates,
		"assignments": counts,
	})
}
