package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/labdesk/labdesk/internal/auth"
	"github.com/labdesk/labdesk/internal/models"
	"github.com/labdesk/labdesk/internal/platform"
	"github.com/labdesk/labdesk/internal/service"
)

const maxDraftMemory = 32 << 20 // 32 MB

type WorkflowHandler struct {
	workflow *service.WorkflowService
	chain    *service.ChainService
	uploader platform.Uploader
}

func NewWorkflowHandler(workflow *service.WorkflowService, chain *service.ChainService, uploader platform.Uploader) *WorkflowHandler {
	return &WorkflowHandler{workflow: workflow, chain: chain, uploader: uploader}
}

// actorFrom builds the acting identity from the verified token claims.
func actorFrom(w http.ResponseWriter, r *http.Request) (service.Actor, bool) {
	claims := auth.GetUser(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return service.Actor{}, false
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid user id")
		return service.Actor{}, false
	}
	return service.Actor{ID: id, LabID: claims.LabID, Designation: claims.Designation}, true
}

// optionalID parses a hex ObjectID that may be absent. An empty string
// yields a nil pointer; a malformed one is rejected with a 400.
func optionalID(w http.ResponseWriter, raw, field string) (*primitive.ObjectID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+field)
		return nil, false
	}
	return &id, true
}

func (h *WorkflowHandler) Delegate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		TemplateID         string `json:"templateId"`
		AssignedToID       string `json:"assignedToId"`
		Remarks            string `json:"remarks"`
		ParentAssignmentID string `json:"parentAssignmentId"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	templateID, err := primitive.ObjectIDFromHex(req.TemplateID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid templateId")
		return
	}
	assignedToID, err := primitive.ObjectIDFromHex(req.AssignedToID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assignedToId")
		return
	}
	parentID, ok := optionalID(w, req.ParentAssignmentID, "parentAssignmentId")
	if !ok {
		return
	}
	assignment, err := h.workflow.Delegate(r.Context(), actor, templateID, assignedToID, req.Remarks, parentID)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

func (h *WorkflowHandler) MarkBack(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		AssignmentID string `json:"assignmentId"`
		Remarks      string `json:"remarks"`
		DataID       string `json:"dataId"`
		ReturnToID   string `json:"returnToId"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	assignmentID, err := primitive.ObjectIDFromHex(req.AssignmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assignmentId")
		return
	}
	returnToID, ok := optionalID(w, req.ReturnToID, "returnToId")
	if !ok {
		return
	}
	dataID, ok := optionalID(w, req.DataID, "dataId")
	if !ok {
		return
	}
	assignment, err := h.workflow.MarkBack(r.Context(), actor, assignmentID, req.Remarks, returnToID, dataID)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

func (h *WorkflowHandler) MarkFinal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workflow.MarkFinal)
}

func (h *WorkflowHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workflow.Approve)
}

func (h *WorkflowHandler) SubmitToDistributor(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workflow.SubmitToDistributor)
}

// transition handles the in-place operations sharing the
// {assignmentId, remarks} request shape.
func (h *WorkflowHandler) transition(w http.ResponseWriter, r *http.Request,
	op func(context.Context, service.Actor, primitive.ObjectID, string) (*models.Assignment, error)) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req struct {
		AssignmentID string `json:"assignmentId"`
		Remarks      string `json:"remarks"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	assignmentID, err := primitive.ObjectIDFromHex(req.AssignmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assignmentId")
		return
	}
	assignment, err := op(r.Context(), actor, assignmentID, req.Remarks)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

// SaveDraft accepts either a JSON body or a multipart form. In the
// multipart case the "data" field carries the answers as JSON and any
// file parts are uploaded first, with their descriptors merged into the
// answers under the part's field name.
func (h *WorkflowHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var (
		templateRaw   string
		assignmentRaw string
		data          map[string]any
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxDraftMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		templateRaw = r.FormValue("templateId")
		assignmentRaw = r.FormValue("assignmentId")
		if raw := r.FormValue("data"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				writeError(w, http.StatusBadRequest, "invalid data payload")
				return
			}
		}
		if data == nil {
			data = map[string]any{}
		}
		for field, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				f, err := fh.Open()
				if err != nil {
					writeError(w, http.StatusBadRequest, "unreadable file part "+field)
					return
				}
				stored, err := h.uploader.Upload(r.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
				f.Close()
				if err != nil {
					respondErr(w, err)
					return
				}
				data[field] = stored
			}
		}
	} else {
		var req struct {
			TemplateID   string         `json:"templateId"`
			AssignmentID string         `json:"assignmentId"`
			Data         map[string]any `json:"data"`
		}
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		templateRaw, assignmentRaw, data = req.TemplateID, req.AssignmentID, req.Data
	}
	templateID, err := primitive.ObjectIDFromHex(templateRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid templateId")
		return
	}
	assignmentID, ok := optionalID(w, assignmentRaw, "assignmentId")
	if !ok {
		return
	}
	result, err := h.workflow.SaveDraft(r.Context(), actor, templateID, data, assignmentID)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *WorkflowHandler) Chain(w http.ResponseWriter, r *http.Request) {
	assignmentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "assignmentId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assignmentId")
		return
	}
	timeline, err := h.chain.Timeline(r.Context(), assignmentID)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"timeline": timeline})
}

func (h *WorkflowHandler) ChainBySubmission(w http.ResponseWriter, r *http.Request) {
	submissionID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "submissionId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid submissionId")
		return
	}
	timeline, err := h.chain.TimelineBySubmission(r.Context(), submissionID)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"timeline": timeline})
}
