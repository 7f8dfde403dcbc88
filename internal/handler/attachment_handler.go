package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/labdesk/labdesk/internal/platform"
)

type AttachmentHandler struct {
	uploader platform.Uploader
}

func NewAttachmentHandler(uploader platform.Uploader) *AttachmentHandler {
	return &AttachmentHandler{uploader: uploader}
}

func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxDraftMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()
	stored, err := h.uploader.Upload(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		respondErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	stream, meta, err := h.uploader.Open(r.Context(), chi.URLParam(r, "fileId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}
	defer stream.Close()
	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(meta.Name))
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	io.Copy(w, stream)
}
