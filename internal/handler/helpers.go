package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labdesk/labdesk/internal/apperr"
)

func readJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondErr maps the error taxonomy to its HTTP status.
func respondErr(w http.ResponseWriter, err error) {
	writeError(w, apperr.StatusOf(err), err.Error())
}
