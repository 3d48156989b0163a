// Package http holds the trainer's JSON handlers. Routes are mounted in
// cmd/gateway.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mind-engage/cms485-trainer/internal/kvstore"
	"github.com/mind-engage/cms485-trainer/internal/progress"
	"github.com/mind-engage/cms485-trainer/internal/rbac"
	"github.com/mind-engage/cms485-trainer/internal/trainer"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, trainer.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, trainer.ErrIncomplete):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, trainer.ErrInvalidPlacement), errors.Is(err, progress.ErrUnknownStage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, kvstore.ErrOverCapacity):
		http.Error(w, "progress storage full", http.StatusInsufficientStorage)
	default:
		log.Printf("api: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// decode reads and validates a JSON body. An empty body decodes to the
// zero value.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// learner returns the caller's subject and display name.
func learner(w http.ResponseWriter, r *http.Request) (id, name string, ok bool) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok || p.Subject == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", "", false
	}
	return p.Subject, p.Name, true
}
