// Package httpchi mounts the gradebook passback endpoints on a chi router.
package httpchi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mind-engage/cms485-trainer/pkg/lti-ags-gradebook/gradebook"
)

type API struct {
	Syncer *gradebook.Syncer
	// Learner resolves the authenticated learner for a request.
	Learner func(r *http.Request) string
	// Score returns the learner's current overall course score (0-100).
	Score func(ctx context.Context, learnerID string) (int, error)
}

func (a *API) Routes(r chi.Router) {
	r.Post("/lti/gradebook/launch", a.postLaunch)
	r.Post("/lti/gradebook/resync", a.postResync)
	r.Get("/lti/gradebook/status", a.getStatus)
}

type launchReq struct {
	Issuer         string   `json:"issuer"`
	DeploymentID   string   `json:"deployment_id"`
	ContextID      string   `json:"context_id"`
	ResourceLinkID string   `json:"resource_link_id"`
	PlatformSub    string   `json:"platform_sub"`
	LineItemsURL   string   `json:"lineitems_url"`
	Scopes         []string `json:"scopes,omitempty"`
}

func (a *API) postLaunch(w http.ResponseWriter, r *http.Request) {
	learnerID := a.Learner(r)
	if learnerID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req launchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	l := gradebook.Launch{
		LearnerID: learnerID, PlatformIssuer: req.Issuer, DeploymentID: req.DeploymentID,
		ContextID: req.ContextID, ResourceLinkID: req.ResourceLinkID,
		PlatformSub: req.PlatformSub, LineItemsURL: req.LineItemsURL, Scopes: req.Scopes,
	}
	if err := a.Syncer.RecordLaunch(r.Context(), l); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := a.Syncer.EnsureLineItem(r.Context(), l); err != nil {
		// launch is kept; the line item is retried on the next sync
		log.Printf("gradebook: ensure line item for %s: %v", learnerID, err)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func (a *API) postResync(w http.ResponseWriter, r *http.Request) {
	learnerID := a.Learner(r)
	if learnerID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	score, err := a.Score(r.Context(), learnerID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := a.Syncer.SyncCompletion(r.Context(), learnerID, float64(score)); err != nil {
		if errors.Is(err, gradebook.ErrNoLaunch) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "score": score})
}

func (a *API) getStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.Syncer.Status(r.Context(), a.Learner(r))
	if err != nil {
		http.Error(w, "no sync recorded", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
