package http

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/cms485-trainer/internal/progress"
	"github.com/mind-engage/cms485-trainer/internal/rbac"
	"github.com/mind-engage/cms485-trainer/internal/trainer"
)

func StartStageHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		if err := svc.StartStage(r.Context(), id, chi.URLParam(r, "stageID")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, svc.Progress(r.Context(), id))
	}
}

// completeReq carries a result graded on the client (card quiz, final test).
type completeReq struct {
	Score   int           `json:"score" validate:"min=0,max=100"`
	Correct *int          `json:"correct" validate:"omitempty,min=0"`
	Total   *int          `json:"total" validate:"omitempty,min=0"`
	Passed  bool          `json:"passed"`
	Meta    progress.Meta `json:"meta"`
}

func CompleteStageHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		var req completeReq
		if !decode(w, r, &req) {
			return
		}
		err := svc.CompleteStage(r.Context(), id, chi.URLParam(r, "stageID"), progress.Completion{
			Score:   req.Score,
			Correct: req.Correct,
			Total:   req.Total,
			Passed:  req.Passed,
			Meta:    req.Meta,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, svc.Progress(r.Context(), id))
	}
}

func ProgressHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, svc.Progress(r.Context(), id))
	}
}

func ResetProgressHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		if err := svc.ResetProgress(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdminResetProgressHandler resets another learner's progress.
func AdminResetProgressHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "learnerID")
		if err := svc.ResetProgress(r.Context(), target); err != nil {
			writeError(w, err)
			return
		}
		log.Printf("admin %s reset progress of %s", rbac.SubjectFromContext(r.Context()), target)
		w.WriteHeader(http.StatusNoContent)
	}
}

func CompletionHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, svc.Completion(r.Context(), id))
	}
}

// ReportHandler starts delivery and answers before the channels finish.
func ReportHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, name, ok := learner(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusAccepted, svc.Report(r.Context(), id, name))
	}
}

func LastReportHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		res, found := svc.LastReport(id)
		if !found {
			http.Error(w, "no report delivered yet", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
