package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/cms485-trainer/internal/trainer"
)

func ListCasesHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Cases())
	}
}

func GetCaseHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.Case(chi.URLParam(r, "caseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func GetExamHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := svc.Exam(chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func GetBoardHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		b, err := svc.Board(id, chi.URLParam(r, "caseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

type placeReq struct {
	ChipID string `json:"chip_id" validate:"required,max=100"`
}

func PlaceChipHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		var req placeReq
		if !decode(w, r, &req) {
			return
		}
		b, err := svc.Place(r.Context(), id, chi.URLParam(r, "caseID"), chi.URLParam(r, "boxID"), req.ChipID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func RemoveChipHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		b, err := svc.Remove(id, chi.URLParam(r, "caseID"), chi.URLParam(r, "boxID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func ResetBoardHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		b, err := svc.ResetBoard(id, chi.URLParam(r, "caseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

type submitCaseReq struct {
	LearnerName string `json:"learner_name" validate:"max=80"`
	PrizeID     string `json:"prize_id" validate:"max=64"`
}

func SubmitCaseHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, name, ok := learner(w, r)
		if !ok {
			return
		}
		var req submitCaseReq
		if !decode(w, r, &req) {
			return
		}
		if req.LearnerName == "" {
			req.LearnerName = name
		}
		res, err := svc.SubmitCase(r.Context(), id, chi.URLParam(r, "caseID"), trainer.SubmitOptions{
			LearnerName: req.LearnerName,
			PrizeID:     req.PrizeID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func SubmitExamHandler(svc *trainer.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _, ok := learner(w, r)
		if !ok {
			return
		}
		res, err := svc.SubmitExam(r.Context(), id, chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
