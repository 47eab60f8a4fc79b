package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/campuslabs/examportal/internal/auth/middleware"
	"github.com/campuslabs/examportal/internal/exam"
	"github.com/campuslabs/examportal/internal/rbac"
)

// POST /exams
func CreateExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title        string    `json:"title"`
			SubjectID    string    `json:"subject_id"`
			Department   string    `json:"department"`
			Semester     int       `json:"semester"`
			DurationMin  int       `json:"duration_min"`
			PassingScore int       `json:"passing_score"`
			StartTime    time.Time `json:"start_time"`
			EndTime      time.Time `json:"end_time"`
			LateEnd      time.Time `json:"late_end,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		e, err := svc.CreateExam(r.Context(), exam.Exam{
			Title:        req.Title,
			SubjectID:    req.SubjectID,
			Department:   req.Department,
			Semester:     req.Semester,
			DurationMin:  req.DurationMin,
			PassingScore: req.PassingScore,
			StartTime:    req.StartTime,
			EndTime:      req.EndTime,
			LateEnd:      req.LateEnd,
			CreatedBy:    authmw.SubjectFromContext(r.Context()),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GET /exams
func ListExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListExams(r.Context(), exam.ListOpts{
			Q:          strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:      parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:     parseIntDefault(r.URL.Query().Get("offset"), 0),
			ViewerID:   authmw.SubjectFromContext(r.Context()),
			ViewerRole: rbac.RoleFromContext(r.Context()),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type examDetail struct {
	exam.Exam
	Questions []exam.Question `json:"questions"`
}

// GET /exams/{examID}
func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		e, err := store.GetExam(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		qs, err := store.ExamQuestions(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		// hide answer keys from students
		if rbac.RoleFromContext(r.Context()) == "student" {
			for i := range qs {
				qs[i].Correct = ""
			}
		}
		writeJSON(w, http.StatusOK, examDetail{Exam: e, Questions: qs})
	}
}

// POST /exams/{examID}/publish
func PublishExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.PublishExam(r.Context(), chi.URLParam(r, "examID"), actorID(r)); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(exam.ExamActive)})
	}
}

// POST /exams/{examID}/cancel
func CancelExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CancelExam(r.Context(), chi.URLParam(r, "examID"), actorID(r)); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(exam.ExamCancelled)})
	}
}

// DELETE /exams/{examID} — refused once attempts exist.
func DeleteExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteExam(r.Context(), chi.URLParam(r, "examID"), actorID(r)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// actorID is the ownership check input: admins bypass, teachers must own.
func actorID(r *http.Request) string {
	if rbac.RoleFromContext(r.Context()) == "admin" {
		return ""
	}
	return authmw.SubjectFromContext(r.Context())
}
