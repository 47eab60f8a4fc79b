package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/campuslabs/examportal/internal/auth/middleware"
	"github.com/campuslabs/examportal/internal/exam"
	"github.com/campuslabs/examportal/internal/rbac"
)

// POST /attempts  { "exam_id": "..." }
// The student is the authenticated subject; starting twice while the attempt
// is open returns the same attempt.
func StartAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID string `json:"exam_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.ExamID == "" {
			http.Error(w, "exam_id required", http.StatusBadRequest)
			return
		}
		out, err := svc.StartAttempt(r.Context(), authmw.SubjectFromContext(r.Context()), req.ExamID, exam.RequestMeta{
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if !canViewAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /attempts/{attemptID}/remaining
func RemainingTimeHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secs, err := svc.RemainingTime(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"remaining_seconds": secs})
	}
}

// POST /attempts/{attemptID}/submit  { "answers": {"<questionID>": "a"} }
func SubmitAttemptHandler(svc *exam.Service, store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			Answers map[string]string `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := store.GetAttempt(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !canViewAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		out, err := svc.Submit(r.Context(), id, req.Answers)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /attempts/{attemptID}/abandon — teacher/admin cleanup path.
func AbandonAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Abandon(r.Context(), chi.URLParam(r, "attemptID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /attempts?exam_id=&student_id=&status=
func ListAttemptsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := exam.AttemptListOpts{
			ExamID:    r.URL.Query().Get("exam_id"),
			StudentID: r.URL.Query().Get("student_id"),
			Status:    exam.AttemptStatus(r.URL.Query().Get("status")),
			Limit:     parseIntDefault(r.URL.Query().Get("limit"), 100),
			Offset:    parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		// students only see their own attempts
		if rbac.RoleFromContext(r.Context()) == "student" {
			opts.StudentID = authmw.SubjectFromContext(r.Context())
		}
		list, err := store.ListAttempts(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /exams/{examID}/result — the caller's own settled result.
func MyResultHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := store.GetResult(r.Context(), chi.URLParam(r, "examID"), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /grade/preview  { "exam_id": "...", "answers": {...} }
func GradePreviewHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID  string            `json:"exam_id"`
			Answers map[string]string `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sum, err := svc.GradePreview(r.Context(), req.ExamID, req.Answers)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func canViewAttempt(r *http.Request, a exam.Attempt) bool {
	role := rbac.RoleFromContext(r.Context())
	if role == "teacher" || role == "admin" {
		return true
	}
	return a.StudentID == authmw.SubjectFromContext(r.Context())
}
