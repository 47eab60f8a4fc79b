package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/campuslabs/examportal/internal/exam"
	"github.com/campuslabs/examportal/internal/identity"
)

type errBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain error kinds to HTTP statuses. Every failure is a
// structured body, never a partial success.
func writeError(w http.ResponseWriter, err error) {
	kind, code := "internal", http.StatusInternalServerError
	switch {
	case errors.Is(err, exam.ErrValidation) || errors.Is(err, identity.ErrBadID) || errors.Is(err, identity.ErrWeakPassword):
		kind, code = "validation", http.StatusBadRequest
	case errors.Is(err, exam.ErrNotEligible):
		kind, code = "not_eligible", http.StatusForbidden
	case errors.Is(err, exam.ErrExamUnavailable):
		kind, code = "exam_unavailable", http.StatusForbidden
	case errors.Is(err, exam.ErrForbidden):
		kind, code = "forbidden", http.StatusForbidden
	case errors.Is(err, exam.ErrAlreadyCompleted):
		kind, code = "already_completed", http.StatusConflict
	case errors.Is(err, exam.ErrExamHasAttempts):
		kind, code = "conflict", http.StatusConflict
	case errors.Is(err, exam.ErrExamNotFound):
		kind, code = "exam_not_found", http.StatusNotFound
	case errors.Is(err, exam.ErrAttemptNotFound):
		kind, code = "attempt_not_found", http.StatusNotFound
	case errors.Is(err, exam.ErrQuestionNotFound):
		kind, code = "question_not_found", http.StatusNotFound
	case errors.Is(err, exam.ErrStudentNotFound):
		kind, code = "student_not_found", http.StatusNotFound
	case errors.Is(err, identity.ErrUsernameTaken):
		kind, code = "username_taken", http.StatusConflict
	case errors.Is(err, identity.ErrBadCredentials):
		kind, code = "bad_credentials", http.StatusUnauthorized
	}
	writeJSON(w, code, errBody{Error: kind, Message: err.Error()})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
