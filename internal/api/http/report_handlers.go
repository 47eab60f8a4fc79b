package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campuslabs/examportal/internal/reports"
)

// GET /reports/performance
func PerformanceReportHandler(eng *reports.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := eng.Performance(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// GET /reports/attendance/{examID}
func AttendanceReportHandler(eng *reports.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := eng.Attendance(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// GET /reports/questions/{examID}
func QuestionAnalysisHandler(eng *reports.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := eng.Questions(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}
