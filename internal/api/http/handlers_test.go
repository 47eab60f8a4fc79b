package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	authmw "github.com/campuslabs/examportal/internal/auth/middleware"
	"github.com/campuslabs/examportal/internal/exam"
	"github.com/campuslabs/examportal/internal/grading"
	"github.com/campuslabs/examportal/internal/rbac"
)

type env struct {
	store *exam.MemoryStore
	svc   *exam.Service
	exam  exam.Exam
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := exam.NewInMemoryStore()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	e := exam.Exam{
		ID: "ex1", Title: "OS Midterm", SubjectID: "sub1",
		Department: "cs", Semester: 3,
		DurationMin: 60, PassingScore: 2,
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		LateEnd:   start.Add(50 * time.Hour),
		Status:    exam.ExamActive,
		CreatedBy: "tea1",
	}
	ctx := context.Background()
	if err := store.PutExam(ctx, e); err != nil {
		t.Fatal(err)
	}
	q := exam.Question{ID: "q1", SubjectID: "sub1", Type: exam.QuestionMCQ, Text: "q1", Correct: "a", Marks: 2}
	if err := store.PutQuestion(ctx, q); err != nil {
		t.Fatal(err)
	}
	if err := store.AttachQuestion(ctx, "ex1", "q1", 0); err != nil {
		t.Fatal(err)
	}
	store.PutStudent(exam.StudentProfile{UserID: "stu1", Department: "cs", Semester: 3})

	svc := exam.NewService(store, grading.NewGrader(),
		exam.WithClock(func() time.Time { return start.Add(30 * time.Minute) }),
	)
	return &env{store: store, svc: svc, exam: e}
}

// as stamps subject and role into the request the way JWTMiddleware does.
func as(r *http.Request, sub, role string) *http.Request {
	ctx := authmw.WithSubject(r.Context(), sub)
	ctx = rbac.WithRole(ctx, role)
	return r.WithContext(ctx)
}

func router(e *env) chi.Router {
	r := chi.NewRouter()
	r.Post("/attempts", StartAttemptHandler(e.svc))
	r.Get("/attempts/{attemptID}", GetAttemptHandler(e.store))
	r.Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(e.svc, e.store))
	r.Get("/exams/{examID}", GetExamHandler(e.store))
	r.Delete("/exams/{examID}", DeleteExamHandler(e.svc))
	r.Get("/exams/{examID}/result", MyResultHandler(e.store))
	return r
}

func TestStartAndSubmitFlow(t *testing.T) {
	e := newEnv(t)
	r := router(e)

	req := as(httptest.NewRequest("POST", "/attempts", strings.NewReader(`{"exam_id":"ex1"}`)), "stu1", "student")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}
	var started exam.StartOutput
	if err := json.NewDecoder(rec.Body).Decode(&started); err != nil {
		t.Fatal(err)
	}
	if started.Attempt.ExamID != "ex1" || started.RemainingSeconds <= 0 {
		t.Fatalf("start output = %+v", started)
	}

	req = as(httptest.NewRequest("POST", "/attempts/"+started.Attempt.ID+"/submit",
		strings.NewReader(`{"answers":{"q1":"a"}}`)), "stu1", "student")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
	var out exam.SubmitOutput
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Obtained != 2 || !out.Passed || out.IsLate {
		t.Fatalf("submit output = %+v", out)
	}

	// result is now readable by the student
	req = as(httptest.NewRequest("GET", "/exams/ex1/result", nil), "stu1", "student")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d", rec.Code)
	}
}

func TestSubmitTwiceConflict(t *testing.T) {
	e := newEnv(t)
	r := router(e)

	req := as(httptest.NewRequest("POST", "/attempts", strings.NewReader(`{"exam_id":"ex1"}`)), "stu1", "student")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var started exam.StartOutput
	if err := json.NewDecoder(rec.Body).Decode(&started); err != nil {
		t.Fatal(err)
	}

	for i, want := range []int{http.StatusOK, http.StatusConflict} {
		req = as(httptest.NewRequest("POST", "/attempts/"+started.Attempt.ID+"/submit",
			strings.NewReader(`{"answers":{}}`)), "stu1", "student")
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("submit #%d status = %d, want %d", i+1, rec.Code, want)
		}
	}
}

func TestStartIneligibleForbidden(t *testing.T) {
	e := newEnv(t)
	e.store.PutStudent(exam.StudentProfile{UserID: "stu2", Department: "is", Semester: 3})
	r := router(e)

	req := as(httptest.NewRequest("POST", "/attempts", strings.NewReader(`{"exam_id":"ex1"}`)), "stu2", "student")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	var body errBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "not_eligible" {
		t.Fatalf("error kind = %q, want not_eligible", body.Error)
	}
}

func TestGetAttemptOwnership(t *testing.T) {
	e := newEnv(t)
	r := router(e)

	req := as(httptest.NewRequest("POST", "/attempts", strings.NewReader(`{"exam_id":"ex1"}`)), "stu1", "student")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var started exam.StartOutput
	if err := json.NewDecoder(rec.Body).Decode(&started); err != nil {
		t.Fatal(err)
	}

	// another student is refused, the owner and a teacher are not
	tests := []struct {
		sub, role string
		want      int
	}{
		{"stu9", "student", http.StatusForbidden},
		{"stu1", "student", http.StatusOK},
		{"tea1", "teacher", http.StatusOK},
	}
	for _, tc := range tests {
		req = as(httptest.NewRequest("GET", "/attempts/"+started.Attempt.ID, nil), tc.sub, tc.role)
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s/%s: status = %d, want %d", tc.role, tc.sub, rec.Code, tc.want)
		}
	}
}

func TestGetExamHidesAnswerKeys(t *testing.T) {
	e := newEnv(t)
	r := router(e)

	read := func(sub, role string) examDetail {
		req := as(httptest.NewRequest("GET", "/exams/ex1", nil), sub, role)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var d examDetail
		if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
			t.Fatal(err)
		}
		return d
	}

	if d := read("stu1", "student"); d.Questions[0].Correct != "" {
		t.Fatal("answer key leaked to student")
	}
	if d := read("tea1", "teacher"); d.Questions[0].Correct != "a" {
		t.Fatal("answer key missing for teacher")
	}
}

func TestDeleteExamStatuses(t *testing.T) {
	e := newEnv(t)
	r := router(e)

	// a foreign teacher is refused, attempts block deletion, the owner succeeds
	req := as(httptest.NewRequest("DELETE", "/exams/ex1", nil), "tea9", "teacher")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign teacher status = %d, want 403", rec.Code)
	}

	startReq := as(httptest.NewRequest("POST", "/attempts", strings.NewReader(`{"exam_id":"ex1"}`)), "stu1", "student")
	r.ServeHTTP(httptest.NewRecorder(), startReq)

	req = as(httptest.NewRequest("DELETE", "/exams/ex1", nil), "tea1", "teacher")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete with attempts status = %d, want 409", rec.Code)
	}
}

func TestMissingExamNotFound(t *testing.T) {
	e := newEnv(t)
	r := router(e)

	req := as(httptest.NewRequest("GET", "/exams/nope", nil), "tea1", "teacher")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
