package exam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/campuslabs/examportal/internal/grading"
)

type fakeEvents struct {
	mu    sync.Mutex
	types []string
}

func (f *fakeEvents) Append(_ context.Context, typ, _ string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, typ)
	return nil
}

type fixture struct {
	store  *MemoryStore
	svc    *Service
	events *fakeEvents
	now    time.Time
	exam   Exam
}

// newFixture seeds an active exam (cs, semester 3) with two questions worth
// 2 and 3 marks, passing score 3, and one eligible student "stu1".
func newFixture(t *testing.T) *fixture {
	t.Helper()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	f := &fixture{
		store:  NewInMemoryStore(),
		events: &fakeEvents{},
		now:    start.Add(10 * time.Minute),
	}
	f.exam = Exam{
		ID: "ex1", Title: "Data Structures Midterm", SubjectID: "sub1",
		Department: "cs", Semester: 3,
		DurationMin: 60, PassingScore: 3,
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		LateEnd:   start.Add(2 * time.Hour).Add(48 * time.Hour),
		Status:    ExamActive,
		CreatedBy: "tea1",
	}
	ctx := context.Background()
	if err := f.store.PutExam(ctx, f.exam); err != nil {
		t.Fatal(err)
	}
	qs := []Question{
		{ID: "q1", SubjectID: "sub1", Type: QuestionMCQ, Text: "q1", Correct: "a", Marks: 2},
		{ID: "q2", SubjectID: "sub1", Type: QuestionMCQ, Text: "q2", Correct: "b", Marks: 3},
	}
	for i, q := range qs {
		if err := f.store.PutQuestion(ctx, q); err != nil {
			t.Fatal(err)
		}
		if err := f.store.AttachQuestion(ctx, "ex1", q.ID, i); err != nil {
			t.Fatal(err)
		}
	}
	f.store.PutStudent(StudentProfile{UserID: "stu1", Department: "cs", Semester: 3})
	f.store.PutStudent(StudentProfile{UserID: "stu2", Department: "is", Semester: 3})

	f.svc = NewService(f.store, grading.NewGrader(),
		WithClock(func() time.Time { return f.now }),
		WithEvents(f.events),
	)
	return f
}

func TestStartAttemptIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if first.Attempt.ID != second.Attempt.ID {
		t.Fatalf("expected same attempt, got %s and %s", first.Attempt.ID, second.Attempt.ID)
	}
	attempts, _ := f.store.ListAttempts(ctx, AttemptListOpts{ExamID: "ex1"})
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt row, got %d", len(attempts))
	}
	if got := len(f.events.types); got != 1 {
		t.Fatalf("expected one attempt_started event, got %d", got)
	}
}

func TestStartAttemptEligibility(t *testing.T) {
	f := newFixture(t)

	// stu2 is in department "is"; the exam is scoped to "cs"
	_, err := f.svc.StartAttempt(context.Background(), "stu2", "ex1", RequestMeta{})
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestStartAttemptUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.now = f.exam.StartTime.Add(-time.Minute)
	if _, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{}); !errors.Is(err, ErrExamUnavailable) {
		t.Fatalf("before start: expected ErrExamUnavailable, got %v", err)
	}

	f.now = f.exam.LateEnd.Add(time.Minute)
	if _, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{}); !errors.Is(err, ErrExamUnavailable) {
		t.Fatalf("after late end: expected ErrExamUnavailable, got %v", err)
	}
}

func TestStartAttemptDraftExam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.store.SetExamStatus(ctx, "ex1", ExamDraft); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{}); !errors.Is(err, ErrExamUnavailable) {
		t.Fatalf("expected ErrExamUnavailable for draft exam, got %v", err)
	}
}

func TestSubmitGradesAndSettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := f.svc.Submit(ctx, started.Attempt.ID, map[string]string{"q1": "a", "q2": "c"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Obtained != 2 || out.Total != 5 || out.Passed || out.IsLate {
		t.Fatalf("Submit = %+v, want obtained=2 total=5 failed on-time", out)
	}

	res, err := f.store.GetResult(ctx, "ex1", "stu1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Obtained != 2 || res.Total != 5 || res.Passed {
		t.Fatalf("Result = %+v", res)
	}
	a, _ := f.store.GetAttempt(ctx, started.Attempt.ID)
	if a.Status != AttemptSubmitted || a.EndedAt == nil {
		t.Fatalf("attempt not settled: %+v", a)
	}
}

func TestSubmitTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(ctx, started.Attempt.ID, map[string]string{"q1": "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(ctx, started.Attempt.ID, map[string]string{"q1": "a"}); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	results, _ := f.store.ListResults(ctx, ResultListOpts{ExamID: "ex1"})
	if len(results) != 1 {
		t.Fatalf("expected exactly one result, got %d", len(results))
	}
}

func TestStartAfterTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(ctx, started.Attempt.ID, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{}); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestLateWindowBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{})
	if err != nil {
		t.Fatal(err)
	}

	// one hour past end_time: accepted and flagged late
	f.now = f.exam.EndTime.Add(time.Hour)
	out, err := f.svc.Submit(ctx, started.Attempt.ID, map[string]string{"q1": "a", "q2": "b"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.IsLate {
		t.Fatal("submission in grace window should be late")
	}
	res, _ := f.store.GetResult(ctx, "ex1", "stu1")
	if !res.IsLate {
		t.Fatal("result should carry the late flag")
	}
}

func TestSubmitPastLateEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{})
	if err != nil {
		t.Fatal(err)
	}
	f.now = f.exam.LateEnd.Add(24 * time.Hour)
	if _, err := f.svc.Submit(ctx, started.Attempt.ID, nil); !errors.Is(err, ErrExamUnavailable) {
		t.Fatalf("expected ErrExamUnavailable, got %v", err)
	}
}

func TestSubmitAtExactEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{})
	if err != nil {
		t.Fatal(err)
	}
	f.now = f.exam.EndTime
	out, err := f.svc.Submit(ctx, started.Attempt.ID, map[string]string{"q1": "a"})
	if err != nil {
		t.Fatal(err)
	}
	if out.IsLate {
		t.Fatal("submission at exactly end_time must not be late")
	}
}

func TestAbandon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Abandon(ctx, started.Attempt.ID); err != nil {
		t.Fatal(err)
	}
	a, _ := f.store.GetAttempt(ctx, started.Attempt.ID)
	if a.Status != AttemptAbandoned || a.EndedAt == nil {
		t.Fatalf("attempt = %+v, want abandoned", a)
	}
	// no result for abandoned attempts
	if _, err := f.store.GetResult(ctx, "ex1", "stu1"); !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("expected no result, got %v", err)
	}
	if err := f.svc.Abandon(ctx, started.Attempt.ID); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("second abandon: expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestDeleteExamRefusedWithAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{}); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteExam(ctx, "ex1", "tea1"); !errors.Is(err, ErrExamHasAttempts) {
		t.Fatalf("expected ErrExamHasAttempts, got %v", err)
	}
}

func TestDeleteExamOwnership(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.DeleteExam(context.Background(), "ex1", "someone-else"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestPublishFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.svc.CreateExam(ctx, Exam{
		Title: "Algorithms Final", SubjectID: "sub1", Department: "cs", Semester: 3,
		DurationMin: 90, PassingScore: 5,
		StartTime: f.now.Add(time.Hour),
		EndTime:   f.now.Add(3 * time.Hour),
		CreatedBy: "tea1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != ExamDraft {
		t.Fatalf("new exam status = %s, want draft", e.Status)
	}
	if !e.LateEnd.Equal(e.EndTime.Add(DefaultLateWindow)) {
		t.Fatalf("LateEnd = %v, want end+default window", e.LateEnd)
	}

	// publishing an exam without questions is refused
	if err := f.svc.PublishExam(ctx, e.ID, "tea1"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := f.svc.AttachQuestion(ctx, e.ID, "q1", 0, "tea1"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.PublishExam(ctx, e.ID, "tea1"); err != nil {
		t.Fatal(err)
	}
	got, _ := f.store.GetExam(ctx, e.ID)
	if got.Status != ExamActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
}

func TestGradePreview(t *testing.T) {
	f := newFixture(t)

	sum, err := f.svc.GradePreview(context.Background(), "ex1", map[string]string{"q1": "a", "q2": "c"})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Obtained != 2 || sum.Total != 5 || sum.Passed {
		t.Fatalf("preview = %+v, want obtained=2 total=5 fail", sum)
	}
	// preview never creates attempts
	attempts, _ := f.store.ListAttempts(context.Background(), AttemptListOpts{ExamID: "ex1"})
	if len(attempts) != 0 {
		t.Fatalf("preview created %d attempts", len(attempts))
	}
}

func TestRemainingTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.StartAttempt(ctx, "stu1", "ex1", RequestMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if started.RemainingSeconds != 3600 {
		t.Fatalf("RemainingSeconds = %d, want 3600", started.RemainingSeconds)
	}
	f.now = f.now.Add(50 * time.Minute)
	secs, err := f.svc.RemainingTime(ctx, started.Attempt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if secs != 600 {
		t.Fatalf("RemainingTime = %d, want 600", secs)
	}
}
