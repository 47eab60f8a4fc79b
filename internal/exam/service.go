package exam

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campuslabs/examportal/internal/grading"
)

// EventSink receives domain events for the append-only log. Implemented by
// syncx.EventRepo; nil disables event recording.
type EventSink interface {
	Append(ctx context.Context, typ, key string, data any) error
}

// Service is the attempt state machine plus the exam-authoring operations.
// All timing decisions go through the policy functions; all terminal
// transitions go through Store.FinishAttempt.
type Service struct {
	store      Store
	grader     *grading.Grader
	events     EventSink
	now        func() time.Time
	lateWindow time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithLateWindow(d time.Duration) Option { return func(s *Service) { s.lateWindow = d } }
func WithEvents(sink EventSink) Option      { return func(s *Service) { s.events = sink } }

func NewService(store Store, grader *grading.Grader, opts ...Option) *Service {
	s := &Service{
		store:      store,
		grader:     grader,
		now:        time.Now,
		lateWindow: DefaultLateWindow,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, typ, key string, data any) {
	if s.events == nil {
		return
	}
	// the event log is an audit trail; a failed append never fails the operation
	_ = s.events.Append(ctx, typ, key, data)
}

// --- exam authoring ---

func (s *Service) CreateExam(ctx context.Context, e Exam) (Exam, error) {
	if strings.TrimSpace(e.Title) == "" {
		return Exam{}, invalidf("title is required")
	}
	if e.SubjectID == "" {
		return Exam{}, invalidf("subject_id is required")
	}
	if e.Department == "" || e.Semester < 1 || e.Semester > 8 {
		return Exam{}, invalidf("department and semester 1-8 are required")
	}
	if e.DurationMin <= 0 {
		return Exam{}, invalidf("duration_min must be positive")
	}
	if e.PassingScore < 0 {
		return Exam{}, invalidf("passing_score must not be negative")
	}
	if err := NormalizeWindow(&e, s.lateWindow); err != nil {
		return Exam{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Status = ExamDraft
	if err := s.store.PutExam(ctx, e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *Service) PublishExam(ctx context.Context, examID, actorID string) error {
	e, err := s.ownedExam(ctx, examID, actorID)
	if err != nil {
		return err
	}
	if e.Status != ExamDraft {
		return invalidf("only draft exams can be published")
	}
	qs, err := s.store.ExamQuestions(ctx, examID)
	if err != nil {
		return err
	}
	if len(qs) == 0 {
		return invalidf("exam has no questions")
	}
	return s.store.SetExamStatus(ctx, examID, ExamActive)
}

func (s *Service) CancelExam(ctx context.Context, examID, actorID string) error {
	e, err := s.ownedExam(ctx, examID, actorID)
	if err != nil {
		return err
	}
	if e.Status == ExamCompleted || e.Status == ExamCancelled {
		return invalidf("exam is already closed")
	}
	return s.store.SetExamStatus(ctx, examID, ExamCancelled)
}

func (s *Service) DeleteExam(ctx context.Context, examID, actorID string) error {
	if _, err := s.ownedExam(ctx, examID, actorID); err != nil {
		return err
	}
	return s.store.DeleteExam(ctx, examID)
}

func (s *Service) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	if strings.TrimSpace(q.Text) == "" {
		return Question{}, invalidf("text is required")
	}
	if q.Marks <= 0 {
		return Question{}, invalidf("marks must be positive")
	}
	key := strings.ToLower(strings.TrimSpace(q.Correct))
	switch q.Type {
	case QuestionMCQ:
		if key != "a" && key != "b" && key != "c" && key != "d" {
			return Question{}, invalidf("mcq correct_answer must be one of a-d")
		}
	case QuestionTrueFalse:
		if key != "t" && key != "f" {
			return Question{}, invalidf("tf correct_answer must be t or f")
		}
	default:
		return Question{}, invalidf("unknown question type %q", q.Type)
	}
	q.Correct = key
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if err := s.store.PutQuestion(ctx, q); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *Service) AttachQuestion(ctx context.Context, examID, questionID string, position int, actorID string) error {
	e, err := s.ownedExam(ctx, examID, actorID)
	if err != nil {
		return err
	}
	if e.Status != ExamDraft {
		return invalidf("questions can only be changed on draft exams")
	}
	if _, err := s.store.GetQuestion(ctx, questionID); err != nil {
		return err
	}
	return s.store.AttachQuestion(ctx, examID, questionID, position)
}

func (s *Service) DetachQuestion(ctx context.Context, examID, questionID, actorID string) error {
	e, err := s.ownedExam(ctx, examID, actorID)
	if err != nil {
		return err
	}
	if e.Status != ExamDraft {
		return invalidf("questions can only be changed on draft exams")
	}
	return s.store.DetachQuestion(ctx, examID, questionID)
}

// ownedExam loads the exam and enforces creator ownership. An empty actorID
// bypasses the check (admin paths).
func (s *Service) ownedExam(ctx context.Context, examID, actorID string) (Exam, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return Exam{}, err
	}
	if actorID != "" && e.CreatedBy != actorID {
		return Exam{}, ErrForbidden
	}
	return e, nil
}

// --- attempt state machine ---

type RequestMeta struct {
	RemoteAddr string
	UserAgent  string
}

type StartOutput struct {
	Attempt          Attempt `json:"attempt"`
	RemainingSeconds int     `json:"remaining_seconds"`
}

// StartAttempt gates on eligibility, then availability, then get-or-creates
// the attempt. Starting twice while the attempt is open returns the same
// attempt; a terminal prior attempt fails with ErrAlreadyCompleted.
func (s *Service) StartAttempt(ctx context.Context, studentID, examID string, meta RequestMeta) (StartOutput, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return StartOutput{}, err
	}
	prof, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return StartOutput{}, err
	}
	if !Eligible(prof, e) {
		return StartOutput{}, ErrNotEligible
	}
	now := s.now()
	if e.Status != ExamActive || !Available(e, now) {
		return StartOutput{}, ErrExamUnavailable
	}

	a, created, err := s.store.GetOrCreateAttempt(ctx, Attempt{
		ID:         uuid.NewString(),
		ExamID:     examID,
		StudentID:  studentID,
		Status:     AttemptInProgress,
		StartedAt:  now,
		Answers:    map[string]string{},
		RemoteAddr: meta.RemoteAddr,
		UserAgent:  meta.UserAgent,
	})
	if err != nil {
		return StartOutput{}, err
	}
	if !created && a.Status.Terminal() {
		return StartOutput{}, ErrAlreadyCompleted
	}
	if created {
		s.emit(ctx, "attempt_started", a.ID, a)
	}
	return StartOutput{
		Attempt:          a,
		RemainingSeconds: int(Remaining(e, a, now).Seconds()),
	}, nil
}

func (s *Service) RemainingTime(ctx context.Context, attemptID string) (int, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	e, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return 0, err
	}
	return int(Remaining(e, a, s.now()).Seconds()), nil
}

type SubmitOutput struct {
	Obtained int  `json:"obtained"`
	Total    int  `json:"total"`
	Passed   bool `json:"passed"`
	IsLate   bool `json:"is_late"`
}

// Submit grades the answers and settles the attempt and its result in one
// transaction. A submission inside (end_time, late_end] is accepted and
// flagged late; past late_end it is refused outright.
func (s *Service) Submit(ctx context.Context, attemptID string, answers map[string]string) (SubmitOutput, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return SubmitOutput{}, err
	}
	if a.Status.Terminal() {
		return SubmitOutput{}, ErrAlreadyCompleted
	}
	e, err := s.store.GetExam(ctx, a.ExamID)
	if err != nil {
		return SubmitOutput{}, err
	}
	now := s.now()
	if e.Status != ExamActive || !Available(e, now) {
		return SubmitOutput{}, ErrExamUnavailable
	}

	qs, err := s.store.ExamQuestions(ctx, a.ExamID)
	if err != nil {
		return SubmitOutput{}, err
	}
	if answers == nil {
		answers = map[string]string{}
	}
	sum := s.grader.Grade(gradingQs(qs), answers, e.PassingScore)

	a.Status = AttemptSubmitted
	a.EndedAt = &now
	a.IsLate = Late(e, now)
	a.Answers = answers

	res := Result{
		ID:          uuid.NewString(),
		ExamID:      a.ExamID,
		StudentID:   a.StudentID,
		AttemptID:   a.ID,
		Obtained:    sum.Obtained,
		Total:       sum.Total,
		Passed:      sum.Passed,
		IsLate:      a.IsLate,
		SubmittedAt: now,
	}
	if err := s.store.FinishAttempt(ctx, a, &res); err != nil {
		return SubmitOutput{}, err
	}
	s.emit(ctx, "attempt_submitted", a.ID, res)
	return SubmitOutput{Obtained: sum.Obtained, Total: sum.Total, Passed: sum.Passed, IsLate: a.IsLate}, nil
}

// Abandon closes a still-open attempt without creating a result. Used by
// cleanup paths for expired attempts.
func (s *Service) Abandon(ctx context.Context, attemptID string) error {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return ErrAlreadyCompleted
	}
	now := s.now()
	a.Status = AttemptAbandoned
	a.EndedAt = &now
	if err := s.store.FinishAttempt(ctx, a, nil); err != nil {
		return err
	}
	s.emit(ctx, "attempt_abandoned", a.ID, a)
	return nil
}

// GradePreview grades an answer sheet against an exam without touching any
// attempt state.
func (s *Service) GradePreview(ctx context.Context, examID string, answers map[string]string) (grading.Summary, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return grading.Summary{}, err
	}
	qs, err := s.store.ExamQuestions(ctx, examID)
	if err != nil {
		return grading.Summary{}, err
	}
	return s.grader.Grade(gradingQs(qs), answers, e.PassingScore), nil
}

func gradingQs(qs []Question) []grading.Q {
	out := make([]grading.Q, 0, len(qs))
	for _, q := range qs {
		out = append(out, grading.Q{ID: q.ID, Type: string(q.Type), AnswerKey: q.Correct, Marks: q.Marks})
	}
	return out
}
