package exam

import "context"

type ListOpts struct {
	Q          string
	Limit      int
	Offset     int
	ViewerID   string
	ViewerRole string // "student" | "teacher" | "admin"
}

type AttemptListOpts struct {
	ExamID    string
	StudentID string
	Status    AttemptStatus
	Limit     int
	Offset    int
}

type ResultListOpts struct {
	ExamID    string
	StudentID string
	Limit     int
	Offset    int
}

// Store is the persistence boundary of the attempt engine. Implementations
// must back GetOrCreateAttempt and FinishAttempt with the (exam, student)
// uniqueness constraints so concurrent starts/submits race safely.
type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)
	SetExamStatus(ctx context.Context, id string, status ExamStatus) error
	// DeleteExam refuses with ErrExamHasAttempts once any attempt exists.
	DeleteExam(ctx context.Context, id string) error
	ListExams(ctx context.Context, opts ListOpts) ([]ExamSummary, error)

	PutQuestion(ctx context.Context, q Question) error
	GetQuestion(ctx context.Context, id string) (Question, error)
	ListQuestions(ctx context.Context, subjectID string) ([]Question, error)
	AttachQuestion(ctx context.Context, examID, questionID string, position int) error
	DetachQuestion(ctx context.Context, examID, questionID string) error
	// ExamQuestions returns the exam's question set in attachment order,
	// answer keys included.
	ExamQuestions(ctx context.Context, examID string) ([]Question, error)

	GetStudent(ctx context.Context, userID string) (StudentProfile, error)
	CountStudents(ctx context.Context, department string, semester int) (int, error)

	// GetOrCreateAttempt atomically creates the attempt or returns the
	// existing row for (exam, student). The bool reports creation.
	GetOrCreateAttempt(ctx context.Context, a Attempt) (Attempt, bool, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	// FinishAttempt applies a terminal transition and, when res is non-nil,
	// creates the result in the same transaction. A prior terminal state or a
	// duplicate result surfaces as ErrAlreadyCompleted.
	FinishAttempt(ctx context.Context, a Attempt, res *Result) error

	GetResult(ctx context.Context, examID, studentID string) (Result, error)
	ListResults(ctx context.Context, opts ResultListOpts) ([]Result, error)
}
