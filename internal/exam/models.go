package exam

import "time"

type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamActive    ExamStatus = "active"
	ExamCompleted ExamStatus = "completed"
	ExamCancelled ExamStatus = "cancelled"
)

type AttemptStatus string

const (
	AttemptStarted    AttemptStatus = "started"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// Terminal reports whether the status admits no further transitions.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptAbandoned
}

type Exam struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	SubjectID    string     `json:"subject_id"`
	Department   string     `json:"department"`
	Semester     int        `json:"semester"`
	DurationMin  int        `json:"duration_min"`
	PassingScore int        `json:"passing_score"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      time.Time  `json:"end_time"`
	LateEnd      time.Time  `json:"late_end"` // last instant a (late) submission is accepted
	Status       ExamStatus `json:"status"`
	CreatedBy    string     `json:"created_by"`
}

type QuestionType string

const (
	QuestionMCQ       QuestionType = "mcq"
	QuestionTrueFalse QuestionType = "tf"
)

// Question options are labeled a-d for MCQ; true/false answers use t/f.
type Question struct {
	ID        string       `json:"id"`
	SubjectID string       `json:"subject_id"`
	CreatedBy string       `json:"created_by"`
	Type      QuestionType `json:"qtype"`
	Text      string       `json:"text"`
	OptionA   string       `json:"option_a,omitempty"`
	OptionB   string       `json:"option_b,omitempty"`
	OptionC   string       `json:"option_c,omitempty"`
	OptionD   string       `json:"option_d,omitempty"`
	Correct   string       `json:"correct_answer,omitempty"`
	Marks     int          `json:"marks"`
}

type Attempt struct {
	ID        string            `json:"id"`
	ExamID    string            `json:"exam_id"`
	StudentID string            `json:"student_id"`
	Status    AttemptStatus     `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   *time.Time        `json:"ended_at,omitempty"`
	IsLate    bool              `json:"is_late"`
	Answers   map[string]string `json:"answers"` // questionID -> selected option label
	// Request metadata captured at start.
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

func (a Attempt) Open() bool { return !a.Status.Terminal() }

// Result is the immutable settled outcome of a submitted attempt.
type Result struct {
	ID          string    `json:"id"`
	ExamID      string    `json:"exam_id"`
	StudentID   string    `json:"student_id"`
	AttemptID   string    `json:"attempt_id"`
	Obtained    int       `json:"obtained"`
	Total       int       `json:"total"`
	Passed      bool      `json:"passed"`
	IsLate      bool      `json:"is_late"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// StudentProfile is the slice of roster data the attempt engine needs for
// eligibility checks. Owned by the identity layer.
type StudentProfile struct {
	UserID     string `json:"user_id"`
	Department string `json:"department"`
	Semester   int    `json:"semester"`
}

type ExamSummary struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	SubjectID     string     `json:"subject_id"`
	Department    string     `json:"department"`
	Semester      int        `json:"semester"`
	Status        ExamStatus `json:"status"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       time.Time  `json:"end_time"`
	LateEnd       time.Time  `json:"late_end"`
	QuestionCount int        `json:"question_count"`
	TotalMarks    int        `json:"total_marks"`
}
