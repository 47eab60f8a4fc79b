// Package reports derives performance, attendance and question-level
// analytics from settled results and attempt records. Reads are not
// transactionally tied to concurrent submissions: a report reflects results
// as of query time.
package reports

import (
	"context"
	"sort"

	"github.com/campuslabs/examportal/internal/exam"
	"github.com/campuslabs/examportal/internal/grading"
)

// Store is the slice of the exam store the reporting engine reads.
type Store interface {
	GetExam(ctx context.Context, id string) (exam.Exam, error)
	ExamQuestions(ctx context.Context, examID string) ([]exam.Question, error)
	ListResults(ctx context.Context, opts exam.ResultListOpts) ([]exam.Result, error)
	ListAttempts(ctx context.Context, opts exam.AttemptListOpts) ([]exam.Attempt, error)
	CountStudents(ctx context.Context, department string, semester int) (int, error)
}

type Engine struct {
	store  Store
	grader *grading.Grader
}

func NewEngine(store Store, grader *grading.Grader) *Engine {
	return &Engine{store: store, grader: grader}
}

type GradeDistribution struct {
	A int `json:"a"`
	B int `json:"b"`
	C int `json:"c"`
	D int `json:"d"`
	F int `json:"f"`
}

type PerformanceReport struct {
	TotalStudents     int               `json:"total_students"`
	TotalResults      int               `json:"total_results"`
	PassRate          float64           `json:"pass_rate"`
	AverageMark       float64           `json:"average_mark"`
	HighestMark       int               `json:"highest_mark"`
	LowestMark        int               `json:"lowest_mark"`
	GradeDistribution GradeDistribution `json:"grade_distribution"`
}

// Performance aggregates all settled results. Zero results yields an explicit
// zero-filled report, never a division by zero.
func (e *Engine) Performance(ctx context.Context) (PerformanceReport, error) {
	results, err := e.store.ListResults(ctx, exam.ResultListOpts{})
	if err != nil {
		return PerformanceReport{}, err
	}
	var rep PerformanceReport
	if len(results) == 0 {
		return rep, nil
	}

	students := map[string]struct{}{}
	passed := 0
	sum := 0
	rep.LowestMark = results[0].Obtained
	for _, r := range results {
		students[r.StudentID] = struct{}{}
		sum += r.Obtained
		if r.Passed {
			passed++
		}
		if r.Obtained > rep.HighestMark {
			rep.HighestMark = r.Obtained
		}
		if r.Obtained < rep.LowestMark {
			rep.LowestMark = r.Obtained
		}
		// buckets are percentage bands, so normalize before banding
		pct := 0.0
		if r.Total > 0 {
			pct = float64(r.Obtained) / float64(r.Total) * 100
		}
		switch {
		case pct >= 85:
			rep.GradeDistribution.A++
		case pct >= 70:
			rep.GradeDistribution.B++
		case pct >= 55:
			rep.GradeDistribution.C++
		case pct >= 35:
			rep.GradeDistribution.D++
		default:
			rep.GradeDistribution.F++
		}
	}
	rep.TotalStudents = len(students)
	rep.TotalResults = len(results)
	rep.PassRate = float64(passed) / float64(len(results)) * 100
	rep.AverageMark = float64(sum) / float64(len(results))
	return rep, nil
}

type AttendanceReport struct {
	ExamID          string  `json:"exam_id"`
	TotalRegistered int     `json:"total_registered"`
	Present         int     `json:"present"`
	Absent          int     `json:"absent"`
	AttendanceRate  float64 `json:"attendance_rate"`
	LateSubmissions int     `json:"late_submissions"`
}

// Attendance compares the exam's eligible roster against its results.
func (e *Engine) Attendance(ctx context.Context, examID string) (AttendanceReport, error) {
	ex, err := e.store.GetExam(ctx, examID)
	if err != nil {
		return AttendanceReport{}, err
	}
	registered, err := e.store.CountStudents(ctx, ex.Department, ex.Semester)
	if err != nil {
		return AttendanceReport{}, err
	}
	results, err := e.store.ListResults(ctx, exam.ResultListOpts{ExamID: examID})
	if err != nil {
		return AttendanceReport{}, err
	}

	rep := AttendanceReport{
		ExamID:          examID,
		TotalRegistered: registered,
		Present:         len(results),
	}
	rep.Absent = registered - rep.Present
	if registered > 0 {
		rep.AttendanceRate = float64(rep.Present) / float64(registered) * 100
	}
	for _, r := range results {
		if r.SubmittedAt.After(ex.EndTime) && !r.SubmittedAt.After(ex.LateEnd) {
			rep.LateSubmissions++
		}
	}
	return rep, nil
}

type AnswerCount struct {
	Answer string `json:"answer"`
	Count  int    `json:"count"`
}

type QuestionStats struct {
	QuestionID         string        `json:"question_id"`
	Answered           int           `json:"answered"`
	Correct            int           `json:"correct"`
	Accuracy           float64       `json:"accuracy"`
	CommonWrongAnswers []AnswerCount `json:"common_wrong_answers"`
}

type QuestionAnalysis struct {
	ExamID         string          `json:"exam_id"`
	TotalQuestions int             `json:"total_questions"`
	Questions      []QuestionStats `json:"questions"`
}

// Questions walks the stored answer maps of submitted attempts and computes
// per-question accuracy plus the three most frequent wrong answers.
func (e *Engine) Questions(ctx context.Context, examID string) (QuestionAnalysis, error) {
	qs, err := e.store.ExamQuestions(ctx, examID)
	if err != nil {
		return QuestionAnalysis{}, err
	}
	attempts, err := e.store.ListAttempts(ctx, exam.AttemptListOpts{
		ExamID: examID,
		Status: exam.AttemptSubmitted,
	})
	if err != nil {
		return QuestionAnalysis{}, err
	}

	out := QuestionAnalysis{ExamID: examID, TotalQuestions: len(qs)}
	for _, q := range qs {
		st := QuestionStats{QuestionID: q.ID}
		wrong := map[string]int{}
		gq := grading.Q{ID: q.ID, Type: string(q.Type), AnswerKey: q.Correct, Marks: q.Marks}
		for _, a := range attempts {
			ans, ok := a.Answers[q.ID]
			if !ok || ans == "" {
				continue
			}
			st.Answered++
			if e.grader.Match(gq, ans) {
				st.Correct++
			} else {
				wrong[ans]++
			}
		}
		if st.Answered > 0 {
			st.Accuracy = float64(st.Correct) / float64(st.Answered) * 100
		}
		st.CommonWrongAnswers = topAnswers(wrong, 3)
		out.Questions = append(out.Questions, st)
	}
	return out, nil
}

func topAnswers(counts map[string]int, n int) []AnswerCount {
	out := make([]AnswerCount, 0, len(counts))
	for ans, c := range counts {
		out = append(out, AnswerCount{Answer: ans, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Answer < out[j].Answer
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
