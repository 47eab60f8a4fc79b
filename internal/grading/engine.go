package grading

import "strings"

// Q is a minimal view of a question needed for grading.
type Q struct {
	ID        string
	Type      string // "mcq" | "tf"
	AnswerKey string // option label: a-d, or t/f
	Marks     int
}

// Summary is the outcome of grading one answer sheet against an exam's
// question set. Total is recomputed from the questions, never trusted from a
// cached exam field.
type Summary struct {
	Obtained int  `json:"obtained"`
	Total    int  `json:"total"`
	Correct  int  `json:"correct"`
	Answered int  `json:"answered"`
	Passed   bool `json:"passed"`
}

// Strategy decides whether a submitted answer matches a question's key.
type Strategy interface {
	Match(q Q, answer string) bool
}

// Grader routes by question type to the correct Strategy.
type Grader struct {
	strategies map[string]Strategy
}

// NewGrader installs the built-in strategies.
func NewGrader() *Grader {
	return &Grader{
		strategies: map[string]Strategy{
			"mcq": letterStrategy{},
			"tf":  letterStrategy{},
		},
	}
}

// Grade walks the exam's question set; the submission map is only consulted,
// so unanswered questions score zero and unknown question ids are ignored.
func (g *Grader) Grade(qs []Q, answers map[string]string, passingScore int) Summary {
	var sum Summary
	for _, q := range qs {
		sum.Total += q.Marks
		ans, ok := answers[q.ID]
		if !ok || strings.TrimSpace(ans) == "" {
			continue
		}
		sum.Answered++
		s, ok := g.strategies[q.Type]
		if !ok {
			continue
		}
		if s.Match(q, ans) {
			sum.Correct++
			sum.Obtained += q.Marks
		}
	}
	sum.Passed = sum.Obtained >= passingScore
	return sum
}

// Match reports whether a single answer is correct, using the strategy for
// the question's type. Used by question-level analytics.
func (g *Grader) Match(q Q, answer string) bool {
	s, ok := g.strategies[q.Type]
	if !ok {
		return false
	}
	return s.Match(q, answer)
}

// letterStrategy compares option labels case-insensitively.
type letterStrategy struct{}

func (letterStrategy) Match(q Q, answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.AnswerKey))
}
