package exam

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore mirrors the SQL store's contracts for offline/dev use and
// tests. The mutex stands in for the uniqueness constraints.
type MemoryStore struct {
	mu           sync.RWMutex
	exams        map[string]Exam
	questions    map[string]Question
	examQs       map[string]map[string]int // examID -> questionID -> position
	students     map[string]StudentProfile
	attempts     map[string]Attempt
	attemptByKey map[string]string // examID|studentID -> attemptID
	results      map[string]Result // examID|studentID -> result
}

func NewInMemoryStore() *MemoryStore {
	return &MemoryStore{
		exams:        map[string]Exam{},
		questions:    map[string]Question{},
		examQs:       map[string]map[string]int{},
		students:     map[string]StudentProfile{},
		attempts:     map[string]Attempt{},
		attemptByKey: map[string]string{},
		results:      map[string]Result{},
	}
}

func attemptKey(examID, studentID string) string { return examID + "|" + studentID }

func (m *MemoryStore) PutExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[e.ID] = e
	return nil
}

func (m *MemoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrExamNotFound
	}
	return e, nil
}

func (m *MemoryStore) SetExamStatus(_ context.Context, id string, status ExamStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[id]
	if !ok {
		return ErrExamNotFound
	}
	e.Status = status
	m.exams[id] = e
	return nil
}

func (m *MemoryStore) DeleteExam(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[id]; !ok {
		return ErrExamNotFound
	}
	for _, a := range m.attempts {
		if a.ExamID == id {
			return ErrExamHasAttempts
		}
	}
	delete(m.exams, id)
	delete(m.examQs, id)
	return nil
}

func (m *MemoryStore) ListExams(_ context.Context, opts ListOpts) ([]ExamSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var prof StudentProfile
	if opts.ViewerRole == "student" {
		prof = m.students[opts.ViewerID]
	}
	out := []ExamSummary{}
	for _, e := range m.exams {
		switch opts.ViewerRole {
		case "teacher":
			if e.CreatedBy != opts.ViewerID {
				continue
			}
		case "student":
			if e.Status != ExamActive || e.Department != prof.Department || e.Semester != prof.Semester {
				continue
			}
		}
		if opts.Q != "" && !strings.Contains(strings.ToLower(e.Title), strings.ToLower(opts.Q)) {
			continue
		}
		es := ExamSummary{
			ID: e.ID, Title: e.Title, SubjectID: e.SubjectID, Department: e.Department,
			Semester: e.Semester, Status: e.Status,
			StartTime: e.StartTime, EndTime: e.EndTime, LateEnd: e.LateEnd,
		}
		for qid := range m.examQs[e.ID] {
			es.QuestionCount++
			es.TotalMarks += m.questions[qid].Marks
		}
		out = append(out, es)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (m *MemoryStore) PutQuestion(_ context.Context, q Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
	return nil
}

func (m *MemoryStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, ErrQuestionNotFound
	}
	return q, nil
}

func (m *MemoryStore) ListQuestions(_ context.Context, subjectID string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Question{}
	for _, q := range m.questions {
		if q.SubjectID == subjectID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) AttachQuestion(_ context.Context, examID, questionID string, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[questionID]; !ok {
		return ErrQuestionNotFound
	}
	if _, ok := m.exams[examID]; !ok {
		return ErrExamNotFound
	}
	if m.examQs[examID] == nil {
		m.examQs[examID] = map[string]int{}
	}
	m.examQs[examID][questionID] = position
	return nil
}

func (m *MemoryStore) DetachQuestion(_ context.Context, examID, questionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.examQs[examID][questionID]; !ok {
		return ErrQuestionNotFound
	}
	delete(m.examQs[examID], questionID)
	return nil
}

func (m *MemoryStore) ExamQuestions(_ context.Context, examID string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type qp struct {
		q   Question
		pos int
	}
	qs := []qp{}
	for qid, pos := range m.examQs[examID] {
		qs = append(qs, qp{m.questions[qid], pos})
	}
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].pos != qs[j].pos {
			return qs[i].pos < qs[j].pos
		}
		return qs[i].q.ID < qs[j].q.ID
	})
	out := make([]Question, 0, len(qs))
	for _, e := range qs {
		out = append(out, e.q)
	}
	return out, nil
}

func (m *MemoryStore) PutStudent(p StudentProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[p.UserID] = p
}

func (m *MemoryStore) GetStudent(_ context.Context, userID string) (StudentProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.students[userID]
	if !ok {
		return StudentProfile{}, ErrStudentNotFound
	}
	return p, nil
}

func (m *MemoryStore) CountStudents(_ context.Context, department string, semester int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.students {
		if p.Department == department && p.Semester == semester {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetOrCreateAttempt(_ context.Context, a Attempt) (Attempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attemptKey(a.ExamID, a.StudentID)
	if id, ok := m.attemptByKey[key]; ok {
		return m.attempts[id], false, nil
	}
	if a.Answers == nil {
		a.Answers = map[string]string{}
	}
	m.attempts[a.ID] = a
	m.attemptByKey[key] = a.ID
	return a, true, nil
}

func (m *MemoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, nil
}

func (m *MemoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Attempt{}
	for _, a := range m.attempts {
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		if opts.StudentID != "" && a.StudentID != opts.StudentID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (m *MemoryStore) FinishAttempt(_ context.Context, a Attempt, res *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return ErrAttemptNotFound
	}
	if cur.Status.Terminal() {
		return ErrAlreadyCompleted
	}
	if res != nil {
		key := attemptKey(res.ExamID, res.StudentID)
		if _, dup := m.results[key]; dup {
			return ErrAlreadyCompleted
		}
		m.results[key] = *res
	}
	m.attempts[a.ID] = a
	return nil
}

func (m *MemoryStore) GetResult(_ context.Context, examID, studentID string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[attemptKey(examID, studentID)]
	if !ok {
		return Result{}, ErrAttemptNotFound
	}
	return r, nil
}

func (m *MemoryStore) ListResults(_ context.Context, opts ResultListOpts) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Result{}
	for _, r := range m.results {
		if opts.ExamID != "" && r.ExamID != opts.ExamID {
			continue
		}
		if opts.StudentID != "" && r.StudentID != opts.StudentID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}
