package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO exams
		(id,title,subject_id,department,semester,duration_min,passing_score,start_time,end_time,late_end,status,created_by,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			title=EXCLUDED.title, subject_id=EXCLUDED.subject_id, department=EXCLUDED.department,
			semester=EXCLUDED.semester, duration_min=EXCLUDED.duration_min, passing_score=EXCLUDED.passing_score,
			start_time=EXCLUDED.start_time, end_time=EXCLUDED.end_time, late_end=EXCLUDED.late_end,
			status=EXCLUDED.status`,
		e.ID, e.Title, e.SubjectID, e.Department, e.Semester, e.DurationMin, e.PassingScore,
		e.StartTime.Unix(), e.EndTime.Unix(), e.LateEnd.Unix(), string(e.Status), e.CreatedBy, time.Now().Unix())
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,subject_id,department,semester,duration_min,passing_score,start_time,end_time,late_end,status,created_by
		FROM exams WHERE id=$1`, id)
	var e Exam
	var start, end, late int64
	var status string
	if err := row.Scan(&e.ID, &e.Title, &e.SubjectID, &e.Department, &e.Semester, &e.DurationMin, &e.PassingScore,
		&start, &end, &late, &status, &e.CreatedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrExamNotFound
		}
		return Exam{}, err
	}
	e.StartTime, e.EndTime, e.LateEnd = time.Unix(start, 0).UTC(), time.Unix(end, 0).UTC(), time.Unix(late, 0).UTC()
	e.Status = ExamStatus(status)
	return e, nil
}

func (s *SQLStore) SetExamStatus(ctx context.Context, id string, status ExamStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExamNotFound
	}
	return nil
}

func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts WHERE exam_id=$1`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return ErrExamHasAttempts
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExamNotFound
	}
	return tx.Commit()
}

func (s *SQLStore) ListExams(ctx context.Context, opts ListOpts) ([]ExamSummary, error) {
	q := `SELECT e.id, e.title, e.subject_id, e.department, e.semester, e.status,
			e.start_time, e.end_time, e.late_end,
			COUNT(q.id), COALESCE(SUM(q.marks),0)
		FROM exams e
		LEFT JOIN exam_questions eq ON eq.exam_id = e.id
		LEFT JOIN questions q ON q.id = eq.question_id`
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	switch opts.ViewerRole {
	case "teacher":
		where = append(where, "e.created_by = "+arg(opts.ViewerID))
	case "student":
		// students see active exams for their department+semester
		where = append(where, "e.status = 'active'")
		where = append(where,
			"e.department = (SELECT department FROM students WHERE user_id = "+arg(opts.ViewerID)+")")
		where = append(where,
			"e.semester = (SELECT semester FROM students WHERE user_id = "+arg(opts.ViewerID)+")")
	}
	if opts.Q != "" {
		where = append(where, "e.title LIKE "+arg("%"+opts.Q+"%"))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += ` GROUP BY e.id, e.title, e.subject_id, e.department, e.semester, e.status, e.start_time, e.end_time, e.late_end
		ORDER BY e.start_time DESC`
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	q += " LIMIT " + arg(limit) + " OFFSET " + arg(opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ExamSummary{}
	for rows.Next() {
		var es ExamSummary
		var start, end, late int64
		var status string
		if err := rows.Scan(&es.ID, &es.Title, &es.SubjectID, &es.Department, &es.Semester, &status,
			&start, &end, &late, &es.QuestionCount, &es.TotalMarks); err != nil {
			return nil, err
		}
		es.Status = ExamStatus(status)
		es.StartTime, es.EndTime, es.LateEnd = time.Unix(start, 0).UTC(), time.Unix(end, 0).UTC(), time.Unix(late, 0).UTC()
		out = append(out, es)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutQuestion(ctx context.Context, q Question) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO questions
		(id,subject_id,created_by,qtype,text,option_a,option_b,option_c,option_d,correct_answer,marks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			qtype=EXCLUDED.qtype, text=EXCLUDED.text,
			option_a=EXCLUDED.option_a, option_b=EXCLUDED.option_b,
			option_c=EXCLUDED.option_c, option_d=EXCLUDED.option_d,
			correct_answer=EXCLUDED.correct_answer, marks=EXCLUDED.marks`,
		q.ID, q.SubjectID, q.CreatedBy, string(q.Type), q.Text,
		q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.Correct, q.Marks)
	return err
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,subject_id,created_by,qtype,text,option_a,option_b,option_c,option_d,correct_answer,marks
		FROM questions WHERE id=$1`, id)
	return scanQuestion(row)
}

func (s *SQLStore) ListQuestions(ctx context.Context, subjectID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,subject_id,created_by,qtype,text,option_a,option_b,option_c,option_d,correct_answer,marks
		FROM questions WHERE subject_id=$1 ORDER BY id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func (s *SQLStore) AttachQuestion(ctx context.Context, examID, questionID string, position int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO exam_questions (exam_id,question_id,position)
		VALUES ($1,$2,$3)
		ON CONFLICT (exam_id,question_id) DO UPDATE SET position=EXCLUDED.position`,
		examID, questionID, position)
	if err != nil && isForeignKeyViolation(err) {
		return ErrQuestionNotFound
	}
	return err
}

func (s *SQLStore) DetachQuestion(ctx context.Context, examID, questionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exam_questions WHERE exam_id=$1 AND question_id=$2`, examID, questionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (s *SQLStore) ExamQuestions(ctx context.Context, examID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT q.id,q.subject_id,q.created_by,q.qtype,q.text,q.option_a,q.option_b,q.option_c,q.option_d,q.correct_answer,q.marks
		FROM exam_questions eq
		JOIN questions q ON q.id = eq.question_id
		WHERE eq.exam_id=$1 ORDER BY eq.position, q.id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectQuestions(rows)
}

func (s *SQLStore) GetStudent(ctx context.Context, userID string) (StudentProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id,department,semester FROM students WHERE user_id=$1`, userID)
	var p StudentProfile
	if err := row.Scan(&p.UserID, &p.Department, &p.Semester); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudentProfile{}, ErrStudentNotFound
		}
		return StudentProfile{}, err
	}
	return p, nil
}

func (s *SQLStore) CountStudents(ctx context.Context, department string, semester int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students WHERE department=$1 AND semester=$2`,
		department, semester).Scan(&n)
	return n, err
}

// GetOrCreateAttempt races on the (exam_id, student_id) unique constraint:
// the insert is a no-op when a row already exists, and the follow-up select
// returns whichever row won.
func (s *SQLStore) GetOrCreateAttempt(ctx context.Context, a Attempt) (Attempt, bool, error) {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return Attempt{}, false, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,exam_id,student_id,status,started_at,is_late,answers_json,remote_addr,user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (exam_id,student_id) DO NOTHING`,
		a.ID, a.ExamID, a.StudentID, string(a.Status), a.StartedAt.Unix(), a.IsLate, string(answers), a.RemoteAddr, a.UserAgent)
	if err != nil {
		return Attempt{}, false, err
	}
	created := false
	if n, _ := res.RowsAffected(); n > 0 {
		created = true
	}
	row := s.db.QueryRowContext(ctx, `SELECT id,exam_id,student_id,status,started_at,ended_at,is_late,answers_json,remote_addr,user_agent
		FROM attempts WHERE exam_id=$1 AND student_id=$2`, a.ExamID, a.StudentID)
	got, err := scanAttempt(row)
	if err != nil {
		return Attempt{}, false, err
	}
	return got, created, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,exam_id,student_id,status,started_at,ended_at,is_late,answers_json,remote_addr,user_agent
		FROM attempts WHERE id=$1`, id)
	return scanAttempt(row)
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT id,exam_id,student_id,status,started_at,ended_at,is_late,answers_json,remote_addr,user_agent FROM attempts`
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if opts.ExamID != "" {
		where = append(where, "exam_id = "+arg(opts.ExamID))
	}
	if opts.StudentID != "" {
		where = append(where, "student_id = "+arg(opts.StudentID))
	}
	if opts.Status != "" {
		where = append(where, "status = "+arg(string(opts.Status)))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY started_at DESC"
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT " + arg(limit) + " OFFSET " + arg(opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FinishAttempt applies a terminal transition. The attempt update and the
// result insert share one transaction: a crash cannot leave one without the
// other, and a concurrent submit loses the race cleanly as AlreadyCompleted.
func (s *SQLStore) FinishAttempt(ctx context.Context, a Attempt, res *Result) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var ended int64
	if a.EndedAt != nil {
		ended = a.EndedAt.Unix()
	}
	upd, err := tx.ExecContext(ctx, `UPDATE attempts
		SET status=$1, ended_at=$2, is_late=$3, answers_json=$4
		WHERE id=$5 AND status IN ('started','in_progress')`,
		string(a.Status), ended, a.IsLate, string(answers), a.ID)
	if err != nil {
		return err
	}
	if n, _ := upd.RowsAffected(); n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM attempts WHERE id=$1`, a.ID).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAttemptNotFound
			}
			return err
		}
		return ErrAlreadyCompleted
	}

	if res != nil {
		_, err = tx.ExecContext(ctx, `INSERT INTO results
			(id,exam_id,student_id,attempt_id,obtained,total,passed,is_late,submitted_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			res.ID, res.ExamID, res.StudentID, res.AttemptID,
			res.Obtained, res.Total, res.Passed, res.IsLate, res.SubmittedAt.Unix())
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyCompleted
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) GetResult(ctx context.Context, examID, studentID string) (Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,exam_id,student_id,attempt_id,obtained,total,passed,is_late,submitted_at
		FROM results WHERE exam_id=$1 AND student_id=$2`, examID, studentID)
	var r Result
	var at int64
	if err := row.Scan(&r.ID, &r.ExamID, &r.StudentID, &r.AttemptID, &r.Obtained, &r.Total, &r.Passed, &r.IsLate, &at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, ErrAttemptNotFound
		}
		return Result{}, err
	}
	r.SubmittedAt = time.Unix(at, 0).UTC()
	return r, nil
}

func (s *SQLStore) ListResults(ctx context.Context, opts ResultListOpts) ([]Result, error) {
	q := `SELECT id,exam_id,student_id,attempt_id,obtained,total,passed,is_late,submitted_at FROM results`
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}
	if opts.ExamID != "" {
		where = append(where, "exam_id = "+arg(opts.ExamID))
	}
	if opts.StudentID != "" {
		where = append(where, "student_id = "+arg(opts.StudentID))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY submitted_at DESC"
	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	q += " LIMIT " + arg(limit) + " OFFSET " + arg(opts.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Result{}
	for rows.Next() {
		var r Result
		var at int64
		if err := rows.Scan(&r.ID, &r.ExamID, &r.StudentID, &r.AttemptID, &r.Obtained, &r.Total, &r.Passed, &r.IsLate, &at); err != nil {
			return nil, err
		}
		r.SubmittedAt = time.Unix(at, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- scan helpers ---

type rowScanner interface{ Scan(dest ...any) error }

func scanQuestion(row rowScanner) (Question, error) {
	var q Question
	var qtype string
	var oa, ob, oc, od sql.NullString
	if err := row.Scan(&q.ID, &q.SubjectID, &q.CreatedBy, &qtype, &q.Text, &oa, &ob, &oc, &od, &q.Correct, &q.Marks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, ErrQuestionNotFound
		}
		return Question{}, err
	}
	q.Type = QuestionType(qtype)
	q.OptionA, q.OptionB, q.OptionC, q.OptionD = oa.String, ob.String, oc.String, od.String
	return q, nil
}

func collectQuestions(rows *sql.Rows) ([]Question, error) {
	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var status, answers string
	var started int64
	var ended sql.NullInt64
	if err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &status, &started, &ended, &a.IsLate, &answers, &a.RemoteAddr, &a.UserAgent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	a.Status = AttemptStatus(status)
	a.StartedAt = time.Unix(started, 0).UTC()
	if ended.Valid && ended.Int64 > 0 {
		t := time.Unix(ended.Int64, 0).UTC()
		a.EndedAt = &t
	}
	if err := json.Unmarshal([]byte(answers), &a.Answers); err != nil || a.Answers == nil {
		a.Answers = map[string]string{}
	}
	return a, nil
}

func placeholder(n int) string {
	// pgx and modernc sqlite both accept $N
	return "$" + strconv.Itoa(n)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key")
}
