package exam

import "time"

// Availability and timing policy: pure functions of exam timing fields and a
// query instant. No side effects; the state machine consults these before
// every mutation.

// DefaultLateWindow is the grace period appended to end_time when an exam is
// created without an explicit late_end.
const DefaultLateWindow = 48 * time.Hour

// Available reports whether the instant falls inside the exam's attemptable
// window, including the late-submission grace period. Lifecycle status is
// checked separately by the state machine.
func Available(e Exam, now time.Time) bool {
	return !now.Before(e.StartTime) && !now.After(e.LateEnd)
}

// Late reports whether a submission instant lands in the grace window
// (end_time, late_end]. Instants past late_end must already have been refused
// by Available.
func Late(e Exam, at time.Time) bool {
	return at.After(e.EndTime) && !at.After(e.LateEnd)
}

// Eligible reports whether the student may interact with the exam at all:
// department and semester must both match.
func Eligible(s StudentProfile, e Exam) bool {
	return s.Department == e.Department && s.Semester == e.Semester
}

// Remaining is the countdown the client renders. It is advisory: enforcement
// happens at submit time through Available, so a submission after the local
// timer expired but inside the grace window is still accepted (marked late).
func Remaining(e Exam, a Attempt, now time.Time) time.Duration {
	deadline := a.StartedAt.Add(time.Duration(e.DurationMin) * time.Minute)
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// NormalizeWindow validates the exam's timing fields and defaults late_end
// when unset. Invariant on success: start_time <= end_time <= late_end.
func NormalizeWindow(e *Exam, lateWindow time.Duration) error {
	if e.StartTime.IsZero() || e.EndTime.IsZero() {
		return invalidf("start_time and end_time are required")
	}
	if e.EndTime.Before(e.StartTime) {
		return invalidf("end_time precedes start_time")
	}
	if lateWindow <= 0 {
		lateWindow = DefaultLateWindow
	}
	if e.LateEnd.IsZero() {
		e.LateEnd = e.EndTime.Add(lateWindow)
	}
	if e.LateEnd.Before(e.EndTime) {
		return invalidf("late_end precedes end_time")
	}
	return nil
}
