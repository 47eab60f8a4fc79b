package exam

import (
	"testing"
	"time"
)

func testExam(start, end, late time.Time) Exam {
	return Exam{
		ID:          "ex1",
		Department:  "cs",
		Semester:    3,
		DurationMin: 60,
		StartTime:   start,
		EndTime:     end,
		LateEnd:     late,
		Status:      ExamActive,
	}
}

func TestAvailable(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	late := end.Add(48 * time.Hour)
	e := testExam(start, end, late)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before start", start.Add(-time.Second), false},
		{"at start", start, true},
		{"during", start.Add(time.Hour), true},
		{"at end", end, true},
		{"in grace window", end.Add(time.Hour), true},
		{"at late end", late, true},
		{"after late end", late.Add(time.Second), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Available(e, tc.now); got != tc.want {
				t.Fatalf("Available(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestLate(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	late := end.Add(48 * time.Hour)
	e := testExam(start, end, late)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"during exam", start.Add(time.Hour), false},
		{"exactly at end", end, false},
		{"one hour past end", end.Add(time.Hour), true},
		{"at late end", late, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Late(e, tc.at); got != tc.want {
				t.Fatalf("Late(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestEligible(t *testing.T) {
	e := testExam(time.Now(), time.Now().Add(time.Hour), time.Now().Add(49*time.Hour))

	tests := []struct {
		name string
		prof StudentProfile
		want bool
	}{
		{"match", StudentProfile{Department: "cs", Semester: 3}, true},
		{"wrong department", StudentProfile{Department: "is", Semester: 3}, false},
		{"wrong semester", StudentProfile{Department: "cs", Semester: 4}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Eligible(tc.prof, e); got != tc.want {
				t.Fatalf("Eligible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	e := testExam(start, start.Add(2*time.Hour), start.Add(50*time.Hour))
	a := Attempt{StartedAt: start}

	if got := Remaining(e, a, start.Add(15*time.Minute)); got != 45*time.Minute {
		t.Fatalf("Remaining = %v, want 45m", got)
	}
	// clamps at zero after the duration elapses
	if got := Remaining(e, a, start.Add(2*time.Hour)); got != 0 {
		t.Fatalf("Remaining after deadline = %v, want 0", got)
	}
}

func TestNormalizeWindow(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	t.Run("defaults late end", func(t *testing.T) {
		e := Exam{StartTime: start, EndTime: end}
		if err := NormalizeWindow(&e, 48*time.Hour); err != nil {
			t.Fatal(err)
		}
		if !e.LateEnd.Equal(end.Add(48 * time.Hour)) {
			t.Fatalf("LateEnd = %v, want end+48h", e.LateEnd)
		}
	})
	t.Run("keeps explicit late end", func(t *testing.T) {
		explicit := end.Add(5 * 24 * time.Hour)
		e := Exam{StartTime: start, EndTime: end, LateEnd: explicit}
		if err := NormalizeWindow(&e, 48*time.Hour); err != nil {
			t.Fatal(err)
		}
		if !e.LateEnd.Equal(explicit) {
			t.Fatalf("LateEnd = %v, want %v", e.LateEnd, explicit)
		}
	})
	t.Run("end before start", func(t *testing.T) {
		e := Exam{StartTime: end, EndTime: start}
		if err := NormalizeWindow(&e, 0); err == nil {
			t.Fatal("expected error")
		}
	})
	t.Run("late end before end", func(t *testing.T) {
		e := Exam{StartTime: start, EndTime: end, LateEnd: end.Add(-time.Minute)}
		if err := NormalizeWindow(&e, 0); err == nil {
			t.Fatal("expected error")
		}
	})
}
