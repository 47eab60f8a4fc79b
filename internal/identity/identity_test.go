package identity

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		id       string
		role     Role
		dept     string
		semester int
		wantErr  bool
	}{
		{id: "admin001", role: RoleAdmin},
		{id: "0mp23cs001", role: RoleTeacher, dept: "cs"},
		{id: "3mp23is042", role: RoleStudent, dept: "is", semester: 3},
		{id: "8mp23ds999", role: RoleStudent, dept: "ds", semester: 8},
		{id: "1MP23CG001", role: RoleStudent, dept: "cg", semester: 1}, // case-normalized
		{id: "9mp23cs001", wantErr: true},                              // no semester 9
		{id: "3mp23xx001", wantErr: true},                              // unknown department
		{id: "admin01", wantErr: true},
		{id: "3mp24cs001", wantErr: true}, // wrong batch code
		{id: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			d, err := Decode(tc.id)
			if tc.wantErr {
				if !errors.Is(err, ErrBadID) {
					t.Fatalf("expected ErrBadID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if d.Role != tc.role || d.Department != tc.dept || d.Semester != tc.semester {
				t.Fatalf("Decode(%q) = %+v", tc.id, d)
			}
		})
	}
}

func TestDepartmentsCoverIDCodes(t *testing.T) {
	for _, code := range []string{"cg", "cs", "is", "ml", "ds"} {
		if _, ok := Departments[code]; !ok {
			t.Fatalf("department %q missing from registry", code)
		}
	}
}
