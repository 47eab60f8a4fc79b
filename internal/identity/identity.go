// Package identity decodes the college's role-coded user identifiers and
// owns account registration. IDs are validated and decoded exactly once, at
// registration; every later consumer reads the stored role and profile rows
// instead of re-parsing the username.
package identity

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// ID formats:
//
//	admin001     admin
//	0mp23cs001   teacher, computer science
//	3mp23is042   student, information science, semester 3
var idPattern = regexp.MustCompile(`^(admin\d{3}|[0-8]mp23(cg|cs|is|ml|ds)\d{3})$`)

var Departments = map[string]string{
	"cg": "Computer Science Design",
	"cs": "Computer Science Engineering",
	"is": "Information Science Engineering",
	"ml": "Artificial Intelligence & Machine Learning",
	"ds": "Artificial Intelligence & Data Science",
}

var ErrBadID = errors.New("invalid college id")

// Decoded is the tagged result of decoding a college ID.
type Decoded struct {
	Role       Role
	Department string // code, empty for admin
	Semester   int    // students only
}

// Decode validates a college ID and extracts role, department and semester.
func Decode(username string) (Decoded, error) {
	u := strings.ToLower(strings.TrimSpace(username))
	if !idPattern.MatchString(u) {
		return Decoded{}, fmt.Errorf("%w: %q", ErrBadID, username)
	}
	if strings.HasPrefix(u, "admin") {
		return Decoded{Role: RoleAdmin}, nil
	}
	dept := u[5:7]
	if u[0] == '0' {
		return Decoded{Role: RoleTeacher, Department: dept}, nil
	}
	sem, err := strconv.Atoi(u[0:1])
	if err != nil || sem < 1 || sem > 8 {
		return Decoded{}, fmt.Errorf("%w: %q", ErrBadID, username)
	}
	return Decoded{Role: RoleStudent, Department: dept, Semester: sem}, nil
}
