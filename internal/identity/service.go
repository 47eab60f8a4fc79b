package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Status   string `json:"status"`
}

var (
	ErrUsernameTaken  = errors.New("username taken")
	ErrBadCredentials = errors.New("bad credentials")
	ErrWeakPassword   = errors.New("password must be at least 6 characters")
)

type Service struct{ db *sql.DB }

func NewService(db *sql.DB) *Service { return &Service{db: db} }

// Register creates the user row and its student/teacher profile row in one
// transaction: either both exist afterwards or neither does.
func (s *Service) Register(ctx context.Context, username, password string) (User, error) {
	d, err := Decode(username)
	if err != nil {
		return User{}, err
	}
	if len(password) < 6 {
		return User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:       uuid.NewString(),
		Username: strings.ToLower(strings.TrimSpace(username)),
		Role:     d.Role,
		Status:   "active",
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO users (id,username,password_hash,role,status,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Username, string(hash), string(u.Role), u.Status, time.Now().Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}

	switch d.Role {
	case RoleStudent:
		_, err = tx.ExecContext(ctx, `INSERT INTO students (user_id,department,semester) VALUES ($1,$2,$3)`,
			u.ID, d.Department, d.Semester)
	case RoleTeacher:
		_, err = tx.ExecContext(ctx, `INSERT INTO teachers (user_id,department) VALUES ($1,$2)`,
			u.ID, d.Department)
	}
	if err != nil {
		return User{}, err
	}
	return u, tx.Commit()
}

// Authenticate verifies the password hash and returns the stored user.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,username,password_hash,role,status FROM users WHERE username=$1`,
		strings.ToLower(strings.TrimSpace(username)))
	var u User
	var hash string
	if err := row.Scan(&u.ID, &u.Username, &hash, &u.Role, &u.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrBadCredentials
		}
		return User{}, err
	}
	if u.Status != "active" {
		return User{}, ErrBadCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrBadCredentials
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
