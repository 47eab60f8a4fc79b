package http

import (
	"encoding/json"
	"net/http"

	authmw "github.com/campuslabs/examportal/internal/auth/middleware"
	"github.com/campuslabs/examportal/internal/identity"
)

// POST /auth/register  { "username": "3mp23cs001", "password": "..." }
func RegisterHandler(ids *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := ids.Register(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(ids *identity.Service, auth *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := ids.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		tok, err := auth.IssueJWT(u.ID, string(u.Role))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": tok, "role": string(u.Role)})
	}
}
