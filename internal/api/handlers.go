package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Pudxe/todolist/internal/db"
)

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	username := strings.TrimSpace(input.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if len(input.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	account, err := s.db.CreateAccount(username, hash)
	if err != nil {
		if errors.Is(err, db.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	token, err := s.auth.GenerateToken(account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":   token,
		"account": account,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.authLimiter.allow(ip) {
		writeError(w, http.StatusTooManyRequests, "too many attempts, try again later")
		return
	}

	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.db.GetAccountByUsername(strings.TrimSpace(input.Username))
	if err != nil || !CheckPassword(account.PasswordHash, input.Password) {
		// Same reply for unknown user and wrong password
		s.authLimiter.record(ip)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.authLimiter.reset(ip)

	token, err := s.auth.GenerateToken(account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"account": account,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	account, err := s.db.GetAccount(accountIDFrom(r))
	if err != nil {
		writeDBError(w, err, "account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// handleBotCode issues a one-time verification code the caller sends to the
// bot chat to link it to this account.
func (s *Server) handleBotCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.db.IssueVerificationCode(accountIDFrom(r), db.DefaultCodeTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue code")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"code":      code.Code,
		"expiresAt": code.ExpiresAt,
	})
}
