// auth.go - Signup, login, email verification, and bearer-session middleware.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// validatePassword checks password strength requirements.
func validatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters long"
	}
	if len(password) > 128 {
		return false, "Password must be less than 128 characters"
	}
	hasNumber := regexp.MustCompile(`[0-9]`).MatchString(password)
	hasLetter := regexp.MustCompile(`[a-zA-Z]`).MatchString(password)
	if !hasNumber || !hasLetter {
		return false, "Password must contain both letters and numbers"
	}
	return true, ""
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type signupResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// handleSignup creates a new account with is_verified=false and sends a
// verification link by email.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Password = strings.TrimSpace(req.Password)
	req.Role = strings.TrimSpace(req.Role)

	if !validateEmail(req.Email) {
		http.Error(w, "invalid email address", http.StatusBadRequest)
		return
	}
	if !ValidRole(req.Role) {
		http.Error(w, "role must be ops or client", http.StatusBadRequest)
		return
	}
	if valid, msg := validatePassword(req.Password); !valid {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if _, err := s.users.FindByEmail(r.Context(), req.Email); err == nil {
		http.Error(w, "user already exists", http.StatusConflict)
		return
	} else if !errors.Is(err, ErrNotFound) {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=signup_lookup_failed err=%v", rid, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		http.Error(w, "failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := s.users.Create(r.Context(), req.Email, hash, req.Role)
	if err != nil {
		// A concurrent signup can win the race between the existence
		// check above and the insert; the unique constraint reports it.
		if errors.Is(err, ErrAlreadyExists) {
			http.Error(w, "user already exists", http.StatusConflict)
			return
		}
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=signup_insert_failed err=%v", rid, err)
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	// Verification is a GET the user can follow from the email; a send
	// failure must not fail signup since the account already exists.
	if err := s.email.SendVerificationEmail(user.Email, s.cfg.BaseURL); err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=verification_email_failed err=%v", rid, err)
	}

	writeJSON(w, http.StatusCreated, signupResponse{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// handleLogin checks credentials and issues a session token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := s.users.FindByEmail(r.Context(), req.Email)
	if err != nil || !verifyPassword(req.Password, user.PasswordHash) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.codec.IssueSessionToken(user.Email, user.Role)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=issue_session_failed err=%v", rid, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// handleVerifyEmail flips the verification flag for the given account.
// The flip is one-way and idempotent.
func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(strings.ToLower(r.URL.Query().Get("email")))
	if email == "" {
		http.Error(w, "missing email", http.StatusBadRequest)
		return
	}

	if err := s.users.SetVerified(r.Context(), email); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=verify_email_failed err=%v", rid, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully",
	})
}

type userCtxKey struct{}

func withUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

func userFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userCtxKey{}).(User)
	return u, ok
}

// requireUser authenticates the bearer session token and resolves it to a
// live user record, so downstream role checks always see current state.
// All token failures collapse to one generic 401.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		payload, err := s.codec.DecodeSession(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			rid := RequestIDFromContext(r.Context())
			log.Printf("rid=%s msg=session_rejected err=%v", rid, err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := s.users.FindByEmail(r.Context(), payload.Email)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}
