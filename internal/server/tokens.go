// tokens.go - JWT issuance and verification for sessions and download
// capabilities.
//
// Two token kinds share one HS256 secret and are distinguished by a
// "purpose" claim: session tokens prove identity and role for their
// validity window, download tokens are short-lived capabilities bound
// to one file and one subject email.
package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	purposeSession  = "session"
	purposeDownload = "download"
)

// ErrTokenInvalid is the single error class surfaced for any token decode
// failure: bad signature, malformed payload, expired, or wrong purpose.
// The underlying cause is wrapped for logging and tests, but handlers must
// not branch on it and must answer with one generic outcome.
var ErrTokenInvalid = errors.New("invalid or expired token")

// TokenConfig is the process-wide signing configuration, loaded once at
// startup and immutable thereafter.
type TokenConfig struct {
	Secret      string
	SessionTTL  time.Duration // default 30m
	DownloadTTL time.Duration // default 5m; a capability should be valid
	// just long enough to be followed
}

func (c TokenConfig) sessionTTL() time.Duration {
	if c.SessionTTL <= 0 {
		return 30 * time.Minute
	}
	return c.SessionTTL
}

func (c TokenConfig) downloadTTL() time.Duration {
	if c.DownloadTTL <= 0 {
		return 5 * time.Minute
	}
	return c.DownloadTTL
}

// Codec signs and verifies tokens. Issuance and decoding are pure functions
// over input + secret + clock, safe for arbitrary concurrent use.
type Codec struct {
	cfg TokenConfig
	now func() time.Time
}

func NewCodec(cfg TokenConfig) *Codec {
	return &Codec{cfg: cfg, now: time.Now}
}

type sessionClaims struct {
	Role    string `json:"role"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// downloadClaims is the capability payload. The claim names are "email" and
// "file_id" on both the issue and decode side.
type downloadClaims struct {
	Email   string `json:"email"`
	FileID  int64  `json:"file_id"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// SessionPayload is the verified content of a session token.
type SessionPayload struct {
	Email string
	Role  string
}

// DownloadPayload is the verified content of a download capability. It
// caches identity and target only; the subject's role and verification
// status must be re-checked against the live user record at redemption.
type DownloadPayload struct {
	FileID int64
	Email  string
}

// IssueSessionToken returns a signed session token for the given subject.
func (c *Codec) IssueSessionToken(email, role string) (string, error) {
	now := c.now()
	claims := sessionClaims{
		Role:    role,
		Purpose: purposeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.sessionTTL())),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(c.cfg.Secret))
}

// IssueDownloadToken returns a signed download capability bound to
// (fileID, email).
func (c *Codec) IssueDownloadToken(fileID int64, email string) (string, error) {
	now := c.now()
	claims := downloadClaims{
		Email:   email,
		FileID:  fileID,
		Purpose: purposeDownload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.downloadTTL())),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(c.cfg.Secret))
}

// DecodeSession verifies a session token and returns its payload.
func (c *Codec) DecodeSession(token string) (SessionPayload, error) {
	claims := &sessionClaims{}
	if err := c.parse(token, claims); err != nil {
		return SessionPayload{}, err
	}
	if claims.Purpose != purposeSession || claims.Subject == "" || claims.Role == "" {
		return SessionPayload{}, fmt.Errorf("%w: not a session token", ErrTokenInvalid)
	}
	return SessionPayload{Email: claims.Subject, Role: claims.Role}, nil
}

// DecodeDownload verifies a download capability and returns its payload.
func (c *Codec) DecodeDownload(token string) (DownloadPayload, error) {
	claims := &downloadClaims{}
	if err := c.parse(token, claims); err != nil {
		return DownloadPayload{}, err
	}
	if claims.Purpose != purposeDownload || claims.Email == "" || claims.FileID == 0 {
		return DownloadPayload{}, fmt.Errorf("%w: not a download token", ErrTokenInvalid)
	}
	return DownloadPayload{FileID: claims.FileID, Email: claims.Email}, nil
}

func (c *Codec) parse(token string, claims jwt.Claims) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return []byte(c.cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
