package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"time"
)

// BuildInfo identifies the running binary in health output and logs.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config is assembled once in main from the environment and passed down
// immutable.
type Config struct {
	Addr           string // e.g. ":8080"
	BaseURL        string // absolute prefix for download links
	MaxUploadBytes int64  // 0 = no limit
	Build          BuildInfo
	Tokens         TokenConfig
}

// Server wires the HTTP surface to the stores, the token codec, and the
// email service.
type Server struct {
	cfg   Config
	db    *sql.DB
	users UserStore
	files FileStore
	blobs BlobStore
	codec *Codec
	email *EmailService

	httpServer *http.Server
}

// New builds the route table and middleware chain. db may be nil in tests
// that use in-memory stores; only the health endpoints touch it directly.
func New(cfg Config, db *sql.DB, users UserStore, files FileStore, blobs BlobStore, email *EmailService) *Server {
	s := &Server{
		cfg:   cfg,
		db:    db,
		users: users,
		files: files,
		blobs: blobs,
		codec: NewCodec(cfg.Tokens),
		email: email,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /verify-email", s.handleVerifyEmail)
	mux.Handle("POST /upload-file", s.requireUser(http.HandlerFunc(s.handleUpload)))
	mux.Handle("GET /download-file/{file_id}", s.requireUser(http.HandlerFunc(s.handleDownloadLink)))
	mux.HandleFunc("GET /secure-download/{token}", s.handleSecureDownload)
	mux.Handle("GET /list-files", s.requireUser(http.HandlerFunc(s.handleListFiles)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// requestID -> logging -> security headers -> mux
	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
