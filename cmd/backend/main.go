package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"docshare/internal/db"
	"docshare/internal/server"
)

func main() {
	addr := getenvDefault("DOCSHARE_ADDR", ":8080")

	build := server.BuildInfo{
		Version: getenvDefault("DOCSHARE_VERSION", "dev"),
		Commit:  getenvDefault("DOCSHARE_COMMIT", "unknown"),
	}

	tokens := server.TokenConfig{
		Secret:      os.Getenv("DOCSHARE_JWT_SECRET"),
		SessionTTL:  getenvDuration("DOCSHARE_SESSION_TTL", 30*time.Minute),
		DownloadTTL: getenvDuration("DOCSHARE_DOWNLOAD_TTL", 5*time.Minute),
	}

	// Refuse to start without a signing secret.
	if tokens.Secret == "" {
		log.Printf("service=backend msg=%q", "missing DOCSHARE_JWT_SECRET")
		os.Exit(1)
	}

	dbConn, err := server.OpenDB(os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "db_connect_failed", err)
		os.Exit(1)
	}
	defer func() { _ = dbConn.Close() }()

	log.Printf("service=backend msg=%q", "running_migrations")
	if err := db.RunMigrations(dbConn); err != nil {
		log.Printf("service=backend msg=%q err=%v", "migration_failed", err)
		os.Exit(1)
	}
	log.Printf("service=backend msg=%q", "migrations_complete")

	blobs, err := server.NewMinioBlobStore(server.MinioConfig{
		Endpoint:  os.Getenv("DOCSHARE_S3_ENDPOINT"),
		AccessKey: os.Getenv("DOCSHARE_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("DOCSHARE_S3_SECRET_KEY"),
		Bucket:    os.Getenv("DOCSHARE_BUCKET"),
	})
	if err != nil {
		log.Printf("service=backend msg=%q err=%v", "minio_connect_failed", err)
		os.Exit(1)
	}

	emailSvc := server.NewEmailService(server.EmailConfig{
		SMTPHost:     os.Getenv("DOCSHARE_SMTP_HOST"),
		SMTPPort:     os.Getenv("DOCSHARE_SMTP_PORT"),
		SMTPUser:     os.Getenv("DOCSHARE_SMTP_USER"),
		SMTPPassword: os.Getenv("DOCSHARE_SMTP_PASSWORD"),
		FromEmail:    os.Getenv("DOCSHARE_FROM_EMAIL"),
		Enabled:      os.Getenv("DOCSHARE_EMAIL_ENABLED") == "true",
	})

	cfg := server.Config{
		Addr:           addr,
		BaseURL:        getenvDefault("DOCSHARE_BASE_URL", "http://localhost:8080"),
		MaxUploadBytes: getenvInt64("DOCSHARE_MAX_UPLOAD_BYTES", 0),
		Build:          build,
		Tokens:         tokens,
	}

	srv := server.New(cfg,
		dbConn,
		server.NewUserStore(dbConn),
		server.NewFileStore(dbConn),
		blobs,
		emailSvc,
	)

	// Run the HTTP server in the background so we can listen for OS
	// signals while it serves.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=backend msg=%q addr=%s version=%s commit=%s",
			"starting", addr, build.Version, build.Commit)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("service=backend msg=%q signal=%s", "shutting_down", sig.String())
		// 5 seconds to drain in-flight requests.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=backend msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=backend msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=backend msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("service=backend msg=%q key=%s value=%q", "bad_duration_using_default", key, v)
		return def
	}
	return d
}

func getenvInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("service=backend msg=%q key=%s value=%q", "bad_int_using_default", key, v)
		return def
	}
	return n
}
