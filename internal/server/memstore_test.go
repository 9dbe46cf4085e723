package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// In-memory store fakes used by the handler tests. They implement the same
// contracts as the Postgres and MinIO implementations, including ErrNotFound
// semantics.

type memUserStore struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byEmail: make(map[string]User)}
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *memUserStore) Create(_ context.Context, email, passwordHash, role string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[email]; ok {
		return User{}, ErrAlreadyExists
	}
	s.nextID++
	u := User{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	s.byEmail[email] = u
	return u, nil
}

func (s *memUserStore) SetVerified(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[email]
	if !ok {
		return ErrNotFound
	}
	u.IsVerified = true
	s.byEmail[email] = u
	return nil
}

type memFileStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]StoredFile
}

func newMemFileStore() *memFileStore {
	return &memFileStore{byID: make(map[int64]StoredFile)}
}

func (s *memFileStore) FindByID(_ context.Context, id int64) (StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.byID[id]
	if !ok {
		return StoredFile{}, ErrNotFound
	}
	return f, nil
}

func (s *memFileStore) Create(_ context.Context, filename, objectKey string, ownerID int64) (StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	f := StoredFile{
		ID:        s.nextID,
		Filename:  filename,
		ObjectKey: objectKey,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
	s.byID[f.ID] = f
	return f, nil
}

func (s *memFileStore) List(_ context.Context) ([]StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StoredFile, 0, len(s.byID))
	for id := int64(1); id <= s.nextID; id++ {
		if f, ok := s.byID[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// remove simulates a registry row deleted after link issuance.
func (s *memFileStore) remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte)}
}

func (s *memBlobStore) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		// Wrap like the MinIO implementation so callers see the same
		// error shape from both.
		return fmt.Errorf("put object: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

func (s *memBlobStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *memBlobStore) Ping(_ context.Context) error { return nil }

func (s *memBlobStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// testEnv bundles a server wired to in-memory stores.
type testEnv struct {
	srv   *Server
	users *memUserStore
	files *memFileStore
	blobs *memBlobStore
}

func newTestEnv() *testEnv {
	return newTestEnvWithLimit(0)
}

func newTestEnvWithLimit(maxUploadBytes int64) *testEnv {
	users := newMemUserStore()
	files := newMemFileStore()
	blobs := newMemBlobStore()

	cfg := Config{
		Addr:           ":0",
		BaseURL:        "http://localhost:8080",
		MaxUploadBytes: maxUploadBytes,
		Build:          BuildInfo{Version: "test"},
		Tokens:         TokenConfig{Secret: "test-secret"},
	}
	srv := New(cfg, nil, users, files, blobs, NewEmailService(EmailConfig{}))

	return &testEnv{srv: srv, users: users, files: files, blobs: blobs}
}
