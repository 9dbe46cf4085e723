package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

// requestLink walks the issuance half of the download flow and returns the
// capability URL path.
func requestLink(t *testing.T, env *testEnv, bearer string, fileID int64) string {
	t.Helper()

	rr := doJSON(t, env.srv.Handler(), http.MethodGet,
		"/download-file/"+strconv.FormatInt(fileID, 10), nil, bearer)
	if rr.Code != http.StatusOK {
		t.Fatalf("download-file: status %d: %s", rr.Code, rr.Body.String())
	}

	var resp downloadLinkResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode link response: %v", err)
	}
	if resp.Message != "success" {
		t.Fatalf("unexpected message %q", resp.Message)
	}

	i := strings.Index(resp.DownloadLink, "/secure-download/")
	if i < 0 {
		t.Fatalf("link %q does not embed a capability path", resp.DownloadLink)
	}
	return resp.DownloadLink[i:]
}

func redeem(t *testing.T, env *testEnv, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rr, req)
	return rr
}

// seedUpload signs up an ops user and uploads content, returning the file id.
func seedUpload(t *testing.T, env *testEnv, filename string, content []byte) int64 {
	t.Helper()
	token := signupAndLogin(t, env, "ops1@example.com", "password1", RoleOps)
	rr := doUpload(t, env, token, filename, content)
	if rr.Code != http.StatusOK {
		t.Fatalf("seed upload: status %d: %s", rr.Code, rr.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return resp.FileID
}

func verifiedClient(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	token := signupAndLogin(t, env, email, "password1", RoleClient)
	rr := doJSON(t, env.srv.Handler(), http.MethodGet, "/verify-email?email="+email, nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("verify-email: status %d", rr.Code)
	}
	return token
}

func TestDownloadFlowEndToEnd(t *testing.T) {
	env := newTestEnv()
	content := []byte("the original document bytes")
	fileID := seedUpload(t, env, "report.docx", content)

	clientToken := verifiedClient(t, env, "client1@example.com")
	path := requestLink(t, env, clientToken, fileID)

	rr := redeem(t, env, path)
	if rr.Code != http.StatusOK {
		t.Fatalf("redeem: status %d: %s", rr.Code, rr.Body.String())
	}

	got, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("downloaded bytes differ: got %q want %q", got, content)
	}

	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "report.docx") {
		t.Fatalf("Content-Disposition %q missing filename", cd)
	}
}

func TestDownloadLinkRequiresClientRole(t *testing.T) {
	env := newTestEnv()
	fileID := seedUpload(t, env, "report.docx", []byte("x"))

	opsToken := signupAndLogin(t, env, "ops2@example.com", "password1", RoleOps)
	rr := doJSON(t, env.srv.Handler(), http.MethodGet,
		"/download-file/"+strconv.FormatInt(fileID, 10), nil, opsToken)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("ops link request: status %d, want 403", rr.Code)
	}
}

func TestDownloadLinkMissingFile(t *testing.T) {
	env := newTestEnv()
	seedUpload(t, env, "report.docx", []byte("x"))
	clientToken := signupAndLogin(t, env, "client1@example.com", "password1", RoleClient)

	rr := doJSON(t, env.srv.Handler(), http.MethodGet, "/download-file/999", nil, clientToken)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rr.Code)
	}
}

func TestRedeemUnverifiedThenVerified(t *testing.T) {
	env := newTestEnv()
	content := []byte("gated until verification")
	fileID := seedUpload(t, env, "report.docx", content)

	// Link issuance only needs the client role; redemption needs the
	// verification flag.
	clientToken := signupAndLogin(t, env, "client1@example.com", "password1", RoleClient)
	path := requestLink(t, env, clientToken, fileID)

	rr := redeem(t, env, path)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("unverified redeem: status %d, want 403", rr.Code)
	}

	rr = doJSON(t, env.srv.Handler(), http.MethodGet, "/verify-email?email=client1@example.com", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("verify-email: status %d", rr.Code)
	}

	// The same still-unexpired capability now succeeds.
	rr = redeem(t, env, path)
	if rr.Code != http.StatusOK {
		t.Fatalf("verified redeem: status %d: %s", rr.Code, rr.Body.String())
	}
	if got, _ := io.ReadAll(rr.Body); !bytes.Equal(got, content) {
		t.Fatalf("downloaded bytes differ after verification")
	}
}

func TestRedeemAfterFileDeleted(t *testing.T) {
	env := newTestEnv()
	fileID := seedUpload(t, env, "report.docx", []byte("x"))
	clientToken := verifiedClient(t, env, "client1@example.com")
	path := requestLink(t, env, clientToken, fileID)

	env.files.remove(fileID)

	rr := redeem(t, env, path)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "File not found") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestRedeemAfterBlobDeleted(t *testing.T) {
	env := newTestEnv()
	fileID := seedUpload(t, env, "report.docx", []byte("x"))
	clientToken := verifiedClient(t, env, "client1@example.com")
	path := requestLink(t, env, clientToken, fileID)

	// Registry row survives but the bytes are gone.
	file, err := env.files.FindByID(t.Context(), fileID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	env.blobs.mu.Lock()
	delete(env.blobs.objects, file.ObjectKey)
	env.blobs.mu.Unlock()

	rr := redeem(t, env, path)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "File not found on disk") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestRedeemUnknownSubject(t *testing.T) {
	env := newTestEnv()
	fileID := seedUpload(t, env, "report.docx", []byte("x"))

	// A valid capability whose subject has no live user record.
	tok, err := env.srv.codec.IssueDownloadToken(fileID, "ghost@example.com")
	if err != nil {
		t.Fatalf("IssueDownloadToken: %v", err)
	}

	rr := redeem(t, env, "/secure-download/"+tok)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Unauthorized access") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

// brokenUserStore fails every lookup, standing in for a store outage.
type brokenUserStore struct {
	UserStore
}

func (s *brokenUserStore) FindByEmail(context.Context, string) (User, error) {
	return User{}, errors.New("connection refused")
}

func TestRedeemUserStoreOutage(t *testing.T) {
	env := newTestEnv()
	fileID := seedUpload(t, env, "report.docx", []byte("x"))
	clientToken := verifiedClient(t, env, "client1@example.com")
	path := requestLink(t, env, clientToken, fileID)

	env.srv.users = &brokenUserStore{UserStore: env.users}

	// A store failure is not an authorization verdict.
	rr := redeem(t, env, path)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "Unauthorized access") {
		t.Fatalf("outage reported as authorization denial: %q", rr.Body.String())
	}
}

func TestRedeemExpiredCapability(t *testing.T) {
	env := newTestEnv()
	fileID := seedUpload(t, env, "report.docx", []byte("x"))
	verifiedClient(t, env, "client1@example.com")

	// Issue a capability that is already past its window.
	base := time.Now().Add(-time.Hour)
	env.srv.codec.now = func() time.Time { return base }
	tok, err := env.srv.codec.IssueDownloadToken(fileID, "client1@example.com")
	if err != nil {
		t.Fatalf("IssueDownloadToken: %v", err)
	}
	env.srv.codec.now = time.Now

	rr := redeem(t, env, "/secure-download/"+tok)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expired redeem: status %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Invalid or expired download link") {
		t.Fatalf("body %q leaks decode cause", rr.Body.String())
	}
}

func TestRedeemGarbageToken(t *testing.T) {
	env := newTestEnv()

	rr := redeem(t, env, "/secure-download/not-a-token")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}
	// Same generic body as the expired case: decode causes must not leak.
	if !strings.Contains(rr.Body.String(), "Invalid or expired download link") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestRedeemSessionTokenRejected(t *testing.T) {
	env := newTestEnv()
	seedUpload(t, env, "report.docx", []byte("x"))
	clientToken := verifiedClient(t, env, "client1@example.com")

	// A session token is not a capability even though it carries a valid
	// signature.
	rr := redeem(t, env, "/secure-download/"+clientToken)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}
}

func TestListFiles(t *testing.T) {
	env := newTestEnv()
	seedUpload(t, env, "report.docx", []byte("x"))

	clientToken := signupAndLogin(t, env, "client1@example.com", "password1", RoleClient)
	rr := doJSON(t, env.srv.Handler(), http.MethodGet, "/list-files", nil, clientToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("list-files: status %d", rr.Code)
	}

	var files []listedFile
	if err := json.Unmarshal(rr.Body.Bytes(), &files); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(files) != 1 || files[0].Filename != "report.docx" {
		t.Fatalf("unexpected listing %+v", files)
	}

	// Ops accounts cannot list.
	opsToken := signupAndLogin(t, env, "ops9@example.com", "password1", RoleOps)
	rr = doJSON(t, env.srv.Handler(), http.MethodGet, "/list-files", nil, opsToken)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("ops list-files: status %d, want 403", rr.Code)
	}
}
