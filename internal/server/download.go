// download.go - The download flow: link issuance and capability redemption.
//
// Issuance binds a capability to (file_id, requesting email). Redemption
// re-resolves the subject and the file against live records; the token
// proves identity and target, never cached authorization.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

type downloadLinkResponse struct {
	DownloadLink string `json:"download_link"`
	Message      string `json:"message"`
}

// handleDownloadLink issues a short-lived capability URL for an existing
// file to a client-role user.
func (s *Server) handleDownloadLink(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := Authorize(user, ActionRequestDownloadLink); err != nil {
		http.Error(w, "only client users can download files", http.StatusForbidden)
		return
	}

	fileID, err := strconv.ParseInt(r.PathValue("file_id"), 10, 64)
	if err != nil {
		http.Error(w, "bad file id", http.StatusBadRequest)
		return
	}

	if _, err := s.files.FindByID(r.Context(), fileID); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	token, err := s.codec.IssueDownloadToken(fileID, user.Email)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=issue_download_failed file_id=%d err=%v", rid, fileID, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	metrics.RecordLinkIssued()

	writeJSON(w, http.StatusOK, downloadLinkResponse{
		DownloadLink: s.cfg.BaseURL + "/secure-download/" + token,
		Message:      "success",
	})
}

// handleSecureDownload redeems a capability token and streams the file.
// No session is required; the token is the bearer credential. Role and
// verification are re-checked against the live user record so a change
// after issuance is honored.
func (s *Server) handleSecureDownload(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	rid := RequestIDFromContext(r.Context())

	payload, err := s.codec.DecodeDownload(token)
	if err != nil {
		// One generic outcome for every decode failure; the cause is
		// logged but never leaks to the caller.
		log.Printf("rid=%s msg=download_token_rejected err=%v", rid, err)
		http.Error(w, "Invalid or expired download link", http.StatusBadRequest)
		return
	}

	user, err := s.users.FindByEmail(r.Context(), payload.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "Unauthorized access", http.StatusForbidden)
			return
		}
		log.Printf("rid=%s msg=redeem_user_lookup_failed err=%v", rid, err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if err := Authorize(user, ActionRedeemDownload); err != nil {
		log.Printf("rid=%s msg=download_denied email=%s err=%v", rid, user.Email, err)
		http.Error(w, "Unauthorized access", http.StatusForbidden)
		return
	}

	file, err := s.files.FindByID(r.Context(), payload.FileID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	obj, err := s.blobs.Open(ctx, file.ObjectKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "File not found on disk", http.StatusNotFound)
			return
		}
		log.Printf("rid=%s msg=blob_open_failed key=%s err=%v", rid, file.ObjectKey, err)
		http.Error(w, "storage error", http.StatusBadGateway)
		return
	}
	defer func() { _ = obj.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	w.WriteHeader(http.StatusOK)

	n, _ := io.Copy(w, obj)
	metrics.RecordDownload(n)
}
