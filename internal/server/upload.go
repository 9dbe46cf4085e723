// upload.go - Document upload for ops accounts.
package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"
)

// isBodyTooLarge reports whether err carries the MaxBytesReader limit
// error, however deeply the multipart reader or blob store wrapped it.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

type uploadResponse struct {
	Message string `json:"message"`
	FileID  int64  `json:"file_id"`
}

// handleUpload streams a multipart document into blob storage and records
// it in the file registry. The extension gate runs before any storage
// write, so a rejected upload leaves no trace.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := Authorize(user, ActionUpload); err != nil {
		http.Error(w, "only ops users can upload files", http.StatusForbidden)
		return
	}

	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "bad multipart", http.StatusBadRequest)
		return
	}

	var filePart io.Reader
	var filename, contentType string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The size limit can trip while the multipart reader is
			// still scanning for the next boundary.
			if isBodyTooLarge(err) {
				http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}
		defer func() { _ = part.Close() }()

		if part.FormName() != "file" {
			continue
		}

		filePart = part
		// Strip any client-supplied directory components.
		filename = path.Base(part.FileName())
		contentType = part.Header.Get("Content-Type")
		break
	}

	if filePart == nil {
		http.Error(w, "missing file", http.StatusBadRequest)
		return
	}

	if err := CheckExtension(filename); err != nil {
		http.Error(w, "only pptx, docx, xlsx files allowed", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	// Non-guessable object key; the original filename lives only in the
	// registry row.
	objectKey := "uploads/" + uuid.New().String()

	if err := s.blobs.Save(ctx, objectKey, filePart, -1, contentType); err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=blob_save_failed key=%s err=%v", rid, objectKey, err)

		// Save wraps the read error it hit while draining the part, so
		// the limit error surfaces here when it trips mid-stream.
		if isBodyTooLarge(err) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "upload failed", http.StatusBadGateway)
		return
	}

	file, err := s.files.Create(r.Context(), filename, objectKey, user.ID)
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=file_record_failed key=%s err=%v", rid, objectKey, err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	metrics.RecordUpload()

	writeJSON(w, http.StatusOK, uploadResponse{
		Message: "File uploaded successfully",
		FileID:  file.ID,
	})
}
