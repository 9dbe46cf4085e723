// list.go - File listing for client accounts.
package server

import (
	"log"
	"net/http"
)

type listedFile struct {
	ID         int64  `json:"id"`
	Filename   string `json:"filename"`
	UploadedBy int64  `json:"uploaded_by"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := Authorize(user, ActionListFiles); err != nil {
		http.Error(w, "only client users can view files", http.StatusForbidden)
		return
	}

	files, err := s.files.List(r.Context())
	if err != nil {
		rid := RequestIDFromContext(r.Context())
		log.Printf("rid=%s msg=list_files_failed err=%v", rid, err)
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	out := make([]listedFile, 0, len(files))
	for _, f := range files {
		out = append(out, listedFile{ID: f.ID, Filename: f.Filename, UploadedBy: f.OwnerID})
	}

	writeJSON(w, http.StatusOK, out)
}
