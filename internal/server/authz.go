// authz.go - Role-based policy checks gating each operation.
package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// User roles. Ops accounts upload documents, client accounts list and
// download them.
const (
	RoleOps    = "ops"
	RoleClient = "client"
)

// Action names the operations governed by the policy table.
type Action string

const (
	ActionUpload              Action = "upload"
	ActionRequestDownloadLink Action = "request-download-link"
	ActionRedeemDownload      Action = "redeem-download"
	ActionListFiles           Action = "list-files"
)

// Denial reasons. Each is distinguishable to the caller; token decode
// failures are a separate layer (ErrTokenInvalid) and are never folded
// into these.
var (
	ErrForbiddenRole    = errors.New("role not permitted for this action")
	ErrUnverified       = errors.New("email not verified")
	ErrInvalidExtension = errors.New("file extension not allowed")
)

type policy struct {
	role         string
	needVerified bool
}

// The policy table is fixed; there is no dynamic rule engine.
var policies = map[Action]policy{
	ActionUpload:              {role: RoleOps},
	ActionRequestDownloadLink: {role: RoleClient},
	ActionRedeemDownload:      {role: RoleClient, needVerified: true},
	ActionListFiles:           {role: RoleClient},
}

// Authorize checks the user's current role and verification status against
// the policy for the action. Callers must pass a freshly loaded user record;
// download redemption in particular must not trust any state cached at
// issuance time.
func Authorize(u User, action Action) error {
	p, ok := policies[action]
	if !ok {
		return ErrForbiddenRole
	}
	if u.Role != p.role {
		return ErrForbiddenRole
	}
	if p.needVerified && !u.IsVerified {
		return ErrUnverified
	}
	return nil
}

// ValidRole reports whether role is one of the two known roles.
func ValidRole(role string) bool {
	return role == RoleOps || role == RoleClient
}

var allowedExtensions = map[string]bool{
	".pptx": true,
	".docx": true,
	".xlsx": true,
}

// CheckExtension rejects filenames whose extension is not in the allowed
// document set. Runs before any storage write.
func CheckExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: only pptx, docx, xlsx files allowed", ErrInvalidExtension)
	}
	return nil
}
