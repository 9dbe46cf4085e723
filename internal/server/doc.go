// Package server implements the HTTP surface of the docshare backend:
// signup/login with JWT sessions, role-gated document upload, and the
// secure download flow where a short-lived signed capability token is
// issued and later redeemed against live user and file records.
package server
