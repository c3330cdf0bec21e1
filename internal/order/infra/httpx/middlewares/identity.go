// Package middlewares carries the HTTP middlewares of the checkout
// service. Authentication itself happens upstream (the auth proxy
// terminates sessions and JWTs); what arrives here is the already
// verified identity in X-User-* headers.
package middlewares

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKey string

const identityKey contextKey = "identity"

const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRole  = "X-User-Role"
	HeaderFirstName = "X-User-First-Name"
	HeaderLastName  = "X-User-Last-Name"
	HeaderEmail     = "X-User-Email"

	RoleAdmin = "admin"
)

// Identity is the verified caller identity forwarded by the auth layer.
// Zero value means guest.
type Identity struct {
	UserID    string
	Role      string
	FirstName string
	LastName  string
	Email     string
}

// IsAuthenticated reports whether a user identity is present.
func (i Identity) IsAuthenticated() bool { return i.UserID != "" }

// AttachIdentity copies the forwarded identity headers into the request
// context. Guests simply carry an empty identity.
func AttachIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Identity{
			UserID:    r.Header.Get(HeaderUserID),
			Role:      r.Header.Get(HeaderUserRole),
			FirstName: r.Header.Get(HeaderFirstName),
			LastName:  r.Header.Get(HeaderLastName),
			Email:     r.Header.Get(HeaderEmail),
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom extracts the caller identity from the context.
func IdentityFrom(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// RequireUser rejects guests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFrom(r.Context()).IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects everyone but admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFrom(r.Context())
		if !id.IsAuthenticated() {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if id.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": msg})
}
