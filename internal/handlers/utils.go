package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/staffdesk/apiserver/types"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

// AuthPrincipal is the identity the auth middleware resolves from a
// bearer token and attaches to the request context.
type AuthPrincipal struct {
	ID   int
	Role types.Role
}

func principalFromContext(ctx context.Context) (AuthPrincipal, error) {
	principal, ok := ctx.Value(contextPrincipalKey).(AuthPrincipal)
	if !ok || principal.ID < 1 || !principal.Role.Valid() {
		return AuthPrincipal{}, errors.New("missing principal")
	}
	return principal, nil
}

func contextWithPrincipal(ctx context.Context, principal AuthPrincipal) context.Context {
	return context.WithValue(ctx, contextPrincipalKey, principal)
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Message string `json:"message"`
}

// MessageResponse is a simple success payload.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Message: message})
}
