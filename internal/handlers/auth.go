package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/staffdesk/apiserver/internal/mailer"
	"github.com/staffdesk/apiserver/internal/reset"
	"github.com/staffdesk/apiserver/internal/services"
	"github.com/staffdesk/apiserver/internal/store"
	"github.com/staffdesk/apiserver/internal/token"
	"github.com/staffdesk/apiserver/types"
)

// AuthHandler provides the authentication endpoints for one principal
// kind. The same handler is mounted under /admins and /users with the
// corresponding role.
type AuthHandler struct {
	role       types.Role
	principals *services.PrincipalService
	issuer     *token.Issuer
	resets     *reset.Registry
	mail       *mailer.Mailer
	logger     *logrus.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(
	role types.Role,
	principals *services.PrincipalService,
	issuer *token.Issuer,
	resets *reset.Registry,
	mail *mailer.Mailer,
	logger *logrus.Logger,
) *AuthHandler {
	return &AuthHandler{
		role:       role,
		principals: principals,
		issuer:     issuer,
		resets:     resets,
		mail:       mail,
		logger:     logger,
	}
}

// AuthRouter registers the auth routes for one principal kind on the
// given router.
func AuthRouter(
	r chi.Router,
	role types.Role,
	principals *services.PrincipalService,
	issuer *token.Issuer,
	resets *reset.Registry,
	mail *mailer.Mailer,
	logger *logrus.Logger,
) {
	handler := NewAuthHandler(role, principals, issuer, resets, mail, logger)
	authMiddleware := RequireAuth(issuer)

	r.Post("/registration", handler.Register)
	r.Post("/login", handler.Login)
	r.With(authMiddleware).Get("/auth", handler.Auth)
	r.With(authMiddleware).Post("/{principalID}/change-password", handler.ChangePassword)
	r.Post("/request-password-reset", handler.RequestPasswordReset)
	r.Post("/reset-password", handler.ResetPassword)
}

// RequireAuth returns middleware that authenticates the bearer token and
// injects the resolved principal into the request context. A missing or
// malformed Authorization header fails with 401; a token that does not
// verify fails with 403.
func RequireAuth(issuer *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			principalID, role, err := issuer.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusForbidden, "invalid token")
				return
			}

			ctx := contextWithPrincipal(r.Context(), AuthPrincipal{ID: principalID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates a new account for this handler's kind.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	principal, err := h.principals.Register(r.Context(), h.role, req.Login, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateLogin) {
			writeError(w, http.StatusBadRequest, "login already exists")
			return
		}
		h.logger.WithError(err).Error("failed to register principal")
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, principal)
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	principal, err := h.principals.VerifyCredentials(r.Context(), h.role, req.Login, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.WithError(err).Error("failed to authenticate principal")
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	tokenString, err := h.issuer.Issue(principal.ID, principal.Role)
	if err != nil {
		h.logger.WithError(err).Error("failed to issue token")
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: tokenString, User: principal})
}

// Auth returns the authenticated principal for this handler's kind.
func (h *AuthHandler) Auth(w http.ResponseWriter, r *http.Request) {
	acting, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if acting.Role != h.role {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	principal, err := h.principals.GetByID(r.Context(), acting.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h.logger.WithError(err).Error("failed to load principal")
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: principal})
}

// ChangePassword rotates the acting principal's password. Only the
// principal named in the path may call it, and only for its own kind.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	acting, err := principalFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pathID, err := strconv.Atoi(chi.URLParam(r, "principalID"))
	if err != nil || pathID < 1 {
		writeError(w, http.StatusBadRequest, "invalid principal id")
		return
	}
	if acting.ID != pathID || acting.Role != h.role {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if err := h.principals.ChangePassword(r.Context(), acting.ID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, services.ErrWrongPassword):
			writeError(w, http.StatusBadRequest, "wrong current password")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "unauthorized")
		default:
			h.logger.WithError(err).Error("failed to change password")
			writeError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "password changed"})
}

// RequestPasswordReset starts the recovery flow. The response is the
// same whether or not the login exists, and the reset token itself only
// travels through the mail queue.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	ack := MessageResponse{Message: "if the account exists, a reset link has been sent"}

	principal, err := h.principals.GetByLogin(r.Context(), h.role, req.Login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.logger.WithField("role", h.role).Info("password reset requested for unknown login")
			writeJSON(w, http.StatusOK, ack)
			return
		}
		h.logger.WithError(err).Error("failed to look up principal for reset")
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	resetToken, expiresAt, err := h.resets.Create(r.Context(), principal.ID, principal.Role)
	if err != nil {
		h.logger.WithError(err).Error("failed to create reset token")
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	err = h.mail.EnqueueResetToken(r.Context(), mailer.ResetTokenMessage{
		Login:     principal.Login,
		Role:      principal.Role,
		Token:     resetToken,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		h.logger.WithError(err).Error("failed to enqueue reset mail")
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}

	writeJSON(w, http.StatusOK, ack)
}

// ResetPassword consumes a reset token and sets a new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	principalID, role, err := h.resets.Consume(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, reset.ErrInvalidOrExpired) {
			writeError(w, http.StatusBadRequest, "invalid or expired reset token")
			return
		}
		h.logger.WithError(err).Error("failed to consume reset token")
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if role != h.role {
		// Token was issued for the other kind; do not reveal that it existed.
		writeError(w, http.StatusBadRequest, "invalid or expired reset token")
		return
	}

	if err := h.principals.ResetPassword(r.Context(), principalID, req.NewPassword); err != nil {
		h.logger.WithError(err).Error("failed to reset password")
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "password has been reset"})
}

type CredentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type ResetRequestRequest struct {
	Login string `json:"login"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type AuthResponse struct {
	Token string          `json:"token"`
	User  types.Principal `json:"user"`
}

type UserResponse struct {
	User types.Principal `json:"user"`
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", errors.New("invalid authorization")
	}
	return tokenString, nil
}
