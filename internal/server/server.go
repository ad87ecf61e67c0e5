package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"resolvd/internal/app"
	"resolvd/internal/ratelimit"
	"resolvd/internal/util"
	"resolvd/pkg/domain"
)

// SessionCookie is the name of the server-side session cookie.
const SessionCookie = "resolvd_session"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	RedisAddr                string
	RedisPassword            string
	ClientOrigin             string
	MaxUploadBytes           int64
	AllowedExtensions        []string
	SecretRateLimitPerMinute int
}

// Server exposes the HTTP API.
type Server struct {
	app               *app.App
	mux               *http.ServeMux
	clientOrigin      string
	maxUploadBytes    int64
	allowedExtensions map[string]struct{}
	secretLimiter     *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	secretLimit := cfg.SecretRateLimitPerMinute
	if secretLimit <= 0 {
		secretLimit = 10
	}
	secretLimiter, err := ratelimit.NewFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "resolvd:ratelimit:secret", secretLimit, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("init secret limiter: %w", err)
	}

	s := &Server{
		app:               cfg.App,
		mux:               http.NewServeMux(),
		clientOrigin:      cfg.ClientOrigin,
		maxUploadBytes:    normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedExtensions: normalizeExtensions(cfg.AllowedExtensions),
		secretLimiter:     secretLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(
		util.WithSecurityHeaders(util.WithCORS(s.clientOrigin, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/callback", s.handleAuthCallback)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))

	// complaints
	s.mux.Handle("/api/complaints", s.roleOnly(domain.RoleConsumer, s.handleCreateComplaint))
	s.mux.Handle("/api/complaints/my-complaints", s.roleOnly(domain.RoleConsumer, s.handleMyComplaints))
	s.mux.Handle("/api/complaints/tagged", s.roleOnly(domain.RoleBusiness, s.handleTaggedComplaints))
	s.mux.Handle("/api/complaints/", s.authenticated(s.handleComplaintByID))

	// business verification
	s.mux.Handle("/api/business/verification", s.roleOnly(domain.RoleBusiness, s.handleSubmitVerification))
	s.mux.Handle("/api/business/me", s.roleOnly(domain.RoleBusiness, s.handleMyProfile))
	s.mux.HandleFunc("/api/business/verified", s.handleVerifiedBusinesses)

	// admin
	s.mux.Handle("/api/admin/verify-secret", s.roleOnly(domain.RoleAdmin, s.handleVerifySecret))
	s.mux.Handle("/api/admin/pending-verifications", s.adminSecretOnly(s.handlePendingVerifications))
	s.mux.Handle("/api/admin/approve-business", s.adminSecretOnly(s.handleApproveBusiness))
	s.mux.Handle("/api/admin/stats", s.adminSecretOnly(s.handleStats))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.identify(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthenticated, "authentication required")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) roleOnly(role domain.UserRole, next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != role {
			writeError(w, http.StatusForbidden, codeForbidden, app.ErrForbidden.Error())
			return
		}
		next(w, r, user)
	})
}

// adminSecretOnly gates admin data routes behind both the ADMIN role and a
// previously verified secret code.
func (s *Server) adminSecretOnly(next authHandler) http.Handler {
	return s.roleOnly(domain.RoleAdmin, func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if !user.AdminSecretVerified {
			s.audit(r, "admin_gate", "denied", "user_id", user.ID)
			writeError(w, http.StatusForbidden, codeForbidden, app.ErrSecretRequired.Error())
			return
		}
		next(w, r, user)
	})
}

// identify resolves the caller from a bearer token first, then the session
// cookie. A bad credential degrades to unauthenticated rather than erroring,
// so public-adjacent routes behave uniformly.
func (s *Server) identify(r *http.Request) (domain.User, bool) {
	if token, ok := bearerToken(r); ok {
		if user, found := s.app.UserFromBearer(token); found {
			return user, true
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		if user, found := s.app.UserFromSession(cookie.Value); found {
			return user, true
		}
	}
	return domain.User{}, false
}

// auth handlers

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req callbackRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}
	user, session, bearer, err := s.app.AuthCallback(req.Subject, req.Email, req.DisplayName, req.Role)
	if err != nil {
		s.audit(r, "auth_callback", "failure", "subject", req.Subject)
		s.writeAppError(w, err)
		return
	}
	s.audit(r, "auth_callback", "success", "user_id", user.ID, "role", string(user.Role))
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	writeJSON(w, http.StatusOK, authResponse{Token: bearer, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := s.app.Logout(cookie.Value); err != nil {
			writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.audit(r, "logout", "success")
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// complaint handlers

func (s *Server) handleCreateComplaint(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createComplaintRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}
	complaint, err := s.app.CreateComplaint(user, req.Title, req.Description, req.BusinessID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, complaint)
}

func (s *Server) handleMyComplaints(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	complaints, err := s.app.ListMyComplaints(user)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": complaints, "count": len(complaints)})
}

func (s *Server) handleTaggedComplaints(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	complaints, err := s.app.ListTaggedComplaints(user)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": complaints, "count": len(complaints)})
}

// handleComplaintByID dispatches /api/complaints/{id} and its subresources.
func (s *Server) handleComplaintByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/complaints/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, codeNotFound, app.ErrNotFound.Error())
		return
	}
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		complaint, err := s.app.GetComplaint(user, id)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, complaint)
	case sub == "reply" && r.Method == http.MethodPost:
		var req replyRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
			return
		}
		complaint, err := s.app.Reply(user, id, req.Content)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, complaint)
	case sub == "status" && r.Method == http.MethodPatch:
		if user.Role != domain.RoleBusiness {
			writeError(w, http.StatusForbidden, codeForbidden, app.ErrForbidden.Error())
			return
		}
		var req statusRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
			return
		}
		complaint, err := s.app.SetStatus(user, id, req.Status)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, complaint)
	default:
		methodNotAllowed(w)
	}
}

// verification handlers

func (s *Server) handleSubmitVerification(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid form data")
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "document file is required (field: document)")
		return
	}
	defer file.Close()
	if !s.isExtensionAllowed(header.Filename) {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "unsupported file type")
		return
	}
	profile, err := s.app.SubmitVerification(r.Context(), user,
		r.FormValue("companyName"), r.FormValue("industry"), r.FormValue("description"),
		app.Document{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
	if err != nil {
		s.audit(r, "verification_submit", "failure", "user_id", user.ID)
		s.writeAppError(w, err)
		return
	}
	s.audit(r, "verification_submit", "success", "user_id", user.ID, "profile_id", profile.ID)
	writeJSON(w, http.StatusCreated, profile)
}

func (s *Server) handleMyProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	profile, err := s.app.MyProfile(user)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleVerifiedBusinesses serves the public directory, no authentication.
func (s *Server) handleVerifiedBusinesses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	businesses, err := s.app.ListVerifiedBusinesses()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": businesses, "count": len(businesses)})
}

// admin handlers

func (s *Server) handleVerifySecret(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.secretLimiter, "too many attempts, try again later") {
		s.audit(r, "secret_verify", "rate_limited", "user_id", user.ID)
		return
	}
	var req secretRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}
	updated, err := s.app.VerifySecret(user, req.SecretCode)
	if err != nil {
		s.audit(r, "secret_verify", "failure", "user_id", user.ID)
		s.writeAppError(w, err)
		return
	}
	s.audit(r, "secret_verify", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handlePendingVerifications(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	pending, err := s.app.ListPendingVerifications()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": pending, "count": len(pending)})
}

func (s *Server) handleApproveBusiness(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid JSON body")
		return
	}
	profile, err := s.app.DecideVerification(req.ProfileID, req.Action, req.Reason)
	if err != nil {
		s.audit(r, "verification_decision", "failure", "admin_id", user.ID, "profile_id", req.ProfileID)
		s.writeAppError(w, err)
		return
	}
	s.audit(r, "verification_decision", "success",
		"admin_id", user.ID, "profile_id", profile.ID, "decision", string(profile.Status))
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.Stats()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// error taxonomy codes
const (
	codeUnauthenticated     = "UNAUTHENTICATED"
	codeForbidden           = "FORBIDDEN"
	codeNotVerified         = "NOT_VERIFIED"
	codeNotFound            = "NOT_FOUND"
	codeValidationFailed    = "VALIDATION_FAILED"
	codeDuplicateSubmission = "DUPLICATE_SUBMISSION"
	codeLocked              = "LOCKED"
	codeInvalidSecret       = "INVALID_SECRET"
	codeInvalidStatus       = "INVALID_STATUS"
	codeInvalidAction       = "INVALID_ACTION"
	codeInvalidIdentifier   = "INVALID_IDENTIFIER"
	codeBusinessNotFound    = "BUSINESS_NOT_FOUND"
	codeServerError         = "SERVER_ERROR"
)

// writeAppError translates core errors into status codes and stable taxonomy
// codes. Unknown errors never leak detail to the client.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case app.IsValidation(err):
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	case errors.Is(err, app.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, codeInvalidIdentifier, err.Error())
	case errors.Is(err, app.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, codeInvalidStatus, err.Error())
	case errors.Is(err, app.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, codeInvalidAction, err.Error())
	case errors.Is(err, app.ErrInvalidSecret):
		writeError(w, http.StatusUnauthorized, codeInvalidSecret, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	case errors.Is(err, app.ErrNotVerified):
		writeError(w, http.StatusForbidden, codeNotVerified, err.Error())
	case errors.Is(err, app.ErrBusinessNotFound):
		writeError(w, http.StatusNotFound, codeBusinessNotFound, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, app.ErrLocked):
		writeError(w, http.StatusConflict, codeLocked, err.Error())
	case errors.Is(err, app.ErrDuplicateSubmission):
		writeError(w, http.StatusConflict, codeDuplicateSubmission, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", clientIP(r),
		"request_id", util.RequestIDFromRequest(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + clientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, codeForbidden, msg)
	return false
}

func (s *Server) isExtensionAllowed(filename string) bool {
	if len(s.allowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := s.allowedExtensions[ext]
	return ok
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func normalizeMaxBytes(v int64) int64 {
	if v <= 0 {
		return 10 << 20
	}
	return v
}

func normalizeExtensions(exts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, codeValidationFailed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

// request/response DTOs

type callbackRequest struct {
	Subject     string `json:"subject"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type createComplaintRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	BusinessID  string `json:"businessId"`
}

type replyRequest struct {
	Content string `json:"content"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type secretRequest struct {
	SecretCode string `json:"secretCode"`
}

type decisionRequest struct {
	ProfileID string `json:"profileId"`
	Action    string `json:"action"`
	Reason    string `json:"reason"`
}
