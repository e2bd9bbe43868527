package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	cerrors "genflow/internal/common/errors"
	"genflow/internal/common/logger"
	"genflow/internal/orchestrator"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the chi HTTP surface over the session manager.
type Server struct {
	manager *SessionManager
	logger  logger.Logger
}

func NewServer(manager *SessionManager, log logger.Logger) *Server {
	return &Server{manager: manager, logger: log}
}

// Router builds the route tree. The metrics handler is mounted by the
// caller alongside this.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/generate", s.handleGenerate)
		r.Get("/workflows", s.handleListWorkflows)
		r.Post("/workflows/{id}/cancel", s.handleCancel)
		r.Delete("/workflows/{id}", s.handleRemove)
	})

	return r
}

type userKey struct{}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, &cerrors.StandardError{
				Code:    cerrors.ErrCodeValidationFailed,
				Message: "X-User-ID header is required",
			})
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) string {
	userID, _ := r.Context().Value(userKey{}).(string)
	return userID
}

// ==========================
// 1. Handlers
// ==========================

type generateRequest struct {
	EngineID string                 `json:"engineId"`
	Input    map[string]interface{} `json:"input"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	session := s.manager.Session(userFrom(r))

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, &cerrors.StandardError{
			Code:    cerrors.ErrCodeValidationFailed,
			Message: "request body is not valid JSON",
		})
		return
	}

	tracked, err := session.Submit(r.Context(), req.EngineID, req.Input)
	if err != nil {
		s.writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tracked)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	session := s.manager.Session(userFrom(r))
	writeJSON(w, http.StatusOK, session.Workflows())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	session := s.manager.Session(userFrom(r))
	id := chi.URLParam(r, "id")

	if err := session.Cancel(r.Context(), id); err != nil {
		if errors.Is(err, orchestrator.ErrWorkflowNotFound) {
			writeError(w, http.StatusNotFound, &cerrors.StandardError{
				Code:    cerrors.ErrCodeCancelFailed,
				Message: "workflow not tracked",
			})
			return
		}
		s.writeStandardError(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	session := s.manager.Session(userFrom(r))
	id := chi.URLParam(r, "id")

	switch err := session.Remove(id); {
	case errors.Is(err, orchestrator.ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, &cerrors.StandardError{
			Code:    cerrors.ErrCodeConfiguration,
			Message: "workflow not tracked",
		})
	case errors.Is(err, orchestrator.ErrWorkflowActive):
		writeError(w, http.StatusConflict, &cerrors.StandardError{
			Code:    cerrors.ErrCodeCancelFailed,
			Message: "workflow is still in flight; cancel it first",
		})
	case err != nil:
		s.writeStandardError(w, err, http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// ==========================
// 2. Error Rendering
// ==========================

type errorBody struct {
	Code        cerrors.ErrorCode    `json:"code"`
	Message     string               `json:"message"`
	Details     string               `json:"details,omitempty"`
	FieldErrors []cerrors.FieldError `json:"fieldErrors,omitempty"`
}

func (s *Server) writeSubmitError(w http.ResponseWriter, err error) {
	switch cerrors.CodeOf(err) {
	case cerrors.ErrCodeValidationFailed:
		s.writeStandardError(w, err, http.StatusBadRequest)
	case cerrors.ErrCodeQuotaExceeded:
		s.writeStandardError(w, err, http.StatusTooManyRequests)
	case cerrors.ErrCodeQuantityCapped:
		s.writeStandardError(w, err, http.StatusBadRequest)
	case cerrors.ErrCodeInsufficientFunds:
		s.writeStandardError(w, err, http.StatusPaymentRequired)
	case cerrors.ErrCodeSubmissionRejected:
		s.writeStandardError(w, err, http.StatusBadGateway)
	case cerrors.ErrCodeSubmissionFailed:
		s.writeStandardError(w, err, http.StatusBadGateway)
	default:
		s.writeStandardError(w, err, http.StatusInternalServerError)
	}
}

func (s *Server) writeStandardError(w http.ResponseWriter, err error, status int) {
	var se *cerrors.StandardError
	if !errors.As(err, &se) {
		s.logger.Error("untyped error reached the HTTP surface", map[string]interface{}{
			"error": err.Error(),
		})
		se = &cerrors.StandardError{
			Code:    cerrors.ErrCodeExternalService,
			Message: "internal error",
		}
	}
	writeError(w, status, se)
}

func writeError(w http.ResponseWriter, status int, se *cerrors.StandardError) {
	body := errorBody{
		Code:        se.Code,
		Message:     se.Message,
		Details:     se.Details,
		FieldErrors: cerrors.FieldErrorsOf(se),
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
