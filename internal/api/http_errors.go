package api

import (
	"errors"
	"net/http"

	"github.com/visualix/visualix/internal/core"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func httpStatusForDomainError(err error) (int, bool) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		return 0, false
	}

	switch domErr.Category {
	case core.ErrCatValidation:
		if domErr.Code == core.CodeFileTooLarge {
			return http.StatusRequestEntityTooLarge, true
		}
		return http.StatusBadRequest, true
	case core.ErrCatNotFound:
		return http.StatusNotFound, true
	case core.ErrCatConflict, core.ErrCatState:
		return http.StatusConflict, true
	case core.ErrCatAuth:
		return http.StatusBadGateway, true
	case core.ErrCatRateLimit:
		return http.StatusTooManyRequests, true
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout, true
	case core.ErrCatNetwork:
		return http.StatusBadGateway, true
	case core.ErrCatExecution:
		if domErr.Code == core.CodeAgentUnavailable {
			return http.StatusServiceUnavailable, true
		}
		if domErr.Code == core.CodeMalformedPlan || domErr.Code == core.CodePlanningFailed {
			return http.StatusBadGateway, true
		}
		return http.StatusInternalServerError, true
	default:
		return http.StatusInternalServerError, true
	}
}

// respondError sends a JSON error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondDomainError maps err to a status code and writes it. Errors that
// are not domain errors are reported as 500 without their text.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, ok := httpStatusForDomainError(err)
	if !ok {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var domErr *core.DomainError
	errors.As(err, &domErr)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}
	respondJSON(w, status, errorResponse{
		Error:   domErr.Message,
		Code:    domErr.Code,
		Details: domErr.Details,
	})
}
