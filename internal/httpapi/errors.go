package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/erpcore/books/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// validationResponse carries the full violation list for 422 responses.
type validationResponse struct {
	Error      string           `json:"error"`
	Code       string           `json:"code"`
	Violations []errs.Violation `json:"violations"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusBadRequest, msg, "bad_request")
}

func notFound(w http.ResponseWriter) {
	writeErr(w, http.StatusNotFound, "not_found", "not_found")
}

func unprocessable(w http.ResponseWriter, violations []errs.Violation) {
	toJSON(w, http.StatusUnprocessableEntity, validationResponse{
		Error:      "validation_error",
		Code:       "validation_error",
		Violations: violations,
	})
}

// writeDomainErr maps the error taxonomy onto HTTP statuses: validation 422,
// state/conflict 409, not found 404, integrity 500. Integrity errors are
// additionally logged at ERROR; they indicate corrupted ledger state.
func (s *Server) writeDomainErr(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := errs.AsValidation(err); ok {
		unprocessable(w, ve.Violations)
		return
	}
	switch {
	case errors.Is(err, errs.ErrNotFound):
		notFound(w)
	case errors.Is(err, errs.ErrState):
		writeErr(w, http.StatusConflict, err.Error(), "state_error")
	case errors.Is(err, errs.ErrConflict):
		writeErr(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, errs.ErrIntegrity):
		s.log.Error("integrity violation", "path", r.URL.Path, "err", err)
		writeErr(w, http.StatusInternalServerError, err.Error(), "integrity_error")
	default:
		s.log.Error("internal error", "path", r.URL.Path, "err", err)
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
	}
}

// writeRequestErr maps go-playground validator failures on the DTO layer to
// the same 422 violation shape the domain produces.
func writeRequestErr(w http.ResponseWriter, err error) {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		violations := make([]errs.Violation, 0, len(ves))
		for _, fe := range ves {
			violations = append(violations, errs.Violation{
				Field:   fe.Field(),
				Code:    fe.Tag(),
				Message: "failed on " + fe.Tag() + " constraint",
			})
		}
		unprocessable(w, violations)
		return
	}
	badRequest(w, err.Error())
}
