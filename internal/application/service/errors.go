package service

import (
	"errors"
	"fmt"
	"net/http"

	domainwf "github.com/garyjia/procurement-approvals/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Actor identifies the caller of a tenant-scoped operation
type Actor struct {
	TenantID string
	UserID   string
}

// Validate rejects actors without a tenant or user
func (a Actor) Validate() error {
	if a.TenantID == "" || a.UserID == "" {
		return fmt.Errorf("%w: tenant and user are required", domainwf.ErrAuthorization)
	}
	return nil
}

// ErrorKind is the caller-facing classification of a service error
type ErrorKind string

const (
	KindConfiguration ErrorKind = "CONFIGURATION"
	KindValidation    ErrorKind = "VALIDATION"
	KindAuthorization ErrorKind = "AUTHORIZATION"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindState         ErrorKind = "STATE"
	KindConflict      ErrorKind = "CONFLICT"
	KindInternal      ErrorKind = "INTERNAL"
)

// Classify maps an error onto its category
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, domainwf.ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, domainwf.ErrValidation):
		return KindValidation
	case errors.Is(err, domainwf.ErrAuthorization):
		return KindAuthorization
	case errors.Is(err, domainwf.ErrNotFound):
		return KindNotFound
	case errors.Is(err, domainwf.ErrState),
		errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrInvalidState):
		return KindState
	case errors.Is(err, domainwf.ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// HTTPStatus returns the response status for an error kind
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindConfiguration:
		return http.StatusUnprocessableEntity
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindState, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func notFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", domainwf.ErrNotFound, what, id)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domainwf.ErrValidation, fmt.Sprintf(format, args...))
}
