package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrOptimisticLock = errors.New("optimistic locking")
)

// Parameter names one offending input value.
type Parameter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ValidationError reports self-inconsistent caller input. Parameters lists
// every offending item, not only the first one.
type ValidationError struct {
	Message    string
	Parameters []Parameter
}

func NewValidationError(message string, params ...Parameter) *ValidationError {
	return &ValidationError{Message: message, Parameters: params}
}

func (e *ValidationError) Error() string {
	if len(e.Parameters) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Parameters))
	for _, p := range e.Parameters {
		parts = append(parts, p.Key+"="+p.Value)
	}
	return fmt.Sprintf("%s [%s]", e.Message, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports ids that could not be resolved.
type NotFoundError struct {
	Entity string
	IDs    []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found for [ids: %s]", e.Entity, strings.Join(e.IDs, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// OptimisticLockError is returned when the stored version moved past the
// version the caller based its change on.
type OptimisticLockError struct {
	Entity           string
	ID               string
	StoredVersion    int
	RequestedVersion int
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("cannot update %s %s: stored version is %d, requested version is %d",
		e.Entity, e.ID, e.StoredVersion, e.RequestedVersion)
}

func (e *OptimisticLockError) Is(target error) bool { return target == ErrOptimisticLock }

// APIError is the JSON body returned for failed requests.
type APIError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Application error codes used in APIError.
const (
	ErrorCodeValidation      = "VALIDATION_ERROR"
	ErrorCodeNotFound        = "NOT_FOUND"
	ErrorCodeOptimisticLock  = "OPTIMISTIC_LOCKING"
	ErrorCodeInvalidJSON     = "INVALID_JSON"
	ErrorCodeInternalServer  = "INTERNAL_SERVER_ERROR"
	ErrorCodeInvalidIDFormat = "INVALID_ID_FORMAT"
)
