package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"wildlife-licensing-backend/db/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrNotFound is returned when an application, activity, assessment or
// invoice does not exist.
var ErrNotFound = errors.New("record not found")

// ValidationError reports input that cannot be accepted. Fields maps
// offending field names to a reason.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MissingFieldsError lists every required form field absent at submission.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// AuthorizationError reports an actor lacking a permission or group membership.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

func NewAuthorizationError(format string, args ...any) *AuthorizationError {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports a processing or activity status change
// that is not an edge of the state machine.
type InvalidTransitionError struct {
	From    string
	To      string
	Message string
}

func (e *InvalidTransitionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("cannot move activity from %s to %s", e.From, e.To)
}

func invalidProcessingTransition(from, to models.ProcessingStatus) *InvalidTransitionError {
	return &InvalidTransitionError{From: string(from), To: string(to)}
}

// FeeNotSettledError blocks issuing an activity that still owes money or
// still has purposes waiting on a decision.
type FeeNotSettledError struct {
	ActivityID  uuid.UUID
	Outstanding decimal.Decimal
	Message     string
}

func (e *FeeNotSettledError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("activity %s has %s outstanding", e.ActivityID, e.Outstanding.StringFixed(2))
}

// notFound converts a repository miss into ErrNotFound.
func notFound(what string, id any, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %v: %w", what, id, err)
}

// IsDomainError reports whether err is one of the typed workflow errors
// as opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	var (
		validation *ValidationError
		missing    *MissingFieldsError
		authz      *AuthorizationError
		transition *InvalidTransitionError
		fees       *FeeNotSettledError
	)
	return errors.Is(err, ErrNotFound) ||
		errors.As(err, &validation) ||
		errors.As(err, &missing) ||
		errors.As(err, &authz) ||
		errors.As(err, &transition) ||
		errors.As(err, &fees)
}
