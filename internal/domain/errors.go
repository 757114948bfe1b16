package domain

import (
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"
)

// Record store errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrNotPersisted indicates that a record has no identity yet, or that
	// saving it failed.
	ErrNotPersisted = errors.New("record not persisted")
)

// Source errors. ErrNoDOI and ErrNoIdentifier double as the reason strings
// stored in enrichment reports, so their messages are part of the report format.
var (
	ErrNoDOI        = errors.New("no_doi")
	ErrNoIdentifier = errors.New("no_identifier")

	// ErrNoAbstract means the provider answered but carried no abstract.
	ErrNoAbstract = errors.New("no abstract field in response")

	// ErrRetriesExhausted is wrapped by every RetriesExhaustedError.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrRateLimited and ErrServiceUnavailable qualify a RetriesExhaustedError
	// whose last status was 429 or 502/503/504.
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ValidationError rejects a field of a record or request.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NotFoundError names the record or relation that was looked up.
type NotFoundError struct {
	Entity string
	ID     string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AlreadyExistsError reports a unique key conflict, usually a normalized DOI.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{Entity: entity, ID: id}
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// ExternalAPIError is a terminal, non-retried HTTP status from a provider.
// Message holds the start of the response body.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{Source: source, StatusCode: statusCode, Message: message, Cause: cause}
}

func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

func (e *ExternalAPIError) Unwrap() error { return e.Cause }

// RetriesExhaustedError reports a transient condition (network error, 408,
// 429, 5xx) that outlasted the retry cap. StatusCode is 0 when the last
// attempt failed without a response.
type RetriesExhaustedError struct {
	Attempts   int
	StatusCode int
	// RetryAfter is the provider's last Retry-After hint, if any.
	RetryAfter time.Duration
	Cause      error
}

func (e *RetriesExhaustedError) Error() string {
	msg := fmt.Sprintf("%s after %d attempts", ErrRetriesExhausted, e.Attempts)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", last status: %d", e.StatusCode)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes ErrRetriesExhausted, the status qualifier and the cause to
// errors.Is and errors.As.
func (e *RetriesExhaustedError) Unwrap() []error {
	errs := []error{ErrRetriesExhausted}
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		errs = append(errs, ErrRateLimited)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		errs = append(errs, ErrServiceUnavailable)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// ParseError reports a payload that could not be decoded. Snippet holds the
// leading bytes of the payload for the source_parse_error log line.
type ParseError struct {
	Source  string
	Snippet string
	Cause   error
}

const maxSnippetLen = 200

// NewParseError creates a ParseError. The snippet is cut on a rune boundary.
func NewParseError(source string, payload []byte, cause error) *ParseError {
	s := string(payload)
	if len(payload) > maxSnippetLen {
		cut := maxSnippetLen
		for cut > maxSnippetLen-utf8.UTFMax && !utf8.RuneStart(payload[cut]) {
			cut--
		}
		s = string(payload[:cut]) + "..."
	}
	return &ParseError{Source: source, Snippet: s, Cause: cause}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Source, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }
