package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that an external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")

	// ErrSelfCitation indicates a citation edge from a paper to itself
	// was rejected by the configured policy.
	ErrSelfCitation = errors.New("self citation")

	// ErrCheckpoint is wrapped by every CheckpointPersistError.
	ErrCheckpoint = errors.New("checkpoint persist failed")

	// ErrConfiguration is wrapped by every ConfigurationError.
	ErrConfiguration = errors.New("invalid configuration")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns ErrInvalidInput for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// AlreadyExistsError provides details about a duplicate entity.
type AlreadyExistsError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *AlreadyExistsError) Unwrap() error {
	return ErrAlreadyExists
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// AdapterFetchError reports a network or parse failure of a single
// source adapter. It is never fatal for a harvest: the source is treated
// as exhausted for the current round and retried on the next.
type AdapterFetchError struct {
	Source string
	Offset int
	Err    error
}

// Error implements the error interface.
func (e *AdapterFetchError) Error() string {
	return fmt.Sprintf("fetch %s at offset %d: %v", e.Source, e.Offset, e.Err)
}

// Unwrap returns the underlying cause error.
func (e *AdapterFetchError) Unwrap() error {
	return e.Err
}

// RecordStoreWriteError reports a failed lookup or create for a single paper.
// The paper is skipped and counted; the round continues.
type RecordStoreWriteError struct {
	Title string
	Err   error
}

// Error implements the error interface.
func (e *RecordStoreWriteError) Error() string {
	return fmt.Sprintf("store paper %q: %v", e.Title, e.Err)
}

// Unwrap returns the underlying cause error.
func (e *RecordStoreWriteError) Unwrap() error {
	return e.Err
}

// CheckpointPersistError reports that harvest progress could not be
// written. Resumability can no longer be trusted, so the run stops.
type CheckpointPersistError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *CheckpointPersistError) Error() string {
	return fmt.Sprintf("persist checkpoint %s: %v", e.Path, e.Err)
}

// Unwrap returns both the cause and ErrCheckpoint so callers can match either.
func (e *CheckpointPersistError) Unwrap() []error {
	return []error{ErrCheckpoint, e.Err}
}

// ConfigurationError reports missing or invalid startup configuration.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Unwrap returns ErrConfiguration for use with errors.Is.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(entity, id string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewAdapterFetchError creates a new AdapterFetchError.
func NewAdapterFetchError(source string, offset int, err error) *AdapterFetchError {
	return &AdapterFetchError{Source: source, Offset: offset, Err: err}
}

// NewRecordStoreWriteError creates a new RecordStoreWriteError.
func NewRecordStoreWriteError(title string, err error) *RecordStoreWriteError {
	return &RecordStoreWriteError{Title: title, Err: err}
}

// NewCheckpointPersistError creates a new CheckpointPersistError.
func NewCheckpointPersistError(path string, err error) *CheckpointPersistError {
	return &CheckpointPersistError{Path: path, Err: err}
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}
