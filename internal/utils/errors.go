package utils

import (
	"errors"
	"fmt"
)

// Custom error types
var (
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an identifier collides with existing data
	ErrConflict = errors.New("conflict")

	// ErrDatabase is returned when there's a database operation error
	ErrDatabase = errors.New("database error")

	// ErrAlreadyCompleted is returned when completing a task that is already completed
	ErrAlreadyCompleted = errors.New("already completed")

	// ErrNotCompleted is returned when reopening a task that is not completed
	ErrNotCompleted = errors.New("not completed")
)

// Store startup errors. All of them are fatal: the process must not run
// against a half-migrated schema.
var (
	ErrVersionOrder    = errors.New("migration version out of order")
	ErrMigrationFailed = errors.New("migration failed")
	ErrSchemaTooNew    = errors.New("schema is newer than this build")
	ErrSchemaNotReady  = errors.New("schema not migrated")
)

// ValidationError represents an error that occurs during input validation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DuplicateIDError is returned when inserting a record whose ID is already taken
type DuplicateIDError struct {
	Resource string
	ID       string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s with ID '%s' already exists", e.Resource, e.ID)
}

func (e *DuplicateIDError) Unwrap() error {
	return ErrConflict
}

// DatabaseError represents an error that occurs during database operations.
// It unwraps to both ErrDatabase and the underlying cause.
type DatabaseError struct {
	Operation string
	Cause     error
}

func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("database error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("database error during %s", e.Operation)
}

func (e *DatabaseError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrDatabase}
	}
	return []error{ErrDatabase, e.Cause}
}

// AlreadyCompletedError is returned by lifecycle operations on a completed task
type AlreadyCompletedError struct {
	ID string
}

func (e *AlreadyCompletedError) Error() string {
	return fmt.Sprintf("task '%s' is already completed", e.ID)
}

func (e *AlreadyCompletedError) Unwrap() error {
	return ErrAlreadyCompleted
}

// NotCompletedError is returned when reopening a task that was never completed
type NotCompletedError struct {
	ID string
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("task '%s' is not completed", e.ID)
}

func (e *NotCompletedError) Unwrap() error {
	return ErrNotCompleted
}

// VersionOrderError is returned when the ledger is asked to record a version
// that is not exactly one past the current version
type VersionOrderError struct {
	Current   int
	Attempted int
}

func (e *VersionOrderError) Error() string {
	return fmt.Sprintf("cannot record schema version %d: current version is %d, expected %d",
		e.Attempted, e.Current, e.Current+1)
}

func (e *VersionOrderError) Unwrap() error {
	return ErrVersionOrder
}

// MigrationFailedError wraps the cause of a failed migration step
type MigrationFailedError struct {
	Version int
	Name    string
	Cause   error
}

func (e *MigrationFailedError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("migration %d (%s) failed: %v", e.Version, e.Name, e.Cause)
	}
	return fmt.Sprintf("migration %d failed: %v", e.Version, e.Cause)
}

func (e *MigrationFailedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrMigrationFailed}
	}
	return []error{ErrMigrationFailed, e.Cause}
}

// SchemaTooNewError is returned when a store was migrated by a newer build
type SchemaTooNewError struct {
	StoreVersion   int
	CatalogVersion int
}

func (e *SchemaTooNewError) Error() string {
	return fmt.Sprintf("store schema version %d is newer than the latest known version %d",
		e.StoreVersion, e.CatalogVersion)
}

func (e *SchemaTooNewError) Unwrap() error {
	return ErrSchemaTooNew
}

// Error wrapping functions

// WrapValidationError wraps an error as a validation error
func WrapValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// WrapNotFoundError wraps an error as a not found error
func WrapNotFoundError(resource, id string) error {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// WrapDuplicateIDError wraps an ID collision
func WrapDuplicateIDError(resource, id string) error {
	return &DuplicateIDError{
		Resource: resource,
		ID:       id,
	}
}

// WrapDatabaseError wraps an error as a database error
func WrapDatabaseError(operation string, cause error) error {
	return &DatabaseError{
		Operation: operation,
		Cause:     cause,
	}
}

// Error checking functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflictError checks if an error is a duplicate ID error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsDatabaseError checks if an error is a database error
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// IsAlreadyCompletedError checks if an error is an already-completed error
func IsAlreadyCompletedError(err error) bool {
	return errors.Is(err, ErrAlreadyCompleted)
}

// IsNotCompletedError checks if an error is a not-completed error
func IsNotCompletedError(err error) bool {
	return errors.Is(err, ErrNotCompleted)
}

// IsStartupError reports whether err must abort store startup
func IsStartupError(err error) bool {
	return errors.Is(err, ErrVersionOrder) ||
		errors.Is(err, ErrMigrationFailed) ||
		errors.Is(err, ErrSchemaTooNew)
}

// Helper function to create a validation error for required fields
func RequiredFieldError(field string) error {
	return WrapValidationError(field, "field is required")
}

// Helper function to create a validation error for invalid field values
func InvalidFieldError(field, reason string) error {
	return WrapValidationError(field, reason)
}
