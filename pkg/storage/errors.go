package storage

import (
	"errors"
	"fmt"
	"strings"

	"mercator-hq/datastore/pkg/telemetry/logging"
)

var (
	// ErrUnknownMethod is returned when no factory is registered for a method.
	ErrUnknownMethod = errors.New("unknown storage method")

	// ErrNoTargetColumn is returned by GetAllValues for tables that lack
	// the target column. Migration skips such tables.
	ErrNoTargetColumn = errors.New("table has no target column")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("storage backend is closed")
)

// ConnectionError reports that a backend could not be opened. URL and
// Properties are stored redacted, so the error is safe to log.
type ConnectionError struct {
	Method     Method
	URL        string
	Properties map[string]string
	Cause      error
}

// NewConnectionError creates a ConnectionError, redacting credentials
// from url and props.
func NewConnectionError(method Method, url string, props map[string]string, cause error) *ConnectionError {
	return &ConnectionError{
		Method:     method,
		URL:        logging.RedactDSN(url),
		Properties: logging.RedactProperties(props),
		Cause:      cause,
	}
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "failed to connect to %s storage", e.Method)
	if e.URL != "" {
		fmt.Fprintf(&sb, " at %s", e.URL)
	}
	if len(e.Properties) > 0 {
		fmt.Fprintf(&sb, " with properties %v", e.Properties)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	return sb.String()
}

// Unwrap returns the underlying cause error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// SchemaError reports a failed table or column creation. Column is empty
// for table failures.
type SchemaError struct {
	Table  string
	Column string
	Cause  error
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(table, column string, cause error) *SchemaError {
	return &SchemaError{Table: table, Column: column, Cause: cause}
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("failed to create table %q: %v", e.Table, e.Cause)
	}
	return fmt.Sprintf("failed to create column %q in table %q: %v", e.Column, e.Table, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *SchemaError) Unwrap() error {
	return e.Cause
}

// OperationError reports a failed read or write.
type OperationError struct {
	Method    Method
	Operation string
	Table     string
	Target    string
	Column    string
	Cause     error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "storage error [method=%s, operation=%s, table=%s", e.Method, e.Operation, e.Table)
	if e.Target != "" {
		fmt.Fprintf(&sb, ", target=%s", e.Target)
	}
	if e.Column != "" {
		fmt.Fprintf(&sb, ", column=%s", e.Column)
	}
	fmt.Fprintf(&sb, "]: %v", e.Cause)
	return sb.String()
}

// Unwrap returns the underlying cause error.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// RecordError reports a record that could not be written during a flush
// or a migration. Values holds the present values of the record.
type RecordError struct {
	Table  string
	Target string
	Values map[string]string
	Cause  error
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	return fmt.Sprintf("failed to write record [table=%s, target=%s, values=%v]: %v", e.Table, e.Target, e.Values, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecordError) Unwrap() error {
	return e.Cause
}

// CutoverError reports a failed step of the configuration file rotation
// that ends a migration. Instructions tell an operator how to finish the
// rotation by hand.
type CutoverError struct {
	Step         string
	Instructions []string
	Cause        error
}

// Error implements the error interface.
func (e *CutoverError) Error() string {
	return fmt.Sprintf("migration cutover failed at %s: %v", e.Step, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *CutoverError) Unwrap() error {
	return e.Cause
}
