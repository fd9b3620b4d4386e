/*
errors.go - Centralized error types for the query core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Indicator packages return these unchanged; callers branch with errors.Is.

ERROR CATEGORIES:
  1. Connectivity errors - The data store cannot be opened or reached
  2. Query errors - Malformed SQL or a parameter mismatch (programming error)
  3. Input errors - Bad dates, periods, windows, identifiers

  An empty result is NOT an error. Scalars normalize to 0, rows and
  tables come back empty.

USAGE:
  v, err := exec.Scalar(ctx, q)
  if errors.Is(err, generic.ErrConnectivity) {
      // backend outage, surface it
  }

SEE ALSO:
  - executor.go: Interface returning these errors
  - store/executor.go: Classifies driver errors
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConnectivity is returned when the backing store cannot be opened or reached.
	// Not retried here; retry policy belongs to the caller.
	ErrConnectivity = errors.New("data store unreachable")

	// ErrQuery is returned when the database rejects a statement.
	ErrQuery = errors.New("query failed")

	// ErrParamMismatch is returned when bound parameters do not match the
	// placeholders in the query text.
	ErrParamMismatch = errors.New("parameter mismatch")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidDate is returned when a date is not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidQuarter is returned for a quarter outside 1..4.
	ErrInvalidQuarter = errors.New("invalid quarter")

	// ErrInvalidGranularity is returned for a series step other than monthly or quarterly.
	ErrInvalidGranularity = errors.New("invalid granularity")

	// ErrSeriesTooLong is returned when a period splits into more sub-periods
	// than the configured limit.
	ErrSeriesTooLong = errors.New("series too long")

	// ErrUnknownWindow is returned for an unrecognized named reporting window.
	ErrUnknownWindow = errors.New("unknown reporting window")

	// ErrUnknownIdentifier is returned when a table or column name is not on the allow-list.
	ErrUnknownIdentifier = errors.New("identifier not allowed")

	// ErrUnknownIndicator is returned when a named indicator is not registered.
	ErrUnknownIndicator = errors.New("unknown indicator")

	// ErrColumnNotFound is returned when a result table has no such column.
	ErrColumnNotFound = errors.New("column not found")

	// ErrParticipantNotFound is returned when a member_id has no ppts row.
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrInvalidReport is returned for a malformed report definition.
	ErrInvalidReport = errors.New("invalid report definition")

	// ErrInvalidArgument is returned for a missing or empty search argument.
	ErrInvalidArgument = errors.New("invalid argument")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConnectivityError records which store could not be reached.
type ConnectivityError struct {
	Driver string
	Err    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrConnectivity, e.Driver, e.Err)
}

func (e *ConnectivityError) Unwrap() []error { return []error{ErrConnectivity, e.Err} }

// QueryError records the failing operation and statement.
type QueryError struct {
	Op  string // scalar, rows, table
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrQuery, e.Op, e.Err)
}

func (e *QueryError) Unwrap() []error { return []error{ErrQuery, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConnectivity returns true if the backing store could not be reached.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidQuarter) ||
		errors.Is(err, ErrInvalidGranularity) ||
		errors.Is(err, ErrSeriesTooLong) ||
		errors.Is(err, ErrUnknownWindow) ||
		errors.Is(err, ErrUnknownIdentifier) ||
		errors.Is(err, ErrInvalidReport) ||
		errors.Is(err, ErrInvalidArgument)
}

// IsNotFound returns true if the error indicates a missing indicator, column
// or participant.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownIndicator) ||
		errors.Is(err, ErrColumnNotFound) ||
		errors.Is(err, ErrParticipantNotFound)
}
