package fieldgate

import "errors"

var (
	// ErrExcludedTable is returned when an operation targets a reserved or
	// caller-excluded table. Checked before any permission logic.
	ErrExcludedTable = errors.New("fieldgate: table is excluded")

	// ErrAuthenticationRequired is returned when enforcement is on and no
	// user context accompanies the request.
	ErrAuthenticationRequired = errors.New("fieldgate: authentication required")

	// ErrPermissionDenied is returned when an identity is present but no
	// rule grants the requested operation.
	ErrPermissionDenied = errors.New("fieldgate: permission denied")

	// ErrNoPermissions is returned when a table has no permission document
	// at all. Distinct from ErrPermissionDenied so callers can tell a
	// configuration gap from an explicit deny.
	ErrNoPermissions = errors.New("fieldgate: no permissions defined")

	// ErrTableNotFound is returned when an operation targets a table that
	// does not exist.
	ErrTableNotFound = errors.New("fieldgate: table not found")

	// ErrRowNotFound is returned by single-row update/delete when the id
	// matches nothing.
	ErrRowNotFound = errors.New("fieldgate: row not found")

	// ErrFunctionNotFound is returned when a customFunction rule names an
	// unregistered predicate. Rule evaluation itself fails closed; this
	// sentinel is for registry callers.
	ErrFunctionNotFound = errors.New("fieldgate: custom function not found")
)
