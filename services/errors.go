package services

import "fmt"

// ValidationError reports bad input to a lifecycle operation (missing field,
// unknown enum value, empty task selection). Maps to HTTP 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StateConflictError reports an operation that is not valid for the entity's
// current status (e.g. finalizing a non-draft invoice). Maps to HTTP 409.
type StateConflictError struct {
	Entity  string
	Current string
	Op      string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("cannot %s %s in status %q", e.Op, e.Entity, e.Current)
}

// NotFoundError reports an absent task/project/invoice/receivable. Maps to 404.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// OverpaymentError reports a payment exceeding the receivable's remaining
// amount. Maps to HTTP 400.
type OverpaymentError struct {
	Requested float64
	Remaining float64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment %.2f exceeds remaining %.2f", e.Requested, e.Remaining)
}
