package wal

import "fmt"

// InvalidOperationError reports a caller mistake the writer survives:
// the operation is rejected but the writer stays usable. Mirrors the
// shape of the row-store engine's ConstraintError.
type InvalidOperationError struct {
	Op     string
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("wal: invalid operation %s: %s", e.Op, e.Reason)
}

func invalidOp(op, reason string) error {
	return &InvalidOperationError{Op: op, Reason: reason}
}

// DistressError wraps the cause that pushed a writer into its sticky
// distressed state. Once set it is terminal: every subsequent call on the
// writer returns a DistressError wrapping the same original cause, and the
// host pool must discard the writer rather than recycle it.
type DistressError struct {
	Cause error
}

func (e *DistressError) Error() string {
	return fmt.Sprintf("wal: writer is distressed: %v", e.Cause)
}

func (e *DistressError) Unwrap() error {
	return e.Cause
}
