package storage

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable is returned by any operation attempted without a live
// connection. The hybrid manager also wraps it when neither the primary nor
// the fallback backend can connect.
var ErrBackendUnavailable = errors.New("storage: backend unavailable")

// SchemaError reports a DDL statement the engine rejected.
//
// Stmt carries the statement that failed so operators can replay it by hand;
// the wrapped error carries the engine's reason.
type SchemaError struct {
	Table string
	Stmt  string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// InsertError reports a bulk insert the engine rejected, or one where the
// engine's reported row count disagrees with what was sent.
//
// Edge cases:
//   - Err may be nil for a pure count mismatch; Error still describes it.
type InsertError struct {
	Table    string
	Expected int64
	Inserted int64
	Err      error
}

func (e *InsertError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("insert %s: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("insert %s: inserted %d of %d rows", e.Table, e.Inserted, e.Expected)
}

func (e *InsertError) Unwrap() error { return e.Err }
