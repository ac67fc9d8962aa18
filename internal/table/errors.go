package table

import "fmt"

// MissingColumnError indicates a referenced column is absent from a table's
// schema. It is a contract violation by the caller, not a data condition, so
// callers should treat it as fatal rather than recording and continuing.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not in schema", e.Column)
}
