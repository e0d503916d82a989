package domain

import (
	"fmt"
	"strings"
)

// ErrSchemaViolation is returned when a configuration or preset document does
// not match the expected shape. Errors holds one entry per failing location.
type ErrSchemaViolation struct {
	Errors []string
}

func (e *ErrSchemaViolation) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Errors, "; "))
}
