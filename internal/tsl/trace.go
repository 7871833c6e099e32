package tsl

import (
	"strings"

	"github.com/google/uuid"
)

// NewTraceID returns a fresh uppercase hex identifier for correlating a
// request with its response.
func NewTraceID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
