// internal/types/ids.go
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ButtonID identifies a button for the lifetime of its configuration
// document. IDs are assigned from a high-water mark and never reused.
type ButtonID int64

// InvocationID identifies a single accepted invocation of a button.
type InvocationID string

func (id ButtonID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseButtonID parses the decimal form produced by ButtonID.String.
func ParseButtonID(s string) (ButtonID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse button id %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("parse button id %q: must be positive", s)
	}
	return ButtonID(n), nil
}

func NewInvocationID() InvocationID {
	return InvocationID(uuid.New().String())
}
