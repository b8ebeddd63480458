package booking

import (
	"errors"
	"fmt"
)

// ErrSlotUnavailable means the requested slot is not in the staff member's
// current availability: outside working hours, during time off, or taken
// between the client's slot query and the booking attempt.
var ErrSlotUnavailable = errors.New("slot unavailable")

// ValidationError rejects a booking request before any database write. Field
// names the offending request field so clients can surface it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
