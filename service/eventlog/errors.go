package eventlog

import (
	"errors"
	"fmt"
)

// ErrUnauthorized marks authorization failures from the persistence
// boundary. Stores wrap their backend's permission errors with it so that
// callers see one uniform error regardless of which operation tripped it.
var ErrUnauthorized = errors.New("unauthorized")

// Unauthorized wraps err uniformly as an authorization failure.
func Unauthorized(operation string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnauthorized, operation, err)
}
