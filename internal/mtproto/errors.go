package mtproto

import (
	"errors"
	"fmt"
)

// Failure signals the core must tell apart, per the protocol contract.
var (
	// ErrCodeExpired: the verification code outlived its validity window.
	ErrCodeExpired = errors.New("mtproto: verification code expired")

	// ErrCodeInvalid: the submitted code does not match.
	ErrCodeInvalid = errors.New("mtproto: verification code invalid")

	// ErrPasswordNeeded: sign-in succeeded up to the second factor; the
	// account requires a password to finish.
	ErrPasswordNeeded = errors.New("mtproto: two-step password needed")

	// ErrNotAuthorized: the session string does not carry a live
	// authorization.
	ErrNotAuthorized = errors.New("mtproto: not authorized")
)

// MigrateError is the server-driven reassignment signal: the current
// operation must be retried against another data center. Not a failure.
type MigrateError struct {
	DC int
}

func (e *MigrateError) Error() string {
	return fmt.Sprintf("mtproto: migrate to DC %d", e.DC)
}

// AsMigrate unwraps err into a MigrateError if it carries one.
func AsMigrate(err error) (*MigrateError, bool) {
	var me *MigrateError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}
