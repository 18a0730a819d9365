package errors

import (
	"errors"
	"fmt"
)

// Common error values shared across the console packages
var (
	// Session errors
	ErrNoToken         = errors.New("no access token")
	ErrNoRefreshToken  = errors.New("no refresh token")
	ErrNoAuthenticator = errors.New("no authenticator bound to session")

	// Storage errors
	ErrNotFound = errors.New("not found")

	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")

	// General errors
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
