package command

import "errors"

// ErrInFlight is returned when Execute is called while a previous call is Pending.
var ErrInFlight = errors.New("command already in flight")

// Validation sentinels.
var (
	ErrMissingToken  = errors.New("token id is required")
	ErrNoRecipients  = errors.New("at least one recipient is required")
	ErrEmptyResponse = errors.New("wallet returned no transaction id")
)

// ErrorKind classifies a reported command failure.
type ErrorKind string

const (
	// ValidationError means the input was rejected before the wallet was called.
	ValidationError ErrorKind = "validation"
	// WalletError means the wallet rejected or failed the operation.
	WalletError ErrorKind = "wallet"
)

// Error is a failure reported by a hook.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ValidationError
}

// IsWallet reports whether err is a wallet failure.
func IsWallet(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == WalletError
}
