package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTier signals a tier name outside the tier table.
	ErrInvalidTier = errors.New("invalid tier")
	// ErrInvalidOwner signals a missing owner identity.
	ErrInvalidOwner = errors.New("invalid owner")
	// ErrTokenNotFound signals a credential with no usage record.
	ErrTokenNotFound = errors.New("token not found")
	// ErrInvalidCredential signals a missing, malformed or badly signed credential.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrQuotaExceeded signals that the owner's daily aggregate reached the ceiling.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrUnsupportedLanguage signals a language with no runner bound to it.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrEmptySource signals a request without source code.
	ErrEmptySource = errors.New("source code is required")
	// ErrRunnerError signals a remote runner invocation failure.
	ErrRunnerError = errors.New("runner error")
	// ErrStorageUnavailable signals a transient token store failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// QuotaExceededError wraps ErrQuotaExceeded with the figures the caller needs
// to decide between waiting and upgrading.
type QuotaExceededError struct {
	Aggregate int64
	Ceiling   int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: %d of %d requests used today", ErrQuotaExceeded.Error(), e.Aggregate, e.Ceiling)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// NewQuotaExceeded creates a quota exceeded error.
func NewQuotaExceeded(aggregate, ceiling int64) error {
	return &QuotaExceededError{Aggregate: aggregate, Ceiling: ceiling}
}

// Unavailable marks err as a storage failure while keeping the cause in the chain.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return errors.Join(ErrStorageUnavailable, err)
}
