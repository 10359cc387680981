package leads

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidProfile wraps every profile validation failure.
	ErrInvalidProfile = errors.New("invalid applicant profile")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrSealerKey is returned for an unusable encryption key.
	ErrSealerKey = errors.New("leads: encryption key must decode to 32 bytes")

	// ErrSealedPayload is returned when a sealed profile cannot be opened.
	ErrSealedPayload = errors.New("leads: sealed profile could not be decrypted")
)

// ValidationError lists every problem found in a profile.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return ErrInvalidProfile.Error() + ": " + strings.Join(e.Details, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidProfile
}
