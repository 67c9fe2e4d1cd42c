package bookings

import (
	"errors"

	"slotbook/backend/internal/store"
)

// Rejections of a booking mutation. Each one leaves the store unchanged.
var (
	ErrSlotTaken           = errors.New("slot already booked")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrPastStart           = errors.New("start is in the past")
	ErrTooFarAhead         = errors.New("start is too far ahead")
	ErrCutoffPassed        = errors.New("modification cutoff passed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrBookingCancelled    = errors.New("booking is cancelled")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

var reasons = []struct {
	err  error
	code string
}{
	{ErrSlotTaken, "SlotTaken"},
	{ErrProviderUnavailable, "ProviderUnavailable"},
	{ErrPastStart, "PastStart"},
	{ErrTooFarAhead, "TooFarAhead"},
	{ErrCutoffPassed, "CutoffPassed"},
	{ErrBookingCancelled, "BookingCancelled"},
	{ErrInvalidTransition, "InvalidTransition"},
	{store.ErrIdempotencyConflict, "IdempotencyConflict"},
}

// ConflictReason returns the stable reason code for a rejected mutation.
// ErrUnauthorized is not a conflict and has no code.
func ConflictReason(err error) (string, bool) {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code, true
		}
	}
	return "", false
}
