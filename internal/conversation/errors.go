package conversation

import "errors"

// Turn failure taxonomy. Transports map these to generic user-facing replies;
// raw collaborator errors never reach the caller verbatim.
var (
	// ErrGeneration marks a language-model transport failure. State merged
	// before the model call is retained; nothing after it is committed.
	ErrGeneration = errors.New("conversation: language model unavailable")

	// ErrAvailability marks a scheduling lookup failure. Availability flags
	// stay untouched so the gate re-fires on the next turn.
	ErrAvailability = errors.New("conversation: availability lookup failed")

	// ErrBooking marks a booking collaborator failure. confirmed stays set
	// and appointment_id stays nil, so the next turn retries the booking.
	ErrBooking = errors.New("conversation: booking failed")

	// ErrInsurance marks an insurance verification failure.
	ErrInsurance = errors.New("conversation: insurance verification failed")
)
