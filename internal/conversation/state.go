package conversation

import (
	"github.com/confidohealth/voice-receptionist/internal/clinic"
)

// Task is the inferred conversation goal.
type Task string

const (
	TaskNone        Task = ""
	TaskAppointment Task = "appointment"
	TaskInsurance   Task = "insurance"
)

// Phase is the derived position in the booking flow, used for logging and
// response metadata. It is computed from state, never stored.
type Phase string

const (
	PhaseCollecting      Phase = "collecting"
	PhaseChecked         Phase = "checked"
	PhaseAwaitingConfirm Phase = "awaiting_confirm"
	PhaseBooked          Phase = "booked"
)

// State tracks everything the receptionist knows about one session.
//
// Fields are pointer-optional so "not yet known" is distinct from a real
// value; a known field is never reset to nil, only replaced on an explicit
// correction (see Merge).
//
// AvailabilityChecked, IsAvailable, AvailableSlots and AppointmentID are
// backend-authoritative: only collaborator results may set them, never the
// language model's narration.
type State struct {
	Task              Task    `json:"task,omitempty"`
	FirstName         *string `json:"first_name,omitempty"`
	FullName          *string `json:"full_name,omitempty"`
	Doctor            *string `json:"doctor,omitempty"`
	Date              *string `json:"date,omitempty"` // YYYY-MM-DD
	Time              *string `json:"time,omitempty"` // HH:MM, 24-hour
	InsuranceProvider *string `json:"insurance_provider,omitempty"`
	InsuranceNumber   *string `json:"insurance_number,omitempty"`

	Confirmed           bool          `json:"confirmed"`
	AvailabilityChecked bool          `json:"availability_checked"`
	IsAvailable         *bool         `json:"is_available,omitempty"`
	AvailableSlots      []clinic.Slot `json:"available_slots,omitempty"`
	AppointmentID       *string       `json:"appointment_id,omitempty"`

	InsuranceVerified bool  `json:"insurance_verified"`
	InsuranceCovered  *bool `json:"insurance_covered,omitempty"`
}

// ResetAvailability invalidates the last lookup. Called whenever the
// (doctor, date, time) triple changes so the gate re-fires.
func (s *State) ResetAvailability() {
	s.AvailabilityChecked = false
	s.IsAvailable = nil
	s.AvailableSlots = nil
}

// AppointmentFieldsKnown reports whether doctor, date and time are all set.
func (s *State) AppointmentFieldsKnown() bool {
	return s.Doctor != nil && s.Date != nil && s.Time != nil
}

// NeedsAvailabilityCheck reports whether the availability gate should fire.
// The IsAvailable == nil guard keeps the lookup at-most-once per triple.
func (s *State) NeedsAvailabilityCheck() bool {
	return s.Task == TaskAppointment && s.AppointmentFieldsKnown() && s.IsAvailable == nil
}

// SelfHeal repairs the availability_checked-without-result inconsistency by
// forcing the gate to re-run. Returns true when a repair happened.
func (s *State) SelfHeal() bool {
	if s.AvailabilityChecked && s.IsAvailable == nil {
		s.AvailabilityChecked = false
		return true
	}
	return false
}

// Phase derives the current position in the booking flow.
func (s *State) Phase() Phase {
	switch {
	case s.AppointmentID != nil:
		return PhaseBooked
	case s.AvailabilityChecked && s.IsAvailable != nil && *s.IsAvailable:
		return PhaseAwaitingConfirm
	case s.AvailabilityChecked:
		return PhaseChecked
	default:
		return PhaseCollecting
	}
}

// PatientName returns the best known name for collaborator calls.
func (s *State) PatientName() string {
	if s.FullName != nil {
		return *s.FullName
	}
	if s.FirstName != nil {
		return *s.FirstName
	}
	return "Patient"
}
