package clinic

import (
	"context"
	"errors"
)

// Slot is a candidate appointment opening.
type Slot struct {
	Doctor    string `json:"doctor"`
	Date      string `json:"date"` // YYYY-MM-DD
	Time      string `json:"time"` // HH:MM, 24-hour
	Available bool   `json:"available"`
}

// Availability is the result of a calendar lookup for one (doctor, date, time).
type Availability struct {
	IsAvailable    bool   `json:"is_available"`
	AvailableSlots []Slot `json:"available_slots"`
}

// PatientInfo identifies the patient an operation acts on behalf of.
type PatientInfo struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// AppointmentDetails describes the slot being booked.
type AppointmentDetails struct {
	Doctor string `json:"doctor"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason,omitempty"`
}

// BookingResult reports the outcome of a booking attempt.
type BookingResult struct {
	Success            bool   `json:"success"`
	AppointmentID      string `json:"appointment_id,omitempty"`
	ConfirmationNumber string `json:"confirmation_number,omitempty"`
	Error              string `json:"error,omitempty"`
}

// InsuranceDetails describes a coverage question.
type InsuranceDetails struct {
	Provider     string `json:"provider"`
	PolicyNumber string `json:"policy_number"`
	Procedure    string `json:"procedure,omitempty"`
}

// InsuranceResult is a coverage verification outcome.
type InsuranceResult struct {
	IsCovered             bool   `json:"is_covered"`
	CoveragePercentage    int    `json:"coverage_percentage"`
	DeductibleRemaining   int    `json:"deductible_remaining"`
	CopayAmount           int    `json:"copay_amount"`
	AuthorizationRequired bool   `json:"authorization_required"`
	Notes                 string `json:"notes,omitempty"`
}

// Scheduler answers availability queries and books appointments.
// CheckAvailability is a pure query; BookAppointment is side-effecting and the
// caller owns any at-most-once guard.
type Scheduler interface {
	CheckAvailability(ctx context.Context, date, timeOfDay, doctor string) (Availability, error)
	BookAppointment(ctx context.Context, patient PatientInfo, details AppointmentDetails) (BookingResult, error)
}

// InsuranceVerifier checks coverage with a payer.
type InsuranceVerifier interface {
	VerifyInsurance(ctx context.Context, patient PatientInfo, details InsuranceDetails) (InsuranceResult, error)
}

// ErrSlotTaken is returned when a booking races an identical slot.
var ErrSlotTaken = errors.New("clinic: slot already booked")
