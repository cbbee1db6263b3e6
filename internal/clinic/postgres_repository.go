package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrProviderUnknown signals the payer has no row in insurance_providers.
var ErrProviderUnknown = errors.New("clinic: insurance provider unknown")

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists patients, appointments and insurance providers.
type Repository struct {
	db DB
}

// NewRepository wraps a pgx pool (or mock) in the clinic repository.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("clinic: db required")
	}
	return &Repository{db: db}
}

// GetOrCreatePatient finds a patient by name or inserts a new row.
func (r *Repository) GetOrCreatePatient(ctx context.Context, patient PatientInfo) (string, error) {
	var id string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM patients WHERE name = $1`,
		patient.Name,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("clinic: patient lookup failed: %w", err)
	}

	id = uuid.NewString()
	if _, err := r.db.Exec(ctx,
		`INSERT INTO patients (id, name, email, phone, created_at) VALUES ($1, $2, $3, $4, $5)`,
		id, patient.Name, patient.Email, patient.Phone, time.Now().UTC(),
	); err != nil {
		return "", fmt.Errorf("clinic: patient insert failed: %w", err)
	}
	return id, nil
}

// RecordBooking stores an appointment row for a booked slot.
func (r *Repository) RecordBooking(ctx context.Context, patient PatientInfo, details AppointmentDetails, appointmentID, confirmationNumber string) error {
	patientID, err := r.GetOrCreatePatient(ctx, patient)
	if err != nil {
		return err
	}

	scheduledFor, err := time.Parse("2006-01-02 15:04", details.Date+" "+details.Time)
	if err != nil {
		return fmt.Errorf("clinic: bad appointment timestamp: %w", err)
	}

	if _, err := r.db.Exec(ctx,
		`INSERT INTO appointments (id, patient_id, doctor_name, scheduled_for, reason, status, confirmation_number, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		appointmentID, patientID, details.Doctor, scheduledFor, details.Reason,
		"scheduled", confirmationNumber, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("clinic: appointment insert failed: %w", err)
	}
	return nil
}

// ProviderAccepted reports whether the payer is contracted with the clinic.
func (r *Repository) ProviderAccepted(ctx context.Context, provider string) (bool, error) {
	var accepted bool
	err := r.db.QueryRow(ctx,
		`SELECT accepted FROM insurance_providers WHERE name ILIKE '%' || $1 || '%'`,
		provider,
	).Scan(&accepted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrProviderUnknown
		}
		return false, fmt.Errorf("clinic: provider lookup failed: %w", err)
	}
	return accepted, nil
}

// AppointmentsForPatient lists booked appointments, newest first.
func (r *Repository) AppointmentsForPatient(ctx context.Context, patientID string) ([]AppointmentRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, doctor_name, scheduled_for, status, confirmation_number
		 FROM appointments WHERE patient_id = $1 ORDER BY scheduled_for DESC`,
		patientID,
	)
	if err != nil {
		return nil, fmt.Errorf("clinic: appointment select failed: %w", err)
	}
	defer rows.Close()

	var out []AppointmentRecord
	for rows.Next() {
		var rec AppointmentRecord
		if err := rows.Scan(&rec.ID, &rec.DoctorName, &rec.ScheduledFor, &rec.Status, &rec.ConfirmationNumber); err != nil {
			return nil, fmt.Errorf("clinic: appointment scan failed: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clinic: appointment rows failed: %w", err)
	}
	return out, nil
}

// AppointmentRecord is a stored appointment row.
type AppointmentRecord struct {
	ID                 string
	DoctorName         string
	ScheduledFor       time.Time
	Status             string
	ConfirmationNumber string
}
