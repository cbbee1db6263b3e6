package clinic

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

// MemoryScheduler serves availability and bookings from an in-memory calendar.
// It backs local development and the conversation engine's tests; production
// deployments swap in an EMR-backed implementation behind the same interfaces.
type MemoryScheduler struct {
	mu       sync.Mutex
	calendar map[string]map[string][]int // doctor -> date -> open hours
	booked   map[string]string           // doctor|date|time -> appointment id
	repo     *Repository                 // optional, persists bookings when set
	logger   *logging.Logger
}

// MemorySchedulerOption configures the scheduler.
type MemorySchedulerOption func(*MemoryScheduler)

// WithRepository persists booked appointments through the clinic repository.
func WithRepository(repo *Repository) MemorySchedulerOption {
	return func(s *MemoryScheduler) {
		s.repo = repo
	}
}

// WithCalendar replaces the seeded demo calendar.
func WithCalendar(calendar map[string]map[string][]int) MemorySchedulerOption {
	return func(s *MemoryScheduler) {
		s.calendar = calendar
	}
}

// NewMemoryScheduler builds a scheduler seeded with the demo calendar.
func NewMemoryScheduler(logger *logging.Logger, opts ...MemorySchedulerOption) *MemoryScheduler {
	if logger == nil {
		logger = logging.Default()
	}
	s := &MemoryScheduler{
		calendar: demoCalendar(time.Now().Year()),
		booked:   make(map[string]string),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// demoCalendar mirrors the clinic's demo schedule for the given year.
func demoCalendar(year int) map[string]map[string][]int {
	june := func(day int) string { return fmt.Sprintf("%d-06-%02d", year, day) }
	return map[string]map[string][]int{
		"Dr. Jackson": {
			june(4): {9, 10, 14, 16},
			june(5): {11, 13, 15},
		},
		"Dr. Smith": {
			june(4): {9, 11, 13, 15},
			june(5): {10, 12, 14, 16},
		},
		"Dr. Williams": {
			june(4): {10, 12, 14},
			june(5): {9, 11, 15},
		},
	}
}

// CheckAvailability reports whether the slot is open and lists the doctor's
// other openings on that date. Unknown doctors default to available, unknown
// dates to unavailable with no alternatives.
func (s *MemoryScheduler) CheckAvailability(ctx context.Context, date, timeOfDay, doctor string) (Availability, error) {
	if err := ctx.Err(); err != nil {
		return Availability{}, err
	}

	hour, err := parseHour(timeOfDay)
	if err != nil {
		return Availability{}, fmt.Errorf("clinic: bad time %q: %w", timeOfDay, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	days, ok := s.calendar[doctor]
	if !ok {
		s.logger.Debug("doctor not in calendar, defaulting to available", "doctor", doctor)
		return Availability{IsAvailable: true}, nil
	}

	hours, ok := days[date]
	if !ok {
		s.logger.Debug("date not in calendar, defaulting to unavailable", "doctor", doctor, "date", date)
		return Availability{IsAvailable: false}, nil
	}

	avail := Availability{}
	for _, h := range hours {
		slotTime := fmt.Sprintf("%02d:00", h)
		if s.booked[slotKey(doctor, date, slotTime)] != "" {
			continue
		}
		if h == hour {
			avail.IsAvailable = true
		}
		avail.AvailableSlots = append(avail.AvailableSlots, Slot{
			Doctor:    doctor,
			Date:      date,
			Time:      slotTime,
			Available: true,
		})
	}
	sort.Slice(avail.AvailableSlots, func(i, j int) bool {
		return avail.AvailableSlots[i].Time < avail.AvailableSlots[j].Time
	})
	return avail, nil
}

// BookAppointment records the booking and returns a confirmation number.
func (s *MemoryScheduler) BookAppointment(ctx context.Context, patient PatientInfo, details AppointmentDetails) (BookingResult, error) {
	if err := ctx.Err(); err != nil {
		return BookingResult{}, err
	}
	if details.Doctor == "" || details.Date == "" || details.Time == "" {
		return BookingResult{Success: false, Error: "missing appointment details"}, nil
	}

	s.mu.Lock()
	key := slotKey(details.Doctor, details.Date, details.Time)
	if s.booked[key] != "" {
		s.mu.Unlock()
		return BookingResult{Success: false, Error: ErrSlotTaken.Error()}, nil
	}
	id := uuid.NewString()
	s.booked[key] = id
	s.mu.Unlock()

	confirmation := confirmationNumber(key)
	if s.repo != nil {
		if err := s.repo.RecordBooking(ctx, patient, details, id, confirmation); err != nil {
			// Booking stands; persistence is best-effort and retried offline.
			s.logger.Error("failed to persist booking", "error", err, "appointment_id", id)
		}
	}

	s.logger.Info("appointment booked",
		"appointment_id", id,
		"doctor", details.Doctor,
		"date", details.Date,
		"time", details.Time,
	)
	return BookingResult{
		Success:            true,
		AppointmentID:      id,
		ConfirmationNumber: confirmation,
	}, nil
}

// acceptedProviders lists payers the clinic has contracts with.
var acceptedProviders = []string{"blue cross", "aetna", "cigna", "unitedhealthcare", "united healthcare"}

// VerifyInsurance simulates a payer eligibility check. Results are
// deterministic in the policy number so conversations can be replayed.
func (s *MemoryScheduler) VerifyInsurance(ctx context.Context, patient PatientInfo, details InsuranceDetails) (InsuranceResult, error) {
	if err := ctx.Err(); err != nil {
		return InsuranceResult{}, err
	}

	provider := strings.TrimSpace(details.Provider)
	accepted := false
	for _, p := range acceptedProviders {
		if strings.Contains(strings.ToLower(provider), p) {
			accepted = true
			break
		}
	}
	if s.repo != nil {
		if dbAccepted, err := s.repo.ProviderAccepted(ctx, provider); err == nil {
			accepted = dbAccepted
		}
	}

	if !accepted {
		return InsuranceResult{
			IsCovered: false,
			Notes:     fmt.Sprintf("Insurance provider %s is not accepted or policy %s could not be verified.", provider, details.PolicyNumber),
		}, nil
	}

	seed := fnvHash(details.PolicyNumber)
	coverage := 70 + int(seed%31) // 70-100
	return InsuranceResult{
		IsCovered:             true,
		CoveragePercentage:    coverage,
		DeductibleRemaining:   int(seed % 2001),
		CopayAmount:           10 + int(seed%41),
		AuthorizationRequired: seed%10 < 3,
		Notes:                 fmt.Sprintf("Policy %s verified with %s.", details.PolicyNumber, provider),
	}, nil
}

func slotKey(doctor, date, timeOfDay string) string {
	return doctor + "|" + date + "|" + timeOfDay
}

// confirmationNumber derives a letter + 7 digits reference from the slot key.
func confirmationNumber(key string) string {
	seed := fnvHash(key)
	letter := rune('A' + seed%26)
	return fmt.Sprintf("%c%07d", letter, seed%10000000)
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func parseHour(timeOfDay string) (int, error) {
	parts := strings.SplitN(timeOfDay, ":", 2)
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour %d out of range", hour)
	}
	return hour, nil
}
