package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confidohealth/voice-receptionist/internal/clinic"
)

// scriptedLLM returns canned envelope replies in order, repeating the last
// one when the script runs out. Safe for concurrent turns.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func (s *scriptedLLM) Complete(_ context.Context, _ []ChatMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.replies) == 0 {
		return `{"assistant": "Okay.", "debug_state": {}}`, nil
	}
	idx := s.calls - 1
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	return s.replies[idx], nil
}

type errLLM struct{ err error }

func (e *errLLM) Complete(_ context.Context, _ []ChatMessage) (string, error) {
	return "", e.err
}

// countingScheduler wraps a scheduler and counts availability lookups.
type countingScheduler struct {
	clinic.Scheduler
	checks int
}

func (c *countingScheduler) CheckAvailability(ctx context.Context, date, timeOfDay, doctor string) (clinic.Availability, error) {
	c.checks++
	return c.Scheduler.CheckAvailability(ctx, date, timeOfDay, doctor)
}

// failingScheduler fails the configured operation.
type failingScheduler struct {
	clinic.Scheduler
	availErr error
	bookErr  error
}

func (f *failingScheduler) CheckAvailability(ctx context.Context, date, timeOfDay, doctor string) (clinic.Availability, error) {
	if f.availErr != nil {
		return clinic.Availability{}, f.availErr
	}
	return f.Scheduler.CheckAvailability(ctx, date, timeOfDay, doctor)
}

func (f *failingScheduler) BookAppointment(ctx context.Context, patient clinic.PatientInfo, details clinic.AppointmentDetails) (clinic.BookingResult, error) {
	if f.bookErr != nil {
		return clinic.BookingResult{}, f.bookErr
	}
	return f.Scheduler.BookAppointment(ctx, patient, details)
}

func newTestEngine(t *testing.T, llm LLMClient, scheduler clinic.Scheduler) (*Engine, *SessionStore) {
	t.Helper()
	store := NewSessionStore(time.Hour, nil)
	memory := clinic.NewMemoryScheduler(nil)
	if scheduler == nil {
		scheduler = memory
	}
	engine := NewEngine(store, llm, scheduler, WithVerifier(memory))
	return engine, store
}

func juneDate(day int) string {
	return fmt.Sprintf("%d-06-%02d", time.Now().Year(), day)
}

func TestEngine_HappyPathBooking(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`{"assistant": "Dr. Jackson is free then, John. Shall I book it?", "debug_state": {"task": "appointment"}}`,
		`{"assistant": "Booking it now.", "debug_state": {}}`,
	}}
	engine, _ := newTestEngine(t, llm, nil)
	ctx := context.Background()

	res, err := engine.ProcessTurn(ctx, "call-1",
		"Hi, I'm John Smith. I'd like to book an appointment with Dr. Jackson on June 4th at 10 AM.")
	require.NoError(t, err)

	st := res.State
	require.NotNil(t, st.Doctor)
	assert.Equal(t, "Dr. Jackson", *st.Doctor)
	require.NotNil(t, st.Date)
	assert.Equal(t, juneDate(4), *st.Date)
	require.NotNil(t, st.Time)
	assert.Equal(t, "10:00", *st.Time)
	assert.True(t, st.AvailabilityChecked)
	require.NotNil(t, st.IsAvailable)
	assert.True(t, *st.IsAvailable)
	assert.False(t, st.Confirmed)
	assert.Equal(t, PhaseAwaitingConfirm, res.Phase)

	res, err = engine.ProcessTurn(ctx, "call-1", "Yes, please book it.")
	require.NoError(t, err)

	assert.True(t, res.State.Confirmed)
	require.NotNil(t, res.State.AppointmentID)
	assert.Equal(t, PhaseBooked, res.Phase)
	assert.Contains(t, res.Reply, "is confirmed")
	assert.Contains(t, res.Reply, "Dr. Jackson")
}

func TestEngine_UnavailableSlotThenAlternative(t *testing.T) {
	llm := &scriptedLLM{}
	engine, _ := newTestEngine(t, llm, nil)
	ctx := context.Background()

	// 13:00 is not on Dr. Jackson's June 4th calendar.
	res, err := engine.ProcessTurn(ctx, "call-2",
		"I'm Jane Doe. I need an appointment with Dr. Jackson on June 4th at 1 PM.")
	require.NoError(t, err)

	st := res.State
	assert.True(t, st.AvailabilityChecked)
	require.NotNil(t, st.IsAvailable)
	assert.False(t, *st.IsAvailable)
	assert.NotEmpty(t, st.AvailableSlots)
	assert.Equal(t, PhaseChecked, res.Phase)

	// Picking an offered time needs no correction word.
	res, err = engine.ProcessTurn(ctx, "call-2", "10am works")
	require.NoError(t, err)

	st = res.State
	require.NotNil(t, st.Time)
	assert.Equal(t, "10:00", *st.Time)
	assert.True(t, st.AvailabilityChecked)
	require.NotNil(t, st.IsAvailable)
	assert.True(t, *st.IsAvailable)

	res, err = engine.ProcessTurn(ctx, "call-2", "yes")
	require.NoError(t, err)

	require.NotNil(t, res.State.AppointmentID)
	assert.Equal(t, PhaseBooked, res.Phase)
}

func TestEngine_AvailabilityCheckedAtMostOnce(t *testing.T) {
	counting := &countingScheduler{Scheduler: clinic.NewMemoryScheduler(nil)}
	llm := &scriptedLLM{}
	store := NewSessionStore(time.Hour, nil)
	engine := NewEngine(store, llm, counting)
	ctx := context.Background()

	_, err := engine.ProcessTurn(ctx, "call-3",
		"I'm Amy Pond, book me with Dr. Jackson on June 4th at 10 AM")
	require.NoError(t, err)
	assert.Equal(t, 1, counting.checks)

	// Chatter that changes nothing must not re-run the lookup.
	_, err = engine.ProcessTurn(ctx, "call-3", "what are your opening hours by the way")
	require.NoError(t, err)
	assert.Equal(t, 1, counting.checks)
}

func TestEngine_CorrectionTriggersRecheck(t *testing.T) {
	counting := &countingScheduler{Scheduler: clinic.NewMemoryScheduler(nil)}
	llm := &scriptedLLM{}
	store := NewSessionStore(time.Hour, nil)
	engine := NewEngine(store, llm, counting)
	ctx := context.Background()

	_, err := engine.ProcessTurn(ctx, "call-4",
		"I'm Rory Williams, book me with Dr. Jackson on June 4th at 10 AM")
	require.NoError(t, err)
	require.Equal(t, 1, counting.checks)

	res, err := engine.ProcessTurn(ctx, "call-4", "Actually, can we do 2 PM instead?")
	require.NoError(t, err)

	assert.Equal(t, 2, counting.checks)
	require.NotNil(t, res.State.Time)
	assert.Equal(t, "14:00", *res.State.Time)
	require.NotNil(t, res.State.IsAvailable)
	assert.True(t, *res.State.IsAvailable)
}

func TestEngine_GenerationErrorKeepsMergedState(t *testing.T) {
	llm := &errLLM{err: errors.New("model down")}
	engine, store := newTestEngine(t, llm, nil)
	ctx := context.Background()

	_, err := engine.ProcessTurn(ctx, "call-5",
		"I'm Clara Oswald, Dr. Jackson on June 4th at 10 AM for an appointment please")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)

	sess, created, release := store.Acquire("call-5")
	defer release()
	require.False(t, created)

	// Extraction results survive the failed turn.
	require.NotNil(t, sess.State.Doctor)
	assert.Equal(t, "Dr. Jackson", *sess.State.Doctor)
	require.NotNil(t, sess.State.Time)

	// The user's message was recorded but no assistant reply was committed.
	last := sess.Messages[len(sess.Messages)-1]
	assert.NotEqual(t, ChatRoleAssistant, last.Role)
}

func TestEngine_AvailabilityErrorLeavesGateArmed(t *testing.T) {
	failing := &failingScheduler{
		Scheduler: clinic.NewMemoryScheduler(nil),
		availErr:  errors.New("calendar offline"),
	}
	llm := &scriptedLLM{}
	store := NewSessionStore(time.Hour, nil)
	engine := NewEngine(store, llm, failing)
	ctx := context.Background()

	_, err := engine.ProcessTurn(ctx, "call-6",
		"I'm Amelia, book Dr. Jackson on June 4th at 10 AM")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAvailability)

	sess, _, release := store.Acquire("call-6")
	assert.False(t, sess.State.AvailabilityChecked)
	assert.Nil(t, sess.State.IsAvailable)
	release()

	// Recovery: the gate fires again once the calendar is back.
	failing.availErr = nil
	res, err := engine.ProcessTurn(ctx, "call-6", "hello, are you still there?")
	require.NoError(t, err)
	assert.True(t, res.State.AvailabilityChecked)
}

func TestEngine_RepairsCheckedWithoutResult(t *testing.T) {
	counting := &countingScheduler{Scheduler: clinic.NewMemoryScheduler(nil)}
	llm := &scriptedLLM{}
	store := NewSessionStore(time.Hour, nil)
	engine := NewEngine(store, llm, counting)
	ctx := context.Background()

	// Seed the checked-without-result inconsistency directly.
	sess, _, release := store.Acquire("call-heal")
	sess.State = State{
		Task:                TaskAppointment,
		Doctor:              strPtr("Dr. Jackson"),
		Date:                strPtr(juneDate(4)),
		Time:                strPtr("10:00"),
		AvailabilityChecked: true,
	}
	release()

	res, err := engine.ProcessTurn(ctx, "call-heal", "are you still there?")
	require.NoError(t, err)

	// The repair re-armed the gate, so the lookup ran and committed a result.
	assert.Equal(t, 1, counting.checks)
	assert.True(t, res.State.AvailabilityChecked)
	require.NotNil(t, res.State.IsAvailable)
	assert.True(t, *res.State.IsAvailable)
}

func TestEngine_BookingFailureKeepsConfirmation(t *testing.T) {
	failing := &failingScheduler{
		Scheduler: clinic.NewMemoryScheduler(nil),
		bookErr:   errors.New("ehr write refused"),
	}
	llm := &scriptedLLM{}
	store := NewSessionStore(time.Hour, nil)
	engine := NewEngine(store, llm, failing)
	ctx := context.Background()

	_, err := engine.ProcessTurn(ctx, "call-7",
		"I'm Jack Harkness, book Dr. Jackson on June 4th at 10 AM")
	require.NoError(t, err)

	_, err = engine.ProcessTurn(ctx, "call-7", "yes")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBooking)

	sess, _, release := store.Acquire("call-7")
	release()
	assert.True(t, sess.State.Confirmed, "confirmation survives the failed booking")
	assert.Nil(t, sess.State.AppointmentID)

	// Next turn retries the booking without asking the caller again.
	failing.bookErr = nil
	res, err := engine.ProcessTurn(ctx, "call-7", "is it booked?")
	require.NoError(t, err)
	require.NotNil(t, res.State.AppointmentID)
	assert.Contains(t, res.Reply, "is confirmed")
}

func TestEngine_GreetingOnEmptyFirstUtterance(t *testing.T) {
	llm := &scriptedLLM{}
	engine, _ := newTestEngine(t, llm, nil)

	res, err := engine.ProcessTurn(context.Background(), "call-8", "")

	require.NoError(t, err)
	assert.Contains(t, res.Reply, "Confido Health Clinic")
	assert.Equal(t, 0, llm.calls, "greeting is deterministic, no model call")
}

func TestEngine_InsuranceVerification(t *testing.T) {
	llm := &scriptedLLM{}
	engine, _ := newTestEngine(t, llm, nil)
	ctx := context.Background()

	res, err := engine.ProcessTurn(ctx, "call-9",
		"I'm Donna Noble, I want to verify my insurance. I'm covered by Aetna and my policy number is XY-7654321")
	require.NoError(t, err)

	st := res.State
	assert.Equal(t, TaskInsurance, st.Task)
	assert.True(t, st.InsuranceVerified)
	require.NotNil(t, st.InsuranceCovered)
	assert.True(t, *st.InsuranceCovered)
}

func TestEngine_ConcurrentTurnsOnOneSessionSerialize(t *testing.T) {
	llm := &scriptedLLM{}
	engine, store := newTestEngine(t, llm, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.ProcessTurn(ctx, "call-10", "hello there")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, _, release := store.Acquire("call-10")
	defer release()

	// One system prompt plus a user/assistant pair per turn.
	assert.Len(t, sess.Messages, 21)
}
