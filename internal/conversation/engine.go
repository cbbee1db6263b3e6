package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/confidohealth/voice-receptionist/internal/clinic"
	"github.com/confidohealth/voice-receptionist/internal/observability/metrics"
	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

const greeting = "Thank you for calling Confido Health Clinic! How can I help you today?"

// Engine drives one dialogue turn end to end: extract, merge, run backend
// gates, call the language model, reconcile, and book. It owns the only write
// path into session state.
type Engine struct {
	store       *SessionStore
	llm         LLMClient
	scheduler   clinic.Scheduler
	verifier    clinic.InsuranceVerifier
	transcripts *TranscriptStore
	metrics     *metrics.ConversationMetrics
	reconciler  *Reconciler
	logger      *logging.Logger
}

// EngineOption configures optional collaborators.
type EngineOption func(*Engine)

// WithVerifier wires an insurance verifier.
func WithVerifier(v clinic.InsuranceVerifier) EngineOption {
	return func(e *Engine) { e.verifier = v }
}

// WithTranscriptStore mirrors transcripts into Redis.
func WithTranscriptStore(ts *TranscriptStore) EngineOption {
	return func(e *Engine) { e.transcripts = ts }
}

// WithMetrics wires Prometheus instrumentation.
func WithMetrics(m *metrics.ConversationMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds the turn orchestrator.
func NewEngine(store *SessionStore, llm LLMClient, scheduler clinic.Scheduler, opts ...EngineOption) *Engine {
	if store == nil {
		panic("conversation: session store required")
	}
	if llm == nil {
		panic("conversation: LLM client required")
	}
	if scheduler == nil {
		panic("conversation: scheduler required")
	}
	e := &Engine{
		store:     store,
		llm:       llm,
		scheduler: scheduler,
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reconciler = NewReconciler(e.logger)
	return e
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"assistant"`
	State     State  `json:"debug_state"`
	Phase     Phase  `json:"phase"`
}

// ProcessTurn advances one session by one caller utterance. The session lock
// is held for the whole turn; concurrent turns on the same session serialize,
// distinct sessions run in parallel.
//
// On error the state merged before the failing step is retained and nothing
// after it is committed, so the next turn picks up where this one stopped.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, utterance string) (TurnResult, error) {
	started := time.Now()

	sess, created, release := e.store.Acquire(sessionID)
	defer release()

	if created {
		sess.Append(ChatRoleSystem, systemPrompt())
	}

	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		reply := greeting
		if !created {
			reply = "I'm sorry, I didn't catch that. Could you say that again?"
		}
		sess.Append(ChatRoleAssistant, reply)
		e.mirror(ctx, sessionID, "assistant", reply)
		e.metrics.ObserveTurn("ok", string(sess.State.Phase()), time.Since(started).Seconds())
		return e.result(sessionID, sess, reply), nil
	}

	// Confirmation is detected before the merge so a bare "yes" flips the
	// flag even though it extracts no fields.
	if IsConfirmation(trimmed) && !sess.State.Confirmed &&
		sess.State.IsAvailable != nil && *sess.State.IsAvailable {
		sess.State.Confirmed = true
		sess.Append(ChatRoleSystem, "The caller has confirmed the appointment. Proceed with finalizing the booking.")
	}

	updates := Extract(trimmed)
	merged := Merge(&sess.State, updates, trimmed)
	if merged.AvailabilityReset {
		e.logger.Info("availability invalidated by slot change",
			"session_id", sessionID,
			"date_changed", merged.DateChanged,
			"time_changed", merged.TimeChanged,
		)
	}

	sess.Append(ChatRoleUser, trimmed)
	e.mirror(ctx, sessionID, "user", trimmed)

	if sess.State.SelfHeal() {
		e.logger.Warn("repaired inconsistent availability flags", "session_id", sessionID)
	}

	if sess.State.NeedsAvailabilityCheck() {
		if err := e.checkAvailability(ctx, sess); err != nil {
			e.metrics.ObserveTurn("availability_error", string(sess.State.Phase()), time.Since(started).Seconds())
			return TurnResult{}, err
		}
	}

	if e.needsInsuranceCheck(sess) {
		if err := e.verifyInsurance(ctx, sess); err != nil {
			e.metrics.ObserveTurn("insurance_error", string(sess.State.Phase()), time.Since(started).Seconds())
			return TurnResult{}, err
		}
	}

	reply, err := e.respond(ctx, sess)
	if err != nil {
		e.metrics.ObserveTurn("generation_error", string(sess.State.Phase()), time.Since(started).Seconds())
		return TurnResult{}, err
	}

	if sess.State.Confirmed && sess.State.AppointmentID == nil && sess.State.AppointmentFieldsKnown() {
		booked, err := e.book(ctx, sess)
		if err != nil {
			e.metrics.ObserveTurn("booking_error", string(sess.State.Phase()), time.Since(started).Seconds())
			return TurnResult{}, err
		}
		reply = booked
	}

	sess.Append(ChatRoleAssistant, reply)
	e.mirror(ctx, sessionID, "assistant", reply)

	e.metrics.ObserveTurn("ok", string(sess.State.Phase()), time.Since(started).Seconds())
	return e.result(sessionID, sess, reply), nil
}

func (e *Engine) result(sessionID string, sess *Session, reply string) TurnResult {
	return TurnResult{
		SessionID: sessionID,
		Reply:     reply,
		State:     sess.State,
		Phase:     sess.State.Phase(),
	}
}

// checkAvailability runs the calendar lookup and commits the result to state.
// On failure the flags stay untouched so the gate re-fires next turn.
func (e *Engine) checkAvailability(ctx context.Context, sess *Session) error {
	st := &sess.State
	avail, err := e.scheduler.CheckAvailability(ctx, *st.Date, *st.Time, *st.Doctor)
	if err != nil {
		e.metrics.ObserveAvailabilityCheck("error")
		e.logger.Error("availability lookup failed",
			"session_id", sess.ID,
			"doctor", *st.Doctor,
			"date", *st.Date,
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrAvailability, err)
	}

	isAvailable := avail.IsAvailable
	st.IsAvailable = &isAvailable
	st.AvailableSlots = avail.AvailableSlots
	st.AvailabilityChecked = true

	result := "unavailable"
	if isAvailable {
		result = "available"
	}
	e.metrics.ObserveAvailabilityCheck(result)
	e.logger.Info("availability checked",
		"session_id", sess.ID,
		"doctor", *st.Doctor,
		"date", *st.Date,
		"time", *st.Time,
		"available", isAvailable,
	)

	sess.Append(ChatRoleSystem, availabilityNote(st))
	return nil
}

// availabilityNote summarizes the lookup result for the model so it reports
// the outcome instead of promising a check that already happened.
func availabilityNote(st *State) string {
	if *st.IsAvailable {
		return fmt.Sprintf(
			"Availability check complete: %s IS available on %s at %s. Tell the caller and ask whether to book it.",
			*st.Doctor, *st.Date, *st.Time,
		)
	}
	var times []string
	for _, slot := range st.AvailableSlots {
		if slot.Available {
			times = append(times, slot.Time)
		}
	}
	return fmt.Sprintf(
		"Availability check complete: %s is NOT available on %s at %s. Open times that day: %s. Offer these to the caller.",
		*st.Doctor, *st.Date, *st.Time, strings.Join(times, ", "),
	)
}

func (e *Engine) needsInsuranceCheck(sess *Session) bool {
	st := &sess.State
	return e.verifier != nil && st.Task == TaskInsurance && !st.InsuranceVerified &&
		st.InsuranceProvider != nil && st.InsuranceNumber != nil
}

func (e *Engine) verifyInsurance(ctx context.Context, sess *Session) error {
	st := &sess.State
	res, err := e.verifier.VerifyInsurance(ctx,
		clinic.PatientInfo{Name: st.PatientName()},
		clinic.InsuranceDetails{Provider: *st.InsuranceProvider, PolicyNumber: *st.InsuranceNumber},
	)
	if err != nil {
		e.logger.Error("insurance verification failed",
			"session_id", sess.ID,
			"provider", *st.InsuranceProvider,
			"error", err,
		)
		return fmt.Errorf("%w: %v", ErrInsurance, err)
	}

	covered := res.IsCovered
	st.InsuranceVerified = true
	st.InsuranceCovered = &covered
	e.logger.Info("insurance verified",
		"session_id", sess.ID,
		"provider", *st.InsuranceProvider,
		"covered", covered,
	)

	if covered {
		sess.Append(ChatRoleSystem, fmt.Sprintf(
			"Insurance verification complete: the policy IS active. Coverage %d%%, copay $%d, remaining deductible $%d. Report this to the caller.",
			res.CoveragePercentage, res.CopayAmount, res.DeductibleRemaining,
		))
	} else {
		sess.Append(ChatRoleSystem,
			"Insurance verification complete: the policy could NOT be verified as active. Tell the caller and suggest contacting their provider.")
	}
	return nil
}

// respond calls the language model and reconciles its reply with backend
// truth.
func (e *Engine) respond(ctx context.Context, sess *Session) (string, error) {
	raw, err := e.llm.Complete(ctx, sess.Messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	comp := parseTurnCompletion(raw)
	if comp.Proposed == nil {
		e.metrics.ObserveParseFallback()
		e.logger.Warn("model reply failed envelope parsing", "session_id", sess.ID)
	}
	return e.reconciler.Reconcile(&sess.State, comp), nil
}

// book finalizes a confirmed appointment. confirmed stays set on failure so
// the next turn retries instead of re-asking the caller.
func (e *Engine) book(ctx context.Context, sess *Session) (string, error) {
	st := &sess.State
	res, err := e.scheduler.BookAppointment(ctx,
		clinic.PatientInfo{Name: st.PatientName()},
		clinic.AppointmentDetails{Doctor: *st.Doctor, Date: *st.Date, Time: *st.Time},
	)
	if err != nil || !res.Success {
		e.metrics.ObserveBooking("failure")
		if err == nil {
			err = fmt.Errorf("scheduler rejected booking: %s", res.Error)
		}
		e.logger.Error("booking failed",
			"session_id", sess.ID,
			"doctor", *st.Doctor,
			"date", *st.Date,
			"time", *st.Time,
			"error", err,
		)
		return "", fmt.Errorf("%w: %v", ErrBooking, err)
	}

	st.AppointmentID = &res.AppointmentID
	e.metrics.ObserveBooking("success")
	e.logger.Info("appointment booked",
		"session_id", sess.ID,
		"appointment_id", res.AppointmentID,
		"confirmation_number", res.ConfirmationNumber,
	)

	return fmt.Sprintf(
		"Perfect! Your appointment with %s on %s at %s is confirmed. You'll receive an email shortly.",
		*st.Doctor, *st.Date, *st.Time,
	), nil
}

// mirror appends to the Redis transcript copy, best effort.
func (e *Engine) mirror(ctx context.Context, sessionID, role, body string) {
	if e.transcripts == nil {
		return
	}
	if err := e.transcripts.Append(ctx, sessionID, TranscriptMessage{Role: role, Body: body}); err != nil {
		e.logger.Warn("transcript mirror append failed", "session_id", sessionID, "error", err)
	}
}
