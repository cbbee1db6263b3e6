package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/confidohealth/voice-receptionist/pkg/logging"
)

// ProposedState is the subset of the model's debug_state the backend will
// listen to. availability_checked, is_available, available_slots,
// appointment_id and confirmed are deliberately absent: those are
// backend-authoritative and anything the model writes there is discarded.
type ProposedState struct {
	Task              *string `json:"task"`
	FirstName         *string `json:"first_name"`
	FullName          *string `json:"full_name"`
	Doctor            *string `json:"doctor"`
	Date              *string `json:"date"`
	Time              *string `json:"time"`
	InsuranceProvider *string `json:"insurance_provider"`
	InsuranceNumber   *string `json:"insurance_number"`
}

// TurnCompletion is the two-branch result of parsing a model reply: either a
// structured envelope (Assistant + Proposed) or raw unusable text. Both
// branches are first-class inputs to the Reconciler.
type TurnCompletion struct {
	Assistant string
	Proposed  *ProposedState
	Raw       string
}

type turnEnvelope struct {
	Assistant  string          `json:"assistant"`
	DebugState json.RawMessage `json:"debug_state"`
}

// parseTurnCompletion decodes the {"assistant": ..., "debug_state": ...}
// envelope. debug_state may arrive as an object or as a string-encoded
// object; both are tolerated. Any parse failure yields the raw branch.
func parseTurnCompletion(raw string) TurnCompletion {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var env turnEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil || env.Assistant == "" {
		return TurnCompletion{Raw: raw}
	}

	comp := TurnCompletion{Assistant: env.Assistant, Raw: raw, Proposed: &ProposedState{}}
	if len(env.DebugState) == 0 {
		return comp
	}

	payload := env.DebugState
	var nested string
	if err := json.Unmarshal(payload, &nested); err == nil {
		payload = json.RawMessage(nested)
	}
	if err := json.Unmarshal(payload, comp.Proposed); err != nil {
		// The spoken reply is usable even when the state payload is not.
		comp.Proposed = &ProposedState{}
	}
	return comp
}

// staleAckPhrases open replies that promise a check the backend already ran.
var staleAckPhrases = []string{
	"thanks",
	"thank you",
	"let me check",
	"i'll check",
	"i will check",
	"one moment",
	"give me a moment",
	"let me see",
}

// Reconciler folds the model's proposed turn back into backend truth. The
// model is untrusted on two fronts: backend-only flags, and narration that
// pretends a finished lookup has not happened yet.
type Reconciler struct {
	logger *logging.Logger
}

// NewReconciler builds a reconciler.
func NewReconciler(logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{logger: logger}
}

// Reconcile adopts the model's proposed fields into state and returns the
// reply to speak. When the lookup already ran, stale or unparsable narration
// is replaced with a deterministic backend-grounded sentence.
func (r *Reconciler) Reconcile(state *State, comp TurnCompletion) string {
	if comp.Proposed != nil {
		r.adopt(state, comp.Proposed)
	}

	if state.AvailabilityChecked && state.IsAvailable != nil {
		if comp.Proposed == nil {
			r.logger.Warn("model output unparsable after availability check, using deterministic reply")
			return r.availabilityReply(state)
		}
		if isStaleAck(comp.Assistant) {
			r.logger.Info("model narration ignored availability result, overriding",
				"phase", state.Phase(),
			)
			return r.availabilityReply(state)
		}
	}

	if comp.Proposed == nil {
		// Last resort: no structure and no lookup result to ground on.
		r.logger.Warn("model output unparsable, using generic reply")
		return "Let me check that for you. Could you bear with me for a moment?"
	}

	return comp.Assistant
}

// adopt fills unknown fields from the proposal. Known fields are kept: the
// regex merge path owns corrections, and a model proposal never blanks or
// rewrites backend-known data.
func (r *Reconciler) adopt(state *State, p *ProposedState) {
	if p.Doctor != nil {
		normalized := NormalizeDoctor(*p.Doctor)
		p.Doctor = &normalized
	}
	if p.Task != nil && state.Task == TaskNone {
		switch Task(*p.Task) {
		case TaskAppointment, TaskInsurance:
			state.Task = Task(*p.Task)
		}
	}
	adoptField(&state.FirstName, p.FirstName)
	adoptField(&state.FullName, p.FullName)
	adoptField(&state.Doctor, p.Doctor)
	adoptField(&state.Date, p.Date)
	adoptField(&state.Time, p.Time)
	adoptField(&state.InsuranceProvider, p.InsuranceProvider)
	adoptField(&state.InsuranceNumber, p.InsuranceNumber)
}

func adoptField(dst **string, proposed *string) {
	if proposed == nil || *proposed == "" || *dst != nil {
		return
	}
	v := *proposed
	*dst = &v
}

// availabilityReply builds the deterministic sentence for a finished lookup.
func (r *Reconciler) availabilityReply(state *State) string {
	doctor := "the doctor"
	if state.Doctor != nil {
		doctor = *state.Doctor
	}
	date, clock := "", ""
	if state.Date != nil {
		date = *state.Date
	}
	if state.Time != nil {
		clock = *state.Time
	}

	if *state.IsAvailable {
		return fmt.Sprintf("%s is free on %s at %s. Shall I book it for you?", doctor, date, clock)
	}

	times := alternativeTimes(state, doctor)
	if times == "" {
		return fmt.Sprintf("Unfortunately %s has no openings that day. Would a different day work for you?", doctor)
	}
	return fmt.Sprintf("Unfortunately %s is not available then. He has openings at %s. Which one works best?", doctor, times)
}

// alternativeTimes joins the open times for the requested doctor.
func alternativeTimes(state *State, doctor string) string {
	var times []string
	for _, slot := range state.AvailableSlots {
		if slot.Available && slot.Doctor == doctor {
			times = append(times, slot.Time)
		}
	}
	return strings.Join(times, ", ")
}

func isStaleAck(reply string) bool {
	lower := strings.ToLower(strings.TrimSpace(reply))
	for _, phrase := range staleAckPhrases {
		if strings.HasPrefix(lower, phrase) {
			return true
		}
	}
	return false
}
