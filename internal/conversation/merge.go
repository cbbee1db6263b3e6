package conversation

import "regexp"

// correctionRE matches words signalling the caller is overriding something
// they said earlier. Only then may a known field be replaced.
var correctionRE = regexp.MustCompile(`(?i)\b(actually|correction|instead|not|wrong)\b`)

// MergeResult reports what a merge changed.
type MergeResult struct {
	DateChanged       bool
	TimeChanged       bool
	AvailabilityReset bool
}

// Merge folds extracted updates into the session state.
//
// Rules, in order:
//   - an unknown field is always set;
//   - a known field is replaced only when the raw utterance carries a
//     correction signal, and is never blanked;
//   - date and time may also be replaced after the backend rejected the
//     current slot, since offering alternatives invites a new date/time;
//   - setting date or time to a different value atomically invalidates the
//     availability lookup;
//   - any date or time in the updates forces the task to "appointment".
func Merge(state *State, updates Updates, utterance string) MergeResult {
	correction := correctionRE.MatchString(utterance)

	setField(&state.FullName, updates.FullName, correction)
	setField(&state.FirstName, updates.FirstName, correction)
	setField(&state.Doctor, updates.Doctor, correction)
	setField(&state.InsuranceProvider, updates.InsuranceProvider, correction)
	setField(&state.InsuranceNumber, updates.InsuranceNumber, correction)

	slotRejected := state.AvailabilityChecked && state.IsAvailable != nil && !*state.IsAvailable

	var res MergeResult
	res.DateChanged = setField(&state.Date, updates.Date, correction || slotRejected)
	res.TimeChanged = setField(&state.Time, updates.Time, correction || slotRejected)

	if updates.Task != TaskNone && (state.Task == TaskNone || correction) {
		state.Task = updates.Task
	}
	if updates.Date != nil || updates.Time != nil {
		state.Task = TaskAppointment
	}

	if res.DateChanged || res.TimeChanged {
		state.ResetAvailability()
		res.AvailabilityReset = true
	}

	return res
}

// setField applies one update under the non-destructive rule. Returns true
// when the stored value actually changed.
func setField(dst **string, update *string, correction bool) bool {
	if update == nil {
		return false
	}
	if *dst == nil {
		v := *update
		*dst = &v
		return true
	}
	if correction && **dst != *update {
		v := *update
		*dst = &v
		return true
	}
	return false
}
