package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Updates is the partial state extracted from one utterance. A nil field means
// the utterance said nothing about it, never "clear this".
type Updates struct {
	FullName          *string
	FirstName         *string
	Doctor            *string
	Date              *string
	Time              *string
	InsuranceProvider *string
	InsuranceNumber   *string
	Task              Task
	Confirmed         bool
}

// Empty reports whether nothing was extracted.
func (u Updates) Empty() bool {
	return u.FullName == nil && u.FirstName == nil && u.Doctor == nil &&
		u.Date == nil && u.Time == nil && u.InsuranceProvider == nil &&
		u.InsuranceNumber == nil && u.Task == TaskNone && !u.Confirmed
}

var (
	nameRE   = regexp.MustCompile(`(?:[Mm]y name is|I'm|I am) ([A-Z][a-z]+(?: [A-Z][a-z]+)*)`)
	doctorRE = regexp.MustCompile(`(?:Dr\.?|Doctor|Mrs\.?|Ms\.?|Mr\.?) ([A-Z][a-z]+(?: [A-Z][a-z]+)*)`)
	dateRE   = regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december) (\d{1,2})(?:st|nd|rd|th)?`)
	timeRE   = regexp.MustCompile(`(?i)(\d{1,2})(?::?(\d{2}))? ?([ap]\.?m\.?|o'clock)`)

	providerRE = regexp.MustCompile(`(?:my insurance is|insured with|covered by|insurance through|have insurance with) ([A-Z][A-Za-z]+(?: [A-Z][A-Za-z]+)*)`)
	policyRE   = regexp.MustCompile(`(?i)\b(?:policy|member|plan|insurance) (?:number|no\.?|#|id)?\s*(?:is\s*)?([A-Za-z]{1,3}-?\d{5,12})\b`)

	monthNumbers = map[string]int{
		"january": 1, "february": 2, "march": 3, "april": 4,
		"may": 5, "june": 6, "july": 7, "august": 8,
		"september": 9, "october": 10, "november": 11, "december": 12,
	}
)

// Extract pulls partial field updates out of one utterance with pattern rules.
// Stateless and deterministic; the language model is not involved.
func Extract(utterance string) Updates {
	var u Updates

	if m := nameRE.FindStringSubmatch(utterance); m != nil {
		full := m[1]
		first := strings.Fields(full)[0]
		u.FullName = &full
		u.FirstName = &first
	}

	if m := doctorRE.FindString(utterance); m != "" {
		doctor := NormalizeDoctor(m)
		u.Doctor = &doctor
	}

	if m := dateRE.FindStringSubmatch(utterance); m != nil {
		month := monthNumbers[strings.ToLower(m[1])]
		day, _ := strconv.Atoi(m[2])
		date := fmt.Sprintf("%d-%02d-%02d", time.Now().Year(), month, day)
		u.Date = &date
	}

	if m := timeRE.FindStringSubmatch(utterance); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		period := strings.ToLower(m[3])
		if strings.Contains(period, "p") && hour < 12 {
			hour += 12
		} else if strings.Contains(period, "a") && hour == 12 {
			hour = 0
		}
		clock := fmt.Sprintf("%02d:%02d", hour, minute)
		u.Time = &clock
	}

	lower := strings.ToLower(utterance)
	switch {
	case strings.Contains(lower, "appointment") || strings.Contains(lower, "book") || strings.Contains(lower, "schedule"):
		u.Task = TaskAppointment
	case strings.Contains(lower, "insurance") || strings.Contains(lower, "verify") || strings.Contains(lower, "coverage"):
		u.Task = TaskInsurance
	}

	if m := providerRE.FindStringSubmatch(utterance); m != nil {
		provider := strings.TrimSuffix(m[1], " Insurance")
		u.InsuranceProvider = &provider
	}

	if m := policyRE.FindStringSubmatch(utterance); m != nil {
		policy := strings.ToUpper(m[1])
		u.InsuranceNumber = &policy
	}

	u.Confirmed = IsConfirmation(utterance)

	return u
}

var honorificRE = regexp.MustCompile(`(?i)^(Dr\.?|Doctor|Mrs\.?|Ms\.?|Mr\.?)\s+`)

// NormalizeDoctor canonicalizes any honorific + name to "Dr. <LastName>".
// Every store and lookup uses this form; callers must normalize before
// comparing. Idempotent.
func NormalizeDoctor(raw string) string {
	raw = strings.TrimSpace(raw)
	for honorificRE.MatchString(raw) {
		raw = honorificRE.ReplaceAllString(raw, "")
	}
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return "Dr."
	}
	last := parts[len(parts)-1]
	last = strings.ToUpper(last[:1]) + strings.ToLower(last[1:])
	return "Dr. " + last
}
