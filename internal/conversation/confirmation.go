package conversation

import (
	"regexp"
	"strings"
)

var confirmationPositives = []string{
	"yes", "yeah", "yep", "correct", "right", "ok", "okay", "sure",
	"confirm", "confirmed", "sounds good", "that's right", "that is right",
	"that works", "proceed", "go ahead", "works for me", "that works for me",
	"sounds good to me", "that time works", "perfect", "great",
}

var confirmationNegatives = []string{
	"no", "nope", "not", "don't", "do not", "cancel", "stop", "incorrect", "wrong",
}

// bookingRequestRE spots utterances that ask for an appointment; asking is
// never itself a confirmation, even when it contains "sure" or "great".
var bookingRequestRE = regexp.MustCompile(`\b(hi|hello|book|schedule|appointment|like to|would like|need to|want to)\b.*\b(appointment|booking)\b`)

var shortConfirmRE = regexp.MustCompile(`\b(confirm|proceed|go ahead)\b`)

var (
	positiveWordREs = compilePhraseREs(confirmationPositives)
	negativeWordREs = compilePhraseREs(confirmationNegatives)
)

func compilePhraseREs(phrases []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(phrases))
	for i, p := range phrases {
		res[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)
	}
	return res
}

// IsConfirmation reports whether an utterance accepts the proposed slot.
//
// The rule order matters: booking requests are rejected before phrase
// matching, and negatives are checked before generic positives so that
// "no, that's not right" is not read as a yes via "right".
func IsConfirmation(utterance string) bool {
	lower := strings.ToLower(strings.TrimSpace(utterance))
	if lower == "" {
		return false
	}

	if bookingRequestRE.MatchString(lower) {
		return false
	}

	for _, p := range confirmationPositives {
		if lower == p {
			return true
		}
	}

	for _, re := range negativeWordREs {
		if re.MatchString(lower) {
			return false
		}
	}

	for _, re := range positiveWordREs {
		if re.MatchString(lower) {
			return true
		}
	}

	if len(strings.Fields(lower)) <= 5 && shortConfirmRE.MatchString(lower) {
		return true
	}

	return false
}
