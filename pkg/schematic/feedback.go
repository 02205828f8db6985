package schematic

import "encoding/json"

// FeedbackRecord bundles one iteration's findings for the next oracle turn.
// Nil pointer fields mean the ERC phase produced no value for them, which
// is distinct from a zero: a missing violation count denies acceptance but
// carries different feedback than "checker ran and found 0".
type FeedbackRecord struct {
	Issues             []string `json:"validator_feedback"`
	RuleExitStatus     *int     `json:"erc_returncode,omitempty"`
	RuleViolationCount *int     `json:"erc_violations,omitempty"`
	RuleSummary        []string `json:"erc_summary,omitempty"`
	// RuleCheckerAvailable distinguishes "checker unavailable" from
	// "checker ran but reported no count".
	RuleCheckerAvailable bool `json:"erc_available"`
}

// Encode renders the record as the JSON text appended to the conversation.
func (f *FeedbackRecord) Encode() string {
	if f.Issues == nil {
		f.Issues = []string{}
	}
	data, err := json.Marshal(f)
	if err != nil {
		return "{}"
	}
	return string(data)
}
