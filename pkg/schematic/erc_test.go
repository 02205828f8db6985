package schematic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseViolationCount(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   int
		ok     bool
	}{
		{"plain", "Checking schematic...\nFound 3 violations\n", 3, true},
		{"zero", "Found 0 violations", 0, true},
		{"case insensitive", "found 12 VIOLATIONS", 12, true},
		{"absent", "ERC completed", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseViolationCount(tt.output)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSummarizeJSONReport(t *testing.T) {
	data := []byte(`{
		"violations": [
			{"severity": "error", "message": "Pin not connected", "references": [{"ref": "R1"}]},
			{"severity": "warning", "message": "No power driver", "references": [{"uuid": "abcd-1234"}]}
		]
	}`)

	count, summary, ok := summarizeJSONReport(data)
	require.True(t, ok)
	assert.Equal(t, 2, count)
	require.Len(t, summary, 3)
	assert.Equal(t, "ERC JSON violations: 2", summary[0])
	assert.Contains(t, summary[1], "error: Pin not connected [R1]")
	assert.Contains(t, summary[2], "warning: No power driver [abcd-1234]")
}

func TestSummarizeJSONReport_Empty(t *testing.T) {
	count, summary, ok := summarizeJSONReport([]byte(`{"violations": []}`))
	require.True(t, ok)
	assert.Equal(t, 0, count)
	assert.Equal(t, []string{"ERC JSON violations: 0"}, summary)
}

func TestSummarizeJSONReport_Malformed(t *testing.T) {
	_, _, ok := summarizeJSONReport([]byte("not json"))
	assert.False(t, ok)
}

func TestSummarizeText(t *testing.T) {
	out := summarizeText("  line one  \n\n line two\n")
	assert.Equal(t, []string{"line one", "line two"}, out)
	assert.Empty(t, summarizeText("   \n \n"))
}

func TestFeedbackRecord_Encode(t *testing.T) {
	exit := 1
	count := 4
	fb := &FeedbackRecord{
		Issues:               []string{"fix spacing"},
		RuleExitStatus:       &exit,
		RuleViolationCount:   &count,
		RuleSummary:          []string{"ERC JSON violations: 4"},
		RuleCheckerAvailable: true,
	}

	encoded := fb.Encode()
	assert.Contains(t, encoded, `"validator_feedback":["fix spacing"]`)
	assert.Contains(t, encoded, `"erc_returncode":1`)
	assert.Contains(t, encoded, `"erc_violations":4`)
	assert.Contains(t, encoded, `"erc_available":true`)
}

func TestFeedbackRecord_Encode_CheckerUnavailable(t *testing.T) {
	fb := &FeedbackRecord{RuleCheckerAvailable: false}
	encoded := fb.Encode()

	// Nil pointers are omitted entirely rather than rendered as zeros.
	assert.NotContains(t, encoded, "erc_returncode")
	assert.NotContains(t, encoded, "erc_violations")
	assert.Contains(t, encoded, `"erc_available":false`)
	assert.Contains(t, encoded, `"validator_feedback":[]`)
}
