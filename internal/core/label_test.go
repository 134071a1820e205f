package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in   string
		want Label
		ok   bool
	}{
		{"PROMOTIONAL", LabelPromotional, true},
		{" promotional ", LabelPromotional, true},
		{"system-security", LabelSystemSecurity, true},
		{"social platform", LabelSocialPlatform, true},
		{"personal_human", LabelPersonalSafe, true},
		{"Marketing", LabelPromotional, true},
		{"transactional", LabelTransactional, true},
		{"newsletter", LabelPersonalSafe, false},
		{"", LabelPersonalSafe, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLabel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestLabelSanitize(t *testing.T) {
	assert.Equal(t, LabelPersonalSafe, Label(-1).Sanitize())
	assert.Equal(t, LabelPersonalSafe, Label(99).Sanitize())
	assert.Equal(t, LabelSocialPlatform, LabelSocialPlatform.Sanitize())
	assert.Equal(t, "Label(99)", Label(99).String())
}

func TestLabelJSON(t *testing.T) {
	data, err := json.Marshal(ClassificationResult{Label: LabelPromotional, Confidence: 91})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"label":"PROMOTIONAL"`)

	var cls ClassificationResult
	require.NoError(t, json.Unmarshal([]byte(`{"label":"spam","confidence":50}`), &cls))
	assert.Equal(t, LabelPersonalSafe, cls.Label)

	data, err = json.Marshal(ClassificationResult{Label: Label(42)})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"label":"PERSONAL_SAFE"`)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(math.NaN()))
	assert.Equal(t, 0.0, ClampConfidence(-3))
	assert.Equal(t, 100.0, ClampConfidence(140))
	assert.Equal(t, 100.0, ClampConfidence(math.Inf(1)))
	assert.Equal(t, 87.5, ClampConfidence(87.5))
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "en", NormalizeLanguage("en-US"))
	assert.Equal(t, "de", NormalizeLanguage("DE"))
	assert.Equal(t, "hi", NormalizeLanguage("hi-IN"))
	assert.Equal(t, "und", NormalizeLanguage("not a language"))
	assert.Equal(t, "und", NormalizeLanguage(""))
}

func TestDecisionText(t *testing.T) {
	d, err := ParseDecision("flagged")
	require.NoError(t, err)
	assert.Equal(t, DecisionFlagged, d)

	_, err = ParseDecision("maybe")
	assert.Error(t, err)

	var out DecisionResult
	require.NoError(t, json.Unmarshal([]byte(`{"decision":"weird","tier":"HIGH"}`), &out))
	assert.Equal(t, DecisionRejected, out.Decision)
	assert.Equal(t, TierHigh, out.Tier)

	data, err := json.Marshal(DecisionResult{Decision: DecisionApproved, Tier: TierMedium})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"decision":"APPROVED"`)
	assert.Contains(t, string(data), `"tier":"MEDIUM"`)
}

func TestFailedGates(t *testing.T) {
	d := &DecisionResult{Gates: []GateResult{
		{Index: 1, Name: "a", Passed: true},
		{Index: 2, Name: "b", Passed: false},
		{Index: 3, Name: "c", Passed: false},
	}}
	failed := d.FailedGates()
	require.Len(t, failed, 2)
	assert.Equal(t, "b", failed[0].Name)
	assert.Equal(t, "c", failed[1].Name)
}
