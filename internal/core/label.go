package core

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
)

// Label is the category assigned to a message by the classification oracle.
// The zero value is the least destructive category.
type Label int

const (
	LabelPersonalSafe Label = iota
	LabelPromotional
	LabelTransactional
	LabelSystemSecurity
	LabelSocialPlatform
)

var labelNames = map[Label]string{
	LabelPersonalSafe:   "PERSONAL_SAFE",
	LabelPromotional:    "PROMOTIONAL",
	LabelTransactional:  "TRANSACTIONAL",
	LabelSystemSecurity: "SYSTEM_SECURITY",
	LabelSocialPlatform: "SOCIAL_PLATFORM",
}

// aliases accepted from oracles in addition to the canonical names
var labelAliases = map[string]Label{
	"PERSONAL":       LabelPersonalSafe,
	"PERSONAL_HUMAN": LabelPersonalSafe,
	"PROMO":          LabelPromotional,
	"MARKETING":      LabelPromotional,
	"SECURITY":       LabelSystemSecurity,
	"SYSTEM":         LabelSystemSecurity,
	"SOCIAL":         LabelSocialPlatform,
	"TRANSACTION":    LabelTransactional,
}

// Labels returns every known label in declaration order
func Labels() []Label {
	return []Label{
		LabelPersonalSafe,
		LabelPromotional,
		LabelTransactional,
		LabelSystemSecurity,
		LabelSocialPlatform,
	}
}

// Valid reports whether l is one of the declared labels
func (l Label) Valid() bool {
	_, ok := labelNames[l]
	return ok
}

func (l Label) String() string {
	if name, ok := labelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Label(%d)", int(l))
}

// ParseLabel converts an oracle label string into a Label.
// The boolean is false when the string was not recognized.
func ParseLabel(s string) (Label, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	for l, name := range labelNames {
		if name == key {
			return l, true
		}
	}
	if l, ok := labelAliases[key]; ok {
		return l, true
	}
	return LabelPersonalSafe, false
}

// NormalizeLabel maps any string to a Label, falling back to
// LabelPersonalSafe for anything unrecognized.
func NormalizeLabel(s string) Label {
	l, _ := ParseLabel(s)
	return l
}

// Sanitize maps undeclared label values to LabelPersonalSafe
func (l Label) Sanitize() Label {
	if !l.Valid() {
		return LabelPersonalSafe
	}
	return l
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.Sanitize().String()), nil
}

// UnmarshalText never fails: unknown names decode as LabelPersonalSafe
func (l *Label) UnmarshalText(text []byte) error {
	*l = NormalizeLabel(string(text))
	return nil
}

// ClampConfidence forces a score into [0,100]; NaN becomes 0
func ClampConfidence(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}

// NormalizeLanguage reduces an oracle language tag to its base
// language subtag, or "und" when it cannot be parsed.
func NormalizeLanguage(tag string) string {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return language.Und.String()
	}
	base, _ := t.Base()
	return base.String()
}

// Tier is a discretized confidence bucket
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "HIGH"
	case TierMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "HIGH":
		*t = TierHigh
	case "MEDIUM":
		*t = TierMedium
	default:
		*t = TierLow
	}
	return nil
}

// Decision is the final outcome for a message.
// The zero value is DecisionRejected.
type Decision int

const (
	DecisionRejected Decision = iota
	DecisionApproved
	DecisionFlagged
)

func (d Decision) String() string {
	switch d {
	case DecisionApproved:
		return "APPROVED"
	case DecisionFlagged:
		return "FLAGGED"
	default:
		return "REJECTED"
	}
}

// ParseDecision accepts the String form case-insensitively
func ParseDecision(s string) (Decision, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "APPROVED":
		return DecisionApproved, nil
	case "FLAGGED":
		return DecisionFlagged, nil
	case "REJECTED":
		return DecisionRejected, nil
	default:
		return DecisionRejected, fmt.Errorf("unknown decision %q", s)
	}
}

func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes unknown values as DecisionRejected
func (d *Decision) UnmarshalText(text []byte) error {
	parsed, err := ParseDecision(string(text))
	*d = parsed
	if err != nil {
		*d = DecisionRejected
	}
	return nil
}
