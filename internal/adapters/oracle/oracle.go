package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mikey/promo-sweeper/internal/core"
	"github.com/mikey/promo-sweeper/internal/utils"
)

// Defaults for Options
const (
	DefaultMaxRetries      = 5
	DefaultRetryBase       = time.Second
	DefaultMaxBodySize     = 500
	DefaultVerifierBodyMax = 300
)

// ErrNoVerdict is returned when the classifier answers without a usable verdict
var ErrNoVerdict = errors.New("oracle returned no verdict")

// Completer sends one prompt to a language model and returns its raw text
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Options configures the Oracle
type Options struct {
	MaxRetries      uint64
	RetryBase       time.Duration
	MaxBodySize     int
	VerifierBodyMax int
}

// Oracle classifies a message with a first model pass and re-checks
// PROMOTIONAL verdicts with a second, verifying pass
type Oracle struct {
	completer     Completer
	textProcessor *utils.TextProcessor
	opts          Options
	logger        *zap.Logger
}

// verdict is one element of the model's JSON answer
type verdict struct {
	Idx        int     `json:"idx"`
	Category   string  `json:"cat"`
	Confidence float64 `json:"c"`
	Reason     string  `json:"reason"`
	Language   string  `json:"lang"`
}

// NewOracle creates a new Oracle
func NewOracle(completer Completer, textProcessor *utils.TextProcessor, opts Options, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if textProcessor == nil {
		textProcessor = utils.NewTextProcessor(logger)
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = DefaultRetryBase
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if opts.VerifierBodyMax <= 0 {
		opts.VerifierBodyMax = DefaultVerifierBodyMax
	}
	return &Oracle{
		completer:     completer,
		textProcessor: textProcessor,
		opts:          opts,
		logger:        logger,
	}
}

// Classify labels one email. Non-promotional verdicts are verified as is.
// A PROMOTIONAL verdict is verified only when the second pass succeeds; a
// correction from the second pass replaces the first verdict. When the
// second pass fails the PROMOTIONAL verdict is returned unverified.
func (o *Oracle) Classify(ctx context.Context, email *core.Email) (*core.ClassificationResult, error) {
	first, err := o.ask(ctx, classifierSystem, fmt.Sprintf(classifierPrompt, o.renderEmail(email, o.opts.MaxBodySize)), false)
	if err != nil {
		return nil, fmt.Errorf("failed to classify message %s: %w", email.ID, err)
	}
	result := o.toResult(first[0])

	if result.Label != core.LabelPromotional {
		result.Verified = true
		return result, nil
	}

	block := o.renderEmail(email, o.opts.VerifierBodyMax) + fmt.Sprintf(
		"\nClassified as: PROMOTIONAL (confidence: %.0f%%)\nReason: %s",
		result.Confidence, o.textProcessor.ProcessText(result.Reason, 200))

	corrections, err := o.ask(ctx, verifierSystem, fmt.Sprintf(verifierPrompt, block), true)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.logger.Warn("Verification failed, keeping promotional verdict unverified",
			zap.String("id", email.ID),
			zap.Error(err))
		return result, nil
	}

	if len(corrections) > 0 {
		corrected := o.toResult(corrections[0])
		corrected.Verified = true
		o.logger.Info("Verifier corrected classification",
			zap.String("id", email.ID),
			zap.Stringer("from", result.Label),
			zap.Stringer("to", corrected.Label),
			zap.String("reason", corrected.Reason))
		return corrected, nil
	}

	result.Verified = true
	return result, nil
}

// ask sends a prompt with retries until the answer parses.
// allowEmpty accepts an empty JSON array.
func (o *Oracle) ask(ctx context.Context, system, prompt string, allowEmpty bool) ([]verdict, error) {
	var verdicts []verdict
	backoff := retry.WithMaxRetries(o.opts.MaxRetries, retry.NewExponential(o.opts.RetryBase))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		text, err := o.completer.Complete(ctx, system, prompt)
		if err != nil {
			o.logger.Debug("Oracle call failed",
				zap.String("model", o.completer.Model()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		parsed, err := parseVerdicts(text)
		if err != nil {
			o.logger.Debug("Unparseable oracle response",
				zap.Int("attempt", attempt),
				zap.String("response", o.textProcessor.TruncateText(text, 200)))
			return retry.RetryableError(err)
		}
		if len(parsed) == 0 && !allowEmpty {
			return retry.RetryableError(ErrNoVerdict)
		}
		verdicts = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return verdicts, nil
}

func (o *Oracle) toResult(v verdict) *core.ClassificationResult {
	label, ok := core.ParseLabel(v.Category)
	if !ok {
		o.logger.Warn("Unrecognized category from oracle, treating as personal",
			zap.String("category", v.Category))
	}
	return &core.ClassificationResult{
		Label:      label,
		Confidence: core.ClampConfidence(v.Confidence),
		Language:   core.NormalizeLanguage(v.Language),
		Reason:     v.Reason,
		ModelUsed:  o.completer.Model(),
	}
}

func (o *Oracle) renderEmail(email *core.Email, bodyMax int) string {
	from := email.Sender
	if from == "" {
		from = "unknown"
	}
	subject := o.textProcessor.ProcessText(email.Subject, 300)
	if subject == "" {
		subject = "(no subject)"
	}
	return fmt.Sprintf("From: %s\nSubject: %s\nBody: %s",
		o.textProcessor.ProcessText(from, 320),
		subject,
		o.textProcessor.ProcessText(email.Body, bodyMax))
}

// parseVerdicts extracts a JSON array, or a single object, from a model
// answer that may carry markdown fences or surrounding prose
func parseVerdicts(text string) ([]verdict, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimPrefix(cleaned, "json")
		if end := strings.LastIndex(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var verdicts []verdict
	if err := json.Unmarshal([]byte(cleaned), &verdicts); err == nil {
		return verdicts, nil
	}

	arrStart, arrEnd := strings.Index(cleaned, "["), strings.LastIndex(cleaned, "]")
	objStart, objEnd := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}")

	if arrStart >= 0 && arrEnd > arrStart && (objStart < 0 || arrStart < objStart) {
		if err := json.Unmarshal([]byte(cleaned[arrStart:arrEnd+1]), &verdicts); err != nil {
			return nil, fmt.Errorf("failed to parse oracle response as JSON: %w", err)
		}
		return verdicts, nil
	}
	if objStart >= 0 && objEnd > objStart {
		var v verdict
		if err := json.Unmarshal([]byte(cleaned[objStart:objEnd+1]), &v); err != nil {
			return nil, fmt.Errorf("failed to parse oracle response as JSON: %w", err)
		}
		return []verdict{v}, nil
	}
	return nil, fmt.Errorf("failed to extract JSON from oracle response")
}
