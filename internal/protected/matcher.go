package protected

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrInvalidEntry is returned when reference data cannot be loaded
var ErrInvalidEntry = errors.New("invalid protected entry")

type compiledPattern struct {
	entry Entry
	re    *regexp.Regexp
}

// Matcher decides whether a sender belongs to a protected entity.
// It holds no mutable state after construction and is safe for concurrent use.
type Matcher struct {
	scope    Market
	exact    map[string][]Entry
	patterns []compiledPattern
	logger   *zap.Logger
}

// NewMatcher creates a matcher for the given scope from the reference entries.
// Entries outside the scope are ignored; global patterns are always active.
func NewMatcher(scope Market, entries []Entry, logger *zap.Logger) (*Matcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if scope == "" {
		scope = MarketAll
	}
	if scope == MarketGlobal {
		return nil, fmt.Errorf("%w: %q is not a matcher scope", ErrInvalidEntry, scope)
	}
	if _, err := ParseMarket(string(scope)); err != nil {
		return nil, err
	}

	m := &Matcher{
		scope:  scope,
		exact:  make(map[string][]Entry),
		logger: logger,
	}

	for i, e := range entries {
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if !m.inScope(e.Market) {
			continue
		}

		if e.Pattern != "" {
			re, err := regexp.Compile(e.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %d pattern %q: %v", ErrInvalidEntry, i, e.Pattern, err)
			}
			m.patterns = append(m.patterns, compiledPattern{entry: e, re: re})
			continue
		}

		domain := normalizeDomain(e.Domain)
		e.Domain = domain
		if containsEntry(m.exact[domain], e) {
			continue
		}
		m.exact[domain] = append(m.exact[domain], e)
	}

	for domain := range m.exact {
		candidates := m.exact[domain]
		sort.SliceStable(candidates, func(i, j int) bool {
			return entryLess(candidates[i], candidates[j])
		})
	}

	logger.Info("Initialized protected entity matcher",
		zap.String("scope", string(scope)),
		zap.Int("domains", len(m.exact)),
		zap.Int("patterns", len(m.patterns)))

	return m, nil
}

// Scope returns the market scope the matcher was built for
func (m *Matcher) Scope() Market {
	return m.scope
}

// Classify checks a sender address against the reference data.
// Exact domain matches always win over pattern matches.
func (m *Matcher) Classify(sender string) Match {
	domain, ok := ExtractDomain(sender)
	if !ok {
		m.logger.Warn("Cannot extract domain from sender", zap.String("sender", sender))
		return Match{Kind: MatchInvalid, Reason: "invalid address"}
	}

	if match, ok := m.lookupExact(domain); ok {
		m.logger.Debug("Sender is protected",
			zap.String("domain", domain),
			zap.String("entry", match.MatchedEntry),
			zap.String("kind", string(match.Kind)))
		return match
	}

	for _, p := range m.patterns {
		if p.re.MatchString(domain) {
			m.logger.Debug("Sender matches protected pattern",
				zap.String("domain", domain),
				zap.String("pattern", p.entry.Pattern))
			return Match{
				IsProtected:  true,
				Kind:         MatchPattern,
				Market:       p.entry.Market,
				Category:     p.entry.Category,
				Domain:       domain,
				MatchedEntry: p.entry.Pattern,
				Reason:       fmt.Sprintf("pattern match %s (%s %s)", p.entry.Pattern, p.entry.Market, p.entry.Category),
			}
		}
	}

	return Match{Kind: MatchNone, Domain: domain, Reason: "not a protected entity"}
}

// lookupExact tries the domain and then each parent domain, so that
// alerts.chase.com resolves to chase.com.
func (m *Matcher) lookupExact(domain string) (Match, bool) {
	for d := domain; d != ""; d = parentDomain(d) {
		candidates, ok := m.exact[d]
		if !ok {
			continue
		}
		winner := candidates[0]
		match := Match{
			IsProtected:  true,
			Kind:         MatchExact,
			Market:       winner.Market,
			Category:     winner.Category,
			Domain:       domain,
			MatchedEntry: winner.Domain,
			Reason:       fmt.Sprintf("exact match %s (%s %s)", winner.Domain, winner.Market, winner.Category),
		}
		if len(candidates) > 1 {
			match.Alternatives = append([]Entry(nil), candidates[1:]...)
		}
		return match, true
	}
	return Match{}, false
}

// IsCriticalFinancial reports whether the sender is a protected
// investment or banking entity
func (m *Matcher) IsCriticalFinancial(sender string) bool {
	match := m.Classify(sender)
	return match.IsProtected &&
		(match.Category == CategoryInvestment || match.Category == CategoryBanking)
}

// MarketStats counts protected senders per market
func (m *Matcher) MarketStats(senders []string) map[Market]int {
	stats := make(map[Market]int)
	for _, s := range senders {
		if match := m.Classify(s); match.IsProtected {
			stats[match.Market]++
		}
	}
	return stats
}

// CategoryStats counts protected senders per category
func (m *Matcher) CategoryStats(senders []string) map[Category]int {
	stats := make(map[Category]int)
	for _, s := range senders {
		if match := m.Classify(s); match.IsProtected {
			stats[match.Category]++
		}
	}
	return stats
}

func (m *Matcher) inScope(market Market) bool {
	return m.scope == MarketAll || market == m.scope || market == MarketGlobal
}

// ExtractDomain returns the normalized domain of a sender address: the text
// after the last '@', lower-cased, with angle brackets, square brackets and
// parentheses removed.
func ExtractDomain(sender string) (string, bool) {
	idx := strings.LastIndex(sender, "@")
	if idx < 0 {
		return "", false
	}
	domain := normalizeDomain(sender[idx+1:])
	if domain == "" {
		return "", false
	}
	return domain, true
}

var domainStripper = strings.NewReplacer("<", "", ">", "", "[", "", "]", "", "(", "", ")", "")

func normalizeDomain(s string) string {
	s = domainStripper.Replace(s)
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), ".")
}

func parentDomain(d string) string {
	idx := strings.Index(d, ".")
	if idx < 0 {
		return ""
	}
	parent := d[idx+1:]
	// Stop before bare top-level domains
	if !strings.Contains(parent, ".") {
		return ""
	}
	return parent
}

func validateEntry(e Entry) error {
	if (e.Domain == "") == (e.Pattern == "") {
		return fmt.Errorf("%w: exactly one of domain and pattern must be set (%s)", ErrInvalidEntry, e)
	}
	if e.Market == MarketAll {
		return fmt.Errorf("%w: market %q is not allowed on an entry", ErrInvalidEntry, e.Market)
	}
	if _, err := ParseMarket(string(e.Market)); err != nil || e.Market == "" {
		return fmt.Errorf("%w: unknown market %q", ErrInvalidEntry, e.Market)
	}
	if _, err := ParseCategory(string(e.Category)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

func entryLess(a, b Entry) bool {
	if ca, cb := categoryRank(a.Category), categoryRank(b.Category); ca != cb {
		return ca < cb
	}
	return marketRank(a.Market) < marketRank(b.Market)
}

func containsEntry(entries []Entry, e Entry) bool {
	for _, existing := range entries {
		if existing == e {
			return true
		}
	}
	return false
}
