package protected

import (
	"fmt"
	"strings"
)

// Market is a geographic market with its own protected-sender taxonomy
type Market string

const (
	MarketUSA     Market = "usa"
	MarketIndia   Market = "india"
	MarketGermany Market = "germany"

	// MarketAll is a matcher scope covering every market
	MarketAll Market = "all"

	// MarketGlobal tags patterns that apply in every scope
	MarketGlobal Market = "global"
)

// marketOrder is the registration order of markets and the final tie-break
var marketOrder = []Market{MarketUSA, MarketIndia, MarketGermany, MarketGlobal}

// Markets returns the concrete markets in registration order
func Markets() []Market {
	return []Market{MarketUSA, MarketIndia, MarketGermany}
}

// ParseMarket parses a market or scope name
func ParseMarket(s string) (Market, error) {
	m := Market(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MarketUSA, MarketIndia, MarketGermany, MarketAll, MarketGlobal:
		return m, nil
	case "":
		return MarketAll, nil
	default:
		return "", fmt.Errorf("unknown market %q", s)
	}
}

func marketRank(m Market) int {
	for i, o := range marketOrder {
		if o == m {
			return i
		}
	}
	return len(marketOrder)
}

// Category is a protected sender category
type Category string

const (
	CategoryInvestment Category = "investment"
	CategoryBanking    Category = "banking"
	CategoryGovernment Category = "government"
	CategoryHealthcare Category = "healthcare"
	CategoryUtility    Category = "utility"
	CategoryEducation  Category = "education"
)

// categoryOrder ranks categories from most to least critical. It decides
// which entry wins when one domain is registered more than once.
var categoryOrder = []Category{
	CategoryInvestment,
	CategoryBanking,
	CategoryGovernment,
	CategoryHealthcare,
	CategoryUtility,
	CategoryEducation,
}

// Categories returns every category, most critical first
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ParseCategory parses a category name
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range categoryOrder {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

func categoryRank(c Category) int {
	for i, o := range categoryOrder {
		if o == c {
			return i
		}
	}
	return len(categoryOrder)
}

// Entry is one row of protected-sender reference data. Exactly one of
// Domain and Pattern is set.
type Entry struct {
	Market   Market
	Category Category
	Domain   string
	Pattern  string
}

func (e Entry) String() string {
	if e.Pattern != "" {
		return fmt.Sprintf("%s/%s pattern %s", e.Market, e.Category, e.Pattern)
	}
	return fmt.Sprintf("%s/%s domain %s", e.Market, e.Category, e.Domain)
}

// MatchKind tells how a sender matched
type MatchKind string

const (
	MatchNone    MatchKind = "none"
	MatchExact   MatchKind = "exact"
	MatchPattern MatchKind = "pattern"
	MatchInvalid MatchKind = "invalid"
)

// Match is the result of classifying a sender address
type Match struct {
	IsProtected  bool
	Kind         MatchKind
	Market       Market
	Category     Category
	Domain       string
	MatchedEntry string
	Reason       string

	// Alternatives lists other exact entries for the same domain that
	// lost the tie-break
	Alternatives []Entry
}
