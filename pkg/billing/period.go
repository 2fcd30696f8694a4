package billing

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BillingPeriod represents the commitment length of a subscription.
type BillingPeriod string

const (
	PeriodMonthly    BillingPeriod = "monthly"
	PeriodSemiannual BillingPeriod = "semiannual"
	PeriodAnnual     BillingPeriod = "annual"
)

// BillingPeriods lists the supported periods ordered by commitment length.
var BillingPeriods = []BillingPeriod{PeriodMonthly, PeriodSemiannual, PeriodAnnual}

// Valid reports whether p is one of the supported periods.
func (p BillingPeriod) Valid() bool {
	switch p {
	case PeriodMonthly, PeriodSemiannual, PeriodAnnual:
		return true
	}
	return false
}

// Months returns the number of months covered by one billing cycle.
func (p BillingPeriod) Months() int {
	switch p {
	case PeriodSemiannual:
		return 6
	case PeriodAnnual:
		return 12
	default:
		return 1
	}
}

// Discount returns the period discount as a fraction (0, 0.10, 0.20).
func (p BillingPeriod) Discount() decimal.Decimal {
	return decimal.New(int64(p.DiscountPercent()), -2)
}

// DiscountPercent returns the period discount in percent points.
func (p BillingPeriod) DiscountPercent() int {
	switch p {
	case PeriodSemiannual:
		return 10
	case PeriodAnnual:
		return 20
	default:
		return 0
	}
}

// Level orders periods by commitment: monthly=1 < semiannual=2 < annual=3.
// Unknown periods have level 0.
func (p BillingPeriod) Level() int {
	switch p {
	case PeriodMonthly:
		return 1
	case PeriodSemiannual:
		return 2
	case PeriodAnnual:
		return 3
	}
	return 0
}

// EndDate returns the end of a cycle of this period starting at start.
func (p BillingPeriod) EndDate(start time.Time) time.Time {
	return start.AddDate(0, p.Months(), 0)
}

func (p BillingPeriod) String() string {
	return string(p)
}

var periodSynonyms = map[string]BillingPeriod{
	"monthly":    PeriodMonthly,
	"month":      PeriodMonthly,
	"mensual":    PeriodMonthly,
	"mensuel":    PeriodMonthly,
	"mes":        PeriodMonthly,
	"1m":         PeriodMonthly,
	"semiannual": PeriodSemiannual,
	"biannual":   PeriodSemiannual,
	"halfyearly": PeriodSemiannual,
	"halfyear":   PeriodSemiannual,
	"semestral":  PeriodSemiannual,
	"semestre":   PeriodSemiannual,
	"6m":         PeriodSemiannual,
	"annual":     PeriodAnnual,
	"annually":   PeriodAnnual,
	"yearly":     PeriodAnnual,
	"year":       PeriodAnnual,
	"anual":      PeriodAnnual,
	"annuel":     PeriodAnnual,
	"ano":        PeriodAnnual,
	"12m":        PeriodAnnual,
}

// ParseBillingPeriod normalizes a user-supplied period name.
// Matching ignores case, diacritics, whitespace, dashes and underscores,
// so "Semi-Annual", "BIANNUAL" and "semestral" all map to PeriodSemiannual.
func ParseBillingPeriod(s string) (BillingPeriod, bool) {
	key := normalizePeriodKey(s)
	if key == "" {
		return "", false
	}
	p, ok := periodSynonyms[key]
	return p, ok
}

func normalizePeriodKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			return -1
		}
		return r
	}, folded)
}

// InferBillingPeriod buckets a cycle duration into a period:
// (150, 250) days is semiannual, more than 300 days is annual, anything else monthly.
//
// Only used to backfill subscriptions created before the period was stored
// explicitly. A leap-year or irregular renewal can fall outside the buckets.
func InferBillingPeriod(start, end time.Time) BillingPeriod {
	days := daysBetween(start, end)
	switch {
	case days > 150 && days < 250:
		return PeriodSemiannual
	case days > 300:
		return PeriodAnnual
	default:
		return PeriodMonthly
	}
}

// daysBetween returns the whole number of days from a to b, rounded to the
// nearest day so DST shifts do not lose a day.
func daysBetween(a, b time.Time) int {
	d := b.Sub(a)
	return int((d + 12*time.Hour) / (24 * time.Hour))
}

// daysUntil returns the number of started days from now until t, never negative.
func daysUntil(now, t time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	days := d / (24 * time.Hour)
	if d%(24*time.Hour) != 0 {
		days++
	}
	return int(days)
}
