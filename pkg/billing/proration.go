package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProrationInput describes a mid-cycle switch from the current term to a new cycle.
type ProrationInput struct {
	Start             time.Time // current cycle start
	End               time.Time // current cycle end
	Now               time.Time
	CurrentCyclePrice Money       // what the current cycle costs
	Prepaid           []PaidCycle // cycles paid in advance after End, oldest first
	NewCyclePrice     Money       // catalog price of the target plan and period
	NewPeriod         BillingPeriod
}

// PaidCycle is one billing cycle the customer has paid for.
type PaidCycle struct {
	Start time.Time
	End   time.Time
	Price Money
}

// ProrationPreview is the computed, non-persisted result of a plan switch.
type ProrationPreview struct {
	DaysRemaining    int             `json:"daysRemaining"`
	TotalDays        int             `json:"totalDays"`
	DailyRate        decimal.Decimal `json:"dailyRate"` // major units per day of the running cycle, unrounded
	UnusedCredit     Money           `json:"unusedCredit"`
	NewCyclePrice    Money           `json:"newCyclePrice"`
	ImmediatePayment Money           `json:"immediatePayment"`
	NewPeriodEnd     time.Time       `json:"newPeriodEnd"`
}

// Prorate credits the unused remainder of the current term against the new cycle price.
// For a single paid cycle:
//
//	daysRemaining    = ceil(end − now), clamped to [0, totalDays]
//	dailyRate        = currentCyclePrice / totalDays
//	unusedCredit     = round(currentCyclePrice × daysRemaining / totalDays)
//	immediatePayment = max(0, newCyclePrice − unusedCredit)
//
// Prepaid cycles extend the term: days and totals run to the end of the last
// one, and each cycle contributes its own price × unused days / cycle days.
// Credit is rounded once, after summing. The new cycle starts at now.
// A zero-length cycle yields no credit.
func Prorate(in ProrationInput) ProrationPreview {
	cycles := make([]PaidCycle, 0, len(in.Prepaid)+1)
	cycles = append(cycles, PaidCycle{Start: in.Start, End: in.End, Price: in.CurrentCyclePrice})
	cycles = append(cycles, in.Prepaid...)
	termEnd := cycles[len(cycles)-1].End

	total := daysBetween(in.Start, termEnd)
	remaining := min(daysUntil(in.Now, termEnd), max(total, 0))

	preview := ProrationPreview{
		DaysRemaining:    remaining,
		TotalDays:        total,
		DailyRate:        decimal.Zero,
		UnusedCredit:     Money{Currency: in.NewCyclePrice.Currency},
		NewCyclePrice:    in.NewCyclePrice,
		ImmediatePayment: in.NewCyclePrice.NonNegative(),
		NewPeriodEnd:     in.NewPeriod.EndDate(in.Now),
	}
	if total <= 0 || remaining <= 0 {
		return preview
	}

	credit := decimal.Zero
	running := false
	for _, c := range cycles {
		days := daysBetween(c.Start, c.End)
		left := min(daysUntil(in.Now, c.End), max(days, 0))
		if days <= 0 || left <= 0 {
			continue
		}
		price := c.Price.Decimal()
		cycleDays := decimal.NewFromInt(int64(days))
		if !running {
			preview.DailyRate = price.Div(cycleDays)
			running = true
		}
		credit = credit.Add(price.Mul(decimal.NewFromInt(int64(left))).Div(cycleDays))
	}

	preview.UnusedCredit = MoneyFromDecimal(credit, in.CurrentCyclePrice.Currency)
	preview.ImmediatePayment = in.NewCyclePrice.Sub(preview.UnusedCredit).NonNegative()
	return preview
}
