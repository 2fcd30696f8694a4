package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/hostkit/pkg/logger"
)

// Service defines the billing operations exposed to the HTTP layer and jobs.
type Service interface {
	// Catalog and pricing
	VisiblePlans() []Plan
	Quote(ctx context.Context, userID uuid.UUID, req QuoteRequest) (*Quote, error)
	ValidateCoupon(ctx context.Context, userID uuid.UUID, code string, amount Money) (CouponValidation, error)

	// Plan changes
	ValidatePlanChange(ctx context.Context, userID uuid.UUID, req PlanChangeRequest) (PlanChangeDecision, error)
	PreviewProration(ctx context.Context, userID uuid.UUID, req PlanChangeRequest) (*ProrationResult, error)
	Overview(ctx context.Context, userID uuid.UUID) (Overview, error)

	// Purchase flow
	Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error)
	Renew(ctx context.Context, userID uuid.UUID) (*Invoice, error)
	ConfirmPayment(ctx context.Context, invoiceID uuid.UUID) (*Subscription, error)
	RejectPayment(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error)

	// Lifecycle
	Cancel(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	Resume(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// QuoteRequest prices a property count for a period with an optional coupon.
type QuoteRequest struct {
	Properties int
	Period     string // empty means monthly
	CouponCode string
}

// CouponQuote is the coupon part of a price quote.
type CouponQuote struct {
	Code            string       `json:"code"`
	Type            CouponType   `json:"type,omitempty"`
	Valid           bool         `json:"valid"`
	Reason          CouponReason `json:"reason,omitempty"`
	Message         string       `json:"message,omitempty"`
	EquivalentValue Money        `json:"equivalentValue"`
	ExtraMonths     int          `json:"extraMonths,omitempty"`
}

// Quote is the price of the tier matching a property count.
type Quote struct {
	Plan                   Plan          `json:"plan"`
	Period                 BillingPeriod `json:"period"`
	TotalPrice             Money         `json:"totalPrice"`
	DiscountAmount         Money         `json:"discountAmount"`
	FinalPrice             Money         `json:"finalPrice"`
	PeriodDiscountPercent  int           `json:"periodDiscountPercent"`
	PeriodSavings          Money         `json:"periodSavings"` // against paying monthly
	Coupon                 *CouponQuote  `json:"coupon,omitempty"`
	NeedsEnterpriseContact bool          `json:"needsEnterpriseContact"`
}

// ProrationResult pairs the change decision with the preview when the change is allowed.
type ProrationResult struct {
	Decision     PlanChangeDecision `json:"decision"`
	Preview      *ProrationPreview  `json:"preview,omitempty"`
	CurrentPrice PriceSource        `json:"-"`
}

// CheckoutRequest starts a purchase of a plan and period.
type CheckoutRequest struct {
	PlanChangeRequest
	CouponCode string
}

// CheckoutResult holds the pending invoice, or the reason no invoice was issued.
type CheckoutResult struct {
	Decision PlanChangeDecision `json:"decision"`
	Coupon   *CouponValidation  `json:"coupon,omitempty"`
	Preview  *ProrationPreview  `json:"preview,omitempty"`
	Invoice  *Invoice           `json:"invoice,omitempty"` // nil when blocked
}

const (
	defaultInvoiceDueIn = 7 * 24 * time.Hour
	defaultLockTTL      = 30 * time.Second
)

type service struct {
	calc            *Calculator
	store           Store
	log             *slog.Logger
	locker          Locker
	lockTTL         time.Duration
	now             func() time.Time
	countProperties PropertyCounterFunc
	invoiceDueIn    time.Duration
}

// NewService creates the billing service.
// Panics if catalog or store is nil to fail fast during initialization.
func NewService(catalog *Catalog, store Store, opts ...ServiceOption) Service {
	if catalog == nil {
		panic("billing: catalog is required")
	}
	if store == nil {
		panic("billing: store is required")
	}

	s := &service{
		store:           store,
		log:             logger.Discard(),
		lockTTL:         defaultLockTTL,
		now:             time.Now,
		countProperties: func(context.Context, uuid.UUID) (int, error) { return 0, nil },
		invoiceDueIn:    defaultInvoiceDueIn,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("billing"))
	s.calc = NewCalculator(catalog, s.log)
	return s
}

func (s *service) VisiblePlans() []Plan {
	return s.calc.Catalog().VisiblePlans()
}

// currentSubscription returns nil without error when the user has no subscription.
func (s *service) currentSubscription(ctx context.Context, r Reader, userID uuid.UUID) (*Subscription, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	sub, err := r.CurrentSubscription(ctx, userID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	s.warnInferredPeriod(ctx, sub)
	return sub, nil
}

func (s *service) warnInferredPeriod(ctx context.Context, sub *Subscription) {
	if p, inferred := sub.EffectivePeriod(); inferred {
		s.log.WarnContext(ctx, "subscription has no stored billing period, inferred from cycle length",
			logger.SubscriptionID(sub.ID),
			logger.Period(string(p)),
		)
	}
}

// lastPaidInvoice returns nil without error when nothing is paid yet.
func (s *service) lastPaidInvoice(ctx context.Context, r Reader, sub *Subscription) (*Invoice, error) {
	inv, err := r.LastPaidInvoice(ctx, sub.ID)
	if errors.Is(err, ErrInvoiceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return inv, nil
}

func (s *service) ValidatePlanChange(ctx context.Context, userID uuid.UUID, req PlanChangeRequest) (PlanChangeDecision, error) {
	sub, err := s.currentSubscription(ctx, s.store, userID)
	if err != nil {
		return PlanChangeDecision{}, err
	}
	decision, err := ValidatePlanChange(s.calc.Catalog(), sub, req, s.now())
	if err != nil {
		return PlanChangeDecision{}, err
	}
	if !decision.Allowed {
		s.log.InfoContext(ctx, "plan change blocked",
			logger.UserID(userID),
			logger.PlanCode(string(decision.TargetPlan)),
			logger.Reason(string(decision.Reason)),
		)
	}
	return decision, nil
}

func (s *service) PreviewProration(ctx context.Context, userID uuid.UUID, req PlanChangeRequest) (*ProrationResult, error) {
	sub, err := s.currentSubscription(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	return s.preview(ctx, s.store, sub, req, s.now())
}

func (s *service) preview(ctx context.Context, r Reader, sub *Subscription, req PlanChangeRequest, now time.Time) (*ProrationResult, error) {
	decision, err := ValidatePlanChange(s.calc.Catalog(), sub, req, now)
	if err != nil {
		return nil, err
	}
	result := &ProrationResult{Decision: decision}
	if !decision.Allowed {
		return result, nil
	}

	target, err := s.calc.Catalog().Plan(decision.TargetPlan)
	if err != nil {
		return nil, err
	}
	in := ProrationInput{
		Start:         now,
		End:           now,
		Now:           now,
		NewCyclePrice: s.calc.CalculatePrice(ctx, target, decision.TargetPeriod),
		NewPeriod:     decision.TargetPeriod,
	}

	if decision.Kind != ChangeNewSubscription {
		last, err := s.lastPaidInvoice(ctx, r, sub)
		if err != nil {
			return nil, err
		}
		current, err := resolveCyclePrice(s.calc, sub, last)
		if err != nil {
			return nil, err
		}
		result.CurrentPrice = current
		cycles, err := s.paidCycles(ctx, r, sub, current)
		if err != nil {
			return nil, err
		}
		in.Start = cycles[0].Start
		in.End = cycles[0].End
		in.CurrentCyclePrice = cycles[0].Price
		in.Prepaid = cycles[1:]
	}

	preview := Prorate(in)
	result.Preview = &preview
	return result, nil
}

// paidCycles splits the current term into the cycles paid for it, oldest first.
// A term without invoices of its own is a single cycle at the resolved price.
func (s *service) paidCycles(ctx context.Context, r Reader, sub *Subscription, current PriceSource) ([]PaidCycle, error) {
	invoices, err := r.PaidInvoices(ctx, sub.ID, sub.StartDate)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if len(invoices) == 0 {
		return []PaidCycle{{Start: sub.StartDate, End: sub.EndDate, Price: current.Price()}}, nil
	}

	cycles := make([]PaidCycle, 0, len(invoices))
	start := sub.StartDate
	for _, inv := range invoices {
		end := inv.BillingPeriod.EndDate(start).AddDate(0, inv.ExtraMonths, 0)
		if end.After(sub.EndDate) {
			end = sub.EndDate
		}
		cycles = append(cycles, PaidCycle{Start: start, End: end, Price: inv.CyclePrice()})
		start = end
	}
	cycles[len(cycles)-1].End = sub.EndDate
	return cycles, nil
}

func (s *service) Quote(ctx context.Context, userID uuid.UUID, req QuoteRequest) (*Quote, error) {
	catalog := s.calc.Catalog()
	plan, err := catalog.PlanForPropertyCount(req.Properties)
	if err != nil {
		return nil, err
	}

	period := PeriodMonthly
	if req.Period != "" {
		p, ok := ParseBillingPeriod(req.Period)
		if !ok {
			s.log.WarnContext(ctx, "unknown billing period in quote, pricing as monthly",
				logger.Period(req.Period),
			)
		} else {
			period = p
		}
	}

	total := s.calc.CalculatePrice(ctx, plan, period)
	q := &Quote{
		Plan:                   plan,
		Period:                 period,
		TotalPrice:             total,
		DiscountAmount:         Money{Currency: total.Currency},
		FinalPrice:             total,
		PeriodDiscountPercent:  period.DiscountPercent(),
		PeriodSavings:          s.calc.Savings(plan, period),
		NeedsEnterpriseContact: catalog.NeedsEnterpriseContact(req.Properties),
	}

	if req.CouponCode == "" {
		return q, nil
	}

	v, err := s.ValidateCoupon(ctx, userID, req.CouponCode, total)
	if err != nil {
		return nil, err
	}
	cq := &CouponQuote{Code: req.CouponCode, Valid: v.Valid, Reason: v.Reason, Message: v.Message}
	q.Coupon = cq
	if !v.Valid {
		return q, nil
	}

	d, err := ApplyCoupon(v.Coupon, total)
	if err != nil {
		return nil, err
	}
	cq.Code = v.Coupon.Code
	cq.Type = v.Coupon.Type
	cq.EquivalentValue = d.EquivalentValue
	cq.ExtraMonths = d.ExtraMonths
	q.DiscountAmount = d.Amount
	q.FinalPrice = total.Sub(d.Amount).NonNegative()
	return q, nil
}

func (s *service) ValidateCoupon(ctx context.Context, userID uuid.UUID, code string, amount Money) (CouponValidation, error) {
	return s.validateCoupon(ctx, s.store, userID, code, amount, s.now())
}

func (s *service) validateCoupon(ctx context.Context, r Reader, userID uuid.UUID, code string, amount Money, now time.Time) (CouponValidation, error) {
	c, err := r.CouponByCode(ctx, code)
	if errors.Is(err, ErrCouponNotFound) {
		return ValidateCoupon(nil, CouponCheck{Now: now, Amount: amount}), nil
	}
	if err != nil {
		return CouponValidation{}, errors.Join(ErrStoreUnavailable, err)
	}

	global, user, err := r.CouponUses(ctx, c.ID, userID)
	if err != nil {
		return CouponValidation{}, errors.Join(ErrStoreUnavailable, err)
	}
	v := ValidateCoupon(c, CouponCheck{Now: now, Amount: amount, GlobalUses: global, UserUses: user})
	if !v.Valid {
		s.log.InfoContext(ctx, "coupon rejected",
			logger.UserID(userID),
			logger.CouponCode(c.Code),
			logger.Reason(string(v.Reason)),
		)
	}
	return v, nil
}

func (s *service) Overview(ctx context.Context, userID uuid.UUID) (Overview, error) {
	sub, err := s.currentSubscription(ctx, s.store, userID)
	if err != nil {
		return Overview{}, err
	}
	properties, err := s.countProperties(ctx, userID)
	if err != nil {
		return Overview{}, errors.Join(ErrFailedToCountResources, err)
	}

	var last *Invoice
	if sub != nil {
		if last, err = s.lastPaidInvoice(ctx, s.store, sub); err != nil {
			return Overview{}, err
		}
	}
	return BuildOverview(s.calc, sub, last, properties, s.now())
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (*CheckoutResult, error) {
	now := s.now()
	sub, err := s.currentSubscription(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}

	pr, err := s.preview(ctx, s.store, sub, req.PlanChangeRequest, now)
	if err != nil {
		return nil, err
	}
	result := &CheckoutResult{Decision: pr.Decision, Preview: pr.Preview}
	if !pr.Decision.Allowed {
		return result, nil
	}

	preview := pr.Preview
	inv := &Invoice{
		ID:            uuid.New(),
		UserID:        userID,
		Kind:          pr.Decision.Kind,
		PlanCode:      pr.Decision.TargetPlan,
		BillingPeriod: pr.Decision.TargetPeriod,
		Amount:        preview.NewCyclePrice,
		Discount:      Money{Currency: preview.NewCyclePrice.Currency},
		Credit:        preview.UnusedCredit,
		Status:        InvoicePending,
		IssuedAt:      now,
		DueAt:         now.Add(s.invoiceDueIn),
	}
	if pr.Decision.Kind != ChangeNewSubscription {
		inv.BaseVersion = sub.Version
	}

	if req.CouponCode != "" {
		v, err := s.validateCoupon(ctx, s.store, userID, req.CouponCode, inv.Amount, now)
		if err != nil {
			return nil, err
		}
		result.Coupon = &v
		if !v.Valid {
			return result, nil
		}
		d, err := ApplyCoupon(v.Coupon, inv.Amount)
		if err != nil {
			return nil, err
		}
		inv.CouponCode = v.Coupon.Code
		inv.Discount = d.Amount
		inv.ExtraMonths = d.ExtraMonths
	}
	inv.FinalAmount = inv.Amount.Sub(inv.Discount).Sub(inv.Credit).NonNegative()

	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	s.log.InfoContext(ctx, "invoice issued",
		logger.UserID(userID),
		logger.InvoiceID(inv.ID),
		logger.PlanCode(string(inv.PlanCode)),
		logger.Period(string(inv.BillingPeriod)),
		logger.Amount("final_amount", inv.FinalAmount.Amount, inv.FinalAmount.Currency),
	)
	result.Invoice = inv
	return result, nil
}

// Renew issues an invoice for the next cycle of the current plan and period,
// priced like the running cycle so catalog edits do not reprice existing customers.
func (s *service) Renew(ctx context.Context, userID uuid.UUID) (*Invoice, error) {
	now := s.now()
	sub, err := s.currentSubscription(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil || !sub.CanTransition(ctx, EventRenew, now) || sub.EndDate.Before(now) {
		return nil, ErrNoActiveSubscription
	}

	last, err := s.lastPaidInvoice(ctx, s.store, sub)
	if err != nil {
		return nil, err
	}
	price, err := resolveCyclePrice(s.calc, sub, last)
	if err != nil {
		return nil, err
	}
	period, _ := sub.EffectivePeriod()
	amount := price.Price()

	inv := &Invoice{
		ID:            uuid.New(),
		UserID:        userID,
		Kind:          ChangeRenewal,
		BaseVersion:   sub.Version,
		PlanCode:      sub.PlanCode,
		BillingPeriod: period,
		Amount:        amount,
		Discount:      Money{Currency: amount.Currency},
		Credit:        Money{Currency: amount.Currency},
		FinalAmount:   amount,
		Status:        InvoicePending,
		IssuedAt:      now,
		DueAt:         sub.EndDate,
	}
	if err := s.store.CreateInvoice(ctx, inv); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	s.log.InfoContext(ctx, "renewal invoice issued",
		logger.UserID(userID),
		logger.SubscriptionID(sub.ID),
		logger.InvoiceID(inv.ID),
		slog.String("price_source", price.Source()),
	)
	return inv, nil
}

// ConfirmPayment applies a paid invoice. Inside one transaction it locks the
// user's subscription, re-validates the change against the latest committed state,
// consumes the coupon and writes the subscription and invoice.
func (s *service) ConfirmPayment(ctx context.Context, invoiceID uuid.UUID) (*Subscription, error) {
	pending, err := s.store.Invoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, err
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, userLockKey(pending.UserID), s.lockTTL)
		if err != nil {
			return nil, errors.Join(ErrLockNotAcquired, err)
		}
		defer release()
	}

	var result *Subscription
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now()
		inv, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		paid, err := inv.NextStatus(ctx, EventPay)
		if err != nil {
			return errors.Join(ErrInvoiceNotPending, err)
		}

		sub, err := tx.LockSubscription(ctx, inv.UserID)
		switch {
		case errors.Is(err, ErrSubscriptionNotFound):
			sub = nil
		case err != nil:
			return err
		}

		var baseVersion int64
		if sub.IsActive(now) || (sub != nil && inv.Kind == ChangeRenewal) {
			baseVersion = sub.Version
		}
		if baseVersion != inv.BaseVersion {
			return fmt.Errorf("%w: invoice was issued against version %d, current is %d",
				ErrSubscriptionConflict, inv.BaseVersion, baseVersion)
		}

		if inv.CouponCode != "" {
			if err := s.consumeCoupon(ctx, tx, inv, now); err != nil {
				return err
			}
		}

		if inv.Kind == ChangeRenewal {
			result, err = s.applyRenewal(ctx, tx, sub, inv, now)
		} else {
			result, err = s.applyChange(ctx, tx, sub, inv, now)
		}
		if err != nil {
			return err
		}

		inv.Status = paid
		inv.PaidAt = &now
		inv.SubscriptionID = &result.ID
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "payment confirmation failed",
			logger.InvoiceID(invoiceID),
			logger.UserID(pending.UserID),
			logger.Error(err),
		)
		return nil, err
	}

	s.log.InfoContext(ctx, "payment confirmed",
		logger.InvoiceID(invoiceID),
		logger.SubscriptionID(result.ID),
		logger.PlanCode(string(result.PlanCode)),
		logger.Period(string(result.BillingPeriod)),
	)
	return result, nil
}

func (s *service) consumeCoupon(ctx context.Context, tx Tx, inv *Invoice, now time.Time) error {
	v, err := s.validateCoupon(ctx, tx, inv.UserID, inv.CouponCode, inv.Amount, now)
	if err != nil {
		return err
	}
	if !v.Valid {
		return couponError(v.Reason)
	}
	return tx.ConsumeCoupon(ctx, v.Coupon, CouponUse{
		ID:        uuid.New(),
		CouponID:  v.Coupon.ID,
		UserID:    inv.UserID,
		InvoiceID: inv.ID,
		UsedAt:    now,
	})
}

func couponError(reason CouponReason) error {
	switch reason {
	case CouponReasonExhausted:
		return ErrCouponExhausted
	case CouponReasonUserLimit:
		return ErrCouponUserLimit
	case CouponReasonNotFound:
		return ErrCouponNotFound
	}
	return fmt.Errorf("%w: %s", ErrCouponRejected, reason)
}

// applyChange creates a subscription or moves the active one to the invoiced plan.
func (s *service) applyChange(ctx context.Context, tx Tx, sub *Subscription, inv *Invoice, now time.Time) (*Subscription, error) {
	decision, err := ValidatePlanChange(s.calc.Catalog(), sub, PlanChangeRequest{
		TargetPlan:   inv.PlanCode,
		TargetPeriod: string(inv.BillingPeriod),
	}, now)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrPlanChangeNotAllowed, decision.Reason)
	}

	end := inv.BillingPeriod.EndDate(now).AddDate(0, inv.ExtraMonths, 0)

	if decision.Kind == ChangeNewSubscription {
		if sub != nil {
			// a lapsed or cancelled term is closed before the new one starts
			event := EventExpire
			if sub.Status == StatusCancelled && !sub.EndDate.Before(now) {
				event = EventSupersede
			}
			if err := s.transition(ctx, tx, sub, event, now); err != nil {
				return nil, err
			}
		}
		next := &Subscription{
			ID:            uuid.New(),
			UserID:        inv.UserID,
			PlanCode:      inv.PlanCode,
			BillingPeriod: inv.BillingPeriod,
			Status:        StatusActive,
			StartDate:     now,
			EndDate:       end,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.SaveSubscription(ctx, next); err != nil {
			return nil, err
		}
		return next, nil
	}

	status, err := sub.NextStatus(ctx, EventChange, now)
	if err != nil {
		return nil, errors.Join(ErrInvalidSubscription, err)
	}
	sub.Status = status
	sub.PlanCode = inv.PlanCode
	sub.BillingPeriod = inv.BillingPeriod
	sub.StartDate = now
	sub.EndDate = end
	sub.CustomPrice = nil
	sub.UpdatedAt = now
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// applyRenewal extends the current term by one cycle. A cancelled subscription is resumed.
// A lapsed term restarts at now.
func (s *service) applyRenewal(ctx context.Context, tx Tx, sub *Subscription, inv *Invoice, now time.Time) (*Subscription, error) {
	if sub == nil || sub.PlanCode != inv.PlanCode {
		return nil, fmt.Errorf("%w: renewal does not match current subscription", ErrInvalidSubscription)
	}
	status, err := sub.NextStatus(ctx, EventRenew, now)
	if err != nil {
		return nil, errors.Join(ErrInvalidSubscription, err)
	}
	// a running term keeps its start so proration sees every prepaid cycle
	from := sub.EndDate
	if from.Before(now) {
		from = now
		sub.StartDate = now
	}
	sub.Status = status
	sub.BillingPeriod = inv.BillingPeriod
	sub.EndDate = inv.BillingPeriod.EndDate(from).AddDate(0, inv.ExtraMonths, 0)
	sub.CancelledAt = nil
	sub.UpdatedAt = now
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *service) RejectPayment(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	var result *Invoice
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		inv, err := tx.LockInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		status, err := inv.NextStatus(ctx, EventReject)
		if err != nil {
			return errors.Join(ErrInvoiceNotPending, err)
		}
		inv.Status = status
		result = inv
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "payment rejected", logger.InvoiceID(invoiceID), logger.UserID(result.UserID))
	return result, nil
}

// Cancel stops renewal. The subscription keeps access until its end date.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.updateCurrent(ctx, userID, EventCancel, func(sub *Subscription, now time.Time) {
		sub.CancelledAt = &now
	})
}

// Resume undoes a cancellation before the term ends.
func (s *service) Resume(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.updateCurrent(ctx, userID, EventRenew, func(sub *Subscription, _ time.Time) {
		sub.CancelledAt = nil
	})
}

func (s *service) updateCurrent(ctx context.Context, userID uuid.UUID, event SubscriptionEvent, mutate func(*Subscription, time.Time)) (*Subscription, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	var result *Subscription
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		now := s.now()
		sub, err := tx.LockSubscription(ctx, userID)
		if errors.Is(err, ErrSubscriptionNotFound) || (err == nil && sub.EndDate.Before(now)) {
			return ErrNoActiveSubscription
		}
		if err != nil {
			return err
		}
		if event == EventRenew && sub.Status != StatusCancelled {
			return fmt.Errorf("%w: subscription is not cancelled", ErrInvalidSubscription)
		}
		mutate(sub, now)
		if err := s.transition(ctx, tx, sub, event, now); err != nil {
			return err
		}
		result = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "subscription updated",
		logger.UserID(userID),
		logger.SubscriptionID(result.ID),
		slog.String("event", string(event)),
		slog.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *service) transition(ctx context.Context, tx Tx, sub *Subscription, event SubscriptionEvent, now time.Time) error {
	status, err := sub.NextStatus(ctx, event, now)
	if err != nil {
		return errors.Join(ErrInvalidSubscription, err)
	}
	sub.Status = status
	sub.UpdatedAt = now
	return tx.SaveSubscription(ctx, sub)
}

// ExpireDue marks subscriptions past their end date as expired and returns how many were expired.
func (s *service) ExpireDue(ctx context.Context, limit int) (int, error) {
	now := s.now()
	due, err := s.store.DueSubscriptions(ctx, now, limit)
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}

	expired := 0
	for _, d := range due {
		changed := false
		err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			sub, err := tx.LockSubscription(ctx, d.UserID)
			if err != nil {
				return err
			}
			if sub.ID != d.ID || !sub.EndDate.Before(now) {
				// renewed or replaced in the meantime
				return nil
			}
			changed = true
			return s.transition(ctx, tx, sub, EventExpire, now)
		})
		if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
			s.log.ErrorContext(ctx, "failed to expire subscription",
				logger.SubscriptionID(d.ID),
				logger.Error(err),
			)
			return expired, err
		}
		if err == nil && changed {
			expired++
		}
	}
	if expired > 0 {
		s.log.InfoContext(ctx, "subscriptions expired", slog.Int("count", expired))
	}
	return expired, nil
}

func userLockKey(userID uuid.UUID) string {
	return "billing:user:" + userID.String()
}
