package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/hostkit/handler"
	"github.com/dmitrymomot/hostkit/pkg/billing"
)

type quoteRequest struct {
	Properties int    `json:"properties" query:"properties"`
	Period     string `json:"period" query:"period"`
	CouponCode string `json:"couponCode" query:"couponCode"`
}

type planChangeRequest struct {
	TargetPlanCode      string `json:"targetPlanCode"`
	TargetBillingPeriod string `json:"targetBillingPeriod"`
}

func (r planChangeRequest) validate() error {
	v := handler.NewValidationError()
	if r.TargetPlanCode == "" {
		v.Add("targetPlanCode", "is required")
	}
	if r.TargetBillingPeriod == "" {
		v.Add("targetBillingPeriod", "is required")
	}
	return v.Err()
}

func (r planChangeRequest) toDomain() billing.PlanChangeRequest {
	return billing.PlanChangeRequest{
		TargetPlan:   billing.NormalizePlanCode(r.TargetPlanCode),
		TargetPeriod: r.TargetBillingPeriod,
	}
}

type checkoutRequest struct {
	planChangeRequest
	CouponCode string `json:"couponCode"`
}

type invoiceRequest struct {
	InvoiceID string `path:"invoiceID"`
}

type prorationResponse struct {
	Allowed bool `json:"allowed"`
	*billing.ProrationPreview
	CurrentPrice *billing.Money              `json:"currentPrice,omitempty"`
	PriceSource  string                      `json:"priceSource,omitempty"`
	Decision     *billing.PlanChangeDecision `json:"decision,omitempty"` // set when blocked
}

type overviewResponse struct {
	billing.Overview
	PriceSource string `json:"priceSource,omitempty"`
}

type couponResponse struct {
	Code    string               `json:"code"`
	Valid   bool                 `json:"valid"`
	Reason  billing.CouponReason `json:"reason,omitempty"`
	Message string               `json:"message,omitempty"`
}

type checkoutResponse struct {
	Decision billing.PlanChangeDecision `json:"decision"`
	Preview  *billing.ProrationPreview  `json:"preview,omitempty"`
	Coupon   *couponResponse            `json:"coupon,omitempty"`
	Invoice  *billing.Invoice           `json:"invoice,omitempty"`
}

type subscriptionResponse struct {
	ID              uuid.UUID                  `json:"id"`
	PlanCode        billing.PlanCode           `json:"planCode"`
	BillingPeriod   billing.BillingPeriod      `json:"billingPeriod"`
	Status          billing.SubscriptionStatus `json:"status"`
	StartDate       time.Time                  `json:"startDate"`
	EndDate         time.Time                  `json:"endDate"`
	CancelledAt     *time.Time                 `json:"cancelledAt,omitempty"`
	DaysUntilExpiry int                        `json:"daysUntilExpiry"`
}

func toSubscriptionResponse(sub *billing.Subscription, now time.Time) subscriptionResponse {
	period, _ := sub.EffectivePeriod()
	return subscriptionResponse{
		ID:              sub.ID,
		PlanCode:        sub.PlanCode,
		BillingPeriod:   period,
		Status:          sub.Status,
		StartDate:       sub.StartDate,
		EndDate:         sub.EndDate,
		CancelledAt:     sub.CancelledAt,
		DaysUntilExpiry: sub.DaysUntilExpiry(now),
	}
}

func (m *Module) plans(_ handler.Context, _ struct{}) handler.Response {
	return handler.JSON(m.svc.VisiblePlans())
}

func (m *Module) quote(ctx handler.Context, req quoteRequest) handler.Response {
	if req.Properties <= 0 {
		v := handler.NewValidationError()
		v.Add("properties", "must be a positive number")
		return handler.Error(v)
	}

	// pricing is public, anonymous visitors get quotes without per-user coupon limits
	userID, _ := m.users.UserID(ctx.Request())
	q, err := m.svc.Quote(ctx, userID, billing.QuoteRequest{
		Properties: req.Properties,
		Period:     req.Period,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(q)
}

func (m *Module) validatePlanChange(ctx handler.Context, req planChangeRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Error(err)
	}
	userID, err := m.users.UserID(ctx.Request())
	if err != nil {
		return handler.Error(err)
	}
	decision, err := m.svc.ValidatePlanChange(ctx, userID, req.toDomain())
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(decision)
}

func (m *Module) previewProration(ctx handler.Context, req planChangeRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Error(err)
	}
	userID, err := m.users.UserID(ctx.Request())
	if err != nil {
		return handler.Error(err)
	}
	res, err := m.svc.PreviewProration(ctx, userID, req.toDomain())
	if err != nil {
		return handler.Error(err)
	}

	if !res.Decision.Allowed {
		return handler.JSON(prorationResponse{Decision: &res.Decision})
	}
	out := prorationResponse{Allowed: true, ProrationPreview: res.Preview}
	if res.CurrentPrice != nil {
		price := res.CurrentPrice.Price()
		out.CurrentPrice = &price
		out.PriceSource = res.CurrentPrice.Source()
	}
	return handler.JSON(out)
}

func (m *Module) overview(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := m.users.UserID(ctx.Request())
	if err != nil {
		return handler.Error(err)
	}
	ov, err := m.svc.Overview(ctx, userID)
	if err != nil {
		return handler.Error(err)
	}
	out := overviewResponse{Overview: ov}
	if ov.PriceSource != nil {
		out.PriceSource = ov.PriceSource.Source()
	}
	return handler.JSON(out)
}

func (m *Module) checkout(ctx handler.Context, req checkoutRequest) handler.Response {
	if err := req.validate(); err != nil {
		return handler.Error(err)
	}
	userID, err := m.users.UserID(ctx.Request())
	if err != nil {
		return handler.Error(err)
	}
	res, err := m.svc.Checkout(ctx, userID, billing.CheckoutRequest{
		PlanChangeRequest: req.toDomain(),
		CouponCode:        req.CouponCode,
	})
	if err != nil {
		return handler.Error(err)
	}

	out := checkoutResponse{Decision: res.Decision, Preview: res.Preview, Invoice: res.Invoice}
	if res.Coupon != nil {
		out.Coupon = &couponResponse{
			Code:    req.CouponCode,
			Valid:   res.Coupon.Valid,
			Reason:  res.Coupon.Reason,
			Message: res.Coupon.Message,
		}
	}
	if res.Invoice == nil {
		return handler.JSON(out, handler.WithStatus(http.StatusConflict))
	}
	return handler.JSON(out, handler.WithStatus(http.StatusCreated))
}

func (m *Module) renew(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := m.users.UserID(ctx.Request())
	if err != nil {
		return handler.Error(err)
	}
	inv, err := m.svc.Renew(ctx, userID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(inv, handler.WithStatus(http.StatusCreated))
}

func (m *Module) cancel(ctx handler.Context, _ struct{}) handler.Response {
	return m.lifecycle(ctx, m.svc.Cancel)
}

func (m *Module) resume(ctx handler.Context, _ struct{}) handler.Response {
	return m.lifecycle(ctx, m.svc.Resume)
}

func (m *Module) lifecycle(ctx handler.Context, fn func(ctx context.Context, userID uuid.UUID) (*billing.Subscription, error)) handler.Response {
	userID, err := m.users.UserID(ctx.Request())
	if err != nil {
		return handler.Error(err)
	}
	sub, err := fn(ctx, userID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(toSubscriptionResponse(sub, m.now()))
}

func (m *Module) confirmPayment(ctx handler.Context, req invoiceRequest) handler.Response {
	id, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		return handler.Error(billing.ErrInvoiceNotFound)
	}
	sub, err := m.svc.ConfirmPayment(ctx, id)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(toSubscriptionResponse(sub, m.now()))
}

func (m *Module) rejectPayment(ctx handler.Context, req invoiceRequest) handler.Response {
	id, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		return handler.Error(billing.ErrInvoiceNotFound)
	}
	inv, err := m.svc.RejectPayment(ctx, id)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(inv)
}
