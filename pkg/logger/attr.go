package logger

import (
	"fmt"
	"log/slog"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.String("user_id", fmt.Sprint(id))
}

// SubscriptionID records the subscription identifier under "subscription_id".
func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.String("subscription_id", fmt.Sprint(id))
}

// InvoiceID records the invoice identifier under "invoice_id".
func InvoiceID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.String("invoice_id", fmt.Sprint(id))
}

func PlanCode(code string) slog.Attr {
	return slog.String("plan_code", code)
}

func Period(period string) slog.Attr {
	return slog.String("billing_period", period)
}

func CouponCode(code string) slog.Attr {
	return slog.String("coupon_code", code)
}

// Reason records a machine-readable business outcome, e.g. a blocked plan change.
func Reason(reason string) slog.Attr {
	return slog.String("reason", reason)
}

// Amount records a money amount in minor units together with its currency.
func Amount(key string, minor int64, currency string) slog.Attr {
	return slog.Group(key, slog.Int64("minor", minor), slog.String("currency", currency))
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
