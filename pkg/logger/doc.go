// Package logger builds *slog.Logger instances for hostkit services.
//
// New creates a logger from functional options (format, level, output,
// static attributes) and wraps the handler with a decorator that injects
// attributes pulled from context.Context on every record, such as the
// request ID set by the requestid middleware.
//
// Attribute helpers in attr.go keep key names consistent across packages:
//
//	log.InfoContext(ctx, "plan change blocked",
//		logger.UserID(userID),
//		logger.PlanCode("HOST"),
//		logger.Reason("DowngradeRequiresExpiry"),
//	)
//
// Discard returns a logger that drops everything; libraries use it when the
// caller does not supply one.
package logger
