// Package logger provides a context-aware wrapper around Go's slog package
// adding functional options for configuration, helper attribute
// constructors, and transparent injection of values stored in
// context.Context.
//
// New builds a *slog.Logger whose handler is wrapped by
// LogHandlerDecorator; the decorator runs registered ContextExtractor
// callbacks on every record so request-scoped values such as request IDs
// appear on every line without each call site naming them.
//
// The attribute constructors in attr.go keep key naming consistent across
// the codebase: user_id, event_id, tier, day, and so on are always spelled
// the same way.
//
// Usage:
//
//	log := logger.New(
//	    logger.WithProduction("entitlekit"),
//	    logger.WithContextValue("request_id", ctxKeyRequestID),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "tier change applied",
//	    logger.UserID(userID),
//	    logger.EventID(eventID),
//	    logger.Tier(tier),
//	)
package logger
