// Package email sends the transactional notifications that billing events
// trigger, most notably the premium upgrade confirmation.
//
// It is built around the EmailSender interface so the delivery provider can
// be swapped without touching callers. Two implementations ship with the
// package:
//   - PostmarkClient for production delivery with open tracking
//   - DevSender for local development, which writes each email to disk
//
// The UpgradeNotifier type adapts an EmailSender to the billing processor's
// notifier hook: it looks up the recipient address by user ID, renders the
// upgrade confirmation, and sends it. Delivery failures are the caller's to
// log; they never affect entitlement state.
//
// Usage:
//
//	sender := email.MustNewPostmarkClient(cfg)
//	notifier := email.NewUpgradeNotifier(sender, lookupAddress)
//	processor := billing.NewProcessor(verifier, store, billing.WithNotifier(notifier))
package email
