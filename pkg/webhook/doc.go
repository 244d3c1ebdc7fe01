// Package webhook verifies the authenticity and freshness of inbound
// payment-provider webhook deliveries.
//
// Signatures are HMAC-SHA256 over "timestamp.payload", hex encoded, the
// scheme used by Stripe and compatible providers. Verification is a pure
// function with three outcomes:
//
//   - ResultValid: at least one supplied signature matches one configured
//     secret and the timestamp is inside the tolerance window
//   - ResultStale: the timestamp is outside the tolerance window; staleness
//     wins over signature correctness, so a correctly signed but old payload
//     cannot be replayed
//   - ResultInvalid: fresh timestamp but no signature/secret pair matches
//
// The verifier accepts multiple secrets to support zero-downtime secret
// rotation, and multiple candidate signatures because providers send one
// signature per active secret during their own rotation. All comparisons
// are constant time.
//
//	v := webhook.NewVerifier([]string{currentSecret, previousSecret}, 5*time.Minute)
//	switch v.Verify(payload, sigs, timestamp) {
//	case webhook.ResultValid:
//		// process the event
//	case webhook.ResultStale:
//		// reject: replay suspected, retrying has no benefit
//	case webhook.ResultInvalid:
//		// reject: signature mismatch, alert on repeated occurrences
//	}
package webhook
