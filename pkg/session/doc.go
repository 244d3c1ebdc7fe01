// Package session loads read-only entitlement snapshots into request
// context.
//
// A snapshot is taken once at the start of a unit of work and used for
// every decision inside it, so a tier change applied mid-request cannot
// make the request observe two different tiers. Snapshots are cached per
// user and re-read from the store when the refresh interval elapses or
// when a caller asks for an explicit refresh; they are never written back.
//
// The tier in a snapshot always comes from the store. Nothing in this
// package reads tier claims from cookies, headers, or tokens.
//
// Usage:
//
//	rec := session.NewReconciler(store, session.WithRefreshInterval(30*time.Second))
//
//	r.Use(rec.Middleware(userIDFromRequest))
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		snap, ok := session.FromContext(r.Context())
//		if !ok {
//			http.Error(w, "unauthenticated", http.StatusUnauthorized)
//			return
//		}
//		if snap.Tier == entitlement.TierPremium {
//			// premium path
//		}
//	}
package session
