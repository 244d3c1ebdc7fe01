package session

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// UserResolver extracts the authenticated user ID from a request. It
// identifies who the user is; it must never report what tier they claim
// to be. Return ErrUnauthorized (or any error) to reject the request.
type UserResolver func(r *http.Request) (uuid.UUID, error)

// Middleware loads the user's entitlement snapshot at the start of each
// request and places it in the request context. Handlers downstream read
// the snapshot with FromContext and make every gating decision against
// that one view.
//
// Requests the resolver rejects get 401. A store failure gets 503 rather
// than a guessed tier.
func (r *Reconciler) Middleware(resolve UserResolver) func(http.Handler) http.Handler {
	if resolve == nil {
		panic("session: user resolver is required")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userID, err := resolve(req)
			if err != nil || userID == uuid.Nil {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			snap, err := r.Load(req.Context(), userID)
			if err != nil {
				r.log.ErrorContext(req.Context(), "entitlement snapshot load failed",
					slog.String("user_id", userID.String()),
					slog.Any("error", err))
				http.Error(w, "entitlements unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, req.WithContext(WithSnapshot(req.Context(), snap)))
		})
	}
}
