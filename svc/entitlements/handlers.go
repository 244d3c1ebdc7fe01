package entitlements

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/billing"
	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/quota"
	"github.com/dmitrymomot/entitlekit/pkg/session"
	"github.com/dmitrymomot/entitlekit/pkg/webhook"
)

// Router builds the service's HTTP surface. The webhook endpoint stays
// outside the session middleware: the payment provider is not a user.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/webhooks/billing", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.reconciler.Middleware(s.resolve))
		r.Get("/entitlements/me", s.handleMe)
		r.Post("/quota/plan-generations", s.handlePlanGeneration)
		r.Post("/checkout", s.handleCheckout)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleWebhook receives payment-provider deliveries. The response code is
// the acknowledgement protocol: 200 means durably handled and stops
// redelivery, 400 means terminally rejected, 503 means try again.
func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	headers, err := webhook.ExtractHeaders(r.Header)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing signature headers")
		return
	}

	outcome, err := s.processor.Process(r.Context(), billing.Delivery{
		Payload: body,
		Headers: headers,
	})
	if err != nil {
		// Store outage: the event is not applied, tell the provider to
		// redeliver.
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
		return
	}

	if !outcome.Acked {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "rejected",
			"reason": string(outcome.Reason),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePlanGeneration consumes one plan-generation slot for today. The
// slot is spent at check time; plan assembly happens elsewhere and a later
// failure does not return it.
func (s *Service) handlePlanGeneration(w http.ResponseWriter, r *http.Request) {
	snap, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	decision := s.gate.CheckAndIncrement(r.Context(), snap.UserID, snap.Tier, entitlement.Today())
	switch {
	case decision.Allowed:
		writeJSON(w, http.StatusOK, map[string]any{
			"allowed":   true,
			"remaining": decision.Remaining,
		})
	case decision.Reason == quota.ReasonStoreUnavailable:
		writeError(w, http.StatusServiceUnavailable, decision.Message())
	default:
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"allowed": false,
			"message": decision.Message(),
		})
	}
}

type entitlementView struct {
	UserID           uuid.UUID  `json:"user_id"`
	Tier             string     `json:"tier"`
	DailyPlanLimit   int64      `json:"daily_plan_limit"`
	ResourcesPerPlan int        `json:"resources_per_plan"`
	InGrace          bool       `json:"in_grace"`
	CancelAt         *time.Time `json:"cancel_at,omitempty"`
	LoadedAt         time.Time  `json:"loaded_at"`
}

// handleMe returns the caller's entitlement snapshot as loaded at the
// start of the request.
func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	snap, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	cfg := snap.Config()
	view := entitlementView{
		UserID:           snap.UserID,
		Tier:             string(snap.Tier),
		DailyPlanLimit:   cfg.DailyPlanLimit,
		ResourcesPerPlan: cfg.ResourcesPerPlan,
		InGrace:          snap.InGrace(),
		LoadedAt:         snap.LoadedAt,
	}
	if snap.Record != nil {
		view.CancelAt = snap.Record.CancelAt
	}

	writeJSON(w, http.StatusOK, view)
}

type checkoutRequest struct {
	PriceID string `json:"price_id"`
	Email   string `json:"email"`
}

// handleCheckout creates a hosted checkout session for the premium tier.
// The idempotency key comes from the X-Idempotency-Key header so client
// retries resolve to the same checkout.
func (s *Service) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		writeError(w, http.StatusNotImplemented, "checkout is not configured")
		return
	}

	snap, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req checkoutRequest
	if r.Body != nil {
		// An empty body is fine; the configured price is the default.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}
	if req.PriceID == "" {
		req.PriceID = s.cfg.PremiumPriceID
	}

	key := r.Header.Get("X-Idempotency-Key")
	if key == "" {
		key = uuid.NewString()
	}

	sess, err := s.provider.CreateCheckout(r.Context(), billing.CheckoutRequest{
		IdempotencyKey: key,
		PriceID:        req.PriceID,
		UserID:         snap.UserID.String(),
		Email:          req.Email,
		SuccessURL:     s.cfg.CheckoutSuccessURL,
	})
	if err != nil {
		if errors.Is(err, billing.ErrMissingPriceID) {
			writeError(w, http.StatusBadRequest, "price_id is required")
			return
		}
		s.log.ErrorContext(r.Context(), "checkout creation failed", "error", err)
		writeError(w, http.StatusBadGateway, "checkout provider unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":        sess.URL,
		"session_id": sess.SessionID,
		"expires_at": sess.ExpiresAt,
	})
}

// handleHealth runs the registered readiness checks.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	failures := map[string]string{}
	for name, check := range s.health {
		if err := check(r.Context()); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "unhealthy",
			"failures": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
