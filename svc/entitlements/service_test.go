package entitlements_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/entitlekit/pkg/billing"
	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/webhook"
	"github.com/dmitrymomot/entitlekit/svc/entitlements"
)

const testSecret = "whsec_service_test"

func testConfig() entitlements.Config {
	return entitlements.Config{
		WebhookSecrets:         []string{testSecret},
		WebhookTolerance:       5 * time.Minute,
		MaxWebhookBody:         1 << 20,
		CancellationPolicy:     "period_end",
		GracePeriod:            72 * time.Hour,
		QuotaStoreTimeout:      time.Second,
		SessionRefreshInterval: time.Minute,
	}
}

func newService(t *testing.T, store entitlement.Store, opts ...entitlements.Option) http.Handler {
	t.Helper()
	svc, err := entitlements.New(testConfig(), store, opts...)
	require.NoError(t, err)
	return svc.Router()
}

func activationPayload(eventID string, userID uuid.UUID, occurredAt time.Time) []byte {
	return fmt.Appendf(nil, `{
		"id": %q,
		"type": "subscription.activated",
		"occurred_at": %q,
		"data": {"user_id": %q, "tier": "premium", "subscription_id": "sub_123"}
	}`, eventID, occurredAt.Format(time.RFC3339), userID)
}

func webhookRequest(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	sig, ts, err := webhook.Sign(testSecret, payload, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(payload))
	req.Header.Set(webhook.HeaderSignature, sig)
	req.Header.Set(webhook.HeaderTimestamp, fmt.Sprintf("%d", ts))
	return req
}

func asUser(req *http.Request, userID uuid.UUID) *http.Request {
	req.Header.Set(entitlements.HeaderUserID, userID.String())
	return req
}

func TestWebhook_AppliedAndVisible(t *testing.T) {
	t.Parallel()

	store := entitlement.NewMemoryStore()
	handler := newService(t, store)
	userID := uuid.New()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, webhookRequest(t, activationPayload("evt_1", userID, time.Now())))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodGet, "/entitlements/me", nil), userID))
	require.Equal(t, http.StatusOK, rr.Code)

	var view map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "premium", view["tier"])
	assert.EqualValues(t, 10, view["daily_plan_limit"])
	assert.EqualValues(t, 7, view["resources_per_plan"])
}

func TestWebhook_DuplicateDeliveryAcked(t *testing.T) {
	t.Parallel()

	store := entitlement.NewMemoryStore()
	handler := newService(t, store)
	payload := activationPayload("evt_dup", uuid.New(), time.Now())

	for range 2 {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, webhookRequest(t, payload))
		assert.Equal(t, http.StatusOK, rr.Code, "redelivery must be acknowledged, not re-applied")
	}
}

func TestWebhook_InvalidSignature(t *testing.T) {
	t.Parallel()

	handler := newService(t, entitlement.NewMemoryStore())
	payload := activationPayload("evt_bad", uuid.New(), time.Now())

	req := webhookRequest(t, payload)
	req.Header.Set(webhook.HeaderSignature, "deadbeef")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "signature_invalid")
}

func TestWebhook_StaleTimestamp(t *testing.T) {
	t.Parallel()

	handler := newService(t, entitlement.NewMemoryStore())
	payload := activationPayload("evt_old", uuid.New(), time.Now())

	sig, ts, err := webhook.Sign(testSecret, payload, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(payload))
	req.Header.Set(webhook.HeaderSignature, sig)
	req.Header.Set(webhook.HeaderTimestamp, fmt.Sprintf("%d", ts))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "replay_suspected")
}

func TestWebhook_MissingHeaders(t *testing.T) {
	t.Parallel()

	handler := newService(t, entitlement.NewMemoryStore())
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing",
		bytes.NewReader(activationPayload("evt_x", uuid.New(), time.Now())))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// unavailableStore simulates a database outage for every operation.
type unavailableStore struct{}

func (unavailableStore) Get(ctx context.Context, userID uuid.UUID) (*entitlement.EntitlementRecord, error) {
	return nil, entitlement.ErrStoreUnavailable
}

func (unavailableStore) ApplyEvent(ctx context.Context, eventID string, userID uuid.UUID, occurredAt time.Time, mutate entitlement.Mutation) (entitlement.ApplyResult, error) {
	return "", entitlement.ErrStoreUnavailable
}

func (unavailableStore) IncrementUsage(ctx context.Context, userID uuid.UUID, day entitlement.Day, limit int64) (int64, bool, error) {
	return 0, false, entitlement.ErrStoreUnavailable
}

func TestWebhook_StoreOutageAnswersRetryable(t *testing.T) {
	t.Parallel()

	handler := newService(t, unavailableStore{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, webhookRequest(t, activationPayload("evt_down", uuid.New(), time.Now())))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code,
		"an unapplied event must not be acknowledged")
}

func TestPlanGeneration_FreemiumDailyLimit(t *testing.T) {
	t.Parallel()

	handler := newService(t, entitlement.NewMemoryStore())
	userID := uuid.New()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodPost, "/quota/plan-generations", nil), userID))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, true, body["allowed"])
	assert.EqualValues(t, 0, body["remaining"])

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodPost, "/quota/plan-generations", nil), userID))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "daily plan limit")
}

func TestPlanGeneration_QuotaStoreOutageFailsClosed(t *testing.T) {
	t.Parallel()

	// Entitlement reads work, usage counters do not.
	handler := newService(t, entitlement.NewMemoryStore(),
		entitlements.WithUsageStore(unavailableStore{}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodPost, "/quota/plan-generations", nil), uuid.New()))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestEntitlementsMe_Unauthenticated(t *testing.T) {
	t.Parallel()

	handler := newService(t, entitlement.NewMemoryStore())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/entitlements/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

type stubProvider struct {
	lastKey string
}

func (p *stubProvider) CreateCheckout(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p.lastKey = req.IdempotencyKey
	return &billing.CheckoutSession{
		URL:       "https://checkout.example.com/" + req.IdempotencyKey,
		SessionID: "txn_1",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()

		handler := newService(t, entitlement.NewMemoryStore())
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodPost, "/checkout", nil), uuid.New()))
		assert.Equal(t, http.StatusNotImplemented, rr.Code)
	})

	t.Run("creates session with idempotency key", func(t *testing.T) {
		t.Parallel()

		provider := &stubProvider{}
		handler := newService(t, entitlement.NewMemoryStore(), entitlements.WithProvider(provider))

		req := asUser(httptest.NewRequest(http.MethodPost, "/checkout",
			bytes.NewReader([]byte(`{"price_id": "pri_premium"}`))), uuid.New())
		req.Header.Set("X-Idempotency-Key", "retry-key-1")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "retry-key-1", provider.lastKey)
		assert.Contains(t, rr.Body.String(), "https://checkout.example.com/")
	})

	t.Run("missing price", func(t *testing.T) {
		t.Parallel()

		handler := newService(t, entitlement.NewMemoryStore(), entitlements.WithProvider(&stubProvider{}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodPost, "/checkout", nil), uuid.New()))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()

		handler := newService(t, entitlement.NewMemoryStore(),
			entitlements.WithHealthcheck("postgres", func(ctx context.Context) error { return nil }))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("failing dependency", func(t *testing.T) {
		t.Parallel()

		handler := newService(t, entitlement.NewMemoryStore(),
			entitlements.WithHealthcheck("redis", func(ctx context.Context) error {
				return errors.New("connection refused")
			}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestNew_RejectsUnknownCancellationPolicy(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CancellationPolicy = "whenever"
	_, err := entitlements.New(cfg, entitlement.NewMemoryStore())
	require.Error(t, err)
}
