package entitlements

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/entitlekit/pkg/billing"
	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/quota"
	"github.com/dmitrymomot/entitlekit/pkg/session"
	"github.com/dmitrymomot/entitlekit/pkg/webhook"
)

// Service wires the entitlement engine together behind an HTTP surface.
type Service struct {
	cfg   Config
	store entitlement.Store
	log   *slog.Logger

	processor  *billing.Processor
	gate       *quota.Gate
	reconciler *session.Reconciler

	// optional collaborators
	provider billing.Provider
	notifier billing.Notifier
	metrics  *billing.Metrics
	usage    quota.UsageStore
	resolve  session.UserResolver
	health   map[string]func(context.Context) error
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithProvider enables POST /checkout via the given payment provider.
func WithProvider(p billing.Provider) Option {
	return func(s *Service) { s.provider = p }
}

// WithNotifier sets the upgrade-confirmation notifier passed through to the
// event processor.
func WithNotifier(n billing.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics wires Prometheus counters into the event processor.
func WithMetrics(m *billing.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithUsageStore routes quota counters to a dedicated store (typically
// Redis) instead of the entitlement store.
func WithUsageStore(u quota.UsageStore) Option {
	return func(s *Service) {
		if u != nil {
			s.usage = u
		}
	}
}

// WithUserResolver overrides how the authenticated user ID is extracted
// from a request.
func WithUserResolver(r session.UserResolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolve = r
		}
	}
}

// WithHealthcheck registers a named readiness check for GET /healthz.
func WithHealthcheck(name string, check func(context.Context) error) Option {
	return func(s *Service) {
		if name != "" && check != nil {
			s.health[name] = check
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// HeaderUserID carries the authenticated user's ID, set by the auth layer
// in front of this service. The default resolver reads it; deployments
// with different auth plumbing supply their own via WithUserResolver.
const HeaderUserID = "X-User-ID"

func defaultResolver(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(HeaderUserID)
	if raw == "" {
		return uuid.Nil, session.ErrUnauthorized
	}
	return uuid.Parse(raw)
}

// New assembles the service from configuration and the entitlement store.
// The store is the single writer for tier state; every component reads or
// writes through it.
func New(cfg Config, store entitlement.Store, opts ...Option) (*Service, error) {
	if store == nil {
		panic("entitlements: entitlement store is required")
	}

	policy, err := billing.ParseCancellationPolicy(cfg.CancellationPolicy)
	if err != nil {
		return nil, fmt.Errorf("entitlements: %w", err)
	}

	s := &Service{
		cfg:     cfg,
		store:   store,
		log:     slog.Default(),
		resolve: defaultResolver,
		health:  make(map[string]func(context.Context) error),
	}
	for _, opt := range opts {
		opt(s)
	}

	verifier := webhook.NewVerifier(cfg.WebhookSecrets, cfg.WebhookTolerance)

	procOpts := []billing.ProcessorOption{
		billing.WithLogger(s.log),
		billing.WithCancellationPolicy(policy),
		billing.WithGracePeriod(cfg.GracePeriod),
	}
	if s.notifier != nil {
		procOpts = append(procOpts, billing.WithNotifier(s.notifier))
	}
	if s.metrics != nil {
		procOpts = append(procOpts, billing.WithMetrics(s.metrics))
	}
	s.processor = billing.NewProcessor(verifier, store, procOpts...)

	usage := s.usage
	if usage == nil {
		usage = store
	}
	s.gate = quota.NewGate(usage,
		quota.WithStoreTimeout(cfg.QuotaStoreTimeout),
		quota.WithLogger(s.log),
	)

	s.reconciler = session.NewReconciler(store,
		session.WithRefreshInterval(cfg.SessionRefreshInterval),
		session.WithLogger(s.log),
	)

	return s, nil
}

// Reconciler exposes the snapshot reconciler so callers can force a
// refresh, for example on return from checkout.
func (s *Service) Reconciler() *session.Reconciler {
	return s.reconciler
}
