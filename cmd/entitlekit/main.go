package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/entitlekit/pkg/billing"
	"github.com/dmitrymomot/entitlekit/pkg/config"
	"github.com/dmitrymomot/entitlekit/pkg/email"
	"github.com/dmitrymomot/entitlekit/pkg/entitlement"
	"github.com/dmitrymomot/entitlekit/pkg/logger"
	"github.com/dmitrymomot/entitlekit/pkg/pg"
	"github.com/dmitrymomot/entitlekit/pkg/quota"
	"github.com/dmitrymomot/entitlekit/pkg/redis"
	"github.com/dmitrymomot/entitlekit/svc/entitlements"
)

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// QuotaBackend selects where daily usage counters live: "postgres"
	// keeps them next to the entitlement rows, "redis" moves the hot
	// counters to Redis.
	QuotaBackend string `env:"QUOTA_BACKEND" envDefault:"postgres"`

	CheckoutEnabled bool `env:"CHECKOUT_ENABLED" envDefault:"false"`

	// EmailMode selects the upgrade-confirmation delivery: "none", "dev"
	// (writes emails to EmailDevDir), or "postmark".
	EmailMode   string `env:"EMAIL_MODE" envDefault:"none"`
	EmailDevDir string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`

	// AccountEmailLookupURL is the internal accounts endpoint resolving a
	// user ID to an email address: GET {url}/{user_id} -> {"email": "..."}.
	AccountEmailLookupURL string `env:"ACCOUNT_EMAIL_LOOKUP_URL"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("service exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var app appConfig
	if err := config.Load(&app); err != nil {
		return fmt.Errorf("loading app config: %w", err)
	}
	var svcCfg entitlements.Config
	if err := config.Load(&svcCfg); err != nil {
		return fmt.Errorf("loading service config: %w", err)
	}

	log := logger.New(logger.WithEnvironment(app.Env, "entitlekit"))
	logger.SetAsDefault(log)

	// Postgres is the system of record; refuse to start without it.
	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return fmt.Errorf("loading postgres config: %w", err)
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	store := entitlement.NewPostgresStore(pool)

	opts := []entitlements.Option{
		entitlements.WithLogger(log),
		entitlements.WithHealthcheck("postgres", pg.Healthcheck(pool)),
	}

	if app.QuotaBackend == "redis" {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return fmt.Errorf("loading redis config: %w", err)
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()
		opts = append(opts,
			entitlements.WithUsageStore(quota.NewRedisStore(client)),
			entitlements.WithHealthcheck("redis", redis.Healthcheck(client)),
		)
	}

	reg := prometheus.NewRegistry()
	opts = append(opts, entitlements.WithMetrics(billing.NewMetrics(reg)))

	if notifier, err := buildNotifier(app); err != nil {
		return err
	} else if notifier != nil {
		opts = append(opts, entitlements.WithNotifier(notifier))
	}

	if app.CheckoutEnabled {
		var paddleCfg billing.PaddleConfig
		if err := config.Load(&paddleCfg); err != nil {
			return fmt.Errorf("loading paddle config: %w", err)
		}
		provider, err := billing.NewPaddleProvider(paddleCfg)
		if err != nil {
			return fmt.Errorf("creating paddle provider: %w", err)
		}
		opts = append(opts, entitlements.WithProvider(provider))
	}

	svc, err := entitlements.New(svcCfg, store, opts...)
	if err != nil {
		return err
	}

	root := chi.NewRouter()
	root.Mount("/", svc.Router())
	root.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              app.HTTPAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "listening", slog.String("addr", app.HTTPAddr), slog.String("env", app.Env))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildNotifier wires the upgrade-confirmation email path, or returns nil
// when email is disabled.
func buildNotifier(app appConfig) (billing.Notifier, error) {
	var sender email.EmailSender
	switch app.EmailMode {
	case "none", "":
		return nil, nil
	case "dev":
		sender = email.NewDevSender(app.EmailDevDir)
	case "postmark":
		var emailCfg email.Config
		if err := config.Load(&emailCfg); err != nil {
			return nil, fmt.Errorf("loading email config: %w", err)
		}
		var err error
		sender, err = email.NewPostmarkClient(emailCfg)
		if err != nil {
			return nil, fmt.Errorf("creating postmark client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown email mode %q", app.EmailMode)
	}

	if app.AccountEmailLookupURL == "" {
		return nil, errors.New("ACCOUNT_EMAIL_LOOKUP_URL is required when email is enabled")
	}

	return email.NewUpgradeNotifier(sender, httpAddressLookup(app.AccountEmailLookupURL)), nil
}

// httpAddressLookup resolves user email addresses from the internal
// accounts service.
func httpAddressLookup(baseURL string) email.AddressLookup {
	client := &http.Client{Timeout: 5 * time.Second}
	return func(ctx context.Context, userID uuid.UUID) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/"+userID.String(), nil)
		if err != nil {
			return "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("accounts lookup returned %d", resp.StatusCode)
		}

		var body struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", err
		}
		if body.Email == "" {
			return "", errors.New("accounts lookup returned no email")
		}
		return body.Email, nil
	}
}
