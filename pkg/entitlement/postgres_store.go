package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the production Store implementation backed by pgx.
// ApplyEvent runs inside a single transaction; IncrementUsage is a single
// conditional upsert so the check-and-increment cannot interleave.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed store.
// Panics on a nil pool to fail fast during initialization.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("entitlement: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

const getRecordSQL = `
SELECT user_id, tier, tier_effective_at, external_customer_id, external_subscription_id,
       last_applied_event_id, last_applied_event_at, cancel_at, grace_until, created_at, updated_at
FROM entitlements
WHERE user_id = $1`

// Get retrieves the entitlement record for a user.
func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (*EntitlementRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, getRecordSQL, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	return rec, nil
}

// ApplyEvent implements the atomic mutate+mark-applied unit.
//
// The event row insert doubles as the idempotency check: ON CONFLICT DO
// NOTHING reports zero affected rows for a duplicate ID without erroring.
// The record row is locked FOR UPDATE for the rest of the transaction, so
// concurrent deliveries for the same user serialize at the database. When
// the user has no record yet there is no row to lock and two first events
// can race past the read; the upsert therefore carries its own
// last_applied_event_at guard, and a guard miss means a concurrent
// transaction committed a newer event first.
func (s *PostgresStore) ApplyEvent(ctx context.Context, eventID string, userID uuid.UUID, occurredAt time.Time, mutate Mutation) (ApplyResult, error) {
	if eventID == "" {
		return "", ErrEventIDRequired
	}
	if userID == uuid.Nil {
		return "", ErrUserIDRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", errors.Join(ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	tag, err := tx.Exec(ctx,
		`INSERT INTO webhook_events (event_id, user_id, occurred_at, applied_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (event_id) DO NOTHING`,
		eventID, userID, occurredAt)
	if err != nil {
		return "", errors.Join(ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ApplyAlreadyApplied, nil
	}

	rec, err := scanRecord(tx.QueryRow(ctx, getRecordSQL+" FOR UPDATE", userID))
	exists := true
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", errors.Join(ErrStoreUnavailable, err)
		}
		exists = false
	}

	if exists && occurredAt.Before(rec.LastAppliedEventAt) {
		if err := tx.Commit(ctx); err != nil {
			return "", errors.Join(ErrStoreUnavailable, err)
		}
		return ApplySuperseded, nil
	}

	now := time.Now().UTC()
	if !exists {
		rec = &EntitlementRecord{
			UserID:    userID,
			Tier:      TierFreemium,
			CreatedAt: now,
		}
	}

	mutate(rec)
	rec.LastAppliedEventID = eventID
	rec.LastAppliedEventAt = occurredAt
	rec.UpdatedAt = now

	tag, err = tx.Exec(ctx,
		`INSERT INTO entitlements (user_id, tier, tier_effective_at, external_customer_id,
		        external_subscription_id, last_applied_event_id, last_applied_event_at,
		        cancel_at, grace_until, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (user_id) DO UPDATE SET
		        tier = EXCLUDED.tier,
		        tier_effective_at = EXCLUDED.tier_effective_at,
		        external_customer_id = EXCLUDED.external_customer_id,
		        external_subscription_id = EXCLUDED.external_subscription_id,
		        last_applied_event_id = EXCLUDED.last_applied_event_id,
		        last_applied_event_at = EXCLUDED.last_applied_event_at,
		        cancel_at = EXCLUDED.cancel_at,
		        grace_until = EXCLUDED.grace_until,
		        updated_at = EXCLUDED.updated_at
		 WHERE entitlements.last_applied_event_at <= EXCLUDED.last_applied_event_at`,
		rec.UserID, string(rec.Tier), rec.TierEffectiveAt, rec.ExternalCustomerID,
		rec.ExternalSubscriptionID, rec.LastAppliedEventID, rec.LastAppliedEventAt,
		rec.CancelAt, rec.GraceUntil, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return "", errors.Join(ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		// A concurrent first event committed a newer record between our
		// read and the upsert. Keep the event marked seen and leave the
		// newer record in place.
		if err := tx.Commit(ctx); err != nil {
			return "", errors.Join(ErrStoreUnavailable, err)
		}
		return ApplySuperseded, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return "", errors.Join(ErrStoreUnavailable, err)
	}
	return ApplyApplied, nil
}

// IncrementUsage atomically increments the (userID, day) counter while it is
// below limit. The WHERE guard on the upsert makes the read-compare-increment
// a single statement; when the guard fails the current count is read back so
// the caller still learns the exhausted value.
func (s *PostgresStore) IncrementUsage(ctx context.Context, userID uuid.UUID, day Day, limit int64) (int64, bool, error) {
	if userID == uuid.Nil {
		return 0, false, ErrUserIDRequired
	}
	if limit <= 0 {
		return 0, false, nil
	}

	var count int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO usage_counters (user_id, day, count)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (user_id, day) DO UPDATE SET count = usage_counters.count + 1
		 WHERE usage_counters.count < $3
		 RETURNING count`,
		userID, string(day), limit).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, errors.Join(ErrStoreUnavailable, err)
	}

	// Guard failed: limit reached. Read the exhausted count for reporting.
	err = s.pool.QueryRow(ctx,
		`SELECT count FROM usage_counters WHERE user_id = $1 AND day = $2`,
		userID, string(day)).Scan(&count)
	if err != nil {
		return 0, false, errors.Join(ErrStoreUnavailable, err)
	}
	return count, false, nil
}

func scanRecord(row pgx.Row) (*EntitlementRecord, error) {
	var (
		rec  EntitlementRecord
		tier string
	)
	err := row.Scan(&rec.UserID, &tier, &rec.TierEffectiveAt, &rec.ExternalCustomerID,
		&rec.ExternalSubscriptionID, &rec.LastAppliedEventID, &rec.LastAppliedEventAt,
		&rec.CancelAt, &rec.GraceUntil, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Tier = Tier(tier)
	return &rec, nil
}
