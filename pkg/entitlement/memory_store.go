package entitlement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type usageKey struct {
	userID uuid.UUID
	day    Day
}

// MemoryStore is an in-memory Store implementation. A single mutex covers
// records, applied-event IDs, and usage counters, which makes ApplyEvent and
// IncrementUsage trivially atomic. Suitable for tests and local development;
// use PostgresStore in production.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*EntitlementRecord
	applied map[string]struct{}
	usage   map[usageKey]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*EntitlementRecord),
		applied: make(map[string]struct{}),
		usage:   make(map[usageKey]int64),
	}
}

// Get retrieves the entitlement record for a user.
func (s *MemoryStore) Get(ctx context.Context, userID uuid.UUID) (*EntitlementRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}

	// Return a copy so callers cannot mutate owned state. The deadline
	// pointers are copied too; a shallow copy would still alias them.
	cp := *rec
	if rec.CancelAt != nil {
		at := *rec.CancelAt
		cp.CancelAt = &at
	}
	if rec.GraceUntil != nil {
		until := *rec.GraceUntil
		cp.GraceUntil = &until
	}
	return &cp, nil
}

// ApplyEvent implements the atomic mutate+mark-applied unit.
func (s *MemoryStore) ApplyEvent(ctx context.Context, eventID string, userID uuid.UUID, occurredAt time.Time, mutate Mutation) (ApplyResult, error) {
	if eventID == "" {
		return "", ErrEventIDRequired
	}
	if userID == uuid.Nil {
		return "", ErrUserIDRequired
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.applied[eventID]; seen {
		return ApplyAlreadyApplied, nil
	}

	rec, ok := s.records[userID]
	if ok && occurredAt.Before(rec.LastAppliedEventAt) {
		// Older than the last applied event: mark seen, keep the record.
		s.applied[eventID] = struct{}{}
		return ApplySuperseded, nil
	}

	now := time.Now().UTC()
	if !ok {
		rec = &EntitlementRecord{
			UserID:    userID,
			Tier:      TierFreemium,
			CreatedAt: now,
		}
		s.records[userID] = rec
	}

	mutate(rec)
	rec.LastAppliedEventID = eventID
	rec.LastAppliedEventAt = occurredAt
	rec.UpdatedAt = now
	s.applied[eventID] = struct{}{}

	return ApplyApplied, nil
}

// IncrementUsage atomically increments the counter while below limit.
func (s *MemoryStore) IncrementUsage(ctx context.Context, userID uuid.UUID, day Day, limit int64) (int64, bool, error) {
	if userID == uuid.Nil {
		return 0, false, ErrUserIDRequired
	}
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := usageKey{userID: userID, day: day}
	count := s.usage[key]
	if count >= limit {
		return count, false, nil
	}

	count++
	s.usage[key] = count
	return count, true, nil
}

// Usage returns the current counter value without mutating it.
// Exposed for tests and read-only history views.
func (s *MemoryStore) Usage(userID uuid.UUID, day Day) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage[usageKey{userID: userID, day: day}]
}
