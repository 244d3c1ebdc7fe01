package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Result is the three-way outcome of signature verification. Consumers are
// expected to switch over it exhaustively rather than treat verification as
// a boolean, so that staleness and forgery are handled as distinct failures.
type Result string

const (
	ResultValid   Result = "valid"
	ResultInvalid Result = "invalid"
	ResultStale   Result = "stale"
)

// DefaultTolerance is the replay window applied when a Verifier is built
// with a non-positive tolerance. Five minutes matches the window used by
// major webhook providers.
const DefaultTolerance = 5 * time.Minute

// futureSkew bounds how far ahead of the verifier's clock a timestamp may
// be before it is treated as stale. Generous enough for ordinary clock
// drift, tight enough that pre-dated payloads cannot extend their replay
// window.
const futureSkew = time.Minute

// Verifier validates webhook payload signatures. It holds every currently
// valid shared secret so that secrets can be rotated without dropping
// deliveries signed with the previous one.
//
// Verify is a pure function of its inputs and the injected clock: no I/O,
// no side effects.
type Verifier struct {
	secrets   [][]byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a Verifier for the given secrets.
// Panics if no non-empty secret is supplied: verification without a secret
// would accept forged payloads, so misconfiguration must fail fast.
func NewVerifier(secrets []string, tolerance time.Duration) *Verifier {
	keys := make([][]byte, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			keys = append(keys, []byte(s))
		}
	}
	if len(keys) == 0 {
		panic("webhook: at least one non-empty secret is required")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{
		secrets:   keys,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// WithClock returns a copy of the verifier using the given clock.
// Intended for tests that need deterministic freshness checks.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	cp := *v
	cp.now = now
	return &cp
}

// Verify checks the supplied candidate signatures against every configured
// secret for the payload at the given unix timestamp.
//
// Staleness takes precedence over signature correctness: a correctly signed
// payload outside the tolerance window is ResultStale, never ResultValid,
// which stops replay of legitimately captured deliveries.
func (v *Verifier) Verify(payload []byte, signatures []string, timestamp int64) Result {
	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > v.tolerance || age < -futureSkew {
		return ResultStale
	}

	if len(payload) == 0 || len(signatures) == 0 {
		return ResultInvalid
	}

	for _, secret := range v.secrets {
		expected := computeSignature(secret, payload, timestamp)
		for _, candidate := range signatures {
			if hmac.Equal([]byte(expected), []byte(candidate)) {
				return ResultValid
			}
		}
	}
	return ResultInvalid
}

// Sign computes the hex-encoded signature for a payload at the given
// instant. Used to produce fixtures and outbound test deliveries; the
// format matches what Verify expects.
func Sign(secret string, payload []byte, at time.Time) (signature string, timestamp int64, err error) {
	if secret == "" {
		return "", 0, ErrSecretRequired
	}
	if len(payload) == 0 {
		return "", 0, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}

	ts := at.Unix()
	return computeSignature([]byte(secret), payload, ts), ts, nil
}

// computeSignature is HMAC-SHA256 over "timestamp.payload", hex encoded.
func computeSignature(secret, payload []byte, timestamp int64) string {
	h := hmac.New(sha256.New, secret)
	fmt.Fprintf(h, "%d.", timestamp)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
