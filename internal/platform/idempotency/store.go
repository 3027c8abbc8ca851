package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a replayable response is kept.
const DefaultTTL = 24 * time.Hour

// State is the lifecycle of a key.
type State string

const (
	// StateInFlight means a request holds the key and has not produced a response yet.
	StateInFlight State = "in_flight"
	// StateDone means the stored response may be replayed.
	StateDone State = "done"
)

// ErrKeyReused is returned when a key is presented again with a different request body or route.
var ErrKeyReused = errors.New("idempotency: key already used for a different request")

// Entry is one stored key.
type Entry struct {
	Key         string
	Fingerprint string
	State       State
	StatusCode  int
	Header      map[string][]string
	Body        []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func (e Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Store persists keys. Begin returns the existing entry and fresh=false when the key is known and
// unexpired; otherwise it records an in-flight entry and returns fresh=true.
type Store interface {
	Begin(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (entry Entry, fresh bool, err error)
	Finish(ctx context.Context, entry Entry) error
	Abandon(ctx context.Context, key string) error
	Purge(ctx context.Context, now time.Time, limit int) (int, error)
}

func documentID(key string) string {
	return hashHex([]byte(strings.TrimSpace(key)))
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// replayableHeader drops hop-by-hop and per-response headers from stored responses.
func replayableHeader(header http.Header) map[string][]string {
	out := make(map[string][]string, len(header))
	for name, values := range header {
		switch strings.ToLower(name) {
		case "content-length", "date", "connection", "keep-alive", "transfer-encoding", "upgrade", "x-request-id":
			continue
		}
		out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
