package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
)

// ZeroAuditHash is the prev_event_hash of the first event in the chain.
const ZeroAuditHash = "0000000000000000000000000000000000000000000000000000000000000000"

// HashAuditPayload canonicalizes an event payload and returns the canonical
// bytes together with their sha256 hex digest.
func HashAuditPayload(payload any) ([]byte, string, error) {
	canonical, err := CanonicalizeAny(payload)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(canonical)
	return canonical, hex.EncodeToString(sum[:]), nil
}

// HashAuditEvent computes the chained event hash. The hash commits to the
// chain version, sequence, event type, payload hash, previous event hash,
// and creation time, so any retroactive edit breaks verification.
func HashAuditEvent(event domain.AuditEvent) (string, error) {
	if event.PayloadHash == "" {
		return "", errors.New("payload_hash is required")
	}
	if event.PrevEventHash == "" {
		return "", errors.New("prev_event_hash is required")
	}
	payload := map[string]any{
		"v":               domain.AuditChainVersion,
		"seq":             event.Seq,
		"event_type":      string(event.EventType),
		"payload_hash":    event.PayloadHash,
		"prev_event_hash": event.PrevEventHash,
		"created_at":      event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	canonical, err := CanonicalizeAny(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
