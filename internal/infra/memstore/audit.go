package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
	cryptoinfra "github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/crypto"

	"github.com/google/uuid"
)

// AuditLog keeps the hash-chained audit trail in memory. The chain rules
// match the database backend so verification tooling works against either.
type AuditLog struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
	clock  func() time.Time
}

func NewAuditLog() *AuditLog {
	return &AuditLog{clock: time.Now}
}

func (a *AuditLog) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return domain.AuditEvent{}, err
	}
	if event.EventType == "" {
		return domain.AuditEvent{}, errors.New("event_type is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = a.clock().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	event.CreatedAt = event.CreatedAt.Truncate(time.Microsecond)
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}

	canonical, payloadHash, err := cryptoinfra.HashAuditPayload(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.PayloadHash = payloadHash

	var payload any
	if err := json.Unmarshal(canonical, &payload); err != nil {
		return domain.AuditEvent{}, err
	}
	event.Payload = payload

	a.mu.Lock()
	defer a.mu.Unlock()

	event.Seq = int64(len(a.events)) + 1
	event.PrevEventHash = cryptoinfra.ZeroAuditHash
	if len(a.events) > 0 {
		event.PrevEventHash = a.events[len(a.events)-1].EventHash
	}
	eventHash, err := cryptoinfra.HashAuditEvent(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.EventHash = eventHash

	a.events = append(a.events, event)
	return event, nil
}

func (a *AuditLog) List(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := len(a.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.AuditEvent, n)
	copy(out, a.events[:n])
	return out, nil
}
