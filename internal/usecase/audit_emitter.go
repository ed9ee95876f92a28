package usecase

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
)

// AuditEmitter writes hash-chained operational audit events for every
// privileged operation. It is separate from the MintAuditRecord ledger,
// which is part of the mint protocol itself.
type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditEventRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{Repo: repo, Clock: clock}
}

func (e *AuditEmitter) Emit(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if event.EventType == "" || event.TargetType == "" || event.Result == "" || event.ActorType == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	return e.Repo.Append(ctx, event)
}

func (e *AuditEmitter) EmitProofMint(ctx context.Context, to string, amount, price *big.Int, fp domain.ProofFingerprint, recordID uint32, result domain.AuditResult, errorCode string) error {
	payload := map[string]any{
		"to":          to,
		"amount":      bigString(amount),
		"price":       bigString(price),
		"fingerprint": fp.Hex(),
		"record_id":   recordID,
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		EventType:  domain.AuditEventProofMintRecorded,
		ActorType:  domain.AuditActorAdminAPIKey,
		Payload:    payload,
		TargetType: domain.AuditTargetMintRecord,
		TargetID:   fp.Hex(),
		Result:     result,
		ErrorCode:  errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitProofMintRejected(ctx context.Context, to string, amount *big.Int, errorCode string) error {
	payload := map[string]any{
		"to":     to,
		"amount": bigString(amount),
	}
	_, err := e.Emit(ctx, domain.AuditEvent{
		EventType:  domain.AuditEventProofMintRejected,
		ActorType:  domain.AuditActorAdminAPIKey,
		Payload:    payload,
		TargetType: domain.AuditTargetProof,
		Result:     domain.AuditResultFailure,
		ErrorCode:  errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitAdminMint(ctx context.Context, to string, amount *big.Int, result domain.AuditResult, errorCode string) error {
	_, err := e.Emit(ctx, domain.AuditEvent{
		EventType:  domain.AuditEventAdminMint,
		ActorType:  domain.AuditActorAdminAPIKey,
		Payload:    map[string]any{"to": to, "amount": bigString(amount)},
		TargetType: domain.AuditTargetAccount,
		TargetID:   to,
		Result:     result,
		ErrorCode:  errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitClawback(ctx context.Context, from string, amount *big.Int, result domain.AuditResult, errorCode string) error {
	_, err := e.Emit(ctx, domain.AuditEvent{
		EventType:  domain.AuditEventClawback,
		ActorType:  domain.AuditActorAdminAPIKey,
		Payload:    map[string]any{"from": from, "amount": bigString(amount)},
		TargetType: domain.AuditTargetAccount,
		TargetID:   from,
		Result:     result,
		ErrorCode:  errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitAuthorizedSet(ctx context.Context, address string, authorized bool, result domain.AuditResult, errorCode string) error {
	_, err := e.Emit(ctx, domain.AuditEvent{
		EventType:  domain.AuditEventAuthorizedSet,
		ActorType:  domain.AuditActorAdminAPIKey,
		Payload:    map[string]any{"address": address, "authorized": authorized},
		TargetType: domain.AuditTargetAccount,
		TargetID:   address,
		Result:     result,
		ErrorCode:  errorCode,
	})
	return err
}

func (e *AuditEmitter) EmitComplianceDenied(ctx context.Context, from, to string, amount *big.Int) error {
	_, err := e.Emit(ctx, domain.AuditEvent{
		EventType:  domain.AuditEventComplianceDenied,
		ActorType:  domain.AuditActorService,
		Payload:    map[string]any{"from": from, "to": to, "amount": bigString(amount)},
		TargetType: domain.AuditTargetAccount,
		TargetID:   from,
		Result:     domain.AuditResultFailure,
		ErrorCode:  "COMPLIANCE_REJECTED",
	})
	return err
}

func (e *AuditEmitter) now() time.Time {
	if e.Clock != nil {
		return e.Clock.Now()
	}
	return time.Now()
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
