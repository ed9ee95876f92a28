package domain

import "time"

const AuditChainVersion = "mint_audit_chain_v1"

type AuditActorType string

const (
	AuditActorSystem      AuditActorType = "system"
	AuditActorAdminAPIKey AuditActorType = "admin_api_key"
	AuditActorService     AuditActorType = "service"
)

type AuditEventType string

const (
	AuditEventProofMintRecorded AuditEventType = "proof_mint_recorded"
	AuditEventProofMintRejected AuditEventType = "proof_mint_rejected"
	AuditEventAdminMint         AuditEventType = "admin_mint"
	AuditEventClawback          AuditEventType = "clawback"
	AuditEventAuthorizedSet     AuditEventType = "authorized_set"
	AuditEventComplianceDenied  AuditEventType = "compliance_denied"
)

type AuditTargetType string

const (
	AuditTargetAccount    AuditTargetType = "account"
	AuditTargetMintRecord AuditTargetType = "mint_record"
	AuditTargetProof      AuditTargetType = "proof"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

// AuditEvent is one entry in the hash-chained operational audit trail.
// Seq is assigned on insert; EventHash commits to the payload hash and the
// previous event's hash so the chain is tamper-evident.
type AuditEvent struct {
	ID            string
	Seq           int64
	EventType     AuditEventType
	Payload       any
	PayloadHash   string
	ActorType     AuditActorType
	TargetType    AuditTargetType
	TargetID      string
	Result        AuditResult
	ErrorCode     string
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}
