package usecase

import (
	"context"
	"math/big"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
)

type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// AdminAuthorizer is the capability check performed at the top of every
// privileged operation. It is deliberately orthogonal to proof and replay
// logic so each can be tested on its own.
type AdminAuthorizer interface {
	RequireAdmin(ctx context.Context, credential string) error
}

// ProofVerifier is the external proving-system collaborator. A (false, nil)
// return means the proof is definitively invalid; a non-nil error means the
// verifier itself could not check it.
type ProofVerifier interface {
	Verify(ctx context.Context, proof []byte, publicInputs []uint32) (bool, error)
}

// Fingerprinter derives the replay-detection key for a proof artifact
// submitted under a price claim.
type Fingerprinter interface {
	Fingerprint(proof []byte, claim domain.PriceClaim) domain.ProofFingerprint
}

type ProofRecordStore interface {
	IsUsed(ctx context.Context, fp domain.ProofFingerprint) (bool, error)
	// UsageTimestamp reports when the fingerprint was first consumed;
	// ok is false when it has never been used.
	UsageTimestamp(ctx context.Context, fp domain.ProofFingerprint) (at uint64, ok bool, err error)
}

// MintCommitter applies the commit path of a proof-gated mint as one atomic
// unit of work: credit the recipient (and total supply), assign the next
// record id, persist the audit record, and mark the fingerprint used.
// Returns domain.ErrProofAlreadyUsed when the fingerprint was consumed by a
// competing commit, and domain.ErrLedgerMintFailed when the ledger rejects
// the credit. On any error nothing is applied.
type MintCommitter interface {
	Commit(ctx context.Context, rec domain.MintAuditRecord) (uint32, error)
}

type MintLedgerReader interface {
	Get(ctx context.Context, id uint32) (*domain.MintAuditRecord, error)
}

// BalanceStore exposes the fungible-ledger primitives. All arithmetic is
// overflow-checked against i128 bounds by the implementation.
type BalanceStore interface {
	BalanceOf(ctx context.Context, address string) (*big.Int, error)
	TotalSupply(ctx context.Context) (*big.Int, error)
	Authorized(ctx context.Context, address string) (bool, error)
	SetAuthorized(ctx context.Context, address string, authorized bool) error
	// Credit mints amount to address, increasing total supply.
	Credit(ctx context.Context, address string, amount *big.Int) error
	// Debit removes amount from address, decreasing total supply.
	Debit(ctx context.Context, address string, amount *big.Int) error
	Transfer(ctx context.Context, from, to string, amount *big.Int) error
	// TransferFrom spends the spender's allowance and moves the balance as
	// one atomic unit; a failed movement leaves the allowance untouched.
	TransferFrom(ctx context.Context, from, to, spender string, amount *big.Int) error
	// DebitFrom spends the spender's allowance and burns the balance as one
	// atomic unit.
	DebitFrom(ctx context.Context, from, spender string, amount *big.Int) error
	Allowance(ctx context.Context, from, spender string) (*big.Int, error)
	SetAllowance(ctx context.Context, from, spender string, amount *big.Int) error
	// SpendAllowance atomically checks and decrements an allowance.
	SpendAllowance(ctx context.Context, from, spender string, amount *big.Int) error
}

type PriceOracle interface {
	CurrentPrice(ctx context.Context) (domain.PriceData, error)
	PriceAt(ctx context.Context, timestamp uint64) (domain.PriceData, error)
	Decimals(ctx context.Context) (uint32, error)
	Metadata(ctx context.Context) (domain.RWAMetadata, error)
	RegulatoryInfo(ctx context.Context) (domain.RegulatoryInfo, error)
}

// ComplianceChecker gates transfers the way a SEP-0008 approval server
// would. A nil error means the movement may proceed.
type ComplianceChecker interface {
	Check(ctx context.Context, from, to string, amount *big.Int) error
}

type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	List(ctx context.Context, limit int) ([]domain.AuditEvent, error)
}
