package usecase

import (
	"context"
	"errors"
	"log"
	"math/big"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
)

type MintWithProofRequest struct {
	Credential   string
	To           string
	Amount       *big.Int
	Price        *big.Int
	Timestamp    uint64
	Commitment   []byte
	ProofData    []byte
	PublicInputs []uint32
}

// MintWithProof is the single state-mutating entry point of the proof-gated
// mint protocol. It sequences authorization, cheap argument rejection,
// proof validation, replay detection, and the atomic ledger commit.
type MintWithProof struct {
	Admin       AdminAuthorizer
	Validator   *ProofValidator
	Fingerprint Fingerprinter
	Proofs      ProofRecordStore
	Mints       MintCommitter
	Audit       *AuditEmitter
	Clock       Clock
}

func (uc *MintWithProof) Execute(ctx context.Context, req MintWithProofRequest) (uint32, error) {
	if err := uc.Admin.RequireAdmin(ctx, req.Credential); err != nil {
		return 0, domain.ErrUnauthorized
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	claim := domain.PriceClaim{Price: req.Price, Timestamp: req.Timestamp}
	if err := uc.Validator.Validate(ctx, req.ProofData, req.PublicInputs, claim); err != nil {
		uc.emitRejected(ctx, req, err)
		return 0, err
	}

	fp := uc.Fingerprint.Fingerprint(req.ProofData, claim)

	// Fast-path rejection. The authoritative check is the unique constraint
	// inside Commit; a competing request that lands between here and the
	// commit still fails there.
	used, err := uc.Proofs.IsUsed(ctx, fp)
	if err != nil {
		return 0, err
	}
	if used {
		uc.emitRejected(ctx, req, domain.ErrProofAlreadyUsed)
		return 0, domain.ErrProofAlreadyUsed
	}

	rec := domain.MintAuditRecord{
		Recipient:        req.To,
		Amount:           req.Amount,
		Price:            req.Price,
		Timestamp:        req.Timestamp,
		Commitment:       req.Commitment,
		ProofFingerprint: fp,
		Verified:         true,
		CreatedAt:        uc.Clock.Now().UTC(),
	}
	id, err := uc.Mints.Commit(ctx, rec)
	if err != nil {
		uc.emitRejected(ctx, req, err)
		return 0, err
	}

	uc.emitRecorded(ctx, req, fp, id)
	return id, nil
}

func (uc *MintWithProof) emitRecorded(ctx context.Context, req MintWithProofRequest, fp domain.ProofFingerprint, id uint32) {
	if uc.Audit == nil {
		return
	}
	if err := uc.Audit.EmitProofMint(ctx, req.To, req.Amount, req.Price, fp, id, domain.AuditResultSuccess, ""); err != nil {
		log.Printf("audit emit failed for mint record %d: %v", id, err)
	}
}

func (uc *MintWithProof) emitRejected(ctx context.Context, req MintWithProofRequest, cause error) {
	if uc.Audit == nil {
		return
	}
	if err := uc.Audit.EmitProofMintRejected(ctx, req.To, req.Amount, errorCode(cause)); err != nil {
		log.Printf("audit emit failed for rejected mint: %v", err)
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrProofVerificationFailed):
		return "PROOF_VERIFICATION_FAILED"
	case errors.Is(err, domain.ErrPublicInputMismatch):
		return "PUBLIC_INPUT_MISMATCH"
	case errors.Is(err, domain.ErrExternalVerifier):
		return "EXTERNAL_VERIFIER_ERROR"
	case errors.Is(err, domain.ErrProofExpired):
		return "PROOF_EXPIRED"
	case errors.Is(err, domain.ErrProofAlreadyUsed):
		return "PROOF_ALREADY_USED"
	case errors.Is(err, domain.ErrLedgerMintFailed):
		return "LEDGER_MINT_FAILED"
	default:
		return "INTERNAL"
	}
}
