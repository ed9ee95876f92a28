package usecase

import (
	"context"
	"errors"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
)

// MintQuery serves the read-only side of the mint audit ledger and the
// proof usage store.
type MintQuery struct {
	Ledger MintLedgerReader
	Proofs ProofRecordStore
}

func (q *MintQuery) GetMintMetadata(ctx context.Context, id uint32) (*domain.MintAuditRecord, error) {
	return q.Ledger.Get(ctx, id)
}

// IsMintVerified reports the record's verified flag; a missing id is false,
// not an error.
func (q *MintQuery) IsMintVerified(ctx context.Context, id uint32) (bool, error) {
	rec, err := q.Ledger.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return rec.Verified, nil
}

func (q *MintQuery) GetMintCommitment(ctx context.Context, id uint32) ([]byte, error) {
	rec, err := q.Ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Commitment, nil
}

func (q *MintQuery) IsProofUsed(ctx context.Context, fp domain.ProofFingerprint) (bool, error) {
	return q.Proofs.IsUsed(ctx, fp)
}

func (q *MintQuery) GetProofUsageTimestamp(ctx context.Context, fp domain.ProofFingerprint) (uint64, bool, error) {
	return q.Proofs.UsageTimestamp(ctx, fp)
}
