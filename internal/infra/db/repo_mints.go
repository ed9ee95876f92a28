package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"

	"gorm.io/gorm"
)

// MintRepository persists mint audit records and proof usage marks. Commit
// is the single atomic unit behind a proof-gated mint: the record id
// counter, the fingerprint mark, the ledger credit, and the record insert
// all ride one transaction, so a failure anywhere applies nothing.
type MintRepository struct {
	db        *gorm.DB
	supplyCap *big.Int
}

func NewMintRepository(db *gorm.DB, supplyCap *big.Int) *MintRepository {
	return &MintRepository{db: db, supplyCap: supplyCap}
}

func (r *MintRepository) IsUsed(ctx context.Context, fp domain.ProofFingerprint) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&ProofUsageModel{}).
		Where("fingerprint = ?", fp.Hex()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MintRepository) UsageTimestamp(ctx context.Context, fp domain.ProofFingerprint) (uint64, bool, error) {
	if r.db == nil {
		return 0, false, errDBUnavailable
	}
	var model ProofUsageModel
	err := r.db.WithContext(ctx).
		Where("fingerprint = ?", fp.Hex()).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(model.FirstUsedAt), true, nil
}

func (r *MintRepository) Get(ctx context.Context, id uint32) (*domain.MintAuditRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model MintRecordModel
	err := r.db.WithContext(ctx).
		Where("id = ?", int64(id)).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return mintRecordFromModel(model)
}

func (r *MintRepository) Commit(ctx context.Context, rec domain.MintAuditRecord) (uint32, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var out uint32
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := nextMintRecordID(tx)
		if err != nil {
			return err
		}

		// The primary key on the fingerprint column is the serialization
		// point: whichever competing commit lands second fails here and the
		// whole transaction rolls back.
		usage := ProofUsageModel{
			Fingerprint: rec.ProofFingerprint.Hex(),
			FirstUsedAt: rec.CreatedAt.Unix(),
			CreatedAt:   rec.CreatedAt,
		}
		if err := tx.Create(&usage).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrProofAlreadyUsed
			}
			return err
		}

		if err := creditTx(tx, rec.Recipient, rec.Amount, r.supplyCap, rec.CreatedAt); err != nil {
			return err
		}

		model := MintRecordModel{
			ID:               int64(id),
			Recipient:        rec.Recipient,
			Amount:           amountString(rec.Amount),
			Price:            amountString(rec.Price),
			PriceTimestamp:   int64(rec.Timestamp),
			Commitment:       rec.Commitment,
			ProofFingerprint: rec.ProofFingerprint.Hex(),
			Verified:         rec.Verified,
			CreatedAt:        rec.CreatedAt,
		}
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		out = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

// nextMintRecordID reserves the next monotonic record id under a row lock.
// Ids start at 0 and are only consumed when the surrounding transaction
// commits, so failed attempts leave no gaps.
func nextMintRecordID(tx *gorm.DB) (uint32, error) {
	if err := tx.Exec(
		"INSERT INTO mint_record_seq (id, next_id) VALUES (1, 0) ON CONFLICT (id) DO NOTHING",
	).Error; err != nil {
		return 0, err
	}
	var current int64
	if err := tx.Raw(
		"SELECT next_id FROM mint_record_seq WHERE id = 1 FOR UPDATE",
	).Scan(&current).Error; err != nil {
		return 0, err
	}
	if current > math.MaxUint32 {
		return 0, fmt.Errorf("mint record id space exhausted at %d", current)
	}
	if err := tx.Exec(
		"UPDATE mint_record_seq SET next_id = ? WHERE id = 1",
		current+1,
	).Error; err != nil {
		return 0, err
	}
	return uint32(current), nil
}

func mintRecordFromModel(model MintRecordModel) (*domain.MintAuditRecord, error) {
	amount, err := parseAmount(model.Amount)
	if err != nil {
		return nil, err
	}
	price, err := parseAmount(model.Price)
	if err != nil {
		return nil, err
	}
	fp, err := domain.FingerprintFromHex(model.ProofFingerprint)
	if err != nil {
		return nil, err
	}
	return &domain.MintAuditRecord{
		ID:               uint32(model.ID),
		Recipient:        model.Recipient,
		Amount:           amount,
		Price:            price,
		Timestamp:        uint64(model.PriceTimestamp),
		Commitment:       model.Commitment,
		ProofFingerprint: fp,
		Verified:         model.Verified,
		CreatedAt:        model.CreatedAt.UTC(),
	}, nil
}
