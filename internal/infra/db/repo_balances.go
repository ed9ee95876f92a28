package db

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// BalanceRepository is the fungible-ledger storage: balances, allowances,
// the single-row supply record, and per-account authorization flags.
type BalanceRepository struct {
	db        *gorm.DB
	supplyCap *big.Int
}

func NewBalanceRepository(db *gorm.DB, supplyCap *big.Int) *BalanceRepository {
	return &BalanceRepository{db: db, supplyCap: supplyCap}
}

func (r *BalanceRepository) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model BalanceModel
	err := r.db.WithContext(ctx).Where("address = ?", address).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return parseAmount(model.Amount)
}

func (r *BalanceRepository) TotalSupply(ctx context.Context) (*big.Int, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SupplyModel
	err := r.db.WithContext(ctx).Where("id = 1").Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return parseAmount(model.TotalSupply)
}

func (r *BalanceRepository) Authorized(ctx context.Context, address string) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	var model BalanceModel
	err := r.db.WithContext(ctx).Where("address = ?", address).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Accounts start authorized; a row only exists once touched.
			return true, nil
		}
		return false, err
	}
	return model.Authorized, nil
}

func (r *BalanceRepository) SetAuthorized(ctx context.Context, address string, authorized bool) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockBalance(tx, address, now); err != nil {
			return err
		}
		return tx.Model(&BalanceModel{}).
			Where("address = ?", address).
			Updates(map[string]any{"authorized": authorized, "updated_at": now}).Error
	})
}

func (r *BalanceRepository) Credit(ctx context.Context, address string, amount *big.Int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return creditTx(tx, address, amount, r.supplyCap, now)
	})
}

func (r *BalanceRepository) Debit(ctx context.Context, address string, amount *big.Int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return debitTx(tx, address, amount, now)
	})
}

func (r *BalanceRepository) Transfer(ctx context.Context, from, to string, amount *big.Int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transferTx(tx, from, to, amount, now)
	})
}

// TransferFrom spends the allowance and moves the balance in one
// transaction, so a movement that fails cannot burn the allowance.
func (r *BalanceRepository) TransferFrom(ctx context.Context, from, to, spender string, amount *big.Int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allowance, err := lockAllowance(tx, from, spender)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return domain.ErrInsufficientAllowance
		}
		if err := transferTx(tx, from, to, amount, now); err != nil {
			return err
		}
		return setAllowanceTx(tx, from, spender, new(big.Int).Sub(allowance, amount), now)
	})
}

func (r *BalanceRepository) DebitFrom(ctx context.Context, from, spender string, amount *big.Int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allowance, err := lockAllowance(tx, from, spender)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return domain.ErrInsufficientAllowance
		}
		if err := debitTx(tx, from, amount, now); err != nil {
			return err
		}
		return setAllowanceTx(tx, from, spender, new(big.Int).Sub(allowance, amount), now)
	})
}

func (r *BalanceRepository) Allowance(ctx context.Context, from, spender string) (*big.Int, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model AllowanceModel
	err := r.db.WithContext(ctx).
		Where("from_address = ? AND spender = ?", from, spender).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return big.NewInt(0), nil
		}
		return nil, err
	}
	return parseAmount(model.Amount)
}

func (r *BalanceRepository) SetAllowance(ctx context.Context, from, spender string, amount *big.Int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := AllowanceModel{
		FromAddress: from,
		Spender:     spender,
		Amount:      amountString(amount),
		UpdatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "from_address"}, {Name: "spender"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(&model).Error
}

func (r *BalanceRepository) SpendAllowance(ctx context.Context, from, spender string, amount *big.Int) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockAllowance(tx, from, spender)
		if err != nil {
			return err
		}
		if current.Cmp(amount) < 0 {
			return domain.ErrInsufficientAllowance
		}
		return setAllowanceTx(tx, from, spender, new(big.Int).Sub(current, amount), now)
	})
}

// creditTx mints amount to address inside an existing transaction. Supply
// overflow past i128 bounds or the configured cap surfaces as
// domain.ErrLedgerMintFailed.
func creditTx(tx *gorm.DB, address string, amount *big.Int, cap *big.Int, now time.Time) error {
	supply, err := lockSupply(tx, now)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(supply, amount)
	if next.Cmp(maxI128) > 0 {
		return domain.ErrLedgerMintFailed
	}
	if cap != nil && next.Cmp(cap) > 0 {
		return domain.ErrLedgerMintFailed
	}
	if err := setSupply(tx, next, now); err != nil {
		return err
	}
	balance, err := lockBalance(tx, address, now)
	if err != nil {
		return err
	}
	return setBalance(tx, address, new(big.Int).Add(balance, amount), now)
}

// transferTx moves amount between two locked balance rows inside an
// existing transaction.
func transferTx(tx *gorm.DB, from, to string, amount *big.Int, now time.Time) error {
	// Lock in address order so two opposing transfers cannot deadlock.
	first, second := from, to
	if second < first {
		first, second = second, first
	}
	if _, err := lockBalance(tx, first, now); err != nil {
		return err
	}
	if first != second {
		if _, err := lockBalance(tx, second, now); err != nil {
			return err
		}
	}

	fromBalance, err := readBalance(tx, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	// A self-transfer nets to zero once the sender can cover it. Writing
	// both sides from pre-read balances would credit the amount twice.
	if from == to {
		return nil
	}
	toBalance, err := readBalance(tx, to)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(toBalance, amount)
	if next.Cmp(maxI128) > 0 {
		return domain.ErrArithmetic
	}
	if err := setBalance(tx, from, new(big.Int).Sub(fromBalance, amount), now); err != nil {
		return err
	}
	return setBalance(tx, to, next, now)
}

// debitTx burns amount from a locked balance row and shrinks the supply
// inside an existing transaction.
func debitTx(tx *gorm.DB, address string, amount *big.Int, now time.Time) error {
	balance, err := lockBalance(tx, address, now)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	if err := setBalance(tx, address, new(big.Int).Sub(balance, amount), now); err != nil {
		return err
	}
	supply, err := lockSupply(tx, now)
	if err != nil {
		return err
	}
	return setSupply(tx, new(big.Int).Sub(supply, amount), now)
}

// lockAllowance takes the allowance row FOR UPDATE. A missing row reads
// as an allowance that cannot cover anything.
func lockAllowance(tx *gorm.DB, from, spender string) (*big.Int, error) {
	var model AllowanceModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("from_address = ? AND spender = ?", from, spender).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInsufficientAllowance
		}
		return nil, err
	}
	return parseAmount(model.Amount)
}

func setAllowanceTx(tx *gorm.DB, from, spender string, amount *big.Int, now time.Time) error {
	return tx.Model(&AllowanceModel{}).
		Where("from_address = ? AND spender = ?", from, spender).
		Updates(map[string]any{
			"amount":     amountString(amount),
			"updated_at": now,
		}).Error
}

func lockBalance(tx *gorm.DB, address string, now time.Time) (*big.Int, error) {
	if err := tx.Exec(
		"INSERT INTO balances (address, amount, authorized, updated_at) VALUES (?, 0, true, ?) ON CONFLICT (address) DO NOTHING",
		address, now,
	).Error; err != nil {
		return nil, err
	}
	var model BalanceModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		Take(&model).Error; err != nil {
		return nil, err
	}
	return parseAmount(model.Amount)
}

func readBalance(tx *gorm.DB, address string) (*big.Int, error) {
	var model BalanceModel
	if err := tx.Where("address = ?", address).Take(&model).Error; err != nil {
		return nil, err
	}
	return parseAmount(model.Amount)
}

func setBalance(tx *gorm.DB, address string, amount *big.Int, now time.Time) error {
	return tx.Model(&BalanceModel{}).
		Where("address = ?", address).
		Updates(map[string]any{"amount": amountString(amount), "updated_at": now}).Error
}

func lockSupply(tx *gorm.DB, now time.Time) (*big.Int, error) {
	if err := tx.Exec(
		"INSERT INTO token_supply (id, total_supply, updated_at) VALUES (1, 0, ?) ON CONFLICT (id) DO NOTHING",
		now,
	).Error; err != nil {
		return nil, err
	}
	var model SupplyModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = 1").
		Take(&model).Error; err != nil {
		return nil, err
	}
	return parseAmount(model.TotalSupply)
}

func setSupply(tx *gorm.DB, supply *big.Int, now time.Time) error {
	return tx.Model(&SupplyModel{}).
		Where("id = 1").
		Updates(map[string]any{"total_supply": amountString(supply), "updated_at": now}).Error
}
