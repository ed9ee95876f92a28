package memstore

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
)

var maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// Ledger is the in-memory storage backend used when no database is
// configured. One mutex covers balances, supply, proof usage, and mint
// records, so a commit is atomic the same way the transactional backend is.
type Ledger struct {
	mu         sync.RWMutex
	balances   map[string]*big.Int
	authorized map[string]bool
	allowances map[string]*big.Int
	supply     *big.Int
	supplyCap  *big.Int

	records []domain.MintAuditRecord
	usage   map[string]int64

	clock func() time.Time
}

func NewLedger(supplyCap *big.Int) *Ledger {
	return &Ledger{
		balances:   make(map[string]*big.Int),
		authorized: make(map[string]bool),
		allowances: make(map[string]*big.Int),
		supply:     big.NewInt(0),
		supplyCap:  supplyCap,
		usage:      make(map[string]int64),
		clock:      time.Now,
	}
}

func allowanceKey(from, spender string) string {
	return from + "\x00" + spender
}

func (l *Ledger) Commit(ctx context.Context, rec domain.MintAuditRecord) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := rec.ProofFingerprint.Hex()
	if _, ok := l.usage[key]; ok {
		return 0, domain.ErrProofAlreadyUsed
	}
	if len(l.records) > math.MaxUint32 {
		return 0, fmt.Errorf("mint record id space exhausted at %d", len(l.records))
	}
	if err := l.creditLocked(rec.Recipient, rec.Amount); err != nil {
		return 0, err
	}

	id := uint32(len(l.records))
	stored := rec
	stored.ID = id
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = l.clock().UTC()
	}
	stored.Amount = new(big.Int).Set(rec.Amount)
	stored.Price = new(big.Int).Set(rec.Price)
	stored.Commitment = append([]byte(nil), rec.Commitment...)
	l.records = append(l.records, stored)
	l.usage[key] = stored.CreatedAt.Unix()
	return id, nil
}

func (l *Ledger) IsUsed(ctx context.Context, fp domain.ProofFingerprint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.usage[fp.Hex()]
	return ok, nil
}

func (l *Ledger) UsageTimestamp(ctx context.Context, fp domain.ProofFingerprint) (uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.usage[fp.Hex()]
	if !ok {
		return 0, false, nil
	}
	return uint64(at), true, nil
}

func (l *Ledger) Get(ctx context.Context, id uint32) (*domain.MintAuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if int(id) >= len(l.records) {
		return nil, domain.ErrNotFound
	}
	rec := l.records[id]
	rec.Amount = new(big.Int).Set(rec.Amount)
	rec.Price = new(big.Int).Set(rec.Price)
	rec.Commitment = append([]byte(nil), rec.Commitment...)
	return &rec, nil
}

func (l *Ledger) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(address), nil
}

func (l *Ledger) TotalSupply(ctx context.Context) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.supply), nil
}

func (l *Ledger) Authorized(ctx context.Context, address string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	authorized, ok := l.authorized[address]
	if !ok {
		return true, nil
	}
	return authorized, nil
}

func (l *Ledger) SetAuthorized(ctx context.Context, address string, authorized bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.authorized[address] = authorized
	return nil
}

func (l *Ledger) Credit(ctx context.Context, address string, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.creditLocked(address, amount)
}

func (l *Ledger) Debit(ctx context.Context, address string, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debitLocked(address, amount)
}

func (l *Ledger) Transfer(ctx context.Context, from, to string, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transferLocked(from, to, amount)
}

func (l *Ledger) TransferFrom(ctx context.Context, from, to, spender string, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := allowanceKey(from, spender)
	allowance, ok := l.allowances[key]
	if !ok || allowance.Cmp(amount) < 0 {
		return domain.ErrInsufficientAllowance
	}
	// The movement is checked before the allowance is touched, so a failed
	// transfer leaves the allowance intact.
	if err := l.transferLocked(from, to, amount); err != nil {
		return err
	}
	l.allowances[key] = new(big.Int).Sub(allowance, amount)
	return nil
}

func (l *Ledger) DebitFrom(ctx context.Context, from, spender string, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := allowanceKey(from, spender)
	allowance, ok := l.allowances[key]
	if !ok || allowance.Cmp(amount) < 0 {
		return domain.ErrInsufficientAllowance
	}
	if err := l.debitLocked(from, amount); err != nil {
		return err
	}
	l.allowances[key] = new(big.Int).Sub(allowance, amount)
	return nil
}

func (l *Ledger) Allowance(ctx context.Context, from, spender string) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	allowance, ok := l.allowances[allowanceKey(from, spender)]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(allowance), nil
}

func (l *Ledger) SetAllowance(ctx context.Context, from, spender string, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey(from, spender)] = new(big.Int).Set(amount)
	return nil
}

func (l *Ledger) SpendAllowance(ctx context.Context, from, spender string, amount *big.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := allowanceKey(from, spender)
	allowance, ok := l.allowances[key]
	if !ok || allowance.Cmp(amount) < 0 {
		return domain.ErrInsufficientAllowance
	}
	l.allowances[key] = new(big.Int).Sub(allowance, amount)
	return nil
}

func (l *Ledger) transferLocked(from, to string, amount *big.Int) error {
	fromBalance := l.balanceLocked(from)
	if fromBalance.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	// A self-transfer nets to zero once the sender can cover it. Writing
	// both sides from pre-read balances would credit the amount twice.
	if from == to {
		return nil
	}
	toBalance := l.balanceLocked(to)
	next := new(big.Int).Add(toBalance, amount)
	if next.Cmp(maxI128) > 0 {
		return domain.ErrArithmetic
	}
	l.balances[from] = fromBalance.Sub(fromBalance, amount)
	l.balances[to] = next
	return nil
}

func (l *Ledger) debitLocked(address string, amount *big.Int) error {
	balance := l.balanceLocked(address)
	if balance.Cmp(amount) < 0 {
		return domain.ErrInsufficientBalance
	}
	l.balances[address] = balance.Sub(balance, amount)
	l.supply = new(big.Int).Sub(l.supply, amount)
	return nil
}

func (l *Ledger) balanceLocked(address string) *big.Int {
	balance, ok := l.balances[address]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

func (l *Ledger) creditLocked(address string, amount *big.Int) error {
	balance := l.balanceLocked(address)
	nextBalance := new(big.Int).Add(balance, amount)
	nextSupply := new(big.Int).Add(l.supply, amount)
	if nextBalance.Cmp(maxI128) > 0 || nextSupply.Cmp(maxI128) > 0 {
		return domain.ErrLedgerMintFailed
	}
	if l.supplyCap != nil && nextSupply.Cmp(l.supplyCap) > 0 {
		return domain.ErrLedgerMintFailed
	}
	l.balances[address] = nextBalance
	l.supply = nextSupply
	return nil
}
