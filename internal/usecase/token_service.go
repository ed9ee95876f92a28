package usecase

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
)

// maxI128 bounds every amount the ledger will hold, mirroring the signed
// 128-bit arithmetic of the on-chain representation.
var maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// TokenService carries the fungible-ledger operations around the core mint
// protocol: admin issuance, clawback, account authorization, and
// compliance-gated transfers with allowance bookkeeping.
type TokenService struct {
	Admin      AdminAuthorizer
	Balances   BalanceStore
	Compliance ComplianceChecker
	Audit      *AuditEmitter
	Meta       domain.TokenMetadata
}

func (s *TokenService) Metadata() domain.TokenMetadata {
	return s.Meta
}

func (s *TokenService) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	return s.Balances.BalanceOf(ctx, address)
}

// SpendableBalance equals the full balance; the token holds no liabilities.
func (s *TokenService) SpendableBalance(ctx context.Context, address string) (*big.Int, error) {
	return s.Balances.BalanceOf(ctx, address)
}

func (s *TokenService) TotalSupply(ctx context.Context) (*big.Int, error) {
	return s.Balances.TotalSupply(ctx)
}

func (s *TokenService) Authorized(ctx context.Context, address string) (bool, error) {
	return s.Balances.Authorized(ctx, address)
}

func (s *TokenService) Mint(ctx context.Context, credential, to string, amount *big.Int) error {
	if err := s.Admin.RequireAdmin(ctx, credential); err != nil {
		return domain.ErrUnauthorized
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := s.Balances.Credit(ctx, to, amount); err != nil {
		s.audit(func() error {
			return s.Audit.EmitAdminMint(ctx, to, amount, domain.AuditResultFailure, errorCode(err))
		})
		return err
	}
	s.audit(func() error {
		return s.Audit.EmitAdminMint(ctx, to, amount, domain.AuditResultSuccess, "")
	})
	return nil
}

func (s *TokenService) Clawback(ctx context.Context, credential, from string, amount *big.Int) error {
	if err := s.Admin.RequireAdmin(ctx, credential); err != nil {
		return domain.ErrUnauthorized
	}
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := s.Balances.Debit(ctx, from, amount); err != nil {
		s.audit(func() error {
			return s.Audit.EmitClawback(ctx, from, amount, domain.AuditResultFailure, errorCode(err))
		})
		return err
	}
	s.audit(func() error {
		return s.Audit.EmitClawback(ctx, from, amount, domain.AuditResultSuccess, "")
	})
	return nil
}

func (s *TokenService) SetAuthorized(ctx context.Context, credential, address string, authorized bool) error {
	if err := s.Admin.RequireAdmin(ctx, credential); err != nil {
		return domain.ErrUnauthorized
	}
	if err := s.Balances.SetAuthorized(ctx, address, authorized); err != nil {
		return err
	}
	s.audit(func() error {
		return s.Audit.EmitAuthorizedSet(ctx, address, authorized, domain.AuditResultSuccess, "")
	})
	return nil
}

func (s *TokenService) Transfer(ctx context.Context, from, to string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := s.requireAuthorized(ctx, from); err != nil {
		return err
	}
	if err := s.checkCompliance(ctx, from, to, amount); err != nil {
		return err
	}
	return s.Balances.Transfer(ctx, from, to, amount)
}

func (s *TokenService) TransferFrom(ctx context.Context, spender, from, to string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := s.requireAuthorized(ctx, from); err != nil {
		return err
	}
	if err := s.checkCompliance(ctx, from, to, amount); err != nil {
		return err
	}
	return s.Balances.TransferFrom(ctx, from, to, spender, amount)
}

func (s *TokenService) Burn(ctx context.Context, from string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return s.Balances.Debit(ctx, from, amount)
}

func (s *TokenService) BurnFrom(ctx context.Context, spender, from string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	return s.Balances.DebitFrom(ctx, from, spender, amount)
}

func (s *TokenService) Allowance(ctx context.Context, from, spender string) (*big.Int, error) {
	return s.Balances.Allowance(ctx, from, spender)
}

func (s *TokenService) Approve(ctx context.Context, from, spender string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(maxI128) > 0 {
		return domain.ErrInvalidAmount
	}
	return s.Balances.SetAllowance(ctx, from, spender, amount)
}

func (s *TokenService) IncreaseAllowance(ctx context.Context, from, spender string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	current, err := s.Balances.Allowance(ctx, from, spender)
	if err != nil {
		return err
	}
	next := new(big.Int).Add(current, amount)
	if next.Cmp(maxI128) > 0 {
		return domain.ErrArithmetic
	}
	return s.Balances.SetAllowance(ctx, from, spender, next)
}

func (s *TokenService) DecreaseAllowance(ctx context.Context, from, spender string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	current, err := s.Balances.Allowance(ctx, from, spender)
	if err != nil {
		return err
	}
	next := new(big.Int).Sub(current, amount)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	return s.Balances.SetAllowance(ctx, from, spender, next)
}

func (s *TokenService) requireAuthorized(ctx context.Context, address string) error {
	ok, err := s.Balances.Authorized(ctx, address)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAccountDeauthorized
	}
	return nil
}

func (s *TokenService) checkCompliance(ctx context.Context, from, to string, amount *big.Int) error {
	if s.Compliance == nil {
		return nil
	}
	if err := s.Compliance.Check(ctx, from, to, amount); err != nil {
		s.audit(func() error {
			return s.Audit.EmitComplianceDenied(ctx, from, to, amount)
		})
		return fmt.Errorf("%w: %v", domain.ErrComplianceRejected, err)
	}
	return nil
}

func (s *TokenService) audit(emit func() error) {
	if s.Audit == nil {
		return
	}
	if err := emit(); err != nil {
		log.Printf("audit emit failed: %v", err)
	}
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 || amount.Cmp(maxI128) > 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}
