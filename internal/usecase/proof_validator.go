package usecase

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
)

// Public-input layout declared by the pricing circuit. Outputs are
// little-endian 32-bit limbs; anything past the timestamp limbs is
// auxiliary commitment material and is vouched for by the proof itself.
const (
	inputPriceLo = 0
	inputPriceHi = 1
	inputTsLo    = 2
	inputTsHi    = 3

	minPublicInputs = 4
)

var maxBindablePrice = new(big.Int).SetUint64(math.MaxUint64)

// ProofValidator binds a proof's declared outputs to the caller's price
// claim and enforces the freshness window. Variance between sources is
// asserted inside the circuit, not re-checked here.
type ProofValidator struct {
	Verifier  ProofVerifier
	Clock     Clock
	MaxAge    time.Duration
	ClockSkew time.Duration
}

func (v *ProofValidator) Validate(ctx context.Context, proof []byte, publicInputs []uint32, claim domain.PriceClaim) error {
	if len(proof) == 0 {
		return domain.ErrProofVerificationFailed
	}
	if err := v.checkFreshness(claim); err != nil {
		return err
	}
	if err := checkBinding(publicInputs, claim); err != nil {
		return err
	}

	if v.Verifier == nil {
		return fmt.Errorf("%w: no verifier configured", domain.ErrExternalVerifier)
	}
	valid, err := v.Verifier.Verify(ctx, proof, publicInputs)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalVerifier, err)
	}
	if !valid {
		return domain.ErrProofVerificationFailed
	}
	return nil
}

func (v *ProofValidator) checkFreshness(claim domain.PriceClaim) error {
	if v.MaxAge <= 0 {
		return nil
	}
	now := v.Clock.Now()
	claimed := time.Unix(int64(claim.Timestamp), 0)
	if claimed.Before(now.Add(-v.MaxAge)) {
		return domain.ErrProofExpired
	}
	if claimed.After(now.Add(v.ClockSkew)) {
		return domain.ErrProofExpired
	}
	return nil
}

func checkBinding(publicInputs []uint32, claim domain.PriceClaim) error {
	if len(publicInputs) < minPublicInputs {
		return domain.ErrPublicInputMismatch
	}
	if claim.Price == nil || claim.Price.Sign() < 0 || claim.Price.Cmp(maxBindablePrice) > 0 {
		// The circuit outputs the price as two unsigned 32-bit limbs, so a
		// claim outside that range can never have been attested.
		return domain.ErrPublicInputMismatch
	}
	price := claim.Price.Uint64()
	if publicInputs[inputPriceLo] != uint32(price) || publicInputs[inputPriceHi] != uint32(price>>32) {
		return domain.ErrPublicInputMismatch
	}
	if publicInputs[inputTsLo] != uint32(claim.Timestamp) || publicInputs[inputTsHi] != uint32(claim.Timestamp>>32) {
		return domain.ErrPublicInputMismatch
	}
	return nil
}

// PublicInputsForClaim renders a claim into the circuit's declared output
// layout. Provers use it offline; tests use it to build matching inputs.
func PublicInputsForClaim(claim domain.PriceClaim, aux ...uint32) []uint32 {
	price := uint64(0)
	if claim.Price != nil && claim.Price.Sign() >= 0 && claim.Price.Cmp(maxBindablePrice) <= 0 {
		price = claim.Price.Uint64()
	}
	out := []uint32{
		uint32(price),
		uint32(price >> 32),
		uint32(claim.Timestamp),
		uint32(claim.Timestamp >> 32),
	}
	return append(out, aux...)
}
