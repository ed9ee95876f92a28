package crypto

import (
	"encoding/binary"
	"math/big"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"

	"golang.org/x/crypto/sha3"
)

// Service implements the usecase Fingerprinter interface.
type Service struct{}

func (Service) Fingerprint(proof []byte, claim domain.PriceClaim) domain.ProofFingerprint {
	return Fingerprint(proof, claim)
}

// Fingerprint digests a proof artifact together with the price claim it was
// submitted under: keccak256(proof_bytes || price_be16 || timestamp_be8).
// Binding the claim into the digest means a stale-but-valid proof cannot be
// replayed under a different price or timestamp.
func Fingerprint(proof []byte, claim domain.PriceClaim) domain.ProofFingerprint {
	h := sha3.NewLegacyKeccak256()
	h.Write(proof)
	h.Write(priceBytes(claim.Price))

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], claim.Timestamp)
	h.Write(ts[:])

	var fp domain.ProofFingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// priceBytes encodes a signed 128-bit price as 16 big-endian bytes,
// two's complement for negative values.
func priceBytes(price *big.Int) []byte {
	out := make([]byte, 16)
	if price == nil {
		return out
	}
	v := new(big.Int).Set(price)
	if v.Sign() < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	v.FillBytes(out)
	return out
}
