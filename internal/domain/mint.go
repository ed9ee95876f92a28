package domain

import (
	"encoding/hex"
	"errors"
	"math/big"
	"time"
)

// FingerprintSize is the byte length of a proof fingerprint (keccak-256).
const FingerprintSize = 32

// ProofFingerprint is the replay-detection key for a proof artifact. Equal
// artifacts under equal price claims always produce the same fingerprint.
type ProofFingerprint [FingerprintSize]byte

func (fp ProofFingerprint) Hex() string {
	return hex.EncodeToString(fp[:])
}

func FingerprintFromHex(s string) (ProofFingerprint, error) {
	var fp ProofFingerprint
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fp, err
	}
	if len(raw) != FingerprintSize {
		return fp, errors.New("fingerprint must be 32 bytes")
	}
	copy(fp[:], raw)
	return fp, nil
}

// PriceClaim is the caller-submitted backing price for a proof-gated mint.
// Price is a 7-decimal fixed-point value (3005000000 = $300.50). The claim
// must match what the proof's public inputs attest to.
type PriceClaim struct {
	Price     *big.Int
	Timestamp uint64
}

// MintAuditRecord is the immutable metadata entry written once per
// successful proof-gated mint. IDs are strictly increasing and assigned
// only on the commit path.
type MintAuditRecord struct {
	ID               uint32
	Recipient        string
	Amount           *big.Int
	Price            *big.Int
	Timestamp        uint64
	Commitment       []byte
	ProofFingerprint ProofFingerprint
	Verified         bool
	CreatedAt        time.Time
}

// ProofUsageRecord marks a fingerprint as consumed. It is created exactly
// once, never updated, and its existence is the sole truth source for
// replay rejection.
type ProofUsageRecord struct {
	Fingerprint ProofFingerprint
	FirstUsedAt uint64
}
