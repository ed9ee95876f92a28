package domain

import "errors"

var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrProofVerificationFailed = errors.New("proof verification failed")
	ErrPublicInputMismatch     = errors.New("public input mismatch")
	ErrExternalVerifier        = errors.New("external verifier error")
	ErrProofAlreadyUsed        = errors.New("proof already used")
	ErrProofExpired            = errors.New("proof expired")
	ErrLedgerMintFailed        = errors.New("ledger mint failed")
	ErrComplianceRejected      = errors.New("compliance rejected")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrInsufficientAllowance   = errors.New("insufficient allowance")
	ErrAccountDeauthorized     = errors.New("account deauthorized")
	ErrArithmetic              = errors.New("arithmetic overflow")
	ErrNotFound                = errors.New("not found")
)
