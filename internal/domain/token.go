package domain

import "math/big"

type TokenMetadata struct {
	Name        string
	Symbol      string
	Decimals    uint32
	PeggedAsset string
}

type Balance struct {
	Address    string
	Amount     *big.Int
	Authorized bool
}

type Allowance struct {
	From    string
	Spender string
	Amount  *big.Int
}

// SupplyState tracks total issuance. Cap is nil when the token is uncapped.
type SupplyState struct {
	TotalSupply *big.Int
	Cap         *big.Int
}
