package domain

import "math/big"

// PriceData is a single oracle observation, 7-decimal fixed point.
type PriceData struct {
	Price     *big.Int
	Timestamp uint64
}

type RWAAssetType string

const (
	RWAAssetEquity    RWAAssetType = "equity"
	RWAAssetCommodity RWAAssetType = "commodity"
	RWAAssetBond      RWAAssetType = "bond"
	RWAAssetRealWorld RWAAssetType = "real_estate"
)

// RWAMetadata mirrors the oracle's SEP-0001 asset description.
type RWAMetadata struct {
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Issuer      string       `json:"issuer"`
	AssetType   RWAAssetType `json:"asset_type"`
	Description string       `json:"description,omitempty"`
}

// RegulatoryInfo mirrors the oracle's SEP-0008 regulated-asset disclosure.
type RegulatoryInfo struct {
	Regulated        bool   `json:"regulated"`
	Jurisdiction     string `json:"jurisdiction,omitempty"`
	LicenseID        string `json:"license_id,omitempty"`
	ApprovalServer   string `json:"approval_server,omitempty"`
	ApprovalCriteria string `json:"approval_criteria,omitempty"`
}
