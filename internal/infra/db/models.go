package db

import "time"

type MintRecordModel struct {
	ID               int64     `gorm:"primaryKey;autoIncrement:false"`
	Recipient        string    `gorm:"index;not null"`
	Amount           string    `gorm:"type:numeric(39,0);not null"`
	Price            string    `gorm:"type:numeric(39,0);not null"`
	PriceTimestamp   int64     `gorm:"not null"`
	Commitment       []byte    `gorm:"type:bytea"`
	ProofFingerprint string    `gorm:"uniqueIndex;not null"`
	Verified         bool      `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
}

func (MintRecordModel) TableName() string {
	return "mint_records"
}

type ProofUsageModel struct {
	Fingerprint string    `gorm:"primaryKey"`
	FirstUsedAt int64     `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (ProofUsageModel) TableName() string {
	return "proof_usage"
}

type BalanceModel struct {
	Address    string    `gorm:"primaryKey"`
	Amount     string    `gorm:"type:numeric(39,0);not null"`
	Authorized bool      `gorm:"not null;default:true"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (BalanceModel) TableName() string {
	return "balances"
}

type AllowanceModel struct {
	FromAddress string    `gorm:"primaryKey"`
	Spender     string    `gorm:"primaryKey"`
	Amount      string    `gorm:"type:numeric(39,0);not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (AllowanceModel) TableName() string {
	return "allowances"
}

type SupplyModel struct {
	ID          int16     `gorm:"primaryKey"`
	TotalSupply string    `gorm:"type:numeric(39,0);not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (SupplyModel) TableName() string {
	return "token_supply"
}

type AuditEventModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Seq           int64  `gorm:"uniqueIndex;not null"`
	EventType     string `gorm:"column:event_type;not null"`
	PayloadJSON   []byte `gorm:"type:jsonb;not null"`
	PayloadHash   string `gorm:"not null"`
	ActorType     string `gorm:"not null"`
	TargetType    string `gorm:"not null"`
	TargetID      *string
	Result        string `gorm:"not null"`
	ErrorCode     *string
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

func (AuditEventModel) TableName() string {
	return "audit_events"
}
