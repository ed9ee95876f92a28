package db

import (
	"fmt"
	"log"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set; starting with in-memory storage.")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

// Migrate creates the schema, including the counter tables used for
// monotonic id assignment.
func (s *Store) Migrate() error {
	if s.DB == nil {
		return nil
	}
	if err := s.DB.AutoMigrate(
		&MintRecordModel{},
		&ProofUsageModel{},
		&BalanceModel{},
		&AllowanceModel{},
		&SupplyModel{},
		&AuditEventModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := s.DB.Exec(
		"CREATE TABLE IF NOT EXISTS mint_record_seq (id smallint PRIMARY KEY, next_id bigint NOT NULL)",
	).Error; err != nil {
		return fmt.Errorf("create mint_record_seq: %w", err)
	}
	if err := s.DB.Exec(
		"CREATE TABLE IF NOT EXISTS audit_seq (id smallint PRIMARY KEY, seq bigint NOT NULL)",
	).Error; err != nil {
		return fmt.Errorf("create audit_seq: %w", err)
	}
	return nil
}
