package config

import (
	"math/big"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	AdminAPIKey string

	VerifierURL        string
	VerifierTimeoutSec int

	OracleURL          string
	OracleTimeoutSec   int
	PriceCacheTTLSecs  int
	ComplianceMode     string
	ComplianceBundle   string
	ComplianceBundleID string

	TokenName     string
	TokenSymbol   string
	TokenDecimals int
	PeggedAsset   string
	SupplyCap     string

	MaxProofAgeSecs int
	ClockSkewSecs   int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		VerifierURL:            os.Getenv("VERIFIER_URL"),
		VerifierTimeoutSec:     envIntDefault("VERIFIER_TIMEOUT_SECONDS", 10),
		OracleURL:              os.Getenv("ORACLE_URL"),
		OracleTimeoutSec:       envIntDefault("ORACLE_TIMEOUT_SECONDS", 10),
		PriceCacheTTLSecs:      envIntDefault("PRICE_CACHE_TTL_SECONDS", 30),
		ComplianceMode:         envDefault("COMPLIANCE_MODE", "oracle"),
		ComplianceBundle:       os.Getenv("COMPLIANCE_BUNDLE_PATH"),
		ComplianceBundleID:     os.Getenv("COMPLIANCE_BUNDLE_ID"),
		TokenName:              envDefault("TOKEN_NAME", "Neko RWA Token"),
		TokenSymbol:            envDefault("TOKEN_SYMBOL", "nRWA"),
		TokenDecimals:          envIntDefault("TOKEN_DECIMALS", 7),
		PeggedAsset:            envDefault("PEGGED_ASSET", "NVDA"),
		SupplyCap:              os.Getenv("SUPPLY_CAP"),
		MaxProofAgeSecs:        envIntDefault("MAX_PROOF_AGE_SECONDS", 3600),
		ClockSkewSecs:          envIntDefault("CLOCK_SKEW_SECONDS", 300),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// envIntDefault keeps explicit zeros: several knobs treat zero as
// disabled (MAX_PROOF_AGE_SECONDS, RATE_LIMIT_REQUESTS). Only garbage
// and negative values fall back.
func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func (c Config) MaxProofAge() time.Duration {
	if c.MaxProofAgeSecs <= 0 {
		return 0
	}
	return time.Duration(c.MaxProofAgeSecs) * time.Second
}

func (c Config) ClockSkew() time.Duration {
	if c.ClockSkewSecs <= 0 {
		return 0
	}
	return time.Duration(c.ClockSkewSecs) * time.Second
}

func (c Config) PriceCacheTTL() time.Duration {
	if c.PriceCacheTTLSecs <= 0 {
		return 0
	}
	return time.Duration(c.PriceCacheTTLSecs) * time.Second
}

// SupplyCapAmount parses SUPPLY_CAP as a base-10 integer in stroops of the
// token's smallest unit. Returns nil when unset or unparseable (uncapped).
func (c Config) SupplyCapAmount() *big.Int {
	if c.SupplyCap == "" {
		return nil
	}
	cap, ok := new(big.Int).SetString(c.SupplyCap, 10)
	if !ok || cap.Sign() <= 0 {
		return nil
	}
	return cap
}
