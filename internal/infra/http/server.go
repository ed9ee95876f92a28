package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/config"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/auth/apikey"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/cachemem"
	cryptoinfra "github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/crypto"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/db"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/memstore"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/oracle"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/policyopa"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/ratelimit"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/verifier/honk"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	mintUC *usecase.MintWithProof
	query  *usecase.MintQuery
	token  *usecase.TokenService
	oracle usecase.PriceOracle
	audit  *usecase.AuditEmitter

	auditEvents usecase.AuditEventRepository

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool

	initErr error
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	s.initDeps()
	s.routes()
	return s
}

// ServerDeps lets tests and alternate wiring swap any collaborator.
type ServerDeps struct {
	Mint        *usecase.MintWithProof
	Query       *usecase.MintQuery
	Token       *usecase.TokenService
	Oracle      usecase.PriceOracle
	Audit       *usecase.AuditEmitter
	AuditEvents usecase.AuditEventRepository
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:         cfg,
		r:           r,
		mintUC:      deps.Mint,
		query:       deps.Query,
		token:       deps.Token,
		oracle:      deps.Oracle,
		audit:       deps.Audit,
		auditEvents: deps.AuditEvents,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initDeps() {
	clock := usecase.ClockFunc(time.Now)
	admin := apikey.NewAuthorizer(s.cfg.AdminAPIKey)
	fingerprint := &cryptoinfra.Service{}
	supplyCap := s.cfg.SupplyCapAmount()

	var (
		mints       usecase.MintCommitter
		proofs      usecase.ProofRecordStore
		ledger      usecase.MintLedgerReader
		balances    usecase.BalanceStore
		auditEvents usecase.AuditEventRepository
	)
	if s.store != nil && s.store.DB != nil {
		mintRepo := db.NewMintRepository(s.store.DB, supplyCap)
		mints = mintRepo
		proofs = mintRepo
		ledger = mintRepo
		balances = db.NewBalanceRepository(s.store.DB, supplyCap)
		auditEvents = db.NewAuditEventRepository(s.store.DB)
	} else {
		mem := memstore.NewLedger(supplyCap)
		mints = mem
		proofs = mem
		ledger = mem
		balances = mem
		auditEvents = memstore.NewAuditLog()
	}
	s.auditEvents = auditEvents
	s.audit = usecase.NewAuditEmitter(auditEvents, clock)

	var verifier usecase.ProofVerifier
	if client, err := honk.NewClient(s.cfg.VerifierURL, &http.Client{
		Timeout: time.Duration(s.cfg.VerifierTimeoutSec) * time.Second,
	}); err == nil {
		verifier = client
	} else {
		s.failInit(fmt.Errorf("verifier client: %w", err))
	}

	s.mintUC = &usecase.MintWithProof{
		Admin: admin,
		Validator: &usecase.ProofValidator{
			Verifier:  verifier,
			Clock:     clock,
			MaxAge:    s.cfg.MaxProofAge(),
			ClockSkew: s.cfg.ClockSkew(),
		},
		Fingerprint: fingerprint,
		Proofs:      proofs,
		Mints:       mints,
		Audit:       s.audit,
		Clock:       clock,
	}
	s.query = &usecase.MintQuery{Ledger: ledger, Proofs: proofs}

	// A configured compliance checker that cannot be built keeps the server
	// from starting; silently skipping it would let transfers bypass the gate.
	var compliance usecase.ComplianceChecker
	switch s.cfg.ComplianceMode {
	case "opa":
		if engine, err := policyopa.NewEngineFromBundlePath(context.Background(), s.cfg.ComplianceBundle); err == nil {
			compliance = engine
		} else {
			s.failInit(fmt.Errorf("compliance bundle: %w", err))
		}
	case "oracle", "":
		if s.cfg.OracleURL != "" {
			if client, err := oracle.NewComplianceClient(s.cfg.OracleURL, s.cfg.PeggedAsset, &http.Client{
				Timeout: time.Duration(s.cfg.OracleTimeoutSec) * time.Second,
			}); err == nil {
				compliance = client
			} else {
				s.failInit(fmt.Errorf("compliance client: %w", err))
			}
		}
	default:
		s.failInit(fmt.Errorf("unsupported compliance mode %q", s.cfg.ComplianceMode))
	}

	s.token = &usecase.TokenService{
		Admin:      admin,
		Balances:   balances,
		Compliance: compliance,
		Audit:      s.audit,
		Meta: domain.TokenMetadata{
			Name:        s.cfg.TokenName,
			Symbol:      s.cfg.TokenSymbol,
			Decimals:    uint32(s.cfg.TokenDecimals),
			PeggedAsset: s.cfg.PeggedAsset,
		},
	}

	if s.cfg.OracleURL != "" {
		if client, err := oracle.NewClient(s.cfg.OracleURL, s.cfg.PeggedAsset, cachemem.New(), s.cfg.PriceCacheTTL(), &http.Client{
			Timeout: time.Duration(s.cfg.OracleTimeoutSec) * time.Second,
		}); err == nil {
			s.oracle = client
		}
	}

	s.initRateLimit(nil)
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = time.Duration(s.cfg.RateLimitWindowSeconds) * time.Second
	}
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) failInit(err error) {
	if s.initErr == nil {
		s.initErr = err
	}
}

func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
