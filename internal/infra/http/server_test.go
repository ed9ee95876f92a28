package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/config"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/auth/apikey"
	cryptoinfra "github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/crypto"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/memstore"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/ratelimit"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/usecase"

	"github.com/gin-gonic/gin"
)

const testAdminKey = "test-admin-key"

var testNow = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

type staticVerifier struct {
	valid bool
	err   error
}

func (v *staticVerifier) Verify(ctx context.Context, proof []byte, publicInputs []uint32) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	return v.valid, nil
}

type denyAll struct{}

func (denyAll) Check(ctx context.Context, from, to string, amount *big.Int) error {
	return errors.New("policy says no")
}

func newTestServer(t *testing.T, verifier usecase.ProofVerifier, limiter domain.RateLimiter) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := usecase.ClockFunc(func() time.Time { return testNow })
	admin := apikey.NewAuthorizer(testAdminKey)
	ledger := memstore.NewLedger(nil)
	auditLog := memstore.NewAuditLog()
	emitter := usecase.NewAuditEmitter(auditLog, clock)

	cfg := config.Config{
		AdminAPIKey:            testAdminKey,
		RateLimitRequests:      0,
		RateLimitWindowSeconds: 60,
	}
	if limiter != nil {
		cfg.RateLimitRequests = 2
	}

	return NewServerWithDeps(cfg, ServerDeps{
		Mint: &usecase.MintWithProof{
			Admin: admin,
			Validator: &usecase.ProofValidator{
				Verifier:  verifier,
				Clock:     clock,
				MaxAge:    time.Hour,
				ClockSkew: 5 * time.Minute,
			},
			Fingerprint: &cryptoinfra.Service{},
			Proofs:      ledger,
			Mints:       ledger,
			Audit:       emitter,
			Clock:       clock,
		},
		Query: &usecase.MintQuery{Ledger: ledger, Proofs: ledger},
		Token: &usecase.TokenService{
			Admin:    admin,
			Balances: ledger,
			Audit:    emitter,
			Meta: domain.TokenMetadata{
				Name:        "Neko NVDA",
				Symbol:      "nNVDA",
				Decimals:    7,
				PeggedAsset: "NVDA",
			},
		},
		Audit:       emitter,
		AuditEvents: auditLog,
		RateLimiter: limiter,
	})
}

func testMintBody() mintRequest {
	claim := domain.PriceClaim{
		Price:     big.NewInt(3005000000),
		Timestamp: uint64(testNow.Unix()) - 60,
	}
	return mintRequest{
		To:           "GRECIPIENT",
		Amount:       "5000",
		Price:        claim.Price.String(),
		Timestamp:    claim.Timestamp,
		Commitment:   "deadbeef",
		ProofBase64:  base64.StdEncoding.EncodeToString([]byte("proof-bytes")),
		PublicInputs: usecase.PublicInputsForClaim(claim),
	}
}

func doJSON(t *testing.T, s *Server, method, path string, body any, adminKey string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if adminKey != "" {
		req.Header.Set("X-Admin-Key", adminKey)
	}
	rec := httptest.NewRecorder()
	s.r.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestServer_MintWithProofAndQueries(t *testing.T) {
	s := newTestServer(t, &staticVerifier{valid: true}, nil)
	body := testMintBody()

	rec := doJSON(t, s, http.MethodPost, "/v1/mints", body, testAdminKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var minted mintResponse
	decodeJSON(t, rec, &minted)
	if minted.RecordID != 0 {
		t.Fatalf("expected record id 0, got %d", minted.RecordID)
	}

	// Replay of the same proof conflicts.
	rec = doJSON(t, s, http.MethodPost, "/v1/mints", body, testAdminKey)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d: %s", rec.Code, rec.Body.String())
	}
	var errResp errorResponse
	decodeJSON(t, rec, &errResp)
	if errResp.Code != "PROOF_ALREADY_USED" {
		t.Fatalf("unexpected error code: %s", errResp.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/mints/0", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var record mintRecordResponse
	decodeJSON(t, rec, &record)
	if record.Recipient != "GRECIPIENT" || record.Amount != "5000" || !record.Verified {
		t.Fatalf("unexpected record: %+v", record)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/mints/0/verified", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/mints/0/commitment", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/mints/99", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing record, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/proofs/"+record.ProofFingerprint, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var usage proofUsageResponse
	decodeJSON(t, rec, &usage)
	if !usage.Used {
		t.Fatal("expected proof to be used")
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/balances/GRECIPIENT", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var balance balanceResponse
	decodeJSON(t, rec, &balance)
	if balance.Balance != "5000" {
		t.Fatalf("unexpected balance: %s", balance.Balance)
	}
}

func TestServer_MintUnauthorized(t *testing.T) {
	s := newTestServer(t, &staticVerifier{valid: true}, nil)

	rec := doJSON(t, s, http.MethodPost, "/v1/mints", testMintBody(), "wrong-key")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodPost, "/v1/mints", testMintBody(), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
}

func TestServer_MintRejections(t *testing.T) {
	s := newTestServer(t, &staticVerifier{valid: true}, nil)

	body := testMintBody()
	body.Amount = "0"
	rec := doJSON(t, s, http.MethodPost, "/v1/mints", body, testAdminKey)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero amount, got %d", rec.Code)
	}

	body = testMintBody()
	body.Timestamp = uint64(testNow.Add(-2 * time.Hour).Unix())
	rec = doJSON(t, s, http.MethodPost, "/v1/mints", body, testAdminKey)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for stale proof, got %d: %s", rec.Code, rec.Body.String())
	}

	body = testMintBody()
	body.PublicInputs[0]++
	rec = doJSON(t, s, http.MethodPost, "/v1/mints", body, testAdminKey)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for input mismatch, got %d: %s", rec.Code, rec.Body.String())
	}

	s = newTestServer(t, &staticVerifier{valid: false}, nil)
	rec = doJSON(t, s, http.MethodPost, "/v1/mints", testMintBody(), testAdminKey)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid proof, got %d", rec.Code)
	}

	s = newTestServer(t, &staticVerifier{err: errors.New("verifier offline")}, nil)
	rec = doJSON(t, s, http.MethodPost, "/v1/mints", testMintBody(), testAdminKey)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for verifier error, got %d", rec.Code)
	}
}

func TestServer_AdminTokenOperations(t *testing.T) {
	s := newTestServer(t, &staticVerifier{valid: true}, nil)

	rec := doJSON(t, s, http.MethodPost, "/v1/admin/mint", adminMintRequest{To: "GALICE", Amount: "1000"}, testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin mint: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/v1/transfers", transferRequest{From: "GALICE", To: "GBOB", Amount: "400"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/v1/admin/clawback", clawbackRequest{From: "GBOB", Amount: "100"}, testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("clawback: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPut, "/v1/admin/accounts/GBOB/authorized", authorizedRequest{Authorized: false}, testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("set authorized: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, s, http.MethodPost, "/v1/transfers", transferRequest{From: "GBOB", To: "GALICE", Amount: "10"}, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for deauthorized sender, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/v1/admin/mint", adminMintRequest{To: "GALICE", Amount: "1"}, "nope")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/token", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("token: expected 200, got %d", rec.Code)
	}
	var token tokenResponse
	decodeJSON(t, rec, &token)
	if token.Symbol != "nNVDA" || token.TotalSupply != "900" {
		t.Fatalf("unexpected token response: %+v", token)
	}
}

func TestServer_ComplianceDenied(t *testing.T) {
	s := newTestServer(t, &staticVerifier{valid: true}, nil)
	s.token.Compliance = denyAll{}

	rec := doJSON(t, s, http.MethodPost, "/v1/admin/mint", adminMintRequest{To: "GALICE", Amount: "100"}, testAdminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin mint: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodPost, "/v1/transfers", transferRequest{From: "GALICE", To: "GBOB", Amount: "10"}, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for denied transfer, got %d: %s", rec.Code, rec.Body.String())
	}

	// The denied transfer left balances untouched.
	rec = doJSON(t, s, http.MethodGet, "/v1/balances/GALICE", nil, "")
	var balance balanceResponse
	decodeJSON(t, rec, &balance)
	if balance.Balance != "100" {
		t.Fatalf("unexpected balance after denial: %s", balance.Balance)
	}
}

func TestServer_AuditEvents(t *testing.T) {
	s := newTestServer(t, &staticVerifier{valid: true}, nil)

	rec := doJSON(t, s, http.MethodPost, "/v1/mints", testMintBody(), testAdminKey)
	if rec.Code != http.StatusCreated {
		t.Fatalf("mint: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/audit/events", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit events: expected 200, got %d", rec.Code)
	}
	var events []auditEventResponse
	decodeJSON(t, rec, &events)
	if len(events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(events))
	}
	if events[0].EventType != string(domain.AuditEventProofMintRecorded) {
		t.Fatalf("unexpected event type: %s", events[0].EventType)
	}
	if events[0].EventHash == "" || events[0].PrevEventHash == "" {
		t.Fatal("expected chained hashes")
	}
}

func TestServer_RateLimit(t *testing.T) {
	now := testNow
	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{Now: func() time.Time { return now }})
	s := newTestServer(t, &staticVerifier{valid: true}, limiter)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, s, http.MethodGet, "/v1/token", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := doJSON(t, s, http.MethodGet, "/v1/token", nil, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestServer_Healthz(t *testing.T) {
	s := newTestServer(t, &staticVerifier{valid: true}, nil)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestNewServer_FailsFastWithoutVerifier(t *testing.T) {
	s := NewServer(config.Config{HTTPAddr: ":0"}, nil)
	if err := s.Run(); err == nil {
		t.Fatal("expected startup failure when no verifier is configured")
	}
}

func TestNewServer_FailsFastOnBadComplianceBundle(t *testing.T) {
	s := NewServer(config.Config{
		HTTPAddr:         ":0",
		VerifierURL:      "http://127.0.0.1:9",
		ComplianceMode:   "opa",
		ComplianceBundle: filepath.Join(t.TempDir(), "missing-bundle"),
	}, nil)
	if err := s.Run(); err == nil {
		t.Fatal("expected startup failure when the compliance bundle cannot be loaded")
	}
}

func TestNewServer_FailsFastOnUnknownComplianceMode(t *testing.T) {
	s := NewServer(config.Config{
		HTTPAddr:       ":0",
		VerifierURL:    "http://127.0.0.1:9",
		ComplianceMode: "ouija",
	}, nil)
	if err := s.Run(); err == nil {
		t.Fatal("expected startup failure for an unknown compliance mode")
	}
}
