package http

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type mintRequest struct {
	To           string   `json:"to"`
	Amount       string   `json:"amount"`
	Price        string   `json:"price"`
	Timestamp    uint64   `json:"timestamp"`
	Commitment   string   `json:"commitment,omitempty"`
	ProofBase64  string   `json:"proof"`
	PublicInputs []uint32 `json:"public_inputs"`
}

type mintResponse struct {
	RecordID uint32 `json:"record_id"`
}

type mintRecordResponse struct {
	ID               uint32 `json:"id"`
	Recipient        string `json:"recipient"`
	Amount           string `json:"amount"`
	Price            string `json:"price"`
	Timestamp        uint64 `json:"timestamp"`
	Commitment       string `json:"commitment,omitempty"`
	ProofFingerprint string `json:"proof_fingerprint"`
	Verified         bool   `json:"verified"`
	CreatedAt        string `json:"created_at"`
}

type proofUsageResponse struct {
	Used        bool   `json:"used"`
	FirstUsedAt uint64 `json:"first_used_at,omitempty"`
}

type adminMintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type clawbackRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type authorizedRequest struct {
	Authorized bool `json:"authorized"`
}

type transferRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
	Spender string `json:"spender,omitempty"`
}

type balanceResponse struct {
	Address    string `json:"address"`
	Balance    string `json:"balance"`
	Authorized bool   `json:"authorized"`
}

type tokenResponse struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint32 `json:"decimals"`
	PeggedAsset string `json:"pegged_asset"`
	TotalSupply string `json:"total_supply"`
}

type priceResponse struct {
	Price     string `json:"price"`
	Timestamp uint64 `json:"timestamp"`
}

type auditEventResponse struct {
	ID            string `json:"id"`
	Seq           int64  `json:"seq"`
	EventType     string `json:"event_type"`
	Payload       any    `json:"payload"`
	PayloadHash   string `json:"payload_hash"`
	ActorType     string `json:"actor_type"`
	TargetType    string `json:"target_type"`
	TargetID      string `json:"target_id,omitempty"`
	Result        string `json:"result"`
	ErrorCode     string `json:"error_code,omitempty"`
	PrevEventHash string `json:"prev_event_hash"`
	EventHash     string `json:"event_hash"`
	CreatedAt     string `json:"created_at"`
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealthz)

	v1 := s.r.Group("/v1")
	v1.POST("/mints", s.rateLimited("mints:create", s.handleMintWithProof))
	v1.GET("/mints/:id", s.rateLimited("mints:read", s.handleGetMint))
	v1.GET("/mints/:id/verified", s.rateLimited("mints:read", s.handleGetMintVerified))
	v1.GET("/mints/:id/commitment", s.rateLimited("mints:read", s.handleGetMintCommitment))
	v1.GET("/proofs/:fingerprint", s.rateLimited("proofs:read", s.handleGetProofUsage))

	v1.POST("/admin/mint", s.rateLimited("admin:mint", s.handleAdminMint))
	v1.POST("/admin/clawback", s.rateLimited("admin:clawback", s.handleClawback))
	v1.PUT("/admin/accounts/:address/authorized", s.rateLimited("admin:authorized", s.handleSetAuthorized))

	v1.POST("/transfers", s.rateLimited("transfers:create", s.handleTransfer))
	v1.GET("/balances/:address", s.rateLimited("balances:read", s.handleGetBalance))
	v1.GET("/token", s.rateLimited("token:read", s.handleGetToken))
	v1.GET("/price", s.rateLimited("price:read", s.handleGetPrice))
	v1.GET("/price/at", s.rateLimited("price:read", s.handleGetPriceAt))
	v1.GET("/audit/events", s.rateLimited("audit:read", s.handleListAuditEvents))

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) rateLimited(routeID string, handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.enforceRateLimit(c, routeID) {
			return
		}
		handler(c)
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleMintWithProof(c *gin.Context) {
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	amount, ok := parseBigInt(req.Amount)
	if !ok {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_AMOUNT", "invalid amount")
		return
	}
	price, ok := parseBigInt(req.Price)
	if !ok {
		writeErrorCode(c, http.StatusBadRequest, "PUBLIC_INPUT_MISMATCH", "invalid price")
		return
	}
	proof, err := base64.StdEncoding.DecodeString(req.ProofBase64)
	if err != nil {
		writeErrorCode(c, http.StatusUnprocessableEntity, "PROOF_VERIFICATION_FAILED", "invalid proof encoding")
		return
	}
	var commitment []byte
	if req.Commitment != "" {
		commitment, err = hex.DecodeString(req.Commitment)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_COMMITMENT", "invalid commitment encoding")
			return
		}
	}

	id, err := s.mintUC.Execute(c.Request.Context(), mintExecuteRequest(adminCredential(c), req, amount, price, commitment, proof))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mintResponse{RecordID: id})
}

func (s *Server) handleGetMint(c *gin.Context) {
	id, ok := parseRecordID(c)
	if !ok {
		return
	}
	rec, err := s.query.GetMintMetadata(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, buildMintRecordResponse(rec))
}

func (s *Server) handleGetMintVerified(c *gin.Context) {
	id, ok := parseRecordID(c)
	if !ok {
		return
	}
	verified, err := s.query.IsMintVerified(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": verified})
}

func (s *Server) handleGetMintCommitment(c *gin.Context) {
	id, ok := parseRecordID(c)
	if !ok {
		return
	}
	commitment, err := s.query.GetMintCommitment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commitment": hex.EncodeToString(commitment)})
}

func (s *Server) handleGetProofUsage(c *gin.Context) {
	fp, err := domain.FingerprintFromHex(c.Param("fingerprint"))
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_FINGERPRINT", "invalid fingerprint encoding")
		return
	}
	at, used, err := s.query.GetProofUsageTimestamp(c.Request.Context(), fp)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proofUsageResponse{Used: used, FirstUsedAt: at})
}

func (s *Server) handleAdminMint(c *gin.Context) {
	var req adminMintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	amount, ok := parseBigInt(req.Amount)
	if !ok {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_AMOUNT", "invalid amount")
		return
	}
	if err := s.token.Mint(c.Request.Context(), adminCredential(c), req.To, amount); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "minted"})
}

func (s *Server) handleClawback(c *gin.Context) {
	var req clawbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	amount, ok := parseBigInt(req.Amount)
	if !ok {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_AMOUNT", "invalid amount")
		return
	}
	if err := s.token.Clawback(c.Request.Context(), adminCredential(c), req.From, amount); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "clawed_back"})
}

func (s *Server) handleSetAuthorized(c *gin.Context) {
	var req authorizedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	address := c.Param("address")
	if err := s.token.SetAuthorized(c.Request.Context(), adminCredential(c), address, req.Authorized); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "authorized": req.Authorized})
}

func (s *Server) handleTransfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	amount, ok := parseBigInt(req.Amount)
	if !ok {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_AMOUNT", "invalid amount")
		return
	}
	var err error
	if req.Spender != "" {
		err = s.token.TransferFrom(c.Request.Context(), req.Spender, req.From, req.To, amount)
	} else {
		err = s.token.Transfer(c.Request.Context(), req.From, req.To, amount)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "transferred"})
}

func (s *Server) handleGetBalance(c *gin.Context) {
	address := c.Param("address")
	balance, err := s.token.BalanceOf(c.Request.Context(), address)
	if err != nil {
		writeError(c, err)
		return
	}
	authorized, err := s.token.Authorized(c.Request.Context(), address)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, balanceResponse{
		Address:    address,
		Balance:    balance.String(),
		Authorized: authorized,
	})
}

func (s *Server) handleGetToken(c *gin.Context) {
	meta := s.token.Metadata()
	supply, err := s.token.TotalSupply(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Decimals:    meta.Decimals,
		PeggedAsset: meta.PeggedAsset,
		TotalSupply: supply.String(),
	})
}

func (s *Server) handleGetPrice(c *gin.Context) {
	if s.oracle == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "ORACLE_UNAVAILABLE", "no oracle configured")
		return
	}
	data, err := s.oracle.CurrentPrice(c.Request.Context())
	if err != nil {
		writeErrorCode(c, http.StatusBadGateway, "ORACLE_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, priceResponse{Price: data.Price.String(), Timestamp: data.Timestamp})
}

func (s *Server) handleGetPriceAt(c *gin.Context) {
	if s.oracle == nil {
		writeErrorCode(c, http.StatusServiceUnavailable, "ORACLE_UNAVAILABLE", "no oracle configured")
		return
	}
	ts, err := strconv.ParseUint(c.Query("timestamp"), 10, 64)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_TIMESTAMP", "invalid timestamp")
		return
	}
	data, err := s.oracle.PriceAt(c.Request.Context(), ts)
	if err != nil {
		writeErrorCode(c, http.StatusBadGateway, "ORACLE_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, priceResponse{Price: data.Price.String(), Timestamp: data.Timestamp})
}

func (s *Server) handleListAuditEvents(c *gin.Context) {
	if s.auditEvents == nil {
		c.JSON(http.StatusOK, []auditEventResponse{})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
			return
		}
		limit = parsed
	}
	events, err := s.auditEvents.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, buildAuditEventResponse(event))
	}
	c.JSON(http.StatusOK, out)
}

func mintExecuteRequest(credential string, req mintRequest, amount, price *big.Int, commitment, proof []byte) usecase.MintWithProofRequest {
	return usecase.MintWithProofRequest{
		Credential:   credential,
		To:           req.To,
		Amount:       amount,
		Price:        price,
		Timestamp:    req.Timestamp,
		Commitment:   commitment,
		ProofData:    proof,
		PublicInputs: req.PublicInputs,
	}
}

func adminCredential(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-Admin-Key"))
}

func parseRecordID(c *gin.Context) (uint32, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_RECORD_ID", "invalid record id")
		return 0, false
	}
	return uint32(id), true
}

func parseBigInt(raw string) (*big.Int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, false
	}
	return value, true
}

func buildMintRecordResponse(rec *domain.MintAuditRecord) mintRecordResponse {
	return mintRecordResponse{
		ID:               rec.ID,
		Recipient:        rec.Recipient,
		Amount:           rec.Amount.String(),
		Price:            rec.Price.String(),
		Timestamp:        rec.Timestamp,
		Commitment:       hex.EncodeToString(rec.Commitment),
		ProofFingerprint: rec.ProofFingerprint.Hex(),
		Verified:         rec.Verified,
		CreatedAt:        rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func buildAuditEventResponse(event domain.AuditEvent) auditEventResponse {
	return auditEventResponse{
		ID:            event.ID,
		Seq:           event.Seq,
		EventType:     string(event.EventType),
		Payload:       event.Payload,
		PayloadHash:   event.PayloadHash,
		ActorType:     string(event.ActorType),
		TargetType:    string(event.TargetType),
		TargetID:      event.TargetID,
		Result:        string(event.Result),
		ErrorCode:     event.ErrorCode,
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrInvalidAmount):
		status, code = http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, domain.ErrPublicInputMismatch):
		status, code = http.StatusBadRequest, "PUBLIC_INPUT_MISMATCH"
	case errors.Is(err, domain.ErrProofVerificationFailed):
		status, code = http.StatusUnprocessableEntity, "PROOF_VERIFICATION_FAILED"
	case errors.Is(err, domain.ErrProofExpired):
		status, code = http.StatusUnprocessableEntity, "PROOF_EXPIRED"
	case errors.Is(err, domain.ErrProofAlreadyUsed):
		status, code = http.StatusConflict, "PROOF_ALREADY_USED"
	case errors.Is(err, domain.ErrExternalVerifier):
		status, code = http.StatusBadGateway, "EXTERNAL_VERIFIER_ERROR"
	case errors.Is(err, domain.ErrLedgerMintFailed):
		status, code = http.StatusConflict, "LEDGER_MINT_FAILED"
	case errors.Is(err, domain.ErrComplianceRejected):
		status, code = http.StatusForbidden, "COMPLIANCE_REJECTED"
	case errors.Is(err, domain.ErrInsufficientBalance):
		status, code = http.StatusConflict, "INSUFFICIENT_BALANCE"
	case errors.Is(err, domain.ErrInsufficientAllowance):
		status, code = http.StatusConflict, "INSUFFICIENT_ALLOWANCE"
	case errors.Is(err, domain.ErrAccountDeauthorized):
		status, code = http.StatusForbidden, "ACCOUNT_DEAUTHORIZED"
	case errors.Is(err, domain.ErrArithmetic):
		status, code = http.StatusBadRequest, "ARITHMETIC_ERROR"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}
