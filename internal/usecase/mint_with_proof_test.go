package usecase

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/domain"
	"github.com/Neko-Protocol/Neko-Oracle-RWA/internal/infra/crypto"
)

const testAdminKey = "test-admin-key"

type staticAdmin struct{}

func (staticAdmin) RequireAdmin(ctx context.Context, credential string) error {
	if credential != testAdminKey {
		return domain.ErrUnauthorized
	}
	return nil
}

// memMintStore is an in-memory MintCommitter + ProofRecordStore +
// MintLedgerReader with the same atomicity contract as the gorm repo.
type memMintStore struct {
	mu      sync.Mutex
	nextID  uint32
	records map[uint32]domain.MintAuditRecord
	usage   map[domain.ProofFingerprint]uint64
	balance map[string]*big.Int

	failCommit error
}

func newMemMintStore() *memMintStore {
	return &memMintStore{
		records: make(map[uint32]domain.MintAuditRecord),
		usage:   make(map[domain.ProofFingerprint]uint64),
		balance: make(map[string]*big.Int),
	}
}

func (m *memMintStore) IsUsed(ctx context.Context, fp domain.ProofFingerprint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.usage[fp]
	return ok, nil
}

func (m *memMintStore) UsageTimestamp(ctx context.Context, fp domain.ProofFingerprint) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.usage[fp]
	return at, ok, nil
}

func (m *memMintStore) Commit(ctx context.Context, rec domain.MintAuditRecord) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCommit != nil {
		return 0, m.failCommit
	}
	if _, ok := m.usage[rec.ProofFingerprint]; ok {
		return 0, domain.ErrProofAlreadyUsed
	}
	rec.ID = m.nextID
	m.nextID++
	m.records[rec.ID] = rec
	m.usage[rec.ProofFingerprint] = uint64(rec.CreatedAt.Unix())
	current, ok := m.balance[rec.Recipient]
	if !ok {
		current = big.NewInt(0)
	}
	m.balance[rec.Recipient] = new(big.Int).Add(current, rec.Amount)
	return rec.ID, nil
}

func (m *memMintStore) Get(ctx context.Context, id uint32) (*domain.MintAuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (m *memMintStore) balanceOf(addr string) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balance[addr]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(b)
}

func newMintUC(store *memMintStore, verifier ProofVerifier) *MintWithProof {
	return &MintWithProof{
		Admin:       staticAdmin{},
		Validator:   newValidator(verifier),
		Fingerprint: crypto.Service{},
		Proofs:      store,
		Mints:       store,
		Clock:       fixedClock{at: testNow},
	}
}

func mintRequest(proof []byte) MintWithProofRequest {
	claim := testClaim()
	return MintWithProofRequest{
		Credential:   testAdminKey,
		To:           "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ",
		Amount:       big.NewInt(1000),
		Price:        claim.Price,
		Timestamp:    claim.Timestamp,
		Commitment:   bytes.Repeat([]byte{0xcc}, 32),
		ProofData:    proof,
		PublicInputs: PublicInputsForClaim(claim),
	}
}

func TestMintWithProof_RecordsAndReplays(t *testing.T) {
	store := newMemMintStore()
	uc := newMintUC(store, &staticVerifier{valid: true})

	proof1 := bytes.Repeat([]byte{0x01}, 64)
	id, err := uc.Execute(context.Background(), mintRequest(proof1))
	if err != nil {
		t.Fatalf("first mint: %v", err)
	}
	if id != 0 {
		t.Fatalf("first record id = %d, want 0", id)
	}

	// Same proof again, even with different recipient and amount.
	replay := mintRequest(proof1)
	replay.To = "GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H"
	replay.Amount = big.NewInt(5)
	if _, err := uc.Execute(context.Background(), replay); !errors.Is(err, domain.ErrProofAlreadyUsed) {
		t.Fatalf("replay: want ErrProofAlreadyUsed, got %v", err)
	}

	// A fresh proof for the same claim mints fine and ids stay monotonic.
	proof2 := bytes.Repeat([]byte{0x02}, 64)
	id2, err := uc.Execute(context.Background(), mintRequest(proof2))
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if id2 != 1 {
		t.Fatalf("second record id = %d, want 1", id2)
	}
}

func TestMintWithProof_AuditCompleteness(t *testing.T) {
	store := newMemMintStore()
	uc := newMintUC(store, &staticVerifier{valid: true})
	req := mintRequest(bytes.Repeat([]byte{0x01}, 64))

	id, err := uc.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	rec, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !rec.Verified {
		t.Fatal("record must be marked verified")
	}
	if rec.Recipient != req.To || rec.Amount.Cmp(req.Amount) != 0 || rec.Price.Cmp(req.Price) != 0 || rec.Timestamp != req.Timestamp {
		t.Fatal("record fields must match the request")
	}
	if !bytes.Equal(rec.Commitment, req.Commitment) {
		t.Fatal("commitment must match the request")
	}

	claim := domain.PriceClaim{Price: req.Price, Timestamp: req.Timestamp}
	fp := crypto.Fingerprint(req.ProofData, claim)
	if rec.ProofFingerprint != fp {
		t.Fatal("record fingerprint must match the proof")
	}
	at, ok, err := store.UsageTimestamp(context.Background(), fp)
	if err != nil || !ok {
		t.Fatalf("usage timestamp: ok=%v err=%v", ok, err)
	}
	if at != uint64(rec.CreatedAt.Unix()) {
		t.Fatal("first-use timestamp must match the recorded mint")
	}
}

func TestMintWithProof_Unauthorized(t *testing.T) {
	store := newMemMintStore()
	verifier := &staticVerifier{valid: true}
	uc := newMintUC(store, verifier)
	req := mintRequest(bytes.Repeat([]byte{0x01}, 64))
	req.Credential = "wrong"

	if _, err := uc.Execute(context.Background(), req); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if verifier.called != 0 {
		t.Fatal("verifier must not run for an unauthorized caller")
	}
}

func TestMintWithProof_InvalidAmountBeforeProofWork(t *testing.T) {
	store := newMemMintStore()
	verifier := &staticVerifier{valid: true}
	uc := newMintUC(store, verifier)

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-1)} {
		req := mintRequest(bytes.Repeat([]byte{0x01}, 64))
		req.Amount = amount
		if _, err := uc.Execute(context.Background(), req); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("amount %v: want ErrInvalidAmount, got %v", amount, err)
		}
	}
	if verifier.called != 0 {
		t.Fatal("verifier must not be invoked for a non-positive amount")
	}
}

func TestMintWithProof_RejectionLeavesNoState(t *testing.T) {
	store := newMemMintStore()
	uc := newMintUC(store, &staticVerifier{valid: false})
	req := mintRequest(bytes.Repeat([]byte{0x01}, 64))

	if _, err := uc.Execute(context.Background(), req); !errors.Is(err, domain.ErrProofVerificationFailed) {
		t.Fatalf("want ErrProofVerificationFailed, got %v", err)
	}

	claim := domain.PriceClaim{Price: req.Price, Timestamp: req.Timestamp}
	used, err := store.IsUsed(context.Background(), crypto.Fingerprint(req.ProofData, claim))
	if err != nil {
		t.Fatalf("is used: %v", err)
	}
	if used {
		t.Fatal("rejected proof must not be marked used")
	}
	if store.balanceOf(req.To).Sign() != 0 {
		t.Fatal("rejected mint must not move balances")
	}
	if _, err := store.Get(context.Background(), 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("rejected mint must not write an audit record")
	}
}

func TestMintWithProof_LedgerFailureAborts(t *testing.T) {
	store := newMemMintStore()
	store.failCommit = domain.ErrLedgerMintFailed
	uc := newMintUC(store, &staticVerifier{valid: true})
	req := mintRequest(bytes.Repeat([]byte{0x01}, 64))

	if _, err := uc.Execute(context.Background(), req); !errors.Is(err, domain.ErrLedgerMintFailed) {
		t.Fatalf("want ErrLedgerMintFailed, got %v", err)
	}
	claim := domain.PriceClaim{Price: req.Price, Timestamp: req.Timestamp}
	if used, _ := store.IsUsed(context.Background(), crypto.Fingerprint(req.ProofData, claim)); used {
		t.Fatal("failed ledger mint must not mark the proof used")
	}
}

func TestMintWithProof_ConcurrentSameProof(t *testing.T) {
	store := newMemMintStore()
	uc := newMintUC(store, &staticVerifier{valid: true})
	req := mintRequest(bytes.Repeat([]byte{0x01}, 64))

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = uc.Execute(context.Background(), req)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrProofAlreadyUsed):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("exactly one request may succeed, got %d", succeeded)
	}
}

func TestMintQuery_MissingID(t *testing.T) {
	store := newMemMintStore()
	q := &MintQuery{Ledger: store, Proofs: store}

	verified, err := q.IsMintVerified(context.Background(), 99)
	if err != nil {
		t.Fatalf("is verified: %v", err)
	}
	if verified {
		t.Fatal("missing id must report false, not an error")
	}
	if _, err := q.GetMintMetadata(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := q.GetMintCommitment(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestMintQuery_UnusedProof(t *testing.T) {
	store := newMemMintStore()
	q := &MintQuery{Ledger: store, Proofs: store}
	fp := crypto.Fingerprint([]byte{0x01}, domain.PriceClaim{Price: big.NewInt(1), Timestamp: 1})

	used, err := q.IsProofUsed(context.Background(), fp)
	if err != nil || used {
		t.Fatalf("unused proof: used=%v err=%v", used, err)
	}
	if _, ok, _ := q.GetProofUsageTimestamp(context.Background(), fp); ok {
		t.Fatal("unused proof must have no usage timestamp")
	}
}
