package paymentlink

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"encloseai/internal/db"
)

type fakeLinkStore struct {
	mu    sync.Mutex
	links map[string]*db.PaymentLink

	// failInserts makes the next N Insert calls fail, for error-branch tests.
	failInserts int
}

func newFakeLinkStore() *fakeLinkStore {
	return &fakeLinkStore{links: map[string]*db.PaymentLink{}}
}

func (s *fakeLinkStore) Insert(_ context.Context, link *db.PaymentLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInserts > 0 {
		s.failInserts--
		return errors.New("connection reset")
	}
	link.CreatedAt = time.Now()
	cp := *link
	s.links[link.ID] = &cp
	return nil
}

func (s *fakeLinkStore) GetByID(_ context.Context, id string) (*db.PaymentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.links[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *fakeLinkStore) ListByOwner(_ context.Context, ownerID uint) ([]db.PaymentLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.PaymentLink
	for _, l := range s.links {
		if l.UserID == ownerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *fakeLinkStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}

type fakeIdemStore struct {
	mu   sync.Mutex
	recs map[string]*db.IdempotencyRecord
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{recs: map[string]*db.IdempotencyRecord{}}
}

func idemMapKey(ownerID uint, key string) string {
	return fmt.Sprintf("%d|%s", ownerID, key)
}

func (s *fakeIdemStore) Get(_ context.Context, ownerID uint, key string, now time.Time) (*db.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[idemMapKey(ownerID, key)]
	if !ok || !rec.ExpiresAt.After(now) {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeIdemStore) Put(_ context.Context, rec *db.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recs[idemMapKey(rec.UserID, rec.Key)] = &cp
	return nil
}

type fakeProvider struct {
	mu          sync.Mutex
	calls       int
	lastAccount string
}

func (p *fakeProvider) CreateSession(_ context.Context, link *db.PaymentLink, stripeAccount string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastAccount = stripeAccount
	return "https://checkout.test/session/" + link.ID, nil
}

type fakeAccounts struct {
	accounts map[uint]string
	err      error
}

func (a *fakeAccounts) GetStripeAccountID(_ context.Context, userID uint) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return a.accounts[userID], nil
}

func newTestService() (*Service, *fakeLinkStore, *fakeProvider) {
	links := newFakeLinkStore()
	provider := &fakeProvider{}
	accounts := &fakeAccounts{accounts: map[uint]string{9: "acct_merchant9"}}
	svc := NewService(links, newFakeIdemStore(), accounts, provider, "https://pay.enclose.test")
	return svc, links, provider
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"empty product name", CreateInput{ProductName: "", Amount: 10, Currency: "usd"}, "product_name"},
		{"whitespace product name", CreateInput{ProductName: "   ", Amount: 10, Currency: "usd"}, "product_name"},
		{"zero amount", CreateInput{ProductName: "Premium Package", Amount: 0, Currency: "usd"}, "amount"},
		{"negative amount", CreateInput{ProductName: "Premium Package", Amount: -5, Currency: "usd"}, "amount"},
		{"unrecognized currency", CreateInput{ProductName: "Premium Package", Amount: 10, Currency: "zzz"}, "currency"},
		{"too-long currency", CreateInput{ProductName: "Premium Package", Amount: 10, Currency: "dollars"}, "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, links, _ := newTestService()

			_, err := svc.Create(context.Background(), 1, tt.in, "")
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Create = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("validation field = %q, want %q", verr.Field, tt.field)
			}
			if links.count() != 0 {
				t.Error("invalid input persisted a row")
			}
		})
	}
}

func TestCreateNonFiniteAmounts(t *testing.T) {
	svc, links, _ := newTestService()

	for _, amount := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := svc.Create(context.Background(), 1, CreateInput{ProductName: "X", Amount: amount, Currency: "usd"}, "")
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "amount" {
			t.Errorf("Create(amount=%v) = %v, want amount ValidationError", amount, err)
		}
	}
	if links.count() != 0 {
		t.Error("non-finite amounts persisted rows")
	}
}

func TestCreatePersistsOneRow(t *testing.T) {
	svc, links, _ := newTestService()

	link, err := svc.Create(context.Background(), 4, CreateInput{ProductName: "Premium Package", Amount: 99.99, Currency: "usd"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if link.URL == "" || !strings.Contains(link.URL, "/pay/"+link.ID) {
		t.Errorf("link URL %q does not embed the link id", link.URL)
	}

	got, err := links.GetByID(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Amount != 99.99 {
		t.Errorf("amount = %v, want 99.99", got.Amount)
	}
	if got.Currency != "usd" {
		t.Errorf("currency = %q, want usd", got.Currency)
	}
	if got.UserID != 4 {
		t.Errorf("owner = %d, want 4", got.UserID)
	}
	if links.count() != 1 {
		t.Errorf("persisted %d rows, want 1", links.count())
	}
}

func TestCurrencyDefaultsAndNormalization(t *testing.T) {
	svc, _, _ := newTestService()

	link, err := svc.Create(context.Background(), 1, CreateInput{ProductName: "No Currency", Amount: 5}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if link.Currency != "usd" {
		t.Errorf("omitted currency = %q, want usd", link.Currency)
	}

	link, err = svc.Create(context.Background(), 1, CreateInput{ProductName: "Uppercase", Amount: 5, Currency: "EUR"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if link.Currency != "eur" {
		t.Errorf("currency = %q, want eur", link.Currency)
	}
}

func TestCreateIsNotIdempotentWithoutKey(t *testing.T) {
	svc, links, _ := newTestService()
	in := CreateInput{ProductName: "Premium Package", Amount: 99.99, Currency: "usd"}

	first, err := svc.Create(context.Background(), 2, in, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := svc.Create(context.Background(), 2, in, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if first.ID == second.ID {
		t.Error("identical submissions without an idempotency key shared an id")
	}
	if links.count() != 2 {
		t.Errorf("persisted %d rows, want 2", links.count())
	}
}

func TestIdempotencyKeyReplays(t *testing.T) {
	svc, links, _ := newTestService()
	in := CreateInput{ProductName: "Premium Package", Amount: 99.99, Currency: "usd"}

	first, err := svc.Create(context.Background(), 2, in, "double-click-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	replay, err := svc.Create(context.Background(), 2, in, "double-click-1")
	if err != nil {
		t.Fatalf("replayed Create: %v", err)
	}

	if replay.ID != first.ID {
		t.Errorf("replay id = %s, want %s", replay.ID, first.ID)
	}
	if links.count() != 1 {
		t.Errorf("persisted %d rows, want 1", links.count())
	}

	in.Amount = 49.99
	if _, err := svc.Create(context.Background(), 2, in, "double-click-1"); !errors.Is(err, ErrIdempotencyConflict) {
		t.Errorf("key reuse with different payload = %v, want ErrIdempotencyConflict", err)
	}
}

func TestIdempotencyKeyDistinguishesSubCentAmounts(t *testing.T) {
	svc, _, _ := newTestService()

	in := CreateInput{ProductName: "Metered Usage", Amount: 10.004, Currency: "usd"}
	if _, err := svc.Create(context.Background(), 2, in, "metered-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Amounts that differ only beyond two decimals are still different
	// payloads; they must conflict, not silently replay.
	in.Amount = 10.001
	if _, err := svc.Create(context.Background(), 2, in, "metered-1"); !errors.Is(err, ErrIdempotencyConflict) {
		t.Errorf("sub-cent payload change = %v, want ErrIdempotencyConflict", err)
	}
}

func TestIdempotentRetryAfterFailedInsert(t *testing.T) {
	svc, links, _ := newTestService()
	in := CreateInput{ProductName: "Premium Package", Amount: 99.99, Currency: "usd"}

	links.failInserts = 1
	if _, err := svc.Create(context.Background(), 2, in, "retry-1"); err == nil {
		t.Fatal("Create with failing insert returned no error")
	}
	if links.count() != 0 {
		t.Fatalf("failed create persisted %d rows", links.count())
	}

	// The retry the idempotency key exists for: it must complete the
	// create, not fail on a reservation pointing at a missing link.
	link, err := svc.Create(context.Background(), 2, in, "retry-1")
	if err != nil {
		t.Fatalf("retry Create: %v", err)
	}
	if links.count() != 1 {
		t.Errorf("persisted %d rows, want 1", links.count())
	}

	replay, err := svc.Create(context.Background(), 2, in, "retry-1")
	if err != nil {
		t.Fatalf("replay Create: %v", err)
	}
	if replay.ID != link.ID {
		t.Errorf("replay id = %s, want %s", replay.ID, link.ID)
	}
}

func TestResolveFailsWhenAccountLookupFails(t *testing.T) {
	links := newFakeLinkStore()
	provider := &fakeProvider{}
	accounts := &fakeAccounts{err: errors.New("connection reset")}
	svc := NewService(links, newFakeIdemStore(), accounts, provider, "https://pay.enclose.test")

	link, err := svc.Create(context.Background(), 9, CreateInput{ProductName: "Premium Package", Amount: 20, Currency: "usd"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A failed account lookup must stop the checkout; minting the session
	// anyway would charge the payer on the platform account.
	if _, err := svc.Resolve(context.Background(), link.ID); err == nil {
		t.Fatal("Resolve returned no error despite account lookup failure")
	}
	if provider.calls != 0 {
		t.Errorf("provider was called %d times, want 0", provider.calls)
	}
}

func TestResolveWithNoLinkedAccount(t *testing.T) {
	links := newFakeLinkStore()
	provider := &fakeProvider{}
	accounts := &fakeAccounts{err: gorm.ErrRecordNotFound}
	svc := NewService(links, newFakeIdemStore(), accounts, provider, "https://pay.enclose.test")

	link, err := svc.Create(context.Background(), 1, CreateInput{ProductName: "Basic", Amount: 5, Currency: "usd"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	url, err := svc.Resolve(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if url == "" {
		t.Error("Resolve returned empty session url")
	}
	if provider.lastAccount != "" {
		t.Errorf("provider got account %q, want none", provider.lastAccount)
	}
}

func TestResolve(t *testing.T) {
	svc, _, provider := newTestService()

	link, err := svc.Create(context.Background(), 9, CreateInput{ProductName: "Premium Package", Amount: 20, Currency: "gbp"}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	url, err := svc.Resolve(context.Background(), link.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if url != "https://checkout.test/session/"+link.ID {
		t.Errorf("session url = %q", url)
	}
	if provider.lastAccount != "acct_merchant9" {
		t.Errorf("provider got account %q, want acct_merchant9", provider.lastAccount)
	}

	if _, err := svc.Resolve(context.Background(), "missing-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(missing) = %v, want ErrNotFound", err)
	}
}
