package order

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodishi/dishi-shop/internal/domain/cart"
	"github.com/prodishi/dishi-shop/internal/domain/pricing"
	"github.com/prodishi/dishi-shop/internal/domain/product"
)

// --- Mock implementations ---

type mockSessions struct {
	mu       sync.Mutex
	contacts map[string]Contact
	tokens   map[string]string
	err      error
}

func newMockSessions() *mockSessions {
	return &mockSessions{contacts: map[string]Contact{}, tokens: map[string]string{}}
}

func (m *mockSessions) Contact(_ context.Context, session string) (Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contacts[session], m.err
}

func (m *mockSessions) SaveContact(_ context.Context, session string, c Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.contacts[session] = c
	return nil
}

func (m *mockSessions) Token(_ context.Context, session string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[session], m.err
}

func (m *mockSessions) SaveToken(_ context.Context, session, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tokens[session] = token
	return nil
}

func (m *mockSessions) ClearToken(_ context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, session)
	return m.err
}

type mockJournal struct {
	records []*Record
	exists  map[string]bool
	err     error
}

func (m *mockJournal) Record(_ context.Context, r *Record) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *mockJournal) Exists(_ context.Context, token string) (bool, error) {
	for _, r := range m.records {
		if r.Token == token {
			return true, nil
		}
	}
	return m.exists[token], nil
}

type mockSubmitter struct {
	payloads []*Payload
	err      error
}

func (m *mockSubmitter) Submit(_ context.Context, p *Payload) error {
	m.payloads = append(m.payloads, p)
	return m.err
}

// gatedSubmitter holds every Submit call until release is closed.
type gatedSubmitter struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func newGatedSubmitter() *gatedSubmitter {
	return &gatedSubmitter{entered: make(chan struct{}, 2), release: make(chan struct{})}
}

func (g *gatedSubmitter) Submit(_ context.Context, _ *Payload) error {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.entered <- struct{}{}
	<-g.release
	return nil
}

func (g *gatedSubmitter) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// --- Helpers ---

func testSummary() *cart.Summary {
	return &cart.Summary{
		Lines: []pricing.Line{
			{ProductID: product.Starter, ProductTitle: "Starter Kit", VariantLabel: "4 dilatatora + 30 stikera", Quantity: 1},
			{ProductID: product.Refill, ProductTitle: "Dopuna stikera", VariantLabel: "30 stikera", Quantity: 2},
		},
		Quantity:      3,
		ListSubtotal:  2390,
		NetSubtotal:   2151,
		Discount:      239,
		Shipping:      350,
		Total:         2501,
		Coupon:        "PRO10",
		Freebies:      0,
		FreebiesValue: 0,
		Items: []cart.Item{
			{SKU: "ST-30", Title: "Starter Kit – 4 dilatatora + 30 stikera", Quantity: 1, UnitPrice: 1431, LineTotal: 1431},
			{SKU: "RF-30", Title: "Dopuna stikera – 30 stikera", Quantity: 2, UnitPrice: 360, LineTotal: 720},
		},
		Title: "Starter Kit — 4 dilatatora + 30 stikera × 1 + Dopuna stikera — 30 stikera × 2",
	}
}

type fixture struct {
	sessions  *mockSessions
	journal   *mockJournal
	submitter *mockSubmitter
	svc       *Service
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		sessions:  newMockSessions(),
		journal:   &mockJournal{exists: map[string]bool{}},
		submitter: &mockSubmitter{},
	}
	n := 0
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opts = append([]Option{
		WithTokenGenerator(func() string {
			n++
			return "tok-" + strconv.Itoa(n)
		}),
		WithClock(func() time.Time { return now }),
	}, opts...)
	f.svc = NewService(f.sessions, f.journal, f.submitter, opts...)
	return f
}

var origin = Origin{Source: "/", UTM: "?utm_source=ig"}

// --- Tests ---

func TestService_Open(t *testing.T) {
	f := newFixture()
	f.sessions.contacts["s1"] = Contact{Email: "ana@example.com"}

	co, err := f.svc.Open(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", co.Contact.Email)
	assert.Equal(t, "tok-1", co.Token)
	assert.Equal(t, "tok-1", f.sessions.tokens["s1"])

	// Every open starts a fresh token.
	co, err = f.svc.Open(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", co.Token)
}

func TestService_Open_StoreError(t *testing.T) {
	f := newFixture()
	f.sessions.err = errors.New("boom")

	_, err := f.svc.Open(context.Background(), "s1")
	require.Error(t, err)
}

func TestService_StartDraft(t *testing.T) {
	f := newFixture()

	token, err := f.svc.StartDraft(context.Background(), "s1", "ana@example.com", true, testSummary(), origin)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	require.Len(t, f.submitter.payloads, 1)
	p := f.submitter.payloads[0]
	assert.Equal(t, KindStart, p.Type)
	assert.Equal(t, "tok-1", p.Token)
	assert.Equal(t, "ana@example.com", p.Email)
	assert.True(t, p.ConsentAbandoned)
	assert.Equal(t, int64(2151), p.Subtotal)
	assert.Equal(t, int64(239), p.Discount)
	assert.Equal(t, int64(2501), p.Total)
	assert.Equal(t, "PRO10", p.Coupon)
	assert.Len(t, p.Items, 2)
	assert.Equal(t, "?utm_source=ig", p.UTM)
}

func TestService_StartDraft_ReusesToken(t *testing.T) {
	f := newFixture()
	f.sessions.tokens["s1"] = "existing"

	token, err := f.svc.StartDraft(context.Background(), "s1", "ana@example.com", true, testSummary(), origin)
	require.NoError(t, err)
	assert.Equal(t, "existing", token)
}

func TestService_StartDraft_InvalidEmail(t *testing.T) {
	f := newFixture()

	token, err := f.svc.StartDraft(context.Background(), "s1", "ana@", true, testSummary(), origin)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Empty(t, f.submitter.payloads)
	assert.Empty(t, f.sessions.tokens)
}

func TestService_StartDraft_SubmitErrorIgnored(t *testing.T) {
	f := newFixture()
	f.submitter.err = errors.New("network down")

	token, err := f.svc.StartDraft(context.Background(), "s1", "ana@example.com", true, testSummary(), origin)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestService_StartDraft_DemoMode(t *testing.T) {
	f := newFixture(WithDemoMode())

	token, err := f.svc.StartDraft(context.Background(), "s1", "ana@example.com", true, testSummary(), origin)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Empty(t, f.submitter.payloads)
}

func TestService_Complete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Open(ctx, "s1")
	require.NoError(t, err)

	form := validForm()
	form.Note = "Zvonite dvaput"
	receipt, err := f.svc.Complete(ctx, "s1", form, testSummary(), origin)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", receipt.Token)
	assert.Equal(t, SuccessMessage, receipt.Message)

	require.Len(t, f.submitter.payloads, 1)
	p := f.submitter.payloads[0]
	assert.Equal(t, KindComplete, p.Type)
	assert.Equal(t, "+381641234567", p.Phone)
	assert.Equal(t, "Zvonite dvaput", p.Note)
	assert.Equal(t, int64(2151), p.Price)
	assert.Equal(t, 3, p.Qty)
	assert.Equal(t, int64(350), p.Shipping)
	assert.Equal(t, int64(350), p.ShippingCost)
	assert.Equal(t, 1, p.StarterQty)
	assert.Equal(t, 2, p.RefillQty)
	assert.True(t, p.ConsentShipping)

	// Contact is remembered with the normalized phone, token is cleared.
	assert.Equal(t, "+381641234567", f.sessions.contacts["s1"].Phone)
	assert.NotContains(t, f.sessions.tokens, "s1")

	require.Len(t, f.journal.records, 1)
	rec := f.journal.records[0]
	assert.Equal(t, "tok-1", rec.Token)
	assert.Equal(t, "s1", rec.Session)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), rec.CreatedAt)
}

func TestService_Complete_ValidationError(t *testing.T) {
	f := newFixture()

	form := validForm()
	form.City = ""
	_, err := f.svc.Complete(context.Background(), "s1", form, testSummary(), origin)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "city", ve.Field)
	assert.Empty(t, f.submitter.payloads)
	assert.Empty(t, f.sessions.contacts)
}

func TestService_Complete_EmptyCart(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Complete(context.Background(), "s1", validForm(), &cart.Summary{}, origin)
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, f.submitter.payloads)
}

func TestService_Complete_RejectedKeepsToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.submitter.err = &RejectedError{Reason: "Nema na stanju."}

	_, err := f.svc.Complete(ctx, "s1", validForm(), testSummary(), origin)
	var re *RejectedError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "Nema na stanju.", re.Reason)
	assert.Equal(t, "tok-1", f.sessions.tokens["s1"])
	assert.Empty(t, f.journal.records)

	// A retry reuses the same token.
	f.submitter.err = nil
	receipt, err := f.svc.Complete(ctx, "s1", validForm(), testSummary(), origin)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", receipt.Token)
	require.Len(t, f.submitter.payloads, 2)
	assert.Equal(t, f.submitter.payloads[0].Token, f.submitter.payloads[1].Token)
}

func TestService_Complete_Duplicate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.sessions.tokens["s1"] = "done"
	f.journal.exists["done"] = true
	f.svc.Preload([]string{"done"})

	_, err := f.svc.Complete(ctx, "s1", validForm(), testSummary(), origin)
	require.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.Empty(t, f.submitter.payloads)
}

func TestService_Complete_ConcurrentSameToken(t *testing.T) {
	sessions := newMockSessions()
	sessions.tokens["s1"] = "tok-1"
	gate := newGatedSubmitter()
	svc := NewService(sessions, &mockJournal{exists: map[string]bool{}}, gate)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := svc.Complete(ctx, "s1", validForm(), testSummary(), origin)
		first <- err
	}()
	<-gate.entered

	// A double-click while the first delivery is still in progress.
	_, err := svc.Complete(ctx, "s1", validForm(), testSummary(), origin)
	require.ErrorIs(t, err, ErrDuplicateSubmission)

	close(gate.release)
	require.NoError(t, <-first)
	assert.Equal(t, 1, gate.count())

	// Completed orders stay rejected once the session is handed the same token.
	sessions.mu.Lock()
	sessions.tokens["s1"] = "tok-1"
	sessions.mu.Unlock()
	_, err = svc.Complete(ctx, "s1", validForm(), testSummary(), origin)
	require.ErrorIs(t, err, ErrDuplicateSubmission)
	assert.Equal(t, 1, gate.count())
}

func TestService_Complete_FailedSubmitReleasesToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.submitter.err = errors.New("connection reset")

	_, err := f.svc.Complete(ctx, "s1", validForm(), testSummary(), origin)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicateSubmission)
	assert.Empty(t, f.svc.inflight)

	f.submitter.err = nil
	receipt, err := f.svc.Complete(ctx, "s1", validForm(), testSummary(), origin)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", receipt.Token)
}

func TestService_Complete_BloomFalsePositive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.sessions.tokens["s1"] = "maybe"
	f.svc.Preload([]string{"maybe"})

	// Filter hit but the journal has no such order.
	_, err := f.svc.Complete(ctx, "s1", validForm(), testSummary(), origin)
	require.NoError(t, err)
}

func TestService_Complete_JournalErrorDoesNotFail(t *testing.T) {
	f := newFixture()
	f.journal.err = errors.New("db down")

	receipt, err := f.svc.Complete(context.Background(), "s1", validForm(), testSummary(), origin)
	require.NoError(t, err)
	assert.Equal(t, SuccessMessage, receipt.Message)
}

func TestService_Complete_DemoMode(t *testing.T) {
	f := newFixture(WithDemoMode())

	receipt, err := f.svc.Complete(context.Background(), "s1", validForm(), testSummary(), origin)
	require.NoError(t, err)
	assert.Equal(t, DemoMessage, receipt.Message)
	assert.Len(t, f.submitter.payloads, 1)
	assert.Empty(t, f.journal.records)
	assert.Equal(t, "tok-1", f.sessions.tokens["s1"])
}

func TestRejectedError_DefaultReason(t *testing.T) {
	assert.Equal(t, DefaultRejectReason, (&RejectedError{}).Error())
	assert.Equal(t, "x", (&RejectedError{Reason: "x"}).Error())
}
