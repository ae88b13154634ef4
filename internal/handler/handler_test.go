package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodishi/dishi-shop/internal/catalog"
	"github.com/prodishi/dishi-shop/internal/domain/cart"
	"github.com/prodishi/dishi-shop/internal/domain/order"
	"github.com/prodishi/dishi-shop/internal/storage/memory"
	"github.com/prodishi/dishi-shop/pkg/httpmiddleware"
)

type mockSubmitter struct {
	mu       sync.Mutex
	payloads []*order.Payload
	err      error
}

func (m *mockSubmitter) Submit(_ context.Context, p *order.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, p)
	return m.err
}

func (m *mockSubmitter) sent() []*order.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payloads
}

type fixture struct {
	mux       *http.ServeMux
	submitter *mockSubmitter
	journal   *memory.Journal
}

func newFixture(t *testing.T, opts ...order.Option) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	f := &fixture{
		mux:       http.NewServeMux(),
		submitter: &mockSubmitter{},
		journal:   memory.NewJournal(),
	}
	opts = append([]order.Option{order.WithTokenGenerator(func() string { return "tok-1" })}, opts...)
	orders := order.NewService(memory.NewSessionStore(), f.journal, f.submitter, opts...)
	h := NewHandler(cat.Products, cat.Coupons, cart.NewAggregator(cat.Calculator()), orders)
	h.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) (int, map[string]any) {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	r = r.WithContext(httpmiddleware.WithSession(r.Context(), "session-1"))
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, r)

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

const validForm = `"email":"ana@example.rs","phone":"064 123 4567","firstName":"Ana",` +
	`"lastName":"Petrović","address":"Bulevar 12","postalCode":"11000","city":"Beograd",` +
	`"consentShipping":true`

func TestListProducts(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var products []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
	require.Len(t, products, 2)
	assert.Equal(t, "starter", products[0]["id"])
	assert.Equal(t, "refill", products[1]["id"])
	assert.EqualValues(t, 350, products[0]["shippingFlat"])
}

func TestDefaultCart(t *testing.T) {
	tests := []struct {
		name   string
		target string
		coupon string
		total  float64
	}{
		{"plain", "/api/cart", "", 1940},
		{"coupon link", "/api/cart?coupon=pro10", "PRO10", 1781},
		{"kupon link", "/api/cart?kupon=Pro10", "PRO10", 1781},
		{"unknown coupon ignored", "/api/cart?coupon=NOPE", "", 1940},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			code, body := f.do(t, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, tt.coupon, body["coupon"])
			assert.EqualValues(t, tt.total, body["total"])
			assert.EqualValues(t, 1, body["qty"])
		})
	}
}

func TestQuoteCart(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodPost, "/api/cart/quote",
		`{"lines":[{"productId":"starter","qty":1},{"productId":"refill","variantId":"refill-30","qty":2}],"coupon":""}`)

	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2390, body["netSubtotal"])
	assert.EqualValues(t, 350, body["shipping"])
	assert.EqualValues(t, 2740, body["total"])
	assert.EqualValues(t, 610, body["amountUntilFreeShipping"])
	assert.Len(t, body["lines"], 2)
	assert.Len(t, body["items"], 2)

	display := body["display"].(map[string]any)
	assert.Equal(t, "2.740 RSD", display["total"])
}

func TestQuoteCart_EmptyBodyPricesDefault(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodPost, "/api/cart/quote", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1940, body["total"])
}

func TestQuoteCart_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"lines":`, http.StatusBadRequest},
		{"unknown product", `{"lines":[{"productId":"ghost","qty":1}]}`, http.StatusUnprocessableEntity},
		{"unknown variant", `{"lines":[{"productId":"starter","variantId":"x","qty":1}]}`, http.StatusUnprocessableEntity},
		{"duplicate line", `{"lines":[{"productId":"refill","qty":1},{"productId":"refill","qty":2}]}`, http.StatusUnprocessableEntity},
		{"quantity above cap", `{"lines":[{"productId":"refill","qty":1000}]}`, http.StatusUnprocessableEntity},
		{"overflowing quantity", `{"lines":[{"productId":"refill","qty":461168601842738790}]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			code, body := f.do(t, http.MethodPost, "/api/cart/quote", tt.body)
			assert.Equal(t, tt.code, code)
			assert.EqualValues(t, tt.code, body["code"])
		})
	}
}

func TestQuoteCart_MaxQuantity(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodPost, "/api/cart/quote", `{"lines":[{"productId":"refill","qty":999}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 399600, body["netSubtotal"])
	assert.EqualValues(t, 0, body["shipping"])

	code, body = f.do(t, http.MethodPost, "/api/checkout/complete",
		`{`+validForm+`,"lines":[{"productId":"refill","qty":1000}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "qty", body["field"])
	assert.Empty(t, f.submitter.sent())
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/coupon", `{"code":" pro10 "}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PRO10", body["code"])

	code, body = f.do(t, http.MethodPost, "/api/coupon", `{"code":"FAKE"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "Kupon nije važeći.", body["message"])

	code, body = f.do(t, http.MethodPost, "/api/coupon", `{"code":""}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "", body["code"])
}

func TestCheckoutFlow(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/checkout", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "tok-1", body["token"])

	code, body = f.do(t, http.MethodPost, "/api/checkout/start",
		`{"email":"ana@example.rs","consentAbandoned":true,"source":"/","utm":"utm_source=ig"}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "tok-1", body["token"])

	code, body = f.do(t, http.MethodPost, "/api/checkout/complete",
		`{`+validForm+`,"note":"Zvoniti dva puta","coupon":"PRO10",`+
			`"lines":[{"productId":"starter","qty":1},{"productId":"refill","qty":2}]}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "tok-1", body["token"])
	assert.Equal(t, order.SuccessMessage, body["message"])

	sent := f.submitter.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, order.KindStart, sent[0].Type)
	assert.Equal(t, "utm_source=ig", sent[0].UTM)
	assert.Equal(t, order.KindComplete, sent[1].Type)
	assert.Equal(t, "+381641234567", sent[1].Phone)
	assert.Equal(t, "PRO10", sent[1].Coupon)
	assert.Len(t, f.journal.Records(), 1)

	code, body = f.do(t, http.MethodGet, "/api/checkout", "")
	require.Equal(t, http.StatusOK, code)
	contact := body["contact"].(map[string]any)
	assert.Equal(t, "ana@example.rs", contact["email"])
	assert.Equal(t, "+381641234567", contact["phone"])
}

func TestStartCheckout_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodPost, "/api/checkout/start", `{"email":"ana"}`)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "", body["token"])
	assert.Empty(t, f.submitter.sent())
}

func TestCompleteCheckout_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		submitErr error
		code      int
		field     string
		message   string
	}{
		{
			name:    "validation",
			body:    `{"email":"ana@example.rs"}`,
			code:    http.StatusUnprocessableEntity,
			field:   "firstName",
			message: "Unesite ime.",
		},
		{
			name: "empty cart",
			body: `{` + validForm + `,"lines":[{"productId":"starter","qty":0}]}`,
			code: http.StatusUnprocessableEntity,
		},
		{
			name:      "rejected",
			body:      `{` + validForm + `}`,
			submitErr: &order.RejectedError{Reason: "Sheet locked"},
			code:      http.StatusBadGateway,
			message:   "Sheet locked",
		},
		{
			name:      "transport failure",
			body:      `{` + validForm + `}`,
			submitErr: context.DeadlineExceeded,
			code:      http.StatusInternalServerError,
			message:   order.FallbackMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.submitter.err = tt.submitErr
			code, body := f.do(t, http.MethodPost, "/api/checkout/complete", tt.body)
			assert.Equal(t, tt.code, code)
			if tt.field != "" {
				assert.Equal(t, tt.field, body["field"])
			}
			if tt.message != "" {
				assert.Equal(t, tt.message, body["message"])
			}
			assert.Empty(t, f.journal.Records())
		})
	}
}

func TestCompleteCheckout_Demo(t *testing.T) {
	f := newFixture(t, order.WithDemoMode())
	code, body := f.do(t, http.MethodPost, "/api/checkout/complete", `{`+validForm+`}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, order.DemoMessage, body["message"])
	assert.Empty(t, f.journal.Records())
}
