package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, calls)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := serve(h, "1.1.1.1:1", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = serve(h, "1.1.1.1:1", map[string]string{RequestIDHeader: strings.Repeat("x", 129)})
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	w = serve(h, "1.1.1.1:1", map[string]string{RequestIDHeader: "bad\x01id"})
	assert.NotEqual(t, "bad\x01id", seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestSession(t *testing.T) {
	var seen string
	h := Session(SessionConfig{})(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	t.Run("issued when absent", func(t *testing.T) {
		w := serve(h, "1.1.1.1:1", nil)
		require.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(SessionHeader))

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, SessionCookie, cookies[0].Name)
		assert.Equal(t, seen, cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("header wins", func(t *testing.T) {
		id := "6f1c2a7e-2b8a-4c55-9d0e-1f2a3b4c5d6e"
		serve(h, "1.1.1.1:1", map[string]string{SessionHeader: id})
		assert.Equal(t, id, seen)
	})

	t.Run("cookie", func(t *testing.T) {
		id := "0b8e9c3a-5d4f-4e21-8a7b-6c5d4e3f2a1b"
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, id, seen)
	})

	t.Run("invalid header replaced", func(t *testing.T) {
		serve(h, "1.1.1.1:1", map[string]string{SessionHeader: "not-a-uuid"})
		assert.Len(t, seen, 36)
		assert.NotEqual(t, "not-a-uuid", seen)
	})
}

func TestRecovery(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := serve(h, "1.1.1.1:1", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
	assert.JSONEq(t, `{"code":500,"message":"internal error"}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{
		AllowOrigins:  []string{"https://prodishi.rs"},
		ExposeHeaders: []string{SessionHeader},
		MaxAge:        600,
	})(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		w := serve(h, "1.1.1.1:1", map[string]string{"Origin": "https://PRODISHI.rs"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://prodishi.rs", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, SessionHeader, w.Header().Get("Access-Control-Expose-Headers"))
		assert.Contains(t, w.Header().Values("Vary"), "Origin")
	})

	t.Run("denied origin", func(t *testing.T) {
		w := serve(h, "1.1.1.1:1", map[string]string{"Origin": "https://evil.example"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/cart/quote", nil)
		req.Header.Set("Origin", "https://prodishi.rs")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("wildcard", func(t *testing.T) {
		h := CORS(CORSConfig{AllowOrigins: []string{"*"}})(okHandler())
		w := serve(h, "1.1.1.1:1", map[string]string{"Origin": "https://any.example"})
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("credentials echo origin", func(t *testing.T) {
		h := CORS(CORSConfig{AllowOrigins: []string{"*", "https://prodishi.rs"}, AllowCredentials: true})(okHandler())
		w := serve(h, "1.1.1.1:1", map[string]string{"Origin": "https://prodishi.rs"})
		assert.Equal(t, "https://prodishi.rs", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})
}

func TestInjectLoggerAndLogRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	lg := zap.New(core)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Inside")
		w.WriteHeader(http.StatusAccepted)
	})

	h := Wrap(mux,
		RequestID(),
		Session(SessionConfig{}),
		InjectLogger(lg),
		LogRequests(),
	)
	req := httptest.NewRequest(http.MethodGet, "/api/items/7", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	inside := logs.FilterMessage("Inside").All()
	require.Len(t, inside, 1)
	assert.Equal(t, "req-1", inside[0].ContextMap()["request_id"])
	assert.NotEmpty(t, inside[0].ContextMap()["session_id"])

	reqs := logs.FilterMessage("Request").All()
	require.Len(t, reqs, 1)
	fields := reqs[0].ContextMap()
	assert.Equal(t, "GET /api/items/{id}", fields["route"])
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
}
