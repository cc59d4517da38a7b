package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kioskpos/pos-backend/api/validators"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
)

const ordersRoute = "/api/v1/transactions"

// memStore keeps raw values keyed like the redis client would.
type memStore map[string]string

func (m memStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m[key], _ = value.(string)
	return nil
}

func (m memStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, taken := m[key]; taken {
		return false, nil
	}
	return true, m.Set(ctx, key, value, ttl)
}

func (m memStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m, key)
	}
	return nil
}

func (m memStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

// send runs one request through the middleware as chi would route it.
func send(h http.Handler, method, pattern, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, pattern, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = []string{pattern}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestRouteTTL(t *testing.T) {
	ttl, ok := routeTTL(http.MethodPost, ordersRoute)
	assert.True(t, ok)
	assert.Equal(t, orderIdempotencyTTL, ttl)

	_, ok = routeTTL(http.MethodPost, ordersRoute+"/quote")
	assert.False(t, ok, "quotes are side effect free")
	_, ok = routeTTL(http.MethodGet, ordersRoute)
	assert.False(t, ok)
}

func TestIdempotencyWithoutKeyAlwaysRunsHandler(t *testing.T) {
	store := memStore{}
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for range 2 {
		assert.Equal(t, http.StatusCreated, send(h, http.MethodPost, ordersRoute, "", `{"items":{"Bowl":1}}`).Code)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, store)
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := memStore{}
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	send(h, http.MethodPost, ordersRoute, "retry-me", `{}`)
	send(h, http.MethodPost, ordersRoute, "retry-me", `{}`)
	assert.Equal(t, 2, calls, "a retry after 503 must reach the handler")
	assert.Empty(t, store)
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	store := memStore{}
	body := `{"items":{"Bowl":1}}`
	calls := 0
	var dup *httptest.ResponseRecorder

	var h http.Handler
	h = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		// same key again while the first attempt is still running
		dup = send(h, http.MethodPost, ordersRoute, "k1", body)
		w.WriteHeader(http.StatusCreated)
	}))

	first := send(h, http.MethodPost, ordersRoute, "k1", body)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, 1, calls)
	require.NotNil(t, dup)
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, dup))
}

func TestIdempotencyScopeIncludesTerminal(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, ordersRoute, nil)
	req = req.WithContext(WithTerminalID(req.Context(), "kiosk-2"))
	assert.Equal(t, "kiosk-2|POST|/api/v1/transactions", buildScope(req))
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := memStore{}
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))

	first := send(h, http.MethodPost, ordersRoute, "abc", `{"foo":"bar"}`)
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))

	replay := send(h, http.MethodPost, ordersRoute, "abc", `{"foo":"bar"}`)
	assert.Equal(t, http.StatusAccepted, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"ok":true}`, replay.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsReusedKeyWithNewBody(t *testing.T) {
	h := Idempotency(memStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send(h, http.MethodPost, ordersRoute, "xyz", `{"foo":"bar"}`)
	rec := send(h, http.MethodPost, ordersRoute, "xyz", `{"foo":"diff"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyRejectsOversizedKey(t *testing.T) {
	calls := 0
	h := Idempotency(memStore{}, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))

	rec := send(h, http.MethodPost, ordersRoute, strings.Repeat("k", 129), `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	assert.Zero(t, calls)
}

func TestIdempotencyRejectsOversizedBody(t *testing.T) {
	store := memStore{}
	calls := 0
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))

	body := `{"customer_label":"` + strings.Repeat("a", validators.MaxBodyBytes) + `"}`
	rec := send(h, http.MethodPost, ordersRoute, "big-order", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	assert.Zero(t, calls)
	assert.Empty(t, store, "an oversized body must not reserve the key")

	var payload struct {
		Error struct {
			Details map[string]int `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, validators.MaxBodyBytes, payload.Error.Details["max_bytes"])
}

func TestIdempotencyAcceptsBodyAtLimit(t *testing.T) {
	store := memStore{}
	var seen int
	h := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = len(b)
		w.WriteHeader(http.StatusCreated)
	}))

	body := strings.Repeat(" ", validators.MaxBodyBytes)
	rec := send(h, http.MethodPost, ordersRoute, "edge-order", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, validators.MaxBodyBytes, seen)
	assert.Len(t, store, 1)
}
