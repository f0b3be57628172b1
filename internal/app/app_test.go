package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

const testAdmin = "operator"

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.Data = t.TempDir()
	cfg.Paths.Logs = t.TempDir()
	cfg.Paths.Backups = t.TempDir()
	cfg.Newsletter.AdminToken = testAdmin

	a, err := New(zap.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Shutdown()
		goleak.VerifyNone(t)
	})
	return a
}

func call(a *App, method, target string, body interface{}, admin bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdmin)
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestEndToEnd(t *testing.T) {
	a := newTestApp(t)

	w := call(a, http.MethodPost, "/api/v1/newsletter/subscribe", map[string]string{"email": "hornet@pharloom.example"}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sub struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	require.Len(t, sub.Token, 32)

	w = call(a, http.MethodGet, "/api/v1/newsletter/confirm?token="+sub.Token, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Subscription confirmed"}`, w.Body.String())

	w = call(a, http.MethodGet, "/api/v1/newsletter/confirm?token="+sub.Token, nil, false)
	assert.JSONEq(t, `{"message":"Already subscribed"}`, w.Body.String())

	w = call(a, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending_store":true`)

	w = call(a, http.MethodGet, "/health/cron", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), JobCleanupExpiredTokens)
	assert.Contains(t, w.Body.String(), JobBackupSubscribers)

	w = call(a, http.MethodPost, "/api/v1/newsletter/maintenance/backup", nil, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"count":1`)

	assert.Equal(t, http.StatusUnauthorized, call(a, http.MethodGet, "/api/v1/newsletter/subscribers", nil, false).Code)
	assert.Equal(t, http.StatusNotFound, call(a, http.MethodGet, "/nowhere", nil, false).Code)
	assert.JSONEq(t, `{"data":"pong"}`, call(a, http.MethodGet, "/ping", nil, false).Body.String())
}

func TestPublicRoutesAreRateLimited(t *testing.T) {
	a := newTestApp(t)
	limit := a.cfg.RateLimit.Max
	for i := 0; i < limit; i++ {
		w := call(a, http.MethodGet, "/api/v1/newsletter/confirm?token=bad", nil, false)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := call(a, http.MethodGet, "/api/v1/newsletter/confirm?token=bad", nil, false)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	assert.Equal(t, http.StatusOK, call(a, http.MethodGet, "/api/v1/newsletter/count", nil, false).Code, "reads are not limited")
}

func TestMatchOriginPattern(t *testing.T) {
	assert.True(t, matchOriginPattern("silksong.example", "silksong.example"))
	assert.True(t, matchOriginPattern("https://silksong.example", "silksong.example"))
	assert.True(t, matchOriginPattern("*.silksong.example", "www.silksong.example"))
	assert.True(t, matchOriginPattern("localhost:*", "localhost:5173"))
	assert.False(t, matchOriginPattern("*.silksong.example", "evil.example"))
}

func TestParseTimezoneLocation(t *testing.T) {
	loc, err := parseTimezoneLocation("+08:00")
	require.NoError(t, err)
	assert.Equal(t, "+08:00", loc.String())

	_, err = parseTimezoneLocation("Mars/Olympus")
	assert.Error(t, err)
}
