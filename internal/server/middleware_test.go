package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/reperio/internal/app"
	"github.com/ternarybob/reperio/internal/common"
)

func newTestServer(secret string) *Server {
	config := common.NewDefaultConfig()
	config.Signing.Secret = secret
	return &Server{
		app: &app.App{
			Config: config,
			Logger: arbor.NewLogger(),
		},
	}
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignedRoute_OpenWithoutSecret(t *testing.T) {
	s := newTestServer("")

	called := false
	handler := s.signedRoute(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/api/continuations", strings.NewReader(`{"job_id":"j"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignedRoute_AcceptsValidSignature(t *testing.T) {
	s := newTestServer("shared-secret")
	body := `{"job_id":"j"}`

	var seenBody string
	handler := s.signedRoute(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		seenBody = string(buf[:n])
	})

	req := httptest.NewRequest(http.MethodPost, "/api/continuations", strings.NewReader(body))
	req.Header.Set(signatureHeader, sign("shared-secret", body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, seenBody, "handler sees the original body after verification")
}

func TestSignedRoute_RejectsBadSignature(t *testing.T) {
	s := newTestServer("shared-secret")
	body := `{"job_id":"j"}`

	handler := s.signedRoute(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on a bad signature")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/continuations", strings.NewReader(body))
	req.Header.Set(signatureHeader, sign("wrong-secret", body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignedRoute_RejectsMissingSignature(t *testing.T) {
	s := newTestServer("shared-secret")

	handler := s.signedRoute(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a signature")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/continuations", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignedRoute_SignatureCoversBody(t *testing.T) {
	s := newTestServer("shared-secret")

	handler := s.signedRoute(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("tampered body must be rejected")
	})

	// Signature computed over a different body than the one sent.
	req := httptest.NewRequest(http.MethodPost, "/api/continuations", strings.NewReader(`{"job_id":"evil"}`))
	req.Header.Set(signatureHeader, sign("shared-secret", `{"job_id":"j"}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSMiddleware_AllowsSignatureHeader(t *testing.T) {
	s := newTestServer("")

	handler := s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), signatureHeader)
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer("")

	handler := s.recoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { handler.ServeHTTP(rec, req) })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
