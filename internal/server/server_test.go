package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MalithGihan/codediagram-service/internal/credential"
	"github.com/MalithGihan/codediagram-service/internal/diagram"
	"github.com/MalithGihan/codediagram-service/internal/store"
)

type fakeCompleter struct {
	reply string
	err   error
	keys  []string
}

func (f *fakeCompleter) Model() string { return "fake-model" }

func (f *fakeCompleter) Complete(_ context.Context, apiKey, _, _ string) (string, error) {
	f.keys = append(f.keys, apiKey)
	return f.reply, f.err
}

type fakePinger struct{ up bool }

func (p fakePinger) Ping(context.Context) bool { return p.up }
func (p fakePinger) Endpoint() string          { return "http://model.test/v1/chat/completions" }

type harness struct {
	srv   *httptest.Server
	chat  *fakeCompleter
	creds *credential.Manager
	store *store.Memory
}

func newHarness(t *testing.T, seedKey string) *harness {
	t.Helper()
	s := store.NewMemory()
	if seedKey != "" {
		require.NoError(t, s.Store(context.Background(), credential.DefaultKeyName, seedKey))
	}
	creds := credential.NewManager(s, "", nil)
	chat := &fakeCompleter{reply: "flowchart TD\n A-->B"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen, err := diagram.New(diagram.Config{Chat: chat, Credentials: creds, Logger: logger})
	require.NoError(t, err)

	api := New(Config{Generator: gen, Credentials: creds, Pinger: fakePinger{up: true}, Logger: logger})
	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, chat: chat, creds: creds, store: s}
}

func (h *harness) do(t *testing.T, method, path, contentType, body string, header map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	h := newHarness(t, "")
	resp, body := h.do(t, http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
}

func TestPanelServed(t *testing.T) {
	h := newHarness(t, "")
	resp, err := http.Get(h.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(b), "mermaid.min.js")
	assert.Contains(t, string(b), "/api/diagrams")
}

func TestGenerateJSON(t *testing.T) {
	h := newHarness(t, "sk-stored")
	resp, body := h.do(t, http.MethodPost, "/api/diagrams", "application/json",
		`{"source":"class A {}","name":"a.ts"}`, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "flowchart TD\n A-->B", body["diagram"])
	assert.EqualValues(t, 1, body["attempts"])
	assert.Equal(t, "fake-model", body["model"])
	assert.Equal(t, []string{"sk-stored"}, h.chat.keys)
}

func TestGeneratePlainText(t *testing.T) {
	h := newHarness(t, "sk-stored")
	resp, body := h.do(t, http.MethodPost, "/api/diagrams?name=main.go", "text/plain", "package main", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "flowchart TD\n A-->B", body["diagram"])
}

func TestGenerateRejectsEmptySource(t *testing.T) {
	h := newHarness(t, "sk-stored")
	resp, body := h.do(t, http.MethodPost, "/api/diagrams", "application/json", `{"source":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "source is required", body["error"])

	resp, _ = h.do(t, http.MethodPost, "/api/diagrams", "application/json", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, h.chat.keys)
}

func TestGenerateWithoutKeyReturnsFallback(t *testing.T) {
	h := newHarness(t, "")
	resp, body := h.do(t, http.MethodPost, "/api/diagrams", "application/json", `{"source":"x"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body["error"], "not configured")
	assert.Contains(t, body["diagram"], "flowchart TD")
	assert.Contains(t, body["diagram"], "API key is not configured")
	assert.Empty(t, h.chat.keys, "no request may be issued without a key")
}

func TestGenerateHeaderKeyIsPersisted(t *testing.T) {
	h := newHarness(t, "")
	resp, _ := h.do(t, http.MethodPost, "/api/diagrams", "application/json", `{"source":"x"}`,
		map[string]string{APIKeyHeader: "sk-header"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := h.store.Get(context.Background(), credential.DefaultKeyName)
	require.NoError(t, err)
	assert.Equal(t, "sk-header", stored)
}

func TestGenerateInvalidOutputIsBadGateway(t *testing.T) {
	h := newHarness(t, "sk-stored")
	h.chat.reply = "not a diagram"
	resp, body := h.do(t, http.MethodPost, "/api/diagrams", "application/json", `{"source":"x"}`, nil)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body["diagram"], "Model returned an invalid diagram")
	assert.Len(t, h.chat.keys, diagram.DefaultMaxAttempts)
}

func TestCredentialLifecycle(t *testing.T) {
	h := newHarness(t, "")

	_, body := h.do(t, http.MethodGet, "/api/credential", "", "", nil)
	assert.Equal(t, false, body["configured"])
	assert.Equal(t, credential.DefaultKeyName, body["key_name"])

	resp, _ := h.do(t, http.MethodPut, "/api/credential", "application/json", `{"api_key":"sk-new"}`, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = h.do(t, http.MethodGet, "/api/credential", "", "", nil)
	assert.Equal(t, true, body["configured"])

	resp, body = h.do(t, http.MethodDelete, "/api/credential", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "API Key has been cleared successfully.", body["message"])

	_, body = h.do(t, http.MethodGet, "/api/credential", "", "", nil)
	assert.Equal(t, false, body["configured"])
}

func TestCredentialUpdateRejectsEmpty(t *testing.T) {
	h := newHarness(t, "")
	resp, _ := h.do(t, http.MethodPut, "/api/credential", "application/json", `{"api_key":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPing(t *testing.T) {
	h := newHarness(t, "")
	_, body := h.do(t, http.MethodGet, "/api/ping", "", "", nil)
	assert.Equal(t, true, body["api_reachable"])
	assert.Equal(t, false, body["credential_configured"])
	assert.Contains(t, body["note"], "not configured")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusFor(diagram.ErrConfiguration))
	assert.Equal(t, http.StatusBadGateway, statusFor(&diagram.GenerationError{Attempts: 3, Err: diagram.ErrTransport}))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(&diagram.GenerationError{Err: context.DeadlineExceeded}))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(&diagram.GenerationError{
		Attempts: 3,
		Err:      fmt.Errorf("%w: %w", diagram.ErrTransport, context.DeadlineExceeded),
	}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

var _ Generator = (*diagram.Generator)(nil)
