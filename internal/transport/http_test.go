package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/stretchr/testify/require"
)

type testHandler struct {
	method string
	meta   audit.Metadata
	err    error
}

func (h *testHandler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	h.method = method
	h.meta = audit.MetadataFromContext(ctx)
	if h.err != nil {
		return nil, h.err
	}
	return map[string]string{"user": h.meta.UserID}, nil
}

func post(t *testing.T, url, body string, headers map[string]string) Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHTTPServer_RPC(t *testing.T) {
	handler := &testHandler{}
	server := httptest.NewServer(NewServer(handler, "anonymous", nil))
	t.Cleanup(server.Close)

	resp := post(t, server.URL+"/rpc", `{"jsonrpc":"2.0","method":"list_items","id":1}`, map[string]string{
		HeaderUserID:      "ana",
		HeaderSessionID:   "sess1",
		"X-Forwarded-For": "10.0.0.7",
	})
	require.Nil(t, resp.Error)
	require.Equal(t, "list_items", handler.method)
	require.Equal(t, "ana", handler.meta.UserID)
	require.Equal(t, "sess1", handler.meta.SessionID)
	require.Equal(t, "10.0.0.7", handler.meta.IPAddress)
}

func TestHTTPServer_RPCErrors(t *testing.T) {
	handler := &testHandler{err: codedTestError{code: "NO_COUNT_IN_PROGRESS"}}
	server := httptest.NewServer(NewServer(handler, "anonymous", nil))
	t.Cleanup(server.Close)

	resp := post(t, server.URL+"/rpc", `{"jsonrpc":"2.0","method":"delete_item","params":{"index":0},"id":2}`, nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrDomain, resp.Error.Code)
	require.Equal(t, "anonymous", handler.meta.UserID)

	resp = post(t, server.URL+"/rpc", `{"id":3}`, nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, ErrInvalidReq, resp.Error.Code)
}

func TestHTTPServer_RPCBodyLimit(t *testing.T) {
	handler := &testHandler{}
	router := NewServer(handler, "anonymous", nil)

	body := `{"jsonrpc":"2.0","method":"add_item","id":4,"params":{"item_name":"` +
		strings.Repeat("x", MaxRequestBytes) + `"}}`
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var out Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.NotNil(t, out.Error)
	require.Equal(t, ErrInvalidReq, out.Error.Code)
	require.Equal(t, "request body too large", out.Error.Message)
	require.Empty(t, handler.method)
}

func TestHTTPServer_Health(t *testing.T) {
	handler := &testHandler{}
	server := httptest.NewServer(NewServer(handler, "anonymous", nil))
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
