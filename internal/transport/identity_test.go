package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rpggio/stockcount/internal/domain/audit"
	"github.com/stretchr/testify/require"
)

func TestIdentityMiddleware(t *testing.T) {
	var got audit.Metadata
	handler := IdentityMiddleware("anonymous")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = audit.MetadataFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderUserID, "ana")
	req.Header.Set(HeaderSessionID, "sess1")
	req.Header.Set("User-Agent", "scanner/1.0")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ana", got.UserID)
	require.Equal(t, "sess1", got.SessionID)
	require.Equal(t, "scanner/1.0", got.UserAgent)
	require.Equal(t, req.RemoteAddr, got.IPAddress)
	require.Equal(t, "sess1", rec.Header().Get(HeaderSessionID))
}

func TestIdentityMiddleware_Defaults(t *testing.T) {
	var got audit.Metadata
	handler := IdentityMiddleware("anonymous")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = audit.MetadataFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "anonymous", got.UserID)
	require.NotEmpty(t, got.SessionID)
	require.Equal(t, got.SessionID, rec.Header().Get(HeaderSessionID))
}
