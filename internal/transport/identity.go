package transport

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rpggio/stockcount/internal/domain/audit"
)

// Identity headers.
const (
	HeaderUserID    = "X-User-Id"
	HeaderSessionID = "Mcp-Session-Id"
)

// IdentityMiddleware stores the caller identity as audit metadata in the
// request context. Requests without a session header get a fresh session id,
// echoed back in the response header. Run it after middleware.RealIP so
// RemoteAddr holds the client address.
func IdentityMiddleware(defaultUser string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			meta := audit.Metadata{
				UserID:    r.Header.Get(HeaderUserID),
				SessionID: r.Header.Get(HeaderSessionID),
				IPAddress: r.RemoteAddr,
				UserAgent: r.UserAgent(),
			}
			if meta.UserID == "" {
				meta.UserID = defaultUser
			}
			if meta.SessionID == "" {
				meta.SessionID = uuid.NewString()
			}
			w.Header().Set(HeaderSessionID, meta.SessionID)

			ctx := audit.ContextWithMetadata(r.Context(), meta)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
