package mcp

import (
	"context"

	"github.com/google/uuid"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/stockcount/internal/domain/audit"
)

// Identity headers read from HTTP requests.
const (
	HeaderUserID    = "X-User-Id"
	HeaderSessionID = "Mcp-Session-Id"
	HeaderForwarded = "X-Forwarded-For"
)

// identityMiddleware resolves the caller identity into audit metadata.
// HTTP requests carry it in headers; stdio callers may pass user_id and
// session_id in _meta. defaultUser applies when neither names a user.
func identityMiddleware(defaultUser string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if method != "tools/call" {
				return next(ctx, method, req)
			}

			meta := audit.MetadataFromContext(ctx)
			if extra := req.GetExtra(); extra != nil && extra.Header != nil {
				h := extra.Header
				meta.UserID = first(h.Get(HeaderUserID), meta.UserID)
				meta.SessionID = first(h.Get(HeaderSessionID), meta.SessionID)
				meta.UserAgent = first(h.Get("User-Agent"), meta.UserAgent)
				meta.IPAddress = first(h.Get(HeaderForwarded), meta.IPAddress)
			}

			// Some requests have nil params behind a non-nil interface.
			if params := req.GetParams(); params != nil {
				func() {
					defer func() { recover() }()
					if m := params.GetMeta(); m != nil {
						if v, ok := m["user_id"].(string); ok && meta.UserID == "" {
							meta.UserID = v
						}
						if v, ok := m["session_id"].(string); ok && meta.SessionID == "" {
							meta.SessionID = v
						}
					}
				}()
			}

			if meta.UserID == "" {
				meta.UserID = defaultUser
			}
			if meta.SessionID == "" {
				meta.SessionID = safeSessionID(req)
			}
			if meta.SessionID == "" {
				meta.SessionID = uuid.NewString()
			}

			return next(audit.ContextWithMetadata(ctx, meta), method, req)
		}
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
