package audit

import "context"

type metadataKey struct{}

const (
	defaultUserID    = "system"
	defaultSessionID = "SYSTEM"
	defaultIPAddress = "unknown"
	defaultUserAgent = "unknown"
)

// ContextWithMetadata attaches the caller identity used for audit entries.
func ContextWithMetadata(ctx context.Context, meta Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, meta)
}

// MetadataFromContext returns the identity attached to ctx, if any.
func MetadataFromContext(ctx context.Context) Metadata {
	if ctx == nil {
		return Metadata{}
	}
	meta, _ := ctx.Value(metadataKey{}).(Metadata)
	return meta
}

// resolve layers explicit fields over ctx fields over defaults.
func resolve(ctx context.Context, op Operation, explicit Metadata) Metadata {
	base := MetadataFromContext(ctx)
	pick := func(values ...string) string {
		for _, v := range values {
			if v != "" {
				return v
			}
		}
		return ""
	}
	return Metadata{
		Severity:  Severity(pick(string(explicit.Severity), string(severities[op]), string(SeverityLow))),
		UserID:    pick(explicit.UserID, base.UserID, defaultUserID),
		SessionID: pick(explicit.SessionID, base.SessionID, defaultSessionID),
		IPAddress: pick(explicit.IPAddress, base.IPAddress, defaultIPAddress),
		UserAgent: pick(explicit.UserAgent, base.UserAgent, defaultUserAgent),
	}
}
