package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/graphupload/internal/core"
)

// WithRequestMetadata adds the client IP to ctx for ingestion history.
// RemoteAddr has already been rewritten by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClientIP(ctx, clientIP(r))
}
