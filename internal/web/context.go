package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/shoestore/internal/core"
	mw "github.com/JonMunkholm/shoestore/internal/web/middleware"
)

// WithRequestMetadata adds the client IP to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithIPAddress(ctx, mw.ClientIP(r))
}
