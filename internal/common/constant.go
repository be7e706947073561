package common

const (
	// AuthorizationHeaderName carries "Bearer <token>" on HTTP requests and
	// the bare or prefixed token in gRPC metadata.
	AuthorizationHeaderName = "authorization"

	// SessionCookieName is the fallback location of the session token for
	// browser clients.
	SessionCookieName = "session_token"

	// BearerPrefix precedes the token in the Authorization header.
	BearerPrefix = "Bearer "
)
