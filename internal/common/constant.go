package common

const (
	// RequestIDHeaderName carries the per-request correlation id on every
	// outbound call.
	RequestIDHeaderName = "X-Request-ID"

	// AuthorizationHeaderName carries the bearer credential when a session
	// is authenticated.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix is prepended to the access token in the authorization
	// header.
	BearerPrefix = "Bearer "
)

// Durable storage keys for the two credential entries. Presence of one
// without the other is treated as corruption by the credential store.
const (
	StorageKeyTokens = "auth_tokens"
	StorageKeyUser   = "auth_user"
)
