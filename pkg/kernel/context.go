package kernel

// AuthContext is the authentication context injected into each verified
// request. It identifies the end user, the consumer application presenting
// the credential, and whether the request carried a valid consumer signature.
type AuthContext struct {
	UserID       UserID     `json:"user_id"`
	ConsumerID   ConsumerID `json:"consumer_id"`
	ConsumerName string     `json:"consumer_name"`
	TokenID      TokenID    `json:"token_id"`
	Signed       bool       `json:"signed"`
}

// IsValid reports whether the context identifies both a user and a consumer.
func (ac *AuthContext) IsValid() bool {
	return !ac.UserID.IsEmpty() && !ac.ConsumerID.IsEmpty()
}

// ContextKey is the type for values stored in context.Context and
// framework-local storage.
type ContextKey string

const (
	// AuthContextKey stores the AuthContext of a verified request.
	AuthContextKey ContextKey = "auth_context"

	// RequestIDKey stores the request correlation ID.
	RequestIDKey ContextKey = "request_id"
)
