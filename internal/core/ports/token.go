package ports

// TokenIssuer signs session tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// TokenVerifier checks a session token and returns the user id it was issued
// for. Failures are domain.ErrTokenExpired or domain.ErrInvalidToken.
type TokenVerifier interface {
	Verify(token string) (string, error)
}
