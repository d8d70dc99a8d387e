package ports

import "context"

// ExternalProfile is the verified identity asserted by the OAuth provider.
type ExternalProfile struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

// IdentityVerifier validates a provider-issued ID token against the
// configured audience and returns the profile it carries.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*ExternalProfile, error)
}
