// Package oauth verifies ID tokens issued by Google Sign-In.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const (
	GoogleIssuer  = "https://accounts.google.com"
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

var (
	ErrMissingClientID = errors.New("oauth: client id is required")
	ErrUntrustedIssuer = errors.New("oauth: untrusted issuer")
	ErrEmailUnverified = errors.New("oauth: email not verified by provider")
	ErrMissingIdentity = errors.New("oauth: token carries no subject or email")
)

// Config selects the audience and trusted issuers.
type Config struct {
	ClientID string
	// Issuers lists accepted iss values. Google uses both the URL and the bare host.
	Issuers []string
	// JWKSURL is where signing keys are fetched from.
	JWKSURL string
	// Now overrides the clock used for expiry checks.
	Now func() time.Time
}

// GoogleVerifier validates Google ID tokens against the configured client id.
type GoogleVerifier struct {
	verifier *oidc.IDTokenVerifier
	issuers  map[string]struct{}
}

var _ ports.IdentityVerifier = (*GoogleVerifier)(nil)

// NewGoogleVerifier returns a verifier that fetches signing keys from
// cfg.JWKSURL and caches them.
func NewGoogleVerifier(ctx context.Context, cfg Config) (*GoogleVerifier, error) {
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = GoogleJWKSURL
	}
	return NewGoogleVerifierWithKeySet(oidc.NewRemoteKeySet(ctx, cfg.JWKSURL), cfg)
}

// NewGoogleVerifierWithKeySet is NewGoogleVerifier with an explicit key set.
func NewGoogleVerifierWithKeySet(keys oidc.KeySet, cfg Config) (*GoogleVerifier, error) {
	if cfg.ClientID == "" {
		return nil, ErrMissingClientID
	}
	if len(cfg.Issuers) == 0 {
		cfg.Issuers = []string{GoogleIssuer, "accounts.google.com"}
	}

	issuers := make(map[string]struct{}, len(cfg.Issuers))
	for _, iss := range cfg.Issuers {
		issuers[iss] = struct{}{}
	}

	// The issuer is checked against the allow-list after verification.
	verifier := oidc.NewVerifier(cfg.Issuers[0], fetchTrackingKeySet{keys}, &oidc.Config{
		ClientID:             cfg.ClientID,
		SupportedSigningAlgs: []string{oidc.RS256},
		SkipIssuerCheck:      true,
		Now:                  cfg.Now,
	})
	return &GoogleVerifier{verifier: verifier, issuers: issuers}, nil
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// Verify checks signature, audience, expiry and issuer of rawIDToken and
// returns the identity it asserts.
func (g *GoogleVerifier) Verify(ctx context.Context, rawIDToken string) (*ports.ExternalProfile, error) {
	failure := &keyFetchFailure{}
	tok, err := g.verifier.Verify(context.WithValue(ctx, keyFetchFailureKey{}, failure), rawIDToken)
	if err != nil {
		if failure.err != nil {
			return nil, domain.Dependency("identity provider unavailable", failure.err)
		}
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if _, ok := g.issuers[tok.Issuer]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUntrustedIssuer, tok.Issuer)
	}

	var claims googleClaims
	if err := tok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}
	if tok.Subject == "" || claims.Email == "" {
		return nil, ErrMissingIdentity
	}
	if !claims.EmailVerified {
		return nil, ErrEmailUnverified
	}

	return &ports.ExternalProfile{
		Subject:    tok.Subject,
		Email:      claims.Email,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		Picture:    claims.Picture,
	}, nil
}

// keyFetchFailure carries a signing-key download error out of the oidc
// verifier, which flattens errors from the key set into plain text.
type keyFetchFailure struct{ err error }

type keyFetchFailureKey struct{}

// fetchTrackingKeySet reports key download failures through the
// keyFetchFailure stored in the request context.
type fetchTrackingKeySet struct {
	oidc.KeySet
}

func (k fetchTrackingKeySet) VerifySignature(ctx context.Context, jwt string) ([]byte, error) {
	payload, err := k.KeySet.VerifySignature(ctx, jwt)
	if err != nil && isKeyFetchError(err) {
		if f, ok := ctx.Value(keyFetchFailureKey{}).(*keyFetchFailure); ok {
			f.err = err
		}
	}
	return payload, err
}

// isKeyFetchError matches the wrapped error oidc.RemoteKeySet returns when
// the JWKS endpoint cannot be read. Signature mismatches are not wrapped.
func isKeyFetchError(err error) bool {
	return errors.Unwrap(err) != nil && strings.HasPrefix(err.Error(), "fetching keys")
}
