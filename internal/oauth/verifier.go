package oauth

import (
	"context"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

// GoogleIssuer is Google's OpenID Connect issuer.
const GoogleIssuer = "https://accounts.google.com"

// Claims are the ID token claims stride looks at.
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// TokenVerifier checks a raw ID token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*Claims, error)
}

// OIDCVerifier verifies ID tokens against a discovered OpenID provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers issuer and returns a verifier for clientID.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	if clientID == "" {
		return nil, fmt.Errorf("OIDC client id is required")
	}
	if issuer == "" {
		issuer = GoogleIssuer
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify implements TokenVerifier.
func (v *OIDCVerifier) Verify(ctx context.Context, rawIDToken string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Subject == "" {
		claims.Subject = idToken.Subject
	}
	return &claims, nil
}

// LazyVerifier discovers the provider on first use, so that building a
// Google flow never blocks on the network. A failed discovery is retried on
// the next Verify.
type LazyVerifier struct {
	issuer   string
	clientID string

	mu       sync.Mutex
	verifier *OIDCVerifier
}

// NewLazyVerifier returns a verifier that discovers issuer on first use.
func NewLazyVerifier(issuer, clientID string) *LazyVerifier {
	return &LazyVerifier{issuer: issuer, clientID: clientID}
}

// Verify implements TokenVerifier.
func (v *LazyVerifier) Verify(ctx context.Context, rawIDToken string) (*Claims, error) {
	v.mu.Lock()
	if v.verifier == nil {
		verifier, err := NewOIDCVerifier(ctx, v.issuer, v.clientID)
		if err != nil {
			v.mu.Unlock()
			return nil, err
		}
		v.verifier = verifier
	}
	verifier := v.verifier
	v.mu.Unlock()

	return verifier.Verify(ctx, rawIDToken)
}
