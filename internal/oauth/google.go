// Package oauth runs the Google redirect sign-in: it sends the user to
// Google's consent page, receives the redirect on a loopback port, exchanges
// the code with PKCE and trades the verified ID token for an identity
// service session.
package oauth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/Dicklesworthstone/stride/internal/browser"
	"github.com/Dicklesworthstone/stride/internal/identity"
)

const providerGoogle = "google"

// DefaultScopes returns the scopes requested from Google.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// SignInCreator submits the verified token to the identity service.
type SignInCreator interface {
	CreateSignIn(ctx context.Context, params identity.SignInParams) (*identity.SignInAttempt, error)
}

// GoogleConfig configures a GoogleFlow.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string

	// CallbackHost and CallbackPort select the loopback listener; port 0
	// picks a free port.
	CallbackHost string
	CallbackPort int
	CallbackPath string

	// Endpoint defaults to Google's.
	Endpoint oauth2.Endpoint

	// HTTPClient is used for the code exchange.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// GoogleFlow implements signin.ExternalProvider for Google.
type GoogleFlow struct {
	cfg      GoogleConfig
	identity SignInCreator
	verifier TokenVerifier
	opener   browser.Opener
	logger   *slog.Logger

	newState func() (string, error)
}

// NewGoogleFlow validates cfg and returns a flow.
func NewGoogleFlow(cfg GoogleConfig, svc SignInCreator, verifier TokenVerifier, opener browser.Opener) (*GoogleFlow, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	if svc == nil || verifier == nil || opener == nil {
		return nil, fmt.Errorf("google flow needs an identity service, a token verifier and an opener")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = endpoints.Google
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &GoogleFlow{
		cfg:      cfg,
		identity: svc,
		verifier: verifier,
		opener:   opener,
		logger:   logger,
		newState: randomState,
	}, nil
}

// StartExternalFlow runs one Google sign-in. It returns an empty result
// when the user declines consent or Google's account has no stride account
// behind it.
func (g *GoogleFlow) StartExternalFlow(ctx context.Context) (identity.OAuthResult, error) {
	state, err := g.newState()
	if err != nil {
		return identity.OAuthResult{}, err
	}
	verifier := oauth2.GenerateVerifier()

	srv, err := newCallbackServer(providerGoogle, g.cfg.CallbackHost, g.cfg.CallbackPort, g.cfg.CallbackPath, state, g.logger)
	if err != nil {
		return identity.OAuthResult{}, err
	}
	srv.Start()
	defer srv.Stop()

	conf := &oauth2.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		Endpoint:     g.cfg.Endpoint,
		RedirectURL:  srv.RedirectURL(),
		Scopes:       g.cfg.Scopes,
	}

	authURL := conf.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"))

	g.logger.Debug("starting google sign-in", "redirect_url", conf.RedirectURL)
	if err := g.opener.Open(ctx, authURL); err != nil {
		// The URL was still shown to the user; keep waiting for the redirect.
		g.logger.Warn("could not open browser", "error", err)
	}
	if c, ok := g.opener.(io.Closer); ok {
		defer c.Close()
	}

	res, err := srv.Wait(ctx)
	if err != nil {
		return identity.OAuthResult{}, err
	}
	if res.err != nil {
		return identity.OAuthResult{}, res.err
	}
	if res.cancelled {
		g.logger.Info("google sign-in declined by user")
		return identity.OAuthResult{}, nil
	}

	exchangeCtx := ctx
	if g.cfg.HTTPClient != nil {
		exchangeCtx = context.WithValue(ctx, oauth2.HTTPClient, g.cfg.HTTPClient)
	}
	token, err := conf.Exchange(exchangeCtx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return identity.OAuthResult{}, providerError(providerGoogle, "exchange_failed", "", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return identity.OAuthResult{}, providerError(providerGoogle, "missing_id_token", "", ErrMissingIDToken)
	}

	claims, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity.OAuthResult{}, providerError(providerGoogle, "invalid_id_token", "", err)
	}

	attempt, err := g.identity.CreateSignIn(ctx, identity.SignInParams{
		Strategy:   identity.StrategyGoogleOAuthToken,
		Identifier: claims.Email,
		Token:      rawIDToken,
	})
	if err != nil {
		return identity.OAuthResult{}, fmt.Errorf("google sign-in: %w", err)
	}

	if !attempt.Status.Complete() || attempt.CreatedSessionID.IsZero() {
		g.logger.Info("google account has no completed sign-in",
			"email", claims.Email,
			"status", string(attempt.Status))
		return identity.OAuthResult{}, nil
	}

	return identity.OAuthResult{CreatedSessionID: attempt.CreatedSessionID}, nil
}
