package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/Dicklesworthstone/stride/internal/browser"
	"github.com/Dicklesworthstone/stride/internal/config"
	"github.com/Dicklesworthstone/stride/internal/db"
	"github.com/Dicklesworthstone/stride/internal/identity"
	"github.com/Dicklesworthstone/stride/internal/nav"
	"github.com/Dicklesworthstone/stride/internal/oauth"
	"github.com/Dicklesworthstone/stride/internal/session"
	"github.com/Dicklesworthstone/stride/internal/signin"
)

// app holds the long-lived pieces every command shares.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *identity.Client
	manager *session.Manager
	history *nav.History
	db      *db.DB
	opener  browser.Opener
}

// newApp wires the identity client, the session context and the activity
// log. browserOut receives the sign-in URL of the Google flow.
func newApp(cfg *config.Config, logger *slog.Logger, browserOut io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client, err := identity.NewClient(identity.Config{
		BaseURL:        cfg.Identity.APIURL,
		PublishableKey: cfg.Identity.PublishableKey,
		AllowedHosts:   cfg.Identity.AllowedHosts,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	manager := session.NewManager(session.Config{
		Remote: client,
		Store:  session.NewFileStore(filepath.Join(config.HomeDir(), session.FileName)),
		Logger: logger,
	})

	a := &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		manager: manager,
		history: nav.NewHistory(cfg.Routes.Login),
		opener:  browser.New(browser.Mode(cfg.Browser), browserOut, logger),
	}

	// The activity log is diagnostics only; stride works without it.
	if store, err := db.OpenWith(db.DefaultPath(), db.Options{Logger: logger}); err != nil {
		logger.Warn("sign-in activity log unavailable", "error", err)
	} else {
		a.db = store
	}
	return a, nil
}

// reporter logs every outcome and records it in the activity log.
func (a *app) reporter() signin.Reporter {
	reporters := signin.Reporters{signin.LogReporter{Logger: a.logger}}
	if a.db != nil {
		reporters = append(reporters, &db.ActivityReporter{DB: a.db, Logger: a.logger})
	}
	return reporters
}

// provider returns the Google flow, or nil when it is not configured.
func (a *app) provider() (signin.ExternalProvider, error) {
	if !a.cfg.GoogleEnabled() {
		return nil, nil
	}
	flow, err := oauth.NewGoogleFlow(oauth.GoogleConfig{
		ClientID:     a.cfg.Google.ClientID,
		ClientSecret: a.cfg.Google.ClientSecret,
		Scopes:       a.cfg.Google.Scopes,
		CallbackPort: a.cfg.Google.CallbackPort,
		Logger:       a.logger,
	}, a.client, oauth.NewLazyVerifier(a.cfg.Google.Issuer, a.cfg.Google.ClientID), a.opener)
	if err != nil {
		return nil, err
	}
	return flow, nil
}

// newScreen builds one sign-in screen instance.
func (a *app) newScreen() (*signin.Screen, error) {
	provider, err := a.provider()
	if err != nil {
		return nil, err
	}

	return signin.NewScreen(signin.ScreenConfig{
		Identity:  a.client,
		Provider:  provider,
		Activator: session.NewActivator(a.client, a.manager, a.logger),
		Navigator: a.history,
		MainRoute: a.cfg.Routes.Main,
		Reporter:  a.reporter(),
		Logger:    a.logger,
	}), nil
}

// start loads the session context.
func (a *app) start(ctx context.Context) error {
	if err := a.manager.Init(ctx); err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	return nil
}

func (a *app) Close() {
	if c, ok := a.opener.(io.Closer); ok {
		_ = c.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
