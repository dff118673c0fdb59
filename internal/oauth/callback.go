package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	defaultCallbackHost = "127.0.0.1"
	defaultCallbackPath = "/callback"
	shutdownTimeout     = 5 * time.Second
)

// callbackResult is what the loopback server learned from the redirect.
type callbackResult struct {
	code      string
	cancelled bool
	err       error
}

// callbackServer receives the provider's redirect on a loopback port.
type callbackServer struct {
	provider string
	state    string
	path     string
	logger   *slog.Logger

	listener net.Listener
	server   *http.Server
	results  chan callbackResult
}

func newCallbackServer(provider, host string, port int, path, state string, logger *slog.Logger) (*callbackServer, error) {
	if host == "" {
		host = defaultCallbackHost
	}
	if path == "" {
		path = defaultCallbackPath
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}

	s := &callbackServer{
		provider: provider,
		state:    state,
		path:     path,
		logger:   logger,
		listener: ln,
		results:  make(chan callbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+path, s.handleCallback)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// RedirectURL is the URL the provider must send the user back to.
func (s *callbackServer) RedirectURL() string {
	return "http://" + s.listener.Addr().String() + s.path
}

func (s *callbackServer) Start() {
	go func() {
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deliver(callbackResult{err: fmt.Errorf("oauth callback server: %w", err)})
		}
	}()
}

func (s *callbackServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("oauth callback server shutdown", "error", err)
	}
}

// Wait blocks until the redirect arrives or ctx is done.
func (s *callbackServer) Wait(ctx context.Context) (callbackResult, error) {
	select {
	case <-ctx.Done():
		return callbackResult{}, ctx.Err()
	case res := <-s.results:
		return res, nil
	}
}

// deliver keeps only the first result; later redirects are answered but
// ignored.
func (s *callbackServer) deliver(res callbackResult) bool {
	select {
	case s.results <- res:
		return true
	default:
		return false
	}
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("state") != s.state {
		// Not our redirect; keep waiting for the one that is.
		s.logger.Warn("ignoring oauth callback with unexpected state", "provider", s.provider)
		renderPage(w, http.StatusBadRequest, "Sign-in failed", "The sign-in request did not match. Return to stride and try again.")
		return
	}

	if code := q.Get("error"); code != "" {
		if code == "access_denied" {
			renderPage(w, http.StatusOK, "Sign-in cancelled", "You can close this window and return to stride.")
			s.deliver(callbackResult{cancelled: true})
			return
		}
		renderPage(w, http.StatusBadRequest, "Sign-in failed", "The provider reported an error. Return to stride for details.")
		s.deliver(callbackResult{err: providerError(s.provider, code, q.Get("error_description"), nil)})
		return
	}

	code := q.Get("code")
	if code == "" {
		renderPage(w, http.StatusBadRequest, "Sign-in failed", "The provider did not return an authorization code.")
		s.deliver(callbackResult{err: providerError(s.provider, "missing_code", "", nil)})
		return
	}

	renderPage(w, http.StatusOK, "Signed in", "You can close this window and return to stride.")
	s.deliver(callbackResult{code: code})
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body{font-family:sans-serif;text-align:center;padding-top:4em;background:#282a36;color:#f8f8f2}h1{color:#bd93f9}</style>
</head>
<body><h1>{{.Title}}</h1><p>{{.Message}}</p></body>
</html>
`))

func renderPage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = pageTemplate.Execute(w, struct{ Title, Message string }{title, message})
}

// randomState returns a URL-safe random token for the state parameter.
func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
