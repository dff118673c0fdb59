package signin

import (
	"context"
	"errors"
	"sync/atomic"
)

// ExternalFlow signs in through a redirect-based provider.
type ExternalFlow struct {
	provider ExternalProvider
	cfg      FlowConfig
	inFlight atomic.Bool
}

// NewExternalFlow returns a flow driving provider.
func NewExternalFlow(provider ExternalProvider, cfg FlowConfig) *ExternalFlow {
	cfg.setDefaults()
	return &ExternalFlow{provider: provider, cfg: cfg}
}

// InFlight reports whether the provider is currently suspended on the user.
func (f *ExternalFlow) InFlight() bool {
	return f.inFlight.Load()
}

// Start runs the provider until it completes, is cancelled or fails. There
// is no timeout besides ctx; cancelling ctx is reported as a cancellation.
func (f *ExternalFlow) Start(ctx context.Context) (o Outcome) {
	const op = "external.start"

	if f.provider == nil || f.cfg.Activator == nil {
		f.cfg.Logger.Debug("external sign-in ignored, not ready")
		return skipped(FlowExternal, CodeNotReady, op, f.cfg.Now())
	}
	if !f.inFlight.CompareAndSwap(false, true) {
		return skipped(FlowExternal, CodeBusy, op, f.cfg.Now())
	}
	defer f.inFlight.Store(false)

	o = Outcome{ID: f.cfg.NewID(), Flow: FlowExternal, Started: f.cfg.Now()}
	defer f.cfg.report(&o)

	result, err := f.provider.StartExternalFlow(ctx)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			o.Kind = KindCancelled
			o.Err = &Error{Code: CodeCancelled, Op: op, Err: err}
			return o
		}
		o.Kind = KindFailed
		o.Err = &Error{Code: CodeTransport, Op: op, Err: err}
		return o
	}

	if result.CreatedSessionID.IsZero() {
		o.Kind = KindCancelled
		o.Err = &Error{Code: CodeCancelled, Op: op}
		return o
	}

	f.cfg.finish(ctx, &o, result.CreatedSessionID, op)
	return o
}
