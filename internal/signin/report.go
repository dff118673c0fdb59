package signin

import (
	"encoding/json"
	"log/slog"
)

// LogReporter writes outcomes to a structured logger. Failures are logged
// once at error level; incomplete attempts are logged with the full attempt
// so the missing step can be diagnosed.
type LogReporter struct {
	Logger *slog.Logger
}

// Report implements Reporter.
func (r LogReporter) Report(o Outcome) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"outcome_id", o.ID,
		"flow", string(o.Flow),
		"kind", o.Kind.String(),
		"duration", o.Duration,
	}
	if !o.SessionID.IsZero() {
		attrs = append(attrs, "session_id", o.SessionID.String())
	}

	switch o.Kind {
	case KindSignedIn:
		logger.Info("sign-in complete", attrs...)
	case KindIncomplete:
		if o.Attempt != nil {
			if data, err := json.Marshal(o.Attempt); err == nil {
				attrs = append(attrs, "attempt", string(data))
			}
		}
		logger.Warn("sign-in needs a further step", attrs...)
	case KindCancelled:
		logger.Debug("sign-in cancelled", attrs...)
	case KindFailed:
		attrs = append(attrs, "error", o.Err)
		logger.Error("sign-in failed", attrs...)
	default:
		logger.Debug("sign-in skipped", append(attrs, "error", o.Err)...)
	}
}
