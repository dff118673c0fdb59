package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Dicklesworthstone/stride/internal/signin"
)

// Event is one row of the sign-in activity log.
type Event struct {
	ID        string
	OutcomeID string
	At        time.Time
	Flow      string
	Kind      string
	Code      string
	SessionID string
	Detail    string
	Duration  time.Duration
}

// RecordEvent appends ev to the activity log. Missing ID and At are filled in.
func (d *DB) RecordEvent(ctx context.Context, ev Event) error {
	if d == nil || d.conn == nil {
		return fmt.Errorf("db is not open")
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = d.opts.Now()
	}

	_, err := d.conn.ExecContext(ctx, `
INSERT INTO signin_activity
    (event_id, outcome_id, created_at_ms, flow, kind, code, session_id, detail, duration_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.OutcomeID, ev.At.UnixMilli(), ev.Flow, ev.Kind,
		nullString(ev.Code), nullString(ev.SessionID), nullString(ev.Detail),
		ev.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (d *DB) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	if d == nil || d.conn == nil {
		return nil, fmt.Errorf("db is not open")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := d.conn.QueryContext(ctx, `
SELECT event_id, outcome_id, created_at_ms, flow, kind,
       COALESCE(code, ''), COALESCE(session_id, ''), COALESCE(detail, ''), duration_ms
FROM signin_activity
ORDER BY created_at_ms DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev          Event
			atMs, durMs int64
		)
		if err := rows.Scan(&ev.ID, &ev.OutcomeID, &atMs, &ev.Flow, &ev.Kind,
			&ev.Code, &ev.SessionID, &ev.Detail, &durMs); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		ev.At = time.UnixMilli(atMs)
		ev.Duration = time.Duration(durMs) * time.Millisecond
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return events, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ActivityReporter records sign-in outcomes in the activity log.
type ActivityReporter struct {
	DB      *DB
	Logger  *slog.Logger
	Timeout time.Duration
}

var _ signin.Reporter = (*ActivityReporter)(nil)

// Report implements signin.Reporter. Write failures are logged, never
// surfaced to the flow.
func (r *ActivityReporter) Report(o signin.Outcome) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := r.DB.RecordEvent(ctx, EventFromOutcome(o)); err != nil {
		logger.Warn("failed to record sign-in activity", "outcome_id", o.ID, "error", err)
	}
}

// EventFromOutcome flattens an outcome into a log row. Incomplete attempts
// keep the attempt as JSON; failures keep the error text.
func EventFromOutcome(o signin.Outcome) Event {
	ev := Event{
		OutcomeID: o.ID,
		At:        o.Started,
		Flow:      string(o.Flow),
		Kind:      o.Kind.String(),
		SessionID: o.SessionID.String(),
		Duration:  o.Duration,
	}
	if code := o.Code(); code != 0 {
		ev.Code = code.String()
	}

	switch {
	case o.Kind == signin.KindIncomplete && o.Attempt != nil:
		if data, err := json.Marshal(o.Attempt); err == nil {
			ev.Detail = string(data)
		}
	case o.Err != nil:
		ev.Detail = o.Err.Error()
	}
	return ev
}
