// Package db keeps the sign-in activity log: one sqlite file under the
// stride home directory, shared by every stride process on the machine.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Dicklesworthstone/stride/internal/config"
)

const (
	// FileName is the activity log's file name under the stride home.
	FileName = "stride.db"

	// DefaultRetention is how long events are kept.
	DefaultRetention = 90 * 24 * time.Hour
	// DefaultMaxEvents caps the number of events kept.
	DefaultMaxEvents = 1000

	// The TUI and a CLI command may write at the same time.
	busyTimeout = 5 * time.Second
)

// Options tune an opened activity log.
type Options struct {
	// Retention drops older events on open. Zero means DefaultRetention,
	// negative keeps everything.
	Retention time.Duration
	// MaxEvents keeps only the newest events on open. Zero means
	// DefaultMaxEvents, negative means no cap.
	MaxEvents int

	Now    func() time.Time
	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Retention == 0 {
		o.Retention = DefaultRetention
	}
	if o.MaxEvents == 0 {
		o.MaxEvents = DefaultMaxEvents
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// DB is an open activity log.
type DB struct {
	path string
	conn *sql.DB
	opts Options
}

// Open opens the activity log at DefaultPath.
func Open() (*DB, error) {
	return OpenWith(DefaultPath(), Options{})
}

// OpenAt opens the activity log at path with default options.
func OpenAt(path string) (*DB, error) {
	return OpenWith(path, Options{})
}

// OpenWith opens (creating if needed) the activity log at path, migrates it
// and prunes old events. A corrupt log is moved aside and started afresh.
func OpenWith(path string, opts Options) (*DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("activity log path is required")
	}
	opts.setDefaults()
	path = filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create activity log dir: %w", err)
	}
	// Outcome details can carry the identifier; sqlite copies these
	// permissions onto the -wal and -shm files.
	if err := createPrivate(path); err != nil {
		return nil, err
	}

	conn, err := connect(path)
	if err != nil && isCorrupt(err) {
		backup, qErr := quarantine(path, opts.Now())
		if qErr != nil {
			return nil, fmt.Errorf("activity log is corrupt (%v) and could not be moved aside: %w", err, qErr)
		}
		opts.Logger.Warn("activity log was corrupt, starting a new one", "backup", backup, "error", err)
		if err := createPrivate(path); err != nil {
			return nil, err
		}
		conn, err = connect(path)
	}
	if err != nil {
		return nil, err
	}

	d := &DB{path: path, conn: conn, opts: opts}
	if removed, err := d.Prune(context.Background()); err != nil {
		opts.Logger.Warn("failed to prune activity log", "error", err)
	} else if removed > 0 {
		opts.Logger.Debug("pruned activity log", "removed", removed)
	}
	return d, nil
}

// DefaultPath is FileName under the stride home directory.
func DefaultPath() string {
	return filepath.Join(config.HomeDir(), FileName)
}

// Path returns the file backing the log.
func (d *DB) Path() string {
	if d == nil {
		return ""
	}
	return d.path
}

func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// Prune applies the retention window and the event cap. It returns the
// number of events removed.
func (d *DB) Prune(ctx context.Context) (int64, error) {
	if d == nil || d.conn == nil {
		return 0, fmt.Errorf("db is not open")
	}

	var removed int64
	if d.opts.Retention > 0 {
		cutoff := d.opts.Now().Add(-d.opts.Retention).UnixMilli()
		res, err := d.conn.ExecContext(ctx, `DELETE FROM signin_activity WHERE created_at_ms < ?`, cutoff)
		if err != nil {
			return removed, fmt.Errorf("prune expired activity: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	if d.opts.MaxEvents > 0 {
		res, err := d.conn.ExecContext(ctx, `
DELETE FROM signin_activity
WHERE id NOT IN (
    SELECT id FROM signin_activity ORDER BY created_at_ms DESC, id DESC LIMIT ?
)`, d.opts.MaxEvents)
		if err != nil {
			return removed, fmt.Errorf("cap activity: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	return removed, nil
}

func createPrivate(path string) error {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return f.Close()
}

// connect opens one connection with the log's pragmas and migrates it.
func connect(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	if err := migrate(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// dsn passes the pragmas through the driver so that every connection it
// opens gets them.
func dsn(path string) string {
	return fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		filepath.ToSlash(path), busyTimeout.Milliseconds())
}

func isCorrupt(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not a database") || strings.Contains(msg, "malformed")
}

// quarantine renames the log and its sidecars to a timestamped backup and
// returns the backup path.
func quarantine(path string, now time.Time) (string, error) {
	backup := path + ".corrupt-" + now.UTC().Format("20060102T150405Z")
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Rename(path+suffix, backup+suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("move %s aside: %w", path+suffix, err)
		}
	}
	return backup, nil
}
