package db

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func quietOptions(now time.Time) Options {
	return Options{
		Now:    func() time.Time { return now },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func userVersion(t *testing.T, d *DB) int {
	t.Helper()
	var v int
	if err := d.conn.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		t.Fatalf("PRAGMA user_version error = %v", err)
	}
	return v
}

func TestOpenWith_CreatesPrivateMigratedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	d, err := OpenWith(path, quietOptions(testNow))
	if err != nil {
		t.Fatalf("OpenWith() error = %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat activity log: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("activity log mode = %o, want 600", perm)
		}
	}

	if got := userVersion(t, d); got != len(migrations) {
		t.Errorf("user_version = %d, want %d", got, len(migrations))
	}
	if err := d.RecordEvent(context.Background(), Event{OutcomeID: "o", Flow: "credential", Kind: "failed"}); err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}
	_ = d.Close()

	// Reopening keeps the schema and the rows.
	d, err = OpenWith(path, quietOptions(testNow))
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if got := userVersion(t, d); got != len(migrations) {
		t.Errorf("user_version after reopen = %d, want %d", got, len(migrations))
	}
	events, err := d.RecentEvents(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Errorf("events after reopen = %d, want 1", len(events))
	}
}

func TestOpenWith_Pragmas(t *testing.T) {
	d := openTestDB(t)

	var mode string
	if err := d.conn.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if strings.ToLower(mode) != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int64
	if err := d.conn.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout error = %v", err)
	}
	if timeout != busyTimeout.Milliseconds() {
		t.Errorf("busy_timeout = %d, want %d", timeout, busyTimeout.Milliseconds())
	}
}

func TestOpenWith_RefusesNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	// Written by a later stride.
	conn, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?mode=rwc")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	if _, err := conn.Exec(`PRAGMA user_version = 99`); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	_ = conn.Close()

	if _, err := OpenWith(path, quietOptions(testNow)); err == nil || !strings.Contains(err.Error(), "newer") {
		t.Fatalf("OpenWith() error = %v, want newer-schema error", err)
	}

	// The file is left alone for the newer stride.
	if backups, _ := filepath.Glob(path + ".corrupt-*"); len(backups) != 0 {
		t.Errorf("newer log was quarantined: %v", backups)
	}
}

func TestOpenWith_QuarantinesCorruptLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	if err := os.WriteFile(path, []byte("not a database"), 0600); err != nil {
		t.Fatalf("write corrupt log: %v", err)
	}
	if err := os.WriteFile(path+"-wal", []byte("stale wal"), 0600); err != nil {
		t.Fatalf("write wal: %v", err)
	}

	d, err := OpenWith(path, quietOptions(now))
	if err != nil {
		t.Fatalf("OpenWith() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	backup := path + ".corrupt-20260601T080000Z"
	if data, err := os.ReadFile(backup); err != nil || string(data) != "not a database" {
		t.Errorf("backup = %q, %v; want the corrupt bytes", data, err)
	}
	if data, err := os.ReadFile(backup + "-wal"); err != nil || string(data) != "stale wal" {
		t.Errorf("wal backup = %q, %v; want the stale wal", data, err)
	}

	if err := d.RecordEvent(context.Background(), Event{OutcomeID: "o", Flow: "external", Kind: "cancelled"}); err != nil {
		t.Errorf("fresh log not writable: %v", err)
	}
}

func TestQuarantine_MissingSidecarsAreFine(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	backup, err := quarantine(path, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("quarantine() error = %v", err)
	}
	if backup != path+".corrupt-20260102T030405Z" {
		t.Errorf("backup = %q", backup)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("original still present: %v", err)
	}
}

func TestPrune_RetentionAndCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	d, err := OpenWith(path, quietOptions(now))
	if err != nil {
		t.Fatalf("OpenWith() error = %v", err)
	}
	ages := []time.Duration{200 * 24 * time.Hour, 100 * 24 * time.Hour, 3 * time.Hour, 2 * time.Hour, time.Hour}
	for _, age := range ages {
		if err := d.RecordEvent(ctx, Event{OutcomeID: "o", At: now.Add(-age), Flow: "credential", Kind: "failed"}); err != nil {
			t.Fatalf("RecordEvent() error = %v", err)
		}
	}
	_ = d.Close()

	opts := quietOptions(now)
	opts.MaxEvents = 2
	d, err = OpenWith(path, opts)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	events, err := d.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("kept %d events, want 2", len(events))
	}
	if !events[0].At.Equal(now.Add(-time.Hour)) || !events[1].At.Equal(now.Add(-2*time.Hour)) {
		t.Errorf("kept %v and %v, want the two newest", events[0].At, events[1].At)
	}

	if removed, err := d.Prune(ctx); err != nil || removed != 0 {
		t.Errorf("second Prune() = %d, %v; want nothing left to remove", removed, err)
	}
}

func TestPrune_NegativeKeepsEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	opts := quietOptions(now)
	opts.Retention = -1
	opts.MaxEvents = -1

	d, err := OpenWith(path, opts)
	if err != nil {
		t.Fatalf("OpenWith() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	old := now.Add(-5 * 365 * 24 * time.Hour)
	if err := d.RecordEvent(context.Background(), Event{OutcomeID: "o", At: old, Flow: "credential", Kind: "failed"}); err != nil {
		t.Fatalf("RecordEvent() error = %v", err)
	}
	if removed, err := d.Prune(context.Background()); err != nil || removed != 0 {
		t.Errorf("Prune() = %d, %v; want nothing removed", removed, err)
	}
}

func TestOpenWith_EmptyPath(t *testing.T) {
	if _, err := OpenWith("  ", Options{}); err == nil {
		t.Error("OpenWith with empty path should fail")
	}
}

func TestDefaultPath_UsesStrideHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("STRIDE_HOME", home)

	if got, want := DefaultPath(), filepath.Join(home, FileName); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
