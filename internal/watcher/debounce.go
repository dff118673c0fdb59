package watcher

import (
	"sync"
	"time"
)

// A saved session lands as a create, one or more writes and a rename of the
// .tmp file. Entries older than sweepAfter are dropped when the next write
// comes in after that long.
const sweepAfter = time.Minute

// debouncer coalesces the bursts of writes that one save of a watched file
// produces into a single event.
type debouncer struct {
	delay time.Duration
	now   func() time.Time

	mu        sync.Mutex
	last      map[string]time.Time
	lastSweep time.Time
}

func newDebouncer(delay time.Duration) *debouncer {
	if delay <= 0 {
		delay = defaultDebounceDelay
	}
	return &debouncer{
		delay: delay,
		now:   time.Now,
		last:  make(map[string]time.Time),
	}
}

// allowWrite reports whether a write to name starts a new burst.
func (d *debouncer) allowWrite(name string) bool {
	if d == nil || name == "" {
		return true
	}

	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if now.Sub(d.lastSweep) >= sweepAfter {
		for key, ts := range d.last {
			if now.Sub(ts) >= sweepAfter {
				delete(d.last, key)
			}
		}
		d.lastSweep = now
	}

	if prev, ok := d.last[name]; ok && now.Sub(prev) < d.delay {
		return false
	}
	d.last[name] = now
	return true
}

// removed forgets name so that the next write, e.g. a sign-in right after
// a sign-out, is reported at once.
func (d *debouncer) removed(name string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	delete(d.last, name)
	d.mu.Unlock()
}
