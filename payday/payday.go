// Package payday tracks periodic credit claims.
package payday

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Register records when users last claimed their payday.
// Its methods are concurrent by way of mutual exclusion.
// Claims are not persisted; a restart lets everyone claim again.
type Register struct {
	mu   sync.Mutex
	last map[key]time.Time
}

type key struct {
	group, user string
}

// Claim attempts to claim a payday. If the user's last claim in the group
// was at least every ago, the claim is recorded and Claim returns true.
// Otherwise it returns false along with the time remaining until the next
// claim is allowed.
func (r *Register) Claim(group, user string, now time.Time, every time.Duration) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{group, user}
	if t, ok := r.last[k]; ok {
		if next := t.Add(every); now.Before(next) {
			return false, next.Sub(now)
		}
	}
	if r.last == nil {
		r.last = make(map[key]time.Time)
	}
	r.last[k] = now
	return true, 0
}

// Undo reverts a claim made at the given time, e.g. because the deposit it
// granted failed. Later claims are not affected.
func (r *Register) Undo(group, user string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{group, user}
	if t, ok := r.last[k]; ok && t.Equal(at) {
		delete(r.last, k)
	}
}

// Forget discards all claims in a group.
func (r *Register) Forget(group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.last {
		if k.group == group {
			delete(r.last, k)
		}
	}
}

var units = []struct {
	name string
	d    time.Duration
}{
	{"week", 7 * 24 * time.Hour},
	{"day", 24 * time.Hour},
	{"hour", time.Hour},
	{"minute", time.Minute},
	{"second", time.Second},
}

// Describe formats a duration in words using at most the two largest
// nonzero units, e.g. "1 day, 3 hours". Durations under a second are
// "0 seconds".
func Describe(d time.Duration) string {
	var parts []string
	for _, u := range units {
		n := d / u.d
		if n == 0 {
			continue
		}
		d -= n * u.d
		s := fmt.Sprintf("%d %s", n, u.name)
		if n != 1 {
			s += "s"
		}
		parts = append(parts, s)
		if len(parts) == 2 {
			break
		}
	}
	if len(parts) == 0 {
		return "0 seconds"
	}
	return strings.Join(parts, ", ")
}
