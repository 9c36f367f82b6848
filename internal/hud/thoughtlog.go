// Package hud holds the renderer-independent parts of the debug viewers:
// the thought log, camera math, speed control and the text panels. The
// ebiten viewer and the terminal viewer both draw from it.
package hud

import (
	"fmt"

	"github.com/Garsondee/Squad-Tactics/internal/game"
)

// DefaultLogEntries is the thought log capacity used by the viewers.
const DefaultLogEntries = 60

// ThoughtEntry is a single line in the thought log.
type ThoughtEntry struct {
	Tick     int
	Label    string // unit label, squad name or "--"
	Side     string
	Category string
	Message  string
}

// Line formats the entry for a log panel.
func (e ThoughtEntry) Line() string {
	return fmt.Sprintf("%5d [%s] %s", e.Tick, e.Label, e.Message)
}

// ThoughtLog is a ring buffer of recent engine events.
type ThoughtLog struct {
	entries []ThoughtEntry
	head    int
	count   int
	seen    int // SimLog entries already consumed
}

// NewThoughtLog creates a thought log with a fixed capacity.
func NewThoughtLog(capacity int) *ThoughtLog {
	if capacity <= 0 {
		capacity = DefaultLogEntries
	}
	return &ThoughtLog{entries: make([]ThoughtEntry, capacity)}
}

// Add appends an entry, overwriting the oldest when full.
func (tl *ThoughtLog) Add(e ThoughtEntry) {
	n := len(tl.entries)
	tl.entries[tl.head] = e
	tl.head = (tl.head + 1) % n
	if tl.count < n {
		tl.count++
	}
}

// Len is the number of entries held.
func (tl *ThoughtLog) Len() int { return tl.count }

// Recent returns entries in chronological order (oldest first).
func (tl *ThoughtLog) Recent() []ThoughtEntry {
	n := len(tl.entries)
	result := make([]ThoughtEntry, tl.count)
	for i := 0; i < tl.count; i++ {
		idx := (tl.head - tl.count + i + n) % n
		result[i] = tl.entries[idx]
	}
	return result
}

// Tail returns at most n of the newest entries, oldest first.
func (tl *ThoughtLog) Tail(n int) []ThoughtEntry {
	all := tl.Recent()
	if n >= 0 && len(all) > n {
		return all[len(all)-n:]
	}
	return all
}

// FeedSimLog copies the SimLog entries recorded since the previous call.
// It returns how many were added.
func (tl *ThoughtLog) FeedSimLog(sl *game.SimLog) int {
	if sl == nil {
		return 0
	}
	entries := sl.Entries()
	if tl.seen > len(entries) {
		tl.seen = 0
	}
	added := 0
	for _, e := range entries[tl.seen:] {
		tl.Add(ThoughtEntry{
			Tick:     e.Tick,
			Label:    e.Actor,
			Side:     e.Side,
			Category: e.Category,
			Message:  fmt.Sprintf("%s %s", e.Key, e.Value),
		})
		added++
	}
	tl.seen = len(entries)
	return added
}
