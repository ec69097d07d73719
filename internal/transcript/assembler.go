// Package transcript assembles per-segment transcription results into an
// ordered session transcript. Segments complete out of order and may be
// delivered more than once; the assembler restores order and drops
// duplicates.
package transcript

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GrowthFunc is notified with the new entry count after each append
type GrowthFunc func(length int)

// Assembler holds the session transcript keyed by segment index.
type Assembler struct {
	mu       sync.Mutex
	entries  []Entry
	seen     map[uint64]bool
	onGrowth GrowthFunc
}

// NewAssembler creates an empty assembler
func NewAssembler() *Assembler {
	return &Assembler{seen: make(map[uint64]bool)}
}

// OnGrowth registers a callback invoked after each successful append.
// Must be set before appends begin.
func (a *Assembler) OnGrowth(fn GrowthFunc) {
	a.onGrowth = fn
}

// Append records the turns produced from one segment. A segment index
// that was already recorded is discarded whole, so redelivery of a
// completed segment cannot duplicate lines. Returns the entries added.
func (a *Assembler) Append(segmentIndex uint64, turns []SpeakerTurn) []Entry {
	a.mu.Lock()

	if a.seen[segmentIndex] {
		a.mu.Unlock()
		return nil
	}
	a.seen[segmentIndex] = true

	var added []Entry
	now := time.Now()
	for _, turn := range turns {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		added = append(added, Entry{
			ID:           uuid.New().String(),
			Speaker:      turn.Speaker,
			Text:         text,
			SegmentIndex: segmentIndex,
			Timestamp:    now,
		})
	}
	a.entries = append(a.entries, added...)

	length := len(a.entries)
	fn := a.onGrowth
	a.mu.Unlock()

	if len(added) > 0 && fn != nil {
		fn(length)
	}
	return added
}

// Ordered returns all entries sorted by segment index. Entries within a
// segment keep their spoken order.
func (a *Assembler) Ordered() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SegmentIndex < out[j].SegmentIndex
	})
	return out
}

// Len returns the number of entries
func (a *Assembler) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// RecentContext renders the last n ordered entries as "Speaker: text"
// lines, used to prime the transcriber for the next segment.
func (a *Assembler) RecentContext(n int) string {
	ordered := a.Ordered()
	if len(ordered) > n {
		ordered = ordered[len(ordered)-n:]
	}

	lines := make([]string, 0, len(ordered))
	for _, e := range ordered {
		lines = append(lines, fmt.Sprintf("%s: %s", e.Speaker, e.Text))
	}
	return strings.Join(lines, "\n")
}

// Format renders the full ordered transcript as "Speaker: text" lines
func (a *Assembler) Format() string {
	ordered := a.Ordered()
	var b strings.Builder
	for i, e := range ordered {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", e.Speaker, e.Text)
	}
	return b.String()
}
