package hud

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Garsondee/Squad-Tactics/internal/game"
)

// defaultReportTicks is how far back a debug report looks (~5s at 60TPS).
const defaultReportTicks = 300

// DebugReport renders the recent history of the selected unit and its squad
// from the SimLog, for pasting into a bug report.
func DebugReport(s *game.Snapshot, sl *game.SimLog, selected game.UnitID, lastTicks int) string {
	if s == nil {
		return ""
	}
	if lastTicks <= 0 {
		lastTicks = defaultReportTicks
	}
	toTick := s.Tick
	fromTick := max(0, toTick-lastTicks+1)

	var b strings.Builder
	fmt.Fprintf(&b, "--- Squad Tactics debug report ---\n")
	fmt.Fprintf(&b, "tick_range=[%d..%d] ticks=%d time=%.2fs\n", fromTick, toTick, toTick-fromTick+1, s.Time)
	for _, l := range MissionLines(s) {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	u, ok := s.Unit(selected)
	if !ok {
		b.WriteString("(no unit selected)\n")
		writeRange(&b, sl, fromTick, toTick, nil)
		return b.String()
	}
	for _, l := range UnitLines(s, selected) {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	actors := map[string]bool{u.Label: true}
	if sq, ok := s.Squad(u.Squad); ok {
		actors[sq.Name] = true
		for _, id := range sq.Members {
			if m, ok := s.Unit(id); ok {
				actors[m.Label] = true
			}
		}
	}
	writeRange(&b, sl, fromTick, toTick, actors)
	return b.String()
}

// writeRange writes the SimLog entries in range whose actor is in actors,
// or all entries when actors is nil, followed by per-key counts.
func writeRange(b *strings.Builder, sl *game.SimLog, fromTick, toTick int, actors map[string]bool) {
	b.WriteString("== timeline ==\n")
	if sl == nil {
		b.WriteString("(no log)\n")
		return
	}
	counts := map[string]int{}
	n := 0
	for _, e := range sl.FilterTickRange(fromTick, toTick) {
		if actors != nil && !actors[e.Actor] {
			continue
		}
		b.WriteString(e.String())
		b.WriteByte('\n')
		counts[e.Category+"/"+e.Key]++
		n++
	}
	if n == 0 {
		b.WriteString("(no entries in range)\n")
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("counts:")
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%d", k, counts[k])
	}
	b.WriteByte('\n')
}
