package game

import (
	"fmt"
	"sort"
	"strings"
)

// Performance grading thresholds.
const (
	perfMinTicks        = 60
	perfWastefulShots   = 12 // shots per kill above which a squad is wasteful
	perfStalledFailures = 2
	perfDecisiveRatio   = 1.5 // kills per loss
)

// ---------------------------------------------------------------------------
// PerfTracker: per-squad accumulator
// ---------------------------------------------------------------------------

// PerfTracker accumulates per-tick performance data for one squad from the
// published snapshots.
type PerfTracker struct {
	Name    string
	Side    string
	ID      SquadID
	Kind    string
	Initial int

	TicksAlive      int
	TicksRetreating int
	TicksAttacking  int
	TicksMoving     int

	ShotsFired    int
	HealsReceived int
	HealthHealed  float64
	Retreats      int
	Rallies       int
	OrderFailures int

	MoraleSum float64
	MoraleMin float64

	// End state.
	Kills     int
	Living    int
	Disbanded bool
	Veteran   bool
}

// PerfBook holds one tracker per squad ever seen.
type PerfBook struct {
	trackers map[SquadID]*PerfTracker
	lastTick int
}

// NewPerfBook creates an empty book.
func NewPerfBook() *PerfBook {
	return &PerfBook{trackers: make(map[SquadID]*PerfTracker), lastTick: -1}
}

// Observe folds one snapshot into the trackers. The same tick is counted
// once, however many times it is observed.
func (pb *PerfBook) Observe(s *Snapshot) {
	if s == nil || s.Tick <= pb.lastTick {
		return
	}
	pb.lastTick = s.Tick

	for _, sv := range s.Squads {
		pt, ok := pb.trackers[sv.ID]
		if !ok {
			pt = &PerfTracker{
				Name:      sv.Name,
				Side:      sv.Side,
				ID:        sv.ID,
				Initial:   sv.Initial,
				MoraleMin: sv.Morale,
			}
			pb.trackers[sv.ID] = pt
		}
		pt.update(sv)
	}

	for _, ev := range s.Events {
		pt, ok := pb.trackers[ev.Squad]
		if !ok {
			continue
		}
		switch ev.Kind {
		case EventProjectileFired:
			pt.ShotsFired++
		case EventHeal:
			pt.HealsReceived++
			pt.HealthHealed += ev.Value
		case EventRetreat:
			pt.Retreats++
		case EventRally:
			pt.Rallies++
		case EventOrderUnreachable:
			pt.OrderFailures++
		}
	}
}

func (pt *PerfTracker) update(sv SquadView) {
	pt.Kills = sv.Kills
	pt.Living = sv.Living
	pt.Veteran = sv.Veteran
	if sv.State == SquadDisbanded.String() {
		pt.Disbanded = true
		return
	}
	pt.TicksAlive++
	pt.MoraleSum += sv.Morale
	if sv.Morale < pt.MoraleMin {
		pt.MoraleMin = sv.Morale
	}
	if sv.State == SquadRetreating.String() {
		pt.TicksRetreating++
	}
	switch {
	case strings.HasPrefix(sv.Order, OrderAttack.String()):
		pt.TicksAttacking++
	case strings.HasPrefix(sv.Order, OrderMoveTo.String()):
		pt.TicksMoving++
	}
}

// Tracker returns the tracker for a squad.
func (pb *PerfBook) Tracker(id SquadID) (*PerfTracker, bool) {
	pt, ok := pb.trackers[id]
	return pt, ok
}

// ---------------------------------------------------------------------------
// SquadGrade: computed performance result
// ---------------------------------------------------------------------------

// SquadGrade is the computed performance grade for one squad.
type SquadGrade struct {
	Name     string
	Side     string
	ID       SquadID
	Grade    string  // A+, A, B+, B, C+, C, D, F
	Score    float64 // 0-100
	Survived bool

	LossRatio    float64
	KillsPerLoss float64
	AvgMorale    float64
	MinMorale    float64
	RetreatPct   float64

	GoodTraits []string
	BadTraits  []string
}

// Grades computes grades for every tracked squad, player squads first and
// best score first within a side.
func (pb *PerfBook) Grades() []SquadGrade {
	grades := make([]SquadGrade, 0, len(pb.trackers))
	for _, pt := range pb.trackers {
		grades = append(grades, computeGrade(pt))
	}
	sort.Slice(grades, func(i, j int) bool {
		if grades[i].Side != grades[j].Side {
			return grades[i].Side == SidePlayer.String()
		}
		if grades[i].Score != grades[j].Score {
			return grades[i].Score > grades[j].Score
		}
		return grades[i].ID < grades[j].ID
	})
	return grades
}

func computeGrade(pt *PerfTracker) SquadGrade {
	losses := pt.Initial - pt.Living
	g := SquadGrade{
		Name:      pt.Name,
		Side:      pt.Side,
		ID:        pt.ID,
		Survived:  !pt.Disbanded,
		LossRatio: perfFrac(losses, pt.Initial),
		MinMorale: pt.MoraleMin,
	}
	if losses > 0 {
		g.KillsPerLoss = float64(pt.Kills) / float64(losses)
	} else {
		g.KillsPerLoss = float64(pt.Kills)
	}
	if pt.TicksAlive > 0 {
		g.AvgMorale = pt.MoraleSum / float64(pt.TicksAlive)
		g.RetreatPct = perfFrac(pt.TicksRetreating, pt.TicksAlive) * 100
	}

	// Survival carries half the score, lethality a third, the rest is
	// morale held over the run.
	score := 50*(1-g.LossRatio) + 35*perfClamp(g.KillsPerLoss*50)/100 + 15*min(g.AvgMorale, 1)
	if pt.TicksAlive < perfMinTicks {
		score = min(score, 70)
	}
	score -= float64(pt.OrderFailures) * 3
	g.Score = perfClamp(score)
	g.Grade = PerfLetterGrade(g.Score)
	g.GoodTraits, g.BadTraits = perfDetectTraits(pt, g)
	return g
}

func perfDetectTraits(pt *PerfTracker, g SquadGrade) (good, bad []string) {
	if g.LossRatio == 0 && pt.Kills > 0 {
		good = append(good, "untouched")
	}
	if g.KillsPerLoss >= perfDecisiveRatio && pt.Kills > 0 {
		good = append(good, "lethal")
	}
	if pt.Rallies > 0 {
		good = append(good, "rallied")
	}
	if pt.Veteran {
		good = append(good, "veteran")
	}
	if pt.HealsReceived > 0 {
		good = append(good, "patched_up")
	}

	if pt.Retreats > 0 && pt.Rallies == 0 {
		bad = append(bad, "broke")
	}
	if pt.OrderFailures >= perfStalledFailures {
		bad = append(bad, "stalled")
	}
	if pt.ShotsFired > perfWastefulShots*max(pt.Kills, 1) {
		bad = append(bad, "wasteful")
	}
	if pt.Disbanded {
		bad = append(bad, "wiped_out")
	}
	return good, bad
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

// FormatGrades returns a human-readable performance report.
func FormatGrades(grades []SquadGrade) string {
	var sb strings.Builder
	sb.WriteString("\n=== Squad Performance Grades ===\n")

	currentSide := ""
	for _, g := range grades {
		if g.Side != currentSide {
			currentSide = g.Side
			fmt.Fprintf(&sb, "\n--- %s ---\n", strings.ToUpper(g.Side))
		}
		status := "holding"
		if !g.Survived {
			status = "wiped out"
		}
		fmt.Fprintf(&sb, "  %-3s  %-16s [%s]  loss=%.0f%%  k/l=%.1f  morale avg=%.2f min=%.2f  retreat=%.0f%%\n",
			g.Grade, g.Name, status, g.LossRatio*100, g.KillsPerLoss, g.AvgMorale, g.MinMorale, g.RetreatPct)
		if len(g.GoodTraits) > 0 {
			fmt.Fprintf(&sb, "       Good: %s\n", strings.Join(g.GoodTraits, ", "))
		}
		if len(g.BadTraits) > 0 {
			fmt.Fprintf(&sb, "       Bad:  %s\n", strings.Join(g.BadTraits, ", "))
		}
	}
	return sb.String()
}

// FormatGradesSummary returns a compact per-side summary.
func FormatGradesSummary(grades []SquadGrade) string {
	var sb strings.Builder

	type sideStats struct {
		count     int
		scoreSum  float64
		survived  int
		goodCount map[string]int
		badCount  map[string]int
	}
	sides := map[string]*sideStats{}
	for _, g := range grades {
		ss, ok := sides[g.Side]
		if !ok {
			ss = &sideStats{goodCount: map[string]int{}, badCount: map[string]int{}}
			sides[g.Side] = ss
		}
		ss.count++
		ss.scoreSum += g.Score
		if g.Survived {
			ss.survived++
		}
		for _, t := range g.GoodTraits {
			ss.goodCount[t]++
		}
		for _, t := range g.BadTraits {
			ss.badCount[t]++
		}
	}

	for _, side := range []Side{SidePlayer, SideEnemy} {
		ss, ok := sides[side.String()]
		if !ok {
			continue
		}
		avg := ss.scoreSum / float64(ss.count)
		fmt.Fprintf(&sb, "  %s: avg_score=%.1f (%s)  squads standing=%d/%d\n",
			strings.ToUpper(side.String()), avg, PerfLetterGrade(avg), ss.survived, ss.count)
		if len(ss.goodCount) > 0 {
			fmt.Fprintf(&sb, "    Top good: %s\n", perfTopTraits(ss.goodCount, 4))
		}
		if len(ss.badCount) > 0 {
			fmt.Fprintf(&sb, "    Top bad:  %s\n", perfTopTraits(ss.badCount, 4))
		}
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func perfFrac(num, denom int) float64 {
	if denom <= 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

func perfClamp(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// PerfLetterGrade maps a 0-100 score to a letter grade.
func PerfLetterGrade(score float64) string {
	switch {
	case score >= 93:
		return "A+"
	case score >= 85:
		return "A"
	case score >= 78:
		return "B+"
	case score >= 70:
		return "B"
	case score >= 62:
		return "C+"
	case score >= 55:
		return "C"
	case score >= 45:
		return "D"
	default:
		return "F"
	}
}

func perfTopTraits(counts map[string]int, n int) string {
	type kv struct {
		trait string
		count int
	}
	items := make([]kv, 0, len(counts))
	for k, v := range counts {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].count != items[j].count {
			return items[i].count > items[j].count
		}
		return items[i].trait < items[j].trait
	})
	if len(items) > n {
		items = items[:n]
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s(%d)", it.trait, it.count)
	}
	return strings.Join(parts, ", ")
}
