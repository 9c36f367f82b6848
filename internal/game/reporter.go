package game

import (
	"fmt"
	"strings"
)

// reportWindowTicks is the default sliding window for recent-behaviour reports (~10s at 60TPS).
const reportWindowTicks = 600

// --- Snapshot types ---

// SquadReport captures a single squad's state at one point in time.
type SquadReport struct {
	Side      string
	SquadID   SquadID
	Name      string
	Alive     int
	Dead      int
	State     string
	Order     string
	Morale    float64
	Spread    float64 // mean member distance from the anchor
	AvgHealth float64 // fraction of max health over living members
}

// SideReport holds per-side aggregates.
type SideReport struct {
	Alive       int
	Dead        int
	Injured     int // health < max but > 0
	Retreating  int // squads
	Squads      int // non-disbanded
	AvgMorale   float64
	Projectiles int
}

// SimReport is a condensed view of one snapshot.
type SimReport struct {
	Tick    int
	Time    float64
	Player  SideReport
	Enemy   SideReport
	Squads  []SquadReport
	Events  map[EventKind]int
	Mission string
}

// --- Reporter ---

// SimReporter collects periodic reports from published snapshots and can
// produce summaries over sliding time windows.
type SimReporter struct {
	history     []SimReport
	windowTicks int
	verbose     bool
	pending     map[EventKind]int
}

// NewSimReporter creates a reporter with the given window size.
func NewSimReporter(windowTicks int, verbose bool) *SimReporter {
	if windowTicks <= 0 {
		windowTicks = reportWindowTicks
	}
	return &SimReporter{
		windowTicks: windowTicks,
		verbose:     verbose,
		pending:     make(map[EventKind]int),
	}
}

// Tally counts a snapshot's events without taking a report. Call it every
// tick so events between two Collect calls are not lost.
func (r *SimReporter) Tally(s *Snapshot) {
	if s == nil {
		return
	}
	for _, ev := range s.Events {
		r.pending[ev.Kind]++
	}
}

// Collect condenses a snapshot into a report. Call this periodically
// (e.g. every 60 ticks / 1s). Events tallied since the last Collect are
// attached to it.
func (r *SimReporter) Collect(s *Snapshot) {
	if s == nil {
		return
	}
	report := SimReport{
		Tick:   s.Tick,
		Time:   s.Time,
		Events: r.pending,
	}
	r.pending = make(map[EventKind]int)
	if s.Mission != nil {
		report.Mission = s.Mission.Status
	}

	for _, u := range s.Units {
		sr := report.side(u.Side)
		if sr == nil {
			continue
		}
		switch {
		case u.Health <= 0:
			sr.Dead++
		case u.Health < u.MaxHealth:
			sr.Alive++
			sr.Injured++
		default:
			sr.Alive++
		}
	}
	for _, p := range s.Projectiles {
		if owner, ok := s.Unit(p.Owner); ok {
			if sr := report.side(owner.Side); sr != nil {
				sr.Projectiles++
			}
		}
	}

	for _, sv := range s.Squads {
		if sv.State == SquadDisbanded.String() {
			continue
		}
		sq := SquadReport{
			Side:    sv.Side,
			SquadID: sv.ID,
			Name:    sv.Name,
			State:   sv.State,
			Order:   sv.Order,
			Morale:  sv.Morale,
		}
		var health float64
		for _, id := range sv.Members {
			u, ok := s.Unit(id)
			if !ok {
				continue
			}
			if u.Health <= 0 {
				sq.Dead++
				continue
			}
			sq.Alive++
			health += float64(u.Health) / float64(max(u.MaxHealth, 1))
			sq.Spread += u.Pos.Dist(sv.AnchorPos)
		}
		if sq.Alive > 0 {
			sq.AvgHealth = health / float64(sq.Alive)
			sq.Spread /= float64(sq.Alive)
		}
		if sr := report.side(sv.Side); sr != nil {
			sr.Squads++
			sr.AvgMorale += sv.Morale
			if sv.State == SquadRetreating.String() {
				sr.Retreating++
			}
		}
		if r.verbose {
			report.Squads = append(report.Squads, sq)
		}
	}
	for _, sr := range []*SideReport{&report.Player, &report.Enemy} {
		if sr.Squads > 0 {
			sr.AvgMorale /= float64(sr.Squads)
		}
	}

	r.history = append(r.history, report)

	// Prune old history beyond 2x window to prevent unbounded growth.
	maxKeep := r.windowTicks / 60 * 2 // reports per second * 2 windows
	if maxKeep < 100 {
		maxKeep = 100
	}
	if len(r.history) > maxKeep {
		r.history = r.history[len(r.history)-maxKeep:]
	}
}

func (rpt *SimReport) side(name string) *SideReport {
	switch name {
	case SidePlayer.String():
		return &rpt.Player
	case SideEnemy.String():
		return &rpt.Enemy
	}
	return nil
}

// Latest returns the most recent report, or nil if none collected yet.
func (r *SimReporter) Latest() *SimReport {
	if len(r.history) == 0 {
		return nil
	}
	return &r.history[len(r.history)-1]
}

// History returns all collected reports.
func (r *SimReporter) History() []SimReport {
	return r.history
}

// WindowSummary aggregates the reports within the window ending at the
// latest one.
func (r *SimReporter) WindowSummary() *WindowReport {
	if len(r.history) == 0 {
		return nil
	}

	latestTick := r.history[len(r.history)-1].Tick
	cutoff := latestTick - r.windowTicks
	var window []SimReport
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].Tick < cutoff {
			break
		}
		window = append(window, r.history[i])
	}

	n := float64(len(window))
	wr := &WindowReport{
		FromTick:    window[len(window)-1].Tick,
		ToTick:      window[0].Tick,
		SampleCount: len(window),
		Events:      make(map[EventKind]int),
	}
	for _, rpt := range window {
		wr.AvgPlayerAlive += float64(rpt.Player.Alive)
		wr.AvgEnemyAlive += float64(rpt.Enemy.Alive)
		wr.AvgPlayerInjured += float64(rpt.Player.Injured)
		wr.AvgEnemyInjured += float64(rpt.Enemy.Injured)
		wr.AvgPlayerMorale += rpt.Player.AvgMorale
		wr.AvgEnemyMorale += rpt.Enemy.AvgMorale
		wr.AvgPlayerRetreating += float64(rpt.Player.Retreating)
		wr.AvgEnemyRetreating += float64(rpt.Enemy.Retreating)
		wr.AvgProjectiles += float64(rpt.Player.Projectiles + rpt.Enemy.Projectiles)
		for k, c := range rpt.Events {
			wr.Events[k] += c
		}
	}
	wr.AvgPlayerAlive /= n
	wr.AvgEnemyAlive /= n
	wr.AvgPlayerInjured /= n
	wr.AvgEnemyInjured /= n
	wr.AvgPlayerMorale /= n
	wr.AvgEnemyMorale /= n
	wr.AvgPlayerRetreating /= n
	wr.AvgEnemyRetreating /= n
	wr.AvgProjectiles /= n

	latest := window[0]
	wr.PlayerDead = latest.Player.Dead
	wr.EnemyDead = latest.Enemy.Dead
	return wr
}

// WindowReport is an aggregated summary over a time window.
type WindowReport struct {
	FromTick, ToTick int
	SampleCount      int

	AvgPlayerAlive, AvgEnemyAlive           float64
	AvgPlayerInjured, AvgEnemyInjured       float64
	AvgPlayerMorale, AvgEnemyMorale         float64
	AvgPlayerRetreating, AvgEnemyRetreating float64
	AvgProjectiles                          float64

	// Event counts summed over the window.
	Events map[EventKind]int

	// Cumulative at the end of the window.
	PlayerDead, EnemyDead int
}

// Format returns a human-readable multi-line string of the window summary.
func (wr *WindowReport) Format() string {
	if wr == nil {
		return "No data collected yet.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Behaviour Report (T=%d..%d, %d samples) ===\n",
		wr.FromTick, wr.ToTick, wr.SampleCount)

	sb.WriteString("\n--- Casualties & Health ---\n")
	fmt.Fprintf(&sb, "  Player: alive=%.1f  injured=%.1f  dead=%d\n",
		wr.AvgPlayerAlive, wr.AvgPlayerInjured, wr.PlayerDead)
	fmt.Fprintf(&sb, "  Enemy:  alive=%.1f  injured=%.1f  dead=%d\n",
		wr.AvgEnemyAlive, wr.AvgEnemyInjured, wr.EnemyDead)

	sb.WriteString("\n--- Morale ---\n")
	fmt.Fprintf(&sb, "  Player: avg=%.2f (%s)  retreating squads=%.1f\n",
		wr.AvgPlayerMorale, moraleLabel(wr.AvgPlayerMorale), wr.AvgPlayerRetreating)
	fmt.Fprintf(&sb, "  Enemy:  avg=%.2f (%s)  retreating squads=%.1f\n",
		wr.AvgEnemyMorale, moraleLabel(wr.AvgEnemyMorale), wr.AvgEnemyRetreating)

	sb.WriteString("\n--- Activity ---\n")
	fmt.Fprintf(&sb, "  projectiles in flight=%.1f\n", wr.AvgProjectiles)
	for k := EventSquadSpawned; k <= EventAnomaly; k++ {
		if c := wr.Events[k]; c > 0 {
			fmt.Fprintf(&sb, "  %-18s %d\n", k, c)
		}
	}
	return sb.String()
}

func moraleLabel(m float64) string {
	switch {
	case m > 1:
		return "veteran"
	case m > 0.8:
		return "steady"
	case m > 0.5:
		return "shaken"
	case m > 0.25:
		return "wavering"
	default:
		return "broken"
	}
}

// FormatLatest returns a concise view of the most recent collected report.
func (r *SimReporter) FormatLatest() string {
	rpt := r.Latest()
	if rpt == nil {
		return "No data.\n"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Snapshot T=%d (%.1fs) %s ---\n", rpt.Tick, rpt.Time, rpt.Mission)
	fmt.Fprintf(&sb, "Player: alive=%d dead=%d injured=%d squads=%d retreating=%d morale=%.2f\n",
		rpt.Player.Alive, rpt.Player.Dead, rpt.Player.Injured, rpt.Player.Squads, rpt.Player.Retreating, rpt.Player.AvgMorale)
	fmt.Fprintf(&sb, "Enemy:  alive=%d dead=%d injured=%d squads=%d retreating=%d morale=%.2f\n",
		rpt.Enemy.Alive, rpt.Enemy.Dead, rpt.Enemy.Injured, rpt.Enemy.Squads, rpt.Enemy.Retreating, rpt.Enemy.AvgMorale)
	for _, sq := range rpt.Squads {
		fmt.Fprintf(&sb, "  %-6s %-16s %-10s %-16s alive=%d morale=%.2f hp=%.0f%% spread=%.1f\n",
			sq.Side, sq.Name, sq.State, sq.Order, sq.Alive, sq.Morale, sq.AvgHealth*100, sq.Spread)
	}
	return sb.String()
}
