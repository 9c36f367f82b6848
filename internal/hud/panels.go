package hud

import (
	"fmt"
	"math"
	"strings"

	"github.com/Garsondee/Squad-Tactics/internal/game"
)

// Pick returns the living unit nearest to p within radius world units.
func Pick(s *game.Snapshot, p game.Vec2, radius float64) (game.UnitID, bool) {
	if s == nil {
		return 0, false
	}
	best2 := radius * radius
	var hit game.UnitID
	found := false
	for _, u := range s.Units {
		if u.Health <= 0 {
			continue
		}
		// Compare squared distances; ties keep the lower id.
		if d2 := u.Pos.DistSq(p); d2 <= best2 && (!found || d2 < best2) {
			best2 = d2
			hit = u.ID
			found = true
		}
	}
	return hit, found
}

// Obstacles returns the terrain's static obstacles when it has any.
func Obstacles(t game.Terrain) []game.Rect {
	if ot, ok := t.(interface{ Obstacles() []game.Rect }); ok {
		return ot.Obstacles()
	}
	return nil
}

// HeaderLines is the sim speed, clock and mission block shared by every
// viewer.
func HeaderLines(s *game.Snapshot, speed float64) []string {
	lines := []string{fmt.Sprintf("SIM: %s  P=pause  ,/. speed", SpeedLabel(speed))}
	if s != nil {
		lines = append(lines, fmt.Sprintf("T=%d  %.1fs", s.Tick, s.Time))
	}
	return append(lines, MissionLines(s)...)
}

// StatusLines is the window HUD legend: HeaderLines plus the key map.
func StatusLines(s *game.Snapshot, speed, zoom float64) []string {
	lines := HeaderLines(s, speed)
	lines = append(lines,
		"[H] toggle HUD  [F] slots  [C] copy report",
		"WASD/arrows=pan  scroll=zoom",
		fmt.Sprintf("zoom: %.1fx  click=inspect", zoom),
		"right click: move / attack  [1-3] formation",
	)
	return lines
}

// MissionLines summarises the mission: status, clock and objectives.
func MissionLines(s *game.Snapshot) []string {
	if s == nil || s.Mission == nil {
		return []string{"sandbox"}
	}
	m := s.Mission
	clock := fmt.Sprintf("%.0fs", m.Elapsed)
	if m.Remaining >= 0 {
		clock += fmt.Sprintf(" (%.0fs left)", m.Remaining)
	}
	lines := []string{fmt.Sprintf("%s: %s  %s  waves=%d", m.Name, strings.ToUpper(m.Status), clock, m.WavesLeft)}
	if m.Reason != "" {
		lines = append(lines, "  "+m.Reason)
	}
	for _, o := range m.Objectives {
		mark := " "
		switch o.Status {
		case "complete":
			mark = "+"
		case "failed":
			mark = "x"
		}
		opt := ""
		if !o.Mandatory {
			opt = " (optional)"
		}
		lines = append(lines, fmt.Sprintf("  [%s] %s %s%s", mark, o.ID, o.Kind, opt))
	}
	return lines
}

// UnitLines describes one unit and its squad for the inspector.
func UnitLines(s *game.Snapshot, id game.UnitID) []string {
	if s == nil {
		return nil
	}
	u, ok := s.Unit(id)
	if !ok {
		return []string{fmt.Sprintf("unit %d: gone", id)}
	}
	lines := []string{
		fmt.Sprintf("[ %s %s %s ]", strings.ToUpper(u.Side), u.Label, u.Type),
		fmt.Sprintf("hp %d/%d  %s", u.Health, u.MaxHealth, healthBar(u.Health, u.MaxHealth, 10)),
		fmt.Sprintf("state %s  anim %s", u.State, u.Anim),
		fmt.Sprintf("pos %.1f,%.1f  z=%.1f", u.Pos.X, u.Pos.Y, u.Elevation),
		fmt.Sprintf("facing %.0f deg", u.Facing*180/math.Pi),
		fmt.Sprintf("kills %d  ammo %s", u.Kills, ammoLabel(u.Ammo)),
	}
	if u.Status != "" && u.Status != "-" {
		lines = append(lines, "status "+u.Status)
	}
	lines = append(lines, "")
	lines = append(lines, SquadLines(s, u.Squad)...)
	return lines
}

// SquadLines describes a squad.
func SquadLines(s *game.Snapshot, id game.SquadID) []string {
	if s == nil {
		return nil
	}
	sq, ok := s.Squad(id)
	if !ok {
		return []string{fmt.Sprintf("squad %d: gone", id)}
	}
	vet := ""
	if sq.Veteran {
		vet = " [VET]"
	}
	return []string{
		fmt.Sprintf("squad %s%s", sq.Name, vet),
		fmt.Sprintf("  %s  %s  %s", sq.State, sq.Formation, sq.Order),
		fmt.Sprintf("  living %d/%d  kills %d", sq.Living, sq.Initial, sq.Kills),
		fmt.Sprintf("  morale %.2f %s", sq.Morale, healthBar(int(math.Round(sq.Morale*100)), 100, 10)),
	}
}

func ammoLabel(a int) string {
	if a <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", a)
}

// healthBar renders v/maxV as a fixed-width bar.
func healthBar(v, maxV, width int) string {
	if maxV <= 0 {
		return strings.Repeat(".", width)
	}
	filled := v * width / maxV
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
