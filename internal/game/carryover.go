package game

import "fmt"

// CarryoverRecord is what a surviving player squad takes into the next
// mission.
type CarryoverRecord struct {
	SquadName string  `json:"squad_name"`
	Kind      string  `json:"kind"`
	LossRatio float64 `json:"loss_ratio"`
	Kills     int     `json:"kills"`
	Veteran   bool    `json:"veteran"`
}

// BuildCarryover records every player squad that still has living members.
// A squad is veteran when its loss ratio is below threshold. Kills include
// those carried in from earlier missions.
func BuildCarryover(w *World, threshold float64) []CarryoverRecord {
	var out []CarryoverRecord
	for _, sq := range w.Squads.All() {
		if sq.Side != SidePlayer || sq.Disbanded() || sq.LivingCount(w.Units) == 0 {
			continue
		}
		loss := sq.LossRatio(w.Units)
		out = append(out, CarryoverRecord{
			SquadName: sq.Name,
			Kind:      sq.Kind,
			LossRatio: loss,
			Kills:     sq.PriorKills + sq.Kills,
			Veteran:   loss < threshold,
		})
	}
	return out
}

// applyCarryover matches records to freshly spawned player squads by name.
// Veterans start above full morale. Recovery stops at 1, so a bonus spent
// on losses is not regained.
func applyCarryover(w *World, records []CarryoverRecord, bonus float64) int {
	if len(records) == 0 {
		return 0
	}
	byName := make(map[string]CarryoverRecord, len(records))
	for _, r := range records {
		byName[r.SquadName] = r
	}
	applied := 0
	for _, sq := range w.Squads.ActiveBySide(SidePlayer) {
		r, ok := byName[sq.Name]
		if !ok {
			continue
		}
		sq.PriorKills = r.Kills
		if r.Veteran {
			sq.Veteran = true
			sq.Morale = 1 + bonus
		}
		applied++
		w.SimLog.Add(w.Tick, sq.Name, SidePlayer.String(), "squad", "carryover",
			fmt.Sprintf("kills=%d veteran=%v", r.Kills, r.Veteran), float64(r.Kills))
	}
	return applied
}
