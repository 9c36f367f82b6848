package hud

import "github.com/Garsondee/Squad-Tactics/internal/game"

// PlayerSquadOf returns the squad of unit id when it is a player squad still
// in the fight.
func PlayerSquadOf(s *game.Snapshot, id game.UnitID) (game.SquadView, bool) {
	if s == nil {
		return game.SquadView{}, false
	}
	u, ok := s.Unit(id)
	if !ok || u.Side != game.SidePlayer.String() {
		return game.SquadView{}, false
	}
	sq, ok := s.Squad(u.Squad)
	if !ok || sq.State == game.SquadDisbanded.String() {
		return game.SquadView{}, false
	}
	return sq, true
}

// CommandAt is the order a click at p stands for: attack the squad of an
// enemy within radius of p, otherwise move to p.
func CommandAt(s *game.Snapshot, p game.Vec2, radius float64) game.Order {
	if id, hit := Pick(s, p, radius); hit {
		if u, _ := s.Unit(id); u.Side == game.SideEnemy.String() {
			return game.AttackOrder(u.Squad)
		}
	}
	return game.MoveOrder(p)
}
