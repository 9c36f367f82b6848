package viewer

import (
	"fmt"
	"math"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/hud"
)

// pickRadiusPx is the click tolerance in screen pixels.
const pickRadiusPx = 12.0

// handleInput processes keys and mouse; toggles are edge-triggered.
func (v *Viewer) handleInput() {
	currentKeys := map[ebiten.Key]bool{}
	pressed := func(k ebiten.Key) bool {
		currentKeys[k] = ebiten.IsKeyPressed(k)
		return currentKeys[k] && !v.prevKeys[k]
	}

	if pressed(ebiten.KeyH) {
		v.showHUD = !v.showHUD
	}
	if pressed(ebiten.KeyF) {
		v.showSlots = !v.showSlots
	}
	if pressed(ebiten.KeyC) {
		v.copyReport()
	}

	// Camera pan: WASD or arrow keys, slower when zoomed in.
	const panPx = 8.0
	if ebiten.IsKeyPressed(ebiten.KeyW) || ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		v.cam.Pan(0, -panPx)
	}
	if ebiten.IsKeyPressed(ebiten.KeyS) || ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		v.cam.Pan(0, panPx)
	}
	if ebiten.IsKeyPressed(ebiten.KeyA) || ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		v.cam.Pan(-panPx, 0)
	}
	if ebiten.IsKeyPressed(ebiten.KeyD) || ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		v.cam.Pan(panPx, 0)
	}

	// Camera zoom: mouse wheel or =/- keys.
	if _, wy := ebiten.Wheel(); wy != 0 {
		v.cam.ZoomBy(math.Pow(1.12, wy))
	}
	if pressed(ebiten.KeyEqual) {
		v.cam.ZoomBy(1.25)
	}
	if pressed(ebiten.KeyMinus) {
		v.cam.ZoomBy(1 / 1.25)
	}
	v.cam.Clamp(v.bounds)

	// Sim speed: P=pause/resume, ,=slower, .=faster.
	if pressed(ebiten.KeyP) && !v.halted {
		v.simSpeed = hud.TogglePause(v.simSpeed)
	}
	if pressed(ebiten.KeyComma) {
		v.simSpeed = hud.Slower(v.simSpeed)
	}
	if pressed(ebiten.KeyPeriod) && !v.halted {
		v.simSpeed = hud.Faster(v.simSpeed)
	}

	for k, ft := range map[ebiten.Key]game.FormationType{
		ebiten.Key1: game.FormationLine,
		ebiten.Key2: game.FormationWedge,
		ebiten.Key3: game.FormationColumn,
	} {
		if pressed(k) {
			v.setFormation(ft)
		}
	}

	left := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	if left && !v.prevLeft {
		if p, ok := v.cursorWorld(); ok {
			v.selected, v.hasSelected = hud.Pick(v.eng.Snapshot(), p, pickRadiusPx/v.cam.Scale())
		}
	}
	v.prevLeft = left

	right := ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight)
	if right && !v.prevRight {
		if p, ok := v.cursorWorld(); ok {
			v.command(p)
		}
	}
	v.prevRight = right

	v.prevKeys = currentKeys
}

// cursorWorld maps the cursor into world space; false outside the playfield.
func (v *Viewer) cursorWorld() (game.Vec2, bool) {
	mx, my := ebiten.CursorPosition()
	sx, sy := float64(mx-v.offX), float64(my-v.offY)
	if sx < 0 || sy < 0 || sx > float64(v.viewW) || sy > float64(v.viewH) {
		return game.Vec2{}, false
	}
	return v.cam.ScreenToWorld(sx, sy), true
}

func (v *Viewer) selectedPlayerSquad() (game.SquadView, bool) {
	if !v.hasSelected {
		return game.SquadView{}, false
	}
	return hud.PlayerSquadOf(v.eng.Snapshot(), v.selected)
}

// command orders the selected player squad to p.
func (v *Viewer) command(p game.Vec2) {
	sq, ok := v.selectedPlayerSquad()
	if !ok {
		return
	}
	order := hud.CommandAt(v.eng.Snapshot(), p, pickRadiusPx/v.cam.Scale())
	if err := v.eng.IssueOrder(sq.ID, order); err != nil {
		v.log.Warn().Err(err).Str("squad", sq.Name).Msg("order rejected")
		v.notify(err.Error())
		return
	}
	v.notify(fmt.Sprintf("%s: %s", sq.Name, order))
}

func (v *Viewer) setFormation(ft game.FormationType) {
	sq, ok := v.selectedPlayerSquad()
	if !ok {
		return
	}
	if err := v.eng.SetFormation(sq.ID, ft); err != nil {
		v.notify(err.Error())
		return
	}
	v.notify(fmt.Sprintf("%s: formation %s", sq.Name, ft))
}
