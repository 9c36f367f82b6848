package viewer

import (
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/hud"
)

const lineH = 14 // basicfont 7x13 plus one pixel

var (
	playerCol   = color.RGBA{R: 70, G: 110, B: 210, A: 255}
	enemyCol    = color.RGBA{R: 210, G: 70, B: 70, A: 255}
	panelBg     = color.RGBA{R: 6, G: 10, B: 6, A: 210}
	panelBorder = color.RGBA{R: 60, G: 100, B: 60, A: 180}
)

func sideColor(side string) color.RGBA {
	if side == game.SidePlayer.String() {
		return playerCol
	}
	return enemyCol
}

func fade(c color.RGBA, a uint8) color.RGBA {
	c.A = a
	return c
}

// Draw renders the battlefield, the thought log and the HUD panels.
func (v *Viewer) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{R: 12, G: 14, B: 12, A: 255})
	snap := v.eng.Snapshot()

	field := screen.SubImage(image.Rect(v.offX, v.offY, v.offX+v.viewW, v.offY+v.viewH)).(*ebiten.Image)
	v.drawWorld(field, snap)

	// Battlefield border frame.
	ox, oy := float32(v.offX), float32(v.offY)
	gw, gh := float32(v.viewW), float32(v.viewH)
	vector.StrokeRect(screen, ox-1, oy-1, gw+2, gh+2, 2.0, color.RGBA{R: 65, G: 90, B: 65, A: 255}, false)
	vector.StrokeRect(screen, ox-3, oy-3, gw+6, gh+6, 1.0, color.RGBA{R: 40, G: 65, B: 40, A: 100}, false)

	v.drawThoughtLog(screen, v.offX+v.viewW+v.offX, v.height)
	if v.showHUD {
		v.drawPanel(screen, hud.StatusLines(snap, v.simSpeed, v.cam.Zoom), v.offX+6, -1, false)
	}
	if v.hasSelected {
		v.drawPanel(screen, hud.UnitLines(snap, v.selected), v.offX+v.viewW-6, -1, true)
	}
	if v.eng.Done() {
		v.drawPanel(screen, strings.Split(strings.TrimRight(v.Debrief(), "\n"), "\n"), v.offX+6, v.offY+6, false)
	}
	if v.toastTTL > 0 {
		v.drawText(screen, v.toast, v.offX+v.viewW/2-len(v.toast)*7/2, v.offY+8, color.White)
	}
}

// worldPt projects a world position into the playfield sub-image.
func (v *Viewer) worldPt(p game.Vec2) (float32, float32) {
	x, y := v.cam.WorldToScreen(p)
	return float32(x) + float32(v.offX), float32(y) + float32(v.offY)
}

func (v *Viewer) worldLen(d float64) float32 { return float32(d * v.cam.Scale()) }

func (v *Viewer) drawWorld(dst *ebiten.Image, snap *game.Snapshot) {
	// Ground.
	x0, y0 := v.worldPt(game.V2(v.bounds.X, v.bounds.Y))
	vector.FillRect(dst, x0, y0, v.worldLen(v.bounds.W), v.worldLen(v.bounds.H), color.RGBA{R: 28, G: 42, B: 28, A: 255}, false)
	v.drawGrid(dst, 10, color.RGBA{R: 40, G: 58, B: 40, A: 255})

	for _, o := range v.obstacles {
		x, y := v.worldPt(game.V2(o.X, o.Y))
		w, h := v.worldLen(o.W), v.worldLen(o.H)
		vector.FillRect(dst, x, y, w, h, color.RGBA{R: 70, G: 70, B: 64, A: 255}, false)
		vector.StrokeRect(dst, x, y, w, h, 1.0, color.RGBA{R: 110, G: 110, B: 100, A: 255}, false)
	}
	if snap == nil {
		return
	}

	v.drawObjectives(dst, snap)
	for _, c := range snap.Craters {
		x, y := v.worldPt(c.XY())
		vector.FillCircle(dst, x, y, v.worldLen(1.5), color.RGBA{R: 18, G: 22, B: 16, A: 255}, true)
	}
	for _, o := range snap.Ordnance {
		x, y := v.worldPt(o.XY())
		vector.FillCircle(dst, x, y, max(2, v.worldLen(0.6)), color.RGBA{R: 230, G: 200, B: 40, A: 255}, true)
	}
	for _, d := range snap.Debris {
		x, y := v.worldPt(d.Pos.XY())
		vector.FillCircle(dst, x, y, max(1.5, v.worldLen(0.4)), color.RGBA{R: 90, G: 80, B: 70, A: 255}, true)
	}

	v.drawSquadIntent(dst, snap)
	if v.showSlots {
		v.drawFormationSlots(dst, snap)
	}
	v.drawUnits(dst, snap)

	for _, p := range snap.Projectiles {
		x, y := v.worldPt(p.Pos.XY())
		tx, ty := v.worldPt(p.Pos.XY().Sub(p.Vel.XY().Scale(0.05)))
		vector.StrokeLine(dst, tx, ty, x, y, 1.5, color.RGBA{R: 255, G: 230, B: 150, A: 220}, true)
	}
	for _, f := range v.flashes {
		x, y := v.worldPt(f.pos)
		a := uint8(int(f.col.A) * f.ttl / flashFrames)
		vector.StrokeCircle(dst, x, y, max(2, v.worldLen(f.radius)), 2.0, fade(f.col, a), true)
	}
}

func (v *Viewer) drawGrid(dst *ebiten.Image, spacing float64, c color.Color) {
	b := v.bounds
	for x := b.X; x <= b.X+b.W; x += spacing {
		x1, y1 := v.worldPt(game.V2(x, b.Y))
		x2, y2 := v.worldPt(game.V2(x, b.Y+b.H))
		vector.StrokeLine(dst, x1, y1, x2, y2, 1.0, c, false)
	}
	for y := b.Y; y <= b.Y+b.H; y += spacing {
		x1, y1 := v.worldPt(game.V2(b.X, y))
		x2, y2 := v.worldPt(game.V2(b.X+b.W, y))
		vector.StrokeLine(dst, x1, y1, x2, y2, 1.0, c, false)
	}
}

func (v *Viewer) drawObjectives(dst *ebiten.Image, snap *game.Snapshot) {
	if snap.Mission == nil {
		return
	}
	for _, o := range snap.Mission.Objectives {
		if o.Position == nil {
			continue
		}
		c := color.RGBA{R: 240, G: 220, B: 80, A: 160}
		if o.Status == "complete" {
			c = color.RGBA{R: 80, G: 220, B: 80, A: 160}
		}
		x, y := v.worldPt(*o.Position)
		vector.StrokeCircle(dst, x, y, v.worldLen(o.Radius), 2.0, c, true)
		v.drawText(dst, o.ID, int(x)+4, int(y)-4, c)
	}
}

func (v *Viewer) drawUnits(dst *ebiten.Image, snap *game.Snapshot) {
	r := max(3, v.worldLen(0.8))
	for _, u := range snap.Units {
		x, y := v.worldPt(u.Pos)
		col := sideColor(u.Side)
		if u.Health <= 0 {
			vector.StrokeLine(dst, x-r, y-r, x+r, y+r, 1.0, fade(col, 90), false)
			vector.StrokeLine(dst, x-r, y+r, x+r, y-r, 1.0, fade(col, 90), false)
			continue
		}
		vector.FillCircle(dst, x, y, r, col, true)
		fx, fy := x+float32(math.Cos(u.Facing))*r*1.8, y+float32(math.Sin(u.Facing))*r*1.8
		vector.StrokeLine(dst, x, y, fx, fy, 1.5, fade(col, 200), true)

		// Health bar above the unit.
		frac := float32(u.Health) / float32(max(u.MaxHealth, 1))
		vector.FillRect(dst, x-r, y-r-4, 2*r, 2, color.RGBA{R: 40, G: 0, B: 0, A: 200}, false)
		vector.FillRect(dst, x-r, y-r-4, 2*r*frac, 2, color.RGBA{R: 60, G: 220, B: 60, A: 220}, false)

		if v.hasSelected && u.ID == v.selected {
			vector.StrokeCircle(dst, x, y, r+3, 1.5, color.White, true)
		}
	}
}

// drawSquadIntent marks each anchor and draws the order: a dashed line to a
// move target or a solid line to the attacked squad's anchor.
func (v *Viewer) drawSquadIntent(dst *ebiten.Image, snap *game.Snapshot) {
	for _, sq := range snap.Squads {
		if sq.State == game.SquadDisbanded.String() {
			continue
		}
		col := sideColor(sq.Side)
		ax, ay := v.worldPt(sq.AnchorPos)
		d := float32(5)
		vector.StrokeLine(dst, ax-d, ay, ax, ay-d, 1.0, col, false)
		vector.StrokeLine(dst, ax, ay-d, ax+d, ay, 1.0, col, false)
		vector.StrokeLine(dst, ax+d, ay, ax, ay+d, 1.0, col, false)
		vector.StrokeLine(dst, ax, ay+d, ax-d, ay, 1.0, col, false)

		label := sq.Name
		if sq.State == game.SquadRetreating.String() {
			label += " (retreating)"
		}
		v.drawText(dst, label, int(ax)+7, int(ay)-14, fade(col, 220))

		var target game.Vec2
		switch {
		case sq.Target != nil:
			target = *sq.Target
		case strings.HasPrefix(sq.Order, game.OrderAttack.String()):
			enemy, ok := snap.Squad(sq.TargetSq)
			if !ok {
				continue
			}
			target = enemy.AnchorPos
		default:
			continue
		}
		tx, ty := v.worldPt(target)
		dashLine(dst, ax, ay, tx, ty, fade(col, 110))
	}
}

// drawFormationSlots renders a faint diamond at each member's slot target.
func (v *Viewer) drawFormationSlots(dst *ebiten.Image, snap *game.Snapshot) {
	w := v.eng.World()
	for _, u := range snap.Units {
		if u.Health <= 0 {
			continue
		}
		slot, ok := w.FormationSlotFor(u.ID)
		if !ok {
			continue
		}
		c := fade(sideColor(u.Side), 60)
		sx, sy := v.worldPt(slot)
		d := float32(4.0)
		vector.StrokeLine(dst, sx-d, sy, sx, sy-d, 1.0, c, false)
		vector.StrokeLine(dst, sx, sy-d, sx+d, sy, 1.0, c, false)
		vector.StrokeLine(dst, sx+d, sy, sx, sy+d, 1.0, c, false)
		vector.StrokeLine(dst, sx, sy+d, sx-d, sy, 1.0, c, false)
		ux, uy := v.worldPt(u.Pos)
		vector.StrokeLine(dst, ux, uy, sx, sy, 1.0, color.RGBA{R: 255, G: 255, B: 255, A: 18}, false)
	}
}

func dashLine(dst *ebiten.Image, x1, y1, x2, y2 float32, c color.Color) {
	dx, dy := x2-x1, y2-y1
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length < 1 {
		return
	}
	const dash = 6
	for s := float32(0); s < length; s += 2 * dash {
		e := min(s+dash, length)
		vector.StrokeLine(dst, x1+dx*s/length, y1+dy*s/length, x1+dx*e/length, y1+dy*e/length, 1.0, c, false)
	}
}

// drawPanel draws lines in a framed box. y < 0 anchors the box to the
// bottom of the playfield; alignRight anchors its right edge at x.
func (v *Viewer) drawPanel(dst *ebiten.Image, lines []string, x, y int, alignRight bool) {
	if len(lines) == 0 {
		return
	}
	const padX, padY, charW = 6, 4, 7
	maxLen := 0
	for _, l := range lines {
		maxLen = max(maxLen, len(l))
	}
	boxW := maxLen*charW + padX*2
	boxH := len(lines)*lineH + padY*2
	if alignRight {
		x -= boxW
	}
	if y < 0 {
		y = v.offY + v.viewH - boxH - 6
	}
	bx, by := float32(x), float32(y)
	vector.FillRect(dst, bx, by, float32(boxW), float32(boxH), panelBg, false)
	vector.StrokeRect(dst, bx, by, float32(boxW), float32(boxH), 1.0, panelBorder, false)
	vector.StrokeLine(dst, bx+1, by+1, bx+float32(boxW)-1, by+1, 1.0, color.RGBA{R: 80, G: 140, B: 80, A: 80}, false)
	for i, line := range lines {
		v.drawText(dst, line, x+padX, y+padY+i*lineH, color.RGBA{R: 210, G: 225, B: 210, A: 255})
	}
}

// drawThoughtLog renders the log panel on the right side of the screen.
func (v *Viewer) drawThoughtLog(dst *ebiten.Image, panelX, panelH int) {
	px := float32(panelX)
	vector.FillRect(dst, px, 0, logPanelWidth, float32(panelH), color.RGBA{R: 10, G: 12, B: 10, A: 248}, false)
	vector.StrokeLine(dst, px, 0, px, float32(panelH), 1.0, color.RGBA{R: 50, G: 70, B: 50, A: 255}, false)
	vector.FillRect(dst, px, 0, logPanelWidth, 18, color.RGBA{R: 20, G: 30, B: 20, A: 255}, false)
	v.drawText(dst, "THOUGHT LOG", panelX+8, 3, color.White)
	vector.StrokeLine(dst, px, 18, px+logPanelWidth, 18, 1.0, color.RGBA{R: 50, G: 80, B: 50, A: 200}, false)

	maxVisible := (panelH - 24) / lineH
	visible := v.thoughtLog.Tail(maxVisible)
	const recent = 3
	maxChars := (logPanelWidth - 16) / 7

	y := 22
	for i, e := range visible {
		isRecent := i >= len(visible)-recent
		if isRecent {
			vector.FillRect(dst, px+2, float32(y), logPanelWidth-4, lineH, color.RGBA{R: 30, G: 40, B: 30, A: 160}, false)
		}
		dot := color.RGBA{R: 150, G: 150, B: 150, A: 255}
		if e.Side == game.SidePlayer.String() || e.Side == game.SideEnemy.String() {
			dot = sideColor(e.Side)
		}
		vector.FillRect(dst, px+5, float32(y+4), 3, 6, dot, false)

		line := e.Line()
		if len(line) > maxChars {
			line = line[:maxChars]
		}
		textCol := color.RGBA{R: 150, G: 160, B: 150, A: 255}
		if isRecent {
			textCol = color.RGBA{R: 235, G: 245, B: 235, A: 255}
		}
		v.drawText(dst, line, panelX+12, y, textCol)
		y += lineH
	}
}

func (v *Viewer) drawText(dst *ebiten.Image, s string, x, y int, c color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x), float64(y))
	op.ColorScale.ScaleWithColor(c)
	text.Draw(dst, s, v.face, op)
}
