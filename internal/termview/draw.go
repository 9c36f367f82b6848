package termview

import (
	"math"

	"github.com/gdamore/tcell/v2"

	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/hud"
)

// worldToCell projects a world position onto the map area.
func (v *View) worldToCell(p game.Vec2) (int, int) {
	sx, sy := v.cam.WorldToScreen(p)
	return int(math.Floor(sx)), int(math.Floor(sy / cellAspect))
}

// cellToWorld is the world position at the centre of a map cell.
func (v *View) cellToWorld(x, y int) game.Vec2 {
	return v.cam.ScreenToWorld(float64(x)+0.5, (float64(y)+0.5)*cellAspect)
}

func (v *View) inMap(x, y int) bool {
	_, rows := v.screen.Size()
	return x >= 0 && y >= 0 && x < v.mapW && y < rows
}

func (v *View) plot(p game.Vec2, r rune, style tcell.Style) {
	if x, y := v.worldToCell(p); v.inMap(x, y) {
		v.screen.SetContent(x, y, r, nil, style)
	}
}

// Draw renders the current snapshot and panels, then shows the screen.
func (v *View) Draw() {
	v.screen.Fill(' ', styleBase)
	snap := v.eng.Snapshot()
	if snap != nil {
		v.drawMap(snap)
	}
	v.drawSidebar(snap)
	if v.toastTTL > 0 {
		v.drawText(1, 0, v.mapW-2, " "+v.toast+" ", styleToast)
	}
	v.screen.Show()
}

func (v *View) drawMap(s *game.Snapshot) {
	_, rows := v.screen.Size()

	// Bounds outline, then obstacles.
	x0, y0 := v.worldToCell(game.V2(v.bounds.X, v.bounds.Y))
	x1, y1 := v.worldToCell(game.V2(v.bounds.X+v.bounds.W, v.bounds.Y+v.bounds.H))
	for x := max(x0, 0); x <= min(x1, v.mapW-1); x++ {
		v.setCell(x, y0, '-', styleGrid)
		v.setCell(x, y1, '-', styleGrid)
	}
	for y := max(y0, 0); y <= min(y1, rows-1); y++ {
		v.setCell(x0, y, '|', styleGrid)
		v.setCell(x1, y, '|', styleGrid)
	}
	for _, r := range v.obstacles {
		ox0, oy0 := v.worldToCell(game.V2(r.X, r.Y))
		ox1, oy1 := v.worldToCell(game.V2(r.X+r.W, r.Y+r.H))
		for y := max(oy0, 0); y <= min(oy1, rows-1); y++ {
			for x := max(ox0, 0); x <= min(ox1, v.mapW-1); x++ {
				v.setCell(x, y, '#', styleObstacle)
			}
		}
	}

	if s.Mission != nil {
		for _, o := range s.Mission.Objectives {
			if o.Position != nil {
				v.plot(*o.Position, '+', styleObjective)
			}
		}
	}
	for _, c := range s.Craters {
		v.plot(c.XY(), 'o', styleCrater)
	}
	for _, o := range s.Ordnance {
		v.plot(o.XY(), '*', styleOrdnance)
	}
	for _, d := range s.Debris {
		v.plot(d.Pos.XY(), '%', styleDebris)
	}
	for _, b := range v.blasts {
		v.drawBlast(b)
	}
	for _, p := range s.Projectiles {
		v.plot(p.Pos.XY(), '.', styleShot)
	}

	for _, u := range s.Units {
		if u.Health <= 0 {
			continue
		}
		style := styleEnemy
		if u.Side == game.SidePlayer.String() {
			style = stylePlayer
		}
		if v.hasSelected && u.ID == v.selected {
			style = style.Reverse(true)
		}
		v.plot(u.Pos, unitGlyph(u), style)
	}
}

// drawBlast rings the blast radius with '~'.
func (v *View) drawBlast(b blast) {
	steps := max(int(b.radius*v.cam.Scale()*4), 8)
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		v.plot(b.pos.Add(game.V2(math.Cos(a)*b.radius, math.Sin(a)*b.radius)), '~', styleBlast)
	}
	v.plot(b.pos, '@', styleBlast)
}

func (v *View) setCell(x, y int, r rune, style tcell.Style) {
	if v.inMap(x, y) {
		v.screen.SetContent(x, y, r, nil, style)
	}
}

func (v *View) drawSidebar(s *game.Snapshot) {
	cols, rows := v.screen.Size()
	x := v.mapW + 1
	w := cols - x
	if w <= 0 {
		return
	}
	for y := 0; y < rows; y++ {
		v.screen.SetContent(v.mapW, y, '│', nil, styleGrid)
	}

	y := 0
	for _, line := range hud.HeaderLines(s, v.speed) {
		y = v.drawText(x, y, w, line, styleHeading)
	}
	for _, line := range keyHelp {
		y = v.drawText(x, y, w, line, stylePanel)
	}
	if v.hasSelected && s != nil {
		y++
		for _, line := range hud.UnitLines(s, v.selected) {
			y = v.drawText(x, y, w, line, stylePanel)
		}
	}
	if v.eng.Done() {
		y++
		y = v.drawText(x, y, w, "debrief: "+game.DetermineOutcome(v.eng).Description, styleHeading)
	}

	if !v.showLog || y >= rows-1 {
		return
	}
	y++
	y = v.drawText(x, y, w, "== thought log ==", styleHeading)
	for _, e := range v.thoughtLog.Tail(rows - y) {
		y = v.drawText(x, y, w, e.Line(), sideStyle(e.Side))
	}
}

var keyHelp = []string{
	"q quit  tab select  esc clear  l log",
	"arrows pan  +/- zoom  c copy report",
	"click inspect  right click move/attack",
	"1-3 formation",
}

func sideStyle(side string) tcell.Style {
	switch side {
	case game.SidePlayer.String():
		return stylePanel.Foreground(tcell.ColorLightGreen)
	case game.SideEnemy.String():
		return stylePanel.Foreground(tcell.ColorLightCoral)
	}
	return stylePanel
}

// drawText writes s at (x, y) clipped to w cells and returns the next row.
func (v *View) drawText(x, y, w int, s string, style tcell.Style) int {
	_, rows := v.screen.Size()
	if y >= rows {
		return y + 1
	}
	i := 0
	for _, r := range s {
		if i >= w {
			break
		}
		v.screen.SetContent(x+i, y, r, nil, style)
		i++
	}
	return y + 1
}
