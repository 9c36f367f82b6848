// Package termview renders a running Engine in a terminal with tcell. It
// shares its panels with the window viewer through package hud.
package termview

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/hud"
)

const (
	sidebarWidth = 44
	frameRate    = 30
	toastFrames  = 90
	pickCells    = 1.5 // click tolerance in cells
	panCells     = 4
)

// cellAspect is how many world rows fit in one terminal row relative to a
// column; terminal cells are about twice as tall as they are wide.
const cellAspect = 2.0

var (
	styleBase      = tcell.StyleDefault
	styleObstacle  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleGrid      = tcell.StyleDefault.Foreground(tcell.ColorDarkSlateGray)
	stylePlayer    = tcell.StyleDefault.Foreground(tcell.ColorLime).Bold(true)
	styleEnemy     = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleOrdnance  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleCrater    = tcell.StyleDefault.Foreground(tcell.ColorSaddleBrown)
	styleDebris    = tcell.StyleDefault.Foreground(tcell.ColorMaroon)
	styleShot      = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleObjective = tcell.StyleDefault.Foreground(tcell.ColorFuchsia)
	styleBlast     = tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true)
	stylePanel     = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleHeading   = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleToast     = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
)

// blast is an explosion marker kept for a few frames.
type blast struct {
	pos    game.Vec2
	radius float64
	ttl    int
}

// View drives an Engine from a tcell screen.
type View struct {
	screen tcell.Screen
	eng    *game.Engine
	simLog *game.SimLog
	log    zerolog.Logger

	cam       hud.Camera
	bounds    game.Rect
	obstacles []game.Rect
	mapW      int

	thoughtLog *hud.ThoughtLog
	reporter   *game.SimReporter
	perf       *game.PerfBook
	lastReport int
	pending    []game.Event

	speed       float64
	showLog     bool
	prevButtons tcell.ButtonMask

	selected    game.UnitID
	hasSelected bool

	blasts   []blast
	toast    string
	toastTTL int
	halted   bool
}

// New creates a view on screen. sl should be the SimLog the engine writes
// to. The screen must already be initialised.
func New(screen tcell.Screen, sl *game.SimLog, log zerolog.Logger) *View {
	return &View{
		screen:     screen,
		simLog:     sl,
		log:        log,
		thoughtLog: hud.NewThoughtLog(hud.DefaultLogEntries),
		reporter:   game.NewSimReporter(0, false),
		perf:       game.NewPerfBook(),
		speed:      1,
		showLog:    true,
	}
}

// Observer returns the engine option that feeds this view every tick.
func (v *View) Observer() game.Option {
	return game.WithObserver(func(s *game.Snapshot) {
		v.pending = append(v.pending, s.Events...)
		v.reporter.Tally(s)
		v.perf.Observe(s)
		if s.Tick-v.lastReport >= 60 {
			v.reporter.Collect(s)
			v.lastReport = s.Tick
		}
	})
}

// Attach binds the engine and fits the camera to the map area.
func (v *View) Attach(eng *game.Engine) {
	v.eng = eng
	v.bounds = eng.World().Terrain.Bounds()
	v.obstacles = hud.Obstacles(eng.World().Terrain)
	v.fit()
	v.thoughtLog.FeedSimLog(v.simLog)
}

// fit resizes the camera to the screen, keeping its centre and zoom.
func (v *View) fit() {
	cols, rows := v.screen.Size()
	v.mapW = max(cols-sidebarWidth, cols/2)
	cam := hud.NewCamera(v.bounds, float64(v.mapW), float64(rows)*cellAspect)
	if v.cam.Zoom > 0 {
		cam.X, cam.Y, cam.Zoom = v.cam.X, v.cam.Y, v.cam.Zoom
	}
	v.cam = cam
}

// Speed is the current sim speed multiplier; 0 is paused.
func (v *View) Speed() float64 { return v.speed }

// Selected returns the inspected unit.
func (v *View) Selected() (game.UnitID, bool) { return v.selected, v.hasSelected }

// Step advances the simulation by frameDt seconds of wall time at the
// selected speed.
func (v *View) Step(frameDt float64) {
	if v.speed > 0 && !v.eng.Done() {
		if _, err := v.eng.Advance(v.speed * frameDt); err != nil {
			v.log.Error().Err(err).Msg("simulation halted")
			v.speed = 0
			v.halted = true
			v.notify("HALTED: " + err.Error())
		}
	}
	v.thoughtLog.FeedSimLog(v.simLog)

	live := v.blasts[:0]
	for _, b := range v.blasts {
		if b.ttl--; b.ttl > 0 {
			live = append(live, b)
		}
	}
	v.blasts = live
	for _, ev := range v.pending {
		switch ev.Kind {
		case game.EventExplosion:
			v.blasts = append(v.blasts, blast{pos: ev.Pos, radius: ev.Value, ttl: frameRate / 2})
		case game.EventMissionEnded:
			v.notify("MISSION " + strings.ToUpper(ev.Detail))
		}
	}
	v.pending = v.pending[:0]
	if v.toastTTL > 0 {
		v.toastTTL--
	}
}

func (v *View) notify(msg string) {
	v.toast = msg
	v.toastTTL = toastFrames
}

// HandleEvent applies one input event. It returns false when the user asked
// to quit.
func (v *View) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return v.handleKey(ev)
	case *tcell.EventMouse:
		v.handleMouse(ev)
	case *tcell.EventResize:
		v.screen.Sync()
		v.fit()
	}
	return true
}

func (v *View) handleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape:
		if v.hasSelected {
			v.hasSelected = false
			return true
		}
		return false
	case tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		v.cam.Pan(0, -panCells*cellAspect)
	case tcell.KeyDown:
		v.cam.Pan(0, panCells*cellAspect)
	case tcell.KeyLeft:
		v.cam.Pan(-panCells, 0)
	case tcell.KeyRight:
		v.cam.Pan(panCells, 0)
	case tcell.KeyTab:
		v.cycleSelection()
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case 'p':
			if !v.halted {
				v.speed = hud.TogglePause(v.speed)
			}
		case ',':
			v.speed = hud.Slower(v.speed)
		case '.':
			if !v.halted {
				v.speed = hud.Faster(v.speed)
			}
		case '=', '+':
			v.cam.ZoomBy(1.25)
		case '-':
			v.cam.ZoomBy(1 / 1.25)
		case 'l':
			v.showLog = !v.showLog
		case 'c':
			v.copyReport()
		case '1':
			v.setFormation(game.FormationLine)
		case '2':
			v.setFormation(game.FormationWedge)
		case '3':
			v.setFormation(game.FormationColumn)
		}
	}
	v.cam.Clamp(v.bounds)
	return true
}

func (v *View) handleMouse(ev *tcell.EventMouse) {
	buttons := ev.Buttons()
	pressed := buttons &^ v.prevButtons
	v.prevButtons = buttons

	if buttons&tcell.WheelUp != 0 {
		v.cam.ZoomBy(1.12)
	}
	if buttons&tcell.WheelDown != 0 {
		v.cam.ZoomBy(1 / 1.12)
	}

	x, y := ev.Position()
	if x >= v.mapW {
		return
	}
	p := v.cellToWorld(x, y)
	radius := pickCells / v.cam.Scale()
	if pressed&tcell.Button1 != 0 {
		v.selected, v.hasSelected = hud.Pick(v.eng.Snapshot(), p, radius)
	}
	if pressed&tcell.Button2 != 0 {
		v.command(p, radius)
	}
}

// cycleSelection steps through living player units in ID order.
func (v *View) cycleSelection() {
	snap := v.eng.Snapshot()
	if snap == nil {
		return
	}
	var ids []game.UnitID
	for _, u := range snap.Units {
		if u.Health > 0 && u.Side == game.SidePlayer.String() {
			ids = append(ids, u.ID)
		}
	}
	if len(ids) == 0 {
		v.hasSelected = false
		return
	}
	next := ids[0]
	if v.hasSelected {
		for _, id := range ids {
			if id > v.selected {
				next = id
				break
			}
		}
	}
	v.selected, v.hasSelected = next, true
}

func (v *View) command(p game.Vec2, radius float64) {
	if !v.hasSelected {
		return
	}
	snap := v.eng.Snapshot()
	sq, ok := hud.PlayerSquadOf(snap, v.selected)
	if !ok {
		return
	}
	order := hud.CommandAt(snap, p, radius)
	if err := v.eng.IssueOrder(sq.ID, order); err != nil {
		v.log.Warn().Err(err).Str("squad", sq.Name).Msg("order rejected")
		v.notify(err.Error())
		return
	}
	v.notify(fmt.Sprintf("%s: %s", sq.Name, order))
}

func (v *View) setFormation(ft game.FormationType) {
	if !v.hasSelected {
		return
	}
	sq, ok := hud.PlayerSquadOf(v.eng.Snapshot(), v.selected)
	if !ok {
		return
	}
	if err := v.eng.SetFormation(sq.ID, ft); err != nil {
		v.notify(err.Error())
		return
	}
	v.notify(fmt.Sprintf("%s: formation %s", sq.Name, ft))
}

func (v *View) copyReport() {
	id := game.UnitID(-1)
	if v.hasSelected {
		id = v.selected
	}
	report := hud.DebugReport(v.eng.Snapshot(), v.simLog, id, 0)
	report += "\n" + v.reporter.WindowSummary().Format()
	if err := clipboard.WriteAll(report); err != nil {
		v.log.Warn().Err(err).Msg("copy report")
		v.notify("copy failed: " + err.Error())
		return
	}
	v.notify(fmt.Sprintf("report copied (%d bytes)", len(report)))
}

// Run polls input and redraws at a fixed frame rate until the user quits,
// ctx is cancelled or the screen closes.
func (v *View) Run(ctx context.Context) error {
	v.screen.EnableMouse()
	defer v.screen.DisableMouse()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	frame := time.Second / frameRate
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	v.Draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok || !v.HandleEvent(ev) {
				return nil
			}
		case <-ticker.C:
			v.Step(frame.Seconds())
			v.Draw()
		}
	}
}

// Debrief returns the outcome and squad grades for printing on exit.
func (v *View) Debrief() string {
	return game.DetermineOutcome(v.eng).Format() + game.FormatGrades(v.perf.Grades())
}

// unitGlyph is the first letter of the unit type, upper case for the player.
func unitGlyph(u game.UnitView) rune {
	r := 'u'
	if u.Type != "" {
		r = []rune(u.Type)[0]
	}
	if u.Side == game.SidePlayer.String() {
		return unicode.ToUpper(r)
	}
	return unicode.ToLower(r)
}
