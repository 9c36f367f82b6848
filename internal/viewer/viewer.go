// Package viewer is the ebiten debug window. It drives an Engine with
// Advance and renders the published snapshots.
package viewer

import (
	"fmt"
	"image/color"

	"github.com/atotto/clipboard"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/rs/zerolog"
	"golang.org/x/image/font/basicfont"

	"github.com/Garsondee/Squad-Tactics/internal/game"
	"github.com/Garsondee/Squad-Tactics/internal/hud"
)

// borderWidth is the pixel gap between the window edge and the battlefield.
const borderWidth = 24

// Default window size.
const (
	DefaultWidth  = 1600
	DefaultHeight = 900
)

const (
	logPanelWidth = 360
	flashFrames   = 20
	toastFrames   = 120
)

// flash is a short-lived explosion or hit marker.
type flash struct {
	pos    game.Vec2
	radius float64
	ttl    int
	col    color.RGBA
}

// Viewer implements ebiten.Game.
type Viewer struct {
	eng    *game.Engine
	simLog *game.SimLog
	log    zerolog.Logger

	width, height int
	viewW, viewH  int // playfield
	offX, offY    int

	cam       hud.Camera
	bounds    game.Rect
	obstacles []game.Rect

	thoughtLog *hud.ThoughtLog
	reporter   *game.SimReporter
	perf       *game.PerfBook
	lastReport int
	pending    []game.Event // events seen by the observer since the last frame

	simSpeed  float64
	showHUD   bool
	showSlots bool
	prevKeys  map[ebiten.Key]bool
	prevLeft  bool
	prevRight bool

	selected    game.UnitID
	hasSelected bool

	flashes []flash
	toast   string
	toastTTL int
	halted  bool

	face text.Face
}

// Observer returns the engine option that feeds this viewer every tick.
// Create the viewer first, then the engine with this option, then Attach.
func (v *Viewer) Observer() game.Option {
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

// New creates a viewer. sl should be the SimLog the engine writes to.
func New(sl *game.SimLog, log zerolog.Logger) *Viewer {
	return &Viewer{
		simLog:     sl,
		log:        log,
		width:      DefaultWidth,
		height:     DefaultHeight,
		viewW:      DefaultWidth - 2*borderWidth - logPanelWidth,
		viewH:      DefaultHeight - 2*borderWidth,
		offX:       borderWidth,
		offY:       borderWidth,
		thoughtLog: hud.NewThoughtLog(hud.DefaultLogEntries),
		reporter:   game.NewSimReporter(0, false),
		perf:       game.NewPerfBook(),
		simSpeed:   1,
		showHUD:    true,
		prevKeys:   make(map[ebiten.Key]bool),
		face:       text.NewGoXFace(basicfont.Face7x13),
	}
}

// Attach binds the engine and fits the camera to its map.
func (v *Viewer) Attach(eng *game.Engine) {
	v.eng = eng
	v.bounds = eng.World().Terrain.Bounds()
	v.obstacles = hud.Obstacles(eng.World().Terrain)
	v.cam = hud.NewCamera(v.bounds, float64(v.viewW), float64(v.viewH))
	v.thoughtLog.FeedSimLog(v.simLog)
}

// Update advances the simulation by one frame at the selected speed.
func (v *Viewer) Update() error {
	v.handleInput()

	if v.simSpeed > 0 && !v.eng.Done() {
		if _, err := v.eng.Advance(v.simSpeed / float64(ebiten.TPS())); err != nil {
			// The halted state stays on screen for inspection.
			v.log.Error().Err(err).Msg("simulation halted")
			v.simSpeed = 0
			v.halted = true
			v.notify("HALTED: " + err.Error())
		}
	}
	v.thoughtLog.FeedSimLog(v.simLog)
	v.consumeEvents()

	if v.toastTTL > 0 {
		v.toastTTL--
	}
	return nil
}

func (v *Viewer) consumeEvents() {
	live := v.flashes[:0]
	for _, f := range v.flashes {
		if f.ttl--; f.ttl > 0 {
			live = append(live, f)
		}
	}
	v.flashes = live

	for _, ev := range v.pending {
		switch ev.Kind {
		case game.EventExplosion:
			v.flashes = append(v.flashes, flash{pos: ev.Pos, radius: ev.Value, ttl: flashFrames,
				col: color.RGBA{R: 255, G: 170, B: 40, A: 200}})
		case game.EventUnitHit:
			v.flashes = append(v.flashes, flash{pos: ev.Pos, radius: 0.8, ttl: flashFrames / 2,
				col: color.RGBA{R: 255, G: 255, B: 255, A: 200}})
		case game.EventMissionEnded:
			v.notify("MISSION " + ev.Detail)
		}
	}
	v.pending = v.pending[:0]
}

func (v *Viewer) notify(msg string) {
	v.toast = msg
	v.toastTTL = toastFrames
}

// copyReport puts the debug report of the selection on the clipboard.
func (v *Viewer) copyReport() {
	report := hud.DebugReport(v.eng.Snapshot(), v.simLog, v.selectedID(), 0)
	report += "\n" + v.reporter.WindowSummary().Format()
	if err := clipboard.WriteAll(report); err != nil {
		v.log.Warn().Err(err).Msg("copy report")
		v.notify("copy failed: " + err.Error())
		return
	}
	v.notify(fmt.Sprintf("report copied (%d bytes)", len(report)))
}

func (v *Viewer) selectedID() game.UnitID {
	if !v.hasSelected {
		return -1
	}
	return v.selected
}

// Layout fixes the logical screen size.
func (v *Viewer) Layout(_, _ int) (int, int) {
	return v.width, v.height
}

// Debrief returns the outcome and squad grades for printing on exit.
func (v *Viewer) Debrief() string {
	if v.eng == nil {
		return ""
	}
	return game.DetermineOutcome(v.eng).Format() + game.FormatGrades(v.perf.Grades())
}
