package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultSquadSize   = 5
	defaultReachRadius = 10
	boundsMargin       = 50 // padding around every position when a mission has no bounds
)

// MissionDef is the on-disk mission definition, JSON or YAML.
type MissionDef struct {
	MissionID   string  `json:"mission_id" yaml:"mission_id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	MapName     string  `json:"map_name" yaml:"map_name"`
	Difficulty  string  `json:"difficulty" yaml:"difficulty"`
	TimeLimit   float64 `json:"time_limit" yaml:"time_limit"`

	Objectives   []ObjectiveDef `json:"objectives" yaml:"objectives"`
	PlayerSquads []SquadDef     `json:"player_squads" yaml:"player_squads"`
	EnemyWaves   []WaveDef      `json:"enemy_waves" yaml:"enemy_waves"`

	Bounds    *Rect         `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Obstacles []Rect        `json:"obstacles,omitempty" yaml:"obstacles,omitempty"`
	Ordnance  []OrdnanceDef `json:"ordnance,omitempty" yaml:"ordnance,omitempty"`
}

// ObjectiveDef is one objective entry.
type ObjectiveDef struct {
	ID          string    `json:"id" yaml:"id"`
	Type        string    `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Mandatory   *bool     `json:"mandatory,omitempty" yaml:"mandatory,omitempty"`
	TargetGroup string    `json:"target_group,omitempty" yaml:"target_group,omitempty"`
	Time        float64   `json:"time,omitempty" yaml:"time,omitempty"`
	Position    []float64 `json:"position,omitempty" yaml:"position,omitempty"`
	Radius      float64   `json:"radius,omitempty" yaml:"radius,omitempty"`
}

// IsMandatory defaults to true when the field is absent.
func (o ObjectiveDef) IsMandatory() bool { return o.Mandatory == nil || *o.Mandatory }

// SquadDef describes a player squad or a wave squad.
type SquadDef struct {
	Type      string    `json:"type" yaml:"type"`
	Position  []float64 `json:"position" yaml:"position"`
	Size      int       `json:"size" yaml:"size"`
	Name      string    `json:"name" yaml:"name"`
	Group     string    `json:"group,omitempty" yaml:"group,omitempty"`
	Formation string    `json:"formation,omitempty" yaml:"formation,omitempty"`
}

// WaveDef is a triggered enemy wave.
type WaveDef struct {
	Trigger          string     `json:"trigger" yaml:"trigger"`
	TriggerTime      float64    `json:"trigger_time,omitempty" yaml:"trigger_time,omitempty"`
	TriggerObjective string     `json:"trigger_objective,omitempty" yaml:"trigger_objective,omitempty"`
	Squads           []SquadDef `json:"squads" yaml:"squads"`
}

// OrdnanceDef places an unexploded ordnance marker.
type OrdnanceDef struct {
	Position    []float64 `json:"position" yaml:"position"`
	Damage      int       `json:"damage" yaml:"damage"`
	BlastRadius float64   `json:"blast_radius" yaml:"blast_radius"`
	Impulse     float64   `json:"impulse,omitempty" yaml:"impulse,omitempty"`
}

func (d *MissionDef) configErr(field, format string, args ...any) error {
	return &MissionConfigError{Mission: d.MissionID, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// clone copies d deeply enough that applyDefaults on the copy leaves d
// untouched.
func (d *MissionDef) clone() *MissionDef {
	c := *d
	c.Objectives = append([]ObjectiveDef(nil), d.Objectives...)
	c.PlayerSquads = append([]SquadDef(nil), d.PlayerSquads...)
	c.EnemyWaves = make([]WaveDef, len(d.EnemyWaves))
	for i, wv := range d.EnemyWaves {
		wv.Squads = append([]SquadDef(nil), wv.Squads...)
		c.EnemyWaves[i] = wv
	}
	return &c
}

// applyDefaults fills the optional fields mission files may leave out.
func (d *MissionDef) applyDefaults() {
	fill := func(s *SquadDef, fallback string) {
		if s.Size == 0 {
			s.Size = defaultSquadSize
		}
		if s.Name == "" {
			s.Name = fallback
		}
	}
	for i := range d.PlayerSquads {
		fill(&d.PlayerSquads[i], fmt.Sprintf("Squad %d", i+1))
	}
	for wi := range d.EnemyWaves {
		for si := range d.EnemyWaves[wi].Squads {
			fill(&d.EnemyWaves[wi].Squads[si], fmt.Sprintf("Enemy Wave %d", wi+1))
		}
	}
	for i := range d.Objectives {
		if d.Objectives[i].Type == "reach_position" && d.Objectives[i].Radius == 0 {
			d.Objectives[i].Radius = defaultReachRadius
		}
	}
	if d.Name == "" {
		d.Name = d.MissionID
	}
}

// Validate checks the whole definition. The first problem is returned as a
// *MissionConfigError.
func (d *MissionDef) Validate() error {
	if strings.TrimSpace(d.MissionID) == "" {
		return d.configErr("mission_id", "must not be empty")
	}
	if !finite(d.TimeLimit) || d.TimeLimit < 0 {
		return d.configErr("time_limit", "must be a non-negative number, got %v", d.TimeLimit)
	}
	if d.Bounds != nil && (!(d.Bounds.W > 0) || !(d.Bounds.H > 0)) {
		return d.configErr("bounds", "width and height must be positive")
	}
	for i, o := range d.Obstacles {
		if !(o.W > 0) || !(o.H > 0) {
			return d.configErr(fmt.Sprintf("obstacles[%d]", i), "width and height must be positive")
		}
	}

	if len(d.Objectives) == 0 {
		return d.configErr("objectives", "at least one objective is required")
	}
	ids := make(map[string]bool, len(d.Objectives))
	mandatory := 0
	for i, o := range d.Objectives {
		field := fmt.Sprintf("objectives[%d]", i)
		if o.ID == "" {
			return d.configErr(field+".id", "must not be empty")
		}
		if ids[o.ID] {
			return d.configErr(field+".id", "duplicate objective %q", o.ID)
		}
		ids[o.ID] = true
		if o.IsMandatory() {
			mandatory++
		}
		kind, err := ParseObjectiveKind(o.Type)
		if err != nil {
			return d.configErr(field+".type", "%v", err)
		}
		switch kind {
		case ObjectiveSurviveTime:
			if !finite(o.Time) || o.Time <= 0 {
				return d.configErr(field+".time", "must be positive, got %v", o.Time)
			}
			if o.IsMandatory() && d.TimeLimit > 0 && o.Time > d.TimeLimit {
				return d.configErr(field+".time", "%v exceeds time_limit %v", o.Time, d.TimeLimit)
			}
		case ObjectiveReachPosition:
			if _, err := parsePosition(o.Position); err != nil {
				return d.configErr(field+".position", "%v", err)
			}
			if !finite(o.Radius) || o.Radius <= 0 {
				return d.configErr(field+".radius", "must be positive, got %v", o.Radius)
			}
		case ObjectiveDefeatAll:
			if o.TargetGroup != "" && !d.spawnsGroup(o.TargetGroup) {
				return d.configErr(field+".target_group", "no wave squad carries group %q", o.TargetGroup)
			}
		}
	}
	if mandatory == 0 {
		return d.configErr("objectives", "at least one objective must be mandatory")
	}

	if len(d.PlayerSquads) == 0 {
		return d.configErr("player_squads", "at least one player squad is required")
	}
	for i, s := range d.PlayerSquads {
		if err := d.validateSquad(fmt.Sprintf("player_squads[%d]", i), s); err != nil {
			return err
		}
	}
	for wi, wv := range d.EnemyWaves {
		field := fmt.Sprintf("enemy_waves[%d]", wi)
		kind, err := ParseTriggerKind(wv.Trigger)
		if err != nil {
			return d.configErr(field+".trigger", "%v", err)
		}
		if !finite(wv.TriggerTime) || wv.TriggerTime < 0 {
			return d.configErr(field+".trigger_time", "must be non-negative, got %v", wv.TriggerTime)
		}
		if kind == TriggerObjectiveComplete && !ids[wv.TriggerObjective] {
			return d.configErr(field+".trigger_objective", "unknown objective %q", wv.TriggerObjective)
		}
		if len(wv.Squads) == 0 {
			return d.configErr(field+".squads", "a wave needs at least one squad")
		}
		for si, s := range wv.Squads {
			if err := d.validateSquad(fmt.Sprintf("%s.squads[%d]", field, si), s); err != nil {
				return err
			}
		}
	}
	for i, o := range d.Ordnance {
		field := fmt.Sprintf("ordnance[%d]", i)
		if _, err := parsePosition(o.Position); err != nil {
			return d.configErr(field+".position", "%v", err)
		}
		if err := (Payload{Damage: o.Damage, BlastRadius: o.BlastRadius, Impulse: o.Impulse}).Validate(); err != nil {
			return d.configErr(field, "%v", err)
		}
	}
	return nil
}

func (d *MissionDef) validateSquad(field string, s SquadDef) error {
	if s.Size <= 0 {
		return d.configErr(field+".size", "must be positive, got %d", s.Size)
	}
	if _, err := ComposeSquad(s.Type, s.Size); err != nil {
		return d.configErr(field+".type", "%v", err)
	}
	if _, err := parsePosition(s.Position); err != nil {
		return d.configErr(field+".position", "%v", err)
	}
	if _, err := ParseFormation(s.Formation); err != nil {
		return d.configErr(field+".formation", "%v", err)
	}
	return nil
}

func (d *MissionDef) spawnsGroup(group string) bool {
	for _, wv := range d.EnemyWaves {
		for _, s := range wv.Squads {
			if s.Group == group {
				return true
			}
		}
	}
	return false
}

// parsePosition accepts [x, y] or [x, y, z]; z is ignored since height comes
// from the terrain.
func parsePosition(p []float64) (Vec2, error) {
	if len(p) < 2 || len(p) > 3 {
		return Vec2{}, fmt.Errorf("want [x, y] or [x, y, z], got %d values", len(p))
	}
	for _, v := range p {
		if !finite(v) {
			return Vec2{}, fmt.Errorf("non-finite coordinate %v", v)
		}
	}
	return Vec2{p[0], p[1]}, nil
}

// spec converts the definition into a SquadSpec facing toward.
func (s SquadDef) spec(toward Vec2) SquadSpec {
	pos, _ := parsePosition(s.Position)
	ft, _ := ParseFormation(s.Formation)
	facing := 0.0
	if d := toward.Sub(pos); d.LenSq() > 1e-9 {
		facing = d.Heading()
	}
	return SquadSpec{
		Type:      s.Type,
		Name:      s.Name,
		Position:  pos,
		Size:      s.Size,
		Group:     s.Group,
		Formation: ft,
		Facing:    facing,
	}
}

// Terrain builds the reference terrain for the mission. Without explicit
// bounds the field covers every position in the file plus a margin.
func (d *MissionDef) Terrain() *ObstacleTerrain {
	if d.Bounds != nil {
		return NewObstacleTerrain(*d.Bounds, d.Obstacles)
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(p []float64) {
		v, err := parsePosition(p)
		if err != nil {
			return
		}
		minX, minY = math.Min(minX, v.X), math.Min(minY, v.Y)
		maxX, maxY = math.Max(maxX, v.X), math.Max(maxY, v.Y)
	}
	for _, s := range d.PlayerSquads {
		grow(s.Position)
	}
	for _, wv := range d.EnemyWaves {
		for _, s := range wv.Squads {
			grow(s.Position)
		}
	}
	for _, o := range d.Objectives {
		if o.Type == "reach_position" {
			grow(o.Position)
		}
	}
	if math.IsInf(minX, 1) {
		minX, minY, maxX, maxY = 0, 0, 0, 0
	}
	b := Rect{
		X: minX - boundsMargin,
		Y: minY - boundsMargin,
		W: maxX - minX + 2*boundsMargin,
		H: maxY - minY + 2*boundsMargin,
	}
	return NewObstacleTerrain(b, d.Obstacles)
}

// ParseMission decodes a definition. format is "json" or "yaml"; unknown
// fields are rejected for JSON.
func ParseMission(data []byte, format string) (*MissionDef, error) {
	var def MissionDef
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, &MissionConfigError{Field: "(document)", Reason: err.Error()}
		}
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, &MissionConfigError{Field: "(document)", Reason: err.Error()}
		}
	default:
		return nil, &MissionConfigError{Field: "(document)", Reason: fmt.Sprintf("unsupported format %q", format)}
	}
	def.applyDefaults()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

func formatOf(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "json", true
	case ".yaml", ".yml":
		return "yaml", true
	}
	return "", false
}

// LoadMissionFile reads one definition from disk.
func LoadMissionFile(name string) (*MissionDef, error) {
	format, ok := formatOf(name)
	if !ok {
		return nil, &MissionConfigError{Field: "(file)", Reason: fmt.Sprintf("%s: unknown extension", name)}
	}
	data, err := os.ReadFile(name) // #nosec G304 -- operator-supplied mission path
	if err != nil {
		return nil, fmt.Errorf("reading mission %s: %w", name, err)
	}
	def, err := ParseMission(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return def, nil
}

// LoadMissionDir loads every JSON and YAML definition in dir.
func LoadMissionDir(dir string) ([]*MissionDef, error) {
	return LoadMissionFS(os.DirFS(dir))
}

// LoadMissionFS loads every JSON and YAML definition at the root of fsys,
// sorted by mission ID. Duplicate IDs are an error.
func LoadMissionFS(fsys fs.FS) ([]*MissionDef, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("listing missions: %w", err)
	}
	var defs []*MissionDef
	seen := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		format, ok := formatOf(e.Name())
		if !ok {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Clean(e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading mission %s: %w", e.Name(), err)
		}
		def, err := ParseMission(data, format)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if prev, dup := seen[def.MissionID]; dup {
			return nil, fmt.Errorf("%s: %w", e.Name(), def.configErr("mission_id", "duplicate of %s", prev))
		}
		seen[def.MissionID] = e.Name()
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].MissionID < defs[j].MissionID })
	return defs, nil
}

// wavesFromDef builds the wave director's triggers.
func wavesFromDef(d *MissionDef, toward Vec2) ([]*WaveTrigger, error) {
	triggers := make([]*WaveTrigger, 0, len(d.EnemyWaves))
	for i, wv := range d.EnemyWaves {
		kind, err := ParseTriggerKind(wv.Trigger)
		if err != nil {
			return nil, d.configErr(fmt.Sprintf("enemy_waves[%d].trigger", i), "%v", err)
		}
		t := &WaveTrigger{Index: i, Kind: kind, Time: wv.TriggerTime, Objective: wv.TriggerObjective, FiredAt: -1}
		for _, s := range wv.Squads {
			t.Squads = append(t.Squads, s.spec(toward))
		}
		triggers = append(triggers, t)
	}
	return triggers, nil
}
