package game

import (
	"fmt"
	"math"
)

// Tuning holds every numeric knob of the simulation. internal/config fills
// it from viper; tests tweak a copy of DefaultTuning.
type Tuning struct {
	// Clock
	TickRate         int
	MaxStepsPerFrame int

	// Physics
	Gravity          float64
	MaxImpulse       float64
	ChainDepthCap    int
	GridCellSize     float64
	DebrisDrag       float64
	DebrisBounce     float64
	DebrisMaxBounces int
	DebrisRestSpeed  float64
	ObstacleHeight   float64
	UnitRadius       float64
	UnitHeight       float64
	ProjectileRadius float64

	// Squad AI
	SafetyMargin      float64
	DuressThreshold   float64
	StallTicks        int
	MoraleThreshold   float64
	MoraleRecovery    float64
	RallyThreshold    float64
	MeleeEngageRadius float64
	SlotSpacing       float64
	NavCellSize       float64
	ArriveRadius      float64
	RetreatDistance   float64

	// Combat
	DyingWindow float64

	// Carryover
	VeteranThreshold   float64
	VeteranMoraleBonus float64
}

// DefaultTuning returns the stock values.
func DefaultTuning() Tuning {
	return Tuning{
		TickRate:         60,
		MaxStepsPerFrame: 8,

		Gravity:          9.8,
		MaxImpulse:       40,
		ChainDepthCap:    8,
		GridCellSize:     4,
		DebrisDrag:       0.99,
		DebrisBounce:     0.5,
		DebrisMaxBounces: 3,
		DebrisRestSpeed:  0.2,
		ObstacleHeight:   3,
		UnitRadius:       0.5,
		UnitHeight:       2,
		ProjectileRadius: 0.25,

		SafetyMargin:      1.5,
		DuressThreshold:   0.35,
		StallTicks:        180,
		MoraleThreshold:   0.5,
		MoraleRecovery:    0.01,
		RallyThreshold:    0.75,
		MeleeEngageRadius: 8,
		SlotSpacing:       2.5,
		NavCellSize:       2,
		ArriveRadius:      1.5,
		RetreatDistance:   6,

		DyingWindow: 1.0,

		VeteranThreshold:   0.25,
		VeteranMoraleBonus: 0.2,
	}
}

// Dt is the fixed timestep in seconds.
func (t Tuning) Dt() float64 { return 1.0 / float64(t.TickRate) }

// Validate rejects values the engine cannot run with.
func (t Tuning) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"gravity", t.Gravity},
		{"maxImpulse", t.MaxImpulse},
		{"gridCellSize", t.GridCellSize},
		{"unitRadius", t.UnitRadius},
		{"unitHeight", t.UnitHeight},
		{"projectileRadius", t.ProjectileRadius},
		{"slotSpacing", t.SlotSpacing},
		{"navCellSize", t.NavCellSize},
		{"arriveRadius", t.ArriveRadius},
	}
	for _, p := range positive {
		if !(p.v > 0) || math.IsInf(p.v, 0) {
			return fmt.Errorf("tuning %s must be positive, got %v", p.name, p.v)
		}
	}
	if t.TickRate <= 0 {
		return fmt.Errorf("tuning tickRate must be positive, got %d", t.TickRate)
	}
	if t.MaxStepsPerFrame <= 0 {
		return fmt.Errorf("tuning maxStepsPerFrame must be positive, got %d", t.MaxStepsPerFrame)
	}
	if t.ChainDepthCap < 1 {
		return fmt.Errorf("tuning chainDepthCap must be at least 1, got %d", t.ChainDepthCap)
	}
	if t.StallTicks < 1 {
		return fmt.Errorf("tuning stallTicks must be at least 1, got %d", t.StallTicks)
	}
	if t.MoraleThreshold < 0 || t.MoraleThreshold > 1 {
		return fmt.Errorf("tuning moraleThreshold must be in [0,1], got %v", t.MoraleThreshold)
	}
	if t.DebrisDrag <= 0 || t.DebrisDrag > 1 {
		return fmt.Errorf("tuning debrisDrag must be in (0,1], got %v", t.DebrisDrag)
	}
	return nil
}
