// Package config loads simulation tuning and application settings from
// defaults, an optional JSON or YAML file and SQUADSIM_ environment
// variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Garsondee/Squad-Tactics/internal/game"
)

// EnvPrefix prefixes every environment override, e.g. SQUADSIM_SIM_TICKRATE.
const EnvPrefix = "SQUADSIM"

// App holds the settings that are not simulation tuning.
type App struct {
	LogLevel        string
	LogFile         string
	MissionsDir     string
	CarryoverDriver string
	CarryoverDSN    string
}

// Config is the loaded configuration.
type Config struct {
	Tuning game.Tuning
	App    App
}

func setDefaults(v *viper.Viper) {
	t := game.DefaultTuning()

	v.SetDefault("sim.tickRate", t.TickRate)
	v.SetDefault("sim.maxStepsPerFrame", t.MaxStepsPerFrame)

	v.SetDefault("physics.gravity", t.Gravity)
	v.SetDefault("physics.maxImpulse", t.MaxImpulse)
	v.SetDefault("physics.chainDepthCap", t.ChainDepthCap)
	v.SetDefault("physics.gridCellSize", t.GridCellSize)
	v.SetDefault("physics.debrisDrag", t.DebrisDrag)
	v.SetDefault("physics.debrisBounce", t.DebrisBounce)
	v.SetDefault("physics.debrisMaxBounces", t.DebrisMaxBounces)
	v.SetDefault("physics.debrisRestSpeed", t.DebrisRestSpeed)
	v.SetDefault("physics.obstacleHeight", t.ObstacleHeight)
	v.SetDefault("physics.unitRadius", t.UnitRadius)
	v.SetDefault("physics.unitHeight", t.UnitHeight)
	v.SetDefault("physics.projectileRadius", t.ProjectileRadius)

	v.SetDefault("ai.safetyMargin", t.SafetyMargin)
	v.SetDefault("ai.duressThreshold", t.DuressThreshold)
	v.SetDefault("ai.arriveRadius", t.ArriveRadius)
	v.SetDefault("ai.retreatDistance", t.RetreatDistance)
	v.SetDefault("ai.stallTicks", t.StallTicks)
	v.SetDefault("ai.moraleThreshold", t.MoraleThreshold)
	v.SetDefault("ai.moraleRecovery", t.MoraleRecovery)
	v.SetDefault("ai.rallyThreshold", t.RallyThreshold)
	v.SetDefault("ai.meleeEngageRadius", t.MeleeEngageRadius)
	v.SetDefault("ai.slotSpacing", t.SlotSpacing)
	v.SetDefault("ai.navCellSize", t.NavCellSize)

	v.SetDefault("combat.dyingWindow", t.DyingWindow)

	v.SetDefault("carryover.veteranThreshold", t.VeteranThreshold)
	v.SetDefault("carryover.veteranMoraleBonus", t.VeteranMoraleBonus)
	v.SetDefault("carryover.driver", "sqlite")
	v.SetDefault("carryover.dsn", "carryover.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("missions.dir", "missions")
}

// New returns a viper instance with every default set and environment
// overrides enabled.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (JSON or YAML, by extension) when it is non-empty and
// returns the merged configuration. The tuning is validated.
func Load(file string) (Config, error) {
	v := New()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper extracts a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Tuning: game.Tuning{
			TickRate:         v.GetInt("sim.tickRate"),
			MaxStepsPerFrame: v.GetInt("sim.maxStepsPerFrame"),

			Gravity:          v.GetFloat64("physics.gravity"),
			MaxImpulse:       v.GetFloat64("physics.maxImpulse"),
			ChainDepthCap:    v.GetInt("physics.chainDepthCap"),
			GridCellSize:     v.GetFloat64("physics.gridCellSize"),
			DebrisDrag:       v.GetFloat64("physics.debrisDrag"),
			DebrisBounce:     v.GetFloat64("physics.debrisBounce"),
			DebrisMaxBounces: v.GetInt("physics.debrisMaxBounces"),
			DebrisRestSpeed:  v.GetFloat64("physics.debrisRestSpeed"),
			ObstacleHeight:   v.GetFloat64("physics.obstacleHeight"),
			UnitRadius:       v.GetFloat64("physics.unitRadius"),
			UnitHeight:       v.GetFloat64("physics.unitHeight"),
			ProjectileRadius: v.GetFloat64("physics.projectileRadius"),

			SafetyMargin:      v.GetFloat64("ai.safetyMargin"),
			DuressThreshold:   v.GetFloat64("ai.duressThreshold"),
			StallTicks:        v.GetInt("ai.stallTicks"),
			MoraleThreshold:   v.GetFloat64("ai.moraleThreshold"),
			MoraleRecovery:    v.GetFloat64("ai.moraleRecovery"),
			RallyThreshold:    v.GetFloat64("ai.rallyThreshold"),
			MeleeEngageRadius: v.GetFloat64("ai.meleeEngageRadius"),
			SlotSpacing:       v.GetFloat64("ai.slotSpacing"),
			NavCellSize:       v.GetFloat64("ai.navCellSize"),
			ArriveRadius:      v.GetFloat64("ai.arriveRadius"),
			RetreatDistance:   v.GetFloat64("ai.retreatDistance"),

			DyingWindow: v.GetFloat64("combat.dyingWindow"),

			VeteranThreshold:   v.GetFloat64("carryover.veteranThreshold"),
			VeteranMoraleBonus: v.GetFloat64("carryover.veteranMoraleBonus"),
		},
		App: App{
			LogLevel:        v.GetString("log.level"),
			LogFile:         v.GetString("log.file"),
			MissionsDir:     v.GetString("missions.dir"),
			CarryoverDriver: v.GetString("carryover.driver"),
			CarryoverDSN:    v.GetString("carryover.dsn"),
		},
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return Config{}, err
	}
	switch cfg.App.CarryoverDriver {
	case "sqlite", "postgres", "none":
	default:
		return Config{}, errors.New("carryover.driver must be sqlite, postgres or none")
	}
	return cfg, nil
}
