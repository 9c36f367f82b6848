package game

import (
	"fmt"
	"math"
	"sort"
)

// Capability is a behaviour flag on a unit type. Squad AI branches on these
// flags instead of on concrete types.
type Capability uint8

const (
	// CapAggressive units pursue the nearest hostile and never retreat.
	CapAggressive Capability = 1 << iota
	// CapSupport units heal wounded allies before attacking.
	CapSupport
	// CapFearless units never break; a squad of them never retreats.
	CapFearless
)

// Has reports whether all bits of f are set.
func (c Capability) Has(f Capability) bool { return c&f == f }

// WeaponKind separates contact weapons from projectile launchers.
type WeaponKind int

const (
	WeaponMelee WeaponKind = iota
	WeaponProjectile
)

// ProjectileKind selects projectile behaviour in the physics world.
type ProjectileKind int

const (
	ProjectileArrow ProjectileKind = iota
	ProjectileEnergyBolt
	ProjectileGrenade
)

func (k ProjectileKind) String() string {
	switch k {
	case ProjectileArrow:
		return "arrow"
	case ProjectileEnergyBolt:
		return "energy_bolt"
	case ProjectileGrenade:
		return "grenade"
	default:
		return "unknown"
	}
}

// Explosive reports whether the projectile carries a blast payload.
func (k ProjectileKind) Explosive() bool { return k == ProjectileGrenade }

// Weapon describes a unit type's attack.
type Weapon struct {
	Kind             WeaponKind
	Projectile       ProjectileKind
	Damage           int
	Range            float64
	AttacksPerSecond float64
	ArcAngle         float64 // launch elevation, radians
	BlastRadius      float64
	Impulse          float64
	Fuse             float64 // seconds; grenades only
	FlightTime       float64 // seconds before a non-explosive projectile expires
}

// Cooldown is the seconds between attacks.
func (w Weapon) Cooldown() float64 {
	if w.AttacksPerSecond <= 0 {
		return math.Inf(1)
	}
	return 1 / w.AttacksPerSecond
}

// UnitType is the shared definition of a kind of trooper.
type UnitType struct {
	Name      string
	MaxHealth int
	Speed     float64 // world units per second
	Armor     float64 // fraction of incoming melee damage absorbed
	Weapon    Weapon
	Ammo      int // 0 means unlimited

	HealCharges int
	HealAmount  int
	HealRange   float64

	KnockbackPower      float64
	KnockbackResistance float64
	KnockbackRecovery   float64 // seconds

	Caps     Capability
	Immobile bool
}

func deg(d float64) float64 { return d * math.Pi / 180 }

var unitTypes = map[string]*UnitType{
	// --- Player ---
	"tech_grenadier": {
		Name: "tech_grenadier", MaxHealth: 120, Speed: 3.8, Armor: 0.1, Ammo: 12,
		Weapon: Weapon{
			Kind: WeaponProjectile, Projectile: ProjectileGrenade,
			Damage: 40, Range: 12, AttacksPerSecond: 0.5, ArcAngle: deg(45),
			BlastRadius: 3, Impulse: 12, Fuse: 3,
		},
		KnockbackResistance: 0.2, KnockbackRecovery: 1.2,
	},
	"dimensioneer": {
		Name: "dimensioneer", MaxHealth: 150, Speed: 4.5, Armor: 0.2,
		Weapon: Weapon{Kind: WeaponMelee, Damage: 25, Range: 2, AttacksPerSecond: 1.2},
		KnockbackPower: 0.8, KnockbackResistance: 0.3, KnockbackRecovery: 1.0,
	},
	"portal_archer": {
		Name: "portal_archer", MaxHealth: 90, Speed: 5, Ammo: 40,
		Weapon: Weapon{
			Kind: WeaponProjectile, Projectile: ProjectileArrow,
			Damage: 15, Range: 18, AttacksPerSecond: 0.8, ArcAngle: deg(8), FlightTime: 5,
		},
		KnockbackResistance: 0.1, KnockbackRecovery: 1.5,
	},
	"field_medic": {
		Name: "field_medic", MaxHealth: 90, Speed: 5, Armor: 0.05,
		Weapon:      Weapon{Kind: WeaponMelee, Damage: 6, Range: 1.5, AttacksPerSecond: 1},
		HealCharges: 6, HealAmount: 25, HealRange: 6,
		KnockbackRecovery: 1.5, Caps: CapSupport,
	},

	// --- Enemy ---
	"gromflomite": {
		Name: "gromflomite", MaxHealth: 100, Speed: 4, Armor: 0.1,
		Weapon: Weapon{
			Kind: WeaponProjectile, Projectile: ProjectileEnergyBolt,
			Damage: 12, Range: 15, AttacksPerSecond: 1, ArcAngle: deg(5), FlightTime: 3,
		},
		KnockbackRecovery: 1.5,
	},
	"gromflomite_elite": {
		Name: "gromflomite_elite", MaxHealth: 140, Speed: 4.2, Armor: 0.2,
		Weapon: Weapon{
			Kind: WeaponProjectile, Projectile: ProjectileEnergyBolt,
			Damage: 16, Range: 16, AttacksPerSecond: 1.1, ArcAngle: deg(5), FlightTime: 3,
		},
		KnockbackResistance: 0.2, KnockbackRecovery: 1.2,
	},
	"gromflomite_commander": {
		Name: "gromflomite_commander", MaxHealth: 180, Speed: 4, Armor: 0.3,
		Weapon: Weapon{
			Kind: WeaponProjectile, Projectile: ProjectileEnergyBolt,
			Damage: 18, Range: 16, AttacksPerSecond: 0.9, ArcAngle: deg(5), FlightTime: 3,
		},
		KnockbackResistance: 0.4, KnockbackRecovery: 1.0, Caps: CapFearless,
	},
	"cronenberg": {
		Name: "cronenberg", MaxHealth: 110, Speed: 5.5, Armor: 0.05,
		Weapon:         Weapon{Kind: WeaponMelee, Damage: 18, Range: 1.8, AttacksPerSecond: 1},
		KnockbackPower: 0.6, KnockbackRecovery: 1.5, Caps: CapAggressive,
	},
	"cronenberg_alpha": {
		Name: "cronenberg_alpha", MaxHealth: 220, Speed: 5, Armor: 0.25,
		Weapon:         Weapon{Kind: WeaponMelee, Damage: 30, Range: 2.2, AttacksPerSecond: 0.8},
		KnockbackPower: 1.0, KnockbackResistance: 0.6, KnockbackRecovery: 0.8,
		Caps: CapAggressive | CapFearless,
	},
	"turret": {
		Name: "turret", MaxHealth: 250, Armor: 0.5, Immobile: true,
		Weapon: Weapon{
			Kind: WeaponProjectile, Projectile: ProjectileEnergyBolt,
			Damage: 20, Range: 20, AttacksPerSecond: 0.7, ArcAngle: deg(4), FlightTime: 3,
		},
		KnockbackResistance: 1, KnockbackRecovery: 0.1, Caps: CapFearless,
	},
}

// LookupUnitType returns the named unit type.
func LookupUnitType(name string) (*UnitType, bool) {
	t, ok := unitTypes[name]
	return t, ok
}

// UnitTypeNames lists the registered unit types in sorted order.
func UnitTypeNames() []string {
	names := make([]string, 0, len(unitTypes))
	for n := range unitTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// squadCompositions maps mission squad types onto unit types. Any unit type
// name is also accepted and yields a homogeneous squad.
var squadCompositions = map[string][]string{
	"balanced":  {"tech_grenadier", "dimensioneer", "portal_archer"},
	"archer":    {"portal_archer"},
	"grenadier": {"tech_grenadier"},
	"melee":     {"dimensioneer"},
	"medic":     {"field_medic"},
}

// ComposeSquad returns the unit types for a squad of the given type and size.
// Balanced squads split evenly across the mix; the remainder goes to archers.
func ComposeSquad(kind string, size int) ([]*UnitType, error) {
	if size <= 0 {
		return nil, fmt.Errorf("squad %q: size must be positive, got %d", kind, size)
	}
	mix, ok := squadCompositions[kind]
	if !ok {
		if _, isType := unitTypes[kind]; !isType {
			return nil, fmt.Errorf("squad type %q: %w", kind, ErrUnknownType)
		}
		mix = []string{kind}
	}
	out := make([]*UnitType, 0, size)
	if len(mix) == 1 {
		for i := 0; i < size; i++ {
			out = append(out, unitTypes[mix[0]])
		}
		return out, nil
	}
	per := size / len(mix)
	for _, name := range mix {
		for i := 0; i < per; i++ {
			out = append(out, unitTypes[name])
		}
	}
	for len(out) < size {
		out = append(out, unitTypes["portal_archer"])
	}
	return out, nil
}
