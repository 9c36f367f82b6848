package hud

import "fmt"

// Speeds are the selectable sim speed multipliers; 0 is paused.
var Speeds = []float64{0, 0.5, 1, 2, 4}

// Slower returns the next lower speed step.
func Slower(cur float64) float64 {
	for i := len(Speeds) - 1; i >= 0; i-- {
		if Speeds[i] < cur {
			return Speeds[i]
		}
	}
	return Speeds[0]
}

// Faster returns the next higher speed step.
func Faster(cur float64) float64 {
	for _, s := range Speeds {
		if s > cur {
			return s
		}
	}
	return Speeds[len(Speeds)-1]
}

// TogglePause flips between paused and 1x.
func TogglePause(cur float64) float64 {
	if cur > 0 {
		return 0
	}
	return 1
}

// SpeedLabel renders a speed for the HUD.
func SpeedLabel(s float64) string {
	switch s {
	case 0:
		return "PAUSED"
	case 1, 2, 4:
		return fmt.Sprintf("%.0fx", s)
	default:
		return fmt.Sprintf("%.1fx", s)
	}
}
