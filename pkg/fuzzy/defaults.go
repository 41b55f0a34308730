package fuzzy

// Set names of the default elevator rule base.
const (
	ErrVerySmall = "very_small"
	ErrSmall     = "small"
	ErrMedium    = "medium"
	ErrLarge     = "large"

	DeltaNegLarge = "negative_large"
	DeltaNegSmall = "negative_small"
	DeltaZero     = "zero"
	DeltaPosSmall = "positive_small"
	DeltaPosLarge = "positive_large"

	PowerVeryLow  = "very_low"
	PowerLow      = "low"
	PowerMedium   = "medium"
	PowerHigh     = "high"
	PowerVeryHigh = "very_high"
)

// defaultTable holds the consequent per error tier, indexed by delta set
// in the order NL, NS, Z, PS, PL. Every column is non-decreasing from
// very_small to large.
var defaultTable = []struct {
	err   string
	power [5]string
}{
	{ErrVerySmall, [5]string{PowerLow, PowerLow, PowerLow, PowerLow, PowerLow}},
	{ErrSmall, [5]string{PowerLow, PowerMedium, PowerMedium, PowerMedium, PowerHigh}},
	{ErrMedium, [5]string{PowerMedium, PowerMedium, PowerHigh, PowerHigh, PowerVeryHigh}},
	{ErrLarge, [5]string{PowerMedium, PowerHigh, PowerVeryHigh, PowerVeryHigh, PowerVeryHigh}},
}

// DefaultRuleBase returns the tuned elevator rule base.
// Error is the absolute position error in meters, delta the change of that
// magnitude per tick, power the motor power magnitude in percent.
// The outer sets reach past their universes so every clamped input fires
// at least one rule.
func DefaultRuleBase() RuleBase {
	deltas := [5]string{DeltaNegLarge, DeltaNegSmall, DeltaZero, DeltaPosSmall, DeltaPosLarge}

	rules := make([]Rule, 0, len(defaultTable)*len(deltas))
	for _, row := range defaultTable {
		for i, d := range deltas {
			rules = append(rules, Rule{Error: row.err, Delta: d, Power: row.power[i]})
		}
	}

	return RuleBase{
		Error: Variable{
			Name: "error",
			Min:  0,
			Max:  30,
			Sets: []Set{
				Tri(ErrVerySmall, 0, 0, 1),
				Tri(ErrSmall, 0.5, 9, 15),
				Tri(ErrMedium, 9, 15, 21),
				Tri(ErrLarge, 15, 21, 36),
			},
		},
		Delta: Variable{
			Name: "delta_error",
			Min:  -5,
			Max:  5,
			Sets: []Set{
				Tri(DeltaNegLarge, -10, -3, -0.5),
				Tri(DeltaNegSmall, -1, -0.21, -0.05),
				Tri(DeltaZero, -0.1, 0, 0.1),
				Tri(DeltaPosSmall, 0.05, 0.21, 1),
				Tri(DeltaPosLarge, 0.5, 3, 10),
			},
		},
		Power: Variable{
			Name: "motor_power",
			Min:  0,
			Max:  100,
			Sets: []Set{
				Tri(PowerVeryLow, 0, 2, 8),
				Tri(PowerLow, 5, 15, 30),
				Tri(PowerMedium, 25, 45, 65),
				Tri(PowerHigh, 60, 75, 85),
				Tri(PowerVeryHigh, 80, 88, 90),
			},
		},
		Rules:      rules,
		Resolution: 0.5,
		Fallback:   Fallback{Gain: 2.5, Min: 5, Max: 90},
	}
}

// NewDefault builds an Engine from DefaultRuleBase.
func NewDefault() *Engine {
	e, err := New(DefaultRuleBase())
	if err != nil {
		panic("fuzzy: default rule base is invalid: " + err.Error())
	}
	return e
}
