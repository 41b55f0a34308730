package elevator

import "math"

// Coefficients is one (decay, gain) pair of the plant recursion.
type Coefficients struct {
	Decay float64 `yaml:"decay"`
	Gain  float64 `yaml:"gain"`
}

// Plant is the discrete recursive position model with a startup regime and
// a steady-state regime. It is an empirically tuned recursion, not a
// physical transfer function.
// Plant는 기동 구간과 정상 구간 두 가지 계수를 가진 이산 재귀 위치 모델입니다.
type Plant struct {
	Ramp    float64      // seconds; elapsed <= Ramp uses Startup
	Startup Coefficients // 기동 구간 계수
	Steady  Coefficients // 정상 구간 계수
}

// Regime returns the coefficient pair in effect at elapsed seconds.
// There is no interpolation between the two pairs.
func (p Plant) Regime(elapsed float64) Coefficients {
	if elapsed <= p.Ramp {
		return p.Startup
	}
	return p.Steady
}

// Advance returns the next position:
//
//	|dir * position * decay + power/100 * gain|
//
// power is the signed command. A stopped direction holds like up.
//
// For a downward move both terms are negative and the absolute value folds
// the result back above the current position, so the car moves away from a
// lower target. The movement controller's timeout ends such runs.
func (p Plant) Advance(position, power float64, dir Direction, elapsed float64) float64 {
	c := p.Regime(elapsed)
	sign := dir.Sign()
	if sign == 0 {
		sign = 1
	}
	raw := sign*position*c.Decay + power/100*c.Gain
	return math.Abs(raw)
}
