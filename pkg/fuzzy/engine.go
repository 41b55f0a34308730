package fuzzy

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoRuleFired is returned by Infer when the aggregated output set is empty.
var ErrNoRuleFired = errors.New("no fuzzy rule fired")

// Rule maps (error set AND delta set) to a power set.
type Rule struct {
	Error string `yaml:"error"`
	Delta string `yaml:"delta"`
	Power string `yaml:"power"`
}

// Fallback is the proportional law used when inference degrades.
type Fallback struct {
	Gain float64 `yaml:"gain"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
}

// Apply returns clamp(errMag*Gain, Min, Max).
func (f Fallback) Apply(errMag float64) float64 {
	if math.IsNaN(errMag) {
		return f.Min
	}
	return math.Max(f.Min, math.Min(f.Max, errMag*f.Gain))
}

// RuleBase is the full, declarative definition of an engine.
// RuleBase는 엔진의 입력/출력 변수와 규칙 목록을 선언적으로 정의합니다.
type RuleBase struct {
	Error      Variable `yaml:"error"`
	Delta      Variable `yaml:"delta"`
	Power      Variable `yaml:"power"`
	Rules      []Rule   `yaml:"rules"`
	Resolution float64  `yaml:"resolution"` // output universe sampling step
	Fallback   Fallback `yaml:"fallback"`
}

type compiledRule struct {
	err, delta, power int
}

// Engine evaluates a RuleBase. It holds no mutable state.
// Engine은 가변 상태가 없으므로 여러 고루틴에서 동시에 호출해도 안전합니다.
type Engine struct {
	base    RuleBase
	rules   []compiledRule
	samples []float64   // output universe sample points
	powerMu [][]float64 // membership of each power set at each sample
}

// New validates the rule base and precomputes the output universe.
// 잘못된 규칙(존재하지 않는 집합 참조 등)이 있으면 즉시 에러를 반환합니다 (Fail Fast).
func New(base RuleBase) (*Engine, error) {
	for _, v := range []Variable{base.Error, base.Delta, base.Power} {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	if len(base.Rules) == 0 {
		return nil, fmt.Errorf("rule base is empty")
	}
	if !(base.Resolution > 0) || base.Resolution > base.Power.Max-base.Power.Min {
		return nil, fmt.Errorf("invalid output resolution %g", base.Resolution)
	}
	if base.Fallback.Min > base.Fallback.Max {
		return nil, fmt.Errorf("invalid fallback range [%g, %g]", base.Fallback.Min, base.Fallback.Max)
	}

	rules := make([]compiledRule, 0, len(base.Rules))
	for i, r := range base.Rules {
		cr := compiledRule{
			err:   base.Error.index(r.Error),
			delta: base.Delta.index(r.Delta),
			power: base.Power.index(r.Power),
		}
		if cr.err < 0 || cr.delta < 0 || cr.power < 0 {
			return nil, fmt.Errorf("rule %d (%s, %s -> %s) references an unknown set", i, r.Error, r.Delta, r.Power)
		}
		rules = append(rules, cr)
	}

	n := int(math.Floor((base.Power.Max-base.Power.Min)/base.Resolution+1e-9)) + 1
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = base.Power.Min + float64(i)*base.Resolution
	}
	powerMu := make([][]float64, len(base.Power.Sets))
	for j, s := range base.Power.Sets {
		mu := make([]float64, n)
		for i, x := range samples {
			mu[i] = s.Membership(x)
		}
		powerMu[j] = mu
	}

	return &Engine{
		base:    base,
		rules:   rules,
		samples: samples,
		powerMu: powerMu,
	}, nil
}

// Base returns the rule base the engine was built from.
func (e *Engine) Base() RuleBase {
	return e.base
}

// Infer maps (|error|, delta error) to a crisp power magnitude in the power universe.
// Inputs outside their universes are clamped. If no rule fires Infer
// returns ErrNoRuleFired and the caller decides what to do.
func (e *Engine) Infer(errMag, delta float64) (float64, error) {
	x := e.base.Error.Clamp(errMag)
	d := e.base.Delta.Clamp(delta)

	muErr := make([]float64, len(e.base.Error.Sets))
	for i, s := range e.base.Error.Sets {
		muErr[i] = s.Membership(x)
	}
	muDelta := make([]float64, len(e.base.Delta.Sets))
	for i, s := range e.base.Delta.Sets {
		muDelta[i] = s.Membership(d)
	}

	agg := make([]float64, len(e.samples))
	fired := false
	for _, r := range e.rules {
		strength := math.Min(muErr[r.err], muDelta[r.delta])
		if strength <= 0 {
			continue
		}
		fired = true
		for i, mu := range e.powerMu[r.power] {
			if v := math.Min(strength, mu); v > agg[i] {
				agg[i] = v
			}
		}
	}

	var num, den float64
	for i, mu := range agg {
		num += e.samples[i] * mu
		den += mu
	}
	if !fired || den == 0 {
		return 0, fmt.Errorf("%w: error=%g delta=%g", ErrNoRuleFired, errMag, delta)
	}
	return num / den, nil
}

// Result is the outcome of Decide: either an inferred value or a degraded one.
// Result는 추론 성공(Inferred) 또는 대체 경로(Degraded) 결과를 나타냅니다.
type Result struct {
	Power    float64
	Degraded bool
	Reason   error // set only when Degraded
}

// Inferred wraps a value produced by the rule base.
func Inferred(power float64) Result {
	return Result{Power: power}
}

// Degraded wraps a value produced by the fallback law.
func Degraded(power float64, reason error) Result {
	return Result{Power: power, Degraded: true, Reason: reason}
}

// Decide runs Infer and substitutes the proportional fallback on failure.
func (e *Engine) Decide(errMag, delta float64) Result {
	power, err := e.Infer(errMag, delta)
	if err != nil {
		return Degraded(e.base.Fallback.Apply(errMag), err)
	}
	return Inferred(power)
}
