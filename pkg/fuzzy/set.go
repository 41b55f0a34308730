// Package fuzzy implements a small Mamdani inference engine with
// triangular membership functions and centroid defuzzification.
// 이 패키지는 삼각형 소속 함수와 무게중심 비퍼지화를 사용하는 Mamdani 추론 엔진을 구현합니다.
//
// All types are immutable after construction and safe for concurrent use.
package fuzzy

import (
	"fmt"
	"math"
)

// Set is a triangular membership function.
// Set은 삼각형 소속 함수입니다. Peak에서 1, Left/Right에서 0 입니다.
type Set struct {
	Name  string  `yaml:"name"`
	Left  float64 `yaml:"left"`
	Peak  float64 `yaml:"peak"`
	Right float64 `yaml:"right"`
}

// Tri is shorthand for building a Set.
func Tri(name string, left, peak, right float64) Set {
	return Set{Name: name, Left: left, Peak: peak, Right: right}
}

// Validate checks Left <= Peak <= Right.
func (s Set) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("fuzzy set has no name")
	}
	if math.IsNaN(s.Left) || math.IsNaN(s.Peak) || math.IsNaN(s.Right) {
		return fmt.Errorf("fuzzy set %q has NaN breakpoint", s.Name)
	}
	if s.Left > s.Peak || s.Peak > s.Right {
		return fmt.Errorf("fuzzy set %q: breakpoints out of order (%g, %g, %g)", s.Name, s.Left, s.Peak, s.Right)
	}
	return nil
}

// Membership returns the degree of x in the set, in [0, 1].
// A side with zero width (Left == Peak or Peak == Right) acts as a shoulder.
func (s Set) Membership(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < s.Left || x > s.Right:
		return 0
	case x == s.Peak:
		return 1
	case x < s.Peak:
		return (x - s.Left) / (s.Peak - s.Left)
	default:
		return (s.Right - x) / (s.Right - s.Peak)
	}
}

// Variable is a linguistic variable: a bounded universe covered by ordered sets.
// Variable은 언어 변수입니다. 유한한 범위와 그 범위를 덮는 집합들로 구성됩니다.
type Variable struct {
	Name string  `yaml:"name"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Sets []Set   `yaml:"sets"`
}

// Validate checks the universe bounds and every set.
func (v Variable) Validate() error {
	if !(v.Min < v.Max) {
		return fmt.Errorf("variable %q: invalid universe [%g, %g]", v.Name, v.Min, v.Max)
	}
	if len(v.Sets) == 0 {
		return fmt.Errorf("variable %q has no sets", v.Name)
	}
	seen := make(map[string]bool, len(v.Sets))
	for _, s := range v.Sets {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("variable %q: duplicate set %q", v.Name, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Clamp bounds x into the universe. NaN passes through unchanged.
func (v Variable) Clamp(x float64) float64 {
	if x < v.Min {
		return v.Min
	}
	if x > v.Max {
		return v.Max
	}
	return x
}

func (v Variable) index(name string) int {
	for i, s := range v.Sets {
		if s.Name == name {
			return i
		}
	}
	return -1
}
