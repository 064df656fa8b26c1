// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package optimizer

import (
	"math"
	"testing"

	"github.com/zintix-labs/angfit/errs"
)

// edmSlack 收斂門檻容許的偏移（以 σ 為單位）：EDM <= 2e-4 對應 |Δx| <= 0.02σ
const edmSlack = 0.03

func bounds(n int, lo, hi float64) []Bound {
	b := make([]Bound, n)
	for i := range b {
		b[i] = Bound{Lo: lo, Hi: hi}
	}
	return b
}

// bowl 最小值在 center，曲率 1/sigma²（chi2 型：f = Σ ((x-c)/σ)²）
func bowl(center, sigma []float64) func([]float64) float64 {
	return func(x []float64) float64 {
		s := 0.0
		for i := range x {
			d := (x[i] - center[i]) / sigma[i]
			s += d * d
		}
		return s
	}
}

func TestQuadraticBowl(t *testing.T) {
	c := []float64{0.3, -0.2, 0.9}
	sig := []float64{0.05, 0.1, 0.2}
	res, err := Minimize(bowl(c, sig), Problem{
		Start:  []float64{0, 0, 0},
		Bounds: bounds(3, -0.5, 1.5),
	}, Settings{})
	if err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if !res.Converged || !res.CovOK {
		t.Fatalf("converged=%v covok=%v", res.Converged, res.CovOK)
	}
	if res.Status != StatusConverged || res.SearchStatus == "" {
		t.Fatalf("status=%q search=%q", res.Status, res.SearchStatus)
	}
	for i := range c {
		if math.Abs(res.X[i]-c[i]) > edmSlack*sig[i] {
			t.Fatalf("x[%d]=%v want %v", i, res.X[i], c[i])
		}
		// chi2 型目標 Up=1 時誤差即為 σ
		if math.Abs(res.Errors[i]-sig[i])/sig[i] > 0.02 {
			t.Fatalf("err[%d]=%v want %v", i, res.Errors[i], sig[i])
		}
	}
	if res.F > 2*DefaultTolerance {
		t.Fatalf("f=%v", res.F)
	}
}

func TestOptimumOnBound(t *testing.T) {
	// 無約束最小值在 2.0，超出上界 1.5
	f := bowl([]float64{2.0}, []float64{1})
	res, err := Minimize(f, Problem{Start: []float64{0}, Bounds: bounds(1, -0.5, 1.5)}, Settings{})
	if err != nil && !errs.IsKind(err, errs.KindConvergence) {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.X[0] > 1.5 || res.X[0] < 1.49 {
		t.Fatalf("x=%v want close to upper bound 1.5", res.X[0])
	}
}

func TestFixedParameter(t *testing.T) {
	c := []float64{0.3, 0.7}
	res, err := Minimize(bowl(c, []float64{0.1, 0.1}), Problem{
		Start:  []float64{0, 0.25},
		Bounds: bounds(2, -0.5, 1.5),
		Fixed:  []bool{false, true},
	}, Settings{})
	if err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if res.X[1] != 0.25 {
		t.Fatalf("fixed parameter moved to %v", res.X[1])
	}
	if !res.Fixed[1] || res.Fixed[0] {
		t.Fatalf("fixed mask = %v", res.Fixed)
	}
	if res.Errors[1] != 0 {
		t.Fatalf("fixed parameter error must be 0, got %v", res.Errors[1])
	}
	if math.Abs(res.X[0]-0.3) > edmSlack*0.1 {
		t.Fatalf("x0=%v", res.X[0])
	}
}

func TestAllFixed(t *testing.T) {
	_, err := Minimize(bowl([]float64{0}, []float64{1}), Problem{
		Start:  []float64{0},
		Bounds: bounds(1, -1, 1),
		Fixed:  []bool{true},
	}, Settings{})
	if !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("want config error, got %v", err)
	}
}

func TestInvalidProblem(t *testing.T) {
	f := bowl([]float64{0, 0}, []float64{1, 1})
	if _, err := Minimize(f, Problem{Start: []float64{0, 0}, Bounds: bounds(1, -1, 1)}, Settings{}); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("bounds length mismatch: %v", err)
	}
	if _, err := Minimize(f, Problem{Start: []float64{0, 2}, Bounds: bounds(2, -1, 1)}, Settings{}); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("start out of bounds: %v", err)
	}
	if _, err := Minimize(f, Problem{Start: []float64{0, 0}, Bounds: []Bound{{-1, 1}, {1, 1}}}, Settings{}); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("empty bound: %v", err)
	}
}

func TestInfeasibleStart(t *testing.T) {
	f := func(x []float64) float64 {
		if x[0] < 0.5 {
			return math.NaN()
		}
		return (x[0] - 1) * (x[0] - 1)
	}
	_, err := Minimize(f, Problem{Start: []float64{0}, Bounds: bounds(1, -1, 2)}, Settings{})
	if !errs.IsKind(err, errs.KindDomain) {
		t.Fatalf("want domain error, got %v", err)
	}
}

func TestInfeasibleRegionAvoided(t *testing.T) {
	// x < 0.5 不可行，最小值在 0.6，靠近不可行區
	f := func(x []float64) float64 {
		if x[0] < 0.5 {
			return math.NaN()
		}
		d := (x[0] - 0.6) / 0.05
		return d * d
	}
	res, err := Minimize(f, Problem{Start: []float64{1.2}, Bounds: bounds(1, -1, 2)}, Settings{})
	if err != nil {
		t.Fatalf("minimize: %v", err)
	}
	if math.Abs(res.X[0]-0.6) > edmSlack*0.05 {
		t.Fatalf("x=%v", res.X[0])
	}
}

func TestIterationBudget(t *testing.T) {
	rosen := func(x []float64) float64 {
		a := 1 - x[0]
		b := x[1] - x[0]*x[0]
		return a*a + 100*b*b
	}
	res, err := Minimize(rosen, Problem{
		Start:  []float64{-1.2, 1},
		Bounds: bounds(2, -2, 2),
	}, Settings{MaxIter: 1})
	if !errs.IsKind(err, errs.KindConvergence) {
		t.Fatalf("want convergence failure, got %v", err)
	}
	if res == nil || res.Converged || res.Status == StatusConverged {
		t.Fatalf("result must be reported as not converged")
	}
	if math.IsNaN(res.X[0]) || res.Iterations < 1 {
		t.Fatalf("best point must be populated: %+v", res)
	}
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}.WithDefaults()
	if s.MaxIter != DefaultMaxIter || s.Tolerance != DefaultTolerance || s.Up != 1 || s.Step != DefaultStep {
		t.Fatalf("defaults not applied: %+v", s)
	}
}
