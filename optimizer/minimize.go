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
	"slices"
	"sync/atomic"

	"github.com/zintix-labs/angfit/errs"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	DefaultMaxIter      = 1000
	DefaultMaxFuncEvals = 50000
	DefaultTolerance    = 2e-4
	DefaultStep         = 1e-6
	DefaultUp           = 1.0

	hessStep    = 1e-3
	maxRestarts = 5
	maxNewton   = 20
)

// Result.Status 的結果狀態；用盡預算時沿用 gonum 的 IterationLimit / FunctionEvaluationLimit
const (
	StatusConverged         = "Converged"
	StatusEDMAboveTolerance = "EDMAboveTolerance"
)

// Settings 最小化器設定；零值欄位套用預設
type Settings struct {
	MaxIter      int     `json:"max_iter" yaml:"max_iter"`             // 主迭代上限（含起點）
	MaxFuncEvals int     `json:"max_func_evals" yaml:"max_func_evals"` // 目標函數呼叫上限（含數值微分）
	Tolerance    float64 `json:"tolerance" yaml:"tolerance"`           // EDM 門檻 = Tolerance·Up
	Step         float64 `json:"step" yaml:"step"`                     // 內部座標有限差分步長
	Up           float64 `json:"up" yaml:"up"`                         // 1σ 對應的目標函數增量
	PrintLevel   int     `json:"print_level" yaml:"print_level"`       // >= 1 時逐步列印 gonum 迭代紀錄
}

// WithDefaults 回傳補齊預設值後的設定
func (s Settings) WithDefaults() Settings {
	if s.MaxIter <= 0 {
		s.MaxIter = DefaultMaxIter
	}
	if s.MaxFuncEvals <= 0 {
		s.MaxFuncEvals = DefaultMaxFuncEvals
	}
	if !(s.Tolerance > 0) {
		s.Tolerance = DefaultTolerance
	}
	if !(s.Step > 0) {
		s.Step = DefaultStep
	}
	if !(s.Up > 0) {
		s.Up = DefaultUp
	}
	return s
}

// Result 一次最小化的結果。未收斂時仍會填入目前最佳點
type Result struct {
	X          []float64     // 外部座標最佳點（含固定參數）
	Errors     []float64     // 外部座標誤差，固定參數為 0
	Fixed      []bool        // 與 Problem.Fixed 相同，長度為全部參數數
	Cov        *mat.SymDense // 外部座標共變異矩陣，固定參數的行列為 0
	F          float64
	EDM        float64
	Iterations int
	FuncEvals  int
	Converged  bool
	CovOK      bool   // false 表示 Hessian 非正定，誤差改用對角近似
	Status     string // 依 EDM 判定的結果

	// SearchStatus gonum 最後一輪線搜尋的終止狀態，收斂與否以 Status 為準
	SearchStatus string
}

// Minimize 在 prob 的邊界內最小化 f。
//
// f 回傳 NaN 或 ±Inf 視為不可行點：線搜尋不會接受它作為新位置。
// 錯誤分類：
//   - KindConfig      : 維度不符、邊界非法、起點越界、全部參數固定
//   - KindDomain      : 起點的目標函數值不可行
//   - KindConvergence : 用盡預算仍未達 EDM 門檻；此時 Result 同時回傳
func Minimize(f func([]float64) float64, prob Problem, set Settings) (*Result, error) {
	free, err := prob.validate()
	if err != nil {
		return nil, err
	}
	set = set.WithDefaults()
	m := &mapper{prob: &prob, free: free}

	var nEval atomic.Int64
	fint := func(u []float64) float64 {
		nEval.Add(1)
		v := f(m.external(nil, u))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.Inf(1)
		}
		return v
	}

	u := m.internal()
	best := fint(u)
	if math.IsInf(best, 1) {
		return nil, errs.Domainf("minimize: objective undefined at start %v", m.external(nil, u))
	}

	grad := func(dst, x []float64) { gradient(dst, fint, x, set.Step) }
	exhausted := func() bool { return nEval.Load() >= int64(set.MaxFuncEvals) }
	tol := set.Tolerance * set.Up

	var (
		iters   int
		status  = optimize.NotTerminated
		lastErr error
		cv      curvature
	)
	for attempt := 0; attempt < maxRestarts; attempt++ {
		if iters >= set.MaxIter {
			status = optimize.IterationLimit
			break
		}
		if exhausted() {
			status = optimize.FunctionEvaluationLimit
			break
		}
		opts := &optimize.Settings{
			MajorIterations: set.MaxIter - iters,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-10,
				Relative:   1e-10,
				Iterations: 20,
			},
			GradientThreshold: 1e-9,
		}
		if set.PrintLevel >= 1 {
			opts.Recorder = optimize.NewPrinter()
		}
		p := optimize.Problem{
			Func: fint,
			Grad: grad,
			Status: func() (optimize.Status, error) {
				if exhausted() {
					return optimize.FunctionEvaluationLimit, nil
				}
				return optimize.NotTerminated, nil
			},
		}
		res, err := optimize.Minimize(p, u, opts, &optimize.BFGS{Linesearcher: &optimize.Backtracking{}})
		if res == nil {
			return nil, errs.Wrap(err, "minimize: gonum optimize")
		}
		iters += res.MajorIterations
		status = res.Status
		lastErr = err
		if res.F < best && len(res.X) == len(u) {
			best = res.F
			copy(u, res.X)
		}

		cv = curvatureAt(fint, u, set.Step)
		u, best, cv, iters = newton(fint, u, best, cv, set, iters, tol, exhausted)
		if cv.edm <= tol {
			break
		}
		if status == optimize.IterationLimit || status == optimize.FunctionEvaluationLimit {
			break
		}
	}
	if cv.g == nil {
		cv = curvatureAt(fint, u, set.Step)
	}

	r := m.result(u, best, cv, set.Up)
	r.Iterations = iters
	r.FuncEvals = int(nEval.Load())
	r.Converged = cv.edm <= tol
	r.SearchStatus = status.String()
	switch {
	case r.Converged:
		r.Status = StatusConverged
	case status == optimize.IterationLimit || status == optimize.FunctionEvaluationLimit:
		r.Status = status.String()
	default:
		r.Status = StatusEDMAboveTolerance
	}
	if !r.Converged {
		e := errs.Convergencef("minimize: not converged after %d iterations, %d evaluations (edm=%.3g, tol=%.3g, status=%s, search=%s)",
			r.Iterations, r.FuncEvals, r.EDM, tol, r.Status, r.SearchStatus)
		e.Cause = lastErr
		return r, e
	}
	return r, nil
}

// newton 以目前 Hessian 做牛頓步修正 BFGS 停在淺谷的情況；每步計一次迭代
func newton(fint func([]float64) float64, u []float64, best float64, cv curvature, set Settings, iters int, tol float64, exhausted func() bool) ([]float64, float64, curvature, int) {
	n := len(u)
	dir := mat.NewVecDense(n, nil)
	trial := make([]float64, n)
	for k := 0; k < maxNewton; k++ {
		if cv.edm <= tol || cv.inv == nil || iters >= set.MaxIter || exhausted() {
			break
		}
		dir.MulVec(cv.inv, mat.NewVecDense(n, cv.g))
		moved := false
		for step := 1.0; step > 1e-6; step /= 2 {
			for i := range trial {
				trial[i] = u[i] - step*dir.AtVec(i)
			}
			if v := fint(trial); v < best {
				best = v
				copy(u, trial)
				moved = true
				break
			}
		}
		iters++
		if !moved {
			break
		}
		cv = curvatureAt(fint, u, set.Step)
	}
	return u, best, cv, iters
}

// curvature 內部座標上的梯度、Hessian 與其逆
type curvature struct {
	g   []float64
	h   *mat.SymDense
	inv *mat.SymDense // Hessian 正定時才有值
	edm float64
}

func curvatureAt(fint func([]float64) float64, u []float64, step float64) curvature {
	n := len(u)
	cv := curvature{g: make([]float64, n), h: mat.NewSymDense(n, nil)}
	gradient(cv.g, fint, u, step)
	fd.Hessian(cv.h, fint, u, &fd.Settings{Formula: fd.Central, Step: hessStep})

	finite := true
	for i := 0; i < n && finite; i++ {
		for j := i; j < n; j++ {
			if v := cv.h.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				finite = false
				break
			}
		}
	}
	if finite {
		var ch mat.Cholesky
		if ch.Factorize(cv.h) {
			inv := mat.NewSymDense(n, nil)
			if err := ch.InverseTo(inv); err == nil {
				cv.inv = inv
				g := mat.NewVecDense(n, cv.g)
				cv.edm = 0.5 * mat.Inner(g, inv, g)
				return cv
			}
		}
	}

	// 非正定：以對角元素估計
	for i := 0; i < n; i++ {
		d := math.Abs(cv.h.At(i, i))
		switch {
		case cv.g[i] == 0:
		case d == 0 || math.IsNaN(d) || math.IsInf(d, 0):
			cv.edm = math.Inf(1)
		default:
			cv.edm += 0.5 * cv.g[i] * cv.g[i] / d
		}
	}
	return cv
}

// result 把內部座標的解與曲率轉成外部座標的 Result
func (m *mapper) result(u []float64, f float64, cv curvature, up float64) *Result {
	n := len(m.prob.Start)
	r := &Result{
		X:      m.external(nil, u),
		Errors: make([]float64, n),
		Cov:    mat.NewSymDense(n, nil),
		F:      f,
		EDM:    cv.edm,
		CovOK:  cv.inv != nil,
		Fixed:  make([]bool, n),
	}
	for i := range r.Fixed {
		r.Fixed[i] = m.prob.fixed(i)
	}
	jac := m.jacobian(u)
	for a, i := range m.free {
		for b := a; b < len(m.free); b++ {
			j := m.free[b]
			var c float64
			switch {
			case cv.inv != nil:
				c = 2 * up * cv.inv.At(a, b)
			case a == b:
				if d := math.Abs(cv.h.At(a, a)); d > 0 && !math.IsInf(d, 0) {
					c = 2 * up / d
				}
			}
			r.Cov.SetSym(i, j, jac[a]*jac[b]*c)
		}
		if v := r.Cov.At(i, i); v > 0 {
			r.Errors[i] = math.Sqrt(v)
		}
	}
	return r
}

// gradient 中央差分；某分量因不可行點而非有限時改用單邊差分
func gradient(dst []float64, f func([]float64) float64, u []float64, step float64) {
	fd.Gradient(dst, f, u, &fd.Settings{Formula: fd.Central, Step: step})
	f0, have := 0.0, false
	for i, v := range dst {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			continue
		}
		if !have {
			f0, have = f(u), true
		}
		x := slices.Clone(u)
		x[i] = u[i] + step
		if fp := f(x); !math.IsInf(fp, 1) && !math.IsInf(f0, 1) {
			dst[i] = (fp - f0) / step
			continue
		}
		x[i] = u[i] - step
		if fm := f(x); !math.IsInf(fm, 1) && !math.IsInf(f0, 1) {
			dst[i] = (f0 - fm) / step
			continue
		}
		dst[i] = 0
	}
}
