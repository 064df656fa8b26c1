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

package objective

import (
	"math"
	"runtime"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/event"
	"github.com/zintix-labs/angfit/sdk/model"
	"golang.org/x/sync/errgroup"
)

// minChunk 每個 worker 至少處理的事件數，太小的切塊只會增加排程成本
const minChunk = 4096

// NLL 未分箱加權 -2·log-likelihood
//
//	L(c) = −2 · Σ_e w_e · log I(x_e; c)
//
// 事件切成連續區塊，每個 worker 持有私有的補償部分和，
// 最後依區塊順序合併；結果與事件順序無關（在浮點誤差內）。
type NLL struct {
	angles  []float64
	weights []float64
	workers int
}

// NewNLL 複製事件的角度與權重。workers <= 0 時使用 runtime.GOMAXPROCS(0)
func NewNLL(evs []event.Event, workers int) (*NLL, error) {
	if len(evs) == 0 {
		return nil, errs.Configf("nll: empty event list")
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	n := &NLL{
		angles:  make([]float64, len(evs)),
		weights: make([]float64, len(evs)),
		workers: workers,
	}
	for i, e := range evs {
		n.angles[i] = e.Angle
		n.weights[i] = e.Weight
	}
	return n, nil
}

// Len 事件數
func (n *NLL) Len() int { return len(n.angles) }

// Eval 遇到 I <= 0 或模型未定義時回傳 +Inf
func (n *NLL) Eval(p model.Params) float64 {
	v, _, ok := n.eval(p)
	if !ok {
		return math.Inf(1)
	}
	return v
}

// Evaluate 以 KindDomain 錯誤回報第一個（索引最小的）非正強度事件
func (n *NLL) Evaluate(p model.Params) (float64, error) {
	if r := model.Radicand(p); r < 0 || math.IsNaN(r) {
		return math.NaN(), errs.Domainf("nll: normalization radicand %.6g < 0 at %v", r, p)
	}
	v, bad, ok := n.eval(p)
	if !ok {
		return math.NaN(), errs.Domainf("nll: non-positive intensity at event %d (angle=%v) for %v", bad, n.angles[bad], p)
	}
	return v, nil
}

func (n *NLL) eval(p model.Params) (float64, int, bool) {
	if _, ok := model.C0(p); !ok {
		return 0, 0, false
	}
	size := len(n.angles)
	chunks := n.workers
	if limit := (size + minChunk - 1) / minChunk; chunks > limit {
		chunks = limit
	}
	if chunks <= 1 {
		s, bad := n.partial(p, 0, size)
		return -2 * s.value(), bad, bad < 0
	}

	parts := make([]kahan, chunks)
	bads := make([]int, chunks)
	step := (size + chunks - 1) / chunks
	var g errgroup.Group
	for c := 0; c < chunks; c++ {
		lo := c * step
		hi := min(lo+step, size)
		g.Go(func() error {
			parts[c], bads[c] = n.partial(p, lo, hi)
			return nil
		})
	}
	_ = g.Wait()

	var total kahan
	for c := range parts {
		if bads[c] >= 0 {
			return 0, bads[c], false
		}
		total.merge(parts[c])
	}
	return -2 * total.value(), -1, true
}

// partial 計算 [lo, hi) 的 Σ w·log I；遇到非正強度回傳其索引，否則回傳 -1
func (n *NLL) partial(p model.Params, lo, hi int) (kahan, int) {
	var s kahan
	for i := lo; i < hi; i++ {
		v := model.Intensity(n.angles[i], p)
		if !(v > 0) {
			return s, i
		}
		s.add(n.weights[i] * math.Log(v))
	}
	return s, -1
}
