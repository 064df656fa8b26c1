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

package hist

import (
	"math"

	"github.com/zintix-labs/angfit/errs"
)

// UniformAxis 等寬分箱的座標軸
//
//   - 第 i 個 bin 涵蓋 [Lo+i·w, Lo+(i+1)·w)，最後一個 bin 包含 Hi
//   - 區間外的值由 Index 回報 ok=false
type UniformAxis struct {
	NBins uint32  `json:"bins" yaml:"bins"`
	Lo    float64 `json:"lo" yaml:"lo"`
	Hi    float64 `json:"hi" yaml:"hi"`
}

// NewUniformAxis 建立並檢查 axis
func NewUniformAxis(nbins uint32, lo, hi float64) (UniformAxis, error) {
	a := UniformAxis{NBins: nbins, Lo: lo, Hi: hi}
	return a, a.Validate()
}

// Validate : nbins >= 1 且 lo < hi（皆為有限值）
func (a UniformAxis) Validate() error {
	if a.NBins == 0 {
		return errs.Configf("axis: nbins must be >= 1")
	}
	if math.IsNaN(a.Lo) || math.IsNaN(a.Hi) || math.IsInf(a.Lo, 0) || math.IsInf(a.Hi, 0) {
		return errs.Configf("axis: bounds must be finite: [%v, %v]", a.Lo, a.Hi)
	}
	if !(a.Lo < a.Hi) {
		return errs.Configf("axis: lo must be < hi: [%v, %v]", a.Lo, a.Hi)
	}
	return nil
}

// Width 單一 bin 寬度
func (a UniformAxis) Width() float64 {
	return (a.Hi - a.Lo) / float64(a.NBins)
}

// Index 回傳 x 所在 bin；x == Hi 歸入最後一個 bin
func (a UniformAxis) Index(x float64) (int, bool) {
	if !(x >= a.Lo && x <= a.Hi) { // NaN 也會落到這裡
		return -1, false
	}
	i := int(math.Floor((x - a.Lo) / a.Width()))
	if i >= int(a.NBins) {
		i = int(a.NBins) - 1
	}
	if i < 0 {
		i = 0
	}
	return i, true
}

// Center 第 i 個 bin 的中心
func (a UniformAxis) Center(i int) float64 {
	return a.Lo + (float64(i)+0.5)*a.Width()
}

// Centers 所有 bin 中心
func (a UniformAxis) Centers() []float64 {
	cs := make([]float64, a.NBins)
	for i := range cs {
		cs[i] = a.Center(i)
	}
	return cs
}
