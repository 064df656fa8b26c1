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

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/hist"
	"github.com/zintix-labs/angfit/sdk/model"
)

// Chi2 分箱最小平方目標函數
//
//	chi2(c) = Σ_i (y_i − I(x_i; c))² / σ_i²
//
// σ_i² == 0 的 bin 不參與加總，其索引記錄在 Excluded。
type Chi2 struct {
	centers  []float64
	values   []float64
	invVar   []float64
	excluded []int
	nbins    int
}

// NewChi2 以密度視圖建立目標函數；內容會被複製，之後修改 d 不影響 Chi2
func NewChi2(d *hist.Density) (*Chi2, error) {
	if d == nil {
		return nil, errs.Configf("chi2: nil density")
	}
	n := len(d.Values)
	c := &Chi2{
		centers: make([]float64, 0, n),
		values:  make([]float64, 0, n),
		invVar:  make([]float64, 0, n),
		nbins:   n,
	}
	for i := 0; i < n; i++ {
		v := d.Variances[i]
		if !(v > 0) || math.IsInf(v, 0) {
			c.excluded = append(c.excluded, i)
			continue
		}
		c.centers = append(c.centers, d.Axis.Center(i))
		c.values = append(c.values, d.Values[i])
		c.invVar = append(c.invVar, 1/v)
	}
	if len(c.values) == 0 {
		return nil, errs.DegenerateBinf("chi2: all %d bins have zero variance", n)
	}
	return c, nil
}

// Eval 模型未定義時回傳 +Inf
func (c *Chi2) Eval(p model.Params) float64 {
	if _, ok := model.C0(p); !ok {
		return math.Inf(1)
	}
	var s kahan
	for i, x := range c.centers {
		r := c.values[i] - model.Intensity(x, p)
		s.add(r * r * c.invVar[i])
	}
	return s.value()
}

// Evaluate 與 Eval 相同，但以 KindDomain 錯誤回報未定義點
func (c *Chi2) Evaluate(p model.Params) (float64, error) {
	if r := model.Radicand(p); r < 0 || math.IsNaN(r) {
		return math.NaN(), errs.Domainf("chi2: normalization radicand %.6g < 0 at %v", r, p)
	}
	return c.Eval(p), nil
}

// Excluded 因變異數為 0 而排除的 bin 索引（遞增）
func (c *Chi2) Excluded() []int {
	out := make([]int, len(c.excluded))
	copy(out, c.excluded)
	return out
}

// Used 參與加總的 bin 數
func (c *Chi2) Used() int { return len(c.values) }

// NBins 原始 bin 數
func (c *Chi2) NBins() int { return c.nbins }

// NDF 自由度 = 參與 bin 數 − 自由參數數，不小於 0
func (c *Chi2) NDF(nFree int) int {
	if d := len(c.values) - nFree; d > 0 {
		return d
	}
	return 0
}
