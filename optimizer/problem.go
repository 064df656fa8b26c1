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

// Package optimizer 提供有界的變尺度（quasi-Newton）最小化器。
//
// 自由參數先經過正弦變換映射到無界的內部座標：
//
//	x = lo + (hi − lo)·(sin u + 1)/2
//
// 在內部座標上以 gonum BFGS + backtracking 線搜尋求解，因此任何試探點都落在邊界內。
// 收斂以估計距離 EDM = ½·gᵀH⁻¹g 判定；誤差由 Hessian 的逆矩陣導出。
package optimizer

import (
	"math"
	"strconv"

	"github.com/zintix-labs/angfit/errs"
)

// Bound 參數的閉區間邊界
type Bound struct {
	Lo float64 `json:"lo" yaml:"lo"`
	Hi float64 `json:"hi" yaml:"hi"`
}

func (b Bound) valid() bool {
	return !math.IsNaN(b.Lo) && !math.IsNaN(b.Hi) &&
		!math.IsInf(b.Lo, 0) && !math.IsInf(b.Hi, 0) && b.Lo < b.Hi
}

// Problem 描述一次最小化
//
//   - Start  : 起點（外部座標），必須在 Bounds 內
//   - Bounds : 每個參數一組
//   - Fixed  : true 的參數停在 Start 不動；nil 表示全部自由
//   - Names  : 只用於錯誤訊息與列印，可為 nil
type Problem struct {
	Start  []float64
	Bounds []Bound
	Fixed  []bool
	Names  []string
}

func (p *Problem) name(i int) string {
	if i < len(p.Names) && p.Names[i] != "" {
		return p.Names[i]
	}
	return "p" + strconv.Itoa(i)
}

func (p *Problem) fixed(i int) bool {
	return i < len(p.Fixed) && p.Fixed[i]
}

// validate 檢查維度與邊界並回傳自由參數索引
func (p *Problem) validate() ([]int, error) {
	n := len(p.Start)
	if n == 0 {
		return nil, errs.Configf("minimize: empty parameter vector")
	}
	if len(p.Bounds) != n {
		return nil, errs.Configf("minimize: %d bounds for %d parameters", len(p.Bounds), n)
	}
	if p.Fixed != nil && len(p.Fixed) != n {
		return nil, errs.Configf("minimize: %d fixed flags for %d parameters", len(p.Fixed), n)
	}
	free := make([]int, 0, n)
	for i := 0; i < n; i++ {
		b := p.Bounds[i]
		if !b.valid() {
			return nil, errs.Configf("minimize: invalid bound [%v, %v] for %s", b.Lo, b.Hi, p.name(i))
		}
		x := p.Start[i]
		if math.IsNaN(x) || x < b.Lo || x > b.Hi {
			return nil, errs.Configf("minimize: start %s=%v outside [%v, %v]", p.name(i), x, b.Lo, b.Hi)
		}
		if !p.fixed(i) {
			free = append(free, i)
		}
	}
	if len(free) == 0 {
		return nil, errs.Configf("minimize: all %d parameters fixed, nothing to optimize", n)
	}
	return free, nil
}
