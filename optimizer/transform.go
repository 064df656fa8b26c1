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

import "math"

// edge 起點落在邊界上時內部座標往內收的量；sin 在 ±π/2 的導數為 0，BFGS 會卡死
const edge = 1e-7

// toInternal 外部 x → 內部 u
func (b Bound) toInternal(x float64) float64 {
	s := 2*(x-b.Lo)/(b.Hi-b.Lo) - 1
	s = math.Max(-1+edge, math.Min(1-edge, s))
	return math.Asin(s)
}

// toExternal 內部 u → 外部 x，結果必在 [Lo, Hi]
func (b Bound) toExternal(u float64) float64 {
	x := b.Lo + (b.Hi-b.Lo)*(math.Sin(u)+1)/2
	return math.Max(b.Lo, math.Min(b.Hi, x))
}

// dxdu 變換的導數，用於把內部誤差換回外部
func (b Bound) dxdu(u float64) float64 {
	return (b.Hi - b.Lo) / 2 * math.Cos(u)
}

// mapper 負責自由參數的內外座標轉換，固定參數維持起點值
type mapper struct {
	prob *Problem
	free []int
}

func (m *mapper) internal() []float64 {
	u := make([]float64, len(m.free))
	for k, i := range m.free {
		u[k] = m.prob.Bounds[i].toInternal(m.prob.Start[i])
	}
	return u
}

// external 以 u 填滿 dst（長度為全部參數數）
func (m *mapper) external(dst, u []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(m.prob.Start))
	}
	copy(dst, m.prob.Start)
	for k, i := range m.free {
		dst[i] = m.prob.Bounds[i].toExternal(u[k])
	}
	return dst
}

func (m *mapper) jacobian(u []float64) []float64 {
	j := make([]float64, len(u))
	for k, i := range m.free {
		j[k] = m.prob.Bounds[i].dxdu(u[k])
	}
	return j
}
