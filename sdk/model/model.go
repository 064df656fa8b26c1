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

// Package model 定義角分布強度模型：
//
//	I(x; c) = | c0 + c2·e^(i·phi2)·P2(x) + c4·P4(x) + c6·P6(x) |²
//
// 其中 c0 由歸一化條件決定，使 I 在 [-1,1] 上的積分固定為 1。
// 擬合目標函數、報表重算、toy 產生器與 HTTP 曲線都必須呼叫同一份 Intensity，
// 數值比較才有意義。
package model

import (
	"math"

	"github.com/zintix-labs/angfit/errs"
)

// NPar 參數個數
const NPar = 4

// 參數索引
const (
	C2 = iota
	C4
	C6
	Phi2
)

// Names 參數名稱（同時是輸出 JSON 的 key）
var Names = [NPar]string{"c2", "c4", "c6", "phi2"}

// Params 依序為 (c2, c4, c6, phi2)。
type Params [NPar]float64

// Index 以名稱查參數索引，找不到回傳 -1
func Index(name string) int {
	for i, n := range Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Slice 回傳 p 的副本切片，供泛用最小化器使用
func (p Params) Slice() []float64 {
	s := make([]float64, NPar)
	copy(s, p[:])
	return s
}

// FromSlice 由切片建 Params，長度不足的部分補 0
func FromSlice(s []float64) Params {
	var p Params
	copy(p[:], s)
	return p
}

// Legendre 回傳偶數階 Legendre 多項式 P2, P4, P6 在 x 的值
func Legendre(x float64) (p2, p4, p6 float64) {
	x2 := x * x
	x4 := x2 * x2
	x6 := x4 * x2
	p2 = 1.5*x2 - 0.5
	p4 = 4.375*x4 - 3.75*x2 + 0.375
	p6 = 14.4375*x6 - 19.6875*x4 + 6.5625*x2 - 0.3125
	return
}

// Radicand 回傳 c0² = 0.5 - (0.2·c2² + c4²/9 + c6²/13)
//
// 0.5 對應 [-1,1] 上的歸一化。
func Radicand(p Params) float64 {
	c2, c4, c6 := p[C2], p[C4], p[C6]
	return 0.5 - (0.2*c2*c2 + (1./9.)*c4*c4 + (1./13.)*c6*c6)
}

// C0 回傳歸一化約束下的零階係數；根號內為負時 ok=false
func C0(p Params) (c0 float64, ok bool) {
	r := Radicand(p)
	if r < 0 || math.IsNaN(r) {
		return math.NaN(), false
	}
	return math.Sqrt(r), true
}

// Intensity 回傳 I(x; p)。根號內為負時模型未定義，回傳 NaN。
func Intensity(x float64, p Params) float64 {
	c0, ok := C0(p)
	if !ok {
		return math.NaN()
	}
	p2, p4, p6 := Legendre(x)
	sin, cos := math.Sincos(p[Phi2])
	// 只有 c2 項帶相位；|z|² = re² + im²
	re := c0 + p[C2]*cos*p2 + p[C4]*p4 + p[C6]*p6
	im := p[C2] * sin * p2
	return re*re + im*im
}

// IntensityChecked 與 Intensity 相同，但以 errs.KindDomain 回報未定義點
func IntensityChecked(x float64, p Params) (float64, error) {
	if r := Radicand(p); r < 0 || math.IsNaN(r) {
		return math.NaN(), errs.Domainf("normalization radicand %.6g < 0 at %v", r, p)
	}
	return Intensity(x, p), nil
}

// Curve 在 xs 上逐點計算 I；dst 長度不足時重新配置
func Curve(dst []float64, xs []float64, p Params) []float64 {
	if cap(dst) < len(xs) {
		dst = make([]float64, len(xs))
	}
	dst = dst[:len(xs)]
	for i, x := range xs {
		dst[i] = Intensity(x, p)
	}
	return dst
}
