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

// Package hist 提供帶權重、追蹤變異數的一維直方圖。
//
// 每個 bin 同時累積 Σw、Σw² 與原始計數；Σw² 用來估計加權和的變異數。
// Normalize 不改動原始累積值，而是產生一份密度視圖（Density），
// 因此對同一個 totalWeight 重複呼叫得到完全相同的結果。
package hist

import (
	"math"

	"github.com/zintix-labs/angfit/errs"
)

// Bin 一個直方圖格
type Bin struct {
	SumW  float64 `json:"sumw"`
	SumW2 float64 `json:"sumw2"`
	Count uint64  `json:"count"`
}

// Histogram 加權直方圖
//
// 注意：不是 goroutine-safe。併發累積請每個 worker 各持一份，最後以 Merge 合併。
type Histogram struct {
	axis     UniformAxis
	bins     []Bin
	strict   bool
	rejected uint64
}

// New 以已檢查的 axis 建立直方圖
func New(axis UniformAxis) (*Histogram, error) {
	if err := axis.Validate(); err != nil {
		return nil, err
	}
	return &Histogram{
		axis: axis,
		bins: make([]Bin, axis.NBins),
	}, nil
}

// SetStrict 嚴格模式下，區間外的值以 KindDomain 錯誤回報；否則靜默丟棄並計數
func (h *Histogram) SetStrict(strict bool) {
	h.strict = strict
}

// Strict 是否為嚴格模式
func (h *Histogram) Strict() bool { return h.strict }

// Accumulate 將 (x, w) 累加到所屬 bin
func (h *Histogram) Accumulate(x, w float64) error {
	i, ok := h.axis.Index(x)
	if !ok {
		h.rejected++
		if h.strict {
			return errs.Domainf("hist: value %v outside [%v, %v]", x, h.axis.Lo, h.axis.Hi)
		}
		return nil
	}
	b := &h.bins[i]
	b.SumW += w
	b.SumW2 += w * w
	b.Count++
	return nil
}

// Merge 把 o 的內容加進 h；axis 必須相同
func (h *Histogram) Merge(o *Histogram) error {
	if o == nil {
		return nil
	}
	if h.axis != o.axis {
		return errs.Configf("hist: merge axis mismatch %+v vs %+v", h.axis, o.axis)
	}
	for i := range h.bins {
		h.bins[i].SumW += o.bins[i].SumW
		h.bins[i].SumW2 += o.bins[i].SumW2
		h.bins[i].Count += o.bins[i].Count
	}
	h.rejected += o.rejected
	return nil
}

// Reset 清空所有 bin
func (h *Histogram) Reset() {
	clear(h.bins)
	h.rejected = 0
}

func (h *Histogram) Axis() UniformAxis { return h.axis }

// Bin 回傳第 i 個 bin 的值（副本）
func (h *Histogram) Bin(i int) Bin { return h.bins[i] }

// Bins 回傳所有 bin 的副本
func (h *Histogram) Bins() []Bin {
	out := make([]Bin, len(h.bins))
	copy(out, h.bins)
	return out
}

// Entries 總計數（有效樣本量診斷，不是權重）
func (h *Histogram) Entries() uint64 {
	n := uint64(0)
	for _, b := range h.bins {
		n += b.Count
	}
	return n
}

// SumW 所有 bin 的權重和
func (h *Histogram) SumW() float64 {
	s := 0.0
	for _, b := range h.bins {
		s += b.SumW
	}
	return s
}

// Rejected 被丟棄的區間外數值個數
func (h *Histogram) Rejected() uint64 { return h.rejected }

// Density 歸一化後的直方圖視圖
//
//	Values[i]    = SumW_i  / (T·width)
//	Variances[i] = SumW2_i / (T·width)²
type Density struct {
	Axis        UniformAxis
	TotalWeight float64
	Values      []float64
	Variances   []float64
	Counts      []uint64
}

// Normalize 以 totalWeight 產生密度視圖；totalWeight 必須為有限正數
func (h *Histogram) Normalize(totalWeight float64) (*Density, error) {
	if !(totalWeight > 0) || math.IsInf(totalWeight, 0) {
		return nil, errs.Configf("hist: total weight must be finite and > 0, got %v", totalWeight)
	}
	n := len(h.bins)
	d := &Density{
		Axis:        h.axis,
		TotalWeight: totalWeight,
		Values:      make([]float64, n),
		Variances:   make([]float64, n),
		Counts:      make([]uint64, n),
	}
	scale := 1 / (totalWeight * h.axis.Width())
	for i, b := range h.bins {
		d.Values[i] = b.SumW * scale
		d.Variances[i] = b.SumW2 * scale * scale
		d.Counts[i] = b.Count
	}
	return d, nil
}

// Error 第 i 個 bin 的密度標準差
func (d *Density) Error(i int) float64 {
	return math.Sqrt(d.Variances[i])
}

// Integral Σ y_i·width，正確歸一化時為 1
func (d *Density) Integral() float64 {
	s := 0.0
	for _, v := range d.Values {
		s += v
	}
	return s * d.Axis.Width()
}

// Entries 密度視圖中的總計數
func (d *Density) Entries() uint64 {
	n := uint64(0)
	for _, c := range d.Counts {
		n += c
	}
	return n
}
