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

package sampler

import (
	"math"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/core"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultSegments = 64
	DefaultProbe    = 33   // 每段探測點數（含兩端）
	DefaultMargin   = 1.05 // 探測最大值的放大倍率
	floorFrac       = 1e-3 // 每段上界至少為全域最大值的此比例
)

// Envelope 在 [lo,hi) 上以分段常數上界包住非負函數 f。
//
// 取樣時先依「段寬 × 上界」以 AliasTable 選段，段內均勻取點再以 f(x)/bound 接受，
// 因此接受率隨 f 的起伏而非全域最大值決定。segments 為 1 時退化為單一上界的接受-拒絕法。
type Envelope struct {
	lo, hi, width float64
	bound         []float64
	table         *AliasTable
}

// NewEnvelope 以探測點估計每段上界。f 在探測點上出現負值、NaN 或 Inf，
// 或全域沒有正值時回傳 KindDomain
func NewEnvelope(f func(float64) float64, lo, hi float64, segments, probe int, margin float64) (*Envelope, error) {
	if !(lo < hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return nil, errs.Configf("envelope: invalid range [%v, %v]", lo, hi)
	}
	if segments < 1 {
		segments = DefaultSegments
	}
	if probe < 2 {
		probe = DefaultProbe
	}
	if !(margin >= 1) {
		margin = DefaultMargin
	}

	e := &Envelope{lo: lo, hi: hi, width: (hi - lo) / float64(segments), bound: make([]float64, segments)}
	xs := make([]float64, probe)
	ys := make([]float64, probe)
	for k := range e.bound {
		a := lo + float64(k)*e.width
		floats.Span(xs, a, a+e.width)
		for i, x := range xs {
			ys[i] = f(x)
			if ys[i] < 0 || math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
				return nil, errs.Domainf("envelope: f(%v) = %v", x, ys[i])
			}
		}
		e.bound[k] = floats.Max(ys) * margin
	}
	top := floats.Max(e.bound)
	if !(top > 0) {
		return nil, errs.Domainf("envelope: no positive value on [%v, %v]", lo, hi)
	}
	for k := range e.bound {
		e.bound[k] = math.Max(e.bound[k], top*floorFrac)
	}
	if segments > 1 {
		t, err := BuildAliasTable(e.bound)
		if err != nil {
			return nil, err
		}
		e.table = t
	}
	return e, nil
}

// Bound 第 k 段的上界
func (e *Envelope) Bound(k int) float64 { return e.bound[k] }

// Segments 段數
func (e *Envelope) Segments() int { return len(e.bound) }

// Sample 取一個樣本；maxTry 次都被拒絕時回傳 ok=false
func (e *Envelope) Sample(c *core.Core, f func(float64) float64, maxTry int) (float64, bool) {
	if e.table == nil {
		return c.Sample(f, e.lo, e.hi, e.bound[0], maxTry)
	}
	for range maxTry {
		k := e.table.Pick(c)
		x := e.lo + (float64(k)+c.Float64())*e.width
		if x >= e.hi {
			x = math.Nextafter(e.hi, e.lo)
		}
		if c.Float64()*e.bound[k] < f(x) {
			return x, true
		}
	}
	return 0, false
}
