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
	"testing"

	"github.com/zintix-labs/angfit/errs"
)

func mustHist(t *testing.T, n uint32) *Histogram {
	t.Helper()
	a, err := NewUniformAxis(n, -1, 1)
	if err != nil {
		t.Fatalf("axis: %v", err)
	}
	h, err := New(a)
	if err != nil {
		t.Fatalf("hist: %v", err)
	}
	return h
}

func TestAxisValidate(t *testing.T) {
	if _, err := NewUniformAxis(0, -1, 1); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("nbins=0 must be config error, got %v", err)
	}
	if _, err := NewUniformAxis(4, 1, 1); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("lo>=hi must be config error, got %v", err)
	}
	if _, err := NewUniformAxis(4, 1, -1); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("lo>hi must be config error, got %v", err)
	}
}

func TestAxisIndex(t *testing.T) {
	a, _ := NewUniformAxis(4, -1, 1)
	cases := map[float64]int{-1: 0, -0.51: 0, -0.5: 1, 0: 2, 0.49: 2, 0.5: 3, 1: 3}
	for x, want := range cases {
		got, ok := a.Index(x)
		if !ok || got != want {
			t.Fatalf("Index(%v) = %d,%v want %d", x, got, ok, want)
		}
	}
	for _, x := range []float64{-1.0001, 1.0001, math.NaN()} {
		if _, ok := a.Index(x); ok {
			t.Fatalf("Index(%v) should be out of range", x)
		}
	}
	if c := a.Center(0); c != -0.75 {
		t.Fatalf("center 0 = %v", c)
	}
}

func TestSingleEventRoundTrip(t *testing.T) {
	h := mustHist(t, 4)
	w := 0.37
	if err := h.Accumulate(0.1, w); err != nil {
		t.Fatalf("accumulate: %v", err)
	}
	for i := 0; i < 4; i++ {
		b := h.Bin(i)
		if i == 2 {
			if b.SumW != w || b.SumW2 != w*w || b.Count != 1 {
				t.Fatalf("bin 2 got %+v", b)
			}
			continue
		}
		if b != (Bin{}) {
			t.Fatalf("bin %d should be untouched, got %+v", i, b)
		}
	}
	if h.Entries() != 1 {
		t.Fatalf("entries = %d", h.Entries())
	}
}

func TestOutOfRange(t *testing.T) {
	h := mustHist(t, 4)
	if err := h.Accumulate(1.5, 1); err != nil {
		t.Fatalf("non-strict must not fail: %v", err)
	}
	if h.Entries() != 0 || h.Rejected() != 1 {
		t.Fatalf("entries=%d rejected=%d", h.Entries(), h.Rejected())
	}
	h.SetStrict(true)
	if err := h.Accumulate(-2, 1); !errs.IsKind(err, errs.KindDomain) {
		t.Fatalf("strict must report domain error, got %v", err)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	h := mustHist(t, 8)
	xs := []float64{-0.9, -0.3, 0.05, 0.2, 0.2, 0.77, 0.99, 1}
	ws := []float64{1.2, 0.4, 0.9, 1.1, 0.3, 2.0, 0.8, 0.5}
	for i := range xs {
		_ = h.Accumulate(xs[i], ws[i])
	}
	T := h.SumW()
	d1, err := h.Normalize(T)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if math.Abs(d1.Integral()-1) > 1e-12 {
		t.Fatalf("integral = %v", d1.Integral())
	}
	d2, _ := h.Normalize(T)
	for i := range d1.Values {
		if math.Abs(d1.Values[i]-d2.Values[i]) > 1e-15 || math.Abs(d1.Variances[i]-d2.Variances[i]) > 1e-15 {
			t.Fatalf("bin %d changed on second normalize", i)
		}
	}
	// 變異數與 Σw² 的縮放一致
	scale := 1 / (T * h.Axis().Width())
	b := h.Bin(2)
	if math.Abs(d1.Variances[2]-b.SumW2*scale*scale) > 1e-15 {
		t.Fatalf("variance scaling mismatch")
	}
	if _, err := h.Normalize(0); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("zero total weight must be rejected, got %v", err)
	}
}

func TestMerge(t *testing.T) {
	a := mustHist(t, 4)
	b := mustHist(t, 4)
	_ = a.Accumulate(-0.9, 1)
	_ = b.Accumulate(-0.9, 2)
	_ = b.Accumulate(3, 2)
	if err := a.Merge(b); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if got := a.Bin(0); got.SumW != 3 || got.SumW2 != 5 || got.Count != 2 {
		t.Fatalf("merged bin = %+v", got)
	}
	if a.Rejected() != 1 {
		t.Fatalf("rejected = %d", a.Rejected())
	}
	c := mustHist(t, 5)
	if err := a.Merge(c); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("axis mismatch must be config error")
	}
	a.Reset()
	if a.Entries() != 0 || a.SumW() != 0 {
		t.Fatalf("reset failed")
	}
}
