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
	"testing"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/core"
)

func TestAliasTableFrequencies(t *testing.T) {
	weights := []float64{1, 0, 3, 6}
	at, err := BuildAliasTable(weights)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	c := core.New(core.Default().New(9))
	const n = 200000
	hits := make([]int, len(weights))
	for i := 0; i < n; i++ {
		hits[at.Pick(c)]++
	}
	if hits[1] != 0 {
		t.Fatalf("zero weight picked %d times", hits[1])
	}
	for i, w := range weights {
		p := w / 10
		sigma := math.Sqrt(n * p * (1 - p))
		if math.Abs(float64(hits[i])-n*p) > 5*sigma+1 {
			t.Fatalf("index %d hit %d, expected %.0f", i, hits[i], n*p)
		}
	}
}

func TestAliasTableIntegerWeights(t *testing.T) {
	at, err := BuildAliasTable([]int{2, 2})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if at.Size() != 2 || at.Prob[0] != 1 || at.Prob[1] != 1 {
		t.Fatalf("uniform weights: %+v", at)
	}
}

func TestAliasTableInvalid(t *testing.T) {
	for _, w := range [][]float64{nil, {0, 0}, {1, -1}, {math.NaN()}, {math.Inf(1)}} {
		if _, err := BuildAliasTable(w); !errs.IsKind(err, errs.KindConfig) {
			t.Fatalf("weights %v: want config error, got %v", w, err)
		}
	}
}

func TestEnvelopeSampleMean(t *testing.T) {
	// f(x) = x² 在 [-1,1)：E[x²] = 3/5
	f := func(x float64) float64 { return x * x }
	for _, seg := range []int{1, 16} {
		env, err := NewEnvelope(f, -1, 1, seg, 0, 0)
		if err != nil {
			t.Fatalf("envelope: %v", err)
		}
		if env.Segments() != seg {
			t.Fatalf("segments = %d want %d", env.Segments(), seg)
		}
		c := core.New(core.Default().New(21))
		const n = 200000
		sum := 0.0
		for i := 0; i < n; i++ {
			x, ok := env.Sample(c, f, 1000)
			if !ok || x < -1 || x >= 1 {
				t.Fatalf("sample %v ok=%v", x, ok)
			}
			sum += x * x
		}
		if m := sum / n; math.Abs(m-0.6) > 0.005 {
			t.Fatalf("segments=%d: E[x²] = %v want 0.6", seg, m)
		}
	}
}

func TestEnvelopeBounds(t *testing.T) {
	f := func(x float64) float64 { return 1 + x }
	env, err := NewEnvelope(f, -1, 1, 4, 5, 1)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	// 遞增函數：每段上界是段右端的值
	want := []float64{0.5, 1, 1.5, 2}
	for k, w := range want {
		if math.Abs(env.Bound(k)-w) > 1e-12 {
			t.Fatalf("bound[%d] = %v want %v", k, env.Bound(k), w)
		}
	}
	if _, err := NewEnvelope(func(float64) float64 { return -1 }, -1, 1, 4, 5, 1); !errs.IsKind(err, errs.KindDomain) {
		t.Fatalf("negative f: %v", err)
	}
	if _, err := NewEnvelope(func(float64) float64 { return 0 }, -1, 1, 4, 5, 1); !errs.IsKind(err, errs.KindDomain) {
		t.Fatalf("zero f: %v", err)
	}
	if _, err := NewEnvelope(f, 1, 1, 4, 5, 1); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("empty range: %v", err)
	}
}
