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

package stats_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/optimizer"
	"github.com/zintix-labs/angfit/sdk/hist"
	"github.com/zintix-labs/angfit/sdk/model"
	"github.com/zintix-labs/angfit/stats"
)

var truth = model.Params{0.4, -0.2, 0.1, 0}

// exactReport 密度恰為 truth 的模型值，誤差固定 0.02
func exactReport(t *testing.T) *stats.FitReport {
	t.Helper()
	axis, err := hist.NewUniformAxis(10, -1, 1)
	if err != nil {
		t.Fatalf("axis: %v", err)
	}
	d := &hist.Density{
		Axis:        axis,
		TotalWeight: 123.5,
		Values:      make([]float64, 10),
		Variances:   make([]float64, 10),
		Counts:      make([]uint64, 10),
	}
	for i := range d.Values {
		d.Values[i] = model.Intensity(axis.Center(i), truth)
		d.Variances[i] = 0.02 * 0.02
		d.Counts[i] = 100
	}
	r := stats.NewFitReport(d, 3, 3)
	res := &optimizer.Result{
		X:         truth.Slice(),
		Errors:    []float64{0.01, 0.02, 0.03, 0},
		Fixed:     []bool{false, false, false, true},
		EDM:       1e-6,
		Converged: true,
		CovOK:     true,
		Status:    "FunctionConvergence",
	}
	r.Fits[stats.Chi2Fit] = stats.NewEstimatorResult(res)
	r.Fits[stats.LogLFit] = stats.NewEstimatorResult(res)
	return r
}

func TestNewFitReport(t *testing.T) {
	r := exactReport(t)
	if r.Entries != 1000 || r.Rejected != 3 || len(r.Hist) != 10 {
		t.Fatalf("report header: %+v", r)
	}
	if r.Range != [2]float64{-1, 1} {
		t.Fatalf("range %v", r.Range)
	}
	if r.NDF() != 7 {
		t.Fatalf("ndf = %d want 7", r.NDF())
	}
	r.Excluded = []int{0, 9}
	if r.NDF() != 5 {
		t.Fatalf("ndf with excluded = %d want 5", r.NDF())
	}
	fit, err := r.Fit(stats.Chi2Fit)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if fit.Params() != truth || !fit.Fixed(model.Phi2) || fit.Fixed(model.C2) {
		t.Fatalf("estimator result: %+v", fit)
	}
	if _, err := r.Fit("minuit"); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("unknown fit must be config error, got %v", err)
	}
}

func TestPValue(t *testing.T) {
	// k=2 時 survival(x) = exp(-x/2)
	if got := stats.PValue(2, 2); math.Abs(got-math.Exp(-1)) > 1e-12 {
		t.Fatalf("p-value = %v", got)
	}
	if !math.IsNaN(stats.PValue(1, 0)) {
		t.Fatalf("ndf 0 must be NaN")
	}
	if stats.PValue(math.Inf(1), 3) != 0 {
		t.Fatalf("infinite chi2 must give 0")
	}
}

func TestPullsAtExactModel(t *testing.T) {
	r := exactReport(t)
	r.Hist[4][1] = 0
	pulls, err := r.Pulls(stats.Chi2Fit)
	if err != nil {
		t.Fatalf("pulls: %v", err)
	}
	for i, v := range pulls {
		if i == 4 {
			if !math.IsNaN(v) {
				t.Fatalf("zero-error bin pull = %v want NaN", v)
			}
			continue
		}
		if math.Abs(v) > 1e-9 {
			t.Fatalf("pull[%d] = %v", i, v)
		}
	}
	mean, std, n := stats.PullStats(pulls)
	if n != 9 || math.Abs(mean) > 1e-9 || std > 1e-9 {
		t.Fatalf("pull stats %v %v %d", mean, std, n)
	}
}

func TestJSONReadBack(t *testing.T) {
	r := exactReport(t)
	r.Refit = 1
	r.Excluded = []int{2}
	var buf bytes.Buffer
	if err := r.WriteWith(&buf, &stats.JsonFitReportRender{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, key := range []string{`"range":[-1,1]`, `"hist":[[`, `"fits":{`, `"phi2":[0,0]`, `"excluded_bins":[2]`} {
		if !strings.Contains(out, key) {
			t.Fatalf("json missing %s:\n%s", key, out)
		}
	}
	back, err := stats.ReadJSON(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	d, err := back.Density()
	if err != nil {
		t.Fatalf("density: %v", err)
	}
	if d.Axis.NBins != 10 || d.Counts[3] != 100 || math.Abs(d.Error(3)-0.02) > 1e-15 {
		t.Fatalf("density rebuilt wrong: %+v", d)
	}
	if back.Refit != 1 || back.NDF() != 6 {
		t.Fatalf("refit/ndf lost: %d %d", back.Refit, back.NDF())
	}
	if _, err := stats.ReadJSON(strings.NewReader(`{"hist":[]}`)); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("empty hist must be config error, got %v", err)
	}
}

func TestYAMLFlowRows(t *testing.T) {
	rep, err := stats.RenderByName("yaml")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var buf bytes.Buffer
	if err := exactReport(t).WriteWith(&buf, rep); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "range: [-1, 1]") || !strings.Contains(out, "c2: [0.4, 0.01]") {
		t.Fatalf("inner rows must use flow style:\n%s", out)
	}
	if _, err := stats.RenderByName("xml"); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("unknown format must be config error, got %v", err)
	}
}

func TestTable(t *testing.T) {
	r := exactReport(t)
	r.Fits[stats.LogLFit].Converged = false
	r.Fits[stats.LogLFit].Status = "IterationLimit"
	s := r.Table()
	for _, want := range []string{"Angular Fit", "[chi2] phi2", "FIXED", "[logl] -2logL", "chi2/ndf", "NOT converged (IterationLimit)"} {
		if !strings.Contains(s, want) {
			t.Fatalf("table missing %q:\n%s", want, s)
		}
	}
	pt, err := r.PullTable(stats.LogLFit)
	if err != nil || !strings.Contains(pt, "pull mean/std") {
		t.Fatalf("pull table: %v\n%s", err, pt)
	}
}

func TestJSONNonFiniteObjective(t *testing.T) {
	r := exactReport(t)
	r.Fits[stats.Chi2Fit].LogL = math.Inf(1)
	r.Fits[stats.LogLFit].Chi2 = 12.5
	var buf bytes.Buffer
	if err := r.WriteWith(&buf, &stats.JsonFitReportRender{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), `"logl":"+Inf"`) {
		t.Fatalf("inf logl not encoded:\n%s", buf.String())
	}
	back, err := stats.ReadJSON(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	c, l := back.Fits[stats.Chi2Fit], back.Fits[stats.LogLFit]
	if !math.IsInf(c.LogL, 1) || l.Chi2 != 12.5 || c.C2 != r.Fits[stats.Chi2Fit].C2 || !c.Converged {
		t.Fatalf("round trip lost values: %+v %+v", c, l)
	}
}

func TestFixedMaskNotInferredFromError(t *testing.T) {
	r := exactReport(t)
	// 自由參數的曲率退化時誤差可能為 0，仍不是固定參數
	r.Fits[stats.Chi2Fit].C4[1] = 0
	fit := r.Fits[stats.Chi2Fit]
	if fit.Fixed(model.C4) || !fit.Fixed(model.Phi2) {
		t.Fatalf("fixed mask = %v", fit.Fix)
	}
	var buf bytes.Buffer
	if err := r.WriteWith(&buf, &stats.JsonFitReportRender{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), `"fixed":[false,false,false,true]`) {
		t.Fatalf("json missing fixed mask:\n%s", buf.String())
	}
	back, err := stats.ReadJSON(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := back.Fits[stats.Chi2Fit]; got.Fixed(model.C4) || !got.Fixed(model.Phi2) {
		t.Fatalf("fixed mask lost on read back: %v", got.Fix)
	}
	if s := r.Table(); strings.Count(s, "FIXED") != 2 {
		t.Fatalf("only phi2 of each fit must be FIXED:\n%s", s)
	}
}
