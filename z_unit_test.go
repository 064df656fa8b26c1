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

package angfit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/optimizer"
	"github.com/zintix-labs/angfit/sdk/event"
	"github.com/zintix-labs/angfit/sdk/hist"
	"github.com/zintix-labs/angfit/sdk/model"
	"github.com/zintix-labs/angfit/spec"
	"github.com/zintix-labs/angfit/stats"
)

var truth = model.Params{0.3, 0.1, -0.05, 0}

func toy(t *testing.T, n int, seed int64) []event.Event {
	t.Helper()
	return toyAt(t, truth, n, seed)
}

func toyAt(t *testing.T, p model.Params, n int, seed int64) []event.Event {
	t.Helper()
	evs, _, err := Generate(context.Background(), ToySetting{
		Params:  p,
		Events:  n,
		Axis:    hist.UniformAxis{NBins: 1, Lo: -1, Hi: 1},
		Weight:  [2]float64{0.5, 1.5},
		Workers: 4,
		Seed:    seed,
	}, nil, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return evs
}

func phiFixed() *spec.FitSetting {
	fs := spec.Default()
	fs.Fix = map[string]float64{"phi2": 0}
	return fs
}

func TestGenerateDeterministic(t *testing.T) {
	a := toy(t, 5000, 11)
	b := toy(t, 5000, 11)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("event %d differs: %+v %+v", i, a[i], b[i])
		}
		if a[i].Angle < -1 || a[i].Angle >= 1 || a[i].Weight < 0.5 || a[i].Weight >= 1.5 {
			t.Fatalf("event %d out of range: %+v", i, a[i])
		}
	}
	if _, _, err := Generate(context.Background(), ToySetting{Params: model.Params{1.5, 1.5, 1.5, 0}, Events: 10, Axis: hist.UniformAxis{NBins: 1, Lo: -1, Hi: 1}}, nil, false); !errs.IsKind(err, errs.KindDomain) {
		t.Fatalf("infeasible params must be domain error, got %v", err)
	}
	if _, _, err := Generate(context.Background(), ToySetting{Events: 0, Axis: hist.UniformAxis{NBins: 1, Lo: -1, Hi: 1}}, nil, false); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("zero events must be config error, got %v", err)
	}
}

func TestEstimatorConsistency(t *testing.T) {
	evs := toy(t, 100000, 42)
	f, err := New(phiFixed())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rep, err := f.Fit(evs)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	chi2, _ := rep.Fit(stats.Chi2Fit)
	logl, _ := rep.Fit(stats.LogLFit)
	for _, fit := range []*stats.EstimatorResult{chi2, logl} {
		if !fit.Converged {
			t.Fatalf("not converged: %+v", fit)
		}
		p, e := fit.Params(), fit.Errors()
		if p[model.Phi2] != 0 || e[model.Phi2] != 0 {
			t.Fatalf("phi2 must stay fixed at 0: %v ± %v", p[model.Phi2], e[model.Phi2])
		}
		for i := 0; i < model.Phi2; i++ {
			if !(e[i] > 0) {
				t.Fatalf("%s error = %v", model.Names[i], e[i])
			}
			if math.Abs(p[i]-truth[i]) > 5*e[i]+0.01 {
				t.Fatalf("%s = %v ± %v, truth %v", model.Names[i], p[i], e[i], truth[i])
			}
			if math.Abs(chi2.Params()[i]-logl.Params()[i]) > 3*e[i]+0.01 {
				t.Fatalf("%s: chi2 %v vs logl %v", model.Names[i], chi2.Params()[i], logl.Params()[i])
			}
		}
	}
	// chi2 解使 chi2 最小，logl 解使 -2logL 最小
	if chi2.Chi2 > logl.Chi2+1e-3 || logl.LogL > chi2.LogL+1e-3 {
		t.Fatalf("each estimator must minimize its own objective: %+v %+v", chi2, logl)
	}
	if rep.Refit != 0 || rep.NDF() != 47 || rep.Entries != 100000 {
		t.Fatalf("report: refit=%d ndf=%d entries=%d", rep.Refit, rep.NDF(), rep.Entries)
	}
	if ndf := float64(rep.NDF()); chi2.Chi2/ndf > 2.5 {
		t.Fatalf("chi2/ndf = %v", chi2.Chi2/ndf)
	}
}

func TestEstimatorConsistencyWithPhase(t *testing.T) {
	phased := model.Params{0.3, 0.1, -0.05, 0.7}
	evs := toyAt(t, phased, 200000, 21)

	check := func(t *testing.T, fs *spec.FitSetting, free bool) {
		t.Helper()
		f, err := New(fs)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		rep, err := f.Fit(evs)
		if err != nil {
			t.Fatalf("fit: %v", err)
		}
		for _, name := range []string{stats.Chi2Fit, stats.LogLFit} {
			fit, _ := rep.Fit(name)
			if !fit.Converged {
				t.Fatalf("%s not converged: %+v", name, fit)
			}
			p, e := fit.Params(), fit.Errors()
			// 強度對 phi2 是偶函數，只比較大小
			p[model.Phi2] = math.Abs(p[model.Phi2])
			n := model.Phi2
			if free {
				n = model.NPar
			} else if p[model.Phi2] != phased[model.Phi2] {
				t.Fatalf("%s: fixed phi2 moved to %v", name, p[model.Phi2])
			}
			for i := 0; i < n; i++ {
				if !(e[i] > 0) || math.Abs(p[i]-phased[i]) > 5*e[i]+0.02 {
					t.Fatalf("%s: %s = %v ± %v, truth %v", name, model.Names[i], p[i], e[i], phased[i])
				}
			}
		}
	}

	t.Run("fixed", func(t *testing.T) {
		fs := spec.Default()
		fs.Fix = map[string]float64{"phi2": phased[model.Phi2]}
		check(t, fs, false)
	})
	t.Run("seeded", func(t *testing.T) {
		fs := spec.Default()
		fs.Seed = map[string]float64{"phi2": 0.5}
		check(t, fs, true)
	})
}

func TestPhaseAtRestWarning(t *testing.T) {
	evs := toy(t, 5000, 9)
	stub := func(fn func([]float64) float64, prob optimizer.Problem, set optimizer.Settings) (*optimizer.Result, error) {
		return &optimizer.Result{
			X:         append([]float64(nil), prob.Start...),
			Errors:    make([]float64, model.NPar),
			Converged: true,
		}, nil
	}
	fit := func(fs *spec.FitSetting) string {
		var buf bytes.Buffer
		f, err := New(fs, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		f.minimize = stub
		if _, err := f.Fit(evs); err != nil {
			t.Fatalf("fit: %v", err)
		}
		return buf.String()
	}

	if out := fit(spec.Default()); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "seed.phi2") {
		t.Fatalf("free phi2 left at 0 must warn:\n%s", out)
	}
	seeded := spec.Default()
	seeded.Seed = map[string]float64{"phi2": 0.5}
	if out := fit(seeded); strings.Contains(out, "seed.phi2") {
		t.Fatalf("seeded phi2 must not warn:\n%s", out)
	}
	if out := fit(phiFixed()); strings.Contains(out, "seed.phi2") {
		t.Fatalf("fixed phi2 must not warn:\n%s", out)
	}
}

func TestRefitFromBadSeed(t *testing.T) {
	evs := toy(t, 20000, 7)
	f, err := New(phiFixed())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	calls := 0
	f.minimize = func(fn func([]float64) float64, prob optimizer.Problem, set optimizer.Settings) (*optimizer.Result, error) {
		calls++
		if calls == 1 {
			// 第一次 chi2 擬合停在遠離真值的點
			return &optimizer.Result{
				X:         []float64{-0.3, 0.3, 0.2, 0},
				Errors:    make([]float64, model.NPar),
				Converged: true,
				Status:    "stub",
			}, nil
		}
		return optimizer.Minimize(fn, prob, set)
	}
	rep, err := f.Fit(evs)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if calls != 3 || rep.Refit != 1 {
		t.Fatalf("calls=%d refit=%d, want one refit", calls, rep.Refit)
	}
	chi2, _ := rep.Fit(stats.Chi2Fit)
	if chi2.Status == "stub" || math.Abs(chi2.Params()[model.C2]-truth[model.C2]) > 0.05 {
		t.Fatalf("chi2 result must come from the refit: %+v", chi2)
	}

	// 關閉重新擬合時保留原結果
	zero := 0
	fs := phiFixed()
	fs.Refit.Max = &zero
	g, _ := New(fs)
	calls = 0
	g.minimize = f.minimize
	rep, _ = g.Fit(evs)
	if calls != 2 || rep.Refit != 0 || rep.Fits[stats.Chi2Fit].Status != "stub" {
		t.Fatalf("refit disabled: calls=%d refit=%d", calls, rep.Refit)
	}
}

func TestNeedRefit(t *testing.T) {
	if !needRefit(10, 4, 2) || needRefit(8, 4, 2) || needRefit(3, 4, 2) {
		t.Fatalf("ratio threshold")
	}
	if needRefit(0, 0, 2) || !needRefit(1, 0, 2) {
		t.Fatalf("zero denominator")
	}
	if needRefit(math.NaN(), 1, 2) || needRefit(1, math.Inf(1), 2) {
		t.Fatalf("non-finite values must not trigger refit")
	}
}

func TestFitErrors(t *testing.T) {
	out := []event.Event{{Weight: 1, Angle: 2}, {Weight: 1, Angle: -3}}
	f, _ := New(nil)
	if _, err := f.Fit(out); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("no events in range must be config error, got %v", err)
	}
	fs := spec.Default()
	fs.StrictRange = true
	g, _ := New(fs)
	if _, err := g.Fit(out); !errs.IsKind(err, errs.KindDomain) {
		t.Fatalf("strict range must be domain error, got %v", err)
	}
	bad := spec.Default()
	bad.Refit.Ratio = -1
	if _, err := New(bad); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("invalid setting must be config error, got %v", err)
	}
}

func TestConvergenceSurfacedWithReport(t *testing.T) {
	evs := toy(t, 5000, 3)
	fs := phiFixed()
	fs.Minimizer.MaxIter = 1
	f, _ := New(fs)
	rep, err := f.Fit(evs)
	if !errs.IsKind(err, errs.KindConvergence) {
		t.Fatalf("want convergence error, got %v", err)
	}
	if rep == nil || rep.Fits[stats.Chi2Fit] == nil || rep.Fits[stats.LogLFit] == nil {
		t.Fatalf("report must be populated on convergence failure")
	}
	if rep.Fits[stats.Chi2Fit].Converged {
		t.Fatalf("chi2 fit reported converged with one iteration")
	}
}

func TestFitRuntime(t *testing.T) {
	rt := NewFitRuntime(1, nil)
	evs := toy(t, 5000, 5)
	rep, err := rt.Fit(context.Background(), evs, phiFixed())
	if err != nil || rep == nil {
		t.Fatalf("fit: %v", err)
	}
	if rt.Served() != 1 || rt.Inflight() != 0 {
		t.Fatalf("served=%d inflight=%d", rt.Served(), rt.Inflight())
	}

	// 空位被占用時，逾時的 ctx 直接返回
	rt.slots <- struct{}{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := rt.Fit(ctx, evs, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	<-rt.slots

	rt.Close()
	rt.Close()
	if !rt.Closed() || rt.ClosedReason() != "closed" {
		t.Fatalf("closed=%v reason=%q", rt.Closed(), rt.ClosedReason())
	}
	if _, err := rt.Fit(context.Background(), evs, nil); err == nil {
		t.Fatalf("closed runtime must refuse fits")
	}
}

func TestGenerateFlatEnvelope(t *testing.T) {
	// 單一上界與分段上界抽樣同一分布：比較 cos² 的平均
	moment := func(evs []event.Event) float64 {
		s := 0.0
		for _, e := range evs {
			s += e.Angle * e.Angle
		}
		return s / float64(len(evs))
	}
	ts := ToySetting{Params: truth, Events: 100000, Axis: hist.UniformAxis{NBins: 1, Lo: -1, Hi: 1}, Workers: 2, Seed: 4}
	seg, _, err := Generate(context.Background(), ts, nil, false)
	if err != nil {
		t.Fatalf("segmented: %v", err)
	}
	ts.Segments = 1
	flat, _, err := Generate(context.Background(), ts, nil, false)
	if err != nil {
		t.Fatalf("flat: %v", err)
	}
	if d := moment(seg) - moment(flat); d > 0.01 || d < -0.01 {
		t.Fatalf("<cos²> differs between samplers: %v", d)
	}
	for _, e := range flat {
		if e.Weight != 1 {
			t.Fatalf("zero weight range must give unit weights, got %v", e.Weight)
		}
	}
}

func TestParallelRecordMatchesSerial(t *testing.T) {
	evs := toy(t, 3*recordChunk+17, 8)
	evs = append(evs, event.Event{Angle: 1.5, Weight: 1}) // 區間外

	serial := phiFixed()
	serial.Workers = 1
	parallel := phiFixed()
	parallel.Workers = 4
	fs, err := New(serial)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	fp, _ := New(parallel)

	a, err := fs.record(evs)
	if err != nil {
		t.Fatalf("serial record: %v", err)
	}
	b, err := fp.record(evs)
	if err != nil {
		t.Fatalf("parallel record: %v", err)
	}
	if a.Entries() != b.Entries() || a.Rejected() != 1 || b.Rejected() != 1 {
		t.Fatalf("entries %d/%d rejected %d/%d", a.Entries(), b.Entries(), a.Rejected(), b.Rejected())
	}
	for i := range a.Events {
		if a.Events[i] != b.Events[i] {
			t.Fatalf("event order differs at %d", i)
		}
	}
	for i := range a.Hist.Bins() {
		ba, bb := a.Hist.Bin(i), b.Hist.Bin(i)
		if ba.Count != bb.Count || math.Abs(ba.SumW-bb.SumW) > 1e-9*math.Abs(ba.SumW) {
			t.Fatalf("bin %d: %+v vs %+v", i, ba, bb)
		}
	}

	parallel.StrictRange = true
	fp, _ = New(parallel)
	if _, err := fp.record(evs); !errs.IsKind(err, errs.KindDomain) {
		t.Fatalf("strict range must fail in parallel path, got %v", err)
	}
}
