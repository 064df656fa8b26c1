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

// Package angfit 以兩個估計量擬合加權的角分布：
// 先對正規化直方圖做 chi2 擬合，再以其結果為起點做加權 log-likelihood 擬合，
// 最後依 chi2 比值決定是否以 logl 解重新擬合 chi2。
package angfit

import (
	"errors"
	"log/slog"
	"math"
	"runtime"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/optimizer"
	"github.com/zintix-labs/angfit/recorder"
	"github.com/zintix-labs/angfit/sdk/event"
	"github.com/zintix-labs/angfit/sdk/model"
	"github.com/zintix-labs/angfit/sdk/objective"
	"github.com/zintix-labs/angfit/spec"
	"github.com/zintix-labs/angfit/stats"
	"golang.org/x/sync/errgroup"
)

// phaseRest |phi2| 小於此值視為停在起點 0
const phaseRest = 1e-4

// recordChunk 每個 worker 至少分到的事件數；樣本較小時直接單線紀錄
const recordChunk = 1 << 16

// Fitter 持有已驗證的設定；Fit 之間不共享狀態，可重複使用
type Fitter struct {
	fs       *spec.FitSetting
	log      *slog.Logger
	minimize minimizeFunc
}

type minimizeFunc func(f func([]float64) float64, prob optimizer.Problem, set optimizer.Settings) (*optimizer.Result, error)

type Option func(*Fitter)

// WithLogger 設定 logger；預設不輸出
func WithLogger(l *slog.Logger) Option {
	return func(f *Fitter) {
		if l != nil {
			f.log = l
		}
	}
}

// New 以 fs 建立 Fitter；fs 為 nil 時使用 spec.Default()
func New(fs *spec.FitSetting, opts ...Option) (*Fitter, error) {
	if fs == nil {
		fs = spec.Default()
	}
	if err := fs.Init(); err != nil {
		return nil, err
	}
	f := &Fitter{fs: fs, log: slog.New(slog.DiscardHandler), minimize: optimizer.Minimize}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

func (f *Fitter) Setting() *spec.FitSetting { return f.fs }

// Fit 以 Setting 的 axis 篩選事件後擬合
func (f *Fitter) Fit(evs []event.Event) (*stats.FitReport, error) {
	r, err := f.record(evs)
	if err != nil {
		return nil, err
	}
	return f.FitRecorder(r)
}

// record 把事件切成連續區段，各 worker 以私有 recorder 紀錄後依序合併
func (f *Fitter) record(evs []event.Event) (*recorder.EventRecorder, error) {
	workers := f.fs.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	parts := min(workers, (len(evs)+recordChunk-1)/recordChunk)
	if parts <= 1 {
		r, err := recorder.NewEventRecorder(f.fs.Axis, f.fs.StrictRange)
		if err != nil {
			return nil, err
		}
		return r, r.RecordAll(evs)
	}

	chunk := (len(evs) + parts - 1) / parts
	rs := make([]*recorder.EventRecorder, 0, parts)
	var g errgroup.Group
	for lo := 0; lo < len(evs); lo += chunk {
		hi := min(lo+chunk, len(evs))
		r, err := recorder.NewEventRecorder(f.fs.Axis, f.fs.StrictRange)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
		g.Go(func() error { return r.RecordAll(evs[lo:hi]) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return recorder.MergeEventRecorder(rs)
}

// FitRecorder 對已紀錄的樣本擬合。
//
// Domain、DegenerateBin、Config 錯誤直接中止；未收斂的擬合仍寫入報告，
// 其錯誤以 errors.Join 與報告一起回傳。
func (f *Fitter) FitRecorder(r *recorder.EventRecorder) (*stats.FitReport, error) {
	if r.Entries() == 0 {
		return nil, errs.Configf("fit: no events inside [%v, %v] (rejected %d)", f.fs.Axis.Lo, f.fs.Axis.Hi, r.Rejected())
	}
	d, err := r.Hist.Normalize(r.TotalWeight)
	if err != nil {
		return nil, err
	}
	chi2, err := objective.NewChi2(d)
	if err != nil {
		return nil, err
	}
	nll, err := objective.NewNLL(r.Events, f.fs.Workers)
	if err != nil {
		return nil, err
	}
	if ex := chi2.Excluded(); len(ex) > 0 {
		f.log.Info("bins with zero variance excluded from chi2", "bins", ex)
	}
	f.log.Debug("sample", "entries", r.Entries(), "rejected", r.Rejected(), "total_weight", r.TotalWeight)

	start := f.fs.Start()
	rc, errc := f.run(stats.Chi2Fit, chi2, start)
	if rc == nil {
		return nil, errc
	}
	if f.phaseAtRest(start, rc.X) {
		f.log.Warn("phi2 is free but stayed at its neutral start 0, a stationary point of the phase; set seed.phi2 to fit a non-zero phase",
			"phi2", rc.X[model.Phi2])
	}
	rl, errl := f.run(stats.LogLFit, nll, model.FromSlice(rc.X))
	if rl == nil {
		return nil, errl
	}

	refits := 0
	for refits < f.fs.Refit.MaxRefit() {
		atChi2, atLogL := chi2.Eval(model.FromSlice(rc.X)), chi2.Eval(model.FromSlice(rl.X))
		if !needRefit(atChi2, atLogL, f.fs.Refit.Ratio) {
			break
		}
		f.log.Info("chi2 refit seeded from logl solution", "chi2_at_chi2", atChi2, "chi2_at_logl", atLogL, "ratio", f.fs.Refit.Ratio)
		res, err := f.run(stats.Chi2Fit, chi2, model.FromSlice(rl.X))
		if res == nil {
			return nil, err
		}
		rc, errc = res, err
		refits++
	}

	rep := stats.NewFitReport(d, r.Rejected(), f.fs.NFree())
	rep.Refit = refits
	rep.Excluded = chi2.Excluded()
	for name, res := range map[string]*optimizer.Result{stats.Chi2Fit: rc, stats.LogLFit: rl} {
		e := stats.NewEstimatorResult(res)
		p := model.FromSlice(res.X)
		e.Chi2 = chi2.Eval(p)
		e.LogL = nll.Eval(p)
		rep.Fits[name] = e
	}
	return rep, errors.Join(errc, errl)
}

// run 只有在 Result 為 nil 時才視為中止；Convergence 錯誤與結果一起回傳
func (f *Fitter) run(name string, o objective.Objective, start model.Params) (*optimizer.Result, error) {
	prob := optimizer.Problem{
		Start:  f.fs.Pin(start).Slice(),
		Bounds: f.fs.ParamBounds(),
		Fixed:  f.fs.FixedMask(),
		Names:  model.Names[:],
	}
	res, err := f.minimize(objective.Func(o), prob, f.fs.Minimizer)
	if err != nil && (res == nil || !errs.IsKind(err, errs.KindConvergence)) {
		return nil, errs.Wrap(err, name+" fit")
	}
	if err != nil {
		f.log.Warn("fit not converged", "fit", name, "edm", res.EDM, "iterations", res.Iterations, "status", res.Status)
		return res, errs.Wrap(err, name+" fit")
	}
	f.log.Debug("fit done", "fit", name, "f", res.F, "edm", res.EDM, "iterations", res.Iterations, "evals", res.FuncEvals, "x", res.X)
	return res, nil
}

// phaseAtRest 自由的 phi2 從 0 出發且解仍在 0：強度對 phi2 是偶函數，0 處梯度恆為 0
func (f *Fitter) phaseAtRest(start model.Params, x []float64) bool {
	if f.fs.FixedMask()[model.Phi2] {
		return false
	}
	return start[model.Phi2] == 0 && math.Abs(x[model.Phi2]) < phaseRest
}

// needRefit chi2 比值檢查；分母為 0 時只有分子 > 0 才重新擬合
func needRefit(atChi2, atLogL, ratio float64) bool {
	if math.IsNaN(atChi2) || math.IsNaN(atLogL) || math.IsInf(atLogL, 1) {
		return false
	}
	if atLogL == 0 {
		return atChi2 > 0
	}
	return atChi2/atLogL > ratio
}
