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

// Package stats 整理擬合結果：可持久化的 FitReport、JSON/YAML 渲染、文字表格與擬合優度。
package stats

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/optimizer"
	"github.com/zintix-labs/angfit/sdk/hist"
	"github.com/zintix-labs/angfit/sdk/model"
)

// 兩個估計量在 Fits 中的鍵
const (
	Chi2Fit = "chi2"
	LogLFit = "logl"
)

// Mask 依參數順序標記固定參數
type Mask [model.NPar]bool

// Value 參數值與誤差 [value, error]；固定參數的誤差為 0
type Value [2]float64

// EstimatorResult 單一估計量的擬合結果
//
// Chi2 與LogL 兩個目標函數都在該估計量的解上重新計算，方便比較。
type EstimatorResult struct {
	C2         Value   `json:"c2" yaml:"c2"`
	C4         Value   `json:"c4" yaml:"c4"`
	C6         Value   `json:"c6" yaml:"c6"`
	Phi2       Value   `json:"phi2" yaml:"phi2"`
	Fix        Mask    `json:"fixed" yaml:"fixed"`
	Chi2       float64 `json:"chi2" yaml:"chi2"`
	LogL       float64 `json:"logl" yaml:"logl"`
	EDM        float64 `json:"edm" yaml:"edm"`
	Iterations int     `json:"iterations" yaml:"iterations"`
	FuncEvals  int     `json:"func_evals" yaml:"func_evals"`
	Converged  bool    `json:"converged" yaml:"converged"`
	CovOK      bool    `json:"cov_ok" yaml:"cov_ok"`
	Status     string  `json:"status" yaml:"status"`
	Search     string  `json:"search_status,omitempty" yaml:"search_status,omitempty"`
}

// jsonFloat 非有限值以字串 "NaN"、"+Inf"、"-Inf" 表示；JSON 沒有對應的數字
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if uq, err := strconv.Unquote(s); err == nil {
		s = uq
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errs.Wrap(err, "report: invalid float "+string(b))
	}
	*f = jsonFloat(v)
	return nil
}

// MarshalJSON chi2/logl/edm 可能為 +Inf（例如 logl 在 chi2 解上不可行）
func (e EstimatorResult) MarshalJSON() ([]byte, error) {
	type plain EstimatorResult
	return json.Marshal(struct {
		plain
		Chi2 jsonFloat `json:"chi2"`
		LogL jsonFloat `json:"logl"`
		EDM  jsonFloat `json:"edm"`
	}{plain(e), jsonFloat(e.Chi2), jsonFloat(e.LogL), jsonFloat(e.EDM)})
}

func (e *EstimatorResult) UnmarshalJSON(b []byte) error {
	type plain EstimatorResult
	aux := struct {
		*plain
		Chi2 jsonFloat `json:"chi2"`
		LogL jsonFloat `json:"logl"`
		EDM  jsonFloat `json:"edm"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Chi2, e.LogL, e.EDM = float64(aux.Chi2), float64(aux.LogL), float64(aux.EDM)
	return nil
}

// NewEstimatorResult 由最小化結果建立；Chi2/LogL 由呼叫端填入
func NewEstimatorResult(r *optimizer.Result) *EstimatorResult {
	e := &EstimatorResult{
		EDM:        r.EDM,
		Iterations: r.Iterations,
		FuncEvals:  r.FuncEvals,
		Converged:  r.Converged,
		CovOK:      r.CovOK,
		Status:     r.Status,
		Search:     r.SearchStatus,
	}
	for i, v := range e.values() {
		*v = Value{r.X[i], r.Errors[i]}
		e.Fix[i] = i < len(r.Fixed) && r.Fixed[i]
	}
	return e
}

func (e *EstimatorResult) values() [model.NPar]*Value {
	return [model.NPar]*Value{&e.C2, &e.C4, &e.C6, &e.Phi2}
}

// Params 參數值
func (e *EstimatorResult) Params() model.Params {
	var p model.Params
	for i, v := range e.values() {
		p[i] = v[0]
	}
	return p
}

// Errors 參數誤差
func (e *EstimatorResult) Errors() model.Params {
	var p model.Params
	for i, v := range e.values() {
		p[i] = v[1]
	}
	return p
}

// Fixed 參數 i 在擬合中是否固定
func (e *EstimatorResult) Fixed(i int) bool {
	return e.Fix[i]
}

// FitReport 一次擬合的完整紀錄
//
// Hist 每列為 [density, error, count]，依 bin 順序。
type FitReport struct {
	Range       [2]float64                  `json:"range" yaml:"range"`
	Entries     uint64                      `json:"entries" yaml:"entries"`
	Rejected    uint64                      `json:"rejected" yaml:"rejected"`
	TotalWeight float64                     `json:"total_weight" yaml:"total_weight"`
	Hist        [][3]float64                `json:"hist" yaml:"hist"`
	Fits        map[string]*EstimatorResult `json:"fits" yaml:"fits"`
	NFree       int                         `json:"nfree" yaml:"nfree"`
	Refit       int                         `json:"refit" yaml:"refit"`
	Excluded    []int                       `json:"excluded_bins,omitempty" yaml:"excluded_bins,omitempty"`
}

// NewFitReport 以正規化後的直方圖建立報告骨架
func NewFitReport(d *hist.Density, rejected uint64, nfree int) *FitReport {
	r := &FitReport{
		Range:       [2]float64{d.Axis.Lo, d.Axis.Hi},
		Entries:     d.Entries(),
		Rejected:    rejected,
		TotalWeight: d.TotalWeight,
		Hist:        make([][3]float64, len(d.Values)),
		Fits:        make(map[string]*EstimatorResult, 2),
		NFree:       nfree,
	}
	for i := range d.Values {
		r.Hist[i] = [3]float64{d.Values[i], d.Error(i), float64(d.Counts[i])}
	}
	return r
}

// Density 由報告重建正規化直方圖
func (r *FitReport) Density() (*hist.Density, error) {
	axis, err := hist.NewUniformAxis(uint32(len(r.Hist)), r.Range[0], r.Range[1])
	if err != nil {
		return nil, err
	}
	d := &hist.Density{
		Axis:        axis,
		TotalWeight: r.TotalWeight,
		Values:      make([]float64, len(r.Hist)),
		Variances:   make([]float64, len(r.Hist)),
		Counts:      make([]uint64, len(r.Hist)),
	}
	for i, row := range r.Hist {
		d.Values[i] = row[0]
		d.Variances[i] = row[1] * row[1]
		d.Counts[i] = uint64(row[2])
	}
	return d, nil
}

// NDF chi2 的自由度：可用 bin 數 − 自由參數數
func (r *FitReport) NDF() int {
	return max(len(r.Hist)-len(r.Excluded)-r.NFree, 0)
}

// Fit 取出估計量結果，不存在時回傳 Config 錯誤
func (r *FitReport) Fit(name string) (*EstimatorResult, error) {
	e, ok := r.Fits[name]
	if !ok || e == nil {
		return nil, errs.Configf("report: no fit named %q", name)
	}
	return e, nil
}

func (r *FitReport) WriteWith(w io.Writer, rep FitReportRender) error {
	return rep.Write(w, r)
}

// ReadJSON 讀回 JSON 報告
func ReadJSON(rd io.Reader) (*FitReport, error) {
	r := new(FitReport)
	if err := json.NewDecoder(rd).Decode(r); err != nil {
		return nil, errs.Wrap(err, "report: decode json")
	}
	if len(r.Hist) == 0 {
		return nil, errs.Configf("report: empty hist")
	}
	return r, nil
}

// ReadFile 讀取 JSON 報告檔
func ReadFile(path string) (*FitReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, "report: open")
	}
	defer f.Close()
	return ReadJSON(f)
}
