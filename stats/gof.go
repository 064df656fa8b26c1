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

package stats

import (
	"math"

	"github.com/zintix-labs/angfit/sdk/model"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PValue chi2 分布的右尾機率；ndf <= 0 時為 NaN
func PValue(chi2 float64, ndf int) float64 {
	if ndf <= 0 || math.IsNaN(chi2) {
		return math.NaN()
	}
	if math.IsInf(chi2, 1) {
		return 0
	}
	return distuv.ChiSquared{K: float64(ndf)}.Survival(chi2)
}

// Pulls 每個 bin 的殘差 (density − I(center)) / error。
//
// 誤差為 0 或模型在該參數無定義的 bin 為 NaN。
func (r *FitReport) Pulls(name string) ([]float64, error) {
	fit, err := r.Fit(name)
	if err != nil {
		return nil, err
	}
	d, err := r.Density()
	if err != nil {
		return nil, err
	}
	p := fit.Params()
	pulls := make([]float64, len(r.Hist))
	for i := range pulls {
		pulls[i] = math.NaN()
		e := d.Error(i)
		if !(e > 0) {
			continue
		}
		m, err := model.IntensityChecked(d.Axis.Center(i), p)
		if err != nil {
			continue
		}
		pulls[i] = (d.Values[i] - m) / e
	}
	return pulls, nil
}

// PullStats 有限 pull 的平均、標準差與個數
func PullStats(pulls []float64) (mean, std float64, n int) {
	xs := make([]float64, 0, len(pulls))
	for _, v := range pulls {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			xs = append(xs, v)
		}
	}
	switch len(xs) {
	case 0:
		return math.NaN(), math.NaN(), 0
	case 1:
		return xs[0], 0, 1
	}
	mean, std = stat.MeanStdDev(xs, nil)
	return mean, std, len(xs)
}
