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

// Package spec 定義擬合設定（FitSetting）與其載入、檢查。
package spec

import (
	"math"
	"sort"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/optimizer"
	"github.com/zintix-labs/angfit/sdk/hist"
	"github.com/zintix-labs/angfit/sdk/model"
)

const (
	DefaultBins       = 50
	DefaultRefitRatio = 2.0
	DefaultMaxRefit   = 1
)

// DefaultBound 四個參數共用的預設邊界。phi2 是相位，但沿用同一組邊界
var DefaultBound = optimizer.Bound{Lo: -0.5, Hi: 1.5}

type FitSetting struct {
	Name        string                     `yaml:"name"         json:"name"`
	Axis        hist.UniformAxis           `yaml:"axis"         json:"axis"`
	Bounds      map[string]optimizer.Bound `yaml:"bounds"       json:"bounds,omitempty"`
	Fix         map[string]float64         `yaml:"fix"          json:"fix,omitempty"`
	Seed        map[string]float64         `yaml:"seed"         json:"seed,omitempty"`
	Refit       RefitSetting               `yaml:"refit"        json:"refit"`
	Minimizer   optimizer.Settings         `yaml:"minimizer"    json:"minimizer"`
	Workers     int                        `yaml:"workers"      json:"workers"`
	StrictRange bool                       `yaml:"strict_range" json:"strict_range"`
}

// RefitSetting chi2 比值檢查
//
//   - Ratio : chi2(chi2 解) / chi2(logl 解) 超過此值時以 logl 解重新播種 chi2 擬合
//   - Max   : 重新擬合次數上限；nil 視為 DefaultMaxRefit，0 表示關閉
type RefitSetting struct {
	Ratio float64 `yaml:"ratio" json:"ratio"`
	Max   *int    `yaml:"max"   json:"max,omitempty"`
}

// MaxRefit 解析後的重新擬合次數上限
func (r RefitSetting) MaxRefit() int {
	if r.Max == nil {
		return DefaultMaxRefit
	}
	return *r.Max
}

// Default 預設設定：[-1,1] 上 DefaultBins 格，四個參數皆自由
func Default() *FitSetting {
	fs := &FitSetting{Name: "default"}
	_ = fs.init()
	return fs
}

// init 補預設值後檢查
func (fs *FitSetting) init() error {
	if fs.Axis == (hist.UniformAxis{}) {
		fs.Axis = hist.UniformAxis{NBins: DefaultBins, Lo: -1, Hi: 1}
	}
	if fs.Refit.Ratio == 0 {
		fs.Refit.Ratio = DefaultRefitRatio
	}
	fs.Minimizer = fs.Minimizer.WithDefaults()
	return fs.valid()
}

// Init 供程式內建構的設定（非由 YAML/JSON 載入）補預設並檢查
func (fs *FitSetting) Init() error {
	return fs.init()
}

func (fs *FitSetting) valid() error {
	if err := fs.Axis.Validate(); err != nil {
		return err
	}
	for _, name := range sortedKeys(fs.Bounds) {
		b := fs.Bounds[name]
		if model.Index(name) < 0 {
			return errs.Configf("fit setting: unknown parameter %q in bounds", name)
		}
		if math.IsNaN(b.Lo) || math.IsNaN(b.Hi) || math.IsInf(b.Lo, 0) || math.IsInf(b.Hi, 0) || !(b.Lo < b.Hi) {
			return errs.Configf("fit setting: invalid bound for %s: [%v, %v]", name, b.Lo, b.Hi)
		}
	}
	bounds := fs.ParamBounds()
	for _, name := range sortedKeys(fs.Fix) {
		i := model.Index(name)
		if i < 0 {
			return errs.Configf("fit setting: unknown parameter %q in fix", name)
		}
		if v := fs.Fix[name]; !(v >= bounds[i].Lo && v <= bounds[i].Hi) {
			return errs.Configf("fit setting: fixed %s=%v outside [%v, %v]", name, v, bounds[i].Lo, bounds[i].Hi)
		}
	}
	if len(fs.Fix) >= model.NPar {
		return errs.Configf("fit setting: all %d parameters fixed, nothing to optimize", model.NPar)
	}
	for _, name := range sortedKeys(fs.Seed) {
		i := model.Index(name)
		if i < 0 {
			return errs.Configf("fit setting: unknown parameter %q in seed", name)
		}
		if v := fs.Seed[name]; !(v >= bounds[i].Lo && v <= bounds[i].Hi) {
			return errs.Configf("fit setting: seed %s=%v outside [%v, %v]", name, v, bounds[i].Lo, bounds[i].Hi)
		}
	}
	if !(fs.Refit.Ratio > 0) || math.IsInf(fs.Refit.Ratio, 0) {
		return errs.Configf("fit setting: refit ratio must be finite and > 0, got %v", fs.Refit.Ratio)
	}
	if fs.Refit.MaxRefit() < 0 {
		return errs.Configf("fit setting: refit max must be >= 0, got %d", fs.Refit.MaxRefit())
	}
	if fs.Workers < 0 {
		return errs.Configf("fit setting: workers must be >= 0, got %d", fs.Workers)
	}
	return nil
}

// ParamBounds 每個參數的邊界（未覆寫者用 DefaultBound）
func (fs *FitSetting) ParamBounds() []optimizer.Bound {
	out := make([]optimizer.Bound, model.NPar)
	for i, name := range model.Names {
		out[i] = DefaultBound
		if b, ok := fs.Bounds[name]; ok {
			out[i] = b
		}
	}
	return out
}

// FixedMask 固定參數標記
func (fs *FitSetting) FixedMask() []bool {
	out := make([]bool, model.NPar)
	for i, name := range model.Names {
		_, out[i] = fs.Fix[name]
	}
	return out
}

// NFree 自由參數數
func (fs *FitSetting) NFree() int {
	return model.NPar - len(fs.Fix)
}

// Start chi2 擬合的起點：自由參數取 Seed（預設 0），固定參數取 Fix
func (fs *FitSetting) Start() model.Params {
	var p model.Params
	for i, name := range model.Names {
		if v, ok := fs.Seed[name]; ok {
			p[i] = v
		}
		if v, ok := fs.Fix[name]; ok {
			p[i] = v
		}
	}
	return p
}

// Pin 把 p 的固定參數改回設定值
func (fs *FitSetting) Pin(p model.Params) model.Params {
	for i, name := range model.Names {
		if v, ok := fs.Fix[name]; ok {
			p[i] = v
		}
	}
	return p
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
