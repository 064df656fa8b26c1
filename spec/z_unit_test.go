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

package spec

import (
	"testing"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/model"
)

func TestDefaultSetting(t *testing.T) {
	fs := Default()
	if fs.Axis.NBins != DefaultBins || fs.Axis.Lo != -1 || fs.Axis.Hi != 1 {
		t.Fatalf("default axis %+v", fs.Axis)
	}
	if fs.Refit.Ratio != 2.0 || fs.Refit.MaxRefit() != 1 {
		t.Fatalf("default refit %+v", fs.Refit)
	}
	for i, b := range fs.ParamBounds() {
		if b != DefaultBound {
			t.Fatalf("param %d bound %+v", i, b)
		}
	}
	if fs.NFree() != model.NPar || fs.Start() != (model.Params{}) {
		t.Fatalf("default start/free")
	}
}

func TestYAMLSetting(t *testing.T) {
	data := []byte(`
name: phi-fixed
axis: {bins: 40, lo: -1, hi: 1}
bounds:
  c2: {lo: -1, hi: 2}
fix:
  phi2: 0.25
seed:
  c2: 0.4
refit:
  ratio: 3
  max: 0
minimizer:
  max_iter: 200
  print_level: -1
workers: 2
`)
	fs, err := GetFitSettingByYAML(data)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if fs.Axis.NBins != 40 || fs.Refit.Ratio != 3 || fs.Refit.MaxRefit() != 0 {
		t.Fatalf("parsed %+v", fs)
	}
	if fs.Minimizer.MaxIter != 200 || fs.Minimizer.Tolerance == 0 {
		t.Fatalf("minimizer defaults %+v", fs.Minimizer)
	}
	b := fs.ParamBounds()
	if b[model.C2].Lo != -1 || b[model.C2].Hi != 2 || b[model.C4] != DefaultBound {
		t.Fatalf("bounds %+v", b)
	}
	mask := fs.FixedMask()
	if !mask[model.Phi2] || mask[model.C2] || fs.NFree() != 3 {
		t.Fatalf("mask %v", mask)
	}
	if p := fs.Start(); p[model.C2] != 0.4 || p[model.Phi2] != 0.25 {
		t.Fatalf("start %v", p)
	}
	if p := fs.Pin(model.Params{1, 1, 1, 1}); p[model.Phi2] != 0.25 || p[model.C2] != 1 {
		t.Fatalf("pin %v", p)
	}
}

func TestInvalidSettings(t *testing.T) {
	cases := []string{
		`axis: {bins: 0, lo: -1, hi: 1}`,
		`axis: {bins: 10, lo: 1, hi: -1}`,
		`fix: {c2: 0, c4: 0, c6: 0, phi2: 0}`,
		`fix: {c8: 0}`,
		`fix: {c2: 3}`,
		`bounds: {c4: {lo: 1, hi: 1}}`,
		`seed: {phi2: -2}`,
		`refit: {ratio: -1}`,
		`workers: -1`,
	}
	for _, c := range cases {
		if _, err := GetFitSettingByYAML([]byte(c)); !errs.IsKind(err, errs.KindConfig) {
			t.Fatalf("%q: want config error, got %v", c, err)
		}
	}
}

func TestJSONSetting(t *testing.T) {
	fs, err := GetFitSettingByJSON([]byte(`{"axis":{"bins":8,"lo":-1,"hi":1},"fix":{"phi2":0}}`))
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if fs.Axis.NBins != 8 || fs.NFree() != 3 {
		t.Fatalf("parsed %+v", fs)
	}
	if _, err := GetFitSettingByJSON([]byte(`{`)); !errs.IsKind(err, errs.KindConfig) {
		t.Fatalf("bad json: %v", err)
	}
}
