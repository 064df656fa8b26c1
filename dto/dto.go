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

package dto

import (
	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/model"
	"github.com/zintix-labs/angfit/stats"
)

// FitResult 擬合回應；未收斂時報告仍完整，並附上警告訊息
type FitResult struct {
	Report   *stats.FitReport `json:"report"`
	Warnings []string         `json:"warnings,omitempty"`
}

// IntensityResult 強度曲線回應
type IntensityResult struct {
	Params model.Params `json:"params"`
	C0     float64      `json:"c0"`
	Points []float64    `json:"points"`
	Values []float64    `json:"values"`
}

func NewIntensityResult(req *IntensityRequest) (IntensityResult, error) {
	if req == nil {
		return IntensityResult{}, errs.NewWarn("intensity request is nil")
	}
	xs, err := req.Grid()
	if err != nil {
		return IntensityResult{}, err
	}
	c0, ok := model.C0(req.Params)
	if !ok {
		_, err := model.IntensityChecked(0, req.Params)
		return IntensityResult{}, err
	}
	return IntensityResult{
		Params: req.Params,
		C0:     c0,
		Points: xs,
		Values: model.Curve(nil, xs, req.Params),
	}, nil
}
