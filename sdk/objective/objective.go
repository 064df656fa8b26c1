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

// Package objective 提供兩種擬合目標函數：
//
//   - Chi2 : 直方圖密度與模型在 bin 中心的加權殘差平方和
//   - NLL  : 未分箱加權事件的 -2·log-likelihood
//
// 兩者共用 model.Intensity。Eval 是給最小化器用的熱路徑，
// 遇到模型未定義的點回傳 +Inf；Evaluate 則回傳帶 Kind 的錯誤供呼叫端判斷。
package objective

import (
	"github.com/zintix-labs/angfit/sdk/model"
)

// Objective 最小化器所需的最小介面
type Objective interface {
	Eval(p model.Params) float64
}

// Func 把 Objective 轉成泛用最小化器使用的 func([]float64) float64
func Func(o Objective) func([]float64) float64 {
	return func(x []float64) float64 {
		return o.Eval(model.FromSlice(x))
	}
}
