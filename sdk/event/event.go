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

// Package event 定義加權事件與其二進位檔案格式。
//
// 檔案格式為連續的固定長度紀錄，每筆三個 little-endian float64：
//
//	weight | mass | cos_theta
//
// 副檔名為 .zst 時整個串流以 zstd 壓縮。
package event

// RecordSize 單筆紀錄位元組數
const RecordSize = 24

// Event 一筆加權觀測
//
// 擬合只用到 Angle 與 Weight；Mass 保留在紀錄中供下游篩選。
type Event struct {
	Weight float64 `json:"w"`
	Mass   float64 `json:"m,omitempty"`
	Angle  float64 `json:"cos"`
}

// TotalWeight 權重總和
func TotalWeight(evs []Event) float64 {
	s := 0.0
	for _, e := range evs {
		s += e.Weight
	}
	return s
}
