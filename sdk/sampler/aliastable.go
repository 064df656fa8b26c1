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

package sampler

import (
	"math"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/core"
)

// AliasTable 是 Vose Alias Method 的 O(1) 加權抽樣結構。
//
// 每個槽位只存放「自己」與「別名」兩個選項；抽樣時先均勻選槽位，
// 再以 Prob[idx] 決定取自己或別名。建表 O(N)，抽樣固定 2 次亂數。
type AliasTable struct {
	Prob    []float64 // 槽位留給自己的機率，[0,1]
	Aliases []int
}

// BuildAliasTable 根據非負權重建立 AliasTable；權重不需正規化。
// 負權重、NaN、Inf 或全部為零回傳 KindConfig
func BuildAliasTable[T Numbers](weights []T) (*AliasTable, error) {
	n := len(weights)
	if n == 0 {
		return nil, errs.Configf("alias table: empty weights")
	}
	total := 0.0
	for i, w := range weights {
		v := float64(w)
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errs.Configf("alias table: invalid weight[%d]=%v", i, v)
		}
		total += v
	}
	if !(total > 0) || math.IsInf(total, 0) {
		return nil, errs.Configf("alias table: total weight %v", total)
	}

	at := &AliasTable{Prob: make([]float64, n), Aliases: make([]int, n)}
	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, w := range weights {
		at.Prob[i] = float64(w) * float64(n) / total // 平均值為 1
		at.Aliases[i] = i
		if at.Prob[i] < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}
	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		at.Aliases[s] = l
		at.Prob[l] = at.Prob[l] + at.Prob[s] - 1 // s 的缺口由 l 補
		if at.Prob[l] < 1 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	// 捨入殘留：剩下的槽位都視為滿
	for _, i := range large {
		at.Prob[i] = 1
	}
	for _, i := range small {
		at.Prob[i] = 1
	}
	return at, nil
}

// Size 槽位數
func (at *AliasTable) Size() int { return len(at.Prob) }

// Pick 抽一個索引
func (at *AliasTable) Pick(c *core.Core) int {
	idx := c.IntN(len(at.Prob))
	if c.Float64() < at.Prob[idx] {
		return idx
	}
	return at.Aliases[idx]
}
