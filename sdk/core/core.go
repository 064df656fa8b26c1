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

// Package core 提供 toy 樣本產生所需的可重現亂數來源。
//
// 同一個 seed 必須產生同一串輸出：測試與 cmd/gen 都依賴這點重現樣本。
package core

// PRNG Core 所需的亂數來源
type PRNG interface {
	// Uint64 回傳 uint64 亂數
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數
	Float64() float64
	// Snapshot 回傳可用於還原的序列化狀態
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原
	Restore([]byte) error
}

// Factory 以 seed 決定性地建立 PRNG
type Factory interface {
	New(seed int64) PRNG
}

// DefaultPRNG 預設 Factory，產生 PCG64
type DefaultPRNG struct{}

func (DefaultPRNG) New(seed int64) PRNG {
	return NewPCG64(seed)
}

func Default() DefaultPRNG {
	return DefaultPRNG{}
}

// Core 封裝 PRNG 並提供取樣工具
type Core struct {
	PRNG
}

func New(rng PRNG) *Core {
	return &Core{rng}
}

// Uniform 回傳 [lo,hi) 的均勻亂數
func (c *Core) Uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*c.Float64()
}

// IntN 回傳 [0,n) 的均勻整數；n <= 0 時 panic
func (c *Core) IntN(n int) int {
	if n <= 0 {
		panic("core: IntN with n <= 0")
	}
	un := uint64(n)
	// 拒絕尾段，避免取模偏差
	limit := ^uint64(0) - (^uint64(0)%un+1)%un
	for {
		if v := c.Uint64(); v <= limit {
			return int(v % un)
		}
	}
}

// Accept 以機率 p 回傳 true；p <= 0 永遠 false，p >= 1 永遠 true
func (c *Core) Accept(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return c.Float64() < p
}

// Sample 以接受-拒絕法從 [lo,hi] 上的非負函數 f 取一個樣本。
//
// fmax 必須是 f 在區間上的上界；maxTry 次都被拒絕時回傳 ok=false。
func (c *Core) Sample(f func(float64) float64, lo, hi, fmax float64, maxTry int) (x float64, ok bool) {
	for range maxTry {
		x = c.Uniform(lo, hi)
		if c.Float64()*fmax < f(x) {
			return x, true
		}
	}
	return 0, false
}
