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

package angfit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/event"
	"github.com/zintix-labs/angfit/spec"
	"github.com/zintix-labs/angfit/stats"
)

// FitRuntime 服務端的擬合執行環境：限制同時進行的擬合數量，可關閉。
//
// 單次擬合內部不支援取消；ctx 只作用在等待空位的階段。
type FitRuntime struct {
	slots chan struct{}
	log   *slog.Logger

	inflight atomic.Int64
	served   atomic.Uint64

	// lifecycle
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string
}

// NewFitRuntime size 為同時擬合上限（<= 0 視為 1）
func NewFitRuntime(size int, log *slog.Logger) *FitRuntime {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FitRuntime{
		slots: make(chan struct{}, max(size, 1)),
		log:   log,
		done:  make(chan struct{}),
	}
}

// Fit 取得空位後以 fs 擬合 evs；fs 為 nil 時用預設設定
func (rt *FitRuntime) Fit(ctx context.Context, evs []event.Event, fs *spec.FitSetting) (*stats.FitReport, error) {
	if rt.closed.Load() {
		return nil, errs.NewFatal("fit runtime closed: " + rt.ClosedReason())
	}
	select {
	case <-ctx.Done():
		return nil, errs.Wrap(ctx.Err(), "fit canceled/timeout while waiting for a slot")
	case <-rt.done:
		rt.closed.Store(true)
		return nil, errs.NewFatal("fit runtime closed: " + rt.ClosedReason())
	case rt.slots <- struct{}{}:
	}
	defer func() { <-rt.slots }()

	rt.inflight.Add(1)
	defer rt.inflight.Add(-1)

	f, err := New(fs, WithLogger(rt.log))
	if err != nil {
		return nil, err
	}
	rep, err := f.Fit(evs)
	rt.served.Add(1)
	return rep, err
}

// Inflight 目前正在擬合的請求數
func (rt *FitRuntime) Inflight() int64 { return rt.inflight.Load() }

// Served 已完成（含失敗）的擬合數
func (rt *FitRuntime) Served() uint64 { return rt.served.Load() }

// Close 轉為關閉狀態，可重複呼叫
func (rt *FitRuntime) Close() {
	rt.closeWithReason("closed")
}

// closeWithReason 只記錄第一次的原因
func (rt *FitRuntime) closeWithReason(reason string) {
	rt.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		rt.reason.Store(reason)
		rt.closed.Store(true)
		close(rt.done)
	})
}

func (rt *FitRuntime) Closed() bool {
	return rt.closed.Load()
}

func (rt *FitRuntime) ClosedReason() string {
	if v := rt.reason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
