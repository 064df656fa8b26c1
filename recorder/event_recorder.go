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

// Package recorder 負責收集一次擬合所需的輸入：直方圖與通過範圍檢查的事件列表。
//
// 直方圖與事件列表套用同一個接受條件，兩個估計量因此看到同一份樣本。
package recorder

import (
	"math"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/event"
	"github.com/zintix-labs/angfit/sdk/hist"
)

// EventRecorder 事件紀錄員
//
// 非 goroutine-safe；併發時每個 worker 各持一份，最後以 MergeEventRecorder 合併。
// 範圍檢查與嚴格模式由 Hist 負責。
type EventRecorder struct {
	Hist        *hist.Histogram
	Events      []event.Event
	TotalWeight float64
}

func NewEventRecorder(axis hist.UniformAxis, strict bool) (*EventRecorder, error) {
	h, err := hist.New(axis)
	if err != nil {
		return nil, err
	}
	h.SetStrict(strict)
	return &EventRecorder{Hist: h}, nil
}

// Record 紀錄一個事件。區間外的角度：非嚴格模式丟棄並計數，嚴格模式回傳 KindDomain
func (r *EventRecorder) Record(e event.Event) error {
	if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
		return errs.Domainf("recorder: non-finite weight %v (angle=%v)", e.Weight, e.Angle)
	}
	rejected := r.Hist.Rejected()
	if err := r.Hist.Accumulate(e.Angle, e.Weight); err != nil {
		return err
	}
	if r.Hist.Rejected() != rejected {
		return nil
	}
	r.Events = append(r.Events, e)
	r.TotalWeight += e.Weight
	return nil
}

// RecordAll 依序紀錄；遇到第一個錯誤即停止
func (r *EventRecorder) RecordAll(evs []event.Event) error {
	if cap(r.Events)-len(r.Events) < len(evs) {
		grown := make([]event.Event, len(r.Events), len(r.Events)+len(evs))
		copy(grown, r.Events)
		r.Events = grown
	}
	for _, e := range evs {
		if err := r.Record(e); err != nil {
			return err
		}
	}
	return nil
}

// Rejected 區間外被丟棄的事件數
func (r *EventRecorder) Rejected() uint64 { return r.Hist.Rejected() }

// Entries 已接受的事件數
func (r *EventRecorder) Entries() int { return len(r.Events) }

// MergeEventRecorder 依傳入順序合併；axis 與嚴格模式必須一致
func MergeEventRecorder(rs []*EventRecorder) (*EventRecorder, error) {
	if len(rs) == 0 {
		return nil, errs.NewFatal("merge event recorder err : empty input")
	}
	r0 := rs[0]
	out, err := NewEventRecorder(r0.Hist.Axis(), r0.Hist.Strict())
	if err != nil {
		return nil, err
	}
	n := 0
	for _, v := range rs {
		n += len(v.Events)
	}
	out.Events = make([]event.Event, 0, n)
	for _, v := range rs {
		if v.Hist.Strict() != r0.Hist.Strict() {
			return nil, errs.NewFatal("merge event recorder err : different strict mode")
		}
		if err := out.Hist.Merge(v.Hist); err != nil {
			return nil, err
		}
		out.Events = append(out.Events, v.Events...)
		out.TotalWeight += v.TotalWeight
	}
	return out, nil
}
