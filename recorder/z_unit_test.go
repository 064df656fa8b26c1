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

package recorder

import (
	"math"
	"testing"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/event"
	"github.com/zintix-labs/angfit/sdk/hist"
)

func axis(t *testing.T) hist.UniformAxis {
	t.Helper()
	a, err := hist.NewUniformAxis(10, -1, 1)
	if err != nil {
		t.Fatalf("axis: %v", err)
	}
	return a
}

func TestRecordFiltersBothEstimators(t *testing.T) {
	r, err := NewEventRecorder(axis(t), false)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	evs := []event.Event{
		{Angle: 0.1, Weight: 2},
		{Angle: 1.2, Weight: 5},
		{Angle: -1, Weight: 0.5},
	}
	if err := r.RecordAll(evs); err != nil {
		t.Fatalf("record: %v", err)
	}
	if r.Entries() != 2 || r.Rejected() != 1 {
		t.Fatalf("entries=%d rejected=%d", r.Entries(), r.Rejected())
	}
	if r.TotalWeight != 2.5 || r.Hist.SumW() != 2.5 {
		t.Fatalf("total weight %v / hist %v", r.TotalWeight, r.Hist.SumW())
	}
	if r.Hist.Entries() != uint64(r.Entries()) {
		t.Fatalf("histogram and event list disagree")
	}
}

func TestRecordStrictAndWeight(t *testing.T) {
	r, _ := NewEventRecorder(axis(t), true)
	if err := r.Record(event.Event{Angle: -1.5, Weight: 1}); !errs.IsKind(err, errs.KindDomain) {
		t.Fatalf("strict out-of-range: %v", err)
	}
	if err := r.Record(event.Event{Angle: 0, Weight: math.NaN()}); !errs.IsKind(err, errs.KindDomain) {
		t.Fatalf("nan weight: %v", err)
	}
	// 拒絕由直方圖計數，事件列表不收
	if r.Rejected() != 1 || r.Hist.Rejected() != 1 || r.Entries() != 0 || r.Hist.Entries() != 0 {
		t.Fatalf("rejected=%d hist=%d entries=%d", r.Rejected(), r.Hist.Rejected(), r.Entries())
	}

	lenient, _ := NewEventRecorder(axis(t), false)
	if _, err := MergeEventRecorder([]*EventRecorder{lenient, r}); err == nil {
		t.Fatalf("merging different strict modes must fail")
	}
}

func TestMerge(t *testing.T) {
	a, _ := NewEventRecorder(axis(t), false)
	b, _ := NewEventRecorder(axis(t), false)
	_ = a.Record(event.Event{Angle: 0.3, Weight: 1})
	_ = b.Record(event.Event{Angle: -0.3, Weight: 3})
	_ = b.Record(event.Event{Angle: 9, Weight: 3})
	m, err := MergeEventRecorder([]*EventRecorder{a, b})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if m.Entries() != 2 || m.TotalWeight != 4 || m.Rejected() != 1 || m.Hist.Entries() != 2 {
		t.Fatalf("merged: entries=%d w=%v rej=%d", m.Entries(), m.TotalWeight, m.Rejected())
	}
	if m.Events[0].Angle != 0.3 {
		t.Fatalf("merge must keep input order")
	}
	if _, err := MergeEventRecorder(nil); err == nil {
		t.Fatalf("empty merge must fail")
	}
}
