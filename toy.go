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
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/core"
	"github.com/zintix-labs/angfit/sdk/event"
	"github.com/zintix-labs/angfit/sdk/hist"
	"github.com/zintix-labs/angfit/sdk/model"
	"github.com/zintix-labs/angfit/sdk/sampler"
	"golang.org/x/sync/errgroup"
)

const toyMaxTry = 1 << 20

// ToySetting toy 樣本設定
//
//   - Params  : 產生樣本的真值
//   - Events  : 事件數
//   - Axis    : 角度範圍（只用 Lo/Hi）
//   - Weight  : 權重在 [lo, hi) 均勻取樣；零值表示權重固定為 1
//   - Mass    : 寫入每個事件的質量欄位
//   - Workers : 併發數，<= 0 視為 1
//   - Seed    : 同樣的 Seed 與 Workers 產生同樣的樣本
//   - Segments: 接受-拒絕上界的分段數，0 為 sampler.DefaultSegments，1 為單一上界
type ToySetting struct {
	Params   model.Params
	Events   int
	Axis     hist.UniformAxis
	Weight   [2]float64
	Mass     float64
	Workers  int
	Seed     int64
	Segments int
}

// Generate 以接受-拒絕法產生 toy 事件；cf 為 nil 時使用 core.Default()
func Generate(ctx context.Context, ts ToySetting, cf core.Factory, showpb bool) ([]event.Event, time.Duration, error) {
	if ts.Events < 1 {
		return nil, 0, errs.Configf("toy: events must be > 0, got %d", ts.Events)
	}
	if err := ts.Axis.Validate(); err != nil {
		return nil, 0, err
	}
	if ts.Weight != [2]float64{} && !(ts.Weight[0] > 0 && ts.Weight[0] <= ts.Weight[1]) {
		return nil, 0, errs.Configf("toy: invalid weight range %v", ts.Weight)
	}
	env, err := envelope(ts)
	if err != nil {
		return nil, 0, err
	}
	if cf == nil {
		cf = core.Default()
	}
	workers := max(ts.Workers, 1)
	seeds := core.NewSeedMaker(ts.Seed)

	evs := make([]event.Event, ts.Events)
	bar := pb.Start64(int64(ts.Events))
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	g, gctx := errgroup.WithContext(ctx)
	chunk := (ts.Events + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, ts.Events)
		if lo >= hi {
			break
		}
		c := core.New(cf.New(seeds.Next()))
		g.Go(func() error {
			return sample(gctx, c, evs[lo:hi], ts, env, bar)
		})
	}
	err = g.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if err != nil {
		return nil, used, err
	}
	return evs, used, nil
}

func sample(ctx context.Context, c *core.Core, dst []event.Event, ts ToySetting, env *sampler.Envelope, bar *pb.ProgressBar) error {
	f := func(x float64) float64 { return model.Intensity(x, ts.Params) }
	for i := range dst {
		if i&0xfff == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		x, ok := env.Sample(c, f, toyMaxTry)
		if !ok {
			return errs.Domainf("toy: sampling rejected %d times in a row at %v", toyMaxTry, ts.Params)
		}
		w := 1.0
		if ts.Weight != [2]float64{} {
			w = c.Uniform(ts.Weight[0], ts.Weight[1])
		}
		dst[i] = event.Event{Weight: w, Mass: ts.Mass, Angle: x}
		bar.Increment()
	}
	return nil
}

// envelope 建立強度的分段上界；參數不可行時回傳 KindDomain
func envelope(ts ToySetting) (*sampler.Envelope, error) {
	if _, err := model.IntensityChecked(ts.Axis.Lo, ts.Params); err != nil {
		return nil, err
	}
	f := func(x float64) float64 { return model.Intensity(x, ts.Params) }
	env, err := sampler.NewEnvelope(f, ts.Axis.Lo, ts.Axis.Hi, ts.Segments, 0, 0)
	if err != nil {
		return nil, errs.Wrap(err, "toy: intensity envelope")
	}
	return env, nil
}
