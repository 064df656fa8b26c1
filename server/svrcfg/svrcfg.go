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

package svrcfg

import (
	"log/slog"
	"time"

	"github.com/zintix-labs/angfit"
	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/server/logger"
)

const (
	DefaultAddr       = ":5808"
	DefaultFitTimeout = 2 * time.Minute
)

type SvrCfg struct {
	Log        *slog.Logger
	Addr       string
	FitBufSize int           // 同時擬合上限
	FitTimeout time.Duration // 等待空位加上擬合的總時限
	Runtime    *angfit.FitRuntime
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeSilence)
	}
	if sc.Addr == "" {
		sc.Addr = DefaultAddr
	}
	if sc.FitTimeout <= 0 {
		sc.FitTimeout = DefaultFitTimeout
	}

	// 1 <= sc.FitBufSize <= 10
	// 每個擬合的 NLL 已經併發，太多同時擬合只會互搶 CPU
	sc.FitBufSize = max(1, sc.FitBufSize)
	sc.FitBufSize = min(10, sc.FitBufSize)
	if sc.Runtime == nil {
		sc.Runtime = angfit.NewFitRuntime(sc.FitBufSize, sc.Log)
	}
	return nil
}
