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

package v1

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/zintix-labs/angfit"
	"github.com/zintix-labs/angfit/dto"
	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/server/httperr"
	"github.com/zintix-labs/angfit/server/svrcfg"
)

// ============================================================
// ** FitHandler **
// ============================================================

type FitHandler struct {
	rt      *angfit.FitRuntime
	log     *slog.Logger
	timeout time.Duration
}

func NewFitHandler(sCfg *svrcfg.SvrCfg) (*FitHandler, error) {
	if sCfg == nil || sCfg.Runtime == nil {
		return nil, errs.NewFatal("fit runtime is required")
	}
	return &FitHandler{rt: sCfg.Runtime, log: sCfg.Log, timeout: sCfg.FitTimeout}, nil
}

// Fit POST /v1/fit
//
// 200：擬合完成；422：擬合未收斂，body 仍是完整報告並附 warnings；
// 其他錯誤依 httperr.StatusCode 映射。
func (h *FitHandler) Fit(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeFitRequest(w, r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	evs, fs, err := req.Parse()
	if err != nil {
		httperr.Errs(w, err)
		return
	}

	// 請求解析完成，設置超時 context
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rep, err := h.rt.Fit(ctx, evs, fs)
	if rep == nil {
		httperr.Log(h.log, "fit failed", err)
		httperr.Errs(w, err)
		return
	}
	res := dto.FitResult{Report: rep}
	status := http.StatusOK
	if err != nil {
		httperr.Log(h.log, "fit not converged", err)
		res.Warnings = []string{err.Error()}
		status = httperr.StatusCode(err)
	}
	writeJSON(w, status, res)
}

// Healthz GET /v1/healthz
func (h *FitHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status   string `json:"status"`
		Inflight int64  `json:"inflight"`
		Served   uint64 `json:"served"`
	}
	st := health{Status: "ok", Inflight: h.rt.Inflight(), Served: h.rt.Served()}
	status := http.StatusOK
	if h.rt.Closed() {
		st.Status = "closed: " + h.rt.ClosedReason()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, st)
}

// writeJSON 先編碼到記憶體，確保不會寫到一半才出錯
func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		httperr.Errs(w, errs.Wrap(err, "encode response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
