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

// Package dto 定義 HTTP 邊界的請求/回應結構與解碼。
package dto

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/zintix-labs/angfit/corefmt"
	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/event"
	"github.com/zintix-labs/angfit/sdk/model"
	"github.com/zintix-labs/angfit/spec"
)

const (
	maxFitBody       = 64 << 20 // 64MiB
	maxIntensityBody = 1 << 20
	maxCurvePoints   = 100000
	defaultCurvePts  = 201
)

// FitRequest 擬合請求
//
// 事件可以用 JSON 陣列（events）或二進位紀錄串流的 base64url（events_b64u，可 zstd 壓縮）提供，
// 兩者同時存在時依序串接。setting 省略時使用預設設定。
type FitRequest struct {
	Events     []event.Event   `json:"events,omitempty"`
	EventsB64U string          `json:"events_b64u,omitempty"`
	Setting    json.RawMessage `json:"setting,omitempty"`
}

// DecodeFitRequest 只接受 POST JSON；未知欄位直接拒絕
func DecodeFitRequest(w http.ResponseWriter, r *http.Request) (*FitRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}
	if r.Method != http.MethodPost {
		return nil, errs.NewWarn("fit request must be POST")
	}
	req := new(FitRequest)
	if err := decodeJSON(w, r, maxFitBody, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Parse 解析出事件與設定
func (fr *FitRequest) Parse() ([]event.Event, *spec.FitSetting, error) {
	evs := fr.Events
	if fr.EventsB64U != "" {
		more, err := corefmt.DecodeEvents(fr.EventsB64U)
		if err != nil {
			return nil, nil, err
		}
		evs = append(evs, more...)
	}
	if len(evs) == 0 {
		return nil, nil, errs.Configf("fit request: no events")
	}
	fs := spec.Default()
	if len(fr.Setting) != 0 && string(fr.Setting) != "null" {
		var err error
		if fs, err = spec.GetFitSettingByJSON(fr.Setting); err != nil {
			return nil, nil, err
		}
	}
	return evs, fs, nil
}

// IntensityRequest 在 points 上計算 I(x; params)；points 省略時在 [lo, hi] 取 n 個等距點
type IntensityRequest struct {
	Params model.Params `json:"params"`
	Points []float64    `json:"points,omitempty"`
	N      int          `json:"n,omitempty"`
	Lo     *float64     `json:"lo,omitempty"`
	Hi     *float64     `json:"hi,omitempty"`
}

// DecodeIntensityRequest
//
//   - GET ：query string c2/c4/c6/phi2/n/lo/hi
//   - POST：JSON body
func DecodeIntensityRequest(w http.ResponseWriter, r *http.Request) (*IntensityRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}
	req := new(IntensityRequest)
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		for i, name := range model.Names {
			if s := q.Get(name); s != "" {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, errs.Warnf("invalid %s: %v", name, err)
				}
				req.Params[i] = v
			}
		}
		if s := q.Get("n"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errs.Warnf("invalid n: %v", err)
			}
			req.N = v
		}
		for key, dst := range map[string]**float64{"lo": &req.Lo, "hi": &req.Hi} {
			if s := q.Get(key); s != "" {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, errs.Warnf("invalid %s: %v", key, err)
				}
				*dst = &v
			}
		}
	case http.MethodPost:
		if err := decodeJSON(w, r, maxIntensityBody, req); err != nil {
			return nil, err
		}
	default:
		return nil, errs.NewWarn("method not allowed")
	}
	return req, nil
}

// Grid 回傳要計算的點
func (ir *IntensityRequest) Grid() ([]float64, error) {
	if len(ir.Points) > 0 {
		if len(ir.Points) > maxCurvePoints {
			return nil, errs.Configf("intensity: at most %d points, got %d", maxCurvePoints, len(ir.Points))
		}
		return ir.Points, nil
	}
	n := ir.N
	if n == 0 {
		n = defaultCurvePts
	}
	if n < 2 || n > maxCurvePoints {
		return nil, errs.Configf("intensity: n must be in [2, %d], got %d", maxCurvePoints, n)
	}
	lo, hi := -1.0, 1.0
	if ir.Lo != nil {
		lo = *ir.Lo
	}
	if ir.Hi != nil {
		hi = *ir.Hi
	}
	if !(lo < hi) {
		return nil, errs.Configf("intensity: invalid range [%v, %v]", lo, hi)
	}
	xs := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range xs {
		xs[i] = lo + float64(i)*step
	}
	xs[n-1] = hi
	return xs, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	var body io.Reader = io.LimitReader(r.Body, limit)
	if w != nil {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Wrap(errs.NewWarn(err.Error()), "json decode failed")
	}
	return nil
}
