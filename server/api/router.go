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

package api

import (
	"log/slog"
	"net/http"

	v1 "github.com/zintix-labs/angfit/server/api/v1"
	"github.com/zintix-labs/angfit/server/netsvr"
	"github.com/zintix-labs/angfit/server/netsvr/middleware"
	"github.com/zintix-labs/angfit/server/svrcfg"
)

// RegisterRoutes 註冊
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) error {
	registerMiddleware(svr, sCfg.Log) // 1. 註冊 middleware
	registerIndex(svr)                // 2. 註冊主頁
	return registerV1API(svr, sCfg)   // 3. 註冊 v1 api
}

// 註冊 middleware
func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover(log))
	svr.Use(middleware.Decompression)
	svr.Use(middleware.Compression)
}

const index = `angfit fit service

POST /v1/fit        {"events":[{"w":1,"cos":0.1}], "events_b64u":"...", "setting":{...}}
GET  /v1/intensity  ?c2=&c4=&c6=&phi2=&n=&lo=&hi=
POST /v1/intensity  {"params":[c2,c4,c6,phi2], "points":[...]}
GET  /v1/healthz
`

// 註冊主頁
func registerIndex(svr netsvr.NetSvr) {
	svr.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(index))
	})
}

// 註冊 v1 api
func registerV1API(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) error {
	fh, err := v1.NewFitHandler(sCfg)
	if err != nil {
		return err
	}
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/healthz", fh.Healthz)
		vOne.Get("/intensity", v1.Intensity)

		vOne.Post("/fit", fh.Fit)
		vOne.Post("/intensity", v1.Intensity)
	})
	return nil
}
