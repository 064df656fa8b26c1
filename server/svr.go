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

// Package server 組裝擬合服務：middleware、路由與生命週期。
package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/server/api"
	"github.com/zintix-labs/angfit/server/app"
	"github.com/zintix-labs/angfit/server/netsvr"
	"github.com/zintix-labs/angfit/server/svrcfg"
)

// Run 以 SvrCfg 組裝預設的 chi server 並阻塞到收到終止信號或 server 停止。
//
// Run 不讀檔案或環境變數；所有依賴都透過 SvrCfg 注入。
func Run(sCfg *svrcfg.SvrCfg) {
	if err := sCfg.Vaild(); err != nil {
		// 防止外層傳入的logger不可用
		fmt.Fprintln(os.Stderr, err)
		return
	}
	RunWithSvr(sCfg, netsvr.NewChiServer(sCfg.Addr))
}

// RunWithSvr 與 Run 相同，但使用呼叫端注入的 NetSvr。
//
// svr 必須非 nil；若是 ChiAdapter 則要求 Ready()。關閉時一併關閉 FitRuntime，
// 之後進來的擬合請求會得到 500。
func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) {
	if err := sCfg.Vaild(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if svr == nil {
		sCfg.Log.Error(errs.NewFatal("svr is required").Error())
		return
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		sCfg.Log.Error(errs.NewFatal("default server is not ready").Error())
		return
	}

	// 註冊 Api
	if err := api.RegisterRoutes(svr, sCfg); err != nil {
		sCfg.Log.Error("register routes failed", slog.Any("err", err))
		return
	}

	// 運行
	a := app.NewWith(svr)
	if s, ok := svr.(*netsvr.ChiAdapter); ok {
		sCfg.Log.Info("[angfit] listening on http://localhost" + s.Address())
	}
	err := a.Run()
	sCfg.Runtime.Close()
	if err != nil {
		sCfg.Log.Error("app stopped:", slog.Any("err", err))
	}
}
