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

// Package perf 包一層 runtime/pprof，讓 CLI 以 -p 旗標輸出 profile。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/zintix-labs/angfit/errs"
)

// DefaultDir pprof 檔案寫入路徑
const DefaultDir = "build/profiling"

// RunPProf 依 mode 執行 exe 並寫出對應 profile：
//
//	""     : 直接執行
//	cpu    : <dir>/cpu.pprof，可作為 PGO 的 default.pgo
//	heap   : exe 結束後的 in-use 快照
//	allocs : 累積配置
//
// exe 的錯誤原樣回傳；profile 寫檔失敗則以 errs.Wrap 回傳。dir 為空時用 DefaultDir。
func RunPProf(exe func() error, mode string, dir string) error {
	if dir == "" {
		dir = DefaultDir
	}
	switch mode {
	case "":
		return exe()
	case "cpu":
		return PProfCPU(exe, dir)
	case "heap":
		return snapshot(exe, dir, "heap")
	case "allocs":
		return snapshot(exe, dir, "allocs")
	default:
		return errs.Configf("unknown pprof mode %q (cpu|heap|allocs)", mode)
	}
}

func create(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(err, "mkdir "+dir)
	}
	f, err := os.Create(filepath.Join(dir, name+".pprof"))
	if err != nil {
		return nil, errs.Wrap(err, "create "+name+".pprof")
	}
	return f, nil
}

// PProfCPU 在 exe 執行期間開啟 CPU profiling
//
// Usage like:
//
//	go run ./cmd/fit -p cpu -i sample.evt
func PProfCPU(exe func() error, dir string) error {
	f, err := create(dir, "cpu")
	if err != nil {
		return err
	}
	defer f.Close()
	if err := pprof.StartCPUProfile(f); err != nil {
		return errs.Wrap(err, "start cpu profile")
	}
	defer pprof.StopCPUProfile()
	return exe()
}

// snapshot 先執行 exe 再寫出 heap 或 allocs profile。
// heap 在寫出前先 GC 一次，讓 live objects 貼近最新狀態
func snapshot(exe func() error, dir, kind string) error {
	runErr := exe()

	f, err := create(dir, kind)
	if err != nil {
		return err
	}
	defer f.Close()
	if kind == "heap" {
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return errs.Wrap(err, "write heap profile")
		}
		return runErr
	}
	if prof := pprof.Lookup(kind); prof != nil {
		if err := prof.WriteTo(f, 0); err != nil {
			return errs.Wrap(err, "write "+kind+" profile")
		}
	}
	return runErr
}
