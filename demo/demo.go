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

// Package demo 提供內嵌的擬合設定與 toy 樣本，讓 CLI、server 與測試不需外部檔案即可執行。
package demo

import (
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/zintix-labs/angfit"
	"github.com/zintix-labs/angfit/demo/demo_configs"
	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/hist"
	"github.com/zintix-labs/angfit/sdk/model"
	"github.com/zintix-labs/angfit/server/logger"
	"github.com/zintix-labs/angfit/server/svrcfg"
	"github.com/zintix-labs/angfit/spec"
)

// DefaultSetting 內嵌設定中的預設名稱
const DefaultSetting = "default"

// Truth demo toy 樣本的真值
var Truth = model.Params{0.3, 0.1, -0.05, 0}

// Settings 載入全部內嵌設定，以 name 為鍵
func Settings() (map[string]*spec.FitSetting, error) {
	entries, err := fs.ReadDir(demo_configs.FS, ".")
	if err != nil {
		return nil, errs.Wrap(err, "read embedded settings")
	}
	out := make(map[string]*spec.FitSetting, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(demo_configs.FS, e.Name())
		if err != nil {
			return nil, errs.Wrap(err, "read "+e.Name())
		}
		set, err := spec.GetFitSettingByYAML(data)
		if err != nil {
			return nil, errs.Wrap(err, e.Name())
		}
		if _, dup := out[set.Name]; dup {
			return nil, errs.Configf("duplicate embedded setting name %q (%s)", set.Name, e.Name())
		}
		out[set.Name] = set
	}
	return out, nil
}

// Setting 依名稱取內嵌設定
func Setting(name string) (*spec.FitSetting, error) {
	all, err := Settings()
	if err != nil {
		return nil, err
	}
	if set, ok := all[name]; ok {
		return set, nil
	}
	names := make([]string, 0, len(all))
	for k := range all {
		names = append(names, k)
	}
	sort.Strings(names)
	return nil, errs.Configf("unknown setting %q, available: %s", name, strings.Join(names, ", "))
}

// Toy 以 Truth 產生 n 個事件的 toy 設定
func Toy(n int, seed int64) angfit.ToySetting {
	return angfit.ToySetting{
		Params:  Truth,
		Events:  n,
		Axis:    hist.UniformAxis{NBins: 1, Lo: -1, Hi: 1},
		Weight:  [2]float64{0.5, 1.5},
		Workers: 4,
		Seed:    seed,
	}
}

// NewServerConfig dev 模式的 server 設定
func NewServerConfig() *svrcfg.SvrCfg {
	return &svrcfg.SvrCfg{
		Log:        logger.NewDefaultAsyncLogger(logger.ModeDev),
		FitBufSize: 2,
	}
}
