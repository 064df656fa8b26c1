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

package spec

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/zintix-labs/angfit/errs"
	"gopkg.in/yaml.v3"
)

func GetFitSettingByYAML(data []byte) (*FitSetting, error) {
	fs := &FitSetting{}
	if err := yaml.Unmarshal(data, fs); err != nil {
		return nil, errs.Configf("failed to unmarshall yaml: %v", err)
	}

	// 設定檔初始化
	if err := fs.init(); err != nil {
		return nil, errs.Wrap(err, "fit setting initialized err")
	}

	return fs, nil
}

func GetFitSettingByJSON(data []byte) (*FitSetting, error) {
	fs := &FitSetting{}
	if err := json.Unmarshal(data, fs); err != nil {
		return nil, errs.Configf("can not unmarshall json byte: %v", err)
	}

	// 設定檔初始化
	if err := fs.init(); err != nil {
		return nil, errs.Wrap(err, "fit setting initialized err")
	}

	return fs, nil
}

// LoadFitSetting 依副檔名讀取 .json 或 .yaml/.yml
func LoadFitSetting(path string) (*FitSetting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(err, "read fit setting "+path)
	}
	if strings.HasSuffix(path, ".json") {
		return GetFitSettingByJSON(data)
	}
	return GetFitSettingByYAML(data)
}
