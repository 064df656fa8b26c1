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
	"net/http"

	"github.com/zintix-labs/angfit/dto"
	"github.com/zintix-labs/angfit/server/httperr"
)

// Intensity GET/POST /v1/intensity
func Intensity(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeIntensityRequest(w, r)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	res, err := dto.NewIntensityResult(req)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
