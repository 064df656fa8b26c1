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

// Package corefmt 處理事件樣本在文字傳輸（JSON/HTTP）中的編碼：
// 二進位紀錄串流（可選 zstd 壓縮）再以 base64url 包裝。
package corefmt

import (
	"bytes"
	"encoding/base64"
	"errors"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/event"
)

// MaxDecodedBytes 解碼後事件串流的上限（約一千萬筆），與 HTTP 解壓上限一致
const MaxDecodedBytes = 256 << 20

// zstd frame magic number（little-endian 0xFD2FB528）
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URL 也接受帶 padding 的標準 base64
func DecodeBase64URL(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	if b, err2 := base64.StdEncoding.DecodeString(s); err2 == nil {
		return b, nil
	}
	return nil, errs.Wrap(errs.NewWarn(err.Error()), "decode base64url failed")
}

// EncodeEvents 事件 → 紀錄串流 →（可選 zstd）→ base64url
func EncodeEvents(evs []event.Event, compress bool) (string, error) {
	var buf bytes.Buffer
	if err := event.NewWriter(&buf).WriteAll(evs); err != nil {
		return "", err
	}
	b := buf.Bytes()
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return "", errs.Wrap(err, "zstd encoder")
		}
		b = enc.EncodeAll(b, nil)
		_ = enc.Close()
	}
	return EncodeBase64URL(b), nil
}

// DecodeEvents EncodeEvents 的反向；以 magic number 判斷是否為 zstd。解碼後超過 MaxDecodedBytes 即拒絕
func DecodeEvents(s string) ([]event.Event, error) {
	return DecodeEventsLimit(s, MaxDecodedBytes)
}

// DecodeEventsLimit 同 DecodeEvents，解碼後的串流不得超過 limit bytes
func DecodeEventsLimit(s string, limit int) ([]event.Event, error) {
	if limit < event.RecordSize {
		return nil, errs.Configf("decode events: limit %d smaller than one record", limit)
	}
	b, err := DecodeBase64URL(s)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(b, zstdMagic) {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(uint64(limit)))
		if err != nil {
			return nil, errs.Wrap(err, "zstd decoder")
		}
		defer dec.Close()
		if b, err = dec.DecodeAll(b, nil); err != nil {
			if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
				return nil, errs.Warnf("decode events failed: decompressed payload exceeds %d bytes", limit)
			}
			return nil, errs.Wrap(errs.NewWarn(err.Error()), "decode zstd events failed")
		}
	}
	if len(b) > limit {
		return nil, errs.Warnf("decode events failed: payload %d bytes exceeds %d", len(b), limit)
	}
	if len(b)%event.RecordSize != 0 {
		return nil, errs.Warnf("decode events failed: %d bytes is not a multiple of %d", len(b), event.RecordSize)
	}
	return event.NewReader(bytes.NewReader(b)).ReadAll()
}
