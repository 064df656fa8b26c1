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

package event

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/angfit/errs"
	"golang.org/x/sync/errgroup"
)

// ZstdSuffix 以此結尾的檔案視為 zstd 壓縮
const ZstdSuffix = ".zst"

type zstdReadCloser struct {
	zr *zstd.Decoder
	f  *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.zr.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.zr.Close()
	return z.f.Close()
}

type zstdWriteCloser struct {
	zw *zstd.Encoder
	f  *os.File
}

func (z *zstdWriteCloser) Write(p []byte) (int, error) { return z.zw.Write(p) }

func (z *zstdWriteCloser) Close() error {
	if err := z.zw.Close(); err != nil {
		_ = z.f.Close()
		return err
	}
	return z.f.Close()
}

// Open 開啟事件檔；.zst 透明解壓
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, "event: open "+path)
	}
	if !strings.HasSuffix(path, ZstdSuffix) {
		return f, nil
	}
	zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = f.Close()
		return nil, errs.Wrap(err, "event: zstd reader "+path)
	}
	return &zstdReadCloser{zr: zr, f: f}, nil
}

// Create 建立事件檔；.zst 透明壓縮
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(err, "event: create "+path)
	}
	if !strings.HasSuffix(path, ZstdSuffix) {
		return f, nil
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, errs.Wrap(err, "event: zstd writer "+path)
	}
	return &zstdWriteCloser{zw: zw, f: f}, nil
}

// WriteFile 將事件寫入 path
func WriteFile(path string, evs []Event) error {
	wc, err := Create(path)
	if err != nil {
		return err
	}
	if err := NewWriter(wc).WriteAll(evs); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return errs.Wrap(err, "event: close "+path)
	}
	return nil
}

// ReadFile 讀取單一事件檔
func ReadFile(path string) ([]Event, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	evs, err := NewReader(rc).ReadAll()
	if err != nil {
		return nil, errs.WrapWithExtra(err, "event: read", path)
	}
	return evs, nil
}

// ReadFiles 併發讀取多個事件檔，依輸入順序串接後回傳，並回報讀取用時。
// showpb 為 true 時以檔案位元組數顯示進度條。
func ReadFiles(ctx context.Context, paths []string, showpb bool) ([]Event, time.Duration, error) {
	if len(paths) == 0 {
		return nil, 0, errs.Configf("event: no input files")
	}
	total := int64(0)
	for _, p := range paths {
		st, err := os.Stat(p)
		if err != nil {
			return nil, 0, errs.Wrap(err, "event: stat "+p)
		}
		total += st.Size()
	}

	bar := pb.Start64(total)
	bar.Set(pb.Bytes, true)
	if !showpb {
		bar.SetWriter(io.Discard)
	}

	parts := make([][]Event, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			f, err := os.Open(p)
			if err != nil {
				return errs.Wrap(err, "event: open "+p)
			}
			defer func() { _ = f.Close() }()
			var src io.Reader = bar.NewProxyReader(f)
			if strings.HasSuffix(p, ZstdSuffix) {
				zr, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
				if err != nil {
					return errs.Wrap(err, "event: zstd reader "+p)
				}
				defer zr.Close()
				src = zr
			}
			r := NewReader(src)
			evs := make([]Event, 0, 1024)
			for {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e, err := r.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					return errs.WrapWithExtra(err, "event: read", p)
				}
				evs = append(evs, e)
			}
			parts[i] = evs
			return nil
		})
	}
	err := g.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if err != nil {
		return nil, used, err
	}

	n := 0
	for _, part := range parts {
		n += len(part)
	}
	out := make([]Event, 0, n)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, used, nil
}
