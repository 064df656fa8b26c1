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
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/zintix-labs/angfit/errs"
)

// Writer 以紀錄格式寫出事件
type Writer struct {
	bw  *bufio.Writer
	buf [RecordSize]byte
	n   int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 64<<10)}
}

func (w *Writer) Write(e Event) error {
	binary.LittleEndian.PutUint64(w.buf[0:8], math.Float64bits(e.Weight))
	binary.LittleEndian.PutUint64(w.buf[8:16], math.Float64bits(e.Mass))
	binary.LittleEndian.PutUint64(w.buf[16:24], math.Float64bits(e.Angle))
	if _, err := w.bw.Write(w.buf[:]); err != nil {
		return errs.Wrap(err, "event: write record")
	}
	w.n++
	return nil
}

// WriteAll 寫出全部事件並 Flush
func (w *Writer) WriteAll(evs []Event) error {
	for _, e := range evs {
		if err := w.Write(e); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return errs.Wrap(err, "event: flush")
	}
	return nil
}

// Count 已寫出筆數
func (w *Writer) Count() int64 { return w.n }

// Reader 逐筆讀取紀錄
type Reader struct {
	br  *bufio.Reader
	buf [RecordSize]byte
	n   int64
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64<<10)}
}

// Next 讀下一筆。串流正好結束時回傳 io.EOF；結尾殘缺的紀錄視為錯誤
func (r *Reader) Next() (Event, error) {
	_, err := io.ReadFull(r.br, r.buf[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Event{}, errs.Warnf("event: truncated record after %d records", r.n)
		}
		return Event{}, errs.Wrap(err, "event: read record")
	}
	r.n++
	return Event{
		Weight: math.Float64frombits(binary.LittleEndian.Uint64(r.buf[0:8])),
		Mass:   math.Float64frombits(binary.LittleEndian.Uint64(r.buf[8:16])),
		Angle:  math.Float64frombits(binary.LittleEndian.Uint64(r.buf[16:24])),
	}, nil
}

// ReadAll 讀到串流結束
func (r *Reader) ReadAll() ([]Event, error) {
	evs := make([]Event, 0, 1024)
	for {
		e, err := r.Next()
		if err == io.EOF {
			return evs, nil
		}
		if err != nil {
			return evs, err
		}
		evs = append(evs, e)
	}
}

// Count 已讀取筆數
func (r *Reader) Count() int64 { return r.n }
