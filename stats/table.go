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

package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/angfit/sdk/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var lang language.Tag = language.English

// StdOut 把摘要表印到標準輸出
func (r *FitReport) StdOut() {
	fmt.Println(r.Table())
}

// Table 摘要表：直方圖資訊與兩個估計量的參數、chi2/ndf、p-value、-2logL
func (r *FitReport) Table() string {
	keys, msg := r.fmtBasic()
	for _, name := range []string{Chi2Fit, LogLFit} {
		fit, ok := r.Fits[name]
		if !ok || fit == nil {
			continue
		}
		fk, fm := r.fmtFit(name, fit)
		keys = append(keys, fk...)
		for k, v := range fm {
			msg[k] = v
		}
	}
	return fmtTable("Angular Fit", keys, msg)
}

// PullTable 每個 bin 的密度、誤差與 pull
func (r *FitReport) PullTable(name string) (string, error) {
	pulls, err := r.Pulls(name)
	if err != nil {
		return "", err
	}
	d, err := r.Density()
	if err != nil {
		return "", err
	}
	p := message.NewPrinter(lang)
	keys := make([]string, 0, len(pulls)+1)
	msg := make(map[string]string, len(pulls)+1)
	for i, v := range pulls {
		k := p.Sprintf("%3d  cos=%+.3f", i, d.Axis.Center(i))
		keys = append(keys, k)
		if math.IsNaN(v) {
			msg[k] = p.Sprintf("%.4f ± %.4f  (excluded)", d.Values[i], d.Error(i))
			continue
		}
		msg[k] = p.Sprintf("%.4f ± %.4f  pull %+.2f", d.Values[i], d.Error(i), v)
	}
	mean, std, n := PullStats(pulls)
	keys = append(keys, "pull mean/std")
	msg["pull mean/std"] = p.Sprintf("%+.3f / %.3f (%d bins)", mean, std, n)
	return fmtTable("Pulls ["+name+"]", keys, msg), nil
}

// FormatTimings 讀檔與擬合耗時
func FormatTimings(w io.Writer, read, fit time.Duration, entries uint64) {
	if w == nil {
		w = os.Stdout
	}
	p := message.NewPrinter(lang)
	p.Fprintf(w, "Read time: %s\n", formatDuration(read))
	p.Fprintf(w, "Fit time : %s\n", formatDuration(fit))
	sec := read.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	p.Fprintf(w, "eps      : %d events/sec\n", int(float64(entries)/sec))
}

// ============================================================
// ** 內部方法 **
// ============================================================

func formatDuration(d time.Duration) string {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec < 60.0 {
		return p.Sprintf("%.3f seconds", sec)
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		return p.Sprintf("%dm %ds", m, s)
	}
	return p.Sprintf("%dh:%dm:%ds", h, m, s)
}

func (r *FitReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	basic := map[string]string{
		"Range":         p.Sprintf("[%g, %g]", r.Range[0], r.Range[1]),
		"Bins":          p.Sprintf("%d", len(r.Hist)),
		"Events":        p.Sprintf("%d", r.Entries),
		"Rejected":      p.Sprintf("%d", r.Rejected),
		"Total Weight":  p.Sprintf("%.4f", r.TotalWeight),
		"Excluded Bins": fmt.Sprint(r.Excluded),
		"Refits":        p.Sprintf("%d", r.Refit),
	}
	keys := []string{"Range", "Bins", "Events", "Rejected", "Total Weight", "Excluded Bins", "Refits"}
	return keys, basic
}

func (r *FitReport) fmtFit(name string, fit *EstimatorResult) ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	keys := make([]string, 0, model.NPar+5)
	msg := make(map[string]string, model.NPar+5)
	add := func(k, v string) {
		k = "[" + name + "] " + k
		keys = append(keys, k)
		msg[k] = v
	}
	vals, errsv := fit.Params(), fit.Errors()
	for i, n := range model.Names {
		if fit.Fixed(i) {
			add(n, p.Sprintf("%+.5f  FIXED", vals[i]))
			continue
		}
		add(n, p.Sprintf("%+.5f ± %.5f", vals[i], errsv[i]))
	}
	ndf := r.NDF()
	add("chi2/ndf", p.Sprintf("%.3f / %d", fit.Chi2, ndf))
	if pv := PValue(fit.Chi2, ndf); !math.IsNaN(pv) {
		add("p-value", p.Sprintf("%.4g", pv))
	} else {
		add("p-value", "-")
	}
	add("-2logL", p.Sprintf("%.6f", fit.LogL))
	add("edm", p.Sprintf("%.3g", fit.EDM))
	status := "converged"
	if !fit.Converged {
		status = "NOT converged (" + fit.Status + ")"
	}
	add("status", status)
	return keys, msg
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := runewidth.StringWidth(title)
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var sb strings.Builder
	sb.WriteString(top)
	sb.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	sb.WriteString(divider)
	for _, k := range keys {
		sb.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	sb.WriteString(divider)
	return sb.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
