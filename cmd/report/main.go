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

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zintix-labs/angfit/stats"
)

// 讀回 JSON 擬合報告並列印表格，可選擇附上 pull 表或轉成其他格式
//
//	go run ./cmd/report -pulls logl report.json
func main() {
	var (
		pulls  string
		format string
	)
	flag.StringVar(&pulls, "pulls", "", "also print pulls for estimator (chi2|logl)")
	flag.StringVar(&format, "format", "table", "output: table|json|yaml")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: report [-pulls chi2|logl] [-format table|json|yaml] report.json ...")
		os.Exit(2)
	}
	code := 0
	for _, path := range flag.Args() {
		if err := show(path, pulls, format); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			code = 1
		}
	}
	os.Exit(code)
}

func show(path, pulls, format string) error {
	rep, err := stats.ReadFile(path)
	if err != nil {
		return err
	}
	if format != "table" {
		render, err := stats.RenderByName(format)
		if err != nil {
			return err
		}
		return rep.WriteWith(os.Stdout, render)
	}
	fmt.Println(path)
	rep.StdOut()
	if pulls != "" {
		tbl, err := rep.PullTable(pulls)
		if err != nil {
			return err
		}
		fmt.Println(tbl)
	}
	return nil
}
