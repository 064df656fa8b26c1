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
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const buildDir = "build"

func run(name string, args ...string) {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		PrintRed(fmt.Sprintf("%s %v failed: %v", name, args, err))
		os.Exit(1)
	}
}

// runDemo 產生一份 toy 樣本後擬合，報告寫到 build/demo_report.json
func runDemo() {
	PrintGreen("generating toy sample")
	_ = os.MkdirAll(buildDir, 0o755)
	sample := filepath.Join(buildDir, "demo.evt.zst")
	run("go", "run", "./cmd/gen", "-n", "1000000", "-c2", "0.3", "-c4", "0.1", "-c6", "-0.05",
		"-wlo", "0.5", "-whi", "1.5", "-seed", "20250101", "-o", sample)

	PrintGreen("fitting toy sample")
	report := filepath.Join(buildDir, "demo_report.json")
	run("go", "run", "./cmd/fit", "-setting", "phi_fixed", "-o", report, sample)
	run("go", "run", "./cmd/report", "-pulls", "logl", report)
}

// runPGO 以 demo 樣本的 CPU profile 產生 cmd/fit/default.pgo
func runPGO() {
	sample := filepath.Join(buildDir, "demo.evt.zst")
	if _, err := os.Stat(sample); err != nil {
		runDemo()
	}
	PrintGreen("profiling cmd/fit")
	run("go", "run", "./cmd/fit", "-print-level", "-1", "-p", "cpu", sample)

	src := filepath.Join(buildDir, "profiling", "cpu.pprof")
	data, err := os.ReadFile(src)
	if err != nil {
		PrintRed(err.Error())
		os.Exit(1)
	}
	dst := filepath.Join("cmd", "fit", "default.pgo")
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		PrintRed(err.Error())
		os.Exit(1)
	}
	PrintGreen("wrote " + dst)
}
