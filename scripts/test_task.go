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
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// lineFilter 決定 go test 的每一行怎麼印；回傳 false 表示略過
type lineFilter func(line string) bool

// onlySummary 只留 ok / FAIL 與建置失敗
func onlySummary(line string) bool {
	switch {
	case strings.HasPrefix(line, "ok"):
		PrintGreen(line)
	case strings.HasPrefix(line, "FAIL"),
		strings.Contains(line, "build failed"),
		strings.Contains(line, "setup failed"):
		PrintRed(line)
	default:
		return false
	}
	return true
}

// everything 除了 [no test files] 全部印出
func everything(line string) bool {
	switch {
	case strings.Contains(line, "[no test files]"):
		return false
	case strings.HasPrefix(line, "ok"):
		PrintGreen(line)
	case strings.HasPrefix(line, "FAIL"):
		PrintRed(line)
	default:
		fmt.Println(line)
	}
	return true
}

func cleanCache() {
	cmd := exec.Command("go", "clean", "-testcache")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		PrintRed(fmt.Sprintf("go clean -testcache failed: %v", err))
		os.Exit(1)
	}
}

// goTest 執行 go test，stdout/stderr 合併後交給 filter；filter 為 nil 時直接輸出
func goTest(title string, filter lineFilter, args ...string) {
	PrintGreen(title)
	cleanCache()

	cmd := exec.Command("go", append([]string{"test", "./..."}, args...)...)
	if filter == nil {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			PrintRed("\n" + title + " finished with errors\n")
			os.Exit(1)
		}
		return
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		PrintRed(fmt.Sprintf("failed to get stdout pipe: %v", err))
		os.Exit(1)
	}
	// 對應 Shell 的 "2>&1"，編譯錯誤也讀得到
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		PrintRed(fmt.Sprintf("Error starting go test: %v", err))
		os.Exit(1)
	}
	scanner := bufio.NewScanner(stdoutPipe)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		filter(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		PrintRed(fmt.Sprintf("scanner error: %v", err))
	}
	if err := cmd.Wait(); err != nil {
		PrintRed("\n" + title + " finished with errors\n")
		os.Exit(1)
	}
}

func runTest()       { goTest("running tests", onlySummary, "-cover", "-count=1") }
func runTestAll()    { goTest("running tests (all with coverage)", nil, "-cover") }
func runTestDetail() { goTest("running tests (detail)", everything, "-v", "-count=1") }
