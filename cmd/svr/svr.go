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
	"time"

	"github.com/zintix-labs/angfit/server"
	"github.com/zintix-labs/angfit/server/logger"
	"github.com/zintix-labs/angfit/server/svrcfg"
)

// 擬合服務入口；所有設定來自命令列
func main() {
	cfg, err := loadConfigFromFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	server.Run(cfg)
}

type config struct {
	Addr       string
	LogMode    string
	FitBufSize int
	FitTimeout time.Duration
}

func loadConfigFromFlags() (*svrcfg.SvrCfg, error) {
	cfg := new(config)
	flag.StringVar(&cfg.Addr, "addr", svrcfg.DefaultAddr, "listen address")
	flag.StringVar(&cfg.LogMode, "log-mode", "dev", "log mode: dev|prod|silence")
	flag.IntVar(&cfg.FitBufSize, "buf", 2, "number of concurrent fits (1..10)")
	flag.DurationVar(&cfg.FitTimeout, "timeout", svrcfg.DefaultFitTimeout, "per-request fit timeout")
	flag.Parse()

	mode, err := logger.ParseMode(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	log, _ := logger.NewAsync(4096, mode)
	return &svrcfg.SvrCfg{
		Log:        log,
		Addr:       cfg.Addr,
		FitBufSize: cfg.FitBufSize,
		FitTimeout: cfg.FitTimeout,
	}, nil
}
