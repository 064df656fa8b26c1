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
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zintix-labs/angfit"
	"github.com/zintix-labs/angfit/demo"
	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/event"
	"github.com/zintix-labs/angfit/server/logger"
	"github.com/zintix-labs/angfit/spec"
	"github.com/zintix-labs/angfit/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type config struct {
	inputs     []string
	output     string
	format     string
	cfgPath    string
	setting    string
	printLevel int
	fixPhi2    *float64
	bins       int
	workers    int
	showpb     bool
	pprofmode  string
}

type inputsFlag struct{ p *[]string }

func (f inputsFlag) String() string {
	if f.p == nil {
		return ""
	}
	return strings.Join(*f.p, ",")
}

func (f inputsFlag) Set(s string) error {
	*f.p = append(*f.p, s)
	return nil
}

func bindVar() (*config, error) {
	cfg := new(config)
	flag.Var(inputsFlag{&cfg.inputs}, "i", "input event file (repeatable, .zst supported)")
	flag.StringVar(&cfg.output, "o", "", "write fit report to file (.json / .yaml)")
	flag.StringVar(&cfg.format, "format", "", "report format: json|yaml (default by -o extension)")
	flag.StringVar(&cfg.cfgPath, "cfg", "", "fit setting file (.yaml / .json)")
	flag.StringVar(&cfg.setting, "setting", demo.DefaultSetting, "embedded fit setting name, ignored when -cfg is set")
	flag.IntVar(&cfg.printLevel, "print-level", 0, "-1 silent, 0 summary, 1 debug, 2 minimizer trace")
	flag.Func("fix-phi2", "fix phi2 at the given value", func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		cfg.fixPhi2 = &v
		return nil
	})
	flag.IntVar(&cfg.bins, "bins", 0, "override histogram bin count")
	flag.IntVar(&cfg.workers, "workers", 0, "likelihood workers (0 = GOMAXPROCS)")
	flag.BoolVar(&cfg.showpb, "pb", true, "show progress bar while reading")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")
	flag.Parse()

	cfg.inputs = append(cfg.inputs, flag.Args()...)
	if len(cfg.inputs) == 0 {
		return nil, errs.Configf("no input files: use -i <file> or positional arguments")
	}
	if cfg.format == "" && cfg.output != "" {
		switch strings.ToLower(filepath.Ext(cfg.output)) {
		case ".yaml", ".yml":
			cfg.format = "yaml"
		default:
			cfg.format = "json"
		}
	}
	return cfg, nil
}

// loadSetting 讀設定並套用命令列覆寫
func (cfg *config) loadSetting() (*spec.FitSetting, error) {
	var (
		fs  *spec.FitSetting
		err error
	)
	if cfg.cfgPath != "" {
		fs, err = spec.LoadFitSetting(cfg.cfgPath)
	} else {
		fs, err = demo.Setting(cfg.setting)
	}
	if err != nil {
		return nil, err
	}
	if cfg.fixPhi2 != nil {
		if fs.Fix == nil {
			fs.Fix = map[string]float64{}
		}
		fs.Fix["phi2"] = *cfg.fixPhi2
	}
	if cfg.bins > 0 {
		fs.Axis.NBins = uint32(cfg.bins)
	}
	if cfg.workers > 0 {
		fs.Workers = cfg.workers
	}
	if cfg.printLevel >= 2 {
		fs.Minimizer.PrintLevel = cfg.printLevel - 1
	}
	return fs, fs.Init()
}

func executeFit(ctx context.Context, cfg *config) error {
	fs, err := cfg.loadSetting()
	if err != nil {
		return err
	}
	log := logger.NewDefaultLogger(logger.ModeByPrintLevel(cfg.printLevel))

	green := "\033[1;32m"
	reset := "\033[0m"
	p := message.NewPrinter(language.English)
	if cfg.printLevel >= 0 {
		p.Printf("%s[SETTING:%s] [BINS:%d] [FILES:%d]%s\n", green, fs.Name, fs.Axis.NBins, len(cfg.inputs), reset)
	}

	evs, readUsed, err := event.ReadFiles(ctx, cfg.inputs, cfg.showpb && cfg.printLevel >= 0)
	if err != nil {
		return err
	}
	log.Info("events loaded", slog.Int("events", len(evs)), slog.Duration("used", readUsed))

	f, err := angfit.New(fs, angfit.WithLogger(log))
	if err != nil {
		return err
	}
	start := time.Now()
	rep, fitErr := f.Fit(evs)
	fitUsed := time.Since(start)
	if rep == nil {
		return fitErr
	}

	if cfg.printLevel >= 0 {
		rep.StdOut()
		stats.FormatTimings(os.Stdout, readUsed, fitUsed, rep.Entries)
	}
	if cfg.output != "" {
		if err := writeReport(rep, cfg.output, cfg.format); err != nil {
			return errors.Join(fitErr, err)
		}
		log.Info("report written", slog.String("path", cfg.output))
	}
	return fitErr
}

func writeReport(rep *stats.FitReport, path, format string) error {
	render, err := stats.RenderByName(format)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "create report "+path)
	}
	if err := rep.WriteWith(f, render); err != nil {
		_ = f.Close()
		return errs.Wrap(err, "write report "+path)
	}
	return f.Close()
}
