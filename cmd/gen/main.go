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
	"crypto/rand"
	"flag"
	"fmt"
	"math"
	"math/big"
	"os"

	"github.com/zintix-labs/angfit"
	"github.com/zintix-labs/angfit/errs"
	"github.com/zintix-labs/angfit/sdk/event"
	"github.com/zintix-labs/angfit/sdk/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// toy 事件產生器
//
//	go run ./cmd/gen -n 1000000 -c2 0.3 -c4 0.1 -o toy.evt.zst
func main() {
	var (
		ts     angfit.ToySetting
		out    string
		showpb bool
	)
	flag.IntVar(&ts.Events, "n", 100000, "number of events")
	flag.StringVar(&out, "o", "toy.evt", "output event file (.zst compresses)")
	for i, name := range model.Names {
		flag.Float64Var(&ts.Params[i], name, 0, "true "+name)
	}
	flag.Float64Var(&ts.Axis.Lo, "lo", -1, "lower angle edge")
	flag.Float64Var(&ts.Axis.Hi, "hi", 1, "upper angle edge")
	flag.Float64Var(&ts.Weight[0], "wlo", 0, "weight lower bound (0 = unit weights)")
	flag.Float64Var(&ts.Weight[1], "whi", 0, "weight upper bound")
	flag.Float64Var(&ts.Mass, "mass", 0, "mass written to every event")
	flag.IntVar(&ts.Workers, "workers", 4, "number of workers")
	flag.Int64Var(&ts.Seed, "seed", -1, "int64 seed, < 1 draws a random seed")
	flag.BoolVar(&showpb, "pb", true, "show progress bar")
	flag.Parse()
	ts.Axis.NBins = 1

	if ts.Seed < 1 {
		s, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			fail(err)
		}
		ts.Seed = s.Int64()
	}

	p := message.NewPrinter(language.English)
	p.Printf("\033[1;32m[EVENTS:%d] [PARAMS:%v] [SEED:%d]\033[0m\n", ts.Events, ts.Params, ts.Seed)
	evs, used, err := angfit.Generate(context.Background(), ts, nil, showpb)
	if err != nil {
		fail(err)
	}
	if err := event.WriteFile(out, evs); err != nil {
		fail(err)
	}
	p.Printf("%d events written to %s in %v (total weight %.6g)\n", len(evs), out, used, event.TotalWeight(evs))
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, errs.Wrap(err, "gen"))
	os.Exit(1)
}
