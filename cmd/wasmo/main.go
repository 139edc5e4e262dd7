//  Copyright 2023 Stealth Rocket, Inc.
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
	"log"
	"os"
	"strconv"

	"github.com/google/pprof/profile"
	flag "github.com/spf13/pflag"
	"github.com/wasmo-run/wasmo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type program struct {
	filePath   string
	funcName   string
	funcArgs   []string
	dumpStat   bool
	cpuProfile string
	memProfile string
}

func (prog *program) run() error {
	wasmCode, err := os.ReadFile(prog.filePath)
	if err != nil {
		return fmt.Errorf("loading wasm module: %w", err)
	}

	cpu := wasmo.NewCPUProfiler()
	mem := wasmo.NewMemoryProfiler()

	var options []wasmo.ModuleOption
	if prog.cpuProfile != "" {
		options = append(options, wasmo.WithListener(cpu))
	}
	if prog.memProfile != "" {
		options = append(options, wasmo.WithListener(mem))
	}

	module, err := wasmo.Instantiate(wasmCode, hostLinker, options...)
	if err != nil {
		return fmt.Errorf("instantiating module: %w", err)
	}

	if prog.dumpStat {
		module.PrintStat()
		return nil
	}

	fn, err := module.Func(prog.funcName)
	if err != nil {
		return err
	}
	args, err := boxArgs(fn.Type(), prog.funcArgs)
	if err != nil {
		return err
	}

	if prog.cpuProfile != "" {
		cpu.StartProfile()
		defer func() {
			writeProfile(prog.cpuProfile, cpu.StopProfile())
		}()
	}
	if prog.memProfile != "" {
		defer func() {
			writeProfile(prog.memProfile, mem.NewProfile())
		}()
	}

	result, err := fn.Invoke(args...)
	if err != nil {
		return fmt.Errorf("invoking %s: %w", prog.funcName, err)
	}
	if !result.IsEmpty() {
		fmt.Printf("result: %s\n", result)
	}
	return nil
}

// boxArgs parses command line integers according to the invoked function's
// parameter types.
func boxArgs(typ *wasmo.FuncType, raw []string) ([]wasmo.Value, error) {
	if len(raw) != len(typ.Params) {
		return nil, fmt.Errorf("function takes %d arguments, got %d", len(typ.Params), len(raw))
	}
	args := make([]wasmo.Value, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		switch typ.Params[i] {
		case wasmo.TypeI32:
			args[i] = wasmo.I32(int32(v))
		case wasmo.TypeI64:
			args[i] = wasmo.I64(v)
		default:
			return nil, fmt.Errorf("argument %d: unsupported type %s", i, typ.Params[i])
		}
	}
	return args, nil
}

var (
	dumpStat   bool
	cpuProfile string
	memProfile string
)

func init() {
	log.Default().SetOutput(os.Stderr)
	flag.BoolVarP(&dumpStat, "dump", "d", false, "Dump the module structure instead of running it.")
	flag.StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile to the specified file before exiting.")
	flag.StringVar(&memProfile, "memprofile", "", "Write a memory store profile to the specified file before exiting.")
}

func run() error {
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		return fmt.Errorf("usage: wasmo [flags] </path/to/app.wasm> [function] [args...]")
	}

	funcName := "_start"
	var funcArgs []string
	if len(args) > 1 {
		funcName = args[1]
		funcArgs = args[2:]
	}

	return (&program{
		filePath:   args[0],
		funcName:   funcName,
		funcArgs:   funcArgs,
		dumpStat:   dumpStat,
		cpuProfile: cpuProfile,
		memProfile: memProfile,
	}).run()
}

func writeProfile(path string, prof *profile.Profile) {
	if prof == nil {
		return
	}
	if err := wasmo.WriteProfile(path, prof); err != nil {
		log.Fatalf("ERROR: writing profile: %s", err)
	}
}
