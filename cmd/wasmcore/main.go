// Copyright 2025 Google LLC
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

// Command wasmcore is a minimal REPL embedder, grounded on the teacher's
// cmd/epsilon REPL: LOAD a module from a file, CALL one of its exports,
// list its EXPORTS, or QUIT. It exists to exercise engine.Runtime as a real
// embedder would, not as a general-purpose Wasm CLI (the original
// implementation's own CLI is out of scope, per SPEC_FULL.md §12).
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gowasm/wasmcore/engine"
)

const (
	prompt            = "wasmcore> "
	colorRed          = "\033[31m"
	colorGreen        = "\033[32m"
	colorReset        = "\033[0m"
	defaultModuleName = "default"
)

var errNoModuleLoaded = errors.New("no module loaded; use LOAD <path> first")

func main() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		os.Exit(0)
	}()

	r := &repl{
		runtime: engine.NewRuntime(engine.DefaultConfig()),
		modules: make(map[string]*engine.ModuleInstance),
		scanner: bufio.NewScanner(os.Stdin),
	}
	r.run()
}

type repl struct {
	runtime *engine.Runtime
	modules map[string]*engine.ModuleInstance
	scanner *bufio.Scanner
}

func (r *repl) run() {
	fmt.Print(prompt)
	for r.scanner.Scan() {
		fields := strings.Fields(r.scanner.Text())
		if len(fields) == 0 {
			fmt.Print(prompt)
			continue
		}

		if err := r.dispatch(strings.ToUpper(fields[0]), fields[1:]); err != nil {
			fmt.Printf("%s%s%s\n", colorRed, err, colorReset)
		}
		fmt.Print(prompt)
	}
}

func (r *repl) dispatch(cmd string, args []string) error {
	switch cmd {
	case "LOAD":
		return r.load(args)
	case "CALL":
		return r.call(args)
	case "EXPORTS":
		return r.exports(args)
	case "QUIT", "EXIT":
		os.Exit(0)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (r *repl) load(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: LOAD <path.wasm> [name]")
	}
	name := defaultModuleName
	if len(args) > 1 {
		name = args[1]
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	mi, err := r.runtime.ParseAndInstantiate(data, nil)
	if err != nil {
		return err
	}
	r.modules[name] = mi
	fmt.Printf("%sloaded %s as %s%s\n", colorGreen, args[0], name, colorReset)
	return nil
}

func (r *repl) call(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: CALL <function> [args...] [module]")
	}
	name := args[0]
	rest := args[1:]

	moduleName := defaultModuleName
	if len(rest) > 0 {
		if _, err := strconv.ParseInt(rest[len(rest)-1], 10, 32); err != nil {
			moduleName = rest[len(rest)-1]
			rest = rest[:len(rest)-1]
		}
	}

	mi, ok := r.modules[moduleName]
	if !ok {
		return errNoModuleLoaded
	}

	values := make([]engine.Value, len(rest))
	for i, a := range rest {
		n, err := strconv.ParseInt(a, 10, 32)
		if err != nil {
			return fmt.Errorf("argument %q is not an i32: %w", a, err)
		}
		values[i] = engine.I32Value(int32(n))
	}

	rets, err := r.runtime.Invoke(mi, name, values...)
	if err != nil {
		return err
	}
	for _, v := range rets {
		fmt.Println(v.I32())
	}
	return nil
}

func (r *repl) exports(args []string) error {
	moduleName := defaultModuleName
	if len(args) > 0 {
		moduleName = args[0]
	}
	mi, ok := r.modules[moduleName]
	if !ok {
		return errNoModuleLoaded
	}
	for _, name := range mi.ExportNames() {
		fmt.Println(name)
	}
	return nil
}
