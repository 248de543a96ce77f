// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/hlvm-dev/hqlc/internal/compiler"
	"github.com/hlvm-dev/hqlc/internal/ir"
)

type opts struct {
	DumpTokens     bool
	DumpTree       bool
	DumpIR         bool
	MaxConcurrency int
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	op := &opts{}
	flags := pflag.NewFlagSet("hqlc", pflag.PanicOnError)
	flags.BoolVar(&op.DumpTokens, "dump-tokens", false, "Output the token stream as it is processed")
	flags.BoolVar(&op.DumpTree, "dump-tree", false, "Output the expanded tree after parsing and macro expansion")
	flags.BoolVar(&op.DumpIR, "dump-ir", false, "Output the lowered IR")
	flags.IntVar(&op.MaxConcurrency, "max-concurrency", 0, "Maximum number of files compiled in parallel (0 uses the CPU count)")
	_ = flags.Parse(os.Args[1:])
	targets := flags.Args()

	units := make([]compiler.CompileUnit, 0, len(targets))
	for _, target := range targets {
		source, err := os.ReadFile(target)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		units = append(units, compiler.CompileUnit{URI: target, Source: string(source)})
	}

	c, err := compiler.New(
		compiler.OptionWithMaxConcurrency(op.MaxConcurrency),
	)
	if err != nil {
		panic(err)
	}

	out, err := c.Compile(ctx, &compiler.CompileRequest{
		Units:      units,
		DumpTokens: op.DumpTokens,
		DumpTree:   op.DumpTree,
		DumpIR:     op.DumpIR,
	})
	if err != nil {
		var me compiler.MultiException
		if errors.As(err, &me) {
			for _, err := range me {
				fmt.Fprintln(os.Stderr, err.Error())
			}
			os.Exit(1)
		}
		panic(err)
	}

	if !op.DumpTokens && !op.DumpTree && !op.DumpIR {
		for _, unit := range out.Units {
			fmt.Println(ir.Sprint(unit.Program))
		}
	}
}
