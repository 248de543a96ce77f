// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/ir"
	"github.com/hlvm-dev/hqlc/internal/iter"
	"github.com/hlvm-dev/hqlc/internal/macro"
)

type Option func(c *Compiler) error

func OptionWithReporter(reporter exc.Reporter) Option {
	return func(c *Compiler) error {
		c.Reporter = reporter
		return nil
	}
}

func OptionWithMaxConcurrency(n int) Option {
	return func(c *Compiler) error {
		c.MaxConcurrency = n
		return nil
	}
}

// OptionWithRegistry shares a macro registry across compilations, so macros
// defined in one session remain visible to the next.
func OptionWithRegistry(registry *macro.Registry) Option {
	return func(c *Compiler) error {
		c.Registry = registry
		return nil
	}
}

func New(opts ...Option) (*Compiler, error) {
	c := &Compiler{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.MaxConcurrency == 0 {
		max := runtime.GOMAXPROCS(-1)
		cpus := runtime.NumCPU()
		if max > cpus {
			max = cpus
		}
		c.MaxConcurrency = max
	}
	if c.Semaphore == nil {
		c.Semaphore = newSemaphore(c.MaxConcurrency)
	}
	if c.Reporter == nil {
		c.Reporter = exc.NewReporter(nil)
	}
	if c.Registry == nil {
		c.Registry = macro.NewRegistry()
	}
	return c, nil
}

type Compiler struct {
	MaxConcurrency int
	Semaphore      *semaphore
	Reporter       exc.Reporter
	Registry       *macro.Registry
}

// CompileUnit is one source file presented to the pipeline. URI is used for
// diagnostics and the registry's processed-file guard.
type CompileUnit struct {
	URI    string
	Source string
}

type CompileRequest struct {
	Units      []CompileUnit
	DumpTokens bool
	DumpTree   bool
	DumpIR     bool
}

// CompiledUnit is the result for one source unit: the post-expansion tree
// and the lowered program.
type CompiledUnit struct {
	URI     string
	Forms   []hql.SExp
	Program *ir.Program
}

type CompileResponse struct {
	Units []*CompiledUnit
}

// Compile runs every unit through the pipeline, one goroutine per unit with
// the semaphore bounding parallelism. Per-unit state (parser depth, context
// stack, interpreter environments) is private to each goroutine; the
// reporter and the registry's system-macro table are the only shared state
// and both are safe under concurrent use. All reported exceptions are
// aggregated into one MultiException after every unit finishes.
func (self *Compiler) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	// Buffered so workers can always complete their send: an early return on
	// context cancellation must not strand a goroutine holding a semaphore
	// token.
	results := make(chan *CompiledUnit, len(req.Units))
	for _, unit := range req.Units {
		go func(unit CompileUnit) {
			results <- self.compileUnit(ctx, unit, req)
		}(unit)
	}

	byURI := make(map[string]*CompiledUnit, len(req.Units))
	for x := 0; x < len(req.Units); x = x + 1 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result := <-results:
			if result != nil {
				byURI[result.URI] = result
			}
		}
	}

	// Response units follow request order regardless of completion order.
	response := &CompileResponse{}
	for _, unit := range req.Units {
		if compiled, ok := byURI[unit.URI]; ok {
			response.Units = append(response.Units, compiled)
		}
	}
	caught := self.Reporter.Reported()
	if len(caught) > 0 {
		return response, MultiException(caught)
	}
	return response, nil
}

func (self *Compiler) compileUnit(ctx context.Context, unit CompileUnit, req *CompileRequest) *CompiledUnit {
	self.Semaphore.Lock()
	defer self.Semaphore.Unlock()

	tokens := NewLexerHQL(self.Reporter).Lex(ctx, unit.Source, unit.URI)
	if req.DumpTokens {
		collected := iter.Collect(ctx, tokens)
		for _, t := range collected {
			fmt.Printf("%s:%d:%d %d %q\n", unit.URI, t.Span.Start.Line, t.Span.Start.Column, t.Type, t.Value)
		}
		tokens = iter.NewSlice(collected)
	}
	parser, err := NewParserHQL(self.Reporter).PrepareParse(ctx, tokens, unit.URI)
	if err != nil {
		self.reportErr(unit.URI, err)
		return nil
	}
	forms := parser.ParseProgram()
	if forms == nil {
		return nil
	}
	if !self.Registry.HasProcessedFile(unit.URI) {
		expanded, err := macro.NewExpander(unit.URI, self.Registry).ExpandAll(forms)
		if err != nil {
			self.reportErr(unit.URI, err)
			return nil
		}
		self.Registry.MarkFileProcessed(unit.URI)
		forms = expanded
	}
	if req.DumpTree {
		for _, form := range forms {
			fmt.Println(hql.Sprint(form))
		}
	}
	program := newLowering(self.Reporter, unit.URI, self.Registry).LowerProgram(forms)
	if program == nil {
		return nil
	}
	if req.DumpIR {
		fmt.Println(ir.Sprint(program))
	}
	return &CompiledUnit{URI: unit.URI, Forms: forms, Program: program}
}

func (self *Compiler) reportErr(uri string, err error) {
	if ex, ok := err.(exc.Exception); ok {
		_ = self.Reporter.Report(ex)
		return
	}
	_ = self.Reporter.Report(exc.WrapUnknown(exc.Location{URI: uri}, err))
}

type MultiException []exc.Exception

func (self MultiException) Error() string {
	var b strings.Builder
	for _, err := range self[:len(self)-1] {
		b.WriteString(err.Error())
		b.WriteString("; ")
	}
	b.WriteString(self[len(self)-1].Error())
	return b.String()
}
