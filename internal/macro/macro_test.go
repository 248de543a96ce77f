// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package macro

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
)

func sym(name string) *hql.Symbol       { return hql.NewSymbol(name, nil) }
func lit(v any) *hql.Literal            { return hql.NewLiteral(v, nil) }
func form(elements ...hql.SExp) *hql.List { return hql.NewList(nil, elements...) }

func TestInterpArithmetic(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		form     hql.SExp
		expected any
	}{
		{
			name:     "addition",
			form:     form(sym("+"), lit(float64(1)), lit(float64(2)), lit(float64(3))),
			expected: float64(6),
		},
		{
			name:     "subtraction chains left",
			form:     form(sym("-"), lit(float64(10)), lit(float64(3)), lit(float64(2))),
			expected: float64(5),
		},
		{
			name:     "unary negation",
			form:     form(sym("-"), lit(float64(4))),
			expected: float64(-4),
		},
		{
			name:     "comparison",
			form:     form(sym("<"), lit(float64(1)), lit(float64(2))),
			expected: true,
		},
		{
			name:     "equality on strings",
			form:     form(sym("="), lit("a"), lit("a")),
			expected: true,
		},
		{
			name:     "not",
			form:     form(sym("not"), lit(false)),
			expected: true,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			in := NewInterp("/test.hql")
			v, err := in.Eval(testCase.form, NewEnv())
			require.NoError(t, err)
			require.Equal(t, testCase.expected, v)
		})
	}
}

func TestInterpTypedErrors(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		form hql.SExp
		code string
	}{
		{
			name: "division by zero",
			form: form(sym("/"), lit(float64(1)), lit(float64(0))),
			code: exc.CodeMacroDivideByZero,
		},
		{
			name: "non-numeric operand",
			form: form(sym("+"), lit(float64(1)), lit("x")),
			code: exc.CodeMacroOperandType,
		},
		{
			name: "wrong arity",
			form: form(sym("not"), lit(true), lit(false)),
			code: exc.CodeMacroArity,
		},
		{
			name: "unbound symbol",
			form: sym("no-such-binding"),
			code: exc.CodeMacroUnboundSymbol,
		},
		{
			name: "calling a number",
			form: form(lit(float64(1)), lit(float64(2))),
			code: exc.CodeMacroOperandType,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			in := NewInterp("/test.hql")
			_, err := in.Eval(testCase.form, NewEnv())
			require.Error(t, err)
			e, ok := err.(exc.Exception)
			require.True(t, ok)
			require.Equal(t, testCase.code, e.Code())
		})
	}
}

func TestInterpSpecialForms(t *testing.T) {
	t.Parallel()
	in := NewInterp("/test.hql")

	// (let [x 2 y (+ x 1)] (* x y))
	letForm := form(sym("let"),
		form(sym("vector"), sym("x"), lit(float64(2)), sym("y"), form(sym("+"), sym("x"), lit(float64(1)))),
		form(sym("*"), sym("x"), sym("y")),
	)
	v, err := in.Eval(letForm, NewEnv())
	require.NoError(t, err)
	require.Equal(t, float64(6), v)

	// ((fn [a & more] (count more)) 1 2 3)
	fnForm := form(
		form(sym("fn"), form(sym("vector"), sym("a"), sym("&"), sym("more")), form(sym("count"), sym("more"))),
		lit(float64(1)), lit(float64(2)), lit(float64(3)),
	)
	v, err = in.Eval(fnForm, NewEnv())
	require.NoError(t, err)
	require.Equal(t, float64(2), v)

	// if without else yields nil
	v, err = in.Eval(form(sym("if"), lit(false), lit(float64(1))), NewEnv())
	require.NoError(t, err)
	require.Nil(t, v)

	// and short-circuits
	v, err = in.Eval(form(sym("and"), lit(false), sym("unbound-never-reached")), NewEnv())
	require.NoError(t, err)
	require.Equal(t, false, v)
}

func TestInterpQuasiquote(t *testing.T) {
	t.Parallel()
	in := NewInterp("/test.hql")
	env := NewEnv()
	env.Define("x", float64(42))
	env.Define("xs", form(lit(float64(1)), lit(float64(2))))

	// `(a ~x ~@xs) => (a 42 1 2)
	qq := form(sym("quasiquote"),
		form(sym("a"),
			form(sym("unquote"), sym("x")),
			form(sym("unquote-splicing"), sym("xs")),
		),
	)
	v, err := in.Eval(qq, env)
	require.NoError(t, err)
	result, ok := v.(hql.SExp)
	require.True(t, ok)
	require.Equal(t, "(a 42 1 2)", hql.Sprint(result))

	// splicing a non-list is a typed error
	env.Define("bad", float64(7))
	_, err = in.Eval(form(sym("quasiquote"), form(form(sym("unquote-splicing"), sym("bad")))), env)
	require.Error(t, err)
	require.Equal(t, exc.CodeMacroOperandType, err.(exc.Exception).Code())
}

func TestInterpRecursionLimit(t *testing.T) {
	t.Parallel()
	in := NewInterp("/test.hql")
	env := NewEnv()
	// ((fn f? [] ...)) cannot name itself, so build self-application:
	// ((fn [f] (f f)) (fn [f] (f f)))
	omega := form(sym("fn"), form(sym("vector"), sym("f")), form(sym("f"), sym("f")))
	_, err := in.Eval(form(omega, omega), env)
	require.Error(t, err)
	require.Equal(t, exc.CodeMacroRecursionLimit, err.(exc.Exception).Code())
}

func TestGensymUnique(t *testing.T) {
	t.Parallel()
	names := make(chan string, 800)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				names <- Gensym("tmp")
			}
		}()
	}
	wg.Wait()
	close(names)
	seen := make(map[string]bool)
	for name := range names {
		require.False(t, seen[name])
		seen[name] = true
	}
}

func TestRegistrySystemMacros(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	require.True(t, r.IsSystemMacro("when"))
	require.True(t, r.IsSystemMacro("unless"))
	require.True(t, r.IsSystemMacro("cond"))
	require.True(t, r.HasMacro("->"))
	require.False(t, r.IsSystemMacro("my-macro"))

	r.DefineMacro("my-macro", func(args []hql.SExp, env *Env) (hql.SExp, error) {
		return lit(nil), nil
	})
	require.True(t, r.HasMacro("my-macro"))
	require.False(t, r.IsSystemMacro("my-macro"))

	// only system macros cross file boundaries
	require.True(t, r.ImportMacro("/a.hql", "when", "/b.hql", ""))
	require.False(t, r.ImportMacro("/a.hql", "my-macro", "/b.hql", ""))

	// aliased import resolves through GetMacro
	require.True(t, r.ImportMacro("/a.hql", "unless", "/b.hql", "when-not"))
	_, ok := r.GetMacro("when-not")
	require.True(t, ok)
}

func TestRegistryProcessedFiles(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	require.False(t, r.HasProcessedFile("/lib.hql"))
	r.MarkFileProcessed("/lib.hql")
	require.True(t, r.HasProcessedFile("/lib.hql"))
}

func TestRegistryConcurrentSessions(t *testing.T) {
	t.Parallel()
	results := make(chan bool, 50)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := NewRegistry()
			ok := r.IsSystemMacro("when")
			r.DefineMacro("local", func(args []hql.SExp, env *Env) (hql.SExp, error) {
				return lit(nil), nil
			})
			results <- ok && r.HasMacro("local")
		}()
	}
	wg.Wait()
	close(results)
	for ok := range results {
		require.True(t, ok)
	}
}

func TestExpandWhen(t *testing.T) {
	t.Parallel()
	e := NewExpander("/test.hql", NewRegistry())
	// (when ready (go)) => (if ready (do (go)) null)
	expanded, err := e.Expand(form(sym("when"), sym("ready"), form(sym("go"))))
	require.NoError(t, err)
	require.Equal(t, "(if ready (do (go)) nil)", hql.Sprint(expanded))
}

func TestExpandCond(t *testing.T) {
	t.Parallel()
	e := NewExpander("/test.hql", NewRegistry())
	expanded, err := e.Expand(form(sym("cond"),
		form(sym("="), sym("x"), lit(float64(1))), lit("one"),
		sym("else"), lit("many"),
	))
	require.NoError(t, err)
	require.Equal(t, `(if (= x 1) "one" "many")`, hql.Sprint(expanded))
}

func TestExpandThreading(t *testing.T) {
	t.Parallel()
	e := NewExpander("/test.hql", NewRegistry())

	threadFirst, err := e.Expand(form(sym("->"), sym("x"), form(sym("f"), sym("a")), sym("g")))
	require.NoError(t, err)
	require.Equal(t, "(g (f x a))", hql.Sprint(threadFirst))

	threadLast, err := e.Expand(form(sym("->>"), sym("x"), form(sym("f"), sym("a"))))
	require.NoError(t, err)
	require.Equal(t, "(f a x)", hql.Sprint(threadLast))
}

func TestExpandDefmacro(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	e := NewExpander("/test.hql", reg)

	// (defmacro twice [x] `(do ~x ~x)) then (twice (f))
	defmacro := form(sym("defmacro"), sym("twice"), form(sym("vector"), sym("x")),
		form(sym("quasiquote"), form(sym("do"),
			form(sym("unquote"), sym("x")),
			form(sym("unquote"), sym("x")),
		)),
	)
	out, err := e.ExpandAll([]hql.SExp{defmacro, form(sym("twice"), form(sym("f")))})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "(do (f) (f))", hql.Sprint(out[0]))
	require.True(t, reg.HasMacro("twice"))
}

func TestExpandDefmacroArity(t *testing.T) {
	t.Parallel()
	e := NewExpander("/test.hql", NewRegistry())
	defmacro := form(sym("defmacro"), sym("one"), form(sym("vector"), sym("x")),
		form(sym("quote"), sym("x")))
	_, err := e.ExpandAll([]hql.SExp{defmacro, form(sym("one"), lit(float64(1)), lit(float64(2)))})
	require.Error(t, err)
	require.Equal(t, exc.CodeMacroArity, err.(exc.Exception).Code())
}

func TestExpandSelfRecursiveMacro(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.DefineMacro("forever", func(args []hql.SExp, env *Env) (hql.SExp, error) {
		return form(sym("forever")), nil
	})
	e := NewExpander("/test.hql", reg)
	_, err := e.Expand(form(sym("forever")))
	require.Error(t, err)
	require.Equal(t, exc.CodeMacroRecursionLimit, err.(exc.Exception).Code())
}

func TestExpandLeavesQuoteAlone(t *testing.T) {
	t.Parallel()
	e := NewExpander("/test.hql", NewRegistry())
	quoted := form(sym("quote"), form(sym("when"), sym("x"), sym("y")))
	expanded, err := e.Expand(quoted)
	require.NoError(t, err)
	require.Equal(t, "(quote (when x y))", hql.Sprint(expanded))
}

func TestExpandPositionInheritance(t *testing.T) {
	t.Parallel()
	e := NewExpander("/test.hql", NewRegistry())
	loc := &hql.Location{Line: 7, Column: 3, Offset: 40}
	call := hql.NewList(loc, sym("when"), sym("ready"), form(sym("go")))
	expanded, err := e.Expand(call)
	require.NoError(t, err)
	require.NotNil(t, expanded.Pos())
	require.Equal(t, int32(7), expanded.Pos().Line)
	require.Equal(t, int32(3), expanded.Pos().Column)
}
