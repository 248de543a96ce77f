// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/ir"
	"github.com/hlvm-dev/hqlc/internal/macro"
)

// lowerSource runs the full pipeline over one source unit and returns the
// lowered program plus everything reported.
func lowerSource(t *testing.T, source string) (*ir.Program, []exc.Exception) {
	t.Helper()
	ctx := context.Background()
	rep := exc.NewReporter(nil)
	tokens := NewLexerHQL(rep).Lex(ctx, source, "/test.hql")
	parser, err := NewParserHQL(rep).PrepareParse(ctx, tokens, "/test.hql")
	require.Nil(t, err)
	forms := parser.ParseProgram()
	if forms == nil {
		return nil, rep.Reported()
	}
	registry := macro.NewRegistry()
	forms, err = macro.NewExpander("/test.hql", registry).ExpandAll(forms)
	if err != nil {
		if ex, ok := err.(exc.Exception); ok {
			_ = rep.Report(ex)
		}
		return nil, rep.Reported()
	}
	return newLowering(rep, "/test.hql", registry).LowerProgram(forms), rep.Reported()
}

// declInit digs the initializer out of a single (def name value) statement.
func declInit(t *testing.T, s ir.Statement) ir.Expression {
	t.Helper()
	decl, ok := s.(*ir.VariableDeclaration)
	require.True(t, ok)
	require.Len(t, decl.Declarations, 1)
	return decl.Declarations[0].Init
}

// iifeBody unwraps await/yield* around an immediately invoked function and
// returns the function and its body.
func iifeBody(t *testing.T, e ir.Expression) (*ir.FunctionExpression, []ir.Statement) {
	t.Helper()
	switch wrapped := e.(type) {
	case *ir.AwaitExpression:
		e = wrapped.Argument
	case *ir.YieldExpression:
		e = wrapped.Argument
	}
	call, ok := e.(*ir.CallExpression)
	require.True(t, ok)
	fn, ok := call.Callee.(*ir.FunctionExpression)
	require.True(t, ok)
	return fn, fn.Body.Body
}

func TestLowerDef(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(def x 1)")
	require.Empty(t, reported)
	require.Len(t, program.Body, 1)
	decl, ok := program.Body[0].(*ir.VariableDeclaration)
	require.True(t, ok)
	require.Equal(t, ir.DeclKindConst, decl.Kind)
	require.Equal(t, &ir.NumericLiteral{Value: 1}, stripLoc(decl.Declarations[0].Init))
	require.Equal(t, "x", decl.Declarations[0].ID.(*ir.Identifier).Name)
}

func TestLowerDefDestructuring(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(def [a _ & rest] xs)")
	require.Empty(t, reported)
	decl := program.Body[0].(*ir.VariableDeclaration)
	arr, ok := decl.Declarations[0].ID.(*ir.ArrayPattern)
	require.True(t, ok)
	require.Len(t, arr.Elements, 3)
	require.Equal(t, "a", arr.Elements[0].(*ir.Identifier).Name)
	require.Nil(t, arr.Elements[1])
	rest, ok := arr.Elements[2].(*ir.RestElement)
	require.True(t, ok)
	require.Equal(t, "rest", rest.Argument.(*ir.Identifier).Name)
}

func TestLowerLetIsIIFE(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(def r (let [x 1] x))")
	require.Empty(t, reported)
	_, body := iifeBody(t, declInit(t, program.Body[0]))
	require.Len(t, body, 2)
	bind, ok := body[0].(*ir.VariableDeclaration)
	require.True(t, ok)
	require.Equal(t, ir.DeclKindConst, bind.Kind)
	ret, ok := body[1].(*ir.ReturnStatement)
	require.True(t, ok)
	require.Equal(t, "x", ret.Argument.(*ir.Identifier).Name)
}

func TestLowerLoopNativeCountingUpdates(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, `
		(defn sum-below [n]
		  (loop [i 0 total 0]
		    (if (< i n)
		      (recur (+ i 1) (+ total i))
		      total)))
	`)
	require.Empty(t, reported)
	fn, ok := program.Body[0].(*ir.FunctionDeclaration)
	require.True(t, ok)
	ret, ok := fn.Body.Body[0].(*ir.ReturnStatement)
	require.True(t, ok)
	loopFn, body := iifeBody(t, ret.Argument)
	require.Len(t, loopFn.Params, 2)
	require.Len(t, body, 2)

	while, ok := body[0].(*ir.WhileStatement)
	require.True(t, ok)
	test, ok := while.Test.(*ir.BinaryExpression)
	require.True(t, ok)
	require.Equal(t, "<", test.Operator)

	// total rebinds through a temporary because its update reads i; the
	// optimized i++ runs only after the temporary is assigned back.
	updates := while.Body.(*ir.BlockStatement).Body
	require.Len(t, updates, 3)
	temp, ok := updates[0].(*ir.VariableDeclaration)
	require.True(t, ok)
	require.Equal(t, ir.DeclKindConst, temp.Kind)
	assign, ok := updates[1].(*ir.ExpressionStatement)
	require.True(t, ok)
	back, ok := assign.Expression.(*ir.AssignmentExpression)
	require.True(t, ok)
	require.Equal(t, "total", back.Left.(*ir.Identifier).Name)
	inc, ok := updates[2].(*ir.ExpressionStatement)
	require.True(t, ok)
	update, ok := inc.Expression.(*ir.UpdateExpression)
	require.True(t, ok)
	require.Equal(t, "++", update.Operator)
	require.Equal(t, "i", update.Argument.(*ir.Identifier).Name)

	exit, ok := body[1].(*ir.ReturnStatement)
	require.True(t, ok)
	require.Equal(t, "total", exit.Argument.(*ir.Identifier).Name)
}

func TestLowerLoopSimultaneousRebinding(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, `
		(def fib
		  (loop [a 0 b 1]
		    (if (< a 100)
		      (recur b (+ a b))
		      a)))
	`)
	require.Empty(t, reported)
	_, body := iifeBody(t, declInit(t, program.Body[0]))
	while, ok := body[0].(*ir.WhileStatement)
	require.True(t, ok)

	// Both updates read loop variables, so both values are computed before
	// either variable is reassigned.
	updates := while.Body.(*ir.BlockStatement).Body
	require.Len(t, updates, 4)
	_, ok = updates[0].(*ir.VariableDeclaration)
	require.True(t, ok)
	_, ok = updates[1].(*ir.VariableDeclaration)
	require.True(t, ok)
	first, ok := updates[2].(*ir.ExpressionStatement)
	require.True(t, ok)
	require.Equal(t, "a", first.Expression.(*ir.AssignmentExpression).Left.(*ir.Identifier).Name)
	second, ok := updates[3].(*ir.ExpressionStatement)
	require.True(t, ok)
	require.Equal(t, "b", second.Expression.(*ir.AssignmentExpression).Left.(*ir.Identifier).Name)
}

func TestLowerLoopCompoundAssignment(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, `
		(def r
		  (loop [total 0]
		    (if (< total 100)
		      (recur (+ total step))
		      total)))
	`)
	require.Empty(t, reported)
	_, body := iifeBody(t, declInit(t, program.Body[0]))
	while := body[0].(*ir.WhileStatement)
	updates := while.Body.(*ir.BlockStatement).Body
	require.Len(t, updates, 1)
	assign, ok := updates[0].(*ir.ExpressionStatement).Expression.(*ir.AssignmentExpression)
	require.True(t, ok)
	require.Equal(t, "+=", assign.Operator)
	require.Equal(t, "total", assign.Left.(*ir.Identifier).Name)
	require.Equal(t, "step", assign.Right.(*ir.Identifier).Name)
}

func TestLowerLoopNegatedCondition(t *testing.T) {
	t.Parallel()

	// recur in the alternate branch negates the while condition.
	program, reported := lowerSource(t, `
		(def r
		  (loop [i 0]
		    (if (>= i 10)
		      i
		      (recur (+ i 1)))))
	`)
	require.Empty(t, reported)
	_, body := iifeBody(t, declInit(t, program.Body[0]))
	while := body[0].(*ir.WhileStatement)
	not, ok := while.Test.(*ir.UnaryExpression)
	require.True(t, ok)
	require.Equal(t, "!", not.Operator)
}

func TestLowerLoopRecursiveFallback(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, `
		(def r
		  (loop [i 0]
		    (emit i)
		    (if (< i 3) (recur (+ i 1)) i)))
	`)
	require.Empty(t, reported)
	_, body := iifeBody(t, declInit(t, program.Body[0]))
	require.Len(t, body, 2)
	step, ok := body[0].(*ir.FunctionDeclaration)
	require.True(t, ok)
	require.Len(t, step.Params, 1)
	ret, ok := body[1].(*ir.ReturnStatement)
	require.True(t, ok)
	call, ok := ret.Argument.(*ir.CallExpression)
	require.True(t, ok)
	require.Equal(t, step.ID.Name, call.Callee.(*ir.Identifier).Name)
}

func TestLowerLoopAsyncPropagation(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, `
		(def r
		  (loop [i 0]
		    (if (< i 3)
		      (recur (await (step i)))
		      i)))
	`)
	require.Empty(t, reported)
	init := declInit(t, program.Body[0])
	wrapped, ok := init.(*ir.AwaitExpression)
	require.True(t, ok)
	fn := wrapped.Argument.(*ir.CallExpression).Callee.(*ir.FunctionExpression)
	require.True(t, fn.Async)
	require.False(t, fn.Generator)
}

func TestLowerRecurErrors(t *testing.T) {
	t.Parallel()

	t.Run("outside a loop", func(t *testing.T) {
		t.Parallel()
		program, reported := lowerSource(t, "(recur 1)")
		require.Nil(t, program)
		require.NotEmpty(t, reported)
		require.Equal(t, exc.CodeRecurOutsideLoop, reported[0].Code())
	})

	t.Run("wrong arity", func(t *testing.T) {
		t.Parallel()
		program, reported := lowerSource(t, "(def r (loop [i 0] (if true (recur 1 2) i)))")
		require.Nil(t, program)
		require.NotEmpty(t, reported)
		require.Equal(t, exc.CodeRecurArity, reported[0].Code())
	})
}

func TestLowerForOfStatement(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(for-of [x items] (emit x))")
	require.Empty(t, reported)
	forOf, ok := program.Body[0].(*ir.ForOfStatement)
	require.True(t, ok)
	require.False(t, forOf.Await)
	require.Empty(t, forOf.LabelTargets)
	left, ok := forOf.Left.(*ir.VariableDeclaration)
	require.True(t, ok)
	require.Equal(t, ir.DeclKindConst, left.Kind)
	require.Equal(t, "x", left.Declarations[0].ID.(*ir.Identifier).Name)
	require.Equal(t, "items", forOf.Right.(*ir.Identifier).Name)
}

func TestLowerForAwait(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(for-await [chunk stream] (emit chunk))")
	require.Empty(t, reported)
	forOf, ok := program.Body[0].(*ir.ForOfStatement)
	require.True(t, ok)
	require.True(t, forOf.Await)
}

func TestLowerForOfExpressionYieldsNull(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(def r (for-of [x items] (emit x)))")
	require.Empty(t, reported)
	_, body := iifeBody(t, declInit(t, program.Body[0]))
	require.Len(t, body, 2)
	_, ok := body[0].(*ir.ForOfStatement)
	require.True(t, ok)
	ret, ok := body[1].(*ir.ReturnStatement)
	require.True(t, ok)
	_, ok = ret.Argument.(*ir.NullLiteral)
	require.True(t, ok)
}

func TestLowerLabeledForOf(t *testing.T) {
	t.Parallel()

	// The label owns the wrapper: the for-of stays unwrapped inside the
	// labeled statement, so (break done) never crosses a function boundary,
	// and the whole expression evaluates to null.
	program, reported := lowerSource(t, `
		(def r
		  (label done
		    (for-of [x items]
		      (if (= x 2) (break done) nil)
		      (emit x))))
	`)
	require.Empty(t, reported)
	_, body := iifeBody(t, declInit(t, program.Body[0]))
	require.Len(t, body, 2)
	labeled, ok := body[0].(*ir.LabeledStatement)
	require.True(t, ok)
	require.Equal(t, "done", labeled.Label.Name)
	forOf, ok := labeled.Body.(*ir.ForOfStatement)
	require.True(t, ok)
	require.Equal(t, []string{"done"}, forOf.LabelTargets)
	ret, ok := body[1].(*ir.ReturnStatement)
	require.True(t, ok)
	_, ok = ret.Argument.(*ir.NullLiteral)
	require.True(t, ok)
}

func TestLowerNestedLabelsShareOneWrapper(t *testing.T) {
	t.Parallel()

	// The inner label's for-of targets the outer label, so both labels defer
	// and the outer label holds the only IIFE: (break outer) and the outer
	// LabeledStatement end up in the same synthesized function.
	program, reported := lowerSource(t, `
		(label outer
		  (for-of [x xs]
		    (def s
		      (label inner
		        (for-of [y ys]
		          (if (pred y) (break outer) nil))))
		    (emit s)))
	`)
	require.Empty(t, reported)
	stmt, ok := program.Body[0].(*ir.ExpressionStatement)
	require.True(t, ok)
	_, body := iifeBody(t, stmt.Expression)
	require.Len(t, body, 2)
	outer, ok := body[0].(*ir.LabeledStatement)
	require.True(t, ok)
	require.Equal(t, "outer", outer.Label.Name)
	ret, ok := body[1].(*ir.ReturnStatement)
	require.True(t, ok)
	_, ok = ret.Argument.(*ir.NullLiteral)
	require.True(t, ok)

	outerLoop, ok := outer.Body.(*ir.ForOfStatement)
	require.True(t, ok)
	require.Equal(t, []string{"outer"}, outerLoop.LabelTargets)
	block, ok := outerLoop.Body.(*ir.BlockStatement)
	require.True(t, ok)
	inner, ok := declInit(t, block.Body[0]).(*ir.LabeledStatement)
	require.True(t, ok)
	require.Equal(t, "inner", inner.Label.Name)
	innerLoop, ok := inner.Body.(*ir.ForOfStatement)
	require.True(t, ok)
	require.Equal(t, []string{"outer"}, innerLoop.LabelTargets)

	// No function boundary separates the break from the label it names.
	brokeOuter := false
	ir.Walk(outer, func(n ir.Node) bool {
		switch v := n.(type) {
		case *ir.FunctionExpression, *ir.FunctionDeclaration, *ir.ArrowFunctionExpression:
			t.Fatal("nested function splits the label from its break")
		case *ir.BreakStatement:
			if v.Label != nil && v.Label.Name == "outer" {
				brokeOuter = true
			}
		}
		return true
	})
	require.True(t, brokeOuter)
}

func TestLowerStatementLabelClaimsDeferredForOf(t *testing.T) {
	t.Parallel()

	// A for-of in expression position skips its own IIFE when it targets an
	// open label; the label, even in statement position, must then hold the
	// wrapper so the break stays inside the function that carries the label.
	program, reported := lowerSource(t, `
		(label done
		  (do
		    (def r (for-of [y ys] (if (stop y) (break done) nil)))
		    (emit r)))
	`)
	require.Empty(t, reported)
	stmt, ok := program.Body[0].(*ir.ExpressionStatement)
	require.True(t, ok)
	_, body := iifeBody(t, stmt.Expression)
	require.Len(t, body, 2)
	labeled, ok := body[0].(*ir.LabeledStatement)
	require.True(t, ok)
	require.Equal(t, "done", labeled.Label.Name)
	block, ok := labeled.Body.(*ir.BlockStatement)
	require.True(t, ok)
	forOf, ok := declInit(t, block.Body[0]).(*ir.ForOfStatement)
	require.True(t, ok)
	require.Equal(t, []string{"done"}, forOf.LabelTargets)
	ret, ok := body[1].(*ir.ReturnStatement)
	require.True(t, ok)
	_, ok = ret.Argument.(*ir.NullLiteral)
	require.True(t, ok)
}

func TestLowerStatementLabelKeepsPlainForOf(t *testing.T) {
	t.Parallel()

	// A for-of in statement position under its label needs no wrapper at
	// all: label plus native loop is already well-formed output.
	program, reported := lowerSource(t, `
		(label done
		  (for-of [x xs]
		    (if (stop x) (break done) nil)))
	`)
	require.Empty(t, reported)
	labeled, ok := program.Body[0].(*ir.LabeledStatement)
	require.True(t, ok)
	require.Equal(t, "done", labeled.Label.Name)
	_, ok = labeled.Body.(*ir.ForOfStatement)
	require.True(t, ok)
}

func TestLowerForOfReturnEscapes(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, `
		(defn find-first [xs]
		  (def r (for-of [x xs] (if (match x) (return x) nil)))
		  r)
	`)
	require.Empty(t, reported)
	fn := program.Body[0].(*ir.FunctionDeclaration)
	decl := fn.Body.Body[0].(*ir.VariableDeclaration)
	_, ok := decl.Declarations[0].Init.(*ir.ForOfStatement)
	require.True(t, ok)
}

func TestLowerBreakErrors(t *testing.T) {
	t.Parallel()

	t.Run("outside any loop", func(t *testing.T) {
		t.Parallel()
		program, reported := lowerSource(t, "(break)")
		require.Nil(t, program)
		require.NotEmpty(t, reported)
		require.Equal(t, exc.CodeBreakOutsideLabel, reported[0].Code())
	})

	t.Run("unknown label", func(t *testing.T) {
		t.Parallel()
		program, reported := lowerSource(t, "(for-of [x items] (break missing))")
		require.Nil(t, program)
		require.NotEmpty(t, reported)
		require.Equal(t, exc.CodeUnknownLabel, reported[0].Code())
	})
}

func TestLowerTry(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, `
		(def r
		  (try
		    (risky)
		    (catch e (handle e))
		    (finally (cleanup))))
	`)
	require.Empty(t, reported)
	fn, body := iifeBody(t, declInit(t, program.Body[0]))
	require.False(t, fn.Async)
	require.Len(t, body, 1)
	try, ok := body[0].(*ir.TryStatement)
	require.True(t, ok)
	_, ok = try.Block.Body[0].(*ir.ReturnStatement)
	require.True(t, ok)
	require.NotNil(t, try.Handler)
	require.Equal(t, "e", try.Handler.Param.(*ir.Identifier).Name)
	_, ok = try.Handler.Body.Body[0].(*ir.ReturnStatement)
	require.True(t, ok)
	require.NotNil(t, try.Finalizer)
}

func TestLowerTryWithoutBinding(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(def r (try (risky) (catch (fallback))))")
	require.Empty(t, reported)
	_, body := iifeBody(t, declInit(t, program.Body[0]))
	try := body[0].(*ir.TryStatement)
	require.NotNil(t, try.Handler)
	require.Nil(t, try.Handler.Param)
}

func TestLowerTryAsync(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(def r (try (await (load)) (catch e nil)))")
	require.Empty(t, reported)
	wrapped, ok := declInit(t, program.Body[0]).(*ir.AwaitExpression)
	require.True(t, ok)
	fn := wrapped.Argument.(*ir.CallExpression).Callee.(*ir.FunctionExpression)
	require.True(t, fn.Async)
}

func TestLowerTryDuplicateClauses(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(def r (try (f) (catch e 1) (catch e 2)))")
	require.Nil(t, program)
	require.NotEmpty(t, reported)
	require.Equal(t, exc.CodeDuplicateClause, reported[0].Code())
}

func TestLowerFnFlags(t *testing.T) {
	t.Parallel()

	t.Run("await marks async", func(t *testing.T) {
		t.Parallel()
		program, reported := lowerSource(t, "(defn load [] (await (fetch)))")
		require.Empty(t, reported)
		fn := program.Body[0].(*ir.FunctionDeclaration)
		require.True(t, fn.Async)
		require.False(t, fn.Generator)
	})

	t.Run("yield marks generator", func(t *testing.T) {
		t.Parallel()
		program, reported := lowerSource(t, "(defn numbers [] (yield 1) (yield 2))")
		require.Empty(t, reported)
		fn := program.Body[0].(*ir.FunctionDeclaration)
		require.True(t, fn.Generator)
	})

	t.Run("nested function does not leak await", func(t *testing.T) {
		t.Parallel()
		program, reported := lowerSource(t, "(defn outer [] (fn inner [] (await (fetch))))")
		require.Empty(t, reported)
		fn := program.Body[0].(*ir.FunctionDeclaration)
		require.False(t, fn.Async)
	})
}

func TestLowerEquality(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(def r (= a b))")
	require.Empty(t, reported)
	bin, ok := declInit(t, program.Body[0]).(*ir.BinaryExpression)
	require.True(t, ok)
	require.Equal(t, "===", bin.Operator)
}

func TestLowerSystemMacroThroughPipeline(t *testing.T) {
	t.Parallel()

	program, reported := lowerSource(t, "(def r (-> x (f a) g))")
	require.Empty(t, reported)
	call, ok := declInit(t, program.Body[0]).(*ir.CallExpression)
	require.True(t, ok)
	require.Equal(t, "g", call.Callee.(*ir.Identifier).Name)
	inner, ok := call.Arguments[0].(*ir.CallExpression)
	require.True(t, ok)
	require.Equal(t, "f", inner.Callee.(*ir.Identifier).Name)
}

// stripLoc clears the location of a node for literal comparisons.
func stripLoc(e ir.Expression) ir.Expression {
	switch n := e.(type) {
	case *ir.NumericLiteral:
		return &ir.NumericLiteral{Value: n.Value}
	case *ir.StringLiteral:
		return &ir.StringLiteral{Value: n.Value}
	default:
		return e
	}
}
