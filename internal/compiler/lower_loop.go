// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/ir"
)

// loopFrame describes the innermost open loop for recur resolution. fnName
// is empty in native-while mode, where the recur call is consumed
// structurally and never reaches the generic path.
type loopFrame struct {
	vars   []string
	fnName string
}

// lowerLoop lowers (loop [v1 i1 ...] body...). A body consisting of exactly
// one (if test a b) whose branches end in recur qualifies for native while
// lowering; everything else falls back to a named recursive function. Both
// paths capture initializer values through IIFE parameters so an
// initializer sharing a name with a loop variable observes the outer
// binding.
func (l *lowering) lowerLoop(n *hql.List) ir.Expression {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "loop expects a binding vector")
		return nil
	}
	bindings, ok := vectorElements(n.Elements[1])
	if !ok {
		l.report(n.Elements[1], exc.CodeInvalidBinding, "loop bindings must be a vector")
		return nil
	}
	if len(bindings)%2 != 0 {
		l.report(n.Elements[1], exc.CodeInvalidBinding, "loop bindings must pair names with values")
		return nil
	}
	vars := make([]string, 0, len(bindings)/2)
	params := make([]ir.Pattern, 0, len(bindings)/2)
	inits := make([]ir.Expression, 0, len(bindings)/2)
	for i := 0; i < len(bindings); i += 2 {
		sym, ok := bindings[i].(*hql.Symbol)
		if !ok {
			l.report(bindings[i], exc.CodeInvalidBinding, "loop variable must be a symbol, got %s", hql.Sprint(bindings[i]))
			return nil
		}
		name := hql.SanitizeName(sym.Name)
		init := l.expression(bindings[i+1])
		if init == nil {
			return nil
		}
		vars = append(vars, name)
		params = append(params, &ir.Identifier{Base: l.base(sym), Name: name})
		inits = append(inits, init)
	}
	body := n.Elements[2:]
	if ifForm, ok := simpleLoopShape(body); ok {
		return l.lowerNativeLoop(n, vars, params, inits, ifForm)
	}
	return l.lowerRecursiveLoop(n, vars, params, inits, body)
}

// simpleLoopShape accepts a body of exactly one (if test consequent
// alternate?) where exactly one branch ends in recur.
func simpleLoopShape(body []hql.SExp) (*hql.List, bool) {
	if len(body) != 1 {
		return nil, false
	}
	ifForm, ok := body[0].(*hql.List)
	if !ok || ifForm.Head() != "if" || len(ifForm.Elements) < 3 || len(ifForm.Elements) > 4 {
		return nil, false
	}
	_, _, consequentRecurs := endsInRecur(ifForm.Elements[2])
	alternateRecurs := false
	if len(ifForm.Elements) == 4 {
		_, _, alternateRecurs = endsInRecur(ifForm.Elements[3])
	}
	// Exactly one branch recurs; the other is the loop's value.
	return ifForm, consequentRecurs != alternateRecurs
}

// endsInRecur matches (recur ...) directly or as the final form of nested
// (do ...) wrappers, returning the recur call and the side-effecting prefix
// forms that run before it.
func endsInRecur(form hql.SExp) (*hql.List, []hql.SExp, bool) {
	list, ok := form.(*hql.List)
	if !ok {
		return nil, nil, false
	}
	switch list.Head() {
	case "recur":
		return list, nil, true
	case "do":
		if len(list.Elements) < 2 {
			return nil, nil, false
		}
		last := list.Elements[len(list.Elements)-1]
		recur, prefix, ok := endsInRecur(last)
		if !ok {
			return nil, nil, false
		}
		return recur, append(list.Elements[1:len(list.Elements)-1], prefix...), true
	}
	return nil, nil, false
}

func (l *lowering) lowerNativeLoop(n *hql.List, vars []string, params []ir.Pattern, inits []ir.Expression, ifForm *hql.List) ir.Expression {
	pop := l.push(ctxEntry{kind: ctxLoop, frame: &loopFrame{vars: vars}})
	defer pop()

	test := l.expression(ifForm.Elements[1])
	if test == nil {
		return nil
	}
	consequent := ifForm.Elements[2]
	var alternate hql.SExp
	if len(ifForm.Elements) == 4 {
		alternate = ifForm.Elements[3]
	}
	recurBranch := consequent
	exitBranch := alternate
	if _, _, inConsequent := endsInRecur(consequent); !inConsequent {
		recurBranch = alternate
		exitBranch = consequent
		// The while condition holds while the recur branch runs.
		test = &ir.UnaryExpression{Base: l.base(ifForm), Operator: "!", Argument: test}
	}
	recur, prefix, _ := endsInRecur(recurBranch)
	if len(recur.Elements)-1 != len(vars) {
		l.report(recur, exc.CodeRecurArity, "recur expects %d arguments, got %d", len(vars), len(recur.Elements)-1)
		return nil
	}

	whileBody := l.statements(prefix)
	if whileBody == nil && prefix != nil {
		return nil
	}
	updates := l.classifyRecurArgs(recur, vars)
	if updates == nil {
		return nil
	}
	whileBody = append(whileBody, updates...)

	statements := []ir.Statement{
		&ir.WhileStatement{
			Base: l.base(n),
			Test: test,
			Body: &ir.BlockStatement{Base: l.base(n), Body: whileBody},
		},
	}
	exit := l.loopExit(n, exitBranch)
	if exit == nil {
		return nil
	}
	statements = append(statements, exit...)
	return l.iifeWith(n, params, inits, statements)
}

// loopExit lowers the non-recurring branch into trailing return statements.
func (l *lowering) loopExit(n *hql.List, branch hql.SExp) []ir.Statement {
	if branch == nil {
		return []ir.Statement{&ir.ReturnStatement{Base: l.base(n), Argument: l.null(n)}}
	}
	if list, ok := branch.(*hql.List); ok && list.Head() == "do" {
		return l.body(list.Elements[1:], true)
	}
	e := l.expression(branch)
	if e == nil {
		return nil
	}
	return []ir.Statement{&ir.ReturnStatement{Base: l.base(branch), Argument: e}}
}

// classifyRecurArgs builds the per-iteration update statements. For each
// loop variable the matching recur argument is classified, in order of
// preference: unchanged variable (no update), increment/decrement by
// literal 1, compound assignment whose other operand references no loop
// variable, or a two-phase temporary. Loop-variable rebinding is
// simultaneous, so every temporary is computed before any variable is
// reassigned, and the optimized updates run only after all temporary
// reassignment.
func (l *lowering) classifyRecurArgs(recur *hql.List, vars []string) []ir.Statement {
	varSet := make(map[string]bool, len(vars))
	for _, v := range vars {
		varSet[v] = true
	}
	base := l.base(recur)
	tempDecls := []ir.Statement{}
	tempAssigns := []ir.Statement{}
	optimized := []ir.Statement{}
	for i, v := range vars {
		arg := recur.Elements[i+1]
		ident := &ir.Identifier{Base: base, Name: v}

		if sym, ok := arg.(*hql.Symbol); ok && hql.SanitizeName(sym.Name) == v {
			continue // Rebinding to itself needs no update.
		}
		if op, updated := l.classifyUpdate(arg, v, varSet); updated {
			optimized = append(optimized, op)
			continue
		}
		value := l.expression(arg)
		if value == nil {
			return nil
		}
		tmp := l.fresh(v + "_next")
		tempDecls = append(tempDecls, &ir.VariableDeclaration{
			Base: base,
			Kind: ir.DeclKindConst,
			Declarations: []*ir.VariableDeclarator{
				{Base: base, ID: &ir.Identifier{Base: base, Name: tmp}, Init: value},
			},
		})
		tempAssigns = append(tempAssigns, &ir.ExpressionStatement{
			Base: base,
			Expression: &ir.AssignmentExpression{
				Base:     base,
				Operator: "=",
				Left:     ident,
				Right:    &ir.Identifier{Base: base, Name: tmp},
			},
		})
	}
	out := append(tempDecls, tempAssigns...)
	return append(out, optimized...)
}

// classifyUpdate recognizes the single-variable arithmetic updates that can
// skip the temporary: ++/-- for a literal 1 step, and compound assignment
// when the other operand references no loop variable. Subtraction and
// division require the variable on the left.
func (l *lowering) classifyUpdate(arg hql.SExp, v string, varSet map[string]bool) (ir.Statement, bool) {
	list, ok := arg.(*hql.List)
	if !ok || len(list.Elements) != 3 {
		return nil, false
	}
	op := list.Head()
	left, right := list.Elements[1], list.Elements[2]
	base := l.base(list)
	ident := &ir.Identifier{Base: base, Name: v}

	var other hql.SExp
	switch op {
	case "+", "*":
		if isVar(left, v) {
			other = right
		} else if isVar(right, v) {
			other = left
		} else {
			return nil, false
		}
	case "-", "/":
		if !isVar(left, v) {
			return nil, false
		}
		other = right
	default:
		return nil, false
	}
	if referencesAny(other, varSet) {
		return nil, false
	}
	if (op == "+" || op == "-") && isLiteralOne(other) {
		updateOp := "++"
		if op == "-" {
			updateOp = "--"
		}
		return &ir.ExpressionStatement{
			Base:       base,
			Expression: &ir.UpdateExpression{Base: base, Operator: updateOp, Argument: ident},
		}, true
	}
	value := l.expression(other)
	if value == nil {
		return nil, false
	}
	return &ir.ExpressionStatement{
		Base: base,
		Expression: &ir.AssignmentExpression{
			Base:     base,
			Operator: op + "=",
			Left:     ident,
			Right:    value,
		},
	}, true
}

func isVar(form hql.SExp, v string) bool {
	sym, ok := form.(*hql.Symbol)
	return ok && hql.SanitizeName(sym.Name) == v
}

func isLiteralOne(form hql.SExp) bool {
	lit, ok := form.(*hql.Literal)
	if !ok {
		return false
	}
	f, ok := lit.Value.(float64)
	return ok && f == 1
}

// referencesAny reports whether the form mentions any loop variable.
func referencesAny(form hql.SExp, varSet map[string]bool) bool {
	switch n := form.(type) {
	case *hql.Symbol:
		return varSet[hql.SanitizeName(n.Name)]
	case *hql.List:
		for _, el := range n.Elements {
			if referencesAny(el, varSet) {
				return true
			}
		}
	}
	return false
}

// lowerRecursiveLoop binds the loop body in a uniquely named function inside
// an IIFE; recur compiles to a direct tail call to that function. Recursion
// depth on this path is bounded by the host call stack, so the native path
// is preferred whenever the shape allows.
func (l *lowering) lowerRecursiveLoop(n *hql.List, vars []string, params []ir.Pattern, inits []ir.Expression, bodyForms []hql.SExp) ir.Expression {
	fnName := l.fresh("loop_step")
	pop := l.push(ctxEntry{kind: ctxLoop, frame: &loopFrame{vars: vars, fnName: fnName}})
	defer pop()

	base := l.base(n)
	body := l.body(bodyForms, true)
	if body == nil {
		return nil
	}
	stepParams := make([]ir.Pattern, len(params))
	copy(stepParams, params)
	step := &ir.FunctionDeclaration{
		Base:   base,
		ID:     &ir.Identifier{Base: base, Name: fnName},
		Params: stepParams,
		Body:   &ir.BlockStatement{Base: base, Body: body},
	}
	step.Async = ir.ContainsAwait(step)
	step.Generator = ir.ContainsYield(step)

	args := make([]ir.Expression, 0, len(vars))
	for _, v := range vars {
		args = append(args, &ir.Identifier{Base: base, Name: v})
	}
	var call ir.Expression = &ir.CallExpression{
		Base:      base,
		Callee:    &ir.Identifier{Base: base, Name: fnName},
		Arguments: args,
	}
	// Propagate async/generator through the wrapper so the outer IIFE picks
	// it up and its own invocation gets wrapped in turn.
	if step.Generator {
		call = &ir.YieldExpression{Base: base, Argument: call, Delegate: true}
	} else if step.Async {
		call = &ir.AwaitExpression{Base: base, Argument: call}
	}
	statements := []ir.Statement{
		step,
		&ir.ReturnStatement{Base: base, Argument: call},
	}
	return l.iifeWith(n, params, inits, statements)
}

// lowerRecur handles recur reached through the generic expression path,
// which only happens in recursive-function mode.
func (l *lowering) lowerRecur(n *hql.List) ir.Expression {
	entry := l.innermostLoop()
	if entry == nil {
		l.report(n, exc.CodeRecurOutsideLoop, "recur outside a loop")
		return nil
	}
	frame := entry.frame
	if frame.fnName == "" {
		l.report(n, exc.CodeTransformFailed, "recur must be the tail of a loop branch")
		return nil
	}
	if len(n.Elements)-1 != len(frame.vars) {
		l.report(n, exc.CodeRecurArity, "recur expects %d arguments, got %d", len(frame.vars), len(n.Elements)-1)
		return nil
	}
	args := make([]ir.Expression, 0, len(n.Elements)-1)
	for _, f := range n.Elements[1:] {
		a := l.expression(f)
		if a == nil {
			return nil
		}
		args = append(args, a)
	}
	base := l.base(n)
	return &ir.CallExpression{
		Base:      base,
		Callee:    &ir.Identifier{Base: base, Name: frame.fnName},
		Arguments: args,
	}
}
