// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/ir"
)

// forOf lowers the shared core of (for-of [binding iterable] body...) and
// its for-await variant. The binding lowers to a const declaration so each
// iteration gets a fresh binding, and any break/continue in the body that
// names a label currently open on the context stack is recorded on the node
// for the owning label to claim.
func (l *lowering) forOf(n *hql.List) *ir.ForOfStatement {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "%s expects a binding vector", n.Head())
		return nil
	}
	binding, ok := vectorElements(n.Elements[1])
	if !ok || len(binding) != 2 {
		l.report(n.Elements[1], exc.CodeInvalidBinding, "%s binding must be [target iterable]", n.Head())
		return nil
	}
	target := l.bindingTarget(binding[0])
	if target == nil {
		return nil
	}
	right := l.expression(binding[1])
	if right == nil {
		return nil
	}
	targets := l.openLabelTargets(n.Elements[2:])

	pop := l.push(ctxEntry{kind: ctxForOf})
	defer pop()
	body := l.statements(n.Elements[2:])
	if body == nil && len(n.Elements) > 2 {
		return nil
	}
	base := l.base(n)
	return &ir.ForOfStatement{
		Base: base,
		Left: &ir.VariableDeclaration{
			Base: base,
			Kind: ir.DeclKindConst,
			Declarations: []*ir.VariableDeclarator{
				{Base: base, ID: target},
			},
		},
		Right:        right,
		Body:         &ir.BlockStatement{Base: base, Body: body},
		Await:        n.Head() == "for-await",
		LabelTargets: targets,
	}
}

func (l *lowering) lowerForOfStatement(n *hql.List) ir.Statement {
	s := l.forOf(n)
	if s == nil {
		return nil
	}
	return s
}

// lowerForOfExpression makes for-of usable as an expression that evaluates
// to null, by wrapping the native statement in an IIFE. Two cases skip the
// wrapper: a body containing return (so the return escapes to the enclosing
// function), and a body whose break/continue targets an ancestor label (the
// owning label wraps instead, keeping the branch inside one function).
func (l *lowering) lowerForOfExpression(n *hql.List) ir.Expression {
	s := l.forOf(n)
	if s == nil {
		return nil
	}
	if len(s.LabelTargets) > 0 || containsReturnForm(n.Elements[2:]) {
		return s
	}
	return l.iife(n, []ir.Statement{s, &ir.ReturnStatement{Base: l.base(n), Argument: l.null(n)}})
}

// openLabelTargets collects label names referenced by break/continue in the
// body forms that are open on the context stack, without descending into
// nested functions.
func (l *lowering) openLabelTargets(forms []hql.SExp) []string {
	var targets []string
	seen := map[string]bool{}
	var scan func(form hql.SExp)
	scan = func(form hql.SExp) {
		list, ok := form.(*hql.List)
		if !ok {
			return
		}
		switch list.Head() {
		case "fn", "defn":
			return
		case "break", "continue":
			if len(list.Elements) == 2 {
				if sym, ok := list.Elements[1].(*hql.Symbol); ok {
					name := hql.SanitizeName(sym.Name)
					if l.labelOpen(name) && !seen[name] {
						seen[name] = true
						targets = append(targets, name)
					}
				}
			}
			return
		}
		for _, el := range list.Elements {
			scan(el)
		}
	}
	for _, f := range forms {
		scan(f)
	}
	return targets
}

// containsReturnForm reports a return in the forms, without descending into
// nested functions which own their own returns.
func containsReturnForm(forms []hql.SExp) bool {
	var scan func(form hql.SExp) bool
	scan = func(form hql.SExp) bool {
		list, ok := form.(*hql.List)
		if !ok {
			return false
		}
		switch list.Head() {
		case "fn", "defn":
			return false
		case "return":
			return true
		}
		for _, el := range list.Elements {
			if scan(el) {
				return true
			}
		}
		return false
	}
	for _, f := range forms {
		if scan(f) {
			return true
		}
	}
	return false
}

// lowerForIn lowers (for-in [key obj] body...) to a native for-in loop.
func (l *lowering) lowerForIn(n *hql.List) ir.Statement {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "for-in expects a binding vector")
		return nil
	}
	binding, ok := vectorElements(n.Elements[1])
	if !ok || len(binding) != 2 {
		l.report(n.Elements[1], exc.CodeInvalidBinding, "for-in binding must be [key object]")
		return nil
	}
	sym, ok := binding[0].(*hql.Symbol)
	if !ok {
		l.report(binding[0], exc.CodeInvalidBinding, "for-in key must be a symbol")
		return nil
	}
	right := l.expression(binding[1])
	if right == nil {
		return nil
	}
	pop := l.push(ctxEntry{kind: ctxForOf})
	defer pop()
	body := l.statements(n.Elements[2:])
	if body == nil && len(n.Elements) > 2 {
		return nil
	}
	base := l.base(n)
	return &ir.ForInStatement{
		Base: base,
		Left: &ir.VariableDeclaration{
			Base: base,
			Kind: ir.DeclKindConst,
			Declarations: []*ir.VariableDeclarator{
				{Base: base, ID: &ir.Identifier{Base: l.base(sym), Name: hql.SanitizeName(sym.Name)}},
			},
		},
		Right: right,
		Body:  &ir.BlockStatement{Base: base, Body: body},
	}
}
