// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/ir"
)

func (l *lowering) labelParts(n *hql.List) (string, hql.SExp, bool) {
	if len(n.Elements) != 3 {
		l.report(n, exc.CodeInvalidArity, "label expects a name and a statement")
		return "", nil, false
	}
	sym, ok := n.Elements[1].(*hql.Symbol)
	if !ok {
		l.report(n.Elements[1], exc.CodeInvalidForm, "label name must be a symbol")
		return "", nil, false
	}
	return hql.SanitizeName(sym.Name), n.Elements[2], true
}

// lowerLabel lowers (label name stmt) in statement position. The label is
// open on the context stack while the statement lowers, so a for-of inside
// defers its own wrapping and break/continue resolve against it. When the
// lowered statement carries a deferred construct and this label is the
// outermost label it targets, the wrapper goes here: the labeled statement
// plus a trailing return null in one IIFE, keeping every break inside the
// same function as the label it names. If any contained jump targets a label
// still open above this one, the wrapper is deferred upward again.
func (l *lowering) lowerLabel(n *hql.List) ir.Statement {
	name, stmtForm, ok := l.labelParts(n)
	if !ok {
		return nil
	}
	pop := l.push(ctxEntry{kind: ctxLabel, name: name})
	defer pop()
	stmt := l.statement(stmtForm)
	if stmt == nil {
		return nil
	}
	base := l.base(n)
	labeled := &ir.LabeledStatement{
		Base:  base,
		Label: &ir.Identifier{Base: l.base(n.Elements[1]), Name: name},
		Body:  stmt,
	}
	if l.defersUpward(name, stmt) {
		return labeled
	}
	for _, target := range deferredJumpTargets(stmt) {
		if target == name {
			return &ir.ExpressionStatement{
				Base: base,
				Expression: l.iife(n, []ir.Statement{
					labeled,
					&ir.ReturnStatement{Base: base, Argument: l.null(n)},
				}),
			}
		}
	}
	return labeled
}

// lowerLabelExpression lowers a label in expression position. The labeled
// statement plus a trailing return null go into one IIFE, so the whole
// construct evaluates to null and any break/continue naming this label
// stays inside the same function as the label itself. Labels targeted by
// deeper for-of bodies hold the only wrapper; the for-of defers to us. A
// label whose body jumps to an ancestor label defers in turn, flowing
// through expression position until the outermost target claims it.
func (l *lowering) lowerLabelExpression(n *hql.List) ir.Expression {
	name, stmtForm, ok := l.labelParts(n)
	if !ok {
		return nil
	}
	pop := l.push(ctxEntry{kind: ctxLabel, name: name})
	defer pop()
	stmt := l.statement(stmtForm)
	if stmt == nil {
		return nil
	}
	base := l.base(n)
	labeled := &ir.LabeledStatement{
		Base:  base,
		Label: &ir.Identifier{Base: l.base(n.Elements[1]), Name: name},
		Body:  stmt,
	}
	if l.defersUpward(name, stmt) {
		return labeled
	}
	return l.iife(n, []ir.Statement{
		labeled,
		&ir.ReturnStatement{Base: base, Argument: l.null(n)},
	})
}

// defersUpward reports whether any jump reachable in stmt targets a label
// open above the one just pushed, in which case that ancestor owns the one
// wrapper and this label must not add its own.
func (l *lowering) defersUpward(name string, stmt ir.Statement) bool {
	enclosing := l.stack[:len(l.stack)-1]
	for _, target := range jumpTargetsWithin(stmt) {
		if target == name {
			continue
		}
		for _, e := range enclosing {
			if e.kind == ctxLabel && e.name == target {
				return true
			}
		}
	}
	return false
}

// lowerBreak validates (break) or (break name) against the context stack.
func (l *lowering) lowerBreak(n *hql.List) ir.Statement {
	label, ok := l.jumpTarget(n, "break")
	if !ok {
		return nil
	}
	return &ir.BreakStatement{Base: l.base(n), Label: label}
}

func (l *lowering) lowerContinue(n *hql.List) ir.Statement {
	label, ok := l.jumpTarget(n, "continue")
	if !ok {
		return nil
	}
	return &ir.ContinueStatement{Base: l.base(n), Label: label}
}

func (l *lowering) jumpTarget(n *hql.List, kind string) (*ir.Identifier, bool) {
	switch len(n.Elements) {
	case 1:
		for i := len(l.stack) - 1; i >= 0; i-- {
			if l.stack[i].kind == ctxLoop || l.stack[i].kind == ctxForOf {
				return nil, true
			}
		}
		l.report(n, exc.CodeBreakOutsideLabel, "%s outside a loop", kind)
		return nil, false
	case 2:
		sym, ok := n.Elements[1].(*hql.Symbol)
		if !ok {
			l.report(n.Elements[1], exc.CodeInvalidForm, "%s target must be a label name", kind)
			return nil, false
		}
		name := hql.SanitizeName(sym.Name)
		if !l.labelOpen(name) {
			l.report(n, exc.CodeUnknownLabel, "no label named %s is open", name)
			return nil, false
		}
		return &ir.Identifier{Base: l.base(sym), Name: name}, true
	}
	l.report(n, exc.CodeInvalidArity, "%s takes at most one label", kind)
	return nil, false
}

func functionBoundary(n ir.Node) bool {
	switch n.(type) {
	case *ir.FunctionExpression, *ir.FunctionDeclaration, *ir.ArrowFunctionExpression:
		return true
	}
	return false
}

type jumpTargets struct {
	seen  map[string]bool
	names []string
}

func (j *jumpTargets) add(name string) {
	if name == "" || j.seen[name] {
		return
	}
	if j.seen == nil {
		j.seen = map[string]bool{}
	}
	j.seen[name] = true
	j.names = append(j.names, name)
}

// collect gathers every label targeted under n: for-of nodes record their
// open-label targets at lowering time, and labeled break/continue carry the
// name directly. Nested functions own their jumps and are not entered.
func (j *jumpTargets) collect(n ir.Node) {
	ir.Walk(n, func(c ir.Node) bool {
		if functionBoundary(c) {
			return false
		}
		switch v := c.(type) {
		case *ir.ForOfStatement:
			for _, t := range v.LabelTargets {
				j.add(t)
			}
		case *ir.BreakStatement:
			if v.Label != nil {
				j.add(v.Label.Name)
			}
		case *ir.ContinueStatement:
			if v.Label != nil {
				j.add(v.Label.Name)
			}
		}
		return true
	})
}

// jumpTargetsWithin lists every label targeted anywhere in stmt, regardless
// of whether the jumping construct needed to defer its wrapping.
func jumpTargetsWithin(stmt ir.Statement) []string {
	j := &jumpTargets{}
	j.collect(stmt)
	return j.names
}

// deferredJumpTargets lists the labels targeted by statement-shaped nodes
// flowing through expression position in stmt: a for-of or labeled statement
// found in an expression slot skipped its own IIFE expecting an enclosing
// label to wrap. A for-of in plain statement position needs no wrapper, so
// its targets do not count here.
func deferredJumpTargets(stmt ir.Statement) []string {
	j := &jumpTargets{}
	var walk func(s ir.Statement)
	expr := func(e ir.Expression) {
		if e != nil {
			j.collect(e)
		}
	}
	walk = func(s ir.Statement) {
		switch v := s.(type) {
		case *ir.BlockStatement:
			if v == nil {
				return
			}
			for _, b := range v.Body {
				walk(b)
			}
		case *ir.ExpressionStatement:
			expr(v.Expression)
		case *ir.VariableDeclaration:
			for _, d := range v.Declarations {
				expr(d.Init)
			}
		case *ir.ReturnStatement:
			expr(v.Argument)
		case *ir.ThrowStatement:
			expr(v.Argument)
		case *ir.IfStatement:
			expr(v.Test)
			if v.Consequent != nil {
				walk(v.Consequent)
			}
			if v.Alternate != nil {
				walk(v.Alternate)
			}
		case *ir.WhileStatement:
			expr(v.Test)
			if v.Body != nil {
				walk(v.Body)
			}
		case *ir.DoWhileStatement:
			expr(v.Test)
			if v.Body != nil {
				walk(v.Body)
			}
		case *ir.ForOfStatement:
			expr(v.Right)
			if v.Body != nil {
				walk(v.Body)
			}
		case *ir.ForInStatement:
			expr(v.Right)
			if v.Body != nil {
				walk(v.Body)
			}
		case *ir.LabeledStatement:
			if v.Body != nil {
				walk(v.Body)
			}
		case *ir.TryStatement:
			walk(v.Block)
			if v.Handler != nil {
				walk(v.Handler.Body)
			}
			if v.Finalizer != nil {
				walk(v.Finalizer)
			}
		case *ir.SwitchStatement:
			expr(v.Discriminant)
			for _, c := range v.Cases {
				expr(c.Test)
				for _, b := range c.Consequent {
					walk(b)
				}
			}
		}
	}
	walk(stmt)
	return j.names
}
