// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/ir"
)

// patternToIR converts a destructuring Pattern into the IR binding form.
// PatternSkip converts to a nil element (an array-pattern hole).
func (l *lowering) patternToIR(form hql.SExp, p Pattern) ir.Pattern {
	base := l.base(form)
	switch n := p.(type) {
	case *PatternIdentifier:
		name, annotation := hql.SplitTypeAnnotation(n.Name)
		var out ir.Pattern = &ir.Identifier{Base: base, Name: hql.SanitizeName(name), TypeAnnotation: annotation}
		if n.Default != nil {
			right := l.expression(n.Default)
			if right == nil {
				return nil
			}
			out = &ir.AssignmentPattern{Base: base, Left: out, Right: right}
		}
		return out
	case *PatternSkip:
		return nil
	case *PatternRest:
		inner := l.patternToIR(form, n.Argument)
		if inner == nil {
			return nil
		}
		return &ir.RestElement{Base: base, Argument: inner}
	case *PatternArray:
		out := &ir.ArrayPattern{Base: base}
		for _, el := range n.Elements {
			if _, skip := el.(*PatternSkip); skip {
				out.Elements = append(out.Elements, nil)
				continue
			}
			sub := l.patternToIR(form, el)
			if sub == nil {
				return nil
			}
			out.Elements = append(out.Elements, sub)
		}
		if n.Default != nil {
			right := l.expression(n.Default)
			if right == nil {
				return nil
			}
			return &ir.AssignmentPattern{Base: base, Left: out, Right: right}
		}
		return out
	case *PatternObject:
		out := &ir.ObjectPattern{Base: base}
		for _, prop := range n.Properties {
			value := l.patternToIR(form, prop.Value)
			if value == nil {
				return nil
			}
			out.Properties = append(out.Properties, &ir.PropertyPattern{
				Base:  base,
				Key:   prop.Key,
				Value: value,
			})
		}
		if n.Rest != nil {
			arg := l.patternToIR(form, n.Rest)
			if arg == nil {
				return nil
			}
			out.Rest = &ir.RestElement{Base: base, Argument: arg}
		}
		if n.Default != nil {
			right := l.expression(n.Default)
			if right == nil {
				return nil
			}
			return &ir.AssignmentPattern{Base: base, Left: out, Right: right}
		}
		return out
	default:
		l.report(form, exc.CodeInvalidPattern, "cannot lower pattern %T", p)
		return nil
	}
}

// bindingTarget parses and converts a binding form in one step.
func (l *lowering) bindingTarget(form hql.SExp) ir.Pattern {
	if !CouldBePattern(form) {
		l.report(form, exc.CodeInvalidBinding, "%s is not a valid binding target", hql.Sprint(form))
		return nil
	}
	p, err := ParsePattern(l.uri, form)
	if err != nil {
		_ = l.reporter.Report(exc.Wrap(exc.Location{URI: l.uri}, exc.CodeInvalidBinding, err))
		return nil
	}
	return l.patternToIR(form, p)
}

// lowerDef lowers (def name value) to a const declaration. The target may be
// a destructuring pattern.
func (l *lowering) lowerDef(n *hql.List) ir.Statement {
	if len(n.Elements) != 3 {
		l.report(n, exc.CodeInvalidArity, "def expects a name and a value, got %d forms", len(n.Elements)-1)
		return nil
	}
	target := l.bindingTarget(n.Elements[1])
	if target == nil {
		return nil
	}
	init := l.expression(n.Elements[2])
	if init == nil {
		return nil
	}
	return &ir.VariableDeclaration{
		Base: l.base(n),
		Kind: ir.DeclKindConst,
		Declarations: []*ir.VariableDeclarator{
			{Base: l.base(n), ID: target, Init: init},
		},
	}
}

// lowerVar lowers (var name value?) to a let declaration. var is the only
// form that permits an uninitialized binding.
func (l *lowering) lowerVar(n *hql.List) ir.Statement {
	if len(n.Elements) < 2 || len(n.Elements) > 3 {
		l.report(n, exc.CodeInvalidArity, "var expects a name and an optional value, got %d forms", len(n.Elements)-1)
		return nil
	}
	target := l.bindingTarget(n.Elements[1])
	if target == nil {
		return nil
	}
	declarator := &ir.VariableDeclarator{Base: l.base(n), ID: target}
	if len(n.Elements) == 3 {
		declarator.Init = l.expression(n.Elements[2])
		if declarator.Init == nil {
			return nil
		}
	}
	return &ir.VariableDeclaration{
		Base:         l.base(n),
		Kind:         ir.DeclKindLet,
		Declarations: []*ir.VariableDeclarator{declarator},
	}
}

// lowerLet lowers (let [p1 v1 ...] body...) into an IIFE holding const
// declarations, so the whole form is usable as an expression.
func (l *lowering) lowerLet(n *hql.List) ir.Expression {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "let expects a binding vector")
		return nil
	}
	bindings, ok := vectorElements(n.Elements[1])
	if !ok {
		l.report(n.Elements[1], exc.CodeInvalidBinding, "let bindings must be a vector")
		return nil
	}
	if len(bindings)%2 != 0 {
		l.report(n.Elements[1], exc.CodeInvalidBinding, "let bindings must pair targets with values")
		return nil
	}
	statements := []ir.Statement{}
	for i := 0; i < len(bindings); i += 2 {
		target := l.bindingTarget(bindings[i])
		if target == nil {
			return nil
		}
		init := l.expression(bindings[i+1])
		if init == nil {
			return nil
		}
		statements = append(statements, &ir.VariableDeclaration{
			Base: l.base(bindings[i]),
			Kind: ir.DeclKindConst,
			Declarations: []*ir.VariableDeclarator{
				{Base: l.base(bindings[i]), ID: target, Init: init},
			},
		})
	}
	body := l.body(n.Elements[2:], true)
	if body == nil {
		return nil
	}
	return l.iife(n, append(statements, body...))
}

// vectorElements unwraps the (vector ...) and (empty-array) forms.
func vectorElements(form hql.SExp) ([]hql.SExp, bool) {
	list, ok := form.(*hql.List)
	if !ok {
		return nil, false
	}
	switch list.Head() {
	case "vector":
		return list.Elements[1:], true
	case "empty-array":
		return nil, true
	}
	return nil, false
}

// params converts a parameter vector into IR patterns, consuming "&" rest
// markers through the pattern grammar.
func (l *lowering) params(form hql.SExp) ([]ir.Pattern, bool) {
	if !CouldBePattern(form) {
		l.report(form, exc.CodeInvalidBinding, "parameters must be a vector")
		return nil, false
	}
	parsed, err := ParsePattern(l.uri, form)
	if err != nil {
		_ = l.reporter.Report(exc.Wrap(exc.Location{URI: l.uri}, exc.CodeInvalidBinding, err))
		return nil, false
	}
	array, ok := parsed.(*PatternArray)
	if !ok {
		l.report(form, exc.CodeInvalidBinding, "parameters must be a vector")
		return nil, false
	}
	out := make([]ir.Pattern, 0, len(array.Elements))
	for _, el := range array.Elements {
		p := l.patternToIR(form, el)
		if p == nil {
			if _, skip := el.(*PatternSkip); skip {
				// A skipped parameter still occupies a position.
				p = &ir.Identifier{Base: l.base(form), Name: l.fresh("unused")}
			} else {
				return nil, false
			}
		}
		out = append(out, p)
	}
	return out, true
}

// lowerFn lowers (fn name? [params] body...) to a function expression.
func (l *lowering) lowerFn(n *hql.List) ir.Expression {
	i := 1
	var id *ir.Identifier
	returnType := ""
	if i < len(n.Elements) {
		if sym, ok := n.Elements[i].(*hql.Symbol); ok {
			name, annotation := hql.SplitTypeAnnotation(sym.Name)
			id = &ir.Identifier{Base: l.base(sym), Name: hql.SanitizeName(name)}
			returnType = annotation
			i++
		}
	}
	if i >= len(n.Elements) {
		l.report(n, exc.CodeInvalidArity, "fn expects a parameter vector")
		return nil
	}
	params, ok := l.params(n.Elements[i])
	if !ok {
		return nil
	}
	body := l.body(n.Elements[i+1:], true)
	if body == nil {
		return nil
	}
	fn := &ir.FunctionExpression{
		Base:       l.base(n),
		ID:         id,
		Params:     params,
		Body:       &ir.BlockStatement{Base: l.base(n), Body: body},
		ReturnType: returnType,
	}
	fn.Async = ir.ContainsAwait(fn)
	fn.Generator = ir.ContainsYield(fn)
	return fn
}

// lowerDefn lowers (defn name [params] body...) to a function declaration.
func (l *lowering) lowerDefn(n *hql.List) ir.Statement {
	if len(n.Elements) < 3 {
		l.report(n, exc.CodeInvalidArity, "defn expects a name and a parameter vector")
		return nil
	}
	sym, ok := n.Elements[1].(*hql.Symbol)
	if !ok {
		l.report(n.Elements[1], exc.CodeInvalidForm, "defn name must be a symbol, got %s", hql.Sprint(n.Elements[1]))
		return nil
	}
	name, returnType := hql.SplitTypeAnnotation(sym.Name)
	params, ok := l.params(n.Elements[2])
	if !ok {
		return nil
	}
	body := l.body(n.Elements[3:], true)
	if body == nil {
		return nil
	}
	fn := &ir.FunctionDeclaration{
		Base:       l.base(n),
		ID:         &ir.Identifier{Base: l.base(sym), Name: hql.SanitizeName(name)},
		Params:     params,
		Body:       &ir.BlockStatement{Base: l.base(n), Body: body},
		ReturnType: returnType,
	}
	fn.Async = ir.ContainsAwait(fn)
	fn.Generator = ir.ContainsYield(fn)
	return fn
}
