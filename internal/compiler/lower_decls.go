// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/ir"
)

// lowerImport lowers the import shapes the parser validated:
//
//	(import "path")            side-effecting import
//	(import name from "path")  default import
//	(import [a b] from "path") named imports
//
// Named imports also register against the macro registry so system macros
// referenced by name resolve across files.
func (l *lowering) lowerImport(n *hql.List) ir.Statement {
	base := l.base(n)
	if len(n.Elements) == 2 {
		source := l.importSource(n.Elements[1])
		if source == nil {
			return nil
		}
		return &ir.ImportDeclaration{Base: base, Source: source}
	}
	source := l.importSource(n.Elements[3])
	if source == nil {
		return nil
	}
	decl := &ir.ImportDeclaration{Base: base, Source: source}
	switch target := n.Elements[1].(type) {
	case *hql.Symbol:
		name := hql.SanitizeName(target.Name)
		decl.Specifiers = []ir.Node{
			&ir.ImportDefaultSpecifier{
				Base:  l.base(target),
				Local: &ir.Identifier{Base: l.base(target), Name: name},
			},
		}
	case *hql.List:
		for _, el := range target.Elements[1:] {
			sym, ok := el.(*hql.Symbol)
			if !ok {
				l.report(el, exc.CodeMalformedImport, "import name must be a symbol, got %s", hql.Sprint(el))
				return nil
			}
			name := hql.SanitizeName(sym.Name)
			ident := &ir.Identifier{Base: l.base(sym), Name: name}
			decl.Specifiers = append(decl.Specifiers, &ir.ImportSpecifier{
				Base:     l.base(sym),
				Imported: ident,
				Local:    ident,
			})
			if l.registry != nil {
				l.registry.ImportMacro(source.Value, sym.Name, l.uri, "")
			}
		}
	}
	return decl
}

func (l *lowering) importSource(form hql.SExp) *ir.StringLiteral {
	lit, ok := form.(*hql.Literal)
	if !ok {
		l.report(form, exc.CodeMalformedImport, "import path must be a string")
		return nil
	}
	path, ok := lit.Value.(string)
	if !ok {
		l.report(form, exc.CodeMalformedImport, "import path must be a string")
		return nil
	}
	return &ir.StringLiteral{Base: l.base(form), Value: path}
}

// lowerExport lowers (export decl) around a declaring form, or
// (export [a b]) and (export [a b] from "path") as specifier lists.
func (l *lowering) lowerExport(n *hql.List) ir.Statement {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "export expects a declaration or a name vector")
		return nil
	}
	base := l.base(n)
	if names, ok := vectorElements(n.Elements[1]); ok {
		decl := &ir.ExportNamedDeclaration{Base: base}
		for _, el := range names {
			sym, ok := el.(*hql.Symbol)
			if !ok {
				l.report(el, exc.CodeInvalidForm, "export name must be a symbol, got %s", hql.Sprint(el))
				return nil
			}
			ident := &ir.Identifier{Base: l.base(sym), Name: hql.SanitizeName(sym.Name)}
			decl.Specifiers = append(decl.Specifiers, &ir.ExportSpecifier{
				Base:     l.base(sym),
				Local:    ident,
				Exported: ident,
			})
		}
		if len(n.Elements) == 4 {
			from, ok := n.Elements[2].(*hql.Symbol)
			if !ok || from.Name != "from" {
				l.report(n.Elements[2], exc.CodeInvalidForm, "expected \"from\" in export")
				return nil
			}
			decl.Source = l.importSource(n.Elements[3])
			if decl.Source == nil {
				return nil
			}
		} else if len(n.Elements) != 2 {
			l.report(n, exc.CodeInvalidArity, "export expects [names] or [names] from \"path\"")
			return nil
		}
		return decl
	}
	if len(n.Elements) != 2 {
		l.report(n, exc.CodeInvalidArity, "export wraps a single declaration")
		return nil
	}
	inner := l.statement(n.Elements[1])
	if inner == nil {
		return nil
	}
	switch inner.(type) {
	case *ir.VariableDeclaration, *ir.FunctionDeclaration, *ir.ClassDeclaration,
		*ir.TSInterfaceDeclaration, *ir.TSTypeAliasDeclaration, *ir.TSEnumDeclaration,
		*ir.TSModuleDeclaration:
		return &ir.ExportNamedDeclaration{Base: base, Declaration: inner}
	}
	l.report(n.Elements[1], exc.CodeInvalidForm, "export requires a declaring form")
	return nil
}

func (l *lowering) lowerExportDefault(n *hql.List) ir.Statement {
	if len(n.Elements) != 2 {
		l.report(n, exc.CodeInvalidArity, "export-default expects one form")
		return nil
	}
	if list, ok := n.Elements[1].(*hql.List); ok {
		switch list.Head() {
		case "defn", "defclass":
			inner := l.statement(list)
			if inner == nil {
				return nil
			}
			return &ir.ExportDefaultDeclaration{Base: l.base(n), Declaration: inner}
		}
	}
	e := l.expression(n.Elements[1])
	if e == nil {
		return nil
	}
	return &ir.ExportDefaultDeclaration{Base: l.base(n), Declaration: e}
}

// lowerInterface lowers (definterface Name (extends A B)? [member: Type ...]).
// Member vectors pair annotated names; a name ending in ? marks the member
// optional.
func (l *lowering) lowerInterface(n *hql.List) ir.Statement {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "definterface expects a name")
		return nil
	}
	name, ok := l.declName(n.Elements[1], "definterface")
	if !ok {
		return nil
	}
	decl := &ir.TSInterfaceDeclaration{Base: l.base(n), ID: name}
	rest := n.Elements[2:]
	if len(rest) > 0 {
		if ext, ok := rest[0].(*hql.List); ok && ext.Head() == "extends" {
			for _, el := range ext.Elements[1:] {
				sym, ok := el.(*hql.Symbol)
				if !ok {
					l.report(el, exc.CodeInvalidForm, "extends expects interface names")
					return nil
				}
				decl.Extends = append(decl.Extends, sym.Name)
			}
			rest = rest[1:]
		}
	}
	for _, memberForm := range rest {
		members, ok := vectorElements(memberForm)
		if !ok {
			l.report(memberForm, exc.CodeInvalidForm, "definterface members must be a vector")
			return nil
		}
		for _, el := range members {
			sym, ok := el.(*hql.Symbol)
			if !ok {
				l.report(el, exc.CodeInvalidForm, "interface member must be an annotated name")
				return nil
			}
			memberName, memberType := hql.SplitTypeAnnotation(sym.Name)
			optional := false
			if len(memberName) > 0 && memberName[len(memberName)-1] == '?' {
				optional = true
				memberName = memberName[:len(memberName)-1]
			}
			decl.Members = append(decl.Members, &ir.TSSignature{
				Base:     l.base(sym),
				Name:     memberName,
				Type:     memberType,
				Optional: optional,
			})
		}
	}
	return decl
}

// lowerTypeAlias lowers (deftype Name "type text").
func (l *lowering) lowerTypeAlias(n *hql.List) ir.Statement {
	if len(n.Elements) != 3 {
		l.report(n, exc.CodeInvalidArity, "deftype expects a name and a type")
		return nil
	}
	name, ok := l.declName(n.Elements[1], "deftype")
	if !ok {
		return nil
	}
	var text string
	switch t := n.Elements[2].(type) {
	case *hql.Literal:
		s, ok := t.Value.(string)
		if !ok {
			l.report(t, exc.CodeInvalidForm, "deftype body must be a type string or symbol")
			return nil
		}
		text = s
	case *hql.Symbol:
		text = t.Name
	default:
		l.report(n.Elements[2], exc.CodeInvalidForm, "deftype body must be a type string or symbol")
		return nil
	}
	return &ir.TSTypeAliasDeclaration{Base: l.base(n), ID: name, Type: text}
}

// lowerEnum lowers (defenum Name member (member value)? ...).
func (l *lowering) lowerEnum(n *hql.List) ir.Statement {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "defenum expects a name")
		return nil
	}
	name, ok := l.declName(n.Elements[1], "defenum")
	if !ok {
		return nil
	}
	decl := &ir.TSEnumDeclaration{Base: l.base(n), ID: name}
	for _, el := range n.Elements[2:] {
		switch m := el.(type) {
		case *hql.Symbol:
			decl.Members = append(decl.Members, &ir.TSEnumMember{Base: l.base(m), Name: m.Name})
		case *hql.List:
			if len(m.Elements) != 2 {
				l.report(m, exc.CodeInvalidForm, "enum member pair must be (name value)")
				return nil
			}
			sym, ok := m.Elements[0].(*hql.Symbol)
			if !ok {
				l.report(m.Elements[0], exc.CodeInvalidForm, "enum member name must be a symbol")
				return nil
			}
			init := l.expression(m.Elements[1])
			if init == nil {
				return nil
			}
			decl.Members = append(decl.Members, &ir.TSEnumMember{Base: l.base(m), Name: sym.Name, Init: init})
		default:
			l.report(el, exc.CodeInvalidForm, "enum member must be a name or (name value)")
			return nil
		}
	}
	return decl
}

// lowerNamespace lowers (defnamespace Name body...).
func (l *lowering) lowerNamespace(n *hql.List) ir.Statement {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "defnamespace expects a name")
		return nil
	}
	name, ok := l.declName(n.Elements[1], "defnamespace")
	if !ok {
		return nil
	}
	body := l.statements(n.Elements[2:])
	if body == nil {
		return nil
	}
	return &ir.TSModuleDeclaration{Base: l.base(n), ID: name, Body: body}
}

// lowerClass lowers (defclass Name (extends Super)? methods...), where each
// method is (name [params] body...), with constructor, static, get and set
// recognized by their leading markers:
//
//	(constructor [params] body...)
//	(static name [params] body...)
//	(get name [] body...)
//	(set name [v] body...)
func (l *lowering) lowerClass(n *hql.List) ir.Statement {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "defclass expects a name")
		return nil
	}
	name, ok := l.declName(n.Elements[1], "defclass")
	if !ok {
		return nil
	}
	decl := &ir.ClassDeclaration{
		Base: l.base(n),
		ID:   name,
		Body: &ir.ClassBody{Base: l.base(n)},
	}
	rest := n.Elements[2:]
	if len(rest) > 0 {
		if ext, ok := rest[0].(*hql.List); ok && ext.Head() == "extends" {
			if len(ext.Elements) != 2 {
				l.report(ext, exc.CodeInvalidArity, "extends expects one superclass")
				return nil
			}
			super := l.expression(ext.Elements[1])
			if super == nil {
				return nil
			}
			decl.SuperClass = super
			rest = rest[1:]
		}
	}
	for _, methodForm := range rest {
		method := l.classMethod(methodForm)
		if method == nil {
			return nil
		}
		decl.Body.Body = append(decl.Body.Body, method)
	}
	return decl
}

func (l *lowering) classMethod(form hql.SExp) *ir.MethodDefinition {
	list, ok := form.(*hql.List)
	if !ok || len(list.Elements) < 2 {
		l.report(form, exc.CodeInvalidForm, "class member must be a method form")
		return nil
	}
	kind := "method"
	static := false
	elements := list.Elements
	head, _ := elements[0].(*hql.Symbol)
	if head == nil {
		l.report(elements[0], exc.CodeInvalidForm, "method name must be a symbol")
		return nil
	}
	switch head.Name {
	case "constructor":
		kind = "constructor"
	case "static":
		static = true
		elements = elements[1:]
	case "get", "set":
		kind = head.Name
		elements = elements[1:]
	}
	if kind != "constructor" {
		if len(elements) < 2 {
			l.report(list, exc.CodeInvalidArity, "method expects a name and parameter vector")
			return nil
		}
		head, ok = elements[0].(*hql.Symbol)
		if !ok {
			l.report(elements[0], exc.CodeInvalidForm, "method name must be a symbol")
			return nil
		}
	}
	params, ok := l.params(elements[1])
	if !ok {
		return nil
	}
	body := l.body(elements[2:], kind != "constructor" && kind != "set")
	if body == nil {
		return nil
	}
	base := l.base(list)
	fn := &ir.FunctionExpression{
		Base:   base,
		Params: params,
		Body:   &ir.BlockStatement{Base: base, Body: body},
	}
	fn.Async = ir.ContainsAwait(fn)
	fn.Generator = ir.ContainsYield(fn)
	methodName, annotation := hql.SplitTypeAnnotation(head.Name)
	fn.ReturnType = annotation
	return &ir.MethodDefinition{
		Base:   base,
		Key:    &ir.StringLiteral{Base: l.base(head), Value: hql.SanitizeName(methodName)},
		Value:  fn,
		Kind:   kind,
		Static: static,
	}
}

func (l *lowering) declName(form hql.SExp, kind string) (*ir.Identifier, bool) {
	sym, ok := form.(*hql.Symbol)
	if !ok {
		l.report(form, exc.CodeInvalidForm, "%s name must be a symbol, got %s", kind, hql.Sprint(form))
		return nil, false
	}
	return &ir.Identifier{Base: l.base(sym), Name: hql.SanitizeName(sym.Name)}, true
}
