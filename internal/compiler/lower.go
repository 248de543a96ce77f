// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"fmt"
	"strings"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/ir"
	"github.com/hlvm-dev/hqlc/internal/macro"
)

type ctxKind uint8

const (
	ctxLoop ctxKind = iota
	ctxForOf
	ctxLabel
)

// ctxEntry is one open loop/for-of/label form. The stack is an explicit
// field of the lowering state so lowering stays reentrant across concurrent
// compilations.
type ctxEntry struct {
	kind  ctxKind
	name  string
	frame *loopFrame
}

// lowering holds the per-unit state of the IR lowering engine. A new value
// is created for every compiled file; nothing here is shared.
type lowering struct {
	reporter exc.Reporter
	uri      string
	registry *macro.Registry
	stack    []ctxEntry
	counter  int
}

func newLowering(reporter exc.Reporter, uri string, registry *macro.Registry) *lowering {
	return &lowering{
		reporter: reporter,
		uri:      uri,
		registry: registry,
	}
}

func (l *lowering) report(form hql.SExp, code string, format string, args ...any) {
	loc := hql.Location{}
	if form != nil && form.Pos() != nil {
		loc = *form.Pos()
	}
	_ = l.reporter.Report(exc.New(exc.Location{URI: l.uri, Location: loc}, code, fmt.Sprintf(format, args...)))
}

// push opens a context entry and returns the paired pop. Callers defer the
// pop so every exit path unwinds the stack.
func (l *lowering) push(e ctxEntry) func() {
	l.stack = append(l.stack, e)
	return func() {
		l.stack = l.stack[:len(l.stack)-1]
	}
}

func (l *lowering) labelOpen(name string) bool {
	for _, e := range l.stack {
		if e.kind == ctxLabel && e.name == name {
			return true
		}
	}
	return false
}

func (l *lowering) innermostLoop() *ctxEntry {
	for i := len(l.stack) - 1; i >= 0; i-- {
		if l.stack[i].kind == ctxLoop {
			return &l.stack[i]
		}
	}
	return nil
}

func (l *lowering) fresh(prefix string) string {
	l.counter++
	return fmt.Sprintf("%s_%d", prefix, l.counter)
}

// LowerProgram lowers every top-level form. Returns nil after the first
// reported error.
func (l *lowering) LowerProgram(forms []hql.SExp) *ir.Program {
	program := &ir.Program{}
	for _, form := range forms {
		s := l.statement(form)
		if s == nil {
			return nil
		}
		program.Body = append(program.Body, s)
	}
	return program
}

// statementHeads are forms that lower to statements or declarations and have
// no expression value.
var statementHeads = map[string]bool{
	"def": true, "defn": true, "var": true, "defmacro": true,
	"import": true, "export": true, "export-default": true,
	"definterface": true, "deftype": true, "defenum": true, "defnamespace": true,
	"defclass": true,
	"while":    true, "for-in": true,
	"throw": true, "return": true,
	"break": true, "continue": true,
	"label": true,
}

func (l *lowering) statement(form hql.SExp) ir.Statement {
	list, ok := form.(*hql.List)
	if !ok {
		e := l.expression(form)
		if e == nil {
			return nil
		}
		return &ir.ExpressionStatement{Base: l.base(form), Expression: e}
	}
	switch list.Head() {
	case "defmacro":
		// Macro definitions are compile-time only; a form surviving to
		// lowering (a file revisited via a second import edge) leaves no
		// runtime residue.
		return &ir.EmptyStatement{Base: l.base(form)}
	case "def":
		return l.lowerDef(list)
	case "defn":
		return l.lowerDefn(list)
	case "var":
		return l.lowerVar(list)
	case "import":
		return l.lowerImport(list)
	case "export":
		return l.lowerExport(list)
	case "export-default":
		return l.lowerExportDefault(list)
	case "definterface":
		return l.lowerInterface(list)
	case "deftype":
		return l.lowerTypeAlias(list)
	case "defenum":
		return l.lowerEnum(list)
	case "defnamespace":
		return l.lowerNamespace(list)
	case "defclass":
		return l.lowerClass(list)
	case "if":
		return l.lowerIfStatement(list)
	case "do":
		body := l.statements(list.Elements[1:])
		if body == nil {
			return nil
		}
		return &ir.BlockStatement{Base: l.base(form), Body: body}
	case "while":
		return l.lowerWhile(list)
	case "for-in":
		return l.lowerForIn(list)
	case "for-of", "for-await":
		return l.lowerForOfStatement(list)
	case "label":
		return l.lowerLabel(list)
	case "break":
		return l.lowerBreak(list)
	case "continue":
		return l.lowerContinue(list)
	case "throw":
		arg := l.expressionAt(list, 1, "throw")
		if arg == nil {
			return nil
		}
		return &ir.ThrowStatement{Base: l.base(form), Argument: arg}
	case "return":
		if len(list.Elements) == 1 {
			return &ir.ReturnStatement{Base: l.base(form)}
		}
		arg := l.expressionAt(list, 1, "return")
		if arg == nil {
			return nil
		}
		return &ir.ReturnStatement{Base: l.base(form), Argument: arg}
	}
	e := l.expression(form)
	if e == nil {
		return nil
	}
	return &ir.ExpressionStatement{Base: l.base(form), Expression: e}
}

func (l *lowering) statements(forms []hql.SExp) []ir.Statement {
	out := make([]ir.Statement, 0, len(forms))
	for _, f := range forms {
		s := l.statement(f)
		if s == nil {
			return nil
		}
		out = append(out, s)
	}
	return out
}

// body lowers a function or block body. When implicitReturn is set, the
// final expression-valued form becomes the return value.
func (l *lowering) body(forms []hql.SExp, implicitReturn bool) []ir.Statement {
	out := make([]ir.Statement, 0, len(forms))
	for i, f := range forms {
		last := i == len(forms)-1
		if last && implicitReturn && !isStatementForm(f) {
			e := l.expression(f)
			if e == nil {
				return nil
			}
			out = append(out, &ir.ReturnStatement{Base: l.base(f), Argument: e})
			continue
		}
		s := l.statement(f)
		if s == nil {
			return nil
		}
		out = append(out, s)
	}
	return out
}

func isStatementForm(form hql.SExp) bool {
	list, ok := form.(*hql.List)
	if !ok {
		return false
	}
	return statementHeads[list.Head()]
}

func (l *lowering) base(form hql.SExp) ir.Base {
	if form == nil {
		return ir.Base{}
	}
	return ir.Base{Loc: form.Pos()}
}

func (l *lowering) null(form hql.SExp) ir.Expression {
	return &ir.NullLiteral{Base: l.base(form)}
}

func (l *lowering) expressionAt(list *hql.List, i int, name string) ir.Expression {
	if i >= len(list.Elements) {
		l.report(list, exc.CodeInvalidArity, "%s expects at least %d forms, got %d", name, i, len(list.Elements)-1)
		return nil
	}
	return l.expression(list.Elements[i])
}

func (l *lowering) expression(form hql.SExp) ir.Expression {
	switch n := form.(type) {
	case *hql.Literal:
		return l.literal(n)
	case *hql.Symbol:
		return l.symbol(n)
	case *hql.List:
		return l.listExpression(n)
	default:
		l.report(form, exc.CodeInvalidForm, "cannot lower %T", form)
		return nil
	}
}

func (l *lowering) literal(n *hql.Literal) ir.Expression {
	base := l.base(n)
	switch v := n.Value.(type) {
	case nil:
		return &ir.NullLiteral{Base: base}
	case string:
		if n.BigInt {
			return &ir.BigIntLiteral{Base: base, Value: v}
		}
		return &ir.StringLiteral{Base: base, Value: v}
	case float64:
		return &ir.NumericLiteral{Base: base, Value: v}
	case bool:
		return &ir.BooleanLiteral{Base: base, Value: v}
	default:
		l.report(n, exc.CodeInvalidForm, "cannot lower literal %v", v)
		return nil
	}
}

func (l *lowering) symbol(n *hql.Symbol) ir.Expression {
	base := l.base(n)
	if n.Name == "this" {
		return &ir.ThisExpression{Base: base}
	}
	// Keyword-style symbols lower to strings.
	if strings.HasPrefix(n.Name, ":") {
		return &ir.StringLiteral{Base: base, Value: strings.TrimPrefix(n.Name, ":")}
	}
	if strings.HasPrefix(n.Name, "...") {
		return &ir.SpreadElement{Base: base, Argument: l.identifier(strings.TrimPrefix(n.Name, "..."), base)}
	}
	name, annotation := hql.SplitTypeAnnotation(n.Name)
	if strings.Contains(name, ".") {
		return l.memberChain(name, base)
	}
	return &ir.Identifier{Base: base, Name: hql.SanitizeName(name), TypeAnnotation: annotation}
}

func (l *lowering) identifier(name string, base ir.Base) ir.Expression {
	plain, annotation := hql.SplitTypeAnnotation(name)
	if strings.Contains(plain, ".") {
		return l.memberChain(plain, base)
	}
	return &ir.Identifier{Base: base, Name: hql.SanitizeName(plain), TypeAnnotation: annotation}
}

// memberChain lowers a dotted symbol such as console.log into nested member
// expressions.
func (l *lowering) memberChain(name string, base ir.Base) ir.Expression {
	parts := strings.Split(name, ".")
	var out ir.Expression = &ir.Identifier{Base: base, Name: hql.SanitizeName(parts[0])}
	for _, part := range parts[1:] {
		out = &ir.MemberExpression{
			Base:     base,
			Object:   out,
			Property: &ir.Identifier{Base: base, Name: hql.SanitizeName(part)},
		}
	}
	return out
}

var binaryOps = map[string]string{
	"+": "+", "-": "-", "*": "*", "/": "/", "%": "%", "**": "**",
	"<": "<", ">": ">", "<=": "<=", ">=": ">=",
	"=": "===", "==": "==", "===": "===", "not=": "!==", "!=": "!=", "!==": "!==",
	"bit-and": "&", "bit-or": "|", "bit-xor": "^",
	"<<": "<<", ">>": ">>", ">>>": ">>>",
	"instanceof": "instanceof", "in": "in",
}

var logicalOps = map[string]string{
	"and": "&&", "or": "||", "??": "??",
}

var assignOps = map[string]string{
	"set!": "=", "+=": "+=", "-=": "-=", "*=": "*=", "/=": "/=", "%=": "%=",
}

func (l *lowering) listExpression(n *hql.List) ir.Expression {
	if len(n.Elements) == 0 {
		return &ir.ArrayExpression{Base: l.base(n)}
	}
	head := n.Head()
	base := l.base(n)
	switch head {
	case "vector":
		return l.lowerVector(n)
	case "empty-array":
		return &ir.ArrayExpression{Base: base}
	case "hash-map":
		return l.lowerMap(n)
	case "hash-set":
		return l.lowerSet(n)
	case "template-literal":
		return l.lowerTemplate(n)
	case "spread":
		arg := l.expressionAt(n, 1, "spread")
		if arg == nil {
			return nil
		}
		return &ir.SpreadElement{Base: base, Argument: arg}
	case "if":
		return l.lowerIfExpression(n)
	case "do":
		body := l.body(n.Elements[1:], true)
		if body == nil {
			return nil
		}
		return l.iife(n, body)
	case "let":
		return l.lowerLet(n)
	case "fn":
		return l.lowerFn(n)
	case "loop":
		return l.lowerLoop(n)
	case "recur":
		return l.lowerRecur(n)
	case "for-of", "for-await":
		return l.lowerForOfExpression(n)
	case "label":
		return l.lowerLabelExpression(n)
	case "try":
		return l.lowerTry(n)
	case "await":
		arg := l.expressionAt(n, 1, "await")
		if arg == nil {
			return nil
		}
		return &ir.AwaitExpression{Base: base, Argument: arg}
	case "yield":
		if len(n.Elements) == 1 {
			return &ir.YieldExpression{Base: base}
		}
		arg := l.expressionAt(n, 1, "yield")
		if arg == nil {
			return nil
		}
		return &ir.YieldExpression{Base: base, Argument: arg}
	case "yield*":
		arg := l.expressionAt(n, 1, "yield*")
		if arg == nil {
			return nil
		}
		return &ir.YieldExpression{Base: base, Argument: arg, Delegate: true}
	case "new":
		return l.lowerNew(n)
	case "not":
		arg := l.expressionAt(n, 1, "not")
		if arg == nil {
			return nil
		}
		return &ir.UnaryExpression{Base: base, Operator: "!", Argument: arg}
	case "typeof", "delete", "void":
		arg := l.expressionAt(n, 1, head)
		if arg == nil {
			return nil
		}
		return &ir.UnaryExpression{Base: base, Operator: head, Argument: arg}
	case "~":
		arg := l.expressionAt(n, 1, "~")
		if arg == nil {
			return nil
		}
		return &ir.UnaryExpression{Base: base, Operator: "~", Argument: arg}
	case "++", "--":
		arg := l.expressionAt(n, 1, head)
		if arg == nil {
			return nil
		}
		return &ir.UpdateExpression{Base: base, Operator: head, Argument: arg, Prefix: true}
	case "quote":
		// Quoted forms survive to runtime as their printed representation.
		if len(n.Elements) != 2 {
			l.report(n, exc.CodeInvalidArity, "quote expects 1 form, got %d", len(n.Elements)-1)
			return nil
		}
		return &ir.StringLiteral{Base: base, Value: hql.Sprint(n.Elements[1])}
	case "regex":
		return l.lowerRegex(n)
	case "throw":
		// throw in expression position wraps in an IIFE.
		s := l.statement(n)
		if s == nil {
			return nil
		}
		return l.iife(n, []ir.Statement{s})
	}
	if op, ok := logicalOps[head]; ok {
		return l.lowerVariadic(n, func(left, right ir.Expression) ir.Expression {
			return &ir.LogicalExpression{Base: base, Operator: op, Left: left, Right: right}
		})
	}
	if op, ok := binaryOps[head]; ok {
		if head == "-" && len(n.Elements) == 2 {
			arg := l.expression(n.Elements[1])
			if arg == nil {
				return nil
			}
			return &ir.UnaryExpression{Base: base, Operator: "-", Argument: arg}
		}
		return l.lowerVariadic(n, func(left, right ir.Expression) ir.Expression {
			return &ir.BinaryExpression{Base: base, Operator: op, Left: left, Right: right}
		})
	}
	if op, ok := assignOps[head]; ok {
		return l.lowerAssignment(n, op)
	}
	if sym, ok := n.Elements[0].(*hql.Symbol); ok {
		if method, found := strings.CutPrefix(sym.Name, ".?"); found && method != "" {
			return l.lowerMethodCall(n, method, true, false)
		}
		if prop, found := strings.CutPrefix(sym.Name, ".-"); found && prop != "" {
			return l.lowerPropertyAccess(n, prop)
		}
		if sym.Name == "." {
			return l.lowerDotCall(n)
		}
		if method, found := strings.CutPrefix(sym.Name, "."); found && method != "" && method != ".." {
			return l.lowerMethodCall(n, method, false, false)
		}
		if l.registry != nil && l.registry.HasMacro(hql.SanitizeName(sym.Name)) {
			// Macro heads surviving to lowering mean expansion was skipped.
			l.report(n, exc.CodeTransformFailed, "unexpanded macro %q", sym.Name)
			return nil
		}
	}
	// Unknown heads fall back to a call expression.
	return l.lowerCall(n)
}

func (l *lowering) lowerVariadic(n *hql.List, combine func(left, right ir.Expression) ir.Expression) ir.Expression {
	if len(n.Elements) < 3 {
		l.report(n, exc.CodeInvalidArity, "%s expects at least 2 operands, got %d", n.Head(), len(n.Elements)-1)
		return nil
	}
	out := l.expression(n.Elements[1])
	if out == nil {
		return nil
	}
	for _, f := range n.Elements[2:] {
		right := l.expression(f)
		if right == nil {
			return nil
		}
		out = combine(out, right)
	}
	return out
}

func (l *lowering) lowerAssignment(n *hql.List, op string) ir.Expression {
	if len(n.Elements) != 3 {
		l.report(n, exc.CodeInvalidArity, "%s expects a target and a value", n.Head())
		return nil
	}
	target := l.expression(n.Elements[1])
	if target == nil {
		return nil
	}
	value := l.expression(n.Elements[2])
	if value == nil {
		return nil
	}
	return &ir.AssignmentExpression{Base: l.base(n), Operator: op, Left: target, Right: value}
}

func (l *lowering) lowerCall(n *hql.List) ir.Expression {
	callee := l.expression(n.Elements[0])
	if callee == nil {
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
	return &ir.CallExpression{Base: l.base(n), Callee: callee, Arguments: args}
}

func (l *lowering) lowerNew(n *hql.List) ir.Expression {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "new expects a constructor")
		return nil
	}
	callee := l.expression(n.Elements[1])
	if callee == nil {
		return nil
	}
	args := make([]ir.Expression, 0, len(n.Elements)-2)
	for _, f := range n.Elements[2:] {
		a := l.expression(f)
		if a == nil {
			return nil
		}
		args = append(args, a)
	}
	return &ir.NewExpression{Base: l.base(n), Callee: callee, Arguments: args}
}

// lowerMethodCall lowers (.name obj args...) and (.?name obj args...).
func (l *lowering) lowerMethodCall(n *hql.List, method string, optional bool, computed bool) ir.Expression {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "method call expects a receiver")
		return nil
	}
	object := l.expression(n.Elements[1])
	if object == nil {
		return nil
	}
	args := make([]ir.Expression, 0, len(n.Elements)-2)
	for _, f := range n.Elements[2:] {
		a := l.expression(f)
		if a == nil {
			return nil
		}
		args = append(args, a)
	}
	base := l.base(n)
	member := &ir.MemberExpression{
		Base:     base,
		Object:   object,
		Property: &ir.Identifier{Base: base, Name: hql.SanitizeName(method)},
		Computed: computed,
		Optional: optional,
	}
	return &ir.CallExpression{Base: base, Callee: member, Arguments: args, Optional: optional}
}

// lowerPropertyAccess lowers (.-name obj).
func (l *lowering) lowerPropertyAccess(n *hql.List, prop string) ir.Expression {
	if len(n.Elements) != 2 {
		l.report(n, exc.CodeInvalidArity, "property access expects exactly one receiver")
		return nil
	}
	object := l.expression(n.Elements[1])
	if object == nil {
		return nil
	}
	base := l.base(n)
	return &ir.MemberExpression{
		Base:     base,
		Object:   object,
		Property: &ir.Identifier{Base: base, Name: hql.SanitizeName(prop)},
	}
}

// lowerDotCall lowers (. obj method args...).
func (l *lowering) lowerDotCall(n *hql.List) ir.Expression {
	if len(n.Elements) < 3 {
		l.report(n, exc.CodeInvalidArity, "(.) expects a receiver and a method")
		return nil
	}
	method, ok := n.Elements[2].(*hql.Symbol)
	if !ok {
		l.report(n, exc.CodeInvalidForm, "(.) method must be a name, got %s", hql.Sprint(n.Elements[2]))
		return nil
	}
	rewritten := hql.NewList(n.Pos(), append([]hql.SExp{
		hql.NewSymbol("."+method.Name, method.Loc),
		n.Elements[1],
	}, n.Elements[3:]...)...)
	return l.listExpression(rewritten)
}

func (l *lowering) lowerVector(n *hql.List) ir.Expression {
	elements := make([]ir.Expression, 0, len(n.Elements)-1)
	for _, f := range n.Elements[1:] {
		e := l.expression(f)
		if e == nil {
			return nil
		}
		elements = append(elements, e)
	}
	return &ir.ArrayExpression{Base: l.base(n), Elements: elements}
}

func (l *lowering) lowerMap(n *hql.List) ir.Expression {
	base := l.base(n)
	props := []ir.Expression{}
	elements := n.Elements[1:]
	for i := 0; i < len(elements); i++ {
		if list, ok := elements[i].(*hql.List); ok && list.Head() == "spread" && len(list.Elements) == 2 {
			arg := l.expression(list.Elements[1])
			if arg == nil {
				return nil
			}
			props = append(props, &ir.SpreadElement{Base: l.base(list), Argument: arg})
			continue
		}
		if i+1 >= len(elements) {
			l.report(n, exc.CodeInvalidForm, "map literal has a key without a value")
			return nil
		}
		key := l.expression(elements[i])
		if key == nil {
			return nil
		}
		value := l.expression(elements[i+1])
		if value == nil {
			return nil
		}
		props = append(props, &ir.Property{Base: l.base(elements[i]), Key: key, Value: value})
		i++
	}
	return &ir.ObjectExpression{Base: base, Properties: props}
}

func (l *lowering) lowerSet(n *hql.List) ir.Expression {
	arr := l.lowerVector(n)
	if arr == nil {
		return nil
	}
	base := l.base(n)
	return &ir.NewExpression{
		Base:      base,
		Callee:    &ir.Identifier{Base: base, Name: "Set"},
		Arguments: []ir.Expression{arr},
	}
}

// lowerTemplate lowers (template-literal (quasis "a" ...) expr ...).
func (l *lowering) lowerTemplate(n *hql.List) ir.Expression {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidForm, "malformed template literal")
		return nil
	}
	quasisList, ok := n.Elements[1].(*hql.List)
	if !ok || quasisList.Head() != "quasis" {
		l.report(n, exc.CodeInvalidForm, "malformed template literal")
		return nil
	}
	base := l.base(n)
	out := &ir.TemplateLiteral{Base: base}
	raws := quasisList.Elements[1:]
	for i, q := range raws {
		lit, ok := q.(*hql.Literal)
		if !ok {
			l.report(q, exc.CodeInvalidForm, "malformed template literal")
			return nil
		}
		raw, _ := lit.Value.(string)
		out.Quasis = append(out.Quasis, &ir.TemplateElement{Base: base, Raw: raw, Tail: i == len(raws)-1})
	}
	for _, f := range n.Elements[2:] {
		e := l.expression(f)
		if e == nil {
			return nil
		}
		out.Expressions = append(out.Expressions, e)
	}
	return out
}

func (l *lowering) lowerRegex(n *hql.List) ir.Expression {
	if len(n.Elements) < 2 || len(n.Elements) > 3 {
		l.report(n, exc.CodeInvalidArity, "regex expects a pattern and optional flags")
		return nil
	}
	pattern, ok := n.Elements[1].(*hql.Literal)
	if !ok {
		l.report(n, exc.CodeInvalidForm, "regex pattern must be a string")
		return nil
	}
	p, ok := pattern.Value.(string)
	if !ok {
		l.report(n, exc.CodeInvalidForm, "regex pattern must be a string")
		return nil
	}
	flags := ""
	if len(n.Elements) == 3 {
		f, ok := n.Elements[2].(*hql.Literal)
		if !ok {
			l.report(n, exc.CodeInvalidForm, "regex flags must be a string")
			return nil
		}
		flags, _ = f.Value.(string)
	}
	return &ir.RegExpLiteral{Base: l.base(n), Pattern: p, Flags: flags}
}

func (l *lowering) lowerIfExpression(n *hql.List) ir.Expression {
	if len(n.Elements) < 3 || len(n.Elements) > 4 {
		l.report(n, exc.CodeInvalidArity, "if expects 2 or 3 forms, got %d", len(n.Elements)-1)
		return nil
	}
	test := l.expression(n.Elements[1])
	if test == nil {
		return nil
	}
	consequent := l.expression(n.Elements[2])
	if consequent == nil {
		return nil
	}
	alternate := l.null(n)
	if len(n.Elements) == 4 {
		alternate = l.expression(n.Elements[3])
		if alternate == nil {
			return nil
		}
	}
	return &ir.ConditionalExpression{Base: l.base(n), Test: test, Consequent: consequent, Alternate: alternate}
}

func (l *lowering) lowerIfStatement(n *hql.List) ir.Statement {
	if len(n.Elements) < 3 || len(n.Elements) > 4 {
		l.report(n, exc.CodeInvalidArity, "if expects 2 or 3 forms, got %d", len(n.Elements)-1)
		return nil
	}
	test := l.expression(n.Elements[1])
	if test == nil {
		return nil
	}
	consequent := l.statement(n.Elements[2])
	if consequent == nil {
		return nil
	}
	out := &ir.IfStatement{Base: l.base(n), Test: test, Consequent: consequent}
	if len(n.Elements) == 4 {
		out.Alternate = l.statement(n.Elements[3])
		if out.Alternate == nil {
			return nil
		}
	}
	return out
}

func (l *lowering) lowerWhile(n *hql.List) ir.Statement {
	if len(n.Elements) < 2 {
		l.report(n, exc.CodeInvalidArity, "while expects a condition")
		return nil
	}
	test := l.expression(n.Elements[1])
	if test == nil {
		return nil
	}
	pop := l.push(ctxEntry{kind: ctxForOf})
	defer pop()
	body := l.statements(n.Elements[2:])
	if body == nil {
		return nil
	}
	return &ir.WhileStatement{
		Base: l.base(n),
		Test: test,
		Body: &ir.BlockStatement{Base: l.base(n), Body: body},
	}
}

// iife wraps statements in an immediately invoked function. The function
// detects await/yield in its own body and the call is wrapped in await or
// yield* so the effect propagates one level up.
func (l *lowering) iife(form hql.SExp, body []ir.Statement) ir.Expression {
	return l.iifeWith(form, nil, nil, body)
}

func (l *lowering) iifeWith(form hql.SExp, params []ir.Pattern, args []ir.Expression, body []ir.Statement) ir.Expression {
	base := l.base(form)
	fn := &ir.FunctionExpression{
		Base:   base,
		Params: params,
		Body:   &ir.BlockStatement{Base: base, Body: body},
	}
	fn.Async = ir.ContainsAwait(fn)
	fn.Generator = ir.ContainsYield(fn)
	var out ir.Expression = &ir.CallExpression{Base: base, Callee: fn, Arguments: args}
	if fn.Generator {
		out = &ir.YieldExpression{Base: base, Argument: out, Delegate: true}
	} else if fn.Async {
		out = &ir.AwaitExpression{Base: base, Argument: out}
	}
	return out
}
