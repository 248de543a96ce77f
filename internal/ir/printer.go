package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Sprint renders a node as a compact lisp-style debug string. The rendering
// is deterministic and is what --dump-ir prints; it is not the final code
// generation format.
func Sprint(n Node) string {
	var b strings.Builder
	sprint(&b, n)
	return b.String()
}

func sprintList(b *strings.Builder, head string, children ...any) {
	b.WriteByte('(')
	b.WriteString(head)
	for _, c := range children {
		b.WriteByte(' ')
		switch v := c.(type) {
		case nil:
			b.WriteString("nil")
		case string:
			b.WriteString(v)
		case Node:
			sprint(b, v)
		default:
			fmt.Fprintf(b, "%v", v)
		}
	}
	b.WriteByte(')')
}

func sprint(b *strings.Builder, n Node) {
	if n == nil || isNil(n) {
		b.WriteString("nil")
		return
	}
	switch v := n.(type) {
	case *Program:
		parts := make([]any, len(v.Body))
		for i, s := range v.Body {
			parts[i] = s
		}
		sprintList(b, "program", parts...)
	case *Identifier:
		b.WriteString(v.Name)
		if v.TypeAnnotation != "" {
			b.WriteByte(':')
			b.WriteString(v.TypeAnnotation)
		}
	case *StringLiteral:
		b.WriteString(strconv.Quote(v.Value))
	case *NumericLiteral:
		b.WriteString(strconv.FormatFloat(v.Value, 'g', -1, 64))
	case *BooleanLiteral:
		b.WriteString(strconv.FormatBool(v.Value))
	case *NullLiteral:
		b.WriteString("null")
	case *BigIntLiteral:
		b.WriteString(v.Value + "n")
	case *RegExpLiteral:
		fmt.Fprintf(b, "/%s/%s", v.Pattern, v.Flags)
	case *TemplateElement:
		b.WriteString(strconv.Quote(v.Raw))
	case *TemplateLiteral:
		parts := []any{}
		for i, q := range v.Quasis {
			parts = append(parts, q)
			if i < len(v.Expressions) {
				parts = append(parts, v.Expressions[i])
			}
		}
		sprintList(b, "template", parts...)
	case *ThisExpression:
		b.WriteString("this")
	case *ArrayExpression:
		parts := make([]any, len(v.Elements))
		for i, e := range v.Elements {
			parts[i] = e
		}
		sprintList(b, "array", parts...)
	case *ObjectExpression:
		parts := make([]any, len(v.Properties))
		for i, p := range v.Properties {
			parts[i] = p
		}
		sprintList(b, "object", parts...)
	case *Property:
		sprintList(b, "prop", v.Key, v.Value)
	case *SpreadElement:
		sprintList(b, "spread", v.Argument)
	case *CallExpression:
		head := "call"
		if v.Optional {
			head = "call?"
		}
		parts := []any{v.Callee}
		for _, a := range v.Arguments {
			parts = append(parts, a)
		}
		sprintList(b, head, parts...)
	case *NewExpression:
		parts := []any{v.Callee}
		for _, a := range v.Arguments {
			parts = append(parts, a)
		}
		sprintList(b, "new", parts...)
	case *MemberExpression:
		head := "member"
		if v.Computed {
			head = "index"
		}
		if v.Optional {
			head = head + "?"
		}
		sprintList(b, head, v.Object, v.Property)
	case *UnaryExpression:
		sprintList(b, v.Operator, v.Argument)
	case *UpdateExpression:
		head := v.Operator + "-post"
		if v.Prefix {
			head = v.Operator + "-pre"
		}
		sprintList(b, head, v.Argument)
	case *BinaryExpression:
		sprintList(b, v.Operator, v.Left, v.Right)
	case *LogicalExpression:
		sprintList(b, v.Operator, v.Left, v.Right)
	case *AssignmentExpression:
		sprintList(b, v.Operator, v.Left, v.Right)
	case *ConditionalExpression:
		sprintList(b, "cond", v.Test, v.Consequent, v.Alternate)
	case *SequenceExpression:
		parts := make([]any, len(v.Expressions))
		for i, e := range v.Expressions {
			parts[i] = e
		}
		sprintList(b, "seq", parts...)
	case *FunctionExpression:
		sprintFunc(b, "fn", v.ID, v.Params, v.Body, v.Async, v.Generator)
	case *ArrowFunctionExpression:
		parts := []any{sprintParams(v.Params)}
		parts = append(parts, v.Body)
		head := "arrow"
		if v.Async {
			head = "async-arrow"
		}
		sprintList(b, head, parts...)
	case *AwaitExpression:
		sprintList(b, "await", v.Argument)
	case *YieldExpression:
		head := "yield"
		if v.Delegate {
			head = "yield*"
		}
		sprintList(b, head, v.Argument)
	case *ExpressionStatement:
		sprint(b, v.Expression)
	case *BlockStatement:
		parts := make([]any, len(v.Body))
		for i, s := range v.Body {
			parts[i] = s
		}
		sprintList(b, "block", parts...)
	case *EmptyStatement:
		b.WriteString("(empty)")
	case *ReturnStatement:
		sprintList(b, "return", v.Argument)
	case *IfStatement:
		if v.Alternate != nil {
			sprintList(b, "if", v.Test, v.Consequent, v.Alternate)
		} else {
			sprintList(b, "if", v.Test, v.Consequent)
		}
	case *WhileStatement:
		sprintList(b, "while", v.Test, v.Body)
	case *DoWhileStatement:
		sprintList(b, "do-while", v.Body, v.Test)
	case *ForStatement:
		sprintList(b, "for", v.Init, v.Test, v.Update, v.Body)
	case *ForOfStatement:
		head := "for-of"
		if v.Await {
			head = "for-await-of"
		}
		sprintList(b, head, v.Left, v.Right, v.Body)
	case *ForInStatement:
		sprintList(b, "for-in", v.Left, v.Right, v.Body)
	case *BreakStatement:
		if v.Label != nil {
			sprintList(b, "break", v.Label)
		} else {
			b.WriteString("(break)")
		}
	case *ContinueStatement:
		if v.Label != nil {
			sprintList(b, "continue", v.Label)
		} else {
			b.WriteString("(continue)")
		}
	case *LabeledStatement:
		sprintList(b, "label", v.Label, v.Body)
	case *ThrowStatement:
		sprintList(b, "throw", v.Argument)
	case *TryStatement:
		parts := []any{v.Block}
		if v.Handler != nil {
			if v.Handler.Param != nil {
				parts = append(parts, sprintWrap("catch", v.Handler.Param, v.Handler.Body))
			} else {
				parts = append(parts, sprintWrap("catch", v.Handler.Body))
			}
		}
		if v.Finalizer != nil {
			parts = append(parts, sprintWrap("finally", v.Finalizer))
		}
		sprintList(b, "try", parts...)
	case *SwitchStatement:
		parts := []any{v.Discriminant}
		for _, c := range v.Cases {
			cp := []any{}
			if c.Test != nil {
				cp = append(cp, c.Test)
			} else {
				cp = append(cp, "default")
			}
			for _, s := range c.Consequent {
				cp = append(cp, s)
			}
			parts = append(parts, sprintWrap("case", cp...))
		}
		sprintList(b, "switch", parts...)
	case *VariableDeclaration:
		parts := []any{}
		for _, d := range v.Declarations {
			if d.Init != nil {
				parts = append(parts, sprintWrap("", d.ID, d.Init))
			} else {
				parts = append(parts, sprintWrap("", d.ID))
			}
		}
		sprintList(b, string(v.Kind), parts...)
	case *FunctionDeclaration:
		sprintFunc(b, "defn", v.ID, v.Params, v.Body, v.Async, v.Generator)
	case *ClassDeclaration:
		parts := []any{v.ID}
		if v.SuperClass != nil {
			parts = append(parts, sprintWrap("extends", v.SuperClass))
		}
		if v.Body != nil {
			for _, m := range v.Body.Body {
				parts = append(parts, sprintWrap("method", m.Key, m.Value))
			}
		}
		sprintList(b, "class", parts...)
	case *ImportSpecifier:
		if v.Imported.Name != v.Local.Name {
			sprintList(b, "as", v.Imported, v.Local)
		} else {
			sprint(b, v.Local)
		}
	case *ImportDefaultSpecifier:
		sprintList(b, "default", v.Local)
	case *ImportNamespaceSpecifier:
		sprintList(b, "namespace", v.Local)
	case *ImportDeclaration:
		parts := make([]any, 0, len(v.Specifiers)+1)
		for _, s := range v.Specifiers {
			parts = append(parts, s)
		}
		parts = append(parts, v.Source)
		sprintList(b, "import", parts...)
	case *ExportNamedDeclaration:
		parts := []any{}
		if v.Declaration != nil {
			parts = append(parts, v.Declaration)
		}
		for _, s := range v.Specifiers {
			parts = append(parts, s.Local)
		}
		sprintList(b, "export", parts...)
	case *ExportDefaultDeclaration:
		sprintList(b, "export-default", v.Declaration)
	case *ExportAllDeclaration:
		sprintList(b, "export-all", v.Source)
	case *ArrayPattern:
		parts := make([]any, len(v.Elements))
		for i, e := range v.Elements {
			if e == nil {
				parts[i] = "_"
			} else {
				parts[i] = e
			}
		}
		sprintList(b, "array-pattern", parts...)
	case *ObjectPattern:
		parts := []any{}
		for _, p := range v.Properties {
			parts = append(parts, sprintWrap("", strconv.Quote(p.Key), p.Value))
		}
		if v.Rest != nil {
			parts = append(parts, v.Rest)
		}
		sprintList(b, "object-pattern", parts...)
	case *AssignmentPattern:
		sprintList(b, "default", v.Left, v.Right)
	case *RestElement:
		sprintList(b, "rest", v.Argument)
	case *TSInterfaceDeclaration:
		parts := []any{v.ID}
		for _, m := range v.Members {
			parts = append(parts, sprintWrap("", m.Name, m.Type))
		}
		sprintList(b, "interface", parts...)
	case *TSTypeAliasDeclaration:
		sprintList(b, "type-alias", v.ID, v.Type)
	case *TSEnumDeclaration:
		parts := []any{v.ID}
		for _, m := range v.Members {
			if m.Init != nil {
				parts = append(parts, sprintWrap("", m.Name, m.Init))
			} else {
				parts = append(parts, m.Name)
			}
		}
		sprintList(b, "enum", parts...)
	case *TSModuleDeclaration:
		parts := []any{v.ID}
		for _, s := range v.Body {
			parts = append(parts, s)
		}
		sprintList(b, "namespace", parts...)
	default:
		fmt.Fprintf(b, "(unknown %T)", n)
	}
}

func sprintWrap(head string, children ...any) string {
	var b strings.Builder
	if head == "" {
		b.WriteByte('(')
		for i, c := range children {
			if i > 0 {
				b.WriteByte(' ')
			}
			switch v := c.(type) {
			case string:
				b.WriteString(v)
			case Node:
				sprint(&b, v)
			default:
				fmt.Fprintf(&b, "%v", v)
			}
		}
		b.WriteByte(')')
		return b.String()
	}
	sprintList(&b, head, children...)
	return b.String()
}

func sprintParams(params []Pattern) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(' ')
		}
		sprint(&b, p)
	}
	b.WriteByte(']')
	return b.String()
}

func sprintFunc(b *strings.Builder, head string, id *Identifier, params []Pattern, body *BlockStatement, async bool, generator bool) {
	if async {
		head = "async-" + head
	}
	if generator {
		head = head + "*"
	}
	parts := []any{}
	if id != nil {
		parts = append(parts, id)
	}
	parts = append(parts, sprintParams(params))
	parts = append(parts, body)
	sprintList(b, head, parts...)
}
