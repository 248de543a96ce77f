package ir

// Walk visits every node in the tree rooted at n. The callback returns
// false to skip the children of the node it was called with.
func Walk(n Node, f func(Node) bool) {
	if n == nil || isNil(n) {
		return
	}
	if !f(n) {
		return
	}
	switch v := n.(type) {
	case *Program:
		for _, s := range v.Body {
			Walk(s, f)
		}
	case *TemplateLiteral:
		for _, q := range v.Quasis {
			Walk(q, f)
		}
		for _, e := range v.Expressions {
			Walk(e, f)
		}
	case *ArrayExpression:
		for _, e := range v.Elements {
			Walk(e, f)
		}
	case *ObjectExpression:
		for _, p := range v.Properties {
			Walk(p, f)
		}
	case *Property:
		Walk(v.Key, f)
		Walk(v.Value, f)
	case *SpreadElement:
		Walk(v.Argument, f)
	case *CallExpression:
		Walk(v.Callee, f)
		for _, a := range v.Arguments {
			Walk(a, f)
		}
	case *NewExpression:
		Walk(v.Callee, f)
		for _, a := range v.Arguments {
			Walk(a, f)
		}
	case *MemberExpression:
		Walk(v.Object, f)
		Walk(v.Property, f)
	case *UnaryExpression:
		Walk(v.Argument, f)
	case *UpdateExpression:
		Walk(v.Argument, f)
	case *BinaryExpression:
		Walk(v.Left, f)
		Walk(v.Right, f)
	case *LogicalExpression:
		Walk(v.Left, f)
		Walk(v.Right, f)
	case *AssignmentExpression:
		Walk(v.Left, f)
		Walk(v.Right, f)
	case *ConditionalExpression:
		Walk(v.Test, f)
		Walk(v.Consequent, f)
		Walk(v.Alternate, f)
	case *SequenceExpression:
		for _, e := range v.Expressions {
			Walk(e, f)
		}
	case *FunctionExpression:
		for _, p := range v.Params {
			Walk(p, f)
		}
		Walk(v.Body, f)
	case *ArrowFunctionExpression:
		for _, p := range v.Params {
			Walk(p, f)
		}
		Walk(v.Body, f)
	case *AwaitExpression:
		Walk(v.Argument, f)
	case *YieldExpression:
		Walk(v.Argument, f)
	case *ExpressionStatement:
		Walk(v.Expression, f)
	case *BlockStatement:
		for _, s := range v.Body {
			Walk(s, f)
		}
	case *ReturnStatement:
		Walk(v.Argument, f)
	case *IfStatement:
		Walk(v.Test, f)
		Walk(v.Consequent, f)
		Walk(v.Alternate, f)
	case *WhileStatement:
		Walk(v.Test, f)
		Walk(v.Body, f)
	case *DoWhileStatement:
		Walk(v.Test, f)
		Walk(v.Body, f)
	case *ForStatement:
		Walk(v.Init, f)
		Walk(v.Test, f)
		Walk(v.Update, f)
		Walk(v.Body, f)
	case *ForOfStatement:
		Walk(v.Left, f)
		Walk(v.Right, f)
		Walk(v.Body, f)
	case *ForInStatement:
		Walk(v.Left, f)
		Walk(v.Right, f)
		Walk(v.Body, f)
	case *LabeledStatement:
		Walk(v.Label, f)
		Walk(v.Body, f)
	case *BreakStatement:
		Walk(v.Label, f)
	case *ContinueStatement:
		Walk(v.Label, f)
	case *ThrowStatement:
		Walk(v.Argument, f)
	case *TryStatement:
		Walk(v.Block, f)
		if v.Handler != nil {
			Walk(v.Handler.Param, f)
			Walk(v.Handler.Body, f)
		}
		Walk(v.Finalizer, f)
	case *SwitchStatement:
		Walk(v.Discriminant, f)
		for _, c := range v.Cases {
			Walk(c.Test, f)
			for _, s := range c.Consequent {
				Walk(s, f)
			}
		}
	case *VariableDeclaration:
		for _, d := range v.Declarations {
			Walk(d.ID, f)
			Walk(d.Init, f)
		}
	case *FunctionDeclaration:
		Walk(v.ID, f)
		for _, p := range v.Params {
			Walk(p, f)
		}
		Walk(v.Body, f)
	case *ClassDeclaration:
		Walk(v.ID, f)
		Walk(v.SuperClass, f)
		if v.Body != nil {
			for _, m := range v.Body.Body {
				Walk(m.Key, f)
				Walk(m.Value, f)
			}
		}
	case *ImportDeclaration:
		for _, s := range v.Specifiers {
			Walk(s, f)
		}
		Walk(v.Source, f)
	case *ExportNamedDeclaration:
		Walk(v.Declaration, f)
		for _, s := range v.Specifiers {
			Walk(s.Local, f)
			Walk(s.Exported, f)
		}
		Walk(v.Source, f)
	case *ExportDefaultDeclaration:
		Walk(v.Declaration, f)
	case *ExportAllDeclaration:
		Walk(v.Source, f)
	case *ArrayPattern:
		for _, e := range v.Elements {
			Walk(e, f)
		}
	case *ObjectPattern:
		for _, p := range v.Properties {
			Walk(p.Value, f)
		}
		Walk(v.Rest, f)
	case *AssignmentPattern:
		Walk(v.Left, f)
		Walk(v.Right, f)
	case *RestElement:
		Walk(v.Argument, f)
	case *TSEnumDeclaration:
		Walk(v.ID, f)
		for _, m := range v.Members {
			Walk(m.Init, f)
		}
	case *TSModuleDeclaration:
		Walk(v.ID, f)
		for _, s := range v.Body {
			Walk(s, f)
		}
	}
}

// isNil catches typed-nil interface values so Walk callers can pass optional
// children without checking.
func isNil(n Node) bool {
	switch v := n.(type) {
	case *Identifier:
		return v == nil
	case *StringLiteral:
		return v == nil
	case *BlockStatement:
		return v == nil
	case *TemplateElement:
		return v == nil
	case *RestElement:
		return v == nil
	case *FunctionExpression:
		return v == nil
	default:
		return false
	}
}

// boundary reports whether a node opens a new function scope. Await and
// yield inside it belong to that inner function, not to the tree being
// inspected.
func boundary(n Node) bool {
	switch n.(type) {
	case *FunctionExpression, *FunctionDeclaration, *ArrowFunctionExpression:
		return true
	}
	return false
}

// ContainsAwait reports whether the tree awaits anything without crossing
// into nested function boundaries. The root is inspected even when it is
// itself a function.
func ContainsAwait(n Node) bool {
	found := false
	first := true
	Walk(n, func(c Node) bool {
		if found {
			return false
		}
		if boundary(c) && !first {
			return false
		}
		first = false
		switch v := c.(type) {
		case *AwaitExpression:
			found = true
			return false
		case *ForOfStatement:
			if v.Await {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// ContainsYield reports whether the tree yields anything without crossing
// into nested function boundaries.
func ContainsYield(n Node) bool {
	found := false
	first := true
	Walk(n, func(c Node) bool {
		if found {
			return false
		}
		if boundary(c) && !first {
			return false
		}
		first = false
		if _, ok := c.(*YieldExpression); ok {
			found = true
			return false
		}
		return true
	})
	return found
}
