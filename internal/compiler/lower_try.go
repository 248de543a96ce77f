// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/ir"
)

// lowerTry lowers (try body... (catch e? body...)? (finally body...)?) into
// a try statement inside an IIFE so the construct is usable as an
// expression. The try and catch bodies return their final value; finally
// runs for effect only. At most one catch and one finally are accepted.
func (l *lowering) lowerTry(n *hql.List) ir.Expression {
	var tryForms []hql.SExp
	var catchForm, finallyForm *hql.List
	for _, el := range n.Elements[1:] {
		clause, ok := el.(*hql.List)
		if ok && clause.Head() == "catch" {
			if catchForm != nil {
				l.report(clause, exc.CodeDuplicateClause, "try permits a single catch clause")
				return nil
			}
			if finallyForm != nil {
				l.report(clause, exc.CodeInvalidForm, "catch must precede finally")
				return nil
			}
			catchForm = clause
			continue
		}
		if ok && clause.Head() == "finally" {
			if finallyForm != nil {
				l.report(clause, exc.CodeDuplicateClause, "try permits a single finally clause")
				return nil
			}
			finallyForm = clause
			continue
		}
		if catchForm != nil || finallyForm != nil {
			l.report(el, exc.CodeInvalidForm, "try body forms must precede catch and finally")
			return nil
		}
		tryForms = append(tryForms, el)
	}

	base := l.base(n)
	tryBody := l.body(tryForms, true)
	if tryBody == nil {
		return nil
	}
	stmt := &ir.TryStatement{
		Base:  base,
		Block: &ir.BlockStatement{Base: base, Body: tryBody},
	}
	if catchForm != nil {
		handler := l.catchClause(catchForm)
		if handler == nil {
			return nil
		}
		stmt.Handler = handler
	}
	if finallyForm != nil {
		finalBody := l.statements(finallyForm.Elements[1:])
		if finalBody == nil {
			return nil
		}
		stmt.Finalizer = &ir.BlockStatement{Base: l.base(finallyForm), Body: finalBody}
	}
	if stmt.Handler == nil && stmt.Finalizer == nil {
		l.report(n, exc.CodeInvalidForm, "try requires a catch or finally clause")
		return nil
	}
	return l.iife(n, []ir.Statement{stmt})
}

// catchClause lowers (catch e? body...). The binding is optional; when
// present it may be any destructuring target.
func (l *lowering) catchClause(n *hql.List) *ir.CatchClause {
	rest := n.Elements[1:]
	var param ir.Pattern
	if len(rest) > 0 && CouldBePattern(rest[0]) {
		param = l.bindingTarget(rest[0])
		if param == nil {
			return nil
		}
		rest = rest[1:]
	}
	body := l.body(rest, true)
	if body == nil {
		return nil
	}
	base := l.base(n)
	return &ir.CatchClause{
		Base:  base,
		Param: param,
		Body:  &ir.BlockStatement{Base: base, Body: body},
	}
}
