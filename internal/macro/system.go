// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package macro

import (
	"fmt"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
)

func arityErr(name string, want string, got int) error {
	return exc.New(exc.Location{}, exc.CodeMacroArity,
		fmt.Sprintf("macro %q expects %s, got %d", name, want, got))
}

// registerSystemMacros installs the built-in macros. These are ordinary Fn
// values that build replacement forms directly.
func registerSystemMacros(table map[string]Fn) {
	table["when"] = func(args []hql.SExp, env *Env) (hql.SExp, error) {
		if len(args) < 1 {
			return nil, arityErr("when", "at least 1 form", len(args))
		}
		body := append([]hql.SExp{hql.NewSymbol("do", nil)}, args[1:]...)
		return hql.NewList(nil,
			hql.NewSymbol("if", nil),
			args[0],
			hql.NewList(nil, body...),
			hql.NewLiteral(nil, nil),
		), nil
	}
	table["unless"] = func(args []hql.SExp, env *Env) (hql.SExp, error) {
		if len(args) < 1 {
			return nil, arityErr("unless", "at least 1 form", len(args))
		}
		body := append([]hql.SExp{hql.NewSymbol("do", nil)}, args[1:]...)
		return hql.NewList(nil,
			hql.NewSymbol("if", nil),
			args[0],
			hql.NewLiteral(nil, nil),
			hql.NewList(nil, body...),
		), nil
	}
	table["cond"] = func(args []hql.SExp, env *Env) (hql.SExp, error) {
		if len(args)%2 != 0 {
			return nil, arityErr("cond", "an even number of forms", len(args))
		}
		var out hql.SExp = hql.NewLiteral(nil, nil)
		for i := len(args) - 2; i >= 0; i -= 2 {
			test := args[i]
			if sym, ok := test.(*hql.Symbol); ok && (sym.Name == "else" || sym.Name == ":else") {
				out = args[i+1]
				continue
			}
			out = hql.NewList(nil, hql.NewSymbol("if", nil), test, args[i+1], out)
		}
		return out, nil
	}
	table["->"] = func(args []hql.SExp, env *Env) (hql.SExp, error) {
		if len(args) < 1 {
			return nil, arityErr("->", "at least 1 form", len(args))
		}
		return thread(args, func(acc hql.SExp, step *hql.List) hql.SExp {
			elements := append([]hql.SExp{step.Elements[0], acc}, step.Elements[1:]...)
			return hql.NewList(step.Pos(), elements...)
		}), nil
	}
	table["->>"] = func(args []hql.SExp, env *Env) (hql.SExp, error) {
		if len(args) < 1 {
			return nil, arityErr("->>", "at least 1 form", len(args))
		}
		return thread(args, func(acc hql.SExp, step *hql.List) hql.SExp {
			elements := append(append([]hql.SExp{}, step.Elements...), acc)
			return hql.NewList(step.Pos(), elements...)
		}), nil
	}
	table["if-not"] = func(args []hql.SExp, env *Env) (hql.SExp, error) {
		if len(args) < 2 || len(args) > 3 {
			return nil, arityErr("if-not", "2 or 3 forms", len(args))
		}
		alt := hql.SExp(hql.NewLiteral(nil, nil))
		if len(args) == 3 {
			alt = args[2]
		}
		return hql.NewList(nil,
			hql.NewSymbol("if", nil),
			hql.NewList(nil, hql.NewSymbol("not", nil), args[0]),
			args[1],
			alt,
		), nil
	}
	table["when-let"] = func(args []hql.SExp, env *Env) (hql.SExp, error) {
		if len(args) < 2 {
			return nil, arityErr("when-let", "a binding vector and a body", len(args))
		}
		bindings, ok := asVector(args[0])
		if !ok || len(bindings) != 2 {
			return nil, exc.New(exc.Location{}, exc.CodeMacroOperandType,
				"when-let expects a vector binding one name to one value")
		}
		body := append([]hql.SExp{hql.NewSymbol("do", nil)}, args[1:]...)
		return hql.NewList(nil,
			hql.NewSymbol("let", nil),
			args[0],
			hql.NewList(nil,
				hql.NewSymbol("if", nil),
				bindings[0],
				hql.NewList(nil, body...),
				hql.NewLiteral(nil, nil),
			),
		), nil
	}
}

// thread folds the first form through each subsequent step. Bare symbols
// become one-element call forms first.
func thread(args []hql.SExp, insert func(acc hql.SExp, step *hql.List) hql.SExp) hql.SExp {
	acc := args[0]
	for _, step := range args[1:] {
		list, ok := step.(*hql.List)
		if !ok || len(list.Elements) == 0 {
			list = hql.NewList(step.Pos(), step)
		}
		acc = insert(acc, list)
	}
	return acc
}
