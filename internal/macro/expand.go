// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package macro

import (
	"fmt"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
)

// maxExpansionDepth bounds repeated expansion of a single form so a macro
// that expands to itself fails with a typed error.
const maxExpansionDepth = 256

// Expander rewrites macro call sites in an S-expression tree. Expansion is
// non-hygienic: expanded forms may capture bindings at the call site, and
// macros that need fresh names use gensym.
type Expander struct {
	uri      string
	registry *Registry
}

func NewExpander(uri string, registry *Registry) *Expander {
	return &Expander{uri: uri, registry: registry}
}

func (e *Expander) errf(loc *hql.Location, code string, format string, args ...any) exc.Exception {
	l := exc.Location{URI: e.uri}
	if loc != nil {
		l.Location = *loc
	}
	return exc.New(l, code, fmt.Sprintf(format, args...))
}

// ExpandAll expands every form in a program. defmacro forms register their
// macro and are removed from the output.
func (e *Expander) ExpandAll(forms []hql.SExp) ([]hql.SExp, error) {
	out := make([]hql.SExp, 0, len(forms))
	for _, form := range forms {
		if list, ok := form.(*hql.List); ok && list.Head() == "defmacro" {
			if err := e.defineMacro(list); err != nil {
				return nil, err
			}
			continue
		}
		expanded, err := e.Expand(form)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded)
	}
	return out, nil
}

// Expand rewrites form until no macro call remains at its head, then
// recurses into the children.
func (e *Expander) Expand(form hql.SExp) (hql.SExp, error) {
	for depth := 0; ; depth++ {
		if depth > maxExpansionDepth {
			return nil, e.errf(form.Pos(), exc.CodeMacroRecursionLimit, "macro expansion exceeded depth %d", maxExpansionDepth)
		}
		list, ok := form.(*hql.List)
		if !ok {
			return form, nil
		}
		head := list.Head()
		if head == "quote" {
			return form, nil
		}
		fn, ok := e.registry.GetMacro(head)
		if !ok {
			return e.expandChildren(list)
		}
		result, err := fn(list.Elements[1:], NewEnv())
		if err != nil {
			return nil, exc.Wrap(exc.Location{Location: deref(list.Pos()), URI: e.uri}, exc.CodeMacroBadResult, err)
		}
		if result == nil {
			return nil, e.errf(list.Pos(), exc.CodeMacroBadResult, "macro %q produced no form", head)
		}
		// Synthesized nodes report the call site's position.
		form = hql.WithPos(result, list.Pos())
	}
}

func (e *Expander) expandChildren(list *hql.List) (hql.SExp, error) {
	changed := false
	elements := make([]hql.SExp, len(list.Elements))
	for i, el := range list.Elements {
		expanded, err := e.Expand(el)
		if err != nil {
			return nil, err
		}
		if expanded != el {
			changed = true
		}
		elements[i] = expanded
	}
	if !changed {
		return list, nil
	}
	return hql.NewList(list.Pos(), elements...), nil
}

// defineMacro handles (defmacro name [params] body...). The macro body runs
// in the macro-time interpreter with parameters bound to the unevaluated
// argument forms.
func (e *Expander) defineMacro(list *hql.List) error {
	if len(list.Elements) < 3 {
		return e.errf(list.Pos(), exc.CodeMacroArity, "defmacro expects a name, a parameter vector, and a body")
	}
	nameSym, ok := list.Elements[1].(*hql.Symbol)
	if !ok {
		return e.errf(list.Elements[1].Pos(), exc.CodeMacroOperandType, "defmacro name must be a symbol")
	}
	params, ok := asVector(list.Elements[2])
	if !ok {
		return e.errf(list.Elements[2].Pos(), exc.CodeMacroOperandType, "defmacro parameters must be a vector")
	}
	var names []string
	rest := ""
	for i := 0; i < len(params); i++ {
		sym, ok := params[i].(*hql.Symbol)
		if !ok {
			return e.errf(params[i].Pos(), exc.CodeMacroOperandType, "defmacro parameter must be a symbol")
		}
		if sym.Name == "&" {
			if i != len(params)-2 {
				return e.errf(sym.Pos(), exc.CodeMacroOperandType, "& must precede the final parameter")
			}
			restSym, ok := params[i+1].(*hql.Symbol)
			if !ok {
				return e.errf(params[i+1].Pos(), exc.CodeMacroOperandType, "rest parameter must be a symbol")
			}
			rest = restSym.Name
			break
		}
		names = append(names, sym.Name)
	}
	body := list.Elements[3:]
	uri := e.uri
	macroName := nameSym.Name
	e.registry.DefineMacro(macroName, func(args []hql.SExp, env *Env) (hql.SExp, error) {
		if rest == "" && len(args) != len(names) {
			return nil, exc.New(exc.Location{URI: uri}, exc.CodeMacroArity,
				fmt.Sprintf("macro %q expects %d arguments, got %d", macroName, len(names), len(args)))
		}
		if rest != "" && len(args) < len(names) {
			return nil, exc.New(exc.Location{URI: uri}, exc.CodeMacroArity,
				fmt.Sprintf("macro %q expects at least %d arguments, got %d", macroName, len(names), len(args)))
		}
		scope := env.Extend()
		for i, n := range names {
			scope.Define(n, args[i])
		}
		if rest != "" {
			scope.Define(rest, hql.NewList(nil, args[len(names):]...))
		}
		in := NewInterp(uri)
		result, err := in.evalDo(body, scope)
		if err != nil {
			return nil, err
		}
		switch result.(type) {
		case *closure, *builtin:
			return nil, exc.New(exc.Location{URI: uri}, exc.CodeMacroBadResult,
				fmt.Sprintf("macro %q returned a function instead of a form", macroName))
		}
		return valueToSExp(result, nil), nil
	})
	return nil
}

func deref(loc *hql.Location) hql.Location {
	if loc == nil {
		return hql.Location{}
	}
	return *loc
}
