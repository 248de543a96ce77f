// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package macro

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
)

// maxEvalDepth bounds macro-time evaluation so a runaway macro fails with a
// typed error instead of exhausting the host stack.
const maxEvalDepth = 512

// Interp evaluates S-expressions at macro-expansion time. Values in the
// interpreter are float64, string, bool, nil, hql.SExp (code as data), or
// *closure.
type Interp struct {
	uri   string
	depth int
}

func NewInterp(uri string) *Interp {
	return &Interp{uri: uri}
}

type closure struct {
	params []string
	rest   string
	body   []hql.SExp
	env    *Env
}

type builtin struct {
	name string
	fn   func(in *Interp, loc *hql.Location, args []any) (any, error)
}

var gensymCounter atomic.Uint64

// Gensym returns a fresh identifier. Macro hygiene is best-effort: macros
// that need capture-free names must request them explicitly.
func Gensym(prefix string) string {
	if prefix == "" {
		prefix = "g"
	}
	return fmt.Sprintf("%s__%d", prefix, gensymCounter.Add(1))
}

func (in *Interp) errf(loc *hql.Location, code string, format string, args ...any) exc.Exception {
	l := exc.Location{URI: in.uri}
	if loc != nil {
		l.Location = *loc
	}
	return exc.New(l, code, fmt.Sprintf(format, args...))
}

// Eval evaluates a form in the given environment.
func (in *Interp) Eval(form hql.SExp, env *Env) (any, error) {
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > maxEvalDepth {
		return nil, in.errf(form.Pos(), exc.CodeMacroRecursionLimit, "macro evaluation exceeded depth %d", maxEvalDepth)
	}

	switch n := form.(type) {
	case *hql.Literal:
		return n.Value, nil
	case *hql.Symbol:
		switch n.Name {
		case "nil", "null":
			return nil, nil
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		if v, ok := env.Lookup(n.Name); ok {
			return v, nil
		}
		if b, ok := builtins[n.Name]; ok {
			return b, nil
		}
		return nil, in.errf(n.Pos(), exc.CodeMacroUnboundSymbol, "unbound symbol %q", n.Name)
	case *hql.List:
		return in.evalList(n, env)
	default:
		return nil, in.errf(form.Pos(), exc.CodeMacroOperandType, "cannot evaluate %T", form)
	}
}

func (in *Interp) evalList(list *hql.List, env *Env) (any, error) {
	if len(list.Elements) == 0 {
		return list, nil
	}
	switch list.Head() {
	case "if":
		return in.evalIf(list, env)
	case "let":
		return in.evalLet(list, env)
	case "do":
		return in.evalDo(list.Elements[1:], env)
	case "fn":
		return in.evalFn(list, env)
	case "quote":
		if len(list.Elements) != 2 {
			return nil, in.errf(list.Pos(), exc.CodeMacroArity, "quote expects 1 form, got %d", len(list.Elements)-1)
		}
		return list.Elements[1], nil
	case "quasiquote":
		if len(list.Elements) != 2 {
			return nil, in.errf(list.Pos(), exc.CodeMacroArity, "quasiquote expects 1 form, got %d", len(list.Elements)-1)
		}
		return in.evalQuasiquote(list.Elements[1], env, 1)
	case "unquote", "unquote-splicing":
		return nil, in.errf(list.Pos(), exc.CodeMacroOperandType, "%s outside quasiquote", list.Head())
	case "and":
		var last any = true
		for _, f := range list.Elements[1:] {
			v, err := in.Eval(f, env)
			if err != nil {
				return nil, err
			}
			if !truthy(v) {
				return v, nil
			}
			last = v
		}
		return last, nil
	case "or":
		for _, f := range list.Elements[1:] {
			v, err := in.Eval(f, env)
			if err != nil {
				return nil, err
			}
			if truthy(v) {
				return v, nil
			}
		}
		return nil, nil
	}

	// function application
	callee, err := in.Eval(list.Elements[0], env)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(list.Elements)-1)
	for _, f := range list.Elements[1:] {
		v, err := in.Eval(f, env)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return in.apply(list.Pos(), callee, args)
}

func (in *Interp) apply(loc *hql.Location, callee any, args []any) (any, error) {
	switch fn := callee.(type) {
	case *builtin:
		return fn.fn(in, loc, args)
	case *closure:
		if fn.rest == "" && len(args) != len(fn.params) {
			return nil, in.errf(loc, exc.CodeMacroArity, "expected %d arguments, got %d", len(fn.params), len(args))
		}
		if fn.rest != "" && len(args) < len(fn.params) {
			return nil, in.errf(loc, exc.CodeMacroArity, "expected at least %d arguments, got %d", len(fn.params), len(args))
		}
		scope := fn.env.Extend()
		for i, p := range fn.params {
			scope.Define(p, args[i])
		}
		if fn.rest != "" {
			restArgs := make([]hql.SExp, 0, len(args)-len(fn.params))
			for _, a := range args[len(fn.params):] {
				restArgs = append(restArgs, valueToSExp(a, loc))
			}
			scope.Define(fn.rest, hql.NewList(loc, restArgs...))
		}
		return in.evalDo(fn.body, scope)
	default:
		return nil, in.errf(loc, exc.CodeMacroOperandType, "%s is not callable", describe(callee))
	}
}

func (in *Interp) evalIf(list *hql.List, env *Env) (any, error) {
	if len(list.Elements) < 3 || len(list.Elements) > 4 {
		return nil, in.errf(list.Pos(), exc.CodeMacroArity, "if expects 2 or 3 forms, got %d", len(list.Elements)-1)
	}
	test, err := in.Eval(list.Elements[1], env)
	if err != nil {
		return nil, err
	}
	if truthy(test) {
		return in.Eval(list.Elements[2], env)
	}
	if len(list.Elements) == 4 {
		return in.Eval(list.Elements[3], env)
	}
	return nil, nil
}

func (in *Interp) evalLet(list *hql.List, env *Env) (any, error) {
	if len(list.Elements) < 2 {
		return nil, in.errf(list.Pos(), exc.CodeMacroArity, "let expects a binding vector")
	}
	bindings, ok := asVector(list.Elements[1])
	if !ok {
		return nil, in.errf(list.Elements[1].Pos(), exc.CodeMacroOperandType, "let bindings must be a vector")
	}
	if len(bindings)%2 != 0 {
		return nil, in.errf(list.Elements[1].Pos(), exc.CodeMacroArity, "let bindings must pair names with values")
	}
	scope := env.Extend()
	for i := 0; i < len(bindings); i += 2 {
		name, ok := bindings[i].(*hql.Symbol)
		if !ok {
			return nil, in.errf(bindings[i].Pos(), exc.CodeMacroOperandType, "let binding name must be a symbol")
		}
		v, err := in.Eval(bindings[i+1], scope)
		if err != nil {
			return nil, err
		}
		scope.Define(name.Name, v)
	}
	return in.evalDo(list.Elements[2:], scope)
}

func (in *Interp) evalDo(body []hql.SExp, env *Env) (any, error) {
	var out any
	for _, f := range body {
		v, err := in.Eval(f, env)
		if err != nil {
			return nil, err
		}
		out = v
	}
	return out, nil
}

func (in *Interp) evalFn(list *hql.List, env *Env) (any, error) {
	if len(list.Elements) < 2 {
		return nil, in.errf(list.Pos(), exc.CodeMacroArity, "fn expects a parameter vector")
	}
	params, ok := asVector(list.Elements[1])
	if !ok {
		return nil, in.errf(list.Elements[1].Pos(), exc.CodeMacroOperandType, "fn parameters must be a vector")
	}
	c := &closure{env: env, body: list.Elements[2:]}
	for i := 0; i < len(params); i++ {
		sym, ok := params[i].(*hql.Symbol)
		if !ok {
			return nil, in.errf(params[i].Pos(), exc.CodeMacroOperandType, "fn parameter must be a symbol")
		}
		if sym.Name == "&" {
			if i != len(params)-2 {
				return nil, in.errf(sym.Pos(), exc.CodeMacroOperandType, "& must precede the final parameter")
			}
			restSym, ok := params[i+1].(*hql.Symbol)
			if !ok {
				return nil, in.errf(params[i+1].Pos(), exc.CodeMacroOperandType, "rest parameter must be a symbol")
			}
			c.rest = restSym.Name
			break
		}
		c.params = append(c.params, sym.Name)
	}
	return c, nil
}

// evalQuasiquote builds code, evaluating unquote forms at the matching
// depth and splicing unquote-splicing lists into the surrounding form.
func (in *Interp) evalQuasiquote(form hql.SExp, env *Env, depth int) (any, error) {
	list, ok := form.(*hql.List)
	if !ok {
		return form, nil
	}
	switch list.Head() {
	case "unquote":
		if len(list.Elements) != 2 {
			return nil, in.errf(list.Pos(), exc.CodeMacroArity, "unquote expects 1 form")
		}
		if depth == 1 {
			return in.Eval(list.Elements[1], env)
		}
		inner, err := in.evalQuasiquote(list.Elements[1], env, depth-1)
		if err != nil {
			return nil, err
		}
		return hql.NewList(list.Pos(), hql.NewSymbol("unquote", list.Pos()), valueToSExp(inner, list.Pos())), nil
	case "quasiquote":
		if len(list.Elements) != 2 {
			return nil, in.errf(list.Pos(), exc.CodeMacroArity, "quasiquote expects 1 form")
		}
		inner, err := in.evalQuasiquote(list.Elements[1], env, depth+1)
		if err != nil {
			return nil, err
		}
		return hql.NewList(list.Pos(), hql.NewSymbol("quasiquote", list.Pos()), valueToSExp(inner, list.Pos())), nil
	}
	out := make([]hql.SExp, 0, len(list.Elements))
	for _, el := range list.Elements {
		if sub, ok := el.(*hql.List); ok && sub.Head() == "unquote-splicing" && depth == 1 {
			if len(sub.Elements) != 2 {
				return nil, in.errf(sub.Pos(), exc.CodeMacroArity, "unquote-splicing expects 1 form")
			}
			v, err := in.Eval(sub.Elements[1], env)
			if err != nil {
				return nil, err
			}
			spliced, ok := valueToSExp(v, sub.Pos()).(*hql.List)
			if !ok {
				return nil, in.errf(sub.Pos(), exc.CodeMacroOperandType, "unquote-splicing requires a list, got %s", describe(v))
			}
			out = append(out, spliced.Elements...)
			continue
		}
		v, err := in.evalQuasiquote(el, env, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, valueToSExp(v, el.Pos()))
	}
	return hql.NewList(list.Pos(), out...), nil
}

// asVector unwraps a (vector ...) form, which is how the parser represents
// [...] literals.
func asVector(form hql.SExp) ([]hql.SExp, bool) {
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

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	default:
		return true
	}
}

func describe(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	case hql.SExp:
		return hql.Sprint(t)
	case *closure:
		return "fn"
	case *builtin:
		return "builtin " + t.name
	default:
		return fmt.Sprintf("%T", v)
	}
}

// valueToSExp converts an interpreter value back into code for splicing.
func valueToSExp(v any, loc *hql.Location) hql.SExp {
	switch t := v.(type) {
	case hql.SExp:
		return t
	case nil, float64, string, bool:
		return hql.NewLiteral(t, loc)
	default:
		// closures and builtins have no code form; the expander rejects
		// them via CodeMacroBadResult before this point.
		return hql.NewLiteral(nil, loc)
	}
}

func numArgs(in *Interp, loc *hql.Location, name string, args []any) ([]float64, error) {
	nums := make([]float64, len(args))
	for i, a := range args {
		n, ok := a.(float64)
		if !ok {
			return nil, in.errf(loc, exc.CodeMacroOperandType, "%s expects numbers, got %s", name, describe(a))
		}
		nums[i] = n
	}
	return nums, nil
}

var builtins = map[string]*builtin{}

func registerBuiltin(name string, fn func(in *Interp, loc *hql.Location, args []any) (any, error)) {
	builtins[name] = &builtin{name: name, fn: fn}
}

func init() {
	registerBuiltin("+", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		nums, err := numArgs(in, loc, "+", args)
		if err != nil {
			return nil, err
		}
		sum := 0.0
		for _, n := range nums {
			sum += n
		}
		return sum, nil
	})
	registerBuiltin("-", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		nums, err := numArgs(in, loc, "-", args)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, in.errf(loc, exc.CodeMacroArity, "- expects at least 1 argument")
		}
		if len(nums) == 1 {
			return -nums[0], nil
		}
		out := nums[0]
		for _, n := range nums[1:] {
			out -= n
		}
		return out, nil
	})
	registerBuiltin("*", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		nums, err := numArgs(in, loc, "*", args)
		if err != nil {
			return nil, err
		}
		out := 1.0
		for _, n := range nums {
			out *= n
		}
		return out, nil
	})
	registerBuiltin("/", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		nums, err := numArgs(in, loc, "/", args)
		if err != nil {
			return nil, err
		}
		if len(nums) < 2 {
			return nil, in.errf(loc, exc.CodeMacroArity, "/ expects at least 2 arguments")
		}
		out := nums[0]
		for _, n := range nums[1:] {
			if n == 0 {
				return nil, in.errf(loc, exc.CodeMacroDivideByZero, "division by zero")
			}
			out /= n
		}
		return out, nil
	})
	registerBuiltin("%", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		nums, err := numArgs(in, loc, "%", args)
		if err != nil {
			return nil, err
		}
		if len(nums) != 2 {
			return nil, in.errf(loc, exc.CodeMacroArity, "%% expects 2 arguments, got %d", len(nums))
		}
		if nums[1] == 0 {
			return nil, in.errf(loc, exc.CodeMacroDivideByZero, "division by zero")
		}
		return math.Mod(nums[0], nums[1]), nil
	})
	registerBuiltin("=", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		if len(args) != 2 {
			return nil, in.errf(loc, exc.CodeMacroArity, "= expects 2 arguments, got %d", len(args))
		}
		return equalValues(args[0], args[1]), nil
	})
	registerBuiltin("!=", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		if len(args) != 2 {
			return nil, in.errf(loc, exc.CodeMacroArity, "!= expects 2 arguments, got %d", len(args))
		}
		return !equalValues(args[0], args[1]), nil
	})
	registerBuiltin("not", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		if len(args) != 1 {
			return nil, in.errf(loc, exc.CodeMacroArity, "not expects 1 argument, got %d", len(args))
		}
		return !truthy(args[0]), nil
	})
	for _, cmp := range []struct {
		name string
		fn   func(a, b float64) bool
	}{
		{"<", func(a, b float64) bool { return a < b }},
		{">", func(a, b float64) bool { return a > b }},
		{"<=", func(a, b float64) bool { return a <= b }},
		{">=", func(a, b float64) bool { return a >= b }},
	} {
		cmp := cmp
		registerBuiltin(cmp.name, func(in *Interp, loc *hql.Location, args []any) (any, error) {
			nums, err := numArgs(in, loc, cmp.name, args)
			if err != nil {
				return nil, err
			}
			if len(nums) != 2 {
				return nil, in.errf(loc, exc.CodeMacroArity, "%s expects 2 arguments, got %d", cmp.name, len(nums))
			}
			return cmp.fn(nums[0], nums[1]), nil
		})
	}
	registerBuiltin("list", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		elements := make([]hql.SExp, len(args))
		for i, a := range args {
			elements[i] = valueToSExp(a, loc)
		}
		return hql.NewList(loc, elements...), nil
	})
	registerBuiltin("cons", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		if len(args) != 2 {
			return nil, in.errf(loc, exc.CodeMacroArity, "cons expects 2 arguments, got %d", len(args))
		}
		tail, ok := valueToSExp(args[1], loc).(*hql.List)
		if !ok {
			return nil, in.errf(loc, exc.CodeMacroOperandType, "cons tail must be a list, got %s", describe(args[1]))
		}
		elements := append([]hql.SExp{valueToSExp(args[0], loc)}, tail.Elements...)
		return hql.NewList(loc, elements...), nil
	})
	registerBuiltin("first", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		list, err := oneListArg(in, loc, "first", args)
		if err != nil {
			return nil, err
		}
		if len(list.Elements) == 0 {
			return nil, nil
		}
		return list.Elements[0], nil
	})
	registerBuiltin("rest", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		list, err := oneListArg(in, loc, "rest", args)
		if err != nil {
			return nil, err
		}
		if len(list.Elements) == 0 {
			return hql.NewList(loc), nil
		}
		return hql.NewList(loc, list.Elements[1:]...), nil
	})
	registerBuiltin("concat", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		var elements []hql.SExp
		for _, a := range args {
			list, ok := valueToSExp(a, loc).(*hql.List)
			if !ok {
				return nil, in.errf(loc, exc.CodeMacroOperandType, "concat expects lists, got %s", describe(a))
			}
			elements = append(elements, list.Elements...)
		}
		return hql.NewList(loc, elements...), nil
	})
	registerBuiltin("count", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		list, err := oneListArg(in, loc, "count", args)
		if err != nil {
			return nil, err
		}
		return float64(len(list.Elements)), nil
	})
	registerBuiltin("str", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		var b strings.Builder
		for _, a := range args {
			switch t := a.(type) {
			case string:
				b.WriteString(t)
			default:
				b.WriteString(describe(a))
			}
		}
		return b.String(), nil
	})
	registerBuiltin("symbol", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		if len(args) != 1 {
			return nil, in.errf(loc, exc.CodeMacroArity, "symbol expects 1 argument, got %d", len(args))
		}
		name, ok := args[0].(string)
		if !ok {
			return nil, in.errf(loc, exc.CodeMacroOperandType, "symbol expects a string, got %s", describe(args[0]))
		}
		return hql.NewSymbol(name, loc), nil
	})
	registerBuiltin("gensym", func(in *Interp, loc *hql.Location, args []any) (any, error) {
		prefix := ""
		if len(args) > 1 {
			return nil, in.errf(loc, exc.CodeMacroArity, "gensym expects at most 1 argument, got %d", len(args))
		}
		if len(args) == 1 {
			s, ok := args[0].(string)
			if !ok {
				return nil, in.errf(loc, exc.CodeMacroOperandType, "gensym prefix must be a string, got %s", describe(args[0]))
			}
			prefix = s
		}
		return hql.NewSymbol(Gensym(prefix), loc), nil
	})
}

func oneListArg(in *Interp, loc *hql.Location, name string, args []any) (*hql.List, error) {
	if len(args) != 1 {
		return nil, in.errf(loc, exc.CodeMacroArity, "%s expects 1 argument, got %d", name, len(args))
	}
	list, ok := valueToSExp(args[0], loc).(*hql.List)
	if !ok {
		return nil, in.errf(loc, exc.CodeMacroOperandType, "%s expects a list, got %s", name, describe(args[0]))
	}
	return list, nil
}

func equalValues(a any, b any) bool {
	as, aok := a.(hql.SExp)
	bs, bok := b.(hql.SExp)
	if aok && bok {
		return hql.Sprint(as) == hql.Sprint(bs)
	}
	return a == b
}
