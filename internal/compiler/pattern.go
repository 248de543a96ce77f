// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"fmt"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
)

// Pattern is the destructuring tree consumed by binding lowering. Patterns
// are produced from a matching S-expression subtree and consumed
// immediately; they are never persisted.
type Pattern interface {
	pattern()
}

type PatternIdentifier struct {
	Name    string
	Default hql.SExp
}

func (p *PatternIdentifier) pattern() {}

type PatternSkip struct{}

func (p *PatternSkip) pattern() {}

type PatternRest struct {
	Argument *PatternIdentifier
}

func (p *PatternRest) pattern() {}

type PatternArray struct {
	Elements []Pattern
	Default  hql.SExp
}

func (p *PatternArray) pattern() {}

type PatternObjectProperty struct {
	Key   string
	Value Pattern
}

type PatternObject struct {
	Properties []PatternObjectProperty
	Rest       *PatternIdentifier
	Default    hql.SExp
}

func (p *PatternObject) pattern() {}

// CouldBePattern reports whether a form has a shape the pattern grammar can
// accept. ParsePattern must only be called on accepted shapes.
func CouldBePattern(form hql.SExp) bool {
	switch n := form.(type) {
	case *hql.Symbol:
		return true
	case *hql.List:
		switch n.Head() {
		case "vector", "empty-array", "hash-map":
			return true
		}
	}
	return false
}

func patternErr(uri string, form hql.SExp, format string, args ...any) error {
	loc := hql.Location{}
	if form != nil && form.Pos() != nil {
		loc = *form.Pos()
	}
	return exc.New(exc.Location{URI: uri, Location: loc}, exc.CodeInvalidPattern, fmt.Sprintf(format, args...))
}

// ParsePattern converts a destructuring-shaped form into a Pattern.
// Validation is strict: malformed shapes are errors, never coerced.
func ParsePattern(uri string, form hql.SExp) (Pattern, error) {
	switch n := form.(type) {
	case *hql.Symbol:
		if n.Name == "_" {
			return &PatternSkip{}, nil
		}
		return &PatternIdentifier{Name: n.Name}, nil
	case *hql.List:
		switch n.Head() {
		case "vector", "empty-array":
			return parseArrayPattern(uri, n)
		case "hash-map":
			return parseObjectPattern(uri, n)
		}
	}
	return nil, patternErr(uri, form, "%s is not a destructuring pattern", hql.Sprint(form))
}

func parseArrayPattern(uri string, list *hql.List) (Pattern, error) {
	out := &PatternArray{}
	elements := list.Elements[1:]
	for i := 0; i < len(elements); i++ {
		el := elements[i]
		if sym, ok := el.(*hql.Symbol); ok && sym.Name == "&" {
			// Rest: exactly one identifier after "&", and nothing after it.
			if i != len(elements)-2 {
				return nil, patternErr(uri, el, "\"&\" must be the second-to-last pattern element")
			}
			name, ok := elements[i+1].(*hql.Symbol)
			if !ok {
				return nil, patternErr(uri, elements[i+1], "\"&\" must be followed by an identifier, got %s", hql.Sprint(elements[i+1]))
			}
			out.Elements = append(out.Elements, &PatternRest{Argument: &PatternIdentifier{Name: name.Name}})
			return out, nil
		}
		if isDefaultForm(el) {
			return nil, patternErr(uri, el, "default value without a preceding pattern element")
		}
		sub, err := parseArrayElement(uri, el)
		if err != nil {
			return nil, err
		}
		if i+1 < len(elements) && isDefaultForm(elements[i+1]) {
			def := elements[i+1].(*hql.List).Elements[1]
			if err := attachDefault(uri, elements[i+1], sub, def); err != nil {
				return nil, err
			}
			i++
		}
		out.Elements = append(out.Elements, sub)
	}
	return out, nil
}

func parseArrayElement(uri string, el hql.SExp) (Pattern, error) {
	if _, ok := el.(*hql.Literal); ok {
		return nil, patternErr(uri, el, "literal %s is not allowed in an array pattern", hql.Sprint(el))
	}
	return ParsePattern(uri, el)
}

// isDefaultForm matches the (= expr) default marker.
func isDefaultForm(form hql.SExp) bool {
	list, ok := form.(*hql.List)
	return ok && list.Head() == "=" && len(list.Elements) == 2
}

func attachDefault(uri string, at hql.SExp, p Pattern, value hql.SExp) error {
	switch target := p.(type) {
	case *PatternIdentifier:
		target.Default = value
	case *PatternArray:
		target.Default = value
	case *PatternObject:
		target.Default = value
	case *PatternSkip:
		return patternErr(uri, at, "\"_\" cannot carry a default value")
	default:
		return patternErr(uri, at, "default value is not allowed here")
	}
	return nil
}

func parseObjectPattern(uri string, list *hql.List) (Pattern, error) {
	out := &PatternObject{}
	elements := list.Elements[1:]
	for i := 0; i < len(elements); i++ {
		if rest, ok := restForm(elements[i]); ok {
			if i != len(elements)-1 {
				return nil, patternErr(uri, elements[i], "\"&\" must be the final entry of an object pattern")
			}
			out.Rest = &PatternIdentifier{Name: rest}
			return out, nil
		}
		key, ok := objectKey(elements[i])
		if !ok {
			return nil, patternErr(uri, elements[i], "object pattern key must be a name or string, got %s", hql.Sprint(elements[i]))
		}
		if i+1 >= len(elements) {
			return nil, patternErr(uri, elements[i], "object pattern key %q has no value", key)
		}
		value, err := ParsePattern(uri, elements[i+1])
		if err != nil {
			return nil, err
		}
		out.Properties = append(out.Properties, PatternObjectProperty{Key: key, Value: value})
		i++
	}
	return out, nil
}

// restForm matches the (rest name) element the parser produces for "&" in a
// map.
func restForm(form hql.SExp) (string, bool) {
	list, ok := form.(*hql.List)
	if !ok || list.Head() != "rest" || len(list.Elements) != 2 {
		return "", false
	}
	name, ok := list.Elements[1].(*hql.Symbol)
	if !ok {
		return "", false
	}
	return name.Name, true
}

func objectKey(form hql.SExp) (string, bool) {
	switch n := form.(type) {
	case *hql.Literal:
		s, ok := n.Value.(string)
		return s, ok && !n.BigInt
	case *hql.Symbol:
		return n.Name, true
	}
	return "", false
}
